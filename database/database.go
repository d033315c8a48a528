/*
 * This file is part of Chihaya.
 *
 * Chihaya is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * Chihaya is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with Chihaya.  If not, see <http://www.gnu.org/licenses/>.
 */

// Package database is the persistence boundary between the in-memory
// stores and MySQL: it rehydrates every store at startup and drains the
// scheduler's coalesced update queues back to the database on every
// flush tick. It implements scheduler.DB.
package database

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"

	"privateannounce/collectors"
	"privateannounce/config"
	"privateannounce/log"
)

// Connection wraps one *sql.DB with the mutex perform's deadlock retry
// serialises ad-hoc statements through (prepared statements used during
// reload already have their own implicit per-call safety from the
// driver, so the mutex only matters for the shared bulk-exec path).
type Connection struct {
	sqlDb *sql.DB
	mutex sync.Mutex
}

// DB rehydrates the in-memory stores at startup and flushes the
// scheduler's queues back to MySQL. A single long-lived connection pool
// backs both the reload queries and the flush statements.
type DB struct {
	conn *Connection

	// RequirePeerConnectivity gates whether the startup peer-count
	// aggregate sync and the reload's swarm counts only consider peers
	// the connectivity probe has confirmed reachable (§6 DB contract).
	RequirePeerConnectivity bool

	// PrepopulateConnectablePorts, when true, seeds the connectable-port
	// cache from the peers table at startup instead of leaving it to
	// warm lazily from the first probe of each address (§4.6).
	PrepopulateConnectablePorts bool
}

var (
	deadlockWaitTime   time.Duration
	maxDeadlockRetries int
)

var defaultDsn = map[string]string{
	"username": "tracker",
	"password": "",
	"proto":    "tcp",
	"addr":     "127.0.0.1:3306",
	"database": "tracker",
}

// Open dials the database using the "database" config section (or the
// DB_DSN environment variable, read first so integration tests can
// point at a throwaway schema without touching the config file).
func Open() *DB {
	databaseConfig := config.Section("database")

	waitSeconds, _ := databaseConfig.GetInt("deadlock_pause", 1)
	deadlockWaitTime = time.Duration(waitSeconds) * time.Second
	maxDeadlockRetries, _ = databaseConfig.GetInt("deadlock_retries", 5)

	databaseDsn := os.Getenv("DB_DSN")
	if databaseDsn == "" {
		dbUsername, _ := databaseConfig.Get("username", defaultDsn["username"])
		dbPassword, _ := databaseConfig.Get("password", defaultDsn["password"])
		dbProto, _ := databaseConfig.Get("proto", defaultDsn["proto"])
		dbAddr, _ := databaseConfig.Get("addr", defaultDsn["addr"])
		dbDatabase, _ := databaseConfig.Get("database", defaultDsn["database"])
		databaseDsn = fmt.Sprintf("%s:%s@%s(%s)/%s?parseTime=true",
			dbUsername,
			dbPassword,
			dbProto,
			dbAddr,
			dbDatabase,
		)
	}

	sqlDb, err := sql.Open("mysql", databaseDsn)
	if err != nil {
		log.Fatal.Fatalf("Couldn't connect to database - %s", err)
	}

	if err = sqlDb.Ping(); err != nil {
		log.Fatal.Fatalf("Couldn't ping database - %s", err)
	}

	trackerConfig := config.Section("tracker")
	requirePeerConnectivity, _ := trackerConfig.GetBool("require_peer_connectivity", false)
	prepopulateConnectablePorts, _ := trackerConfig.GetBool("prepopulate_connectable_ports", false)

	return &DB{
		conn:                        &Connection{sqlDb: sqlDb},
		RequirePeerConnectivity:     requirePeerConnectivity,
		PrepopulateConnectablePorts: prepopulateConnectablePorts,
	}
}

func (db *DB) Close() error {
	return db.conn.sqlDb.Close()
}

func (db *DB) query(query string, args ...interface{}) (*sql.Rows, error) {
	result, err := perform(func() (interface{}, error) {
		return db.conn.sqlDb.Query(query, args...)
	})
	if err != nil {
		return nil, err
	}

	return result.(*sql.Rows), nil
}

func (db *DB) exec(query string, args ...interface{}) (sql.Result, error) {
	db.conn.mutex.Lock()
	defer db.conn.mutex.Unlock()

	result, err := perform(func() (interface{}, error) {
		return db.conn.sqlDb.Exec(query, args...)
	})
	if err != nil {
		return nil, err
	}

	return result.(sql.Result), nil
}

var errDeadlockExhausted = errors.New("database: exhausted deadlock retries")

// perform retries the deadlock-prone MySQL error codes 1213 (deadlock
// found) and 1205 (lock wait timeout) with a linearly ramping backoff,
// matching the original tracker's retry idiom. Any other MySQL error is
// logged and returned to the caller; a non-MySQL error (e.g. a dropped
// connection) is treated as unrecoverable.
func perform(exec func() (interface{}, error)) (interface{}, error) {
	var (
		tries int
		wait  time.Duration
	)

	for tries = 1; tries <= maxDeadlockRetries; tries++ {
		result, err := exec()
		if err == nil {
			return result, nil
		}

		merr, isMysqlError := err.(*mysql.MySQLError)
		if !isMysqlError {
			log.Panic.Printf("Error executing SQL: %s", err)
			panic(err)
		}

		if merr.Number == 1213 || merr.Number == 1205 {
			wait = deadlockWaitTime * time.Duration(tries)
			log.Warning.Printf("Deadlock found! Retrying in %s (%d/%d)", wait.String(), tries,
				maxDeadlockRetries)

			if tries == 1 {
				collectors.IncrementDeadlockCount()
			}

			collectors.IncrementDeadlockTime(wait)
			time.Sleep(wait)

			continue
		}

		log.Error.Printf("SQL error %d: %s", merr.Number, merr.Message)
		log.WriteStack()

		collectors.IncrementSQLErrorCount()

		return nil, err
	}

	log.Error.Printf("Deadlocked %d times, giving up!", tries)
	log.WriteStack()
	collectors.IncrementDeadlockAborted()

	return nil, errDeadlockExhausted
}
