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

package database

import (
	"strings"
	"time"

	"privateannounce/queue"
)

// rowPlaceholders builds the "(?,...),(?,...)" tuple list for an n-row,
// width-column multi-row INSERT, matching the push_values idiom the
// original tracker built with sqlx's QueryBuilder.
func rowPlaceholders(rows, width int) string {
	row := "(" + strings.TrimSuffix(strings.Repeat("?,", width), ",") + ")"

	var b strings.Builder
	for i := 0; i < rows; i++ {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(row)
	}

	return b.String()
}

// FlushPeers upserts one snapshot per swarm member. ON DUPLICATE KEY
// UPDATE takes VALUES() outright since a peer update replaces the
// prior state rather than accumulating it; the one exception is agent,
// which keeps its stored value when the incoming one is empty (a
// reap-originated update carries no user agent).
func (db *DB) FlushPeers(batch queue.Batch[queue.PeerIndex, queue.PeerUpdate]) error {
	if len(batch) == 0 {
		return nil
	}

	q := "INSERT INTO peers(peer_id,ip,port,agent,uploaded,downloaded,`left`,active,seeder,visible,created_at,updated_at,torrent_id,user_id,connectable) VALUES " +
		rowPlaceholders(len(batch), 15) +
		" ON DUPLICATE KEY UPDATE ip=VALUES(ip), port=VALUES(port), agent=IF(VALUES(agent)='',agent,VALUES(agent)), uploaded=VALUES(uploaded), downloaded=VALUES(downloaded), `left`=VALUES(`left`), active=VALUES(active), seeder=VALUES(seeder), visible=VALUES(visible), updated_at=VALUES(updated_at), connectable=VALUES(connectable)"

	args := make([]interface{}, 0, len(batch)*15)

	for _, r := range batch {
		v := r.Value
		args = append(args, r.Key.PeerID, []byte(v.IP), v.Port, v.Agent, v.Uploaded, v.Downloaded, v.Left,
			v.IsActive, v.IsSeeder, v.IsVisible, v.CreatedAt, v.UpdatedAt, r.Key.TorrentID, r.Key.UserID, v.Connectable)
	}

	_, err := db.exec(q, args...)

	return err
}

// FlushHistories upserts accumulated per-(user,torrent) credit. Most
// columns sum the flushed delta into the existing row; seedtime only
// advances when the row was already seeding and stays seeding across
// this flush, within seedtimeTTL of its last update, mirroring the
// original tracker's seedtime clock.
func (db *DB) FlushHistories(batch queue.Batch[queue.HistoryIndex, queue.HistoryUpdate], seedtimeTTL time.Duration) error {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now()

	q := "INSERT INTO history(user_id,torrent_id,agent,uploaded,actual_uploaded,client_uploaded,downloaded,actual_downloaded,client_downloaded,seeder,active,seedtime,immune,created_at,updated_at,completed_at) VALUES " +
		rowPlaceholders(len(batch), 16) +
		" ON DUPLICATE KEY UPDATE" +
		" agent=VALUES(agent)," +
		" uploaded=uploaded+VALUES(uploaded)," +
		" actual_uploaded=actual_uploaded+VALUES(actual_uploaded)," +
		" client_uploaded=VALUES(client_uploaded)," +
		" downloaded=downloaded+VALUES(downloaded)," +
		" actual_downloaded=actual_downloaded+VALUES(actual_downloaded)," +
		" client_downloaded=VALUES(client_downloaded)," +
		" seedtime=IF(DATE_ADD(updated_at, INTERVAL ? SECOND) > VALUES(updated_at) AND seeder=1 AND active=1 AND VALUES(seeder)=1, seedtime+TIMESTAMPDIFF(SECOND,updated_at,VALUES(updated_at)), seedtime)," +
		" updated_at=VALUES(updated_at)," +
		" seeder=VALUES(seeder)," +
		" active=VALUES(active)," +
		" immune=immune AND VALUES(immune)," +
		" completed_at=COALESCE(completed_at,VALUES(completed_at))"

	args := make([]interface{}, 0, len(batch)*16+1)

	for _, r := range batch {
		v := r.Value
		args = append(args, r.Key.UserID, r.Key.TorrentID, v.UserAgent, v.CreditedUploadedDelta, v.UploadedDelta,
			v.Uploaded, v.CreditedDownloadedDelta, v.DownloadedDelta, v.Downloaded, v.IsSeeder, v.IsActive,
			0, v.IsImmune, now, now, v.CompletedAt)
	}

	args = append(args, int64(seedtimeTTL/time.Second))

	_, err := db.exec(q, args...)

	return err
}

// FlushTorrents upserts accumulated swarm-size and completion deltas.
func (db *DB) FlushTorrents(batch queue.Batch[queue.TorrentIndex, queue.TorrentUpdate]) error {
	if len(batch) == 0 {
		return nil
	}

	now := time.Now()

	q := "INSERT INTO torrents(id,seeders,leechers,times_completed,balance,updated_at) VALUES " +
		rowPlaceholders(len(batch), 6) +
		" ON DUPLICATE KEY UPDATE seeders=seeders+VALUES(seeders), leechers=leechers+VALUES(leechers), times_completed=times_completed+VALUES(times_completed), balance=COALESCE(balance,0)+VALUES(balance), updated_at=VALUES(updated_at)"

	args := make([]interface{}, 0, len(batch)*6)

	for _, r := range batch {
		v := r.Value
		args = append(args, r.Key.TorrentID, v.SeederDelta, v.LeecherDelta, v.TimesCompletedDelta, v.BalanceDelta, now)
	}

	_, err := db.exec(q, args...)

	return err
}

// FlushUsers upserts accumulated lifetime upload/download totals.
func (db *DB) FlushUsers(batch queue.Batch[queue.UserIndex, queue.UserUpdate]) error {
	if len(batch) == 0 {
		return nil
	}

	q := "INSERT INTO users(id,uploaded,downloaded) VALUES " +
		rowPlaceholders(len(batch), 3) +
		" ON DUPLICATE KEY UPDATE uploaded=uploaded+VALUES(uploaded), downloaded=downloaded+VALUES(downloaded)"

	args := make([]interface{}, 0, len(batch)*3)

	for _, r := range batch {
		args = append(args, r.Key.UserID, r.Value.UploadedDelta, r.Value.DownloadedDelta)
	}

	_, err := db.exec(q, args...)

	return err
}

// FlushUnregisteredInfoHashes upserts the "seen but not in the torrent
// table" audit log (§4.1 validation).
func (db *DB) FlushUnregisteredInfoHashes(batch queue.Batch[queue.UnregisteredInfoHashIndex, queue.UnregisteredInfoHashUpdate]) error {
	if len(batch) == 0 {
		return nil
	}

	q := "INSERT INTO unregistered_info_hashes(user_id,info_hash,created_at,updated_at) VALUES " +
		rowPlaceholders(len(batch), 4) +
		" ON DUPLICATE KEY UPDATE updated_at=VALUES(updated_at)"

	args := make([]interface{}, 0, len(batch)*4)

	for _, r := range batch {
		args = append(args, r.Key.UserID, r.Key.InfoHash, r.Value.CreatedAt, r.Value.UpdatedAt)
	}

	_, err := db.exec(q, args...)

	return err
}

// FlushAnnounces appends the audit log; every row is its own announce,
// never merged with another, so this is a pure multi-row INSERT.
func (db *DB) FlushAnnounces(batch []queue.AnnounceUpdate) error {
	if len(batch) == 0 {
		return nil
	}

	q := "INSERT INTO announces(user_id,torrent_id,uploaded,downloaded,`left`,corrupt,peer_id,port,numwant,created_at,event,`key`) VALUES " +
		rowPlaceholders(len(batch), 12)

	args := make([]interface{}, 0, len(batch)*12)

	for _, u := range batch {
		var corrupt interface{}
		if u.Corrupt != nil {
			corrupt = *u.Corrupt
		}

		args = append(args, u.UserID, u.TorrentID, u.Uploaded, u.Downloaded, u.Left, corrupt, u.PeerID, u.Port,
			u.NumWant, u.CreatedAt, string(u.Event), u.Key)
	}

	_, err := db.exec(q, args...)

	return err
}

// FlushPeerDeletions removes rows the reap pass decided are gone for
// good or a stopped announce removed, matching the composite primary key used by FlushPeers.
func (db *DB) FlushPeerDeletions(batch []queue.PeerDeletion) error {
	if len(batch) == 0 {
		return nil
	}

	q := "DELETE FROM peers WHERE (torrent_id,user_id,peer_id) IN " + rowPlaceholders(len(batch), 3)

	args := make([]interface{}, 0, len(batch)*3)

	for _, d := range batch {
		args = append(args, d.TorrentID, d.UserID, d.PeerID)
	}

	_, err := db.exec(q, args...)

	return err
}
