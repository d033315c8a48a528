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
	"database/sql"
	"fmt"
	"net"
	"time"

	"privateannounce/collectors"
	"privateannounce/log"
	"privateannounce/probe"
	"privateannounce/rate"
	"privateannounce/store"
)

// ReloadTargets names every in-memory store the periodic reload
// repopulates from the database in one pass, mirroring the dependency
// order the original tracker's Stores constructor used: torrents
// before their peers, peers before the per-user seed/leech aggregate,
// users before nothing else depends on them.
type ReloadTargets struct {
	Torrents *store.TorrentStore
	Users    *store.UserStore
	Groups   *store.GroupStore

	AgentBlacklist    *store.AgentBlacklist
	FreeleechTokens   *store.PairSet
	PersonalFreeleech *store.IDSet
	FeaturedTorrents  *store.IDSet

	Prober *probe.Prober

	DefaultSeedRates  *rate.Collection
	DefaultLeechRates *rate.Collection
}

// Reload rehydrates every target store from the database. Each step
// reports its own elapsed time to the reload histogram so a slow table
// is visible without needing to time the whole pass externally.
func (db *DB) Reload(t ReloadTargets) error {
	if err := db.timedReload("torrent_counts", db.syncTorrentCounts); err != nil {
		return err
	}

	if err := db.timedReload("torrents", func() error { return db.reloadTorrents(t.Torrents) }); err != nil {
		return err
	}

	if err := db.timedReload("peers", func() error { return db.reloadPeers(t.Torrents) }); err != nil {
		return err
	}

	if err := db.timedReload("users", func() error {
		return db.reloadUsers(t.Users, t.DefaultSeedRates, t.DefaultLeechRates)
	}); err != nil {
		return err
	}

	if err := db.timedReload("groups", func() error { return db.reloadGroups(t.Groups) }); err != nil {
		return err
	}

	if err := db.timedReload("blacklisted_agents", func() error { return db.reloadAgentBlacklist(t.AgentBlacklist) }); err != nil {
		return err
	}

	if err := db.timedReload("freeleech_tokens", func() error { return db.reloadFreeleechTokens(t.FreeleechTokens) }); err != nil {
		return err
	}

	if err := db.timedReload("personal_freeleech", func() error {
		return db.reloadPersonalFreeleech(t.PersonalFreeleech)
	}); err != nil {
		return err
	}

	if err := db.timedReload("featured_torrents", func() error {
		return db.reloadFeaturedTorrents(t.FeaturedTorrents)
	}); err != nil {
		return err
	}

	if db.PrepopulateConnectablePorts && t.Prober != nil {
		if err := db.timedReload("connectable_ports", func() error { return db.prepopulateConnectablePorts(t.Prober) }); err != nil {
			return err
		}
	}

	return nil
}

func (db *DB) timedReload(reloadType string, f func() error) error {
	start := time.Now()
	err := f()
	collectors.UpdateReloadTime(reloadType, time.Since(start))

	if err != nil {
		log.Error.Printf("Reload step %s failed: %s", reloadType, err)
		log.WriteStack()

		return fmt.Errorf("database: reload %s: %w", reloadType, err)
	}

	return nil
}

// syncTorrentCounts recomputes each torrent's seeder/leecher counts
// from the peers table before the in-memory counts take over, so a
// crash-restart doesn't inherit a swarm size that drifted out of sync
// with the last flush. When RequirePeerConnectivity is set only peers
// the probe most recently confirmed reachable are counted, matching
// the visibility rule announce responses use (§3, §4.6).
func (db *DB) syncTorrentCounts() error {
	requireConnectivity := 0
	if db.RequirePeerConnectivity {
		requireConnectivity = 1
	}

	q := `UPDATE torrents t
LEFT JOIN (
	SELECT torrent_id,
		SUM(seeder = 1 AND active = 1 AND visible = 1 AND (? = 0 OR connectable = 1)) AS seeders,
		SUM(seeder = 0 AND active = 1 AND visible = 1 AND (? = 0 OR connectable = 1)) AS leechers
	FROM peers
	GROUP BY torrent_id
) p ON p.torrent_id = t.id
SET t.seeders = COALESCE(p.seeders, 0), t.leechers = COALESCE(p.leechers, 0)`

	_, err := db.exec(q, requireConnectivity, requireConnectivity)

	return err
}

func (db *DB) reloadTorrents(torrents *store.TorrentStore) error {
	rows, err := db.query("SELECT id, info_hash, status, is_deleted, upload_factor, download_factor, seeders, leechers, times_completed FROM torrents")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                           uint32
			infoHash                     store.InfoHash
			status                       uint8
			isDeleted                    bool
			upFactor, downFactor         uint8
			seeders, leechers, completed uint32
		)

		if err = rows.Scan(&id, &infoHash, &status, &isDeleted, &upFactor, &downFactor, &seeders, &leechers, &completed); err != nil {
			return err
		}

		t := torrents.Upsert(id, infoHash, store.Status(status), isDeleted, upFactor, downFactor)
		t.Seeders.Store(seeders)
		t.Leechers.Store(leechers)
		t.TimesCompleted.Store(completed)
	}

	return rows.Err()
}

// reloadPeers loads every swarm member into the torrent that already
// exists in torrents (a peer row whose torrent_id was deleted out from
// under it between the two queries is skipped rather than resurrecting
// the torrent).
func (db *DB) reloadPeers(torrents *store.TorrentStore) error {
	rows, err := db.query("SELECT torrent_id, user_id, peer_id, ip, port, uploaded, downloaded, `left`, active, seeder, visible, connectable, updated_at FROM peers")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			torrentID, userID                       uint32
			peerID                                   store.PeerID
			ip                                       net.IP
			port                                     uint16
			uploaded, downloaded, left               uint64
			isActive, isSeeder, isVisible, connectable bool
			updatedAt                                time.Time
		)

		if err = rows.Scan(&torrentID, &userID, &peerID, &ip, &port, &uploaded, &downloaded, &left,
			&isActive, &isSeeder, &isVisible, &connectable, &updatedAt); err != nil {
			return err
		}

		t, ok := torrents.Get(torrentID)
		if !ok {
			continue
		}

		p := &store.Peer{
			IP:            ip,
			Port:          port,
			Uploaded:      uploaded,
			Downloaded:    downloaded,
			Left:          left,
			UpdatedAt:     updatedAt.Unix(),
			TorrentID:     torrentID,
			UserID:        userID,
			ID:            peerID,
			IsSeeder:      isSeeder,
			IsActive:      isActive,
			IsVisible:     isVisible,
			IsConnectable: connectable,
		}

		t.PeerLock()
		t.Peers[store.NewPeerKey(userID, peerID)] = p
		t.PeerUnlock()
	}

	return rows.Err()
}

// reloadUsers loads the account rows, then derives each user's
// NumSeeding/NumLeeching from a peers aggregate rather than a stored
// column: the database has none, matching the original tracker's
// design of keeping those counters live in memory only.
func (db *DB) reloadUsers(users *store.UserStore, defaultSeedRates, defaultLeechRates *rate.Collection) error {
	counts, err := db.loadUserPeerCounts()
	if err != nil {
		return err
	}

	rows, err := db.query("SELECT id, group_id, passkey, deleted, can_download, is_donor, is_lifetime FROM users")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                                   uint32
			groupID                               uint32
			passkey                               string
			deleted, canDownload, isDonor, isLife bool
		)

		if err = rows.Scan(&id, &groupID, &passkey, &deleted, &canDownload, &isDonor, &isLife); err != nil {
			return err
		}

		u := &store.User{
			ID:          id,
			GroupID:     groupID,
			Passkey:     store.Passkey(passkey),
			Deleted:     deleted,
			CanDownload: canDownload,
			IsDonor:     isDonor,
			IsLifetime:  isLife,
		}

		users.Upsert(u, defaultSeedRates, defaultLeechRates)

		c := counts[id]
		users.WithUser(id, func(u *store.User) {
			u.NumSeeding = c.seeding
			u.NumLeeching = c.leeching
		})
	}

	return rows.Err()
}

type peerCounts struct {
	seeding, leeching uint32
}

func (db *DB) loadUserPeerCounts() (map[uint32]peerCounts, error) {
	rows, err := db.query("SELECT user_id, SUM(seeder = 1 AND active = 1) AS seeding, SUM(seeder = 0 AND active = 1) AS leeching FROM peers GROUP BY user_id")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[uint32]peerCounts)

	for rows.Next() {
		var (
			userID             uint32
			seeding, leeching  uint32
		)

		if err = rows.Scan(&userID, &seeding, &leeching); err != nil {
			return nil, err
		}

		counts[userID] = peerCounts{seeding: seeding, leeching: leeching}
	}

	return counts, rows.Err()
}

func (db *DB) reloadGroups(groups *store.GroupStore) error {
	rows, err := db.query("SELECT id, slug, download_slots, is_immune, upload_factor, download_factor FROM groups")
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var (
			id                   uint32
			slug                 string
			downloadSlots        sql.NullInt64
			isImmune             bool
			upFactor, downFactor uint8
		)

		if err = rows.Scan(&id, &slug, &downloadSlots, &isImmune, &upFactor, &downFactor); err != nil {
			return err
		}

		g := &store.Group{
			ID:             id,
			Slug:           slug,
			IsImmune:       isImmune,
			UploadFactor:   upFactor,
			DownloadFactor: downFactor,
		}

		if downloadSlots.Valid {
			slots := uint32(downloadSlots.Int64)
			g.DownloadSlots = &slots
		}

		groups.Upsert(g)
	}

	return rows.Err()
}

func (db *DB) reloadAgentBlacklist(blacklist *store.AgentBlacklist) error {
	rows, err := db.query("SELECT peer_id_prefix FROM blacklist_clients")
	if err != nil {
		return err
	}
	defer rows.Close()

	var prefixes []string

	for rows.Next() {
		var prefix string
		if err = rows.Scan(&prefix); err != nil {
			return err
		}

		prefixes = append(prefixes, prefix)
	}

	if err = rows.Err(); err != nil {
		return err
	}

	blacklist.Reset(prefixes)

	return nil
}

func (db *DB) reloadFreeleechTokens(tokens *store.PairSet) error {
	rows, err := db.query("SELECT user_id, torrent_id FROM freeleech_tokens")
	if err != nil {
		return err
	}
	defer rows.Close()

	var pairs []store.UserTorrentPair

	for rows.Next() {
		var p store.UserTorrentPair
		if err = rows.Scan(&p.UserID, &p.TorrentID); err != nil {
			return err
		}

		pairs = append(pairs, p)
	}

	if err = rows.Err(); err != nil {
		return err
	}

	tokens.Reset(pairs)

	return nil
}

func (db *DB) reloadPersonalFreeleech(set *store.IDSet) error {
	ids, err := db.loadIDSet("SELECT user_id FROM personal_freeleeches")
	if err != nil {
		return err
	}

	set.Reset(ids)

	return nil
}

func (db *DB) reloadFeaturedTorrents(set *store.IDSet) error {
	ids, err := db.loadIDSet("SELECT torrent_id FROM featured_torrents")
	if err != nil {
		return err
	}

	set.Reset(ids)

	return nil
}

func (db *DB) loadIDSet(query string) ([]uint32, error) {
	rows, err := db.query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uint32

	for rows.Next() {
		var id uint32
		if err = rows.Scan(&id); err != nil {
			return nil, err
		}

		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// prepopulateConnectablePorts seeds the probe's cache from the peers
// table's own connectable column, so a freshly restarted process
// doesn't have to re-dial every currently-visible peer before it can
// answer the first announce for each of them (§4.6).
func (db *DB) prepopulateConnectablePorts(prober *probe.Prober) error {
	rows, err := db.query("SELECT ip, port, connectable FROM peers")
	if err != nil {
		return err
	}
	defer rows.Close()

	now := time.Now()

	for rows.Next() {
		var (
			ip          net.IP
			port        uint16
			connectable bool
		)

		if err = rows.Scan(&ip, &port, &connectable); err != nil {
			return err
		}

		prober.Seed(ip, port, connectable, now)
	}

	return rows.Err()
}
