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

package scheduler

import (
	"time"

	"privateannounce/queue"
	"privateannounce/store"
)

// reap sweeps every torrent's peer map for peers that have stopped
// announcing (§9): a peer past active_peer_ttl is marked inactive and
// its swarm counters are backed out; a peer already inactive and past
// inactive_peer_ttl is permanently forgotten.
func (s *Scheduler) reap() {
	now := time.Now()
	activeCutoff := now.Add(-s.Config.ActivePeerTTL).Unix()
	inactiveCutoff := now.Add(-s.Config.InactivePeerTTL).Unix()

	s.Torrents.Range(func(_ uint32, t *store.Torrent) bool {
		s.reapTorrent(t, activeCutoff, inactiveCutoff, now)

		return true
	})
}

func (s *Scheduler) reapTorrent(t *store.Torrent, activeCutoff, inactiveCutoff int64, now time.Time) {
	var seederDelta, leecherDelta int32

	t.PeerLock()
	defer t.PeerUnlock()

	for key, p := range t.Peers {
		if inactiveCutoff > p.UpdatedAt && !p.IsActive {
			delete(t.Peers, key)

			s.Queues.PeerDeletions.Add(queue.PeerDeletion{
				TorrentID: t.ID,
				UserID:    p.UserID,
				PeerID:    p.ID,
			})

			continue
		}

		if p.UpdatedAt < activeCutoff && p.IsActive {
			p.IsActive = false

			if p.IsVisible {
				s.Users.WithUser(p.UserID, func(u *store.User) {
					if p.IsSeeder {
						u.NumSeeding = saturatingSub(u.NumSeeding)
					} else {
						u.NumLeeching = saturatingSub(u.NumLeeching)
					}
				})

				if p.IsSeeder {
					seederDelta--
				} else {
					leecherDelta--
				}
			}

			s.Queues.Peers.Upsert(queue.PeerIndex{UserID: p.UserID, TorrentID: t.ID, PeerID: p.ID}, queue.PeerUpdate{
				IP:          p.IP,
				Port:        p.Port,
				Uploaded:    p.Uploaded,
				Downloaded:  p.Downloaded,
				Left:        p.Left,
				IsActive:    false,
				IsSeeder:    p.IsSeeder,
				IsVisible:   p.IsVisible,
				Connectable: p.IsConnectable,
				CreatedAt:   now,
				UpdatedAt:   now,
			})
		}
	}

	if seederDelta != 0 || leecherDelta != 0 {
		t.Seeders.Store(addSaturatingSigned(t.Seeders.Load(), seederDelta))
		t.Leechers.Store(addSaturatingSigned(t.Leechers.Load(), leecherDelta))

		s.Queues.Torrents.Upsert(queue.TorrentIndex{TorrentID: t.ID}, queue.TorrentUpdate{
			SeederDelta:  seederDelta,
			LeecherDelta: leecherDelta,
		})
	}
}

func saturatingSub(v uint32) uint32 {
	if v == 0 {
		return 0
	}

	return v - 1
}

func addSaturatingSigned(current uint32, delta int32) uint32 {
	sum := int64(current) + int64(delta)
	if sum < 0 {
		return 0
	}

	if sum > int64(^uint32(0)) {
		return ^uint32(0)
	}

	return uint32(sum)
}
