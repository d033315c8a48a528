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

package announce

import (
	"net"
	"time"

	"privateannounce/queue"
	"privateannounce/store"
	"privateannounce/warning"
)

// transitionPeer applies one announce's peer-state transition (§4.1.1)
// against a torrent's peer map, which the caller must already hold the
// peer lock for. It returns the swarm-counter deltas the caller should
// fold into the torrent's atomics.
func transitionPeer(
	t *store.Torrent,
	userID uint32,
	q *Query,
	ip net.IP,
	isConnectable bool,
	hasHitDownloadSlotLimit bool,
	announceMinEnforced time.Duration,
	maxPeersPerTorrentPerUser int,
	now time.Time,
	warnings *warning.Collection,
) (seederDelta, leecherDelta int32, timesCompletedDelta uint32, uploadedDelta, downloadedDelta uint64, isVisible, shouldEarlyReturn bool, failErr *Error) {
	key := store.NewPeerKey(userID, q.PeerID)

	if q.Event == queue.EventStopped {
		old, existed := t.Peers[key]
		if !existed {
			warnings.Add(warning.StoppedPeerDoesntExist)
			shouldEarlyReturn = true

			return
		}

		delete(t.Peers, key)

		if q.Uploaded >= old.Uploaded {
			uploadedDelta = q.Uploaded - old.Uploaded
		}

		if q.Downloaded >= old.Downloaded {
			downloadedDelta = q.Downloaded - old.Downloaded
		}

		if old.IsIncludedInLeechList() {
			leecherDelta = -1
		}

		if old.IsIncludedInSeedList() {
			seederDelta = -1
		}

		return
	}

	old, existed := t.Peers[key]

	var before store.Peer
	if existed {
		before = *old
	}

	p := old
	if !existed {
		p = &store.Peer{TorrentID: t.ID, UserID: userID, ID: q.PeerID}
		t.Peers[key] = p
	}

	p.IP = ip
	p.Port = q.Port
	p.IsSeeder = q.Left == 0
	p.IsConnectable = isConnectable
	p.IsActive = true
	p.UpdatedAt = now.Unix()
	p.Uploaded = q.Uploaded
	p.Downloaded = q.Downloaded
	p.Left = q.Left

	p.IsVisible = !hasHitDownloadSlotLimit || (&before).IsIncludedInLeechList()
	isVisible = p.IsVisible

	if !isVisible {
		warnings.Add(warning.HitDownloadSlotLimit)
	}

	if !existed {
		count := 0

		for k, other := range t.Peers {
			if k.UserID() == userID && other.IsActive {
				count++
			}
		}

		if maxPeersPerTorrentPerUser > 0 && count > maxPeersPerTorrentPerUser {
			delete(t.Peers, key)
			failErr = errPeersPerTorrentLimit(maxPeersPerTorrentPerUser)

			return
		}

		if p.IsIncludedInLeechList() {
			leecherDelta = 1
		}

		if p.IsIncludedInSeedList() {
			seederDelta = 1
		}

		return
	}

	oldLeech := (&before).IsIncludedInLeechList()
	oldSeed := (&before).IsIncludedInSeedList()
	newLeech := p.IsIncludedInLeechList()
	newSeed := p.IsIncludedInSeedList()

	leecherDelta = boolDelta(newLeech) - boolDelta(oldLeech)
	seederDelta = boolDelta(newSeed) - boolDelta(oldSeed)

	if p.IsSeeder && !before.IsSeeder {
		timesCompletedDelta = 1
	}

	if q.Uploaded < before.Uploaded || q.Downloaded < before.Downloaded {
		uploadedDelta, downloadedDelta = 0, 0
	} else {
		uploadedDelta = q.Uploaded - before.Uploaded
		downloadedDelta = q.Downloaded - before.Downloaded
	}

	if before.UpdatedAt+int64(announceMinEnforced.Seconds()) > now.Unix() {
		warnings.Add(warning.RateLimitExceeded)
	}

	return
}

func boolDelta(b bool) int32 {
	if b {
		return 1
	}

	return 0
}
