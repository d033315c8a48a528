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
	"math"
	"net"
	"time"

	"privateannounce/queue"
	"privateannounce/store"
	"privateannounce/util"
)

// applyAccounting runs after the torrent's peer lock has been released:
// credit-factor resolution, the DB-bound update queues, and the user's
// seed/leech counters and rate ticks (§4.1.4).
func applyAccounting(deps *Deps, t *store.Torrent, user *store.User, q *Query, userAgent, ipStr string, now time.Time, outcome transitionOutcome) {
	group, hasGroup := deps.Groups.Get(user.GroupID)

	uploadFactor := deps.Config.UploadFactor
	downloadFactor := deps.Config.DownloadFactor

	if hasGroup {
		uploadFactor = maxUint8(uploadFactor, group.UploadFactor)
		downloadFactor = minUint8(downloadFactor, group.DownloadFactor)
	}

	uploadFactor = maxUint8(uploadFactor, uint8(t.UploadFactor.Load()))
	downloadFactor = minUint8(downloadFactor, uint8(t.DownloadFactor.Load()))

	if user.IsLifetime {
		uploadFactor = maxUint8(uploadFactor, deps.Config.LifetimeUploadFactor)
		downloadFactor = minUint8(downloadFactor, deps.Config.LifetimeDownloadFactor)
	} else if user.IsDonor {
		uploadFactor = maxUint8(uploadFactor, deps.Config.DonorUploadFactor)
		downloadFactor = minUint8(downloadFactor, deps.Config.DonorDownloadFactor)
	}

	isFeatured := deps.FeaturedTorrents.Has(t.ID)
	isFreeleech := isFeatured ||
		deps.FreeleechTokens.Has(user.ID, t.ID) ||
		deps.PersonalFreeleech.Has(user.ID)

	if isFreeleech {
		downloadFactor = 0
	}

	if isFeatured {
		uploadFactor = 200
	}

	creditedUploaded := applyFactor(outcome.UploadedDelta, uploadFactor)
	creditedDownloaded := applyFactor(outcome.DownloadedDelta, downloadFactor)

	isImmune := hasGroup && group.IsImmune
	if user.IsLifetime {
		isImmune = deps.Config.LifetimeIsImmune
	} else if user.IsDonor {
		isImmune = deps.Config.DonorIsImmune
	}

	if outcome.Removed {
		deps.Queues.PeerDeletions.Add(queue.PeerDeletion{
			TorrentID: t.ID,
			UserID:    user.ID,
			PeerID:    q.PeerID,
		})
	} else {
		deps.Queues.Peers.Upsert(queue.PeerIndex{UserID: user.ID, TorrentID: t.ID, PeerID: q.PeerID}, queue.PeerUpdate{
			IP:          net.ParseIP(ipStr),
			Port:        q.Port,
			Agent:       userAgent,
			Uploaded:    q.Uploaded,
			Downloaded:  q.Downloaded,
			Left:        q.Left,
			IsActive:    true,
			IsSeeder:    q.Left == 0,
			IsVisible:   outcome.IsVisible,
			Connectable: outcome.IsConnectable,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	var completedAt *time.Time
	if q.Event == queue.EventCompleted {
		completedAt = &now
	}

	deps.Queues.Histories.Upsert(queue.HistoryIndex{UserID: user.ID, TorrentID: t.ID}, queue.HistoryUpdate{
		UserAgent:               userAgent,
		IsActive:                !outcome.Removed,
		IsSeeder:                q.Left == 0,
		IsImmune:                isImmune,
		Uploaded:                q.Uploaded,
		Downloaded:              q.Downloaded,
		UploadedDelta:           outcome.UploadedDelta,
		DownloadedDelta:         outcome.DownloadedDelta,
		CreditedUploadedDelta:   creditedUploaded,
		CreditedDownloadedDelta: creditedDownloaded,
		CompletedAt:             completedAt,
	})

	balanceDelta := saturatingInt64(outcome.UploadedDelta) - saturatingInt64(outcome.DownloadedDelta)

	if outcome.SeederDelta != 0 || outcome.LeecherDelta != 0 || outcome.TimesCompletedDelta != 0 || balanceDelta != 0 {
		deps.Queues.Torrents.Upsert(queue.TorrentIndex{TorrentID: t.ID}, queue.TorrentUpdate{
			SeederDelta:         outcome.SeederDelta,
			LeecherDelta:        outcome.LeecherDelta,
			TimesCompletedDelta: outcome.TimesCompletedDelta,
			BalanceDelta:        balanceDelta,
		})
	}

	if creditedUploaded != 0 || creditedDownloaded != 0 {
		deps.Queues.Users.Upsert(queue.UserIndex{UserID: user.ID}, queue.UserUpdate{
			UploadedDelta:   creditedUploaded,
			DownloadedDelta: creditedDownloaded,
		})
	}

	if deps.Config.IsAnnounceLoggingEnabled {
		deps.Queues.Announces.Append(queue.AnnounceUpdate{
			UserID:     user.ID,
			TorrentID:  t.ID,
			Uploaded:   q.Uploaded,
			Downloaded: q.Downloaded,
			Left:       q.Left,
			Corrupt:    q.Corrupt,
			PeerID:     q.PeerID,
			Port:       q.Port,
			NumWant:    q.NumWant,
			CreatedAt:  now,
			Event:      q.Event,
			Key:        q.Key,
		})
	}

	if outcome.SeederDelta != 0 || outcome.LeecherDelta != 0 || outcome.HasRequestedSeedList || outcome.HasRequestedLeechList {
		deps.Users.WithUser(user.ID, func(u *store.User) {
			u.NumSeeding = addSaturatingSigned(u.NumSeeding, outcome.SeederDelta)
			u.NumLeeching = addSaturatingSigned(u.NumLeeching, outcome.LeecherDelta)

			nowSeconds := float64(now.Unix())

			if outcome.HasRequestedSeedList && u.ReceiveSeedListRates != nil {
				u.ReceiveSeedListRates.Tick(nowSeconds)
			}

			if outcome.HasRequestedLeechList && u.ReceiveLeechListRates != nil {
				u.ReceiveLeechListRates.Tick(nowSeconds)
			}
		})
	}
}

func applyFactor(delta uint64, factor uint8) uint64 {
	return delta * uint64(factor) / 100
}

// saturatingInt64 converts a byte-count delta into the signed range the
// torrents table's balance column is stored in, clamping instead of
// wrapping on the (practically unreachable) overflow case.
func saturatingInt64(delta uint64) int64 {
	if delta > math.MaxInt64 {
		return math.MaxInt64
	}

	return int64(delta)
}

func maxUint8(a, b uint8) uint8 {
	if a > b {
		return a
	}

	return b
}

func minUint8(a, b uint8) uint8 {
	if a < b {
		return a
	}

	return b
}

// reservoirSample picks up to k elements from candidates uniformly at
// random in a single pass (Algorithm R), matching the original
// source's choose_multiple guarantee more strongly than iterating a
// Go map in its (already randomized) hash order.
func reservoirSample(candidates []*store.Peer, k int) []*store.Peer {
	if k <= 0 || len(candidates) == 0 {
		return nil
	}

	if k >= len(candidates) {
		out := make([]*store.Peer, len(candidates))
		copy(out, candidates)

		return out
	}

	reservoir := make([]*store.Peer, k)
	copy(reservoir, candidates[:k])

	for i := k; i < len(candidates); i++ {
		j := util.UnsafeIntn(i + 1)
		if j < k {
			reservoir[j] = candidates[i]
		}
	}

	return reservoir
}
