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

// Package scheduler runs the tracker's background tick loop: flushing
// coalesced update queues to the database and reaping peers that have
// stopped announcing (§9 of the design).
package scheduler

import (
	"context"
	"time"

	"privateannounce/config"
	"privateannounce/queue"
	"privateannounce/store"
	"privateannounce/util"
)

// DB is the persistence boundary the scheduler flushes through. It is
// implemented by the database package; the scheduler itself never
// touches SQL so it can be exercised without a live connection.
type DB interface {
	FlushPeers(batch queue.Batch[queue.PeerIndex, queue.PeerUpdate]) error
	FlushHistories(batch queue.Batch[queue.HistoryIndex, queue.HistoryUpdate], seedtimeTTL time.Duration) error
	FlushTorrents(batch queue.Batch[queue.TorrentIndex, queue.TorrentUpdate]) error
	FlushUsers(batch queue.Batch[queue.UserIndex, queue.UserUpdate]) error
	FlushUnregisteredInfoHashes(batch queue.Batch[queue.UnregisteredInfoHashIndex, queue.UnregisteredInfoHashUpdate]) error
	FlushAnnounces(batch []queue.AnnounceUpdate) error
	FlushPeerDeletions(batch []queue.PeerDeletion) error
}

// Scheduler owns the 1-second tick loop that drives flush and reap.
type Scheduler struct {
	Queues   *queue.Queues
	Torrents *store.TorrentStore
	Users    *store.UserStore
	DB       DB
	Config   *config.Tracker

	counter uint64
}

func New(queues *queue.Queues, torrents *store.TorrentStore, users *store.UserStore, db DB, cfg *config.Tracker) *Scheduler {
	return &Scheduler{
		Queues:   queues,
		Torrents: torrents,
		Users:    users,
		DB:       db,
		Config:   cfg,
	}
}

// Run blocks, ticking once a second, until ctx is cancelled. Every
// flush_interval ticks it flushes the update queues; every
// peer_expiry_interval ticks it reaps inactive peers.
func (s *Scheduler) Run(ctx context.Context) {
	flushEvery := seconds(s.Config.FlushInterval)
	reapEvery := seconds(s.Config.PeerExpiryInterval)

	util.ContextTick(ctx, time.Second, func() {
		s.counter++

		if s.counter%flushEvery == 0 {
			s.flush()
		}

		if s.counter%reapEvery == 0 {
			s.reap()
		}
	})
}

func seconds(d time.Duration) uint64 {
	n := uint64(d.Seconds())
	if n == 0 {
		return 1
	}

	return n
}
