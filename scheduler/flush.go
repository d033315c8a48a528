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
	"sync"
	"time"

	"privateannounce/collectors"
	"privateannounce/log"
	"privateannounce/queue"
)

// Flush runs one flush pass immediately, outside the tick loop. Used
// to drain the queues one last time during graceful shutdown so the
// final in-flight updates aren't lost between the last tick and the
// process exiting.
func (s *Scheduler) Flush() {
	s.flush()
}

// flush drains every update queue concurrently and sends each table's
// batches to the database, re-queuing whatever a failed flush drained
// so the next tick retries it.
func (s *Scheduler) flush() {
	var wg sync.WaitGroup

	wg.Add(7)

	go func() { defer wg.Done(); s.flushPeers() }()
	go func() { defer wg.Done(); s.flushHistories() }()
	go func() { defer wg.Done(); s.flushTorrents() }()
	go func() { defer wg.Done(); s.flushUsers() }()
	go func() { defer wg.Done(); s.flushUnregisteredInfoHashes() }()
	go func() { defer wg.Done(); s.flushAnnounces() }()
	go func() { defer wg.Done(); s.flushPeerDeletions() }()

	wg.Wait()
}

func (s *Scheduler) flushPeers() {
	for _, batch := range s.Queues.Peers.TakeBatches(s.Config.MaxBatchesPerFlush) {
		collectors.UpdateChannelsLen("peers", len(batch))

		start := time.Now()

		if err := s.DB.FlushPeers(batch); err != nil {
			log.Error.Printf("peer update flush failed: %v", err)
			s.Queues.Peers.UpsertBatch(batch)

			continue
		}

		collectors.UpdateFlushTime("peers", time.Since(start))
	}
}

func (s *Scheduler) flushHistories() {
	seedtimeTTL := s.Config.ActivePeerTTL + s.Config.PeerExpiryInterval

	for _, batch := range s.Queues.Histories.TakeBatches(s.Config.MaxBatchesPerFlush) {
		collectors.UpdateChannelsLen("histories", len(batch))

		start := time.Now()

		if err := s.DB.FlushHistories(batch, seedtimeTTL); err != nil {
			log.Error.Printf("history update flush failed: %v", err)
			s.Queues.Histories.UpsertBatch(batch)

			continue
		}

		collectors.UpdateFlushTime("histories", time.Since(start))
	}
}

func (s *Scheduler) flushTorrents() {
	for _, batch := range s.Queues.Torrents.TakeBatches(s.Config.MaxBatchesPerFlush) {
		collectors.UpdateChannelsLen("torrents", len(batch))

		start := time.Now()

		if err := s.DB.FlushTorrents(batch); err != nil {
			log.Error.Printf("torrent update flush failed: %v", err)
			s.Queues.Torrents.UpsertBatch(batch)

			continue
		}

		collectors.UpdateFlushTime("torrents", time.Since(start))
	}
}

func (s *Scheduler) flushUsers() {
	for _, batch := range s.Queues.Users.TakeBatches(s.Config.MaxBatchesPerFlush) {
		collectors.UpdateChannelsLen("users", len(batch))

		start := time.Now()

		if err := s.DB.FlushUsers(batch); err != nil {
			log.Error.Printf("user update flush failed: %v", err)
			s.Queues.Users.UpsertBatch(batch)

			continue
		}

		collectors.UpdateFlushTime("users", time.Since(start))
	}
}

func (s *Scheduler) flushUnregisteredInfoHashes() {
	for _, batch := range s.Queues.UnregisteredInfoHashes.TakeBatches(s.Config.MaxBatchesPerFlush) {
		start := time.Now()

		if err := s.DB.FlushUnregisteredInfoHashes(batch); err != nil {
			log.Error.Printf("unregistered info_hash flush failed: %v", err)
			s.Queues.UnregisteredInfoHashes.UpsertBatch(batch)

			continue
		}

		collectors.UpdateFlushTime("unregistered_info_hashes", time.Since(start))
	}
}

func (s *Scheduler) flushAnnounces() {
	batch := s.Queues.Announces.TakeBatch()
	if len(batch) == 0 {
		return
	}

	start := time.Now()

	if err := s.DB.FlushAnnounces(batch); err != nil {
		log.Error.Printf("announce update flush failed: %v", err)
		s.Queues.Announces.UpsertBatch(batch)

		return
	}

	collectors.UpdateFlushTime("announces", time.Since(start))
}

func (s *Scheduler) flushPeerDeletions() {
	batch := s.Queues.PeerDeletions.TakeBatch()
	if len(batch) == 0 {
		return
	}

	start := time.Now()

	if err := s.DB.FlushPeerDeletions(batch); err != nil {
		log.Error.Printf("peer deletion flush failed: %v", err)
		s.Queues.PeerDeletions.UpsertBatch(batch)

		return
	}

	collectors.UpdateFlushTime("peer_deletions", time.Since(start))
}
