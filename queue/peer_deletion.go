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

package queue

import (
	"sync"

	"privateannounce/store"
)

// PeerDeletion identifies one row to remove from the peers table once
// the reap pass has decided a peer is gone for good, or a stopped
// announce has removed it from its torrent.
type PeerDeletion struct {
	TorrentID uint32
	UserID    uint32
	PeerID    store.PeerID
}

// PeerDeletionQueue is a dedup set: reaping the same peer twice before
// a flush only produces one DELETE row.
type PeerDeletionQueue struct {
	mu     sync.Mutex
	order  []PeerDeletion
	seen   map[PeerDeletion]struct{}
	config Config
}

func NewPeerDeletionQueue(config Config) *PeerDeletionQueue {
	return &PeerDeletionQueue{
		seen:   make(map[PeerDeletion]struct{}),
		config: config,
	}
}

func (q *PeerDeletionQueue) Add(d PeerDeletion) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.addLocked(d)
}

func (q *PeerDeletionQueue) addLocked(d PeerDeletion) {
	if _, ok := q.seen[d]; ok {
		return
	}

	q.seen[d] = struct{}{}
	q.order = append(q.order, d)
}

func (q *PeerDeletionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.order)
}

func (q *PeerDeletionQueue) IsEmpty() bool {
	return q.Len() == 0
}

func (q *PeerDeletionQueue) TakeBatch() []PeerDeletion {
	q.mu.Lock()
	defer q.mu.Unlock()

	max := q.config.MaxBatchSize()
	if max > len(q.order) {
		max = len(q.order)
	}

	batch := make([]PeerDeletion, max)
	copy(batch, q.order[:max])
	q.order = q.order[max:]

	for _, d := range batch {
		delete(q.seen, d)
	}

	return batch
}

func (q *PeerDeletionQueue) UpsertBatch(batch []PeerDeletion) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, d := range batch {
		q.addLocked(d)
	}
}
