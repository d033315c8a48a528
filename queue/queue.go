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

// Package queue holds the in-memory update queues that sit between the
// announce pipeline and the database: every accounting effect of an
// announce is coalesced here under its natural primary key instead of
// being written to the database immediately, and is flushed in bounded
// batches by the scheduler.
package queue

import (
	"sort"
	"sync"
)

// Mergeable folds a newer update for the same key into an older,
// still-unflushed one. Implementations decide per field whether the
// newer value wins outright, is summed into a running delta, or is
// combined with min/max (see each concrete update type).
type Mergeable[V any] interface {
	Merge(newer V) V
}

// Config bounds how many records a single flush may contain, mirroring
// the column/placeholder limit of a single batched SQL statement.
type Config struct {
	// MaxBindingsPerFlush is the database driver's placeholder ceiling
	// for one statement (MySQL's default is 65535).
	MaxBindingsPerFlush int
	// BindingsPerRecord is how many placeholders one record's INSERT
	// tuple consumes.
	BindingsPerRecord int
	// ExtraBindingsPerFlush accounts for placeholders outside the
	// per-record tuples (e.g. a shared TTL bound once per statement).
	ExtraBindingsPerFlush int
	// MaxRecordsPerBatch further caps batch size below the binding
	// ceiling when set to a positive value; 0 means no extra cap.
	MaxRecordsPerBatch int
}

// MaxBatchSize is the largest number of records one flush can carry
// without exceeding the configured binding budget.
func (c Config) MaxBatchSize() int {
	max := (c.MaxBindingsPerFlush - c.ExtraBindingsPerFlush) / c.BindingsPerRecord
	if c.MaxRecordsPerBatch > 0 && c.MaxRecordsPerBatch < max {
		return c.MaxRecordsPerBatch
	}

	return max
}

// Record pairs a key with its coalesced value, in the order batches
// hand them to a flush.
type Record[K comparable, V any] struct {
	Key   K
	Value V
}

// Batch is a bounded, primary-key-sorted slice of records ready to be
// flushed in a single statement.
type Batch[K comparable, V any] []Record[K, V]

// Queue is an insertion-ordered map from K to V. Upserting an existing
// key merges in place and does not change its position in the
// insertion order, so TakeBatches always drains the oldest unflushed
// updates first.
type Queue[K comparable, V Mergeable[V]] struct {
	mu     sync.Mutex
	order  []K
	values map[K]V
	config Config
	less   func(a, b K) bool
}

// New builds an empty Queue. less must impose the same ordering as the
// table's primary key so concurrent flushes touch rows in a consistent
// order and avoid deadlocking against each other.
func New[K comparable, V Mergeable[V]](config Config, less func(a, b K) bool) *Queue[K, V] {
	return &Queue[K, V]{
		values: make(map[K]V),
		config: config,
		less:   less,
	}
}

// Upsert folds v into the queue under key k, merging with any
// already-queued value for the same key.
func (q *Queue[K, V]) Upsert(k K, v V) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.upsertLocked(k, v)
}

func (q *Queue[K, V]) upsertLocked(k K, v V) {
	if existing, ok := q.values[k]; ok {
		q.values[k] = existing.Merge(v)
		return
	}

	q.values[k] = v
	q.order = append(q.order, k)
}

// UpsertBatch re-queues every record of a batch, used to recover a
// batch that failed to flush without losing the coalescing the queue
// would otherwise have done for it.
func (q *Queue[K, V]) UpsertBatch(b Batch[K, V]) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, r := range b {
		q.upsertLocked(r.Key, r.Value)
	}
}

// Len reports how many distinct keys are currently queued.
func (q *Queue[K, V]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	return len(q.order)
}

// IsEmpty reports whether the queue has nothing to flush.
func (q *Queue[K, V]) IsEmpty() bool {
	return q.Len() == 0
}

// TakeBatches drains up to maxBatches*MaxBatchSize of the oldest
// queued records, sorts them by primary key, and splits them into
// MaxBatchSize-sized batches ready for concurrent flushing.
func (q *Queue[K, V]) TakeBatches(maxBatches int) []Batch[K, V] {
	q.mu.Lock()

	maxBatchSize := q.config.MaxBatchSize()
	if maxBatchSize <= 0 {
		q.mu.Unlock()
		return nil
	}

	n := maxBatches * maxBatchSize
	if n > len(q.order) {
		n = len(q.order)
	}

	keys := make([]K, n)
	copy(keys, q.order[:n])
	q.order = q.order[n:]

	records := make([]Record[K, V], 0, n)

	for _, k := range keys {
		records = append(records, Record[K, V]{Key: k, Value: q.values[k]})
		delete(q.values, k)
	}

	q.mu.Unlock()

	if len(records) == 0 {
		return nil
	}

	sort.Slice(records, func(i, j int) bool { return q.less(records[i].Key, records[j].Key) })

	batches := make([]Batch[K, V], 0, (len(records)+maxBatchSize-1)/maxBatchSize)

	for len(records) > 0 {
		size := maxBatchSize
		if size > len(records) {
			size = len(records)
		}

		batches = append(batches, Batch[K, V](records[:size]))
		records = records[size:]
	}

	return batches
}
