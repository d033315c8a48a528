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
	"time"

	"privateannounce/store"
)

// Event is the announce event a client reports, as it appears in the
// announces audit table.
type Event string

const (
	EventEmpty     Event = ""
	EventStarted   Event = "started"
	EventStopped   Event = "stopped"
	EventCompleted Event = "completed"
)

// AnnounceUpdate is one immutable audit-log row: every announce
// appends one, none are ever merged with another.
type AnnounceUpdate struct {
	UserID     uint32
	TorrentID  uint32
	Uploaded   uint64
	Downloaded uint64
	Left       uint64
	Corrupt    *uint64
	PeerID     store.PeerID
	Port       uint16
	NumWant    uint16
	CreatedAt  time.Time
	Event      Event
	Key        string
}

// AnnounceLog is an append-only queue: unlike Queue it never coalesces
// records under a key, since every announce is its own audit entry.
type AnnounceLog struct {
	mu      sync.Mutex
	records []AnnounceUpdate
	config  Config
}

func NewAnnounceLog(config Config) *AnnounceLog {
	return &AnnounceLog{config: config}
}

func (l *AnnounceLog) Append(u AnnounceUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(l.records, u)
}

func (l *AnnounceLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	return len(l.records)
}

func (l *AnnounceLog) IsEmpty() bool {
	return l.Len() == 0
}

// TakeBatch drains up to one MaxBatchSize worth of the oldest queued
// announces.
func (l *AnnounceLog) TakeBatch() []AnnounceUpdate {
	l.mu.Lock()
	defer l.mu.Unlock()

	max := l.config.MaxBatchSize()
	if max > len(l.records) {
		max = len(l.records)
	}

	batch := make([]AnnounceUpdate, max)
	copy(batch, l.records[:max])
	l.records = l.records[max:]

	return batch
}

// UpsertBatch re-queues a batch that failed to flush, appending it
// ahead of anything queued since.
func (l *AnnounceLog) UpsertBatch(batch []AnnounceUpdate) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append(batch, l.records...)
}
