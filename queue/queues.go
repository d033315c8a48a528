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

const maxBindingsPerFlush = 65535

// Queues bundles every update queue the scheduler flushes each tick.
// Bindings-per-record is at least the column count of each table's
// INSERT ... ON DUPLICATE KEY UPDATE statement (torrents and users
// reserve more than they bind), and bounds batch size so a single
// flush never exceeds the driver's placeholder ceiling.
type Queues struct {
	Peers                  *Queue[PeerIndex, PeerUpdate]
	Histories              *Queue[HistoryIndex, HistoryUpdate]
	Torrents               *Queue[TorrentIndex, TorrentUpdate]
	Users                  *Queue[UserIndex, UserUpdate]
	UnregisteredInfoHashes *Queue[UnregisteredInfoHashIndex, UnregisteredInfoHashUpdate]
	Announces              *AnnounceLog
	PeerDeletions          *PeerDeletionQueue
}

// NewQueues constructs every queue with the binding budget its table's
// INSERT statement needs. maxRecordsPerBatch is an optional operator
// override (0 disables it) used to keep individual flush statements
// smaller than the hard binding ceiling, e.g. to bound lock hold time.
func NewQueues(maxRecordsPerBatch int) *Queues {
	return &Queues{
		Peers: New[PeerIndex, PeerUpdate](Config{
			MaxBindingsPerFlush: maxBindingsPerFlush,
			BindingsPerRecord:   15,
			MaxRecordsPerBatch:  maxRecordsPerBatch,
		}, PeerIndexLess),
		Histories: New[HistoryIndex, HistoryUpdate](Config{
			MaxBindingsPerFlush:   maxBindingsPerFlush,
			BindingsPerRecord:     16,
			ExtraBindingsPerFlush: 1, // the shared seedtime-TTL bound
			MaxRecordsPerBatch:    maxRecordsPerBatch,
		}, HistoryIndexLess),
		Torrents: New[TorrentIndex, TorrentUpdate](Config{
			MaxBindingsPerFlush: maxBindingsPerFlush,
			BindingsPerRecord:   15,
			MaxRecordsPerBatch:  maxRecordsPerBatch,
		}, TorrentIndexLess),
		Users: New[UserIndex, UserUpdate](Config{
			MaxBindingsPerFlush: maxBindingsPerFlush,
			BindingsPerRecord:   9,
			MaxRecordsPerBatch:  maxRecordsPerBatch,
		}, UserIndexLess),
		UnregisteredInfoHashes: New[UnregisteredInfoHashIndex, UnregisteredInfoHashUpdate](Config{
			MaxBindingsPerFlush: maxBindingsPerFlush,
			BindingsPerRecord:   4,
			MaxRecordsPerBatch:  maxRecordsPerBatch,
		}, UnregisteredInfoHashIndexLess),
		Announces: NewAnnounceLog(Config{
			MaxBindingsPerFlush: maxBindingsPerFlush,
			BindingsPerRecord:   12,
			MaxRecordsPerBatch:  maxRecordsPerBatch,
		}),
		PeerDeletions: NewPeerDeletionQueue(Config{
			MaxBindingsPerFlush: maxBindingsPerFlush,
			BindingsPerRecord:   3,
			MaxRecordsPerBatch:  maxRecordsPerBatch,
		}),
	}
}

// AreNotEmpty reports whether any queue has work waiting, used by the
// scheduler to skip a flush tick entirely when there is nothing to do.
func (q *Queues) AreNotEmpty() bool {
	return !q.Peers.IsEmpty() ||
		!q.Histories.IsEmpty() ||
		!q.Torrents.IsEmpty() ||
		!q.Users.IsEmpty() ||
		!q.UnregisteredInfoHashes.IsEmpty() ||
		!q.Announces.IsEmpty() ||
		!q.PeerDeletions.IsEmpty()
}
