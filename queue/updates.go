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
	"bytes"
	"math"
	"net"
	"time"

	"privateannounce/store"
)

func minTime(a, b time.Time) time.Time {
	if b.Before(a) {
		return b
	}

	return a
}

func saturatingAddInt32(a, b int32) int32 {
	sum := int64(a) + int64(b)

	switch {
	case sum > math.MaxInt32:
		return math.MaxInt32
	case sum < math.MinInt32:
		return math.MinInt32
	default:
		return int32(sum)
	}
}

func saturatingAddUint32(a, b uint32) uint32 {
	sum := uint64(a) + uint64(b)
	if sum > math.MaxUint32 {
		return math.MaxUint32
	}

	return uint32(sum)
}

// saturatingAddInt64 clamps at the int64 bounds instead of wrapping,
// since balance deltas are summed across every flush interval for the
// life of a torrent.
func saturatingAddInt64(a, b int64) int64 {
	sum := a + b

	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		if b > 0 {
			return math.MaxInt64
		}

		return math.MinInt64
	}

	return sum
}

// PeerIndex is the primary key of the peers table: (user_id,
// torrent_id, peer_id), in that order to match the field order the
// Less comparator sorts by.
type PeerIndex struct {
	UserID    uint32
	TorrentID uint32
	PeerID    store.PeerID
}

func PeerIndexLess(a, b PeerIndex) bool {
	if a.UserID != b.UserID {
		return a.UserID < b.UserID
	}

	if a.TorrentID != b.TorrentID {
		return a.TorrentID < b.TorrentID
	}

	return bytes.Compare(a.PeerID[:], b.PeerID[:]) < 0
}

// PeerUpdate upserts the current snapshot of one swarm member.
type PeerUpdate struct {
	IP            net.IP
	Port          uint16
	Agent         string
	Uploaded      uint64
	Downloaded    uint64
	Left          uint64
	IsActive      bool
	IsSeeder      bool
	IsVisible     bool
	Connectable   bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Merge keeps whichever snapshot is newer (the incoming one when both
// share an UpdatedAt) and widens CreatedAt to the
// earliest one seen, so a peer's first-seen time survives coalescing.
func (u PeerUpdate) Merge(newer PeerUpdate) PeerUpdate {
	merged := u

	if !newer.UpdatedAt.Before(u.UpdatedAt) {
		merged = newer
	}

	merged.CreatedAt = minTime(u.CreatedAt, newer.CreatedAt)

	return merged
}

// HistoryIndex is the primary key of the history table.
type HistoryIndex struct {
	UserID    uint32
	TorrentID uint32
}

func HistoryIndexLess(a, b HistoryIndex) bool {
	if a.UserID != b.UserID {
		return a.UserID < b.UserID
	}

	return a.TorrentID < b.TorrentID
}

// HistoryUpdate accumulates one user's lifetime credit against one
// torrent; the deltas are summed so a flush failure followed by a
// re-queue never double counts or loses a credited byte.
type HistoryUpdate struct {
	UserAgent  string
	IsActive   bool
	IsSeeder   bool
	IsImmune   bool
	Uploaded   uint64
	Downloaded uint64

	UploadedDelta           uint64
	DownloadedDelta         uint64
	CreditedUploadedDelta   uint64
	CreditedDownloadedDelta uint64

	CompletedAt *time.Time
}

func (u HistoryUpdate) Merge(newer HistoryUpdate) HistoryUpdate {
	merged := newer
	merged.UploadedDelta = u.UploadedDelta + newer.UploadedDelta
	merged.DownloadedDelta = u.DownloadedDelta + newer.DownloadedDelta
	merged.CreditedUploadedDelta = u.CreditedUploadedDelta + newer.CreditedUploadedDelta
	merged.CreditedDownloadedDelta = u.CreditedDownloadedDelta + newer.CreditedDownloadedDelta

	if merged.CompletedAt == nil {
		merged.CompletedAt = u.CompletedAt
	}

	return merged
}

// TorrentIndex is the primary key of the torrents table.
type TorrentIndex struct {
	TorrentID uint32
}

func TorrentIndexLess(a, b TorrentIndex) bool {
	return a.TorrentID < b.TorrentID
}

// TorrentUpdate accumulates the net swarm-size and completion deltas
// produced by announces and by the scheduler's reap pass.
type TorrentUpdate struct {
	SeederDelta         int32
	LeecherDelta        int32
	TimesCompletedDelta uint32
	BalanceDelta        int64
}

func (u TorrentUpdate) Merge(newer TorrentUpdate) TorrentUpdate {
	return TorrentUpdate{
		SeederDelta:         saturatingAddInt32(u.SeederDelta, newer.SeederDelta),
		LeecherDelta:        saturatingAddInt32(u.LeecherDelta, newer.LeecherDelta),
		TimesCompletedDelta: saturatingAddUint32(u.TimesCompletedDelta, newer.TimesCompletedDelta),
		BalanceDelta:        saturatingAddInt64(u.BalanceDelta, newer.BalanceDelta),
	}
}

// UserIndex is the primary key of the users table.
type UserIndex struct {
	UserID uint32
}

func UserIndexLess(a, b UserIndex) bool {
	return a.UserID < b.UserID
}

// UserUpdate accumulates a user's lifetime upload/download totals.
// Deltas are summed (saturating at the uint64 maximum) rather than
// overwritten so that two announces queued before a single flush both
// survive it.
type UserUpdate struct {
	UploadedDelta   uint64
	DownloadedDelta uint64
}

func (u UserUpdate) Merge(newer UserUpdate) UserUpdate {
	merged := UserUpdate{
		UploadedDelta:   u.UploadedDelta + newer.UploadedDelta,
		DownloadedDelta: u.DownloadedDelta + newer.DownloadedDelta,
	}

	if merged.UploadedDelta < u.UploadedDelta {
		merged.UploadedDelta = math.MaxUint64
	}

	if merged.DownloadedDelta < u.DownloadedDelta {
		merged.DownloadedDelta = math.MaxUint64
	}

	return merged
}

// UnregisteredInfoHashIndex is the primary key of the
// unregistered_info_hashes table, which logs announces against
// torrents the tracker has no record of (§4.1 validation).
type UnregisteredInfoHashIndex struct {
	UserID   uint32
	InfoHash store.InfoHash
}

func UnregisteredInfoHashIndexLess(a, b UnregisteredInfoHashIndex) bool {
	if a.UserID != b.UserID {
		return a.UserID < b.UserID
	}

	return bytes.Compare(a.InfoHash[:], b.InfoHash[:]) < 0
}

type UnregisteredInfoHashUpdate struct {
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (u UnregisteredInfoHashUpdate) Merge(newer UnregisteredInfoHashUpdate) UnregisteredInfoHashUpdate {
	merged := u

	if newer.UpdatedAt.After(u.UpdatedAt) {
		merged.UpdatedAt = newer.UpdatedAt
	}

	merged.CreatedAt = minTime(u.CreatedAt, newer.CreatedAt)

	return merged
}
