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

package store

import "privateannounce/rate"

// User is guarded entirely by its owning UserStore's lock; fields are
// plain, matching the O(1)-under-lock contract in the concurrency
// design (rate ticks and seed/leech counters are always updated while
// the store write lock is held).
type User struct {
	ID       uint32
	GroupID  uint32
	Passkey  Passkey
	Deleted  bool

	CanDownload bool
	IsDonor     bool
	IsLifetime  bool

	NumSeeding  uint32
	NumLeeching uint32

	ReceiveSeedListRates  *rate.Collection
	ReceiveLeechListRates *rate.Collection
}

// UserCacheFile is the filename used by the periodic serializer.
var UserCacheFile = "user-cache"

// UserCacheVersion distinguishes on-disk cache layouts.
const UserCacheVersion = 1

type UserTorrentPair struct {
	UserID    uint32
	TorrentID uint32
}
