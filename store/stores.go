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

import (
	"io"
	"strings"
	"sync"
	"time"

	"privateannounce/rate"
)

// TorrentStore is the read-heavy map from torrent_id to Torrent, plus
// the info_hash index. Looking up which torrent to lock requires only
// the RLock; mutating a torrent's swarm is then serialised by that
// Torrent's own peer lock (§4.5, §9 of the design).
type TorrentStore struct {
	mu       sync.RWMutex
	torrents map[uint32]*Torrent
	byHash   map[InfoHash]uint32
}

func NewTorrentStore() *TorrentStore {
	return &TorrentStore{
		torrents: make(map[uint32]*Torrent),
		byHash:   make(map[InfoHash]uint32),
	}
}

func (s *TorrentStore) Get(id uint32) (*Torrent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.torrents[id]

	return t, ok
}

func (s *TorrentStore) GetByInfoHash(h InfoHash) (*Torrent, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byHash[h]
	if !ok {
		return nil, false
	}

	t, ok := s.torrents[id]

	return t, ok
}

// Upsert replaces moderation metadata and factors but preserves any
// peer map already present for this torrent_id (§4.5).
func (s *TorrentStore) Upsert(id uint32, infoHash InfoHash, status Status, isDeleted bool, upFactor, downFactor uint8) *Torrent {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, exists := s.torrents[id]
	if !exists {
		t = NewTorrent(id, infoHash)
		s.torrents[id] = t
	} else {
		delete(s.byHash, t.InfoHash)
		t.InfoHash = infoHash
	}

	t.Status.Store(uint32(status))
	t.IsDeleted.Store(isDeleted)
	t.UploadFactor.Store(uint32(upFactor))
	t.DownloadFactor.Store(uint32(downFactor))
	s.byHash[infoHash] = id

	return t
}

// Delete soft-deletes: peers are left in place, reap does not prune the
// entry itself (§9).
func (s *TorrentStore) Delete(id uint32) bool {
	s.mu.RLock()
	t, ok := s.torrents[id]
	s.mu.RUnlock()

	if !ok {
		return false
	}

	t.IsDeleted.Store(true)

	return true
}

func (s *TorrentStore) Range(f func(id uint32, t *Torrent) bool) {
	s.mu.RLock()
	torrents := make([]*Torrent, 0, len(s.torrents))
	for _, t := range s.torrents {
		torrents = append(torrents, t)
	}
	s.mu.RUnlock()

	for _, t := range torrents {
		if !f(t.ID, t) {
			return
		}
	}
}

func (s *TorrentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.torrents)
}

// Snapshot writes every torrent to a warm-restart cache file.
func (s *TorrentStore) Snapshot(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return WriteTorrents(w, s.torrents)
}

// LoadSnapshot replaces the store's contents with the contents of a
// cache file written by Snapshot. Intended for use before the store is
// exposed to any other goroutine (i.e. during startup).
func (s *TorrentStore) LoadSnapshot(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return LoadTorrents(r, s.torrents, s.byHash)
}

// UserStore is the read-heavy map from user_id to User plus the passkey
// index; both are mutated together so a passkey rotation is atomic.
type UserStore struct {
	mu         sync.RWMutex
	users      map[uint32]*User
	byPasskey  map[Passkey]uint32
}

func NewUserStore() *UserStore {
	return &UserStore{
		users:     make(map[uint32]*User),
		byPasskey: make(map[Passkey]uint32),
	}
}

func (s *UserStore) Get(id uint32) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	u, ok := s.users[id]

	return u, ok
}

func (s *UserStore) GetByPasskey(p Passkey) (*User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byPasskey[p]
	if !ok {
		return nil, false
	}

	u, ok := s.users[id]

	return u, ok
}

// Upsert preserves existing rate collections if the user already
// existed (§4.5); defaultSeedRates/defaultLeechRates seed fresh
// collections for brand new users and for an existing user that has
// none.
func (s *UserStore) Upsert(u *User, defaultSeedRates, defaultLeechRates *rate.Collection) *User {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.users[u.ID]
	if ok {
		delete(s.byPasskey, existing.Passkey)
		u.ReceiveSeedListRates = existing.ReceiveSeedListRates
		u.ReceiveLeechListRates = existing.ReceiveLeechListRates
		u.NumSeeding = existing.NumSeeding
		u.NumLeeching = existing.NumLeeching

		// A user restored from the warm-restart cache has no collections yet.
		if u.ReceiveSeedListRates == nil {
			u.ReceiveSeedListRates = defaultSeedRates.Clone()
		}

		if u.ReceiveLeechListRates == nil {
			u.ReceiveLeechListRates = defaultLeechRates.Clone()
		}
	} else {
		u.ReceiveSeedListRates = defaultSeedRates.Clone()
		u.ReceiveLeechListRates = defaultLeechRates.Clone()
	}

	s.users[u.ID] = u
	s.byPasskey[u.Passkey] = u.ID

	return u
}

// WithUser runs f with the store's write lock held, allowing O(1)
// counter and rate mutation as required by the concurrency model (§5).
func (s *UserStore) WithUser(id uint32, f func(u *User)) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return false
	}

	f(u)

	return true
}

func (s *UserStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.users)
}

// Snapshot writes every user to a warm-restart cache file. Rate
// collections are not persisted (see WriteUsers).
func (s *UserStore) Snapshot(w io.Writer) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return WriteUsers(w, s.users)
}

// LoadSnapshot replaces the store's contents with the contents of a
// cache file written by Snapshot. Intended for use before the store is
// exposed to any other goroutine (i.e. during startup).
func (s *UserStore) LoadSnapshot(r io.Reader) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return LoadUsers(r, s.users, s.byPasskey)
}

// GroupStore is the small read-heavy map of user groups.
type GroupStore struct {
	mu     sync.RWMutex
	groups map[uint32]*Group
}

func NewGroupStore() *GroupStore {
	return &GroupStore{groups: make(map[uint32]*Group)}
}

func (s *GroupStore) Get(id uint32) (*Group, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	g, ok := s.groups[id]

	return g, ok
}

func (s *GroupStore) Upsert(g *Group) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.groups[g.ID] = g
}

func (s *GroupStore) Delete(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.groups, id)
}

// AgentBlacklist holds blocked peer_id prefixes, guarded by an RWMutex
// because it is read on every announce and written only from admin.
type AgentBlacklist struct {
	mu       sync.RWMutex
	prefixes []string
}

func NewAgentBlacklist() *AgentBlacklist {
	return &AgentBlacklist{}
}

func (b *AgentBlacklist) IsBlacklisted(peerID PeerID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	s := string(peerID[:])
	for _, prefix := range b.prefixes {
		if strings.HasPrefix(s, prefix) {
			return true
		}
	}

	return false
}

func (b *AgentBlacklist) Add(prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prefixes = append(b.prefixes, prefix)
}

func (b *AgentBlacklist) Remove(prefix string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, p := range b.prefixes {
		if p == prefix {
			b.prefixes = append(b.prefixes[:i], b.prefixes[i+1:]...)
			return
		}
	}
}

// Reset replaces the whole prefix list at once, used by the periodic
// reload so a prefix removed from the database stops being blacklisted.
func (b *AgentBlacklist) Reset(prefixes []string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.prefixes = prefixes
}

// PortBlacklist holds ports that are rejected outright (except on a
// stopped event, which is always let through leniently per §4.1 step 4).
type PortBlacklist struct {
	mu    sync.RWMutex
	ports map[uint16]struct{}
}

func NewPortBlacklist() *PortBlacklist {
	return &PortBlacklist{ports: make(map[uint16]struct{})}
}

func (b *PortBlacklist) IsBlacklisted(port uint16) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()

	_, ok := b.ports[port]

	return ok
}

func (b *PortBlacklist) Add(port uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.ports[port] = struct{}{}
}

func (b *PortBlacklist) Remove(port uint16) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.ports, port)
}

// PairSet is a generic presence set keyed by a (user, torrent) pair,
// used for freeleech tokens and any other per-pair ancillary flag.
type PairSet struct {
	mu   sync.RWMutex
	keys map[UserTorrentPair]struct{}
}

func NewPairSet() *PairSet {
	return &PairSet{keys: make(map[UserTorrentPair]struct{})}
}

func (s *PairSet) Has(userID, torrentID uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.keys[UserTorrentPair{UserID: userID, TorrentID: torrentID}]

	return ok
}

func (s *PairSet) Add(userID, torrentID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys[UserTorrentPair{UserID: userID, TorrentID: torrentID}] = struct{}{}
}

func (s *PairSet) Remove(userID, torrentID uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.keys, UserTorrentPair{UserID: userID, TorrentID: torrentID})
}

// Reset replaces the whole set at once, used by the periodic reload.
func (s *PairSet) Reset(pairs []UserTorrentPair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.keys = make(map[UserTorrentPair]struct{}, len(pairs))
	for _, p := range pairs {
		s.keys[p] = struct{}{}
	}
}

// IDSet is a generic presence set keyed by a single uint32 id, used for
// per-user personal-freeleech and per-torrent featured flags.
type IDSet struct {
	mu  sync.RWMutex
	ids map[uint32]struct{}
}

func NewIDSet() *IDSet {
	return &IDSet{ids: make(map[uint32]struct{})}
}

func (s *IDSet) Has(id uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.ids[id]

	return ok
}

func (s *IDSet) Add(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids[id] = struct{}{}
}

func (s *IDSet) Remove(id uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.ids, id)
}

// Reset replaces the whole set at once, used by the periodic reload.
func (s *IDSet) Reset(ids []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ids = make(map[uint32]struct{}, len(ids))
	for _, id := range ids {
		s.ids[id] = struct{}{}
	}
}

// ConnectablePortCache is the TTL cache backing the connectivity probe
// (§4.6), keyed by the socket address the peer announced.
type ConnectablePortCache struct {
	mu      sync.RWMutex
	entries map[string]connectableEntry
}

type connectableEntry struct {
	connectable bool
	updatedAt   time.Time
}

func NewConnectablePortCache() *ConnectablePortCache {
	return &ConnectablePortCache{entries: make(map[string]connectableEntry)}
}

func (c *ConnectablePortCache) Get(key string, ttl time.Duration, now time.Time) (connectable, fresh bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[key]
	if !ok {
		return false, false
	}

	if now.Sub(e.updatedAt) > ttl {
		return false, false
	}

	return e.connectable, true
}

func (c *ConnectablePortCache) Set(key string, connectable bool, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[key] = connectableEntry{connectable: connectable, updatedAt: now}
}
