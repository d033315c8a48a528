package store

import (
	"bytes"
	"net"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"privateannounce/rate"
)

func TestPeerKeyRoundTrip(t *testing.T) {
	peerID := PeerIDFromBytes(bytes.Repeat([]byte{0xAB}, PeerIDSize))

	k := NewPeerKey(42, peerID)

	if got := k.UserID(); got != 42 {
		t.Fatalf("UserID() = %d, want 42", got)
	}

	if got := k.PeerID(); got != peerID {
		t.Fatalf("PeerID() = %x, want %x", got, peerID)
	}
}

func TestInfoHashFromHex(t *testing.T) {
	want := InfoHashFromBytes(bytes.Repeat([]byte{0x01}, InfoHashSize))

	got, err := InfoHashFromHex(want.String())
	if err != nil {
		t.Fatalf("InfoHashFromHex: %v", err)
	}

	if got != want {
		t.Fatalf("got %x, want %x", got, want)
	}

	if _, err := InfoHashFromHex("too-short"); err == nil {
		t.Fatalf("expected error for short hex string")
	}
}

func TestPasskeyFromString(t *testing.T) {
	valid := "abcdefghijklmnopqrstuvwxyzABCDEF"
	if len(valid) != PasskeySize {
		t.Fatalf("fixture passkey is %d chars, want %d", len(valid), PasskeySize)
	}

	if _, err := PasskeyFromString(valid); err != nil {
		t.Fatalf("expected valid passkey to parse: %v", err)
	}

	if _, err := PasskeyFromString("too-short"); err == nil {
		t.Fatalf("expected error for short passkey")
	}

	if _, err := PasskeyFromString(valid[:len(valid)-1] + "!"); err == nil {
		t.Fatalf("expected error for non-alphanumeric passkey")
	}
}

func TestPeerAppendLoadRoundTrip(t *testing.T) {
	original := &Peer{
		IP:            net.ParseIP("203.0.113.9").To4(),
		Port:          6881,
		Uploaded:      123456,
		Downloaded:    7890,
		Left:          0,
		UpdatedAt:     1700000000,
		TorrentID:     7,
		UserID:        99,
		ID:            PeerIDFromBytes(bytes.Repeat([]byte{0x42}, PeerIDSize)),
		IsSeeder:      true,
		IsActive:      true,
		IsVisible:     true,
		IsConnectable: false,
	}

	buf := original.Append(nil)

	got := &Peer{}
	if err := got.Load(bytes.NewReader(buf)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if diff := cmp.Diff(original.IP.String(), got.IP.String()); diff != "" {
		t.Fatalf("IP mismatch (-want +got):\n%s", diff)
	}

	got.IP = original.IP

	if diff := cmp.Diff(original, got); diff != "" {
		t.Fatalf("Peer round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestPeerCompactAddresses(t *testing.T) {
	v4 := &Peer{IP: net.ParseIP("198.51.100.7"), Port: 51413}

	buf4, ok := v4.CompactIPv4()
	if !ok {
		t.Fatalf("expected CompactIPv4 to succeed for an IPv4 address")
	}

	if _, ok := v4.CompactIPv6(); ok {
		t.Fatalf("expected CompactIPv6 to fail for an IPv4 address")
	}

	want4 := [6]byte{198, 51, 100, 7, 0xC8, 0xD5}
	if buf4 != want4 {
		t.Fatalf("CompactIPv4() = %v, want %v", buf4, want4)
	}

	v6 := &Peer{IP: net.ParseIP("2001:db8::1"), Port: 6881}

	if _, ok := v6.CompactIPv4(); ok {
		t.Fatalf("expected CompactIPv4 to fail for an IPv6 address")
	}

	buf6, ok := v6.CompactIPv6()
	if !ok {
		t.Fatalf("expected CompactIPv6 to succeed for an IPv6 address")
	}

	if buf6[15] != 1 {
		t.Fatalf("unexpected CompactIPv6 payload: %v", buf6)
	}
}

func TestPeerVisibilityPredicates(t *testing.T) {
	p := &Peer{IsActive: true, IsVisible: true, IsConnectable: true, IsSeeder: true}

	if !p.IsIncludedInSeedList() {
		t.Fatalf("expected seeder to be included in seed list")
	}

	if p.IsIncludedInLeechList() {
		t.Fatalf("seeder must not be included in leech list")
	}

	p.IsConnectable = false

	if !p.IsIncludedInPeerList(false) {
		t.Fatalf("expected peer list without connectivity requirement to include non-connectable peer")
	}

	if p.IsIncludedInPeerList(true) {
		t.Fatalf("expected peer list with connectivity requirement to exclude non-connectable peer")
	}
}

func TestTorrentAppendLoadRoundTrip(t *testing.T) {
	h := InfoHashFromBytes(bytes.Repeat([]byte{0x07}, InfoHashSize))
	original := NewTorrent(1, h)
	original.Status.Store(uint32(StatusApproved))
	original.Seeders.Store(3)
	original.Leechers.Store(1)
	original.TimesCompleted.Store(9)

	peerID := PeerIDFromBytes(bytes.Repeat([]byte{0x09}, PeerIDSize))
	peer := &Peer{IP: net.ParseIP("192.0.2.1"), Port: 6881, ID: peerID, TorrentID: 1, UserID: 5}
	original.Peers[NewPeerKey(5, peerID)] = peer

	buf := original.Append(nil)

	got := NewTorrent(1, h)
	if err := got.Load(TorrentCacheVersion, bytes.NewReader(buf)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	gotPeer := got.Peers[NewPeerKey(5, peerID)]
	if gotPeer == nil {
		t.Fatalf("expected restored peer to be present")
	}

	gotPeer.IP = peer.IP

	if !got.IsApproved() {
		t.Fatalf("expected restored torrent to be approved")
	}

	if got.Seeders.Load() != 3 || got.Leechers.Load() != 1 || got.TimesCompleted.Load() != 9 {
		t.Fatalf("unexpected restored counters: %+v", got)
	}

	if diff := cmp.Diff(original, got, TorrentTestCompareOptions...); diff != "" {
		t.Fatalf("Torrent round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestTorrentStoreUpsertPreservesPeerMap(t *testing.T) {
	s := NewTorrentStore()
	h := InfoHashFromBytes(bytes.Repeat([]byte{0x11}, InfoHashSize))

	t1 := s.Upsert(1, h, StatusApproved, false, 100, 100)

	peerID := PeerIDFromBytes(bytes.Repeat([]byte{0x22}, PeerIDSize))
	t1.Peers[NewPeerKey(1, peerID)] = &Peer{ID: peerID}

	t2 := s.Upsert(1, h, StatusRejected, false, 50, 50)

	if t2 != t1 {
		t.Fatalf("expected Upsert to return the same Torrent instance for an existing id")
	}

	if len(t2.Peers) != 1 {
		t.Fatalf("expected existing peer map to survive Upsert, got %d peers", len(t2.Peers))
	}

	if Status(t2.Status.Load()) != StatusRejected {
		t.Fatalf("expected moderation status to be updated by Upsert")
	}

	found, ok := s.GetByInfoHash(h)
	if !ok || found != t1 {
		t.Fatalf("expected info_hash index to resolve to the upserted torrent")
	}
}

func TestTorrentStoreUpsertChangingInfoHash(t *testing.T) {
	s := NewTorrentStore()
	h1 := InfoHashFromBytes(bytes.Repeat([]byte{0x01}, InfoHashSize))
	h2 := InfoHashFromBytes(bytes.Repeat([]byte{0x02}, InfoHashSize))

	s.Upsert(1, h1, StatusApproved, false, 100, 100)
	s.Upsert(1, h2, StatusApproved, false, 100, 100)

	if _, ok := s.GetByInfoHash(h1); ok {
		t.Fatalf("expected the stale info_hash index entry to be removed")
	}

	if _, ok := s.GetByInfoHash(h2); !ok {
		t.Fatalf("expected the new info_hash index entry to resolve")
	}
}

func TestTorrentStoreDeleteIsSoft(t *testing.T) {
	s := NewTorrentStore()
	h := InfoHashFromBytes(bytes.Repeat([]byte{0x03}, InfoHashSize))
	tr := s.Upsert(1, h, StatusApproved, false, 100, 100)

	if !s.Delete(1) {
		t.Fatalf("expected Delete to report success for an existing torrent")
	}

	if !tr.IsDeleted.Load() {
		t.Fatalf("expected IsDeleted to be set")
	}

	if _, ok := s.Get(1); !ok {
		t.Fatalf("expected soft-deleted torrent to remain retrievable")
	}
}

func TestUserStoreUpsertPreservesRatesAndCounters(t *testing.T) {
	s := NewUserStore()
	seedRates, _ := rate.NewCollectionFromString("60=10")
	leechRates, _ := rate.NewCollectionFromString("60=10")

	u1 := s.Upsert(&User{ID: 1, Passkey: "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"}, seedRates, leechRates)
	u1.NumSeeding = 4
	u1.ReceiveSeedListRates.Tick(0)

	u2 := s.Upsert(&User{ID: 1, Passkey: "bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"}, seedRates, leechRates)

	if u2.ReceiveSeedListRates != u1.ReceiveSeedListRates {
		t.Fatalf("expected Upsert to preserve the existing rate collection pointer")
	}

	if u2.NumSeeding != 4 {
		t.Fatalf("expected Upsert to preserve existing counters, got %d", u2.NumSeeding)
	}

	if _, ok := s.GetByPasskey("aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"); ok {
		t.Fatalf("expected stale passkey index entry to be removed")
	}

	if _, ok := s.GetByPasskey("bbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"); !ok {
		t.Fatalf("expected new passkey index entry to resolve")
	}
}

func TestUserStoreWithUser(t *testing.T) {
	s := NewUserStore()
	seedRates, _ := rate.NewCollectionFromString("")
	leechRates, _ := rate.NewCollectionFromString("")
	s.Upsert(&User{ID: 1, Passkey: "cccccccccccccccccccccccccccccccc"}, seedRates, leechRates)

	ok := s.WithUser(1, func(u *User) { u.NumSeeding++ })
	if !ok {
		t.Fatalf("expected WithUser to find existing user")
	}

	u, _ := s.Get(1)
	if u.NumSeeding != 1 {
		t.Fatalf("expected mutation inside WithUser to persist, got %d", u.NumSeeding)
	}

	if s.WithUser(2, func(u *User) {}) {
		t.Fatalf("expected WithUser to report false for missing user")
	}
}

func TestAgentBlacklist(t *testing.T) {
	b := NewAgentBlacklist()
	b.Add("-AZ")

	blocked := PeerIDFromBytes(append([]byte("-AZ2060-"), bytes.Repeat([]byte{0}, 12)...))
	allowed := PeerIDFromBytes(append([]byte("-TR2940-"), bytes.Repeat([]byte{0}, 12)...))

	if !b.IsBlacklisted(blocked) {
		t.Fatalf("expected blacklisted prefix to match")
	}

	if b.IsBlacklisted(allowed) {
		t.Fatalf("expected non-matching prefix to be allowed")
	}

	b.Remove("-AZ")

	if b.IsBlacklisted(blocked) {
		t.Fatalf("expected removed prefix to no longer match")
	}
}

func TestPortBlacklist(t *testing.T) {
	b := NewPortBlacklist()
	b.Add(12345)

	if !b.IsBlacklisted(12345) {
		t.Fatalf("expected added port to be blacklisted")
	}

	b.Remove(12345)

	if b.IsBlacklisted(12345) {
		t.Fatalf("expected removed port to no longer be blacklisted")
	}
}

func TestPairSetAndIDSet(t *testing.T) {
	pairs := NewPairSet()
	pairs.Add(1, 2)

	if !pairs.Has(1, 2) {
		t.Fatalf("expected pair to be present after Add")
	}

	pairs.Remove(1, 2)

	if pairs.Has(1, 2) {
		t.Fatalf("expected pair to be absent after Remove")
	}

	ids := NewIDSet()
	ids.Add(7)

	if !ids.Has(7) {
		t.Fatalf("expected id to be present after Add")
	}

	ids.Remove(7)

	if ids.Has(7) {
		t.Fatalf("expected id to be absent after Remove")
	}
}

func TestConnectablePortCacheTTL(t *testing.T) {
	c := NewConnectablePortCache()
	now := time.Unix(1700000000, 0)

	if _, fresh := c.Get("1.2.3.4:6881", time.Minute, now); fresh {
		t.Fatalf("expected cache miss before any Set")
	}

	c.Set("1.2.3.4:6881", true, now)

	connectable, fresh := c.Get("1.2.3.4:6881", time.Minute, now.Add(30*time.Second))
	if !fresh || !connectable {
		t.Fatalf("expected fresh, connectable entry within ttl")
	}

	_, fresh = c.Get("1.2.3.4:6881", time.Minute, now.Add(2*time.Minute))
	if fresh {
		t.Fatalf("expected entry to expire after ttl elapses")
	}
}

func TestGroupIsDisabled(t *testing.T) {
	for _, slug := range []string{"banned", "validating", "disabled"} {
		g := &Group{Slug: slug}
		if !g.IsDisabled() {
			t.Fatalf("expected slug %q to be disabled", slug)
		}
	}

	g := &Group{Slug: "user"}
	if g.IsDisabled() {
		t.Fatalf("expected slug %q to not be disabled", g.Slug)
	}
}

func TestWriteLoadTorrents(t *testing.T) {
	h := InfoHashFromBytes(bytes.Repeat([]byte{0x55}, InfoHashSize))
	torrents := map[uint32]*Torrent{1: NewTorrent(1, h)}
	torrents[1].Seeders.Store(2)

	var buf bytes.Buffer
	if err := WriteTorrents(&buf, torrents); err != nil {
		t.Fatalf("WriteTorrents: %v", err)
	}

	loaded := make(map[uint32]*Torrent)
	byHash := make(map[InfoHash]uint32)

	if err := LoadTorrents(&buf, loaded, byHash); err != nil {
		t.Fatalf("LoadTorrents: %v", err)
	}

	got, ok := loaded[1]
	if !ok {
		t.Fatalf("expected torrent 1 to be loaded")
	}

	if got.Seeders.Load() != 2 {
		t.Fatalf("expected seeders to round trip, got %d", got.Seeders.Load())
	}

	if byHash[h] != 1 {
		t.Fatalf("expected info_hash index to round trip")
	}
}

func TestWriteLoadUsers(t *testing.T) {
	users := map[uint32]*User{
		1: {ID: 1, Passkey: "dddddddddddddddddddddddddddddddd", GroupID: 3, CanDownload: true, IsDonor: true},
	}

	var buf bytes.Buffer
	if err := WriteUsers(&buf, users); err != nil {
		t.Fatalf("WriteUsers: %v", err)
	}

	loaded := make(map[uint32]*User)
	byPasskey := make(map[Passkey]uint32)

	if err := LoadUsers(&buf, loaded, byPasskey); err != nil {
		t.Fatalf("LoadUsers: %v", err)
	}

	got, ok := loaded[1]
	if !ok {
		t.Fatalf("expected user 1 to be loaded")
	}

	if got.GroupID != 3 || !got.CanDownload || !got.IsDonor || got.IsLifetime {
		t.Fatalf("unexpected restored user: %+v", got)
	}

	if byPasskey["dddddddddddddddddddddddddddddddd"] != 1 {
		t.Fatalf("expected passkey index to round trip")
	}
}
