package scheduler

import (
	"sync"
	"testing"
	"time"

	"privateannounce/config"
	"privateannounce/queue"
	"privateannounce/rate"
	"privateannounce/store"
)

// fakeDB records every batch handed to it and can be told to fail the
// next call for a given table, to exercise the re-queue-on-error path.
type fakeDB struct {
	mu sync.Mutex

	peers     []queue.Batch[queue.PeerIndex, queue.PeerUpdate]
	torrents  []queue.Batch[queue.TorrentIndex, queue.TorrentUpdate]
	failNext  map[string]bool
}

func newFakeDB() *fakeDB {
	return &fakeDB{failNext: make(map[string]bool)}
}

func (f *fakeDB) FlushPeers(batch queue.Batch[queue.PeerIndex, queue.PeerUpdate]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.failNext["peers"] {
		f.failNext["peers"] = false
		return errFlush
	}

	f.peers = append(f.peers, batch)

	return nil
}

func (f *fakeDB) FlushHistories(batch queue.Batch[queue.HistoryIndex, queue.HistoryUpdate], _ time.Duration) error {
	return nil
}

func (f *fakeDB) FlushTorrents(batch queue.Batch[queue.TorrentIndex, queue.TorrentUpdate]) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.torrents = append(f.torrents, batch)

	return nil
}

func (f *fakeDB) FlushUsers(batch queue.Batch[queue.UserIndex, queue.UserUpdate]) error {
	return nil
}

func (f *fakeDB) FlushUnregisteredInfoHashes(batch queue.Batch[queue.UnregisteredInfoHashIndex, queue.UnregisteredInfoHashUpdate]) error {
	return nil
}

func (f *fakeDB) FlushAnnounces(batch []queue.AnnounceUpdate) error {
	return nil
}

func (f *fakeDB) FlushPeerDeletions(batch []queue.PeerDeletion) error {
	return nil
}

type flushError string

func (e flushError) Error() string { return string(e) }

const errFlush = flushError("simulated flush failure")

func testConfig() *config.Tracker {
	return &config.Tracker{
		FlushInterval:      time.Second,
		PeerExpiryInterval: time.Second,
		ActivePeerTTL:      5 * time.Minute,
		InactivePeerTTL:    15 * time.Minute,
		MaxBatchesPerFlush: 4,
	}
}

func TestFlushDrainsAndDeliversQueuedPeerUpdate(t *testing.T) {
	queues := queue.NewQueues(0)
	queues.Peers.Upsert(queue.PeerIndex{UserID: 1, TorrentID: 7}, queue.PeerUpdate{Port: 6881})

	db := newFakeDB()
	s := New(queues, store.NewTorrentStore(), store.NewUserStore(), db, testConfig())

	s.flush()

	db.mu.Lock()
	defer db.mu.Unlock()

	if len(db.peers) != 1 || len(db.peers[0]) != 1 {
		t.Fatalf("expected one flushed peer batch of one record, got %v", db.peers)
	}

	if queues.Peers.Len() != 0 {
		t.Fatalf("expected the peer queue to be drained, got len %d", queues.Peers.Len())
	}
}

func TestFlushRequeuesOnFailure(t *testing.T) {
	queues := queue.NewQueues(0)
	queues.Peers.Upsert(queue.PeerIndex{UserID: 1, TorrentID: 7}, queue.PeerUpdate{Port: 6881})

	db := newFakeDB()
	db.failNext["peers"] = true

	s := New(queues, store.NewTorrentStore(), store.NewUserStore(), db, testConfig())

	s.flush()

	if len(db.peers) != 0 {
		t.Fatalf("expected no successful flush, got %v", db.peers)
	}

	if queues.Peers.Len() != 1 {
		t.Fatalf("expected the failed batch to be requeued, got len %d", queues.Peers.Len())
	}
}

func TestReapMarksInactiveAfterActiveTTL(t *testing.T) {
	queues := queue.NewQueues(0)
	torrents := store.NewTorrentStore()
	users := store.NewUserStore()

	infoHash := store.InfoHashFromBytes(make([]byte, store.InfoHashSize))
	torrent := torrents.Upsert(1, infoHash, store.StatusApproved, false, 100, 100)

	rates, err := rate.NewCollectionFromString("60=180;3600=3000")
	if err != nil {
		t.Fatalf("NewCollectionFromString: %v", err)
	}

	users.Upsert(&store.User{ID: 9, GroupID: 1}, rates, rates)
	users.WithUser(9, func(u *store.User) { u.NumLeeching = 1 })

	peerID := store.PeerID{}
	key := store.NewPeerKey(9, peerID)

	torrent.PeerLock()
	torrent.Peers[key] = &store.Peer{
		TorrentID:     torrent.ID,
		UserID:        9,
		ID:            peerID,
		IsActive:      true,
		IsVisible:     true,
		IsConnectable: true,
		IsSeeder:      false,
		UpdatedAt:     time.Now().Add(-time.Hour).Unix(),
	}
	torrent.Leechers.Store(1)
	torrent.PeerUnlock()

	db := newFakeDB()
	s := New(queues, torrents, users, db, testConfig())

	s.reap()

	torrent.PeerLock()
	p := torrent.Peers[key]
	torrent.PeerUnlock()

	if p.IsActive {
		t.Fatalf("expected the peer to be marked inactive")
	}

	if torrent.Leechers.Load() != 0 {
		t.Fatalf("expected Leechers to drop to 0, got %d", torrent.Leechers.Load())
	}

	if queues.Torrents.Len() != 1 {
		t.Fatalf("expected a TorrentUpdate to be queued, got len %d", queues.Torrents.Len())
	}

	var leeching uint32
	users.WithUser(9, func(u *store.User) { leeching = u.NumLeeching })

	if leeching != 0 {
		t.Fatalf("expected NumLeeching to drop to 0, got %d", leeching)
	}
}

func TestReapForgetsInactivePeerPastInactiveTTL(t *testing.T) {
	queues := queue.NewQueues(0)
	torrents := store.NewTorrentStore()
	users := store.NewUserStore()

	infoHash := store.InfoHashFromBytes(make([]byte, store.InfoHashSize))
	torrent := torrents.Upsert(1, infoHash, store.StatusApproved, false, 100, 100)

	peerID := store.PeerID{}
	key := store.NewPeerKey(9, peerID)

	torrent.PeerLock()
	torrent.Peers[key] = &store.Peer{
		TorrentID: torrent.ID,
		UserID:    9,
		ID:        peerID,
		IsActive:  false,
		UpdatedAt: time.Now().Add(-time.Hour).Unix(),
	}
	torrent.PeerUnlock()

	db := newFakeDB()
	s := New(queues, torrents, users, db, testConfig())

	s.reap()

	torrent.PeerLock()
	_, exists := torrent.Peers[key]
	torrent.PeerUnlock()

	if exists {
		t.Fatalf("expected the long-inactive peer to be forgotten")
	}

	if queues.PeerDeletions.Len() != 1 {
		t.Fatalf("expected a PeerDeletion to be queued, got len %d", queues.PeerDeletions.Len())
	}
}
