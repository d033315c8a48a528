package queue

import (
	"testing"
	"time"
)

func TestUpsertMergesSameKey(t *testing.T) {
	q := New[UserIndex, UserUpdate](Config{MaxBindingsPerFlush: 65535, BindingsPerRecord: 9}, UserIndexLess)

	q.Upsert(UserIndex{UserID: 1}, UserUpdate{UploadedDelta: 10, DownloadedDelta: 5})
	q.Upsert(UserIndex{UserID: 1}, UserUpdate{UploadedDelta: 3, DownloadedDelta: 1})

	if got := q.Len(); got != 1 {
		t.Fatalf("expected 1 distinct key, got %d", got)
	}

	batches := q.TakeBatches(1)
	if len(batches) != 1 || len(batches[0]) != 1 {
		t.Fatalf("expected a single batch with one record, got %v", batches)
	}

	record := batches[0][0]
	if record.Value.UploadedDelta != 13 || record.Value.DownloadedDelta != 6 {
		t.Fatalf("expected summed deltas, got %+v", record.Value)
	}
}

func TestTakeBatchesSortsByPrimaryKey(t *testing.T) {
	q := New[UserIndex, UserUpdate](Config{MaxBindingsPerFlush: 65535, BindingsPerRecord: 9}, UserIndexLess)

	q.Upsert(UserIndex{UserID: 3}, UserUpdate{})
	q.Upsert(UserIndex{UserID: 1}, UserUpdate{})
	q.Upsert(UserIndex{UserID: 2}, UserUpdate{})

	batches := q.TakeBatches(1)
	if len(batches) != 1 || len(batches[0]) != 3 {
		t.Fatalf("expected one batch of three records, got %v", batches)
	}

	ids := []uint32{batches[0][0].Key.UserID, batches[0][1].Key.UserID, batches[0][2].Key.UserID}
	if ids[0] != 1 || ids[1] != 2 || ids[2] != 3 {
		t.Fatalf("expected ascending user_id order, got %v", ids)
	}
}

func TestTakeBatchesRespectsMaxBatchSize(t *testing.T) {
	q := New[UserIndex, UserUpdate](Config{MaxBindingsPerFlush: 18, BindingsPerRecord: 9}, UserIndexLess)

	for i := uint32(1); i <= 5; i++ {
		q.Upsert(UserIndex{UserID: i}, UserUpdate{})
	}

	if got := q.config.MaxBatchSize(); got != 2 {
		t.Fatalf("expected max batch size 2, got %d", got)
	}

	batches := q.TakeBatches(10)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches (2,2,1), got %d", len(batches))
	}

	if len(batches[0]) != 2 || len(batches[1]) != 2 || len(batches[2]) != 1 {
		t.Fatalf("unexpected batch sizes: %d %d %d", len(batches[0]), len(batches[1]), len(batches[2]))
	}
}

func TestTakeBatchesLimitedByMaxBatches(t *testing.T) {
	q := New[UserIndex, UserUpdate](Config{MaxBindingsPerFlush: 18, BindingsPerRecord: 9}, UserIndexLess)

	for i := uint32(1); i <= 5; i++ {
		q.Upsert(UserIndex{UserID: i}, UserUpdate{})
	}

	batches := q.TakeBatches(1)
	if len(batches) != 1 || len(batches[0]) != 2 {
		t.Fatalf("expected exactly one batch of 2 when maxBatches=1, got %v", batches)
	}

	if got := q.Len(); got != 3 {
		t.Fatalf("expected 3 records left queued, got %d", got)
	}
}

func TestUpsertBatchRequeuesAndMerges(t *testing.T) {
	q := New[UserIndex, UserUpdate](Config{MaxBindingsPerFlush: 65535, BindingsPerRecord: 9}, UserIndexLess)
	q.Upsert(UserIndex{UserID: 1}, UserUpdate{UploadedDelta: 1})

	batches := q.TakeBatches(1)
	q.Upsert(UserIndex{UserID: 1}, UserUpdate{UploadedDelta: 2})
	q.UpsertBatch(batches[0])

	got := q.TakeBatches(1)
	if len(got) != 1 || len(got[0]) != 1 {
		t.Fatalf("expected the re-queued record to merge back in")
	}

	if got[0][0].Value.UploadedDelta != 3 {
		t.Fatalf("expected merged delta of 3, got %d", got[0][0].Value.UploadedDelta)
	}
}

func TestPeerUpdateMergeKeepsNewerSnapshotAndEarliestCreatedAt(t *testing.T) {
	t0 := time.Unix(1000, 0)
	t1 := time.Unix(2000, 0)

	old := PeerUpdate{Uploaded: 100, CreatedAt: t0, UpdatedAt: t0}
	newer := PeerUpdate{Uploaded: 150, CreatedAt: t1, UpdatedAt: t1}

	merged := old.Merge(newer)

	if merged.Uploaded != 150 {
		t.Fatalf("expected newer snapshot to win, got uploaded=%d", merged.Uploaded)
	}

	if !merged.CreatedAt.Equal(t0) {
		t.Fatalf("expected CreatedAt to stay at the earliest value, got %v", merged.CreatedAt)
	}
}

func TestPeerUpdateMergeIgnoresStaleSnapshot(t *testing.T) {
	t0 := time.Unix(2000, 0)
	t1 := time.Unix(1000, 0)

	current := PeerUpdate{Uploaded: 150, CreatedAt: t0, UpdatedAt: t0}
	stale := PeerUpdate{Uploaded: 999, CreatedAt: t1, UpdatedAt: t1}

	merged := current.Merge(stale)

	if merged.Uploaded != 150 {
		t.Fatalf("expected stale out-of-order update to be discarded, got uploaded=%d", merged.Uploaded)
	}
}

func TestHistoryUpdateMergeSumsDeltas(t *testing.T) {
	a := HistoryUpdate{UploadedDelta: 10, DownloadedDelta: 5, CreditedUploadedDelta: 10}
	b := HistoryUpdate{UploadedDelta: 3, DownloadedDelta: 1, CreditedUploadedDelta: 3, IsSeeder: true}

	merged := a.Merge(b)

	if merged.UploadedDelta != 13 || merged.DownloadedDelta != 6 || merged.CreditedUploadedDelta != 13 {
		t.Fatalf("unexpected merged deltas: %+v", merged)
	}

	if !merged.IsSeeder {
		t.Fatalf("expected latest boolean state to win")
	}
}

func TestTorrentUpdateMergeSaturates(t *testing.T) {
	a := TorrentUpdate{SeederDelta: 2147483640}
	b := TorrentUpdate{SeederDelta: 100}

	merged := a.Merge(b)

	if merged.SeederDelta != 2147483647 {
		t.Fatalf("expected saturating add to clamp at int32 max, got %d", merged.SeederDelta)
	}
}

func TestAnnounceLogNeverMerges(t *testing.T) {
	l := NewAnnounceLog(Config{MaxBindingsPerFlush: 36, BindingsPerRecord: 12})

	l.Append(AnnounceUpdate{UserID: 1})
	l.Append(AnnounceUpdate{UserID: 1})

	if got := l.Len(); got != 2 {
		t.Fatalf("expected both announces to be kept independently, got %d", got)
	}

	batch := l.TakeBatch()
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2 within the binding budget, got %d", len(batch))
	}
}

func TestPeerDeletionQueueDedups(t *testing.T) {
	q := NewPeerDeletionQueue(Config{MaxBindingsPerFlush: 65535, BindingsPerRecord: 3})

	d := PeerDeletion{TorrentID: 1, UserID: 2}
	q.Add(d)
	q.Add(d)

	if got := q.Len(); got != 1 {
		t.Fatalf("expected duplicate deletion to collapse to 1, got %d", got)
	}

	batch := q.TakeBatch()
	if len(batch) != 1 {
		t.Fatalf("expected exactly one deletion in the batch")
	}

	q.Add(d)

	if got := q.Len(); got != 1 {
		t.Fatalf("expected re-adding after drain to work, got %d", got)
	}
}

func TestQueuesAreNotEmpty(t *testing.T) {
	qs := NewQueues(0)

	if qs.AreNotEmpty() {
		t.Fatalf("expected freshly constructed queues to report empty")
	}

	qs.Users.Upsert(UserIndex{UserID: 1}, UserUpdate{UploadedDelta: 1})

	if !qs.AreNotEmpty() {
		t.Fatalf("expected queues to report non-empty after an upsert")
	}
}
