package store

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/forgeci/forge/internal/record"
	"github.com/forgeci/forge/internal/store/rediscache"
	"github.com/google/go-cmp/cmp"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *RecordStore {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return New(rediscache.NewFromClient(client, "forge-test:"))
}

func TestPutGetQueuedRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	b := record.Build{BuildID: 1, RepoURL: "https://github.com/acme/widgets", CommitSHA1: "deadbeef"}
	if err := s.PutQueued(ctx, b); err != nil {
		t.Fatalf("PutQueued: %v", err)
	}

	got, ok, err := s.GetQueued(ctx, 1)
	if err != nil || !ok {
		t.Fatalf("GetQueued: ok=%v err=%v", ok, err)
	}
	if diff := cmp.Diff(b, got); diff != "" {
		t.Fatalf("round trip mismatch (-want +got):\n%s", diff)
	}
}

func TestRoundTripLargeNonASCIIOutput(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	var sb strings.Builder
	line := "building  éèà 中文 output line\n"
	for i := 0; i < 100000; i++ {
		sb.WriteString(line)
	}
	accumulated := sb.String()

	b := record.Build{BuildID: 2, AccumulatedOutput: accumulated}
	b = b.WithExitCode(0)
	if err := s.PutResult(ctx, b); err != nil {
		t.Fatalf("PutResult: %v", err)
	}

	got, ok, err := s.GetResult(ctx, 2)
	if err != nil || !ok {
		t.Fatalf("GetResult: ok=%v err=%v", ok, err)
	}
	if got.AccumulatedOutput != accumulated {
		t.Fatalf("output mismatch: got %d bytes, want %d bytes", len(got.AccumulatedOutput), len(accumulated))
	}
	if !got.Succeeded() {
		t.Fatal("expected Succeeded() to be true")
	}
}

func TestInvalidateQueuedRemovesKey(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if err := s.PutQueued(ctx, record.Build{BuildID: 3}); err != nil {
		t.Fatalf("PutQueued: %v", err)
	}
	if err := s.InvalidateQueued(ctx, 3); err != nil {
		t.Fatalf("InvalidateQueued: %v", err)
	}
	if _, ok, err := s.GetQueued(ctx, 3); err != nil || ok {
		t.Fatalf("expected queued/3 to be gone: ok=%v err=%v", ok, err)
	}
}

func TestListQueuedAscendingOrder(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	for _, id := range []uint64{5, 1, 3} {
		if err := s.PutQueued(ctx, record.Build{BuildID: id}); err != nil {
			t.Fatalf("PutQueued(%d): %v", id, err)
		}
	}

	got, err := s.ListQueued(ctx)
	if err != nil {
		t.Fatalf("ListQueued: %v", err)
	}
	var ids []uint64
	for _, b := range got {
		ids = append(ids, b.BuildID)
	}
	want := []uint64{1, 3, 5}
	if diff := cmp.Diff(want, ids); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
}

func TestMaxIDAcrossBothPrefixes(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	if _, found, err := s.MaxID(ctx); err != nil || found {
		t.Fatalf("expected empty store to report not found, found=%v err=%v", found, err)
	}

	if err := s.PutQueued(ctx, record.Build{BuildID: 4}); err != nil {
		t.Fatal(err)
	}
	if err := s.PutResult(ctx, record.Build{BuildID: 9}); err != nil {
		t.Fatal(err)
	}

	max, found, err := s.MaxID(ctx)
	if err != nil || !found {
		t.Fatalf("MaxID: found=%v err=%v", found, err)
	}
	if max != 9 {
		t.Fatalf("got max=%d, want 9", max)
	}
}
