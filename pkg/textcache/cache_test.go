package textcache

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

// corpusOfLines builds a synthetic corpus of count lines, each width bytes.
func corpusOfLines(count, width int) string {
	line := strings.Repeat("a", width)
	lines := make([]string, count)
	for i := range lines {
		lines[i] = line
	}
	return strings.Join(lines, "\n")
}

func TestManagerRoundTrip(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store)
	ctx := context.Background()

	put := Entry{
		Text:  "the quick brown fox\njumps over the lazy dog",
		Stats: &Stats{Lines: 2, Chars: 43},
	}
	if err := m.Put(ctx, "corpus", put); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	got, err := m.Get(ctx, "corpus", time.Hour)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if got.Text != put.Text {
		t.Errorf("round-tripped text = %q, want %q", got.Text, put.Text)
	}
	if got.Stats == nil || got.Stats.Lines != 2 || got.Stats.Chars != 43 {
		t.Errorf("round-tripped stats = %+v, want {2 43}", got.Stats)
	}
	if got.Timestamp.IsZero() {
		t.Error("Put did not stamp the entry")
	}
}

func TestManagerGetMissing(t *testing.T) {
	m := NewManager(NewMemoryStore(0))

	_, err := m.Get(context.Background(), "absent", time.Hour)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestManagerGetStaleEntryEvicted(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store)
	ctx := context.Background()

	err := m.Put(ctx, "corpus", Entry{
		Text:      "old text that has gone stale",
		Timestamp: time.Now().Add(-25 * time.Hour),
	})
	if err != nil {
		t.Fatalf("Put returned error: %v", err)
	}

	if _, err := m.Get(ctx, "corpus", 24*time.Hour); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for stale entry, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("stale entry survived the miss, store holds %d entries", store.Len())
	}
}

func TestManagerGetUndecodableEntryEvicted(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store)
	ctx := context.Background()

	if err := store.Put(ctx, "corpus", []byte("{not json"), time.Now()); err != nil {
		t.Fatalf("seeding store failed: %v", err)
	}

	if _, err := m.Get(ctx, "corpus", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for undecodable entry, got %v", err)
	}
	if store.Len() != 0 {
		t.Errorf("undecodable entry survived the miss, store holds %d entries", store.Len())
	}
}

func TestManagerPutReductionTiers(t *testing.T) {
	// 1000 lines of 100 bytes serialize to roughly 102 KB, a quarter to
	// roughly 26 KB, and a tenth to roughly 10 KB.
	original := Entry{
		Text:  corpusOfLines(1000, 100),
		Stats: &Stats{Lines: 1000, Chars: 100*1000 + 999},
	}

	tests := []struct {
		name      string
		limit     int
		wantLines int
	}{
		{"quarter tier", 30_000, 250},
		{"tenth tier", 15_000, 100},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m := NewManager(NewMemoryStore(0), WithSizeLimit(tc.limit))
			ctx := context.Background()

			if err := m.Put(ctx, "corpus", original); err != nil {
				t.Fatalf("Put returned error: %v", err)
			}

			got, err := m.Get(ctx, "corpus", time.Hour)
			if err != nil {
				t.Fatalf("Get returned error: %v", err)
			}

			lines := strings.Split(got.Text, "\n")
			if len(lines) != tc.wantLines {
				t.Errorf("stored text has %d lines, want %d", len(lines), tc.wantLines)
			}
			if got.Stats == nil {
				t.Fatal("reduced entry lost its stats")
			}
			if got.Stats.Lines != tc.wantLines {
				t.Errorf("stats report %d lines, want %d", got.Stats.Lines, tc.wantLines)
			}
			if got.Stats.Chars != len(got.Text) {
				t.Errorf("stats report %d chars, text has %d", got.Stats.Chars, len(got.Text))
			}
		})
	}
}

func TestManagerPutQuotaExceeded(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store, WithSizeLimit(5_000))
	ctx := context.Background()

	// Seed an aged entry; the failed put should still evict it as housekeeping.
	err := m.Put(ctx, "aged", Entry{
		Text:      "an old entry ready for eviction",
		Timestamp: time.Now().Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seeding aged entry failed: %v", err)
	}

	// Even the tenth tier of this corpus is roughly 10 KB, over the limit.
	err = m.Put(ctx, "corpus", Entry{Text: corpusOfLines(1000, 100)})
	if !errors.Is(err, ErrQuotaExceeded) {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	if _, err := m.Get(ctx, "corpus", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Error("oversized entry was stored despite the quota failure")
	}
	if store.Len() != 0 {
		t.Errorf("aged entry survived housekeeping, store holds %d entries", store.Len())
	}
}

func TestManagerPutEvictsAgedAndRetriesOnStoreFull(t *testing.T) {
	store := NewMemoryStore(2_000)
	m := NewManager(store)
	ctx := context.Background()

	err := m.Put(ctx, "aged", Entry{
		Text:      strings.Repeat("a", 1_400),
		Timestamp: time.Now().Add(-48 * time.Hour),
	})
	if err != nil {
		t.Fatalf("seeding aged entry failed: %v", err)
	}

	// A second entry of the same size exceeds the store capacity; the aged
	// entry must be evicted and the write retried.
	if err := m.Put(ctx, "fresh", Entry{Text: strings.Repeat("b", 1_400)}); err != nil {
		t.Fatalf("Put after eviction returned error: %v", err)
	}

	if _, err := m.Get(ctx, "fresh", time.Hour); err != nil {
		t.Errorf("fresh entry missing after retry: %v", err)
	}
	if _, err := m.Get(ctx, "aged", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Error("aged entry survived the capacity eviction")
	}
}

func TestManagerDelete(t *testing.T) {
	store := NewMemoryStore(0)
	m := NewManager(store)
	ctx := context.Background()

	if err := m.Put(ctx, "corpus", Entry{Text: "some cached text"}); err != nil {
		t.Fatalf("Put returned error: %v", err)
	}
	if err := m.Delete(ctx, "corpus"); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}
	if _, err := m.Get(ctx, "corpus", time.Hour); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestReduceEntry(t *testing.T) {
	entry := Entry{
		Text:  "l0\nl1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9",
		Stats: &Stats{Lines: 10, Chars: 29},
	}

	reduced := reduceEntry(entry, 4)
	if reduced.Text != "l0\nl4\nl8" {
		t.Errorf("reduced text = %q, want %q", reduced.Text, "l0\nl4\nl8")
	}
	if reduced.Stats == nil || reduced.Stats.Lines != 3 || reduced.Stats.Chars != 8 {
		t.Errorf("reduced stats = %+v, want {3 8}", reduced.Stats)
	}

	// Divisor 1 is the identity tier.
	if full := reduceEntry(entry, 1); full.Text != entry.Text {
		t.Errorf("identity tier changed the text: %q", full.Text)
	}

	// Entries without stats stay without stats.
	if noStats := reduceEntry(Entry{Text: "a\nb\nc"}, 2); noStats.Stats != nil {
		t.Errorf("reduction invented stats: %+v", noStats.Stats)
	}
}

func TestMemoryStoreCapacity(t *testing.T) {
	store := NewMemoryStore(100)
	ctx := context.Background()
	now := time.Now()

	if err := store.Put(ctx, "a", make([]byte, 60), now); err != nil {
		t.Fatalf("first put failed: %v", err)
	}
	if err := store.Put(ctx, "b", make([]byte, 60), now); !errors.Is(err, ErrStoreFull) {
		t.Fatalf("expected ErrStoreFull, got %v", err)
	}

	// Replacing a key only accounts for the delta.
	if err := store.Put(ctx, "a", make([]byte, 90), now); err != nil {
		t.Errorf("replacing put failed: %v", err)
	}

	if err := store.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if err := store.Put(ctx, "b", make([]byte, 60), now); err != nil {
		t.Errorf("put after delete failed: %v", err)
	}
}

func TestMemoryStoreEvictOlderThan(t *testing.T) {
	store := NewMemoryStore(0)
	ctx := context.Background()

	_ = store.Put(ctx, "old", []byte("x"), time.Now().Add(-48*time.Hour))
	_ = store.Put(ctx, "new", []byte("y"), time.Now())

	evicted, err := store.EvictOlderThan(ctx, time.Now().Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("EvictOlderThan returned error: %v", err)
	}
	if evicted != 1 {
		t.Errorf("evicted %d entries, want 1", evicted)
	}
	if _, err := store.Get(ctx, "old"); !errors.Is(err, ErrNotFound) {
		t.Error("aged entry survived eviction")
	}
	if _, err := store.Get(ctx, "new"); err != nil {
		t.Errorf("fresh entry was evicted: %v", err)
	}
}
