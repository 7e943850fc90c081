package usage

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryStoreCounters(t *testing.T) {
	svc := NewService(NewMemoryStore())
	ctx := context.Background()

	if err := svc.Record(ctx, "calldata", "ja", []string{"UNLIMITED_APPROVAL", "EOA_SPENDER"}, true); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, "typedData", "en", nil, false); err != nil {
		t.Fatalf("record: %v", err)
	}
	if err := svc.Record(ctx, "calldata", "ja", []string{"UNLIMITED_APPROVAL"}, false); err != nil {
		t.Fatalf("record: %v", err)
	}

	stats, err := svc.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if stats.TotalRequests != 3 {
		t.Errorf("total = %d, want 3", stats.TotalRequests)
	}
	if stats.PaidRequests != 1 {
		t.Errorf("paid = %d, want 1", stats.PaidRequests)
	}
	if stats.ByMode["calldata"] != 2 || stats.ByMode["typedData"] != 1 {
		t.Errorf("byMode = %v", stats.ByMode)
	}
	if stats.ByLang["ja"] != 2 || stats.ByLang["en"] != 1 {
		t.Errorf("byLang = %v", stats.ByLang)
	}
	if stats.BySignal["UNLIMITED_APPROVAL"] != 2 || stats.BySignal["EOA_SPENDER"] != 1 {
		t.Errorf("bySignal = %v", stats.BySignal)
	}
	if len(stats.Recent) != 3 {
		t.Errorf("recent = %d records, want 3", len(stats.Recent))
	}
}

func TestMemoryStoreRingBuffer(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for i := 0; i < recentCap+10; i++ {
		err := store.Insert(ctx, &Record{Mode: "calldata", Lang: fmt.Sprintf("l%d", i)})
		if err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}

	stats, err := store.Snapshot(ctx)
	if err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	if stats.TotalRequests != int64(recentCap+10) {
		t.Errorf("total = %d, want %d", stats.TotalRequests, recentCap+10)
	}
	if len(stats.Recent) != recentCap {
		t.Fatalf("recent = %d records, want %d", len(stats.Recent), recentCap)
	}

	// Oldest surviving record first, newest last.
	if got := stats.Recent[0].Lang; got != "l10" {
		t.Errorf("oldest = %s, want l10", got)
	}
	if got := stats.Recent[recentCap-1].Lang; got != fmt.Sprintf("l%d", recentCap+9) {
		t.Errorf("newest = %s, want l%d", got, recentCap+9)
	}
}

func TestSnapshotIsCopy(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	_ = store.Insert(ctx, &Record{Mode: "approval", Lang: "ja"})

	first, _ := store.Snapshot(ctx)
	first.ByMode["approval"] = 99

	second, _ := store.Snapshot(ctx)
	if second.ByMode["approval"] != 1 {
		t.Error("snapshot mutation leaked into store")
	}
}
