package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func openTestRunLog(t *testing.T) *RunLog {
	t.Helper()
	l, err := OpenRunLog(filepath.Join(t.TempDir(), "nested", "runs.db"))
	if err != nil {
		t.Fatalf("OpenRunLog: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestRunLog_RecordAndList(t *testing.T) {
	l := openTestRunLog(t)
	ctx := context.Background()

	recs := []RunRecord{
		{ID: "a", Source: "text", Status: RunDone, Chars: 100, Chunks: 1, LLMCalls: 3, StartedAt: "2026-01-01T10:00:00Z", DurationMS: 1200},
		{ID: "b", Source: "youtube:abc", Status: RunFailed, Stage: "summarize_chunks", Error: "generate summarize[0]: 503", StartedAt: "2026-01-01T11:00:00Z"},
		{ID: "c", Source: "pdf", Status: RunDone, Chars: 20000, Chunks: 3, LLMCalls: 5, StartedAt: "2026-01-01T12:00:00Z"},
	}
	for _, r := range recs {
		if err := l.Record(ctx, r); err != nil {
			t.Fatalf("Record(%s): %v", r.ID, err)
		}
	}

	all, err := l.List(ctx, "", 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Fatalf("got %d runs, want 3", len(all))
	}
	if all[0].ID != "c" || all[2].ID != "a" {
		t.Errorf("runs not newest first: %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	failed, err := l.List(ctx, "FAILED", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(failed) != 1 || failed[0].Stage != "summarize_chunks" || failed[0].Error == "" {
		t.Errorf("failed runs = %+v", failed)
	}

	limited, _ := l.List(ctx, "", 2)
	if len(limited) != 2 {
		t.Errorf("limit ignored: %d", len(limited))
	}
}

func TestRunLog_Validation(t *testing.T) {
	l := openTestRunLog(t)
	ctx := context.Background()

	if err := l.Record(ctx, RunRecord{Status: RunDone}); err == nil {
		t.Error("expected error for record without id")
	}
	if _, err := l.List(ctx, "running", 5); err == nil {
		t.Error("expected error for invalid status")
	}

	empty, err := l.List(ctx, "", 5)
	if err != nil {
		t.Fatal(err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("empty log should list as empty slice, got %#v", empty)
	}
}

func TestRunLog_TruncatesError(t *testing.T) {
	l := openTestRunLog(t)
	ctx := context.Background()

	if err := l.Record(ctx, RunRecord{ID: "x", Status: RunFailed, Error: strings.Repeat("e", 5000)}); err != nil {
		t.Fatal(err)
	}
	runs, _ := l.List(ctx, "failed", 1)
	if len(runs) != 1 || len([]rune(runs[0].Error)) > 503 {
		t.Errorf("error not truncated: %d runes", len([]rune(runs[0].Error)))
	}
	if runs[0].StartedAt == "" {
		t.Error("StartedAt should default to now")
	}
}

func TestRunLog_ConcurrentRecord(t *testing.T) {
	l := openTestRunLog(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := l.Record(ctx, RunRecord{ID: fmt.Sprintf("r%d", i), Status: RunDone}); err != nil {
				t.Errorf("Record: %v", err)
			}
		}()
	}
	wg.Wait()

	runs, err := l.List(ctx, "", 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(runs) != 20 {
		t.Errorf("got %d runs, want 20", len(runs))
	}
}
