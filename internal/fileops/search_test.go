package fileops

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestSearchMatchesSubstringCaseInsensitive(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "Holiday_Report.pdf"), "x")
	writeFile(t, filepath.Join(dir, "notes.txt"), "x")
	writeFile(t, filepath.Join(dir, "sub", "more_reports.txt"), "x")

	res, err := Search(context.Background(), dir, "", "report", 100, 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("got %d entries: %v", len(res.Entries), names(res.Entries))
	}
	if res.Truncated || res.Partial {
		t.Fatalf("unexpected flags: %+v", res)
	}
}

func TestSearchDirsReportedBeforeFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "aaa_match.txt"), "x")
	if err := os.Mkdir(filepath.Join(dir, "zzz_match"), 0o755); err != nil {
		t.Fatal(err)
	}

	res, err := Search(context.Background(), dir, "", "match", 100, 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Entries) != 2 || !res.Entries[0].IsDir {
		t.Fatalf("directory should come first: %v", names(res.Entries))
	}
}

func TestSearchStopsAtMaxResults(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 20; i++ {
		writeFile(t, filepath.Join(dir, fmt.Sprintf("hit_%02d.txt", i)), "x")
	}

	res, err := Search(context.Background(), dir, "", "hit", 5, 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Entries) != 5 || !res.Truncated {
		t.Fatalf("entries=%d truncated=%v", len(res.Entries), res.Truncated)
	}
}

func TestSearchDepthLimit(t *testing.T) {
	dir := t.TempDir()
	// hit at depth 1, 2 and 3
	writeFile(t, filepath.Join(dir, "hit1.txt"), "x")
	writeFile(t, filepath.Join(dir, "l1", "hit2.txt"), "x")
	writeFile(t, filepath.Join(dir, "l1", "l2", "hit3.txt"), "x")

	res, err := Search(context.Background(), dir, "", "hit", 100, 2, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("depth 2 should see 2 hits, got %v", names(res.Entries))
	}
	for _, e := range res.Entries {
		if e.Name == "hit3.txt" {
			t.Fatalf("depth 3 entry leaked into results")
		}
	}
}

func TestSearchCanceledContextReturnsPartial(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hit.txt"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := Search(ctx, dir, "", "hit", 100, 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Partial || len(res.Entries) != 0 {
		t.Fatalf("canceled search should be empty and partial: %+v", res)
	}
}

func TestSearchExpiredBudgetReturnsPartial(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "hit.txt"), "x")

	res, err := Search(context.Background(), dir, "", "hit", 100, 0, -time.Second)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if !res.Partial {
		t.Fatalf("expired budget should set partial: %+v", res)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.txt"), "x")
	res, err := Search(context.Background(), dir, "", "   ", 100, 0, 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Entries) != 0 {
		t.Fatalf("empty query should match nothing")
	}
}
