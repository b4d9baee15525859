package batch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/nhatdv/timnhac/internal/resolver"
)

// fakeRunner resolves per-song via a lookup table.
type fakeRunner struct {
	mu      sync.Mutex
	calls   []string
	results map[string]resolver.Result
	panics  map[string]bool
}

func (f *fakeRunner) Resolve(ctx context.Context, song string, p resolver.Params) resolver.Result {
	f.mu.Lock()
	f.calls = append(f.calls, song)
	f.mu.Unlock()
	if f.panics[song] {
		panic("defect in resolution for " + song)
	}
	return f.results[song]
}

func TestRunAggregatesIndependentResolutions(t *testing.T) {
	runner := &fakeRunner{results: map[string]resolver.Result{
		"Tiến Quân Ca":    {Successes: 2},
		"Bài Ca Hy Vọng":  {Failures: 1, FailureRecords: []string{"Bài Ca Hy Vọng\tyoutube search failed: quota exceeded"}},
		"Cô Gái Mở Đường": {Successes: 1},
	}}

	res := Run(context.Background(), runner, []string{"Tiến Quân Ca", "Bài Ca Hy Vọng", "Cô Gái Mở Đường"}, 2, resolver.Params{})

	if res.Successes != 3 {
		t.Errorf("Expected 3 successes, got %d", res.Successes)
	}
	if res.Failures != 1 {
		t.Errorf("Search error in one song must cost exactly 1 failure, got %d", res.Failures)
	}
	if len(res.FailureRecords) != 1 || !strings.Contains(res.FailureRecords[0], "quota exceeded") {
		t.Errorf("Unexpected failure records: %v", res.FailureRecords)
	}
	if len(runner.calls) != 3 {
		t.Errorf("Every title must be dispatched, got %v", runner.calls)
	}
}

func TestRunFailureRecordSetMatchesRegardlessOfOrder(t *testing.T) {
	runner := &fakeRunner{results: map[string]resolver.Result{
		"a": {Failures: 1, FailureRecords: []string{"a\tno search results"}},
		"b": {Failures: 1, FailureRecords: []string{"b\tno search results"}},
		"c": {Failures: 1, FailureRecords: []string{"c\tno search results"}},
	}}

	res := Run(context.Background(), runner, []string{"a", "b", "c"}, 3, resolver.Params{})

	got := append([]string(nil), res.FailureRecords...)
	sort.Strings(got)
	want := []string{"a\tno search results", "b\tno search results", "c\tno search results"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Failure record set mismatch: got %v", got)
		}
	}
}

func TestRunEnforcesMinimumConcurrency(t *testing.T) {
	runner := &fakeRunner{results: map[string]resolver.Result{"a": {Successes: 1}}}

	res := Run(context.Background(), runner, []string{"a"}, 0, resolver.Params{})

	if res.Successes != 1 {
		t.Errorf("Zero concurrency must be clamped to 1 worker, got %+v", res)
	}
}

func TestRunBoundsWorkers(t *testing.T) {
	var active, peak int32
	runner := &countingRunner{active: &active, peak: &peak}

	titles := []string{"a", "b", "c", "d", "e", "f"}
	Run(context.Background(), runner, titles, 2, resolver.Params{})

	if p := atomic.LoadInt32(&peak); p > 2 {
		t.Errorf("Worker pool exceeded bound: peak %d", p)
	}
}

type countingRunner struct {
	active *int32
	peak   *int32
}

func (c *countingRunner) Resolve(ctx context.Context, song string, p resolver.Params) resolver.Result {
	n := atomic.AddInt32(c.active, 1)
	for {
		old := atomic.LoadInt32(c.peak)
		if n <= old || atomic.CompareAndSwapInt32(c.peak, old, n) {
			break
		}
	}
	defer atomic.AddInt32(c.active, -1)
	return resolver.Result{Successes: 1}
}

func TestRunRecoversPanickingResolution(t *testing.T) {
	runner := &fakeRunner{
		results: map[string]resolver.Result{
			"ok1": {Successes: 1},
			"ok2": {Successes: 1},
		},
		panics: map[string]bool{"boom": true},
	}

	res := Run(context.Background(), runner, []string{"ok1", "boom", "ok2"}, 2, resolver.Params{})

	if res.Successes != 2 {
		t.Errorf("Sibling resolutions must be unaffected by a panic, got %d successes", res.Successes)
	}
	if res.Failures != 1 {
		t.Fatalf("A panicking resolution must cost exactly 1 failure, got %d", res.Failures)
	}
	rec := res.FailureRecords[0]
	if !strings.HasPrefix(rec, "boom\t") || !strings.Contains(rec, "defect in resolution") {
		t.Errorf("Synthetic record must name the song and the error, got %q", rec)
	}
}

func TestLoadTitles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "list.txt")
	content := "1. Tiến Quân Ca\n\n  2. Bài Ca Hy Vọng  \n   \nCô Gái Mở Đường\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write list: %v", err)
	}

	titles, err := LoadTitles(path)
	if err != nil {
		t.Fatalf("LoadTitles failed: %v", err)
	}

	want := []string{"Tiến Quân Ca", "Bài Ca Hy Vọng", "Cô Gái Mở Đường"}
	if len(titles) != len(want) {
		t.Fatalf("Expected %d titles, got %v", len(want), titles)
	}
	for i := range want {
		if titles[i] != want[i] {
			t.Errorf("titles[%d] = %q, want %q", i, titles[i], want[i])
		}
	}
}

func TestLoadTitlesMissingFile(t *testing.T) {
	if _, err := LoadTitles(filepath.Join(t.TempDir(), "missing.txt")); err == nil {
		t.Error("Missing title list must surface an error")
	}
}

func TestAppendLedgerAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "failures.log")

	if err := AppendLedger(path, []string{"a\terr1"}); err != nil {
		t.Fatalf("First append failed: %v", err)
	}
	if err := AppendLedger(path, []string{"b\terr2", "c\terr3"}); err != nil {
		t.Fatalf("Second append failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read ledger: %v", err)
	}
	want := "a\terr1\nb\terr2\nc\terr3\n"
	if string(data) != want {
		t.Errorf("Ledger content = %q, want %q", string(data), want)
	}
}
