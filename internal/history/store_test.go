package history

import (
	"path/filepath"
	"testing"

	"github.com/nhatdv/timnhac/internal/resolver"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test_timnhac.sqlite3")
	store, err := Open(dbPath)
	if err != nil {
		t.Fatalf("Failed to open test store: %v", err)
	}

	t.Cleanup(func() {
		store.Close()
	})

	return store
}

func TestOpenMigratesSchema(t *testing.T) {
	store := setupTestStore(t)

	if !store.DB.Migrator().HasTable(&BatchRun{}) {
		t.Error("batch_runs table missing after Open")
	}
	if !store.DB.Migrator().HasTable(&Attempt{}) {
		t.Error("attempts table missing after Open")
	}
}

func TestRecordRunRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	runID := NewRunID()
	outcomes := []resolver.Outcome{
		{
			Song:           "Tiến Quân Ca",
			Tier:           "youtube",
			Rank:           1,
			CandidateTitle: "Tiến Quân Ca - Dàn Hợp Xướng",
			Path:           "downloads/Tiến Quân Ca - Top1 - Dàn Hợp Xướng.mp3",
			Status:         resolver.StatusSuccess,
		},
		{
			Song:   "Bài Ca Hy Vọng",
			Tier:   "youtube",
			Status: resolver.StatusFailed,
			Detail: "no search results",
		},
	}

	attempts := AttemptsFromOutcomes(runID, outcomes)
	attempts[0].DurationSec = 187.4

	run := BatchRun{ID: runID, Titles: 2, Successes: 1, Failures: 1}
	if err := store.RecordRun(run, attempts); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	runs, err := store.ListRuns(5)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 1 || runs[0].ID != runID {
		t.Fatalf("Expected 1 run %s, got %+v", runID, runs)
	}
	if runs[0].Successes != 1 || runs[0].Failures != 1 {
		t.Errorf("Run counts not persisted: %+v", runs[0])
	}

	got, err := store.AttemptsForRun(runID)
	if err != nil {
		t.Fatalf("AttemptsForRun failed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 attempts, got %d", len(got))
	}

	byStatus := make(map[string]Attempt, len(got))
	for _, a := range got {
		byStatus[a.Status] = a
	}
	success := byStatus[string(resolver.StatusSuccess)]
	if success.Song != "Tiến Quân Ca" || success.Rank != 1 || success.DurationSec != 187.4 {
		t.Errorf("Success attempt not persisted faithfully: %+v", success)
	}
	failed := byStatus[string(resolver.StatusFailed)]
	if failed.Rank != 0 || failed.Detail != "no search results" {
		t.Errorf("Song-level failure not persisted faithfully: %+v", failed)
	}
}

func TestRecordRunFillsMissingIDs(t *testing.T) {
	store := setupTestStore(t)

	run := BatchRun{Titles: 1}
	attempts := []Attempt{{Song: "a", Status: string(resolver.StatusSkipped)}}
	if err := store.RecordRun(run, attempts); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := store.RecentAttempts(5)
	if err != nil {
		t.Fatalf("RecentAttempts failed: %v", err)
	}
	if len(got) != 1 || got[0].ID == "" || got[0].RunID == "" {
		t.Errorf("IDs must be generated when missing: %+v", got)
	}
}

func TestRecentAttemptsLimit(t *testing.T) {
	store := setupTestStore(t)

	var attempts []Attempt
	for i := 0; i < 30; i++ {
		attempts = append(attempts, Attempt{Song: "s", Status: "success"})
	}
	if err := store.RecordRun(BatchRun{Titles: 30}, attempts); err != nil {
		t.Fatalf("RecordRun failed: %v", err)
	}

	got, err := store.RecentAttempts(10)
	if err != nil {
		t.Fatalf("RecentAttempts failed: %v", err)
	}
	if len(got) != 10 {
		t.Errorf("Expected 10 attempts, got %d", len(got))
	}
}
