// Package history persists download attempts and batch runs to a local
// sqlite database so past retrievals can be inspected.
package history

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/nhatdv/timnhac/internal/resolver"
)

const DefaultDBFile = "timnhac.sqlite3"

// BatchRun summarizes one invocation of the batch (or single-song) pipeline.
type BatchRun struct {
	ID        string `gorm:"primaryKey;type:varchar(36)"`
	Titles    int
	Successes int
	Failures  int
	CreatedAt time.Time
}

// Attempt is one persisted download outcome. Rank 0 marks a song-level
// failure rather than a per-candidate attempt.
type Attempt struct {
	ID             string `gorm:"primaryKey;type:varchar(36)"`
	RunID          string `gorm:"type:varchar(36);index:idx_attempt_run"`
	Song           string `gorm:"index:idx_attempt_song"`
	Tier           string
	Rank           int
	CandidateTitle string
	Path           string
	Status         string `gorm:"index:idx_attempt_status"`
	Detail         string
	DurationSec    float64
	CreatedAt      time.Time
}

// Store wraps the history database.
type Store struct {
	DB *gorm.DB
	db *sql.DB
}

// Open opens (creating if needed) the history database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		path = DefaultDBFile
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating history db dir: %w", err)
		}
	}

	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	}

	db, err := gorm.Open(sqlite.Open(path+"?_foreign_keys=on"), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("opening history db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(2)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&BatchRun{}, &Attempt{}); err != nil {
		return nil, fmt.Errorf("migrating history schema: %w", err)
	}

	return &Store{DB: db, db: sqlDB}, nil
}

// NewRunID returns a fresh batch-run identifier.
func NewRunID() string {
	return uuid.New().String()
}

// AttemptsFromOutcomes converts resolver outcomes to history rows for runID.
func AttemptsFromOutcomes(runID string, outcomes []resolver.Outcome) []Attempt {
	attempts := make([]Attempt, 0, len(outcomes))
	for _, o := range outcomes {
		attempts = append(attempts, Attempt{
			ID:             uuid.New().String(),
			RunID:          runID,
			Song:           o.Song,
			Tier:           o.Tier,
			Rank:           o.Rank,
			CandidateTitle: o.CandidateTitle,
			Path:           o.Path,
			Status:         string(o.Status),
			Detail:         o.Detail,
		})
	}
	return attempts
}

// RecordRun stores one run summary and its attempts atomically.
func (s *Store) RecordRun(run BatchRun, attempts []Attempt) error {
	if run.ID == "" {
		run.ID = NewRunID()
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("recording batch run: %w", err)
		}
		if len(attempts) == 0 {
			return nil
		}
		for i := range attempts {
			if attempts[i].ID == "" {
				attempts[i].ID = uuid.New().String()
			}
			attempts[i].RunID = run.ID
		}
		if err := tx.CreateInBatches(attempts, 100).Error; err != nil {
			return fmt.Errorf("recording attempts: %w", err)
		}
		return nil
	})
}

// RecentAttempts returns the newest attempts, most recent first.
func (s *Store) RecentAttempts(limit int) ([]Attempt, error) {
	if limit < 1 {
		limit = 20
	}
	var attempts []Attempt
	err := s.DB.Order("created_at DESC, id").Limit(limit).Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("listing attempts: %w", err)
	}
	return attempts, nil
}

// ListRuns returns the newest batch runs, most recent first.
func (s *Store) ListRuns(limit int) ([]BatchRun, error) {
	if limit < 1 {
		limit = 10
	}
	var runs []BatchRun
	err := s.DB.Order("created_at DESC, id").Limit(limit).Find(&runs).Error
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}
	return runs, nil
}

// AttemptsForRun returns every attempt recorded for one run.
func (s *Store) AttemptsForRun(runID string) ([]Attempt, error) {
	var attempts []Attempt
	err := s.DB.Where("run_id = ?", runID).Order("song, rank").Find(&attempts).Error
	if err != nil {
		return nil, fmt.Errorf("listing attempts for run %s: %w", runID, err)
	}
	return attempts, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}
