package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/raaihank/transcript-sentinel/internal/config"
	"github.com/raaihank/transcript-sentinel/internal/logger"
	"go.uber.org/zap"
)

const schema = `
CREATE TABLE IF NOT EXISTS anonymization_runs (
	id                   BIGSERIAL PRIMARY KEY,
	run_id               TEXT NOT NULL,
	mode                 TEXT NOT NULL,
	source               TEXT NOT NULL DEFAULT '',
	conversation_count   INTEGER NOT NULL DEFAULT 0,
	total_replacements   INTEGER NOT NULL DEFAULT 0,
	replacements_by_type JSONB NOT NULL DEFAULT '{}',
	conversation_ids     TEXT[] NOT NULL DEFAULT '{}',
	original_length      INTEGER NOT NULL DEFAULT 0,
	redacted_length      INTEGER NOT NULL DEFAULT 0,
	created_at           TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_anonymization_runs_created_at ON anonymization_runs (created_at DESC);`

// DefaultRecentLimit is the number of runs RecentRuns returns for a
// non-positive limit.
const DefaultRecentLimit = 20

// Store records anonymization runs in PostgreSQL
type Store struct {
	db     *sqlx.DB
	logger *logger.Logger
}

// NewStore connects to the database and ensures the runs table exists
func NewStore(cfg config.StoreConfig, log *logger.Logger) (*Store, error) {
	if log == nil {
		log = logger.NewNop()
	}

	db, err := sqlx.Connect("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	s := &Store{
		db:     db,
		logger: log.WithComponent("store"),
	}

	if err := s.initialize(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	s.logger.Info("Run store initialized successfully",
		zap.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns))

	return s, nil
}

func (s *Store) initialize() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// InsertRun writes one audit row and fills in its id and creation time.
func (s *Store) InsertRun(ctx context.Context, run *Run) error {
	query := `
		INSERT INTO anonymization_runs
			(run_id, mode, source, conversation_count, total_replacements,
			 replacements_by_type, conversation_ids, original_length, redacted_length, created_at)
		VALUES
			(:run_id, :mode, :source, :conversation_count, :total_replacements,
			 :replacements_by_type, :conversation_ids, :original_length, :redacted_length, :created_at)
		RETURNING id, created_at`

	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}

	rows, err := s.db.NamedQueryContext(ctx, query, run)
	if err != nil {
		s.logger.Error("Failed to insert run",
			zap.Error(err),
			zap.String("run_id", run.RunID))
		return fmt.Errorf("failed to insert run: %w", err)
	}
	defer rows.Close()

	if rows.Next() {
		if err := rows.Scan(&run.ID, &run.CreatedAt); err != nil {
			return fmt.Errorf("failed to read inserted run: %w", err)
		}
	}

	s.logger.Debug("Run recorded",
		zap.Int64("id", run.ID),
		zap.String("run_id", run.RunID),
		zap.Int("total_replacements", run.TotalReplacements))

	return rows.Err()
}

// RecentRuns returns the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = DefaultRecentLimit
	}

	query := `
		SELECT id, run_id, mode, source, conversation_count, total_replacements,
		       replacements_by_type, conversation_ids, original_length, redacted_length, created_at
		FROM anonymization_runs
		ORDER BY created_at DESC
		LIMIT $1`

	runs := []Run{}
	if err := s.db.SelectContext(ctx, &runs, query, limit); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// GetRun returns the run with the given run id.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	query := `
		SELECT id, run_id, mode, source, conversation_count, total_replacements,
		       replacements_by_type, conversation_ids, original_length, redacted_length, created_at
		FROM anonymization_runs
		WHERE run_id = $1
		ORDER BY created_at DESC
		LIMIT 1`

	var run Run
	if err := s.db.GetContext(ctx, &run, query, runID); err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	return &run, nil
}

// GetStats returns totals over every recorded run
func (s *Store) GetStats(ctx context.Context) (*RunStats, error) {
	query := `
		SELECT
			COUNT(*) AS total_runs,
			COALESCE(SUM(conversation_count), 0) AS total_conversations,
			COALESCE(SUM(total_replacements), 0) AS total_replacements
		FROM anonymization_runs`

	var stats RunStats
	if err := s.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to get run stats: %w", err)
	}
	return &stats, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// maskDatabaseURL masks sensitive information in database URL for logging
func maskDatabaseURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
