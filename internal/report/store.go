// Package report keeps a SQLite history of export runs: every link
// resolution, warning, and per-file failure, so broken links and fallback
// usage can be reviewed after the fact.
package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/aidanlsb/ferry/internal/export"
)

var (
	// ErrNoRuns indicates the history holds no runs yet.
	ErrNoRuns = errors.New("no export runs recorded")
	// ErrRunNotFound indicates the requested run ID is unknown.
	ErrRunNotFound = errors.New("run not found")
)

// DataDir is the per-vault directory for ferry state. The vault indexer
// skips it.
const DataDir = ".ferry"

// DefaultPath returns the history database location for a vault.
func DefaultPath(vaultRoot string) string {
	return filepath.Join(vaultRoot, DataDir, "history.db")
}

// Store is the history database handle. It implements export.History.
type Store struct {
	db *sql.DB

	mu   sync.Mutex
	seqs map[string]runSeq
}

// runSeq is the next seq of each per-run table.
type runSeq struct {
	resolutions int
	warnings    int
	failures    int
}

var _ export.History = (*Store)(nil)

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}
	return open(path)
}

// OpenInMemory opens a throwaway database (for testing).
func OpenInMemory() (*Store, error) {
	return open(":memory:")
}

func open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	// One connection keeps :memory: databases whole and serializes writers.
	db.SetMaxOpenConns(1)

	s := &Store{db: db, seqs: make(map[string]runSeq)}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// CurrentDBVersion is the history schema version.
const CurrentDBVersion = 1

func (s *Store) initialize() error {
	schema := `
		PRAGMA journal_mode = WAL;
		PRAGMA synchronous = NORMAL;
		PRAGMA foreign_keys = ON;

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			vault TEXT NOT NULL,
			started_at INTEGER NOT NULL,   -- Unix seconds
			finished_at INTEGER,           -- NULL while running or after a crash
			files INTEGER NOT NULL DEFAULT 0,
			warnings INTEGER NOT NULL DEFAULT 0,
			errors INTEGER NOT NULL DEFAULT 0
		);

		CREATE TABLE IF NOT EXISTS resolutions (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			original TEXT NOT NULL,
			target TEXT NOT NULL,
			resolved_path TEXT,
			method TEXT NOT NULL,
			confidence REAL NOT NULL
		);

		CREATE TABLE IF NOT EXISTS warnings (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS failures (
			run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			seq INTEGER NOT NULL,
			source TEXT NOT NULL,
			message TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_resolutions_run_method ON resolutions(run_id, method);
		CREATE INDEX IF NOT EXISTS idx_warnings_run ON warnings(run_id);
		CREATE INDEX IF NOT EXISTS idx_failures_run ON failures(run_id);
		CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize history schema: %w", err)
	}
	if _, err := s.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES ('version', ?)`,
		fmt.Sprint(CurrentDBVersion),
	); err != nil {
		return fmt.Errorf("failed to record schema version: %w", err)
	}
	return nil
}

// BeginRun starts a run and returns its ID.
func (s *Store) BeginRun(ctx context.Context, vaultRoot string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, vault, started_at) VALUES (?, ?, ?)`,
		id, vaultRoot, startedAt.Unix(),
	)
	if err != nil {
		return "", fmt.Errorf("failed to begin run: %w", err)
	}
	s.mu.Lock()
	s.seqs[id] = runSeq{}
	s.mu.Unlock()
	return id, nil
}

// RecordFile stores one note's resolutions, warnings, and failure in a
// single transaction.
func (s *Store) RecordFile(ctx context.Context, runID string, rec export.FileRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	seq, err := s.nextSeq(ctx, tx, runID)
	if err != nil {
		return err
	}

	if len(rec.Resolutions) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO resolutions (run_id, seq, source, original, target, resolved_path, method, confidence)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return fmt.Errorf("failed to prepare resolution insert: %w", err)
		}
		defer stmt.Close()

		for _, r := range rec.Resolutions {
			var resolved sql.NullString
			if r.Path != "" {
				resolved = sql.NullString{String: r.Path, Valid: true}
			}
			if _, err := stmt.ExecContext(ctx,
				runID, seq.resolutions, rec.Source, r.Link.Original, r.Link.Target, resolved, string(r.Method), r.Confidence,
			); err != nil {
				return fmt.Errorf("failed to record resolution: %w", err)
			}
			seq.resolutions++
		}
	}

	for _, w := range rec.Warnings {
		if err := insertMessage(ctx, tx, "warnings", runID, seq.warnings, rec.Source, w); err != nil {
			return err
		}
		seq.warnings++
	}
	if rec.Failure != "" {
		if err := insertMessage(ctx, tx, "failures", runID, seq.failures, rec.Source, rec.Failure); err != nil {
			return err
		}
		seq.failures++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit file record: %w", err)
	}
	s.seqs[runID] = seq
	return nil
}

// nextSeq returns the run's counters, reading them from the database for a
// run begun by another Store. The caller holds s.mu.
func (s *Store) nextSeq(ctx context.Context, tx *sql.Tx, runID string) (runSeq, error) {
	if seq, ok := s.seqs[runID]; ok {
		return seq, nil
	}
	var seq runSeq
	err := tx.QueryRowContext(ctx, `
		SELECT
			(SELECT COUNT(*) FROM resolutions WHERE run_id = ?),
			(SELECT COUNT(*) FROM warnings WHERE run_id = ?),
			(SELECT COUNT(*) FROM failures WHERE run_id = ?)`,
		runID, runID, runID,
	).Scan(&seq.resolutions, &seq.warnings, &seq.failures)
	if err != nil {
		return runSeq{}, fmt.Errorf("failed to read run sequence: %w", err)
	}
	return seq, nil
}

func insertMessage(ctx context.Context, tx *sql.Tx, table, runID string, seq int, source, message string) error {
	query := fmt.Sprintf(`INSERT INTO %s (run_id, seq, source, message) VALUES (?, ?, ?, ?)`, table)
	if _, err := tx.ExecContext(ctx, query, runID, seq, source, message); err != nil {
		return fmt.Errorf("failed to record %s: %w", table, err)
	}
	return nil
}

// FinishRun stores the final counts of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, summary export.RunSummary) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, files = ?, warnings = ?, errors = ? WHERE id = ?`,
		summary.FinishedAt.Unix(), summary.Files, summary.Warnings, summary.Errors, runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	s.mu.Lock()
	delete(s.seqs, runID)
	s.mu.Unlock()
	return nil
}
