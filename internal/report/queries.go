package report

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Run is one recorded export.
type Run struct {
	ID         string     `json:"id"`
	Vault      string     `json:"vault"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	Files      int        `json:"files"`
	Warnings   int        `json:"warnings"`
	Errors     int        `json:"errors"`
}

// Resolution is one recorded link outcome.
type Resolution struct {
	Source       string  `json:"source"`
	Original     string  `json:"original"`
	Target       string  `json:"target"`
	ResolvedPath string  `json:"resolved_path,omitempty"`
	Method       string  `json:"method"`
	Confidence   float64 `json:"confidence"`
}

// Message is a recorded warning or failure.
type Message struct {
	Source  string `json:"source"`
	Message string `json:"message"`
}

const runColumns = `id, vault, started_at, finished_at, files, warnings, errors`

func scanRun(row interface{ Scan(...any) error }) (Run, error) {
	var (
		r        Run
		started  int64
		finished sql.NullInt64
	)
	if err := row.Scan(&r.ID, &r.Vault, &started, &finished, &r.Files, &r.Warnings, &r.Errors); err != nil {
		return Run{}, err
	}
	r.StartedAt = time.Unix(started, 0).UTC()
	if finished.Valid {
		t := time.Unix(finished.Int64, 0).UTC()
		r.FinishedAt = &t
	}
	return r, nil
}

// scanRows scans all rows into a slice using the provided scanner.
func scanRows[T any](rows *sql.Rows, scan func(*sql.Rows) (T, error)) ([]T, error) {
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoRuns
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load latest run: %w", err)
	}
	return &r, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load run: %w", err)
	}
	return &r, nil
}

// Runs lists runs newest first. limit <= 0 returns all of them.
func (s *Store) Runs(ctx context.Context, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, rowid DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return scanRows(rows, func(rows *sql.Rows) (Run, error) { return scanRun(rows) })
}

// Resolutions returns every recorded link outcome of a run in export order.
func (s *Store) Resolutions(ctx context.Context, runID string) ([]Resolution, error) {
	return s.resolutions(ctx, runID, "")
}

// BrokenLinks returns the failed resolutions of a run.
func (s *Store) BrokenLinks(ctx context.Context, runID string) ([]Resolution, error) {
	return s.resolutions(ctx, runID, "failed")
}

func (s *Store) resolutions(ctx context.Context, runID, method string) ([]Resolution, error) {
	query := `
		SELECT source, original, target, resolved_path, method, confidence
		FROM resolutions
		WHERE run_id = ?`
	args := []any{runID}
	if method != "" {
		query += ` AND method = ?`
		args = append(args, method)
	}
	query += ` ORDER BY seq`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions: %w", err)
	}
	return scanRows(rows, func(rows *sql.Rows) (Resolution, error) {
		var (
			r        Resolution
			resolved sql.NullString
		)
		err := rows.Scan(&r.Source, &r.Original, &r.Target, &resolved, &r.Method, &r.Confidence)
		r.ResolvedPath = resolved.String
		return r, err
	})
}

// MethodCounts returns how many links each resolution method handled.
func (s *Store) MethodCounts(ctx context.Context, runID string) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT method, COUNT(*) FROM resolutions WHERE run_id = ? GROUP BY method`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to count methods: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var (
			method string
			n      int
		)
		if err := rows.Scan(&method, &n); err != nil {
			return nil, err
		}
		counts[method] = n
	}
	return counts, rows.Err()
}

// Warnings returns the warnings of a run in export order.
func (s *Store) Warnings(ctx context.Context, runID string) ([]Message, error) {
	return s.messages(ctx, "warnings", runID)
}

// Failures returns the per-file failures of a run in export order.
func (s *Store) Failures(ctx context.Context, runID string) ([]Message, error) {
	return s.messages(ctx, "failures", runID)
}

func (s *Store) messages(ctx context.Context, table, runID string) ([]Message, error) {
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT source, message FROM %s WHERE run_id = ? ORDER BY seq`, table), runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", table, err)
	}
	return scanRows(rows, func(rows *sql.Rows) (Message, error) {
		var m Message
		err := rows.Scan(&m.Source, &m.Message)
		return m, err
	})
}
