package export

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/aidanlsb/ferry/internal/resolver"
)

// History records export runs. *report.Store implements it.
type History interface {
	BeginRun(ctx context.Context, vaultRoot string, startedAt time.Time) (string, error)
	RecordFile(ctx context.Context, runID string, rec FileRecord) error
	FinishRun(ctx context.Context, runID string, summary RunSummary) error
}

// FileRecord is everything one note contributed to a run. Failure is set
// when the note could not be read or transformed.
type FileRecord struct {
	Source      string
	Resolutions []resolver.Resolved
	Warnings    []string
	Failure     string
}

// RunSummary closes out a run.
type RunSummary struct {
	FinishedAt time.Time
	Files      int
	Warnings   int
	Errors     int
}

// noHistory still hands out run IDs so bundles are always stamped.
type noHistory struct{}

func (noHistory) BeginRun(context.Context, string, time.Time) (string, error) {
	return uuid.NewString(), nil
}
func (noHistory) RecordFile(context.Context, string, FileRecord) error { return nil }
func (noHistory) FinishRun(context.Context, string, RunSummary) error  { return nil }

// run is the bookkeeping of one export. History failures are logged and
// never fail the export.
type run struct {
	e       *Exporter
	history History
	id      string
	result  *Result
}

func (e *Exporter) beginRun(ctx context.Context, root string, start time.Time, result *Result) *run {
	r := &run{e: e, history: e.history, result: result}
	id, err := r.history.BeginRun(ctx, root, start)
	if err != nil {
		e.logger.Warn("export: history disabled for this run", "error", err)
		r.history = noHistory{}
		id, _ = r.history.BeginRun(ctx, root, start)
	}
	r.id = id
	return r
}

// record stores one note's outcome. A failure is also added to the result.
func (r *run) record(ctx context.Context, rec FileRecord) {
	if rec.Failure != "" {
		r.result.Errors = append(r.result.Errors, rec.Failure)
		r.e.logger.Error("export: "+rec.Failure, "file", rec.Source)
	}
	if err := r.history.RecordFile(ctx, r.id, rec); err != nil {
		r.e.logger.Warn("export: record file failed", "file", rec.Source, "error", err)
	}
}

func (r *run) finish(ctx context.Context) {
	// A cancelled run is still closed out.
	ctx = context.WithoutCancel(ctx)
	err := r.history.FinishRun(ctx, r.id, RunSummary{
		FinishedAt: r.e.now(),
		Files:      r.result.FilesProcessed,
		Warnings:   len(r.result.Warnings),
		Errors:     len(r.result.Errors),
	})
	if err != nil {
		r.e.logger.Warn("export: finish run failed", "error", err)
	}
}
