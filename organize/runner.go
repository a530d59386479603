package organize

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"runtime/debug"
	"time"
)

// RunParams carries everything a single job needs.
type RunParams struct {
	Mode      Mode
	APIKey    string
	InputPath string

	Categories     []string
	BatchSize      int
	MaxConcurrency int
}

// Runner drives one organize job end-to-end: it reads the uploaded export,
// runs the chosen pipeline, reports progress into the store, and records the
// terminal state. One Runner serves all jobs; callers spawn Run in its own
// goroutine per job.
type Runner struct {
	store  *JobStore
	logger *slog.Logger

	// newCategorizer builds the classification backend for category-mode
	// jobs; overridable in tests.
	newCategorizer func(apiKey string) (*Categorizer, error)
}

// NewRunner builds a Runner bound to a store. A nil logger selects the
// default slog logger.
func NewRunner(store *JobStore, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		store:  store,
		logger: logger,
		newCategorizer: func(apiKey string) (*Categorizer, error) {
			return NewCategorizer(apiKey, "")
		},
	}
}

const generatedAtLayout = "2006-01-02 15:04:05"

// Run executes the job to a terminal state. It never returns an error: every
// failure, including a panic, lands in the store as a job error carrying the
// message plus a diagnostic trace. The input file is removed exactly once
// regardless of outcome.
func (r *Runner) Run(ctx context.Context, jobID string, p RunParams) {
	defer r.cleanupInput(jobID, p.InputPath)
	defer func() {
		if rec := recover(); rec != nil {
			r.fail(jobID, fmt.Errorf("panic: %v", rec))
		}
	}()

	r.logger.Info("job started", "job_id", jobID, "mode", p.Mode)

	sessions, err := LoadExport(p.InputPath)
	if err != nil {
		r.fail(jobID, err)
		return
	}

	total := len(sessions)
	r.store.UpdateProgress(jobID, 0, total, "Preparing…")

	switch p.Mode {
	case ModeMonth, ModeYear:
		periods := GroupSessionsByDate(sessions, p.Mode)
		result := &JobResult{
			Summary: ResultSummary{
				TotalConversations: total,
				TotalGroups:        len(periods.Order),
				GeneratedAt:        time.Now().Format(generatedAtLayout),
				OrganizeMode:       string(p.Mode),
			},
			TimePeriods: &periods,
		}
		r.store.UpdateProgress(jobID, total, total, "Finalizing…")
		r.store.Finish(jobID, result)

	default:
		categorizer, err := r.newCategorizer(p.APIKey)
		if err != nil {
			r.fail(jobID, err)
			return
		}

		progress := func(processed, progressTotal int) {
			if progressTotal < 1 {
				progressTotal = total
			}
			r.store.UpdateProgress(jobID, processed, progressTotal, "Categorizing…")
		}

		opts := CategorizeOptions{
			Categories:     p.Categories,
			BatchSize:      p.BatchSize,
			MaxConcurrency: p.MaxConcurrency,
		}
		categorized, err := categorizer.Categorize(ctx, sessions, opts, progress)
		if err != nil {
			r.fail(jobID, err)
			return
		}

		result := &JobResult{
			Summary: ResultSummary{
				TotalConversations: total,
				TotalCategories:    len(categorized),
				GeneratedAt:        time.Now().Format(generatedAtLayout),
				OrganizeMode:       string(ModeCategory),
			},
			Categories: categorized,
		}
		r.store.UpdateProgress(jobID, total, total, "Finalizing…")
		r.store.Finish(jobID, result)
	}

	r.logger.Info("job completed", "job_id", jobID)
}

// fail records the terminal error with a diagnostic trace and logs it. The
// trace rides along in the stored error so pollers see what went wrong.
func (r *Runner) fail(jobID string, err error) {
	trace := string(debug.Stack())
	r.logger.Error("job failed", "job_id", jobID, "err", err)
	r.store.Fail(jobID, fmt.Errorf("%v\n%s", err, trace))
}

// cleanupInput removes the uploaded temp file; a file already gone is fine.
func (r *Runner) cleanupInput(jobID, path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.logger.Warn("failed to clean up input file", "job_id", jobID, "path", path, "err", err)
	}
}
