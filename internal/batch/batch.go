// Package batch runs the WoS parser over a tree of export files.
//
// Files are independent: they are parsed in parallel, each one sequentially,
// and all feed one shared Sink that serializes writes.
package batch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"sync/atomic"
	"time"

	"github.com/labyrinth/etl/internal/reference"
	"github.com/labyrinth/etl/internal/subject"
	"github.com/labyrinth/etl/internal/wos"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/time/rate"
)

// DefaultProgressInterval is the minimum time between progress log lines.
const DefaultProgressInterval = 2 * time.Second

// ErrSkipped marks files that were not started because the run was cancelled.
var ErrSkipped = errors.New("skipped: run cancelled")

// Job is one export file and the subject it was searched under.
type Job struct {
	Path      string `json:"path"`
	SubjectID int    `json:"drug_id"`
}

// Sink receives records and is told when each file is finished, so it can
// commit periodically.
type Sink interface {
	wos.Sink
	FileDone() error
}

// Options configures Run.
type Options struct {
	Workers          int // Maximum files parsed at once (default 1)
	Terms            wos.Matcher
	Sink             Sink
	ProgressInterval time.Duration
	Logger           *slog.Logger
}

// FileReport is the outcome of one file.
type FileReport struct {
	Job
	Stats wos.Stats `json:"stats"`
	Err   error     `json:"-"`
}

// Summary aggregates a run.
type Summary struct {
	Files   int          `json:"files"`
	Failed  int          `json:"failed"`
	Skipped int          `json:"skipped"`
	Stats   wos.Stats    `json:"stats"`
	Reports []FileReport `json:"-"` // sorted by path
	Elapsed time.Duration `json:"-"`
}

// Failures returns the reports of files that failed or were skipped.
func (s Summary) Failures() []FileReport {
	var out []FileReport
	for _, r := range s.Reports {
		if r.Err != nil {
			out = append(out, r)
		}
	}
	return out
}

// Discover collects the regular files under root with the given extension
// (".txt"). Each file's subject id comes from its parent directory; a parent
// that is not an integer fails discovery.
func Discover(root, ext string) ([]Job, error) {
	var jobs []Job
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() || filepath.Ext(path) != ext {
			return nil
		}

		id, err := subject.IDFromDir(path)
		if err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
		jobs = append(jobs, Job{Path: path, SubjectID: id})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("discovering input files: %w", err)
	}
	return jobs, nil
}

// Run parses every job. A failing file does not stop the others; records it
// produced before failing stay in the sink. Cancelling ctx stops new files
// from starting.
func Run(ctx context.Context, jobs []Job, opts Options) Summary {
	workers := opts.Workers
	if workers <= 0 {
		workers = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := opts.ProgressInterval
	if interval <= 0 {
		interval = DefaultProgressInterval
	}

	start := time.Now()
	progress := rate.Sometimes{Interval: interval}
	var done, emitted atomic.Int64

	p := pool.NewWithResults[FileReport]().WithMaxGoroutines(workers)
	for _, job := range jobs {
		job := job
		p.Go(func() FileReport {
			if ctx.Err() != nil {
				return FileReport{Job: job, Err: ErrSkipped}
			}

			report := processFile(job, opts.Terms, opts.Sink)
			if report.Err != nil {
				logger.Warn("file failed", "path", job.Path, "drug_id", job.SubjectID, "error", report.Err)
			} else {
				logger.Debug("file parsed", "path", job.Path, "drug_id", job.SubjectID,
					"records", report.Stats.Records, "emitted", report.Stats.Emitted)
			}

			n := done.Add(1)
			e := emitted.Add(int64(report.Stats.Emitted))
			progress.Do(func() {
				logger.Info("progress", "files", n, "total", len(jobs), "emitted", e)
			})
			return report
		})
	}
	reports := p.Wait()

	sort.Slice(reports, func(i, j int) bool { return reports[i].Path < reports[j].Path })

	summary := Summary{Files: len(reports), Reports: reports, Elapsed: time.Since(start)}
	for _, r := range reports {
		summary.Stats.Add(r.Stats)
		switch {
		case errors.Is(r.Err, ErrSkipped):
			summary.Skipped++
		case r.Err != nil:
			summary.Failed++
		}
	}
	return summary
}

// processFile parses one file and reports it finished to the sink, even on
// failure, so periodic commits keep counting files.
func processFile(job Job, terms wos.Matcher, sink Sink) FileReport {
	stats, err := wos.ParseFile(job.Path, job.SubjectID, terms, sink)
	if doneErr := sink.FileDone(); doneErr != nil {
		err = errors.Join(err, fmt.Errorf("finishing %s: %w", job.Path, doneErr))
	}
	return FileReport{Job: job, Stats: stats, Err: err}
}

// Discard is a Sink that counts records without storing them.
type Discard struct {
	records atomic.Int64
}

// Put counts rec.
func (d *Discard) Put(reference.Record) error {
	d.records.Add(1)
	return nil
}

// FileDone does nothing.
func (d *Discard) FileDone() error { return nil }

// Records returns the number of records received.
func (d *Discard) Records() int {
	return int(d.records.Load())
}
