// Package syncjob runs catalog jobs: fetch, normalize, then reconcile the
// destination table.
package syncjob

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/fortuna/cesta/internal/logging"
	"github.com/fortuna/cesta/internal/mapping"
	"github.com/fortuna/cesta/internal/sink"
	"github.com/fortuna/cesta/internal/source"
	"github.com/fortuna/cesta/internal/syncerr"
	"github.com/fortuna/cesta/internal/tablesync"
)

// Notifier announces finished runs, e.g. on a Redis stream.
type Notifier interface {
	PublishSyncResult(ctx context.Context, result Result) error
}

// Recorder collects per-run metrics.
type Recorder interface {
	Observe(result Result)
}

// Runner executes jobs against a single sink.
type Runner struct {
	deps     source.Deps
	sink     sink.Sink
	notifier Notifier
	metrics  Recorder
	logger   *logging.Logger
	now      func() time.Time

	emptyOverride EmptyPolicy
	dryRun        bool
}

type Option func(*Runner)

func WithNotifier(n Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

func WithRecorder(m Recorder) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithEmptyPolicy overrides every job's on_empty setting.
func WithEmptyPolicy(p EmptyPolicy) Option {
	return func(r *Runner) { r.emptyOverride = p }
}

// WithDryRun flags results as dry runs and suppresses notifications. The
// caller is expected to pass a throwaway sink.
func WithDryRun() Option {
	return func(r *Runner) { r.dryRun = true }
}

func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// NewRunner constructs a runner writing to s.
func NewRunner(deps source.Deps, s sink.Sink, opts ...Option) *Runner {
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	r := &Runner{
		deps:   deps,
		sink:   s,
		logger: deps.Logger.Named("runner"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.deps.Now == nil {
		r.deps.Now = r.now
	}
	return r
}

// Run executes one job, reporting progress via the Reporter if provided.
// A zero-row result under the skip policy returns a no_data result and a
// nil error; under the fail policy it returns syncerr.ErrNoData.
func (r *Runner) Run(ctx context.Context, job Job, reporter Reporter) (Result, error) {
	ctx = logging.WithJob(ctx, job.Name)
	start := r.now()
	res := Result{
		Job:       job.Name,
		Table:     job.Target.Table,
		DryRun:    r.dryRun,
		StartedAt: start,
	}

	if reporter != nil {
		reporter.OnJobStart(job)
	}
	r.logger.InfoContext(ctx, "sync started", "table", job.Target.Table, "strategy", string(job.Target.Strategy), "dry_run", r.dryRun)

	rows, err := r.collect(ctx, job, &res, reporter)
	if err != nil {
		return r.fail(ctx, job, res, err, reporter)
	}

	synced, err := tablesync.Sync(ctx, r.sink, job.Target, job.Mapping.ColumnNames(), rows)
	res.Written = synced.Written
	res.Batches = synced.Batches
	switch {
	case errors.Is(err, syncerr.ErrNoData):
		policy := r.policy(job)
		if policy == EmptyFail {
			return r.fail(ctx, job, res, errors.Wrapf(err, "job %s normalized zero rows", job.Name), reporter)
		}
		res.Status = StatusNoData
		res.Duration = r.now().Sub(start)
		r.logger.WarnContext(ctx, "no data, table left untouched", "rows_fetched", res.Fetched, "rows_dropped", res.Dropped)
		r.finish(ctx, res)
		if reporter != nil {
			reporter.OnJobComplete(res)
		}
		return res, nil
	case err != nil:
		return r.fail(ctx, job, res, err, reporter)
	}

	res.Status = StatusSucceeded
	res.Duration = r.now().Sub(start)
	r.logger.InfoContext(ctx, "sync completed",
		"rows_written", res.Written,
		"batches", res.Batches,
		"rows_dropped", res.Dropped,
		"pruned", synced.Pruned,
		"duplicate_keys", synced.Duplicates,
		"duration", res.Duration,
	)
	r.finish(ctx, res)
	if reporter != nil {
		reporter.OnJobComplete(res)
	}
	return res, nil
}

// Preview fetches and normalizes without touching the sink.
func (r *Runner) Preview(ctx context.Context, job Job) ([]mapping.Row, []error, error) {
	ctx = logging.WithJob(ctx, job.Name)
	records, err := r.fetch(ctx, job)
	if err != nil {
		return nil, nil, err
	}
	return job.Mapping.Normalize(records)
}

// RunAll executes jobs one after the other. A failed job does not stop the
// rest; the first failure is returned once all have run.
func (r *Runner) RunAll(ctx context.Context, jobs []Job, reporter Reporter) ([]Result, error) {
	results := make([]Result, 0, len(jobs))
	var (
		firstErr error
		failed   int
	)
	for _, job := range jobs {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		res, err := r.Run(ctx, job, reporter)
		results = append(results, res)
		if err != nil {
			failed++
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if firstErr != nil {
		return results, errors.Wrapf(firstErr, "%d of %d jobs failed", failed, len(jobs))
	}
	return results, nil
}

func (r *Runner) collect(ctx context.Context, job Job, res *Result, reporter Reporter) ([]mapping.Row, error) {
	records, err := r.fetch(ctx, job)
	if err != nil {
		return nil, err
	}
	res.Fetched = len(records)
	if reporter != nil {
		reporter.OnFetched(job, len(records))
	}

	rows, skipped, err := job.Mapping.Normalize(records)
	if err != nil {
		return nil, syncerr.Configuration("job %s: mapping: %v", job.Name, err)
	}
	for _, skipErr := range skipped {
		r.logger.WarnContext(ctx, "row skipped", "error", skipErr)
		if reporter != nil {
			reporter.OnRowSkipped(job, skipErr)
		}
	}
	res.Dropped = len(skipped)
	res.Normalized = len(rows)
	return rows, nil
}

func (r *Runner) fetch(ctx context.Context, job Job) ([]mapping.Record, error) {
	src, err := source.New(job.Source.Kind, r.deps)
	if err != nil {
		return nil, syncerr.Configuration("job %s: %v", job.Name, err)
	}
	records, err := src.Fetch(ctx, job.Source)
	if err != nil {
		return nil, errors.Wrapf(err, "fetch %s", job.Name)
	}
	return records, nil
}

func (r *Runner) policy(job Job) EmptyPolicy {
	if r.emptyOverride != "" {
		return r.emptyOverride
	}
	if job.OnEmpty == "" {
		return EmptyFail
	}
	return job.OnEmpty
}

func (r *Runner) fail(ctx context.Context, job Job, res Result, err error, reporter Reporter) (Result, error) {
	res.Status = StatusFailed
	res.Err = err
	res.ErrorKind = syncerr.Kind(err)
	res.Error = err.Error()
	res.Duration = r.now().Sub(res.StartedAt)

	r.logger.ErrorContext(ctx, "sync failed", "kind", res.ErrorKind, "error", err)
	r.finish(ctx, res)
	if reporter != nil {
		reporter.OnJobError(job, err)
	}
	return res, err
}

// finish hands the result to metrics and the notifier. Their failures are
// logged only; the table has already been written.
func (r *Runner) finish(ctx context.Context, res Result) {
	if r.dryRun {
		return
	}
	if r.metrics != nil {
		r.metrics.Observe(res)
	}
	if r.notifier != nil {
		if err := r.notifier.PublishSyncResult(ctx, res); err != nil {
			r.logger.WarnContext(ctx, "publish sync result", "error", err)
		}
	}
}
