// Package runner syncs a set of streams into sinks under an error policy.
package runner

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/saturnines/ants-tap/pkg/catalog"
	"github.com/saturnines/ants-tap/pkg/client"
	"github.com/saturnines/ants-tap/pkg/errors"
	"github.com/saturnines/ants-tap/pkg/logging"
	"github.com/saturnines/ants-tap/pkg/sink"
	"github.com/saturnines/ants-tap/pkg/transform"
)

// Policy decides what a stream failure does to the run.
type Policy string

const (
	// PolicyIsolated keeps the records fetched before a failure, reports the
	// error and continues with the next stream.
	PolicyIsolated Policy = "isolated"
	// PolicyStrict discards the failing stream and stops the run.
	PolicyStrict Policy = "strict"
)

// Source yields the records of a resource kind. *core.Orchestrator
// satisfies it.
type Source interface {
	Records(ctx context.Context, kind catalog.Kind) iter.Seq2[client.Record, error]
}

// Runner drives one sync run.
type Runner struct {
	source    Source
	sinks     []sink.Sink
	policy    Policy
	conformer *transform.Conformer
	logger    *slog.Logger
}

// Option configures a Runner
type Option func(*Runner)

// WithPolicy sets how a failing stream affects the rest of the run.
func WithPolicy(p Policy) Option {
	return func(r *Runner) {
		if p != "" {
			r.policy = p
		}
	}
}

// WithSinks sets where records are written. Every sink sees every stream.
func WithSinks(sinks ...sink.Sink) Option {
	return func(r *Runner) { r.sinks = append(r.sinks, sinks...) }
}

// WithConformer coerces records to their declared schema before they reach
// the sinks.
func WithConformer(c *transform.Conformer) Option {
	return func(r *Runner) { r.conformer = c }
}

// WithLogger sets the run logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// New creates a Runner reading from source.
func New(source Source, opts ...Option) *Runner {
	r := &Runner{source: source, policy: PolicyIsolated}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// StreamResult is the outcome of one stream.
type StreamResult struct {
	Stream   string
	Records  int // records handed to the sinks
	Err      error
	Duration time.Duration
}

// Report summarises a run.
type Report struct {
	RunID   string
	Started time.Time
	Results []StreamResult
}

// Err joins the stream failures, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, res := range r.Results {
		if res.Err != nil {
			errs = append(errs, fmt.Errorf("stream %s: %w", res.Stream, res.Err))
		}
	}
	return errors.Join(errs...)
}

// Records is the total number of records written.
func (r *Report) Records() int {
	n := 0
	for _, res := range r.Results {
		n += res.Records
	}
	return n
}

// Run syncs streams in order and closes the sinks.
func (r *Runner) Run(ctx context.Context, streams []catalog.Descriptor) *Report {
	report := &Report{RunID: uuid.NewString(), Started: time.Now()}
	logger := r.logger.With("run_id", report.RunID)
	ctx = logging.WithContext(ctx, logger)

	logger.Info("sync started", "streams", len(streams), "policy", string(r.policy))

	for _, desc := range streams {
		res := r.syncStream(logging.WithStream(ctx, desc.Name()), desc)
		report.Results = append(report.Results, res)

		if res.Err == nil {
			continue
		}
		if r.policy == PolicyStrict || ctx.Err() != nil {
			logger.Error("sync aborted", "stream", res.Stream, "error", res.Err)
			break
		}
	}

	for _, s := range r.sinks {
		if err := s.Close(); err != nil {
			logger.Warn("failed to close sink", "error", err)
		}
	}

	logger.Info("sync finished",
		"records", report.Records(),
		"failed", report.Err() != nil,
		"duration", time.Since(report.Started),
	)
	return report
}

func (r *Runner) syncStream(ctx context.Context, desc catalog.Descriptor) StreamResult {
	logger := logging.FromContext(ctx)
	start := time.Now()
	res := StreamResult{Stream: desc.Name()}

	records := []client.Record{}
	var fetchErr error
	for rec, err := range r.source.Records(ctx, desc.Kind) {
		if err != nil {
			fetchErr = err
			break
		}
		if r.conformer != nil {
			rec = r.conformer.Conform(rec, desc.Schema)
		}
		records = append(records, rec)
	}

	if fetchErr != nil {
		logger.Error("stream failed",
			"error", fetchErr,
			"status", errors.StatusCode(fetchErr),
			"fetched", len(records),
		)
		res.Err = fetchErr
		if r.policy == PolicyStrict {
			res.Duration = time.Since(start)
			return res
		}
	}

	for _, s := range r.sinks {
		if err := s.Write(ctx, desc, records); err != nil {
			logger.Error("sink failed", "error", err)
			res.Err = errors.Join(res.Err, err)
			res.Duration = time.Since(start)
			return res
		}
	}
	res.Records = len(records)
	res.Duration = time.Since(start)
	logger.Info("stream synced", "records", res.Records, "duration", res.Duration)
	return res
}
