package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/Urkchar/mtg-spoilers-bot/internal/domain"
	"github.com/Urkchar/mtg-spoilers-bot/internal/metrics"
	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// ErrRunInProgress is returned when a command hits a task that is already running.
var ErrRunInProgress = errors.New("run already in progress")

// Task binds a trigger driver to a pipeline and guarantees at most one active run.
type Task struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	logger   *slog.Logger

	// StopTimeout bounds how long Serve waits for an in-flight run on shutdown.
	StopTimeout time.Duration

	running atomic.Bool
}

// NewTask returns a supervised task.
func NewTask(driver ports.Scheduler, pipeline *Pipeline, logger *slog.Logger) *Task {
	if logger == nil {
		logger = slog.Default()
	}
	return &Task{
		driver:      driver,
		pipeline:    pipeline,
		logger:      logger.With("component", "task", "task", pipeline.Name()),
		StopTimeout: 10 * time.Second,
	}
}

// String names the task for the supervisor.
func (t *Task) String() string { return t.pipeline.Name() }

// Serve starts the trigger driver and blocks until ctx is cancelled.
func (t *Task) Serve(ctx context.Context) error {
	if err := t.driver.Start(ctx, func(at time.Time) { t.fire(ctx, at) }); err != nil {
		return fmt.Errorf("start %s scheduler: %w", t, err)
	}
	t.logger.Info("task started")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), t.StopTimeout)
	defer cancel()
	if err := t.driver.Stop(stopCtx); err != nil {
		t.logger.Warn("task stop", "error", err)
	}
	t.logger.Info("task stopped")
	return ctx.Err()
}

func (t *Task) fire(ctx context.Context, at time.Time) {
	if !t.running.CompareAndSwap(false, true) {
		metrics.SkippedRunsTotal.WithLabelValues(t.String()).Inc()
		t.logger.Warn("trigger skipped, previous run still active", "fired_at", at)
		return
	}
	defer t.running.Store(false)

	_, _ = t.execute(ctx, "scheduled", t.pipeline.Run)
}

// RunNow runs a normal delivery cycle outside the schedule.
func (t *Task) RunNow(ctx context.Context) (domain.RunReport, error) {
	return t.guarded(ctx, "run-now", t.pipeline.Run)
}

// CheckNow previews the newest candidate.
func (t *Task) CheckNow(ctx context.Context) (domain.RunReport, error) {
	return t.guarded(ctx, "check-now", t.pipeline.CheckNow)
}

// PostAll delivers every new candidate to the primary destination.
func (t *Task) PostAll(ctx context.Context) (domain.RunReport, error) {
	return t.guarded(ctx, "post-all", t.pipeline.PostAll)
}

// Notify forwards a status line through the pipeline's status channel.
func (t *Task) Notify(ctx context.Context, text string) {
	t.pipeline.Notify(ctx, text)
}

// Running reports whether a run is active.
func (t *Task) Running() bool { return t.running.Load() }

func (t *Task) guarded(ctx context.Context, kind string, fn func(context.Context) (domain.RunReport, error)) (domain.RunReport, error) {
	if !t.running.CompareAndSwap(false, true) {
		return domain.RunReport{}, ErrRunInProgress
	}
	defer t.running.Store(false)
	return t.execute(ctx, kind, fn)
}

func (t *Task) execute(ctx context.Context, kind string, fn func(context.Context) (domain.RunReport, error)) (report domain.RunReport, err error) {
	start := time.Now()
	name := t.String()

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("run panicked: %v", r)
			t.logger.Error("run panicked", "kind", kind, "panic", r)
			metrics.RunsTotal.WithLabelValues(name, "error").Inc()
		}
	}()

	report, err = fn(ctx)
	metrics.RunDuration.WithLabelValues(name).Observe(time.Since(start).Seconds())

	var fetchErr *domain.FetchError
	switch {
	case err == nil:
		metrics.RunsTotal.WithLabelValues(name, "ok").Inc()
		metrics.LastSuccessTimestamp.WithLabelValues(name).SetToCurrentTime()
		t.logger.Info("run finished",
			"kind", kind,
			"run_id", report.RunID,
			"cutoff", report.Cutoff,
			"considered", report.Considered(),
			"delivered", report.Delivered(),
			"skipped", report.Skipped,
			"duration", time.Since(start),
		)
	case errors.As(err, &fetchErr):
		metrics.RunsTotal.WithLabelValues(name, "fetch_error").Inc()
		t.logger.Error("run aborted, fetch failed", "kind", kind, "run_id", report.RunID, "source", fetchErr.Source, "error", err)
	default:
		metrics.RunsTotal.WithLabelValues(name, "error").Inc()
		t.logger.Error("run failed", "kind", kind, "run_id", report.RunID, "error", err)
	}
	return report, err
}
