package usecase

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Urkchar/mtg-spoilers-bot/internal/metrics"
	"github.com/Urkchar/mtg-spoilers-bot/internal/routing"
)

type manualDriver struct {
	mu  sync.Mutex
	job func(time.Time)
}

func (d *manualDriver) Start(_ context.Context, job func(time.Time)) error {
	d.mu.Lock()
	d.job = job
	d.mu.Unlock()
	return nil
}

func (d *manualDriver) Stop(context.Context) error { return nil }

func (d *manualDriver) fire() {
	d.mu.Lock()
	job := d.job
	d.mu.Unlock()
	job(time.Now())
}

func TestTaskRejectsOverlappingRuns(t *testing.T) {
	f := newFixture(t, routing.Single("Spoilers", "main"), card("a", "2024-01-04"))
	f.feed.block = make(chan struct{})
	task := NewTask(&manualDriver{}, f.pipeline, nil)

	done := make(chan error, 1)
	go func() {
		_, err := task.RunNow(context.Background())
		done <- err
	}()
	require.Eventually(t, task.Running, time.Second, time.Millisecond)

	_, err := task.CheckNow(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)
	_, err = task.PostAll(context.Background())
	assert.ErrorIs(t, err, ErrRunInProgress)

	okRuns := testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("spoilers", "ok"))
	close(f.feed.block)
	require.NoError(t, <-done)
	assert.False(t, task.Running())
	assert.Equal(t, okRuns+1, testutil.ToFloat64(metrics.RunsTotal.WithLabelValues("spoilers", "ok")))
	assert.Equal(t, []string{"a"}, f.notifier.delivered("main"))
}

func TestTaskSkipsTriggerWhileRunning(t *testing.T) {
	f := newFixture(t, routing.Single("Spoilers", "main"), card("a", "2024-01-04"))
	f.feed.block = make(chan struct{})
	driver := &manualDriver{}
	task := NewTask(driver, f.pipeline, nil)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- task.Serve(ctx) }()
	require.Eventually(t, func() bool {
		driver.mu.Lock()
		defer driver.mu.Unlock()
		return driver.job != nil
	}, time.Second, time.Millisecond)

	go driver.fire()
	require.Eventually(t, task.Running, time.Second, time.Millisecond)

	skipped := testutil.ToFloat64(metrics.SkippedRunsTotal.WithLabelValues("spoilers"))
	driver.fire() // returns immediately: skipped
	assert.Equal(t, 1, f.feed.callCount())
	assert.Equal(t, skipped+1, testutil.ToFloat64(metrics.SkippedRunsTotal.WithLabelValues("spoilers")))

	close(f.feed.block)
	require.Eventually(t, func() bool { return !task.Running() }, time.Second, time.Millisecond)

	cancel()
	assert.ErrorIs(t, <-served, context.Canceled)
	assert.Equal(t, []string{"a"}, f.notifier.delivered("main"))
}

func TestTaskRecoversPanickingRun(t *testing.T) {
	f := newFixture(t, routing.Single("Spoilers", "main"), card("a", "2024-01-04"))
	f.pipeline.renderer = nil
	task := NewTask(&manualDriver{}, f.pipeline, nil)

	_, err := task.RunNow(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
	assert.False(t, task.Running())
}
