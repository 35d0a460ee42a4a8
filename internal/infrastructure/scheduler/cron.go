// Package scheduler drives task runs from interval and daily triggers.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/Urkchar/mtg-spoilers-bot/internal/ports"
)

// Runner fires job at each trigger time. Jobs run on their own goroutine so a slow run
// never shifts the schedule; overlap is the job's concern.
type Runner struct {
	trigger Trigger
	now     func() time.Time

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
	jobs sync.WaitGroup
}

var _ ports.Scheduler = (*Runner)(nil)

// NewRunner builds a runner for trigger.
func NewRunner(trigger Trigger) *Runner {
	return &Runner{trigger: trigger, now: time.Now}
}

// Trigger exposes the configured trigger.
func (r *Runner) Trigger() Trigger { return r.trigger }

// Start begins firing. A second Start while running is a no-op.
func (r *Runner) Start(ctx context.Context, job func(time.Time)) error {
	if job == nil {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stop != nil {
		return nil
	}

	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	go r.loop(ctx, job, r.stop, r.done)
	return nil
}

func (r *Runner) loop(ctx context.Context, job func(time.Time), stop, done chan struct{}) {
	defer close(done)

	fire := func(t time.Time) {
		r.jobs.Add(1)
		go func() {
			defer r.jobs.Done()
			job(t)
		}()
	}

	if r.trigger.Immediate() {
		fire(r.now())
	}

	for {
		now := r.now()
		timer := time.NewTimer(r.trigger.Next(now).Sub(now))
		select {
		case t := <-timer.C:
			fire(t)
		case <-ctx.Done():
			timer.Stop()
			return
		case <-stop:
			timer.Stop()
			return
		}
	}
}

// Stop halts the loop and waits for in-flight jobs until ctx expires.
func (r *Runner) Stop(ctx context.Context) error {
	r.mu.Lock()
	stop, done := r.stop, r.done
	r.stop, r.done = nil, nil
	r.mu.Unlock()

	if stop == nil {
		return nil
	}
	close(stop)
	<-done

	finished := make(chan struct{})
	go func() {
		r.jobs.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
