// Package scheduler fires one job at a fixed UTC time every day.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ErrBusy is returned by Trigger while a previous run is still in flight.
var ErrBusy = errors.New("scheduler: job is already running")

// Job is the work fired once a day.
type Job func(ctx context.Context) error

// Daily runs a Job every day at hour:minute UTC.
//
// NO OVERLAP:
// Runs are guarded by an atomic flag, not a queue. A second Trigger while a
// run is in flight (the timer firing during a manual run, or the other way
// round) is refused with ErrBusy instead of waiting, so a slow run can never
// pile up work behind it.
type Daily struct {
	hour, minute int
	job          Job
	logger       *slog.Logger
	now          func() time.Time

	running   atomic.Bool
	done      chan struct{}
	wg        sync.WaitGroup
	startOnce sync.Once
	stopOnce  sync.Once
}

// Option configures a Daily.
type Option func(*Daily)

// WithClock overrides the clock (tests).
func WithClock(now func() time.Time) Option {
	return func(d *Daily) { d.now = now }
}

// NewDaily creates a schedule. It does not start until Start is called.
func NewDaily(hour, minute int, job Job, logger *slog.Logger, opts ...Option) (*Daily, error) {
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return nil, fmt.Errorf("scheduler: invalid time of day %02d:%02d", hour, minute)
	}
	d := &Daily{
		hour:   hour,
		minute: minute,
		job:    job,
		logger: logger,
		now:    time.Now,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// NextRun returns the first hour:minute UTC strictly after now.
func NextRun(now time.Time, hour, minute int) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// Start begins the timer loop in the background. Runs use ctx; cancelling it
// or calling Stop ends the loop.
func (d *Daily) Start(ctx context.Context) {
	d.startOnce.Do(func() {
		d.logger.Info("daily schedule started",
			slog.String("at", fmt.Sprintf("%02d:%02d UTC", d.hour, d.minute)),
			slog.Time("next", NextRun(d.now(), d.hour, d.minute)),
		)
		d.wg.Add(1)
		go d.loop(ctx)
	})
}

// Stop ends the loop and waits for an in-flight run to return.
func (d *Daily) Stop() {
	d.stopOnce.Do(func() { close(d.done) })
	d.wg.Wait()
}

func (d *Daily) loop(ctx context.Context) {
	defer d.wg.Done()

	for {
		wait := NextRun(d.now(), d.hour, d.minute).Sub(d.now())
		timer := time.NewTimer(wait)

		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-d.done:
			timer.Stop()
			return
		case <-timer.C:
			if err := d.Trigger(ctx); err != nil {
				d.logger.Error("scheduled run failed", slog.String("error", err.Error()))
			}
		}
	}
}

// Trigger runs the job now unless a run is already in flight (ErrBusy).
// A panicking job is recovered and reported as an error.
func (d *Daily) Trigger(ctx context.Context) (err error) {
	if !d.running.CompareAndSwap(false, true) {
		d.logger.Warn("skipping run, previous run still in flight")
		return ErrBusy
	}
	defer d.running.Store(false)

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("scheduler: job panicked: %v", r)
		}
	}()

	start := d.now()
	err = d.job(ctx)
	d.logger.Info("run finished", slog.Duration("took", d.now().Sub(start)), slog.Bool("ok", err == nil))
	return err
}

// Running reports whether a run is in flight.
func (d *Daily) Running() bool {
	return d.running.Load()
}
