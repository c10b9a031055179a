// Package task implements a periodic-task scheduler, adapted from the
// teacher's lxd/task package: a Func is run on a Schedule, with support
// for immediate first execution, skipping the first run, and resetting
// the timer on demand. Used to drive HealthSupervisor probe ticks.
package task

import (
	"context"
	"time"
)

// Func is a unit of work invoked by the scheduler.
type Func func(context.Context)

// Schedule returns the delay before the next invocation of a Func, or an
// error to stop scheduling. Start stops for good on any error; the
// duration returned alongside an error is ignored.
type Schedule func() (time.Duration, error)

type scheduleOptions struct {
	skipFirst bool
}

// Option tweaks the behavior of Every.
type Option func(*scheduleOptions)

// SkipFirst causes the first invocation to be skipped; the Func only
// runs starting from the second tick.
func SkipFirst(o *scheduleOptions) {
	o.skipFirst = true
}

// errNeverFire is returned by the Schedule built by Every when interval is
// zero or negative: Start treats it as a permanent stop before invoking f,
// never as an immediate run.
type errNeverFire struct{}

func (errNeverFire) Error() string { return "task: interval <= 0, schedule never fires" }

// Every returns a Schedule that fires at a fixed interval. An interval of
// zero never fires.
func Every(interval time.Duration, opts ...Option) Schedule {
	var o scheduleOptions
	for _, opt := range opts {
		opt(&o)
	}

	first := true
	return func() (time.Duration, error) {
		if interval <= 0 {
			return 0, errNeverFire{}
		}

		if first {
			first = false
			if o.skipFirst {
				return interval, nil
			}

			return 0, nil
		}

		return interval, nil
	}
}

// Start begins running f on the given schedule in a new goroutine. It
// returns stop, which must be called to terminate the task (it waits up
// to timeout for the in-flight invocation to return, then gives up), and
// reset, which causes f to be invoked again immediately.
func Start(f Func, schedule Schedule) (stop func(timeout time.Duration) error, reset func()) {
	ctx, cancel := context.WithCancel(context.Background())
	resetCh := make(chan struct{}, 1)
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		for {
			delay, err := schedule()
			if err != nil {
				return
			}

			if delay > 0 {
				timer := time.NewTimer(delay)
				select {
				case <-timer.C:
				case <-resetCh:
					timer.Stop()
				case <-ctx.Done():
					timer.Stop()
					return
				}
			}

			select {
			case <-ctx.Done():
				return
			default:
			}

			f(ctx)
		}
	}()

	stop = func(timeout time.Duration) error {
		cancel()

		select {
		case <-stopped:
			return nil
		case <-time.After(timeout):
			return errTimeout{}
		}
	}

	reset = func() {
		select {
		case resetCh <- struct{}{}:
		default:
		}
	}

	return stop, reset
}

type errTimeout struct{}

func (errTimeout) Error() string { return "task did not stop within timeout" }
