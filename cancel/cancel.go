// Package cancel implements a one-shot cancellation token, adapted from
// the teacher's shared/cancel.Canceller: a context.Context stand-in that
// can be handed to callers needing a done channel and an error without
// wiring a full context tree.
package cancel

import (
	"context"
	"sync"
)

// Canceller is a one-shot cancellation signal. The zero value is not
// usable; construct with New.
type Canceller struct {
	mu   sync.Mutex
	done chan struct{}
	err  error
}

// New returns a fresh, uncancelled Canceller.
func New() *Canceller {
	return &Canceller{done: make(chan struct{})}
}

// Cancel marks the Canceller cancelled. Safe to call more than once; only
// the first call has effect.
func (c *Canceller) Cancel() {
	c.mu.Lock()
	defer c.mu.Unlock()

	select {
	case <-c.done:
		return
	default:
	}

	c.err = context.Canceled
	close(c.done)
}

// Done returns a channel closed once Cancel has been called.
func (c *Canceller) Done() <-chan struct{} {
	return c.done
}

// Err returns context.Canceled once cancelled, nil otherwise.
func (c *Canceller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Cancelled reports whether Cancel has been called.
func (c *Canceller) Cancelled() bool {
	select {
	case <-c.done:
		return true
	default:
		return false
	}
}
