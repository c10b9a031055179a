package task_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/canonical/marathond/task"
)

func TestTask_ExecuteImmediately(t *testing.T) {
	f, wait := newFunc(t, 1)
	stop, _ := task.Start(f, task.Every(time.Second))
	defer func() { _ = stop(time.Second) }()
	wait(100 * time.Millisecond)
}

func TestTask_ExecutePeriodically(t *testing.T) {
	f, wait := newFunc(t, 2)
	stop, _ := task.Start(f, task.Every(250*time.Millisecond))
	defer func() { _ = stop(time.Second) }()
	wait(100 * time.Millisecond)
	wait(400 * time.Millisecond)
}

func TestTask_Reset(t *testing.T) {
	f, wait := newFunc(t, 3)
	stop, reset := task.Start(f, task.Every(250*time.Millisecond))
	defer func() { _ = stop(time.Second) }()

	wait(50 * time.Millisecond)
	reset()
	wait(50 * time.Millisecond)
	wait(400 * time.Millisecond)
}

func TestTask_ZeroInterval(t *testing.T) {
	f, _ := newFunc(t, 0)
	stop, _ := task.Start(f, task.Every(0*time.Millisecond))
	defer func() { _ = stop(time.Second) }()

	time.Sleep(100 * time.Millisecond)
}

func TestTask_SkipFirst(t *testing.T) {
	i := 0
	f := func(context.Context) { i++ }
	stop, _ := task.Start(f, task.Every(250*time.Millisecond, task.SkipFirst))
	defer func() { _ = stop(time.Second) }()

	time.Sleep(400 * time.Millisecond)
	assert.Equal(t, 1, i)
}

func newFunc(t *testing.T, n int) (task.Func, func(time.Duration)) {
	i := 0
	notifications := make(chan struct{})
	f := func(context.Context) {
		if i == n {
			t.Fatalf("task was supposed to be called at most %d times", n)
		}

		notifications <- struct{}{}
		i++
	}

	wait := func(timeout time.Duration) {
		select {
		case <-notifications:
		case <-time.After(timeout):
			t.Fatalf("no notification received in %s", timeout)
		}
	}

	return f, wait
}
