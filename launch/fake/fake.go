// Package fake provides a simulated launch.Facade for tests and for
// running cmd/marathond without a real cluster backend. Every launched
// instance transitions STAGING -> RUNNING after a configurable delay,
// mirroring the simplest possible lxd-agent exec lifecycle.
package fake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/canonical/marathond/launch"
	"github.com/canonical/marathond/snapshot"
)

// Facade is an in-memory launch.Facade. The zero value is usable; it
// launches instances that become RUNNING immediately. Use WithStartupDelay
// to simulate staging time.
type Facade struct {
	mu     sync.Mutex
	tasks  map[launch.TaskId]*launch.TaskStatus
	delay  time.Duration
	nextIP int
}

// New returns an empty Facade.
func New() *Facade {
	return &Facade{tasks: map[launch.TaskId]*launch.TaskStatus{}}
}

// WithStartupDelay configures how long a launched task stays STAGING
// before Status reports it as RUNNING.
func (f *Facade) WithStartupDelay(d time.Duration) *Facade {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.delay = d
	return f
}

// Launch records a new staged instance of spec and returns its id.
func (f *Facade) Launch(ctx context.Context, spec snapshot.AppSpec, instanceIndex int) (launch.TaskId, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.tasks == nil {
		f.tasks = map[launch.TaskId]*launch.TaskStatus{}
	}

	id := launch.TaskId(uuid.NewString())
	f.nextIP++
	host := fmt.Sprintf("10.0.0.%d", f.nextIP%254+1)

	status := &launch.TaskStatus{ID: id, State: launch.TaskStaging}
	f.tasks[id] = status

	if f.delay <= 0 {
		status.State = launch.TaskRunning
		status.Host = host
	} else {
		go func() {
			time.Sleep(f.delay)
			f.mu.Lock()
			defer f.mu.Unlock()
			if s, ok := f.tasks[id]; ok && s.State == launch.TaskStaging {
				s.State = launch.TaskRunning
				s.Host = host
			}
		}()
	}

	return id, nil
}

// Kill marks id as killed; reason is ignored.
func (f *Facade) Kill(ctx context.Context, id launch.TaskId, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	status, ok := f.tasks[id]
	if !ok {
		return fmt.Errorf("fake launch: unknown task %s", id)
	}

	status.State = launch.TaskKilled
	return nil
}

// Status reports the current state of id.
func (f *Facade) Status(ctx context.Context, id launch.TaskId) (launch.TaskStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	status, ok := f.tasks[id]
	if !ok {
		return launch.TaskStatus{}, fmt.Errorf("fake launch: unknown task %s", id)
	}

	return *status, nil
}
