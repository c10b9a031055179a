// Package health implements the per-(appId, appVersion, check) probe
// actor: one supervisor goroutine per workload health check, folding
// probe results into per-task Health records and requesting kills for
// persistently unhealthy tasks. Grounded on lxd/task's scheduler for
// ticking and lxd/cluster/events' publish idiom for fan-out.
package health

import (
	"context"
	"sync"
	"time"

	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/launch"
	"github.com/canonical/marathond/logging"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/task"
	"github.com/canonical/marathond/timestamp"
)

// Health is the supervisor's judgment about one task's fitness, derived
// from probe history.
type Health struct {
	ConsecutiveFailures int
	FirstSuccess        timestamp.Timestamp
	LastSuccess         timestamp.Timestamp
	LastFailure         timestamp.Timestamp
	LastFailureCause    string
	Alive               bool
}

// Result is one probe outcome delivered to a Supervisor.
type Result struct {
	TaskID    launch.TaskId
	Version   timestamp.Timestamp
	Healthy   bool
	Cause     string
	Reachable bool
}

// Prober executes one probe against a task and reports the outcome. A
// real implementation dials HTTP/TCP per snapshot.HealthCheck; COMMAND
// checks are never dispatched here (spec.md §4.6) — the task runtime
// delivers those results asynchronously via Supervisor.Deliver.
type Prober interface {
	Probe(ctx context.Context, taskID launch.TaskId, host string, check snapshot.HealthCheck) Result
}

// Killer requests termination of an unhealthy task.
type Killer interface {
	Kill(ctx context.Context, id launch.TaskId, reason string) error
}

type runningTask struct {
	ID        launch.TaskId
	Host      string
	StartedAt timestamp.Timestamp
	Reachable bool
}

// Supervisor tracks one (appId, appVersion, check)'s running tasks and
// their Health, at most one message processed at a time.
type Supervisor struct {
	appID   pathid.PathId
	version timestamp.Timestamp
	check   snapshot.HealthCheck

	prober Prober
	killer Killer
	hub    *events.Hub

	mu      sync.Mutex
	running map[launch.TaskId]runningTask
	health  map[launch.TaskId]Health

	resultCh chan Result
	stop     func(time.Duration) error
	reset    func()
}

// maxConsecutiveFailures==0 means the check never forces alive=false
// (spec.md §3 Health invariant).
func aliveFor(h Health, maxFailures int) bool {
	if maxFailures <= 0 {
		return true
	}

	return h.ConsecutiveFailures < maxFailures
}

// NewSupervisor starts a Supervisor ticking at check.Interval; the first
// tick comes one Interval after construction. Callers must call Stop when
// no running tasks of (appID, version) remain.
func NewSupervisor(appID pathid.PathId, version timestamp.Timestamp, check snapshot.HealthCheck, prober Prober, killer Killer, hub *events.Hub) *Supervisor {
	s := &Supervisor{
		appID:    appID,
		version:  version,
		check:    check,
		prober:   prober,
		killer:   killer,
		hub:      hub,
		running:  map[launch.TaskId]runningTask{},
		health:   map[launch.TaskId]Health{},
		resultCh: make(chan Result, 32),
	}

	stop, reset := task.Start(s.tick, task.Every(check.Interval, task.SkipFirst))
	s.stop = stop
	s.reset = reset

	go s.deliverLoop()

	return s
}

// SetRunningTasks replaces the supervisor's view of which tasks are
// currently launched for this (appId, appVersion); the next Tick purges
// Health entries for tasks no longer present.
func (s *Supervisor) SetRunningTasks(tasks []launch.TaskId, hosts map[launch.TaskId]string, startedAt map[launch.TaskId]timestamp.Timestamp, reachable map[launch.TaskId]bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	running := make(map[launch.TaskId]runningTask, len(tasks))
	for _, id := range tasks {
		running[id] = runningTask{
			ID:        id,
			Host:      hosts[id],
			StartedAt: startedAt[id],
			Reachable: reachable[id],
		}
	}

	s.running = running
}

// GetTaskHealth replies with the Health of one task, or the zero value
// if unknown.
func (s *Supervisor) GetTaskHealth(id launch.TaskId) Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.health[id]
}

// IsAlive reports whether id is currently judged healthy: true until an
// observed task accumulates MaxConsecutiveFailures consecutive probe
// failures, and true for any task never yet probed.
func (s *Supervisor) IsAlive(id launch.TaskId) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return aliveFor(s.health[id], s.check.MaxConsecutiveFailures)
}

// GetAppHealth replies with every tracked task's Health.
func (s *Supervisor) GetAppHealth() map[launch.TaskId]Health {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[launch.TaskId]Health, len(s.health))
	for k, v := range s.health {
		out[k] = v
	}

	return out
}

// Deliver enqueues a probe result (e.g. an asynchronous COMMAND-check
// result from the task runtime) for folding.
func (s *Supervisor) Deliver(r Result) {
	select {
	case s.resultCh <- r:
	default:
		logging.Warn("health result dropped, supervisor busy", logging.Ctx{"app": s.appID.String()})
	}
}

// Stop halts the probe timer and result-delivery loop.
func (s *Supervisor) Stop(timeout time.Duration) error {
	close(s.resultCh)
	return s.stop(timeout)
}

func (s *Supervisor) deliverLoop() {
	for r := range s.resultCh {
		s.fold(r)
	}
}

// tick implements the per-Tick probe protocol of spec.md §4.6: purge
// stale health, dispatch one probe per running task, reschedule (the
// reschedule is implicit in task.Every's fixed-interval Schedule).
func (s *Supervisor) tick(ctx context.Context) {
	s.mu.Lock()
	tasks := make([]runningTask, 0, len(s.running))
	for _, rt := range s.running {
		tasks = append(tasks, rt)
	}

	for id := range s.health {
		if _, ok := s.running[id]; !ok {
			delete(s.health, id)
		}
	}
	s.mu.Unlock()

	if s.check.Protocol == snapshot.HealthCheckCommand {
		return
	}

	for _, rt := range tasks {
		timeout := s.check.TimeoutSeconds
		if s.check.Interval > 0 && s.check.Interval < timeout {
			timeout = s.check.Interval
		}

		probeCtx, cancel := context.WithTimeout(ctx, timeout)
		result := s.prober.Probe(probeCtx, rt.ID, rt.Host, s.check)
		cancel()

		result.TaskID = rt.ID
		result.Version = s.version
		s.fold(result)
	}
}

// fold applies the probe-result folding rules of spec.md §4.6.
func (s *Supervisor) fold(r Result) {
	if !r.Version.Equal(s.version) {
		return
	}

	s.mu.Lock()

	rt, tracked := s.running[r.TaskID]
	if !tracked {
		s.mu.Unlock()
		return
	}

	h := s.health[r.TaskID]
	wasAlive := aliveFor(h, s.check.MaxConsecutiveFailures)

	now := timestamp.Now()

	if r.Healthy {
		if h.FirstSuccess.IsZero() {
			h.FirstSuccess = now
		}
		h.LastSuccess = now
		h.ConsecutiveFailures = 0
	} else {
		graceEnds := timestamp.FromTime(rt.StartedAt.Time().Add(s.check.GracePeriod))
		inGrace := h.FirstSuccess.IsZero() && now.Before(graceEnds)
		if inGrace {
			s.mu.Unlock()
			return
		}

		h.ConsecutiveFailures++
		h.LastFailure = now
		h.LastFailureCause = r.Cause
	}

	h.Alive = aliveFor(h, s.check.MaxConsecutiveFailures)
	s.health[r.TaskID] = h

	maxFailures := s.check.MaxConsecutiveFailures
	appID := s.appID
	version := s.version
	hub := s.hub
	killer := s.killer
	reachable := rt.Reachable

	s.mu.Unlock()

	now2 := time.Now()

	if !r.Healthy {
		if hub != nil {
			hub.Publish(events.NewFailedHealthCheck(now2, appID.String(), string(r.TaskID), r.Cause))
		}

		if maxFailures > 0 && h.ConsecutiveFailures >= maxFailures {
			if reachable {
				if killer != nil {
					_ = killer.Kill(context.Background(), r.TaskID, "FailedHealthChecks")
				}

				if hub != nil {
					hub.Publish(events.NewUnhealthyTaskKillEvent(now2, appID.String(), string(r.TaskID), "FailedHealthChecks"))
				}
			} else {
				logging.Info("unreachable task not killed despite failing health checks", logging.Ctx{
					"app": appID.String(), "task": string(r.TaskID),
				})
			}
		}
	}

	if h.Alive != wasAlive && hub != nil {
		hub.Publish(events.NewHealthStatusChanged(now2, appID.String(), string(r.TaskID), version.String(), h.Alive))
	}
}
