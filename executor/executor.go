// Package executor implements the DeploymentExecutor: it drives a
// planner.DeploymentPlan's steps sequentially, fanning out actions
// within a step concurrently, retrying failed launches with exponential
// backoff, and enforcing the rolling-upgrade capacity invariants for
// RestartApp actions. Grounded on the teacher's operations idiom
// (client/operations.go: poll-until-done with a cancellation channel)
// and shared/cancel for force-cancellation.
package executor

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/canonical/marathond/cancel"
	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/health"
	"github.com/canonical/marathond/launch"
	"github.com/canonical/marathond/logging"
	"github.com/canonical/marathond/planner"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

// maxLaunchAttempts bounds the number of backoff-spaced retries before an
// action's deployment is declared failed (spec.md §4.5: "after
// maxLaunchDelay is exhausted the deployment is marked failed").
const maxLaunchAttempts = 5

// healthKey identifies one (appId, appVersion) pair's Supervisor set.
// Distinct versions of the same app get distinct Supervisors so a
// rolling restart's old and new instances are judged against their own
// health checks independently (spec.md §4.6).
type healthKey struct {
	appIDStr string
	version  string
}

// executorHealth backs waitHealthy with the Supervisors the Executor
// itself creates and tears down as task versions come and go. An app
// version with no configured health checks is trivially alive.
type executorHealth struct {
	e *Executor
}

func (h executorHealth) IsAlive(appIDStr string, taskID launch.TaskId) bool {
	e := h.e

	e.healthMu.Lock()
	version, tracked := e.taskVersion[taskID]
	var sups []*health.Supervisor
	if tracked {
		sups = e.supervisors[healthKey{appIDStr, version.String()}]
	}
	e.healthMu.Unlock()

	if !tracked {
		return true
	}

	for _, s := range sups {
		if !s.IsAlive(taskID) {
			return false
		}
	}

	return true
}

// Executor drives deployment plans against a launch.Facade, tracking the
// currently-launched task set per app so successive deployments can
// compute scale and rolling-restart deltas. It also owns one
// health.Supervisor per (appId, appVersion, check), created on first
// launch of a version and torn down once that version has no running
// tasks left (spec.md §4.6).
type Executor struct {
	facade launch.Facade
	hub    *events.Hub
	prober health.Prober
	health executorHealth

	mu    sync.Mutex
	tasks map[string][]launch.TaskId

	healthMu    sync.Mutex
	supervisors map[healthKey][]*health.Supervisor
	taskVersion map[launch.TaskId]timestamp.Timestamp
	taskHost    map[launch.TaskId]string
	taskStarted map[launch.TaskId]timestamp.Timestamp
}

// New returns an Executor over facade, publishing progress to hub and
// probing task health through prober. prober may be nil, in which case
// a NetProber dialing real hosts over HTTP/TCP is used.
func New(facade launch.Facade, hub *events.Hub, prober health.Prober) *Executor {
	if prober == nil {
		prober = health.NewNetProber()
	}

	e := &Executor{
		facade:      facade,
		hub:         hub,
		prober:      prober,
		tasks:       map[string][]launch.TaskId{},
		supervisors: map[healthKey][]*health.Supervisor{},
		taskVersion: map[launch.TaskId]timestamp.Timestamp{},
		taskHost:    map[launch.TaskId]string{},
		taskStarted: map[launch.TaskId]timestamp.Timestamp{},
	}
	e.health = executorHealth{e: e}

	return e
}

// Tasks returns a snapshot of the currently-tracked task ids for appID,
// for HealthSupervisor wiring.
func (e *Executor) Tasks(appIDStr string) []launch.TaskId {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]launch.TaskId, len(e.tasks[appIDStr]))
	copy(out, e.tasks[appIDStr])
	return out
}

// Deployment is a handle onto one in-flight plan execution.
type Deployment struct {
	ID   string
	canc *cancel.Canceller
	done chan struct{}
	err  error
}

// Done reports when the deployment has finished, successfully or not.
func (d *Deployment) Done() <-chan struct{} { return d.done }

// Err returns the deployment's terminal error, if any, valid after Done
// closes.
func (d *Deployment) Err() error { return d.err }

// Cancel force-cancels the deployment; DeploymentCanceled is published
// once in-flight actions drain.
func (d *Deployment) Cancel() {
	d.canc.Cancel()
}

// Start begins executing plan in a new goroutine and returns immediately
// with a handle onto its progress.
func (e *Executor) Start(ctx context.Context, plan *planner.DeploymentPlan) *Deployment {
	d := &Deployment{ID: plan.ID, canc: cancel.New(), done: make(chan struct{})}

	go func() {
		defer close(d.done)

		runCtx, stop := context.WithCancel(ctx)
		defer stop()

		go func() {
			select {
			case <-d.canc.Done():
				stop()
			case <-runCtx.Done():
			}
		}()

		err := e.run(runCtx, plan, d.canc)

		if d.canc.Cancelled() {
			d.err = d.canc.Err()
			if e.hub != nil {
				e.hub.Publish(events.NewDeploymentCanceled(time.Now(), plan.ID))
			}
			return
		}

		if err != nil {
			d.err = err
			if e.hub != nil {
				e.hub.Publish(events.NewDeploymentFailed(time.Now(), plan.ID, err.Error()))
			}
			return
		}

		if e.hub != nil {
			e.hub.Publish(events.NewDeploymentSuccess(time.Now(), plan.ID))
		}
	}()

	return d
}

func (e *Executor) run(ctx context.Context, plan *planner.DeploymentPlan, canc *cancel.Canceller) error {
	for i, step := range plan.Steps {
		select {
		case <-canc.Done():
			return nil
		default:
		}

		if e.hub != nil {
			e.hub.Publish(events.NewDeploymentInfo(time.Now(), plan.ID, fmt.Sprintf("starting step %d/%d", i+1, len(plan.Steps))))
		}

		if err := e.runStep(ctx, step, canc); err != nil {
			return err
		}
	}

	return nil
}

func (e *Executor) runStep(ctx context.Context, step planner.Step, canc *cancel.Canceller) error {
	var wg sync.WaitGroup
	errs := make(chan error, len(step))

	for _, act := range step {
		act := act
		wg.Add(1)
		go func() {
			defer wg.Done()

			select {
			case <-canc.Done():
				return
			default:
			}

			errs <- e.runAction(ctx, act)
		}()
	}

	wg.Wait()
	close(errs)

	var merr *multierror.Error
	for err := range errs {
		if err != nil {
			merr = multierror.Append(merr, err)
		}
	}

	return merr.ErrorOrNil()
}

func (e *Executor) runAction(ctx context.Context, act planner.Action) error {
	appIDStr := act.AppID.String()

	switch act.Kind {
	case planner.ActionStart:
		return e.startInstances(ctx, appIDStr, act.Spec, 0, act.Spec.Instances)
	case planner.ActionStop:
		return e.stopAll(ctx, appIDStr, "StopApp")
	case planner.ActionScale:
		return e.scale(ctx, appIDStr, act.Spec, act.FromInstances, act.ToInstances)
	case planner.ActionRestart:
		return e.restart(ctx, appIDStr, act)
	default:
		return fmt.Errorf("unknown action kind %q", act.Kind)
	}
}

// launchAndAwait launches one instance and polls until it reaches
// RUNNING, retrying with the app's backoff schedule up to
// maxLaunchAttempts.
func (e *Executor) launchAndAwait(ctx context.Context, appIDStr string, spec snapshot.AppSpec, instanceIndex int) (launch.TaskId, error) {
	var lastErr error

	for k := 0; k < maxLaunchAttempts; k++ {
		if k > 0 {
			delay := spec.Backoff.NextDelay(k)
			timer := time.NewTimer(delay)
			select {
			case <-timer.C:
			case <-ctx.Done():
				timer.Stop()
				return "", ctx.Err()
			}
		}

		id, err := e.facade.Launch(ctx, spec, instanceIndex)
		if err != nil {
			lastErr = err
			continue
		}

		if e.awaitRunning(ctx, id) {
			host := ""
			if status, err := e.facade.Status(ctx, id); err == nil {
				host = status.Host
			}
			e.trackLaunch(appIDStr, spec, id, host)

			if e.hub != nil {
				e.hub.Publish(events.NewStatusUpdateEvent(time.Now(), string(id), string(launch.TaskRunning)))
			}

			return id, nil
		}

		if e.hub != nil {
			e.hub.Publish(events.NewStatusUpdateEvent(time.Now(), string(id), string(launch.TaskFailed)))
		}

		lastErr = fmt.Errorf("task %s did not reach RUNNING", id)
	}

	return "", fmt.Errorf("launch failed after %d attempts: %w", maxLaunchAttempts, lastErr)
}

// trackLaunch records the (version, host) of a freshly running task and
// ensures a Supervisor set exists for its (appId, version) if the spec
// declares any health checks (spec.md §4.6: "created when the executor
// first launches a workload version with that check").
func (e *Executor) trackLaunch(appIDStr string, spec snapshot.AppSpec, id launch.TaskId, host string) {
	e.healthMu.Lock()
	defer e.healthMu.Unlock()

	e.taskVersion[id] = spec.Version
	e.taskHost[id] = host
	e.taskStarted[id] = timestamp.Now()

	key := healthKey{appIDStr, spec.Version.String()}
	if _, exists := e.supervisors[key]; exists || len(spec.HealthChecks) == 0 {
		return
	}

	sups := make([]*health.Supervisor, len(spec.HealthChecks))
	for i, check := range spec.HealthChecks {
		sups[i] = health.NewSupervisor(spec.ID, spec.Version, check, e.prober, e.facade, e.hub)
	}
	e.supervisors[key] = sups
}

// untrackKill drops bookkeeping for a task that has been killed.
func (e *Executor) untrackKill(id launch.TaskId) {
	e.healthMu.Lock()
	delete(e.taskVersion, id)
	delete(e.taskHost, id)
	delete(e.taskStarted, id)
	e.healthMu.Unlock()
}

// syncSupervisors refreshes every tracked Supervisor set for appIDStr
// against live (the app's current full task list), and stops and
// discards any set whose version has no running tasks left among live
// (spec.md §4.6: "destroyed when no running tasks of that ... version
// remain").
func (e *Executor) syncSupervisors(appIDStr string, live []launch.TaskId) {
	e.healthMu.Lock()
	defer e.healthMu.Unlock()

	byVersion := map[string][]launch.TaskId{}
	for _, id := range live {
		v, tracked := e.taskVersion[id]
		if !tracked {
			continue
		}
		byVersion[v.String()] = append(byVersion[v.String()], id)
	}

	for key, sups := range e.supervisors {
		if key.appIDStr != appIDStr {
			continue
		}

		ids, hasLive := byVersion[key.version]
		if !hasLive {
			for _, s := range sups {
				s.Stop(5 * time.Second)
			}
			delete(e.supervisors, key)
			continue
		}

		hosts := make(map[launch.TaskId]string, len(ids))
		started := make(map[launch.TaskId]timestamp.Timestamp, len(ids))
		reachable := make(map[launch.TaskId]bool, len(ids))
		for _, id := range ids {
			hosts[id] = e.taskHost[id]
			started[id] = e.taskStarted[id]
			reachable[id] = true
		}

		for _, s := range sups {
			s.SetRunningTasks(ids, hosts, started, reachable)
		}
	}
}

func (e *Executor) awaitRunning(ctx context.Context, id launch.TaskId) bool {
	deadline := time.Now().Add(30 * time.Second)

	for time.Now().Before(deadline) {
		status, err := e.facade.Status(ctx, id)
		if err == nil && status.State == launch.TaskRunning {
			return true
		}

		if err == nil && status.State == launch.TaskFailed {
			return false
		}

		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}

	return false
}

func (e *Executor) startInstances(ctx context.Context, appIDStr string, spec snapshot.AppSpec, from, to int) error {
	ids := make([]launch.TaskId, 0, to-from)

	for i := from; i < to; i++ {
		id, err := e.launchAndAwait(ctx, appIDStr, spec, i)
		if err != nil {
			return err
		}

		ids = append(ids, id)
	}

	e.mu.Lock()
	e.tasks[appIDStr] = append(e.tasks[appIDStr], ids...)
	live := append([]launch.TaskId(nil), e.tasks[appIDStr]...)
	e.mu.Unlock()

	e.syncSupervisors(appIDStr, live)

	return nil
}

func (e *Executor) stopAll(ctx context.Context, appIDStr, reason string) error {
	e.mu.Lock()
	ids := e.tasks[appIDStr]
	delete(e.tasks, appIDStr)
	e.mu.Unlock()

	var merr *multierror.Error
	for _, id := range ids {
		if err := e.facade.Kill(ctx, id, reason); err != nil {
			merr = multierror.Append(merr, err)
		}
		e.untrackKill(id)
		if e.hub != nil {
			e.hub.Publish(events.NewStatusUpdateEvent(time.Now(), string(id), string(launch.TaskKilled)))
		}
	}

	e.syncSupervisors(appIDStr, nil)

	return merr.ErrorOrNil()
}

func (e *Executor) scale(ctx context.Context, appIDStr string, spec snapshot.AppSpec, from, to int) error {
	if to > from {
		return e.startInstances(ctx, appIDStr, spec, from, to)
	}

	e.mu.Lock()
	ids := e.tasks[appIDStr]
	toKill := ids[to:]
	kept := append([]launch.TaskId(nil), ids[:to]...)
	e.tasks[appIDStr] = kept
	e.mu.Unlock()

	var merr *multierror.Error
	for _, id := range toKill {
		if err := e.facade.Kill(ctx, id, "ScalingChange"); err != nil {
			merr = multierror.Append(merr, err)
		}
		e.untrackKill(id)
		if e.hub != nil {
			e.hub.Publish(events.NewStatusUpdateEvent(time.Now(), string(id), string(launch.TaskKilled)))
		}
	}

	e.syncSupervisors(appIDStr, kept)

	return merr.ErrorOrNil()
}

// restart performs a capacity-bounded rolling upgrade: never let the
// healthy instance count fall below ceil(from.instances *
// minimumHealthCapacity), never let the total instance count exceed
// ceil(from.instances * (1 + maximumOverCapacity)).
func (e *Executor) restart(ctx context.Context, appIDStr string, act planner.Action) error {
	spec := act.Spec
	fromN := act.FromInstances
	toN := act.ToInstances
	if toN == 0 {
		toN = fromN
	}

	minHealthy := int(math.Ceil(float64(fromN) * spec.MinimumHealthCapacity))
	maxTotal := int(math.Ceil(float64(fromN) * (1 + spec.MaximumOverCapacity)))
	if maxTotal < fromN {
		maxTotal = fromN
	}

	e.mu.Lock()
	old := append([]launch.TaskId(nil), e.tasks[appIDStr]...)
	e.mu.Unlock()

	var fresh []launch.TaskId
	nextIndex := 0

	for len(old) > 0 || len(fresh) < toN {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		currentTotal := len(old) + len(fresh)
		capacity := maxTotal - currentTotal

		if capacity < 1 {
			// No room to launch another instance without breaching
			// maxTotal: retire old instances down to the minHealthy
			// floor to free capacity, then re-evaluate next round.
			retireNow := currentTotal - minHealthy
			if retireNow > len(old) {
				retireNow = len(old)
			}
			if retireNow < 1 {
				return fmt.Errorf("rolling restart of %s stalled: no capacity within maxTotal and no old instances above the minimum healthy floor", appIDStr)
			}

			old = e.retireOld(ctx, old, retireNow)
			e.syncSupervisors(appIDStr, append(append([]launch.TaskId(nil), old...), fresh...))
			continue
		}

		remainingToLaunch := toN - len(fresh)
		if remainingToLaunch < 1 {
			// toN already reached; every remaining old instance is stale.
			old = e.retireOld(ctx, old, len(old))
			e.syncSupervisors(appIDStr, fresh)
			break
		}

		batch := capacity
		if remainingToLaunch < batch {
			batch = remainingToLaunch
		}

		for i := 0; i < batch; i++ {
			id, err := e.launchAndAwait(ctx, appIDStr, spec, nextIndex)
			if err != nil {
				return err
			}

			nextIndex++
			fresh = append(fresh, id)
		}

		e.syncSupervisors(appIDStr, append(append([]launch.TaskId(nil), old...), fresh...))

		if !e.waitHealthy(ctx, appIDStr, fresh) {
			return fmt.Errorf("new instances of %s did not become healthy", appIDStr)
		}

		canRetire := (len(old) + len(fresh)) - minHealthy
		if canRetire > len(old) {
			canRetire = len(old)
		}
		if canRetire < 0 {
			canRetire = 0
		}

		old = e.retireOld(ctx, old, canRetire)
		e.syncSupervisors(appIDStr, append(append([]launch.TaskId(nil), old...), fresh...))

		if len(fresh) >= toN && len(old) == 0 {
			break
		}
	}

	e.mu.Lock()
	e.tasks[appIDStr] = fresh
	e.mu.Unlock()

	e.syncSupervisors(appIDStr, fresh)

	return nil
}

// retireOld kills the first n instances of old, drops their health
// bookkeeping, and returns the remainder.
func (e *Executor) retireOld(ctx context.Context, old []launch.TaskId, n int) []launch.TaskId {
	for i := 0; i < n; i++ {
		if err := e.facade.Kill(ctx, old[i], "ConfigurationChange"); err != nil {
			logging.Warn("failed to retire old instance during rolling restart", logging.Ctx{"task": string(old[i]), "err": err})
		}

		e.untrackKill(old[i])
		if e.hub != nil {
			e.hub.Publish(events.NewStatusUpdateEvent(time.Now(), string(old[i]), string(launch.TaskKilled)))
		}
	}

	return old[n:]
}

func (e *Executor) waitHealthy(ctx context.Context, appIDStr string, ids []launch.TaskId) bool {
	deadline := time.Now().Add(30 * time.Second)

	for time.Now().Before(deadline) {
		allHealthy := true
		for _, id := range ids {
			if !e.health.IsAlive(appIDStr, id) {
				allHealthy = false
				break
			}
		}

		if allHealthy {
			return true
		}

		select {
		case <-time.After(50 * time.Millisecond):
		case <-ctx.Done():
			return false
		}
	}

	return false
}
