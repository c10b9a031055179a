package executor_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/executor"
	"github.com/canonical/marathond/launch"
	"github.com/canonical/marathond/launch/fake"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/planner"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

func TestExecutorStartApp(t *testing.T) {
	facade := fake.New()
	hub := events.NewHub()
	ch, unsub := hub.Subscribe()
	defer unsub()

	ex := executor.New(facade, hub, nil)

	spec := snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 2}
	plan := &planner.DeploymentPlan{
		ID:      "d1",
		Version: timestamp.Now(),
		Steps: []planner.Step{
			{{Kind: planner.ActionStart, AppID: spec.ID, Spec: spec, ToInstances: 2}},
		},
	}

	dep := ex.Start(context.Background(), plan)
	<-dep.Done()
	require.NoError(t, dep.Err())

	assert.Len(t, ex.Tasks(spec.ID.String()), 2)

	var success bool
	timeout := time.After(200 * time.Millisecond)
drain:
	for {
		select {
		case ev := <-ch:
			if ev.Type() == "DeploymentSuccess" {
				success = true
				break drain
			}
		case <-timeout:
			break drain
		}
	}

	assert.True(t, success)
}

func TestExecutorScaleUpAndDown(t *testing.T) {
	facade := fake.New()
	ex := executor.New(facade, nil, nil)

	spec := snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 1}

	startPlan := &planner.DeploymentPlan{
		ID: "d1", Version: timestamp.Now(),
		Steps: []planner.Step{{{Kind: planner.ActionStart, AppID: spec.ID, Spec: spec, ToInstances: 1}}},
	}
	dep := ex.Start(context.Background(), startPlan)
	<-dep.Done()
	require.NoError(t, dep.Err())

	scaleUp := &planner.DeploymentPlan{
		ID: "d2", Version: timestamp.Now(),
		Steps: []planner.Step{{{Kind: planner.ActionScale, AppID: spec.ID, Spec: spec, FromInstances: 1, ToInstances: 3}}},
	}
	dep = ex.Start(context.Background(), scaleUp)
	<-dep.Done()
	require.NoError(t, dep.Err())
	assert.Len(t, ex.Tasks(spec.ID.String()), 3)

	scaleDown := &planner.DeploymentPlan{
		ID: "d3", Version: timestamp.Now(),
		Steps: []planner.Step{{{Kind: planner.ActionScale, AppID: spec.ID, Spec: spec, FromInstances: 3, ToInstances: 1}}},
	}
	dep = ex.Start(context.Background(), scaleDown)
	<-dep.Done()
	require.NoError(t, dep.Err())
	assert.Len(t, ex.Tasks(spec.ID.String()), 1)
}

func TestExecutorStopApp(t *testing.T) {
	facade := fake.New()
	ex := executor.New(facade, nil, nil)

	spec := snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 2}

	startPlan := &planner.DeploymentPlan{
		ID: "d1", Version: timestamp.Now(),
		Steps: []planner.Step{{{Kind: planner.ActionStart, AppID: spec.ID, Spec: spec, ToInstances: 2}}},
	}
	dep := ex.Start(context.Background(), startPlan)
	<-dep.Done()
	require.NoError(t, dep.Err())

	stopPlan := &planner.DeploymentPlan{
		ID: "d2", Version: timestamp.Now(),
		Steps: []planner.Step{{{Kind: planner.ActionStop, AppID: spec.ID, From: spec}}},
	}
	dep = ex.Start(context.Background(), stopPlan)
	<-dep.Done()
	require.NoError(t, dep.Err())
	assert.Empty(t, ex.Tasks(spec.ID.String()))
}

func TestExecutorForceCancel(t *testing.T) {
	facade := fake.New().WithStartupDelay(time.Hour)
	ex := executor.New(facade, nil, nil)

	spec := snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 1}
	plan := &planner.DeploymentPlan{
		ID: "d1", Version: timestamp.Now(),
		Steps: []planner.Step{{{Kind: planner.ActionStart, AppID: spec.ID, Spec: spec, ToInstances: 1}}},
	}

	dep := ex.Start(context.Background(), plan)
	dep.Cancel()

	select {
	case <-dep.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("deployment did not stop after cancel")
	}
}

// peakTrackingFacade wraps a launch.Facade and records the highest number
// of simultaneously-live instances it has ever launched, so tests can
// assert the rolling-restart capacity invariant without racing on timing.
type peakTrackingFacade struct {
	*fake.Facade
	mu   sync.Mutex
	live int
	peak int
}

func (f *peakTrackingFacade) Launch(ctx context.Context, spec snapshot.AppSpec, instanceIndex int) (launch.TaskId, error) {
	id, err := f.Facade.Launch(ctx, spec, instanceIndex)
	if err != nil {
		return id, err
	}

	f.mu.Lock()
	f.live++
	if f.live > f.peak {
		f.peak = f.live
	}
	f.mu.Unlock()

	return id, nil
}

func (f *peakTrackingFacade) Kill(ctx context.Context, id launch.TaskId, reason string) error {
	f.mu.Lock()
	f.live--
	f.mu.Unlock()

	return f.Facade.Kill(ctx, id, reason)
}

func TestExecutorRestartNeverExceedsMaxTotal(t *testing.T) {
	facade := &peakTrackingFacade{Facade: fake.New()}
	ex := executor.New(facade, nil, nil)

	fromSpec := snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 4}
	startPlan := &planner.DeploymentPlan{
		ID: "d1", Version: timestamp.Now(),
		Steps: []planner.Step{{{Kind: planner.ActionStart, AppID: fromSpec.ID, Spec: fromSpec, ToInstances: 4}}},
	}
	dep := ex.Start(context.Background(), startPlan)
	<-dep.Done()
	require.NoError(t, dep.Err())

	// MinimumHealthCapacity and MaximumOverCapacity left at their zero
	// values (the common case when a client omits them): maxTotal must
	// stay at fromInstances (4), never briefly rising to 5.
	toSpec := snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run2", Instances: 4}
	restartPlan := &planner.DeploymentPlan{
		ID: "d2", Version: timestamp.Now(),
		Steps: []planner.Step{{{Kind: planner.ActionRestart, AppID: toSpec.ID, From: fromSpec, Spec: toSpec, FromInstances: 4, ToInstances: 4}}},
	}
	dep = ex.Start(context.Background(), restartPlan)
	<-dep.Done()
	require.NoError(t, dep.Err())

	assert.Len(t, ex.Tasks(toSpec.ID.String()), 4)
	assert.LessOrEqual(t, facade.peak, 4, "rolling restart must never exceed maxTotal instances")
}
