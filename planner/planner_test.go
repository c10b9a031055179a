package planner_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/planner"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

func mustRoot(t *testing.T, apps ...snapshot.AppSpec) snapshot.RootGroup {
	t.Helper()

	root := snapshot.NewRoot(timestamp.Now())

	var err error
	for _, a := range apps {
		root, err = root.PutApp(a, timestamp.Now())
		require.NoError(t, err)
	}

	return root
}

func TestDiffStartApp(t *testing.T) {
	from := mustRoot(t)
	to := mustRoot(t, snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 1})

	plan, err := planner.Diff("d1", timestamp.Now(), from, to)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	require.Len(t, plan.Steps[0], 1)
	assert.Equal(t, planner.ActionStart, plan.Steps[0][0].Kind)
}

func TestDiffStopApp(t *testing.T) {
	from := mustRoot(t, snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 1})
	to := mustRoot(t)

	plan, err := planner.Diff("d1", timestamp.Now(), from, to)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, planner.ActionStop, plan.Steps[0][0].Kind)
}

func TestDiffScaleOnly(t *testing.T) {
	from := mustRoot(t, snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 1})
	to := mustRoot(t, snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 3})

	plan, err := planner.Diff("d1", timestamp.Now(), from, to)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	act := plan.Steps[0][0]
	assert.Equal(t, planner.ActionScale, act.Kind)
	assert.Equal(t, 1, act.FromInstances)
	assert.Equal(t, 3, act.ToInstances)
}

func TestDiffRestartOnConfigChange(t *testing.T) {
	from := mustRoot(t, snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 1})
	to := mustRoot(t, snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run2", Instances: 1})

	plan, err := planner.Diff("d1", timestamp.Now(), from, to)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)
	assert.Equal(t, planner.ActionRestart, plan.Steps[0][0].Kind)
}

func TestDiffDeterministic(t *testing.T) {
	from := mustRoot(t)
	to := mustRoot(t,
		snapshot.AppSpec{ID: pathid.New("a", "b"), Cmd: "run", Instances: 1},
		snapshot.AppSpec{ID: pathid.New("a", "c"), Cmd: "run", Instances: 1},
	)

	p1, err := planner.Diff("d1", timestamp.Now(), from, to)
	require.NoError(t, err)
	p2, err := planner.Diff("d1", timestamp.Now(), from, to)
	require.NoError(t, err)

	require.Equal(t, len(p1.Steps), len(p2.Steps))
	for i := range p1.Steps {
		require.Len(t, p2.Steps[i], len(p1.Steps[i]))
		for j := range p1.Steps[i] {
			assert.Equal(t, p1.Steps[i][j].AppID, p2.Steps[i][j].AppID)
			assert.Equal(t, p1.Steps[i][j].Kind, p2.Steps[i][j].Kind)
		}
	}
}

func TestDiffDependenciesSerializeIntoSeparateSteps(t *testing.T) {
	from := mustRoot(t)
	dependent := snapshot.AppSpec{
		ID:           pathid.New("a", "dependent"),
		Cmd:          "run",
		Instances:    1,
		Dependencies: []pathid.PathId{pathid.New("a", "base")},
	}
	base := snapshot.AppSpec{ID: pathid.New("a", "base"), Cmd: "run", Instances: 1}
	to := mustRoot(t, dependent, base)

	plan, err := planner.Diff("d1", timestamp.Now(), from, to)
	require.NoError(t, err)
	require.Len(t, plan.Steps, 2)
	assert.Equal(t, pathid.New("a", "base"), plan.Steps[0][0].AppID)
	assert.Equal(t, pathid.New("a", "dependent"), plan.Steps[1][0].AppID)
}
