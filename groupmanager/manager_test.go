package groupmanager_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/executor"
	"github.com/canonical/marathond/groupmanager"
	"github.com/canonical/marathond/launch/fake"
	"github.com/canonical/marathond/marathonerr"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/repository/memory"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

func newManager() *groupmanager.Manager {
	repo := memory.New()
	hub := events.NewHub()
	ex := executor.New(fake.New(), hub, nil)
	return groupmanager.New(repo, ex, hub, timestamp.Now())
}

func TestUpdateRootCreatesApp(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	update := snapshot.GroupUpdate{
		Structural: snapshot.GroupDecl{
			Apps: []snapshot.AppSpec{{ID: pathid.New("b"), Cmd: "run", Instances: 1}},
		},
	}

	plan, err := m.UpdateRoot(ctx, pathid.New("a"), update, groupmanager.Options{})
	require.NoError(t, err)
	require.NotNil(t, plan)

	app, ok := m.Root().App(pathid.New("a", "b"))
	require.True(t, ok)
	assert.Equal(t, 1, app.Instances)
}

func TestUpdateRootConflictWithoutForce(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	spec := snapshot.AppSpec{ID: pathid.New("b"), Cmd: "sleep 100", Instances: 1}
	slowFacade := fake.New().WithStartupDelay(time.Hour)
	hub := events.NewHub()
	ex := executor.New(slowFacade, hub, nil)
	m2 := groupmanager.New(memory.New(), ex, hub, timestamp.Now())

	update := snapshot.GroupUpdate{Structural: snapshot.GroupDecl{Apps: []snapshot.AppSpec{spec}}}
	_, err := m2.UpdateRoot(ctx, pathid.New("a"), update, groupmanager.Options{})
	require.NoError(t, err)

	_, err = m2.UpdateRoot(ctx, pathid.New("a"), update, groupmanager.Options{})
	assert.IsType(t, marathonerr.DeploymentInProgress{}, err)

	_, err = m2.UpdateRoot(ctx, pathid.New("a"), update, groupmanager.Options{Force: true})
	assert.NoError(t, err)
}

func TestUpdateRootDryRunDoesNotMutate(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	update := snapshot.GroupUpdate{
		Structural: snapshot.GroupDecl{Apps: []snapshot.AppSpec{{ID: pathid.New("b"), Cmd: "run", Instances: 1}}},
	}

	plan, err := m.UpdateRoot(ctx, pathid.New("a"), update, groupmanager.Options{DryRun: true})
	require.NoError(t, err)
	require.NotNil(t, plan)

	_, ok := m.Root().App(pathid.New("a", "b"))
	assert.False(t, ok)
}

func TestUpdateRootScale(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	create := snapshot.GroupUpdate{
		Structural: snapshot.GroupDecl{Apps: []snapshot.AppSpec{{ID: pathid.New("b"), Cmd: "run", Instances: 1}}},
	}
	_, err := m.UpdateRoot(ctx, pathid.New("a"), create, groupmanager.Options{})
	require.NoError(t, err)

	factor := 2.5
	scale := snapshot.GroupUpdate{ScaleBy: &factor}
	plan, err := m.UpdateRoot(ctx, pathid.New("a"), scale, groupmanager.Options{})
	require.NoError(t, err)
	require.Len(t, plan.Steps, 1)

	app, ok := m.Root().App(pathid.New("a", "b"))
	require.True(t, ok)
	assert.Equal(t, 3, app.Instances)
}

func TestUpdateRootRejectsInvalidApp(t *testing.T) {
	m := newManager()
	ctx := context.Background()

	update := snapshot.GroupUpdate{
		Structural: snapshot.GroupDecl{
			Apps: []snapshot.AppSpec{{ID: pathid.New("b"), Instances: -1}},
		},
	}

	_, err := m.UpdateRoot(ctx, pathid.New("a"), update, groupmanager.Options{})
	require.Error(t, err)

	valErr, ok := err.(*marathonerr.ValidationError)
	require.True(t, ok)
	fields := valErr.FieldErrors()
	require.Len(t, fields, 2)
	assert.Equal(t, "/a/b.cmd", fields[0].Field)
	assert.Equal(t, "/a/b.instances", fields[1].Field)

	_, ok = m.Root().App(pathid.New("a", "b"))
	assert.False(t, ok, "invalid app must not be committed")
}
