package fake_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/canonical/marathond/launch"
	"github.com/canonical/marathond/launch/fake"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
)

func TestLaunchImmediatelyRunning(t *testing.T) {
	f := fake.New()
	ctx := context.Background()

	id, err := f.Launch(ctx, snapshot.AppSpec{ID: pathid.New("a")}, 0)
	require.NoError(t, err)

	status, err := f.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, launch.TaskRunning, status.State)
	assert.NotEmpty(t, status.Host)
}

func TestLaunchWithStartupDelay(t *testing.T) {
	f := fake.New().WithStartupDelay(50 * time.Millisecond)
	ctx := context.Background()

	id, err := f.Launch(ctx, snapshot.AppSpec{ID: pathid.New("a")}, 0)
	require.NoError(t, err)

	status, err := f.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, launch.TaskStaging, status.State)

	time.Sleep(100 * time.Millisecond)

	status, err = f.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, launch.TaskRunning, status.State)
}

func TestKill(t *testing.T) {
	f := fake.New()
	ctx := context.Background()

	id, err := f.Launch(ctx, snapshot.AppSpec{ID: pathid.New("a")}, 0)
	require.NoError(t, err)

	require.NoError(t, f.Kill(ctx, id, "rolling upgrade"))

	status, err := f.Status(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, launch.TaskKilled, status.State)
}
