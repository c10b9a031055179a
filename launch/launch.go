// Package launch declares the external collaborator that turns an
// AppSpec instance into a running task somewhere in the cluster. Actual
// placement and scheduling onto nodes is out of scope (spec.md
// Non-goals); this package only specifies the shape DeploymentExecutor
// compiles against, modeled on lxd-agent's exec facade.
package launch

import (
	"context"

	"github.com/canonical/marathond/snapshot"
)

// TaskId is an opaque identifier for one running instance of an app.
type TaskId string

// TaskState names where a launched instance is in its lifecycle.
type TaskState string

const (
	TaskStaging TaskState = "STAGING"
	TaskRunning TaskState = "RUNNING"
	TaskFailed  TaskState = "FAILED"
	TaskKilled  TaskState = "KILLED"
)

// TaskStatus is a point-in-time report on a launched instance.
type TaskStatus struct {
	ID    TaskId
	State TaskState
	// Host is the address probes should dial for this instance's health
	// checks; empty until the task reaches TaskRunning.
	Host string
}

// Facade launches, kills, and reports on individual app instances.
type Facade interface {
	// Launch starts instance number instanceIndex of spec and returns its
	// TaskId once accepted (not necessarily running yet).
	Launch(ctx context.Context, spec snapshot.AppSpec, instanceIndex int) (TaskId, error)

	// Kill requests termination of id, recording reason for diagnostics.
	Kill(ctx context.Context, id TaskId, reason string) error

	// Status reports the current state of id.
	Status(ctx context.Context, id TaskId) (TaskStatus, error)
}
