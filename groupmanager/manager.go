// Package groupmanager implements the single-writer guardian of the
// current root: GroupManager serializes every mutation through
// UpdateRoot, persists the result, and hands the resulting deployment
// plan to a DeploymentExecutor. Grounded on lxd/cluster's
// leader-only-writer discipline: one mutex held across the whole
// read-validate-plan-persist-handoff sequence.
package groupmanager

import (
	"context"
	"fmt"
	"sync"

	"github.com/canonical/marathond/events"
	"github.com/canonical/marathond/executor"
	"github.com/canonical/marathond/marathonerr"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/planner"
	"github.com/canonical/marathond/repository"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

// Manager is the single-writer guardian of one cluster's root tree.
type Manager struct {
	repo repository.Repository
	exec *executor.Executor
	hub  *events.Hub

	// mutationLock serializes updateRoot end to end (spec.md §5): at most
	// one mutation is ever in flight.
	mutationLock sync.Mutex

	// stateLock guards current and inFlight, allowing readers to observe
	// the last committed root without contending with writers except
	// during the brief publish step.
	stateLock sync.RWMutex
	current   snapshot.RootGroup
	inFlight  *executor.Deployment
}

// New returns a Manager seeded with an empty root at v, backed by repo
// and driving deployments through exec.
func New(repo repository.Repository, exec *executor.Executor, hub *events.Hub, v timestamp.Timestamp) *Manager {
	root := snapshot.NewRoot(v)

	m := &Manager{repo: repo, exec: exec, hub: hub, current: root}

	if err := repo.PutRoot(context.Background(), root); err == nil {
		_ = repo.CompareAndSwapCurrent(context.Background(), pathid.Root, timestamp.Zero, v)
	}

	return m
}

// Root returns the current committed root.
func (m *Manager) Root() snapshot.RootGroup {
	m.stateLock.RLock()
	defer m.stateLock.RUnlock()
	return m.current
}

// Group looks up id in the current committed root.
func (m *Manager) Group(id pathid.PathId) (snapshot.Group, bool) {
	return m.Root().Group(id)
}

// GroupAt looks up id as it stood in the root snapshot stored at version.
func (m *Manager) GroupAt(ctx context.Context, id pathid.PathId, version timestamp.Timestamp) (snapshot.Group, error) {
	root, err := m.repo.GetRoot(ctx, pathid.Root, version)
	if err != nil {
		return snapshot.Group{}, err
	}

	g, ok := root.Group(id)
	if !ok {
		return snapshot.Group{}, marathonerr.UnknownGroup{Path: id.String()}
	}

	return g, nil
}

// Versions returns every version stored for the root tree.
func (m *Manager) Versions(ctx context.Context) ([]timestamp.Timestamp, error) {
	return m.repo.ListVersions(ctx, pathid.Root)
}

func (m *Manager) revertLookup(ctx context.Context) snapshot.RevertLookup {
	return func(id pathid.PathId, version timestamp.Timestamp) (snapshot.Group, error) {
		return m.GroupAt(ctx, id, version)
	}
}

// Options tweaks UpdateRoot's behavior.
type Options struct {
	Force  bool
	DryRun bool
}

// UpdateRoot is the single mutation entry point (spec.md §4.4): it
// applies update at path against the current root, validates, computes
// the deployment plan, and — unless DryRun — persists the result and
// hands the plan to the DeploymentExecutor.
func (m *Manager) UpdateRoot(ctx context.Context, path pathid.PathId, update snapshot.GroupUpdate, opts Options) (*planner.DeploymentPlan, error) {
	return m.mutate(ctx, path, opts, func(current snapshot.RootGroup, v timestamp.Timestamp) (snapshot.RootGroup, error) {
		return update.Apply(current, path, v, m.revertLookup(ctx))
	})
}

// DeleteGroup removes the subtree at path, per the DELETE REST operation
// of spec.md §6 (not one of GroupUpdate's three mutually-exclusive
// cases, since a removal isn't a patch against the target itself).
func (m *Manager) DeleteGroup(ctx context.Context, path pathid.PathId, opts Options) (*planner.DeploymentPlan, error) {
	return m.mutate(ctx, path, opts, func(current snapshot.RootGroup, v timestamp.Timestamp) (snapshot.RootGroup, error) {
		return current.RemoveGroup(path, v)
	})
}

func (m *Manager) mutate(ctx context.Context, path pathid.PathId, opts Options, apply func(snapshot.RootGroup, timestamp.Timestamp) (snapshot.RootGroup, error)) (*planner.DeploymentPlan, error) {
	m.mutationLock.Lock()
	defer m.mutationLock.Unlock()

	current := m.Root()

	v := timestamp.Now()

	next, err := apply(current, v)
	if err != nil {
		if m.hub != nil {
			m.hub.Publish(events.NewGroupChangeFailed(v.Time(), path.String(), err.Error()))
		}

		return nil, err
	}

	if err := snapshot.Validate(next); err != nil {
		if m.hub != nil {
			m.hub.Publish(events.NewGroupChangeFailed(v.Time(), path.String(), err.Error()))
		}

		return nil, err
	}

	plan, err := planner.Diff(deploymentID(v), v, current, next)
	if err != nil {
		return nil, err
	}

	if opts.DryRun {
		return plan, nil
	}

	m.stateLock.Lock()
	inFlight := m.inFlight
	m.stateLock.Unlock()

	if inFlight != nil {
		select {
		case <-inFlight.Done():
			inFlight = nil
		default:
		}
	}

	if inFlight != nil {
		if !opts.Force {
			return nil, marathonerr.DeploymentInProgress{ConflictingPlanID: inFlight.ID}
		}

		inFlight.Cancel()
		<-inFlight.Done()
	}

	if err := m.repo.PutRoot(ctx, next); err != nil {
		return nil, marathonerr.RepositoryFailure{Cause: err}
	}

	if err := m.repo.CompareAndSwapCurrent(ctx, pathid.Root, current.Version(), next.Version()); err != nil {
		return nil, marathonerr.RepositoryFailure{Cause: err}
	}

	m.stateLock.Lock()
	m.current = next
	m.stateLock.Unlock()

	if m.hub != nil {
		m.hub.Publish(events.NewGroupChanged(v.Time(), path.String()))
	}

	if plan.IsEmpty() {
		return plan, nil
	}

	dep := m.exec.Start(ctx, plan)

	m.stateLock.Lock()
	m.inFlight = dep
	m.stateLock.Unlock()

	go func() {
		<-dep.Done()

		m.stateLock.Lock()
		if m.inFlight == dep {
			m.inFlight = nil
		}
		m.stateLock.Unlock()
	}()

	return plan, nil
}

func deploymentID(v timestamp.Timestamp) string {
	return fmt.Sprintf("deploy-%s", v.String())
}
