package planner

import (
	"fmt"
	"sort"

	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

// Diff computes the DeploymentPlan whose execution transforms the cluster
// from `from` to `to`. The result is deterministic: the same (from, to)
// always yields byte-identical step sequences (spec.md §8).
func Diff(id string, v timestamp.Timestamp, from, to snapshot.RootGroup) (*DeploymentPlan, error) {
	fromApps := from.TransitiveAppsById()
	toApps := to.TransitiveAppsById()

	actions := map[string]Action{}

	for idStr, toSpec := range toApps {
		if _, existed := fromApps[idStr]; !existed {
			actions[idStr] = Action{Kind: ActionStart, AppID: toSpec.ID, Spec: toSpec, ToInstances: toSpec.Instances}
		}
	}

	for idStr, fromSpec := range fromApps {
		if _, exists := toApps[idStr]; !exists {
			actions[idStr] = Action{Kind: ActionStop, AppID: fromSpec.ID, From: fromSpec, FromInstances: fromSpec.Instances}
		}
	}

	for idStr, toSpec := range toApps {
		fromSpec, existed := fromApps[idStr]
		if !existed {
			continue
		}

		if fromSpec.EqualSpec(toSpec) {
			continue
		}

		action := Action{
			AppID:         toSpec.ID,
			From:          fromSpec,
			Spec:          toSpec,
			FromInstances: fromSpec.Instances,
			ToInstances:   toSpec.Instances,
		}

		if fromSpec.OnlyInstancesDiffer(toSpec) {
			action.Kind = ActionScale
		} else {
			action.Kind = ActionRestart
		}

		actions[idStr] = action
	}

	steps, err := order(actions, from, to)
	if err != nil {
		return nil, err
	}

	return &DeploymentPlan{ID: id, Version: v, From: from, To: to, Steps: steps}, nil
}

// collectGroupDependencies walks from id up to the root, collecting every
// ancestor group's explicitly-declared Dependencies.
func collectGroupDependencies(id pathid.PathId, root snapshot.RootGroup) []pathid.PathId {
	var deps []pathid.PathId

	cur := id
	for !cur.IsRoot() {
		cur = cur.Parent()

		g, ok := root.Group(cur)
		if ok {
			deps = append(deps, g.Dependencies...)
		}
	}

	return deps
}

// dependenciesFor returns every PathId (app or group) the given action's
// app depends on, per spec.md §4.3 step 4.
func dependenciesFor(act Action, from, to snapshot.RootGroup) []pathid.PathId {
	var deps []pathid.PathId

	tree := to
	spec := act.Spec
	if act.Kind == ActionStop {
		tree = from
		spec = act.From
	}

	deps = append(deps, spec.Dependencies...)
	deps = append(deps, collectGroupDependencies(act.AppID, tree)...)
	return deps
}

// order topologically sorts actions into steps: a step contains every
// action whose dependencies are already satisfied by an earlier step.
// Within a step, actions are ordered lexically by PathId for determinism.
func order(actions map[string]Action, from, to snapshot.RootGroup) ([]Step, error) {
	ids := make([]string, 0, len(actions))
	for k := range actions {
		ids = append(ids, k)
	}

	sort.Strings(ids)

	deps := make(map[string]map[string]bool, len(ids))
	for _, k := range ids {
		deps[k] = map[string]bool{}
	}

	for _, k := range ids {
		act := actions[k]
		for _, d := range dependenciesFor(act, from, to) {
			for _, other := range ids {
				if other == k {
					continue
				}

				otherID := actions[other].AppID
				if d.Equal(otherID) || d.Contains(otherID) {
					deps[k][other] = true
				}
			}
		}
	}

	var steps []Step

	done := map[string]bool{}
	for len(done) < len(ids) {
		var layer []string

		for _, k := range ids {
			if done[k] {
				continue
			}

			ready := true

			for dep := range deps[k] {
				if !done[dep] {
					ready = false
					break
				}
			}

			if ready {
				layer = append(layer, k)
			}
		}

		if len(layer) == 0 {
			return nil, fmt.Errorf("dependency cycle detected among deployment actions")
		}

		sort.Strings(layer)

		step := make(Step, 0, len(layer))
		for _, k := range layer {
			step = append(step, actions[k])
			done[k] = true
		}

		steps = append(steps, step)
	}

	return steps, nil
}
