// Package planner diffs two RootGroup snapshots and produces an ordered
// set of executable deployment steps, respecting app/group dependencies,
// scale, restart, and rolling-upgrade semantics (spec.md §4.3).
package planner

import (
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

// ActionKind names one of the four action variants of spec.md §3.
type ActionKind string

const (
	ActionStart   ActionKind = "StartApp"
	ActionStop    ActionKind = "StopApp"
	ActionScale   ActionKind = "ScaleApp"
	ActionRestart ActionKind = "RestartApp"
)

// Action is one unit of executable work against a single app.
type Action struct {
	Kind ActionKind
	// AppID is the app this action targets.
	AppID pathid.PathId
	// Spec is the target ("to") spec; zero for StopApp.
	Spec snapshot.AppSpec
	// From is the prior ("from") spec; zero for StartApp.
	From snapshot.AppSpec
	// FromInstances/ToInstances are carried explicitly so ScaleApp and
	// RestartApp can report the instance-count transition even when Spec
	// and From are otherwise compared structurally.
	FromInstances int
	ToInstances   int
}

// Step is a set of actions that may execute concurrently.
type Step []Action

// DeploymentPlan is the output of Diff: an ordered sequence of steps
// whose execution transforms the cluster from From to To.
type DeploymentPlan struct {
	ID      string
	Version timestamp.Timestamp
	From    snapshot.RootGroup
	To      snapshot.RootGroup
	Steps   []Step
}

// IsEmpty reports whether the plan has no actions at all.
func (p *DeploymentPlan) IsEmpty() bool {
	for _, s := range p.Steps {
		if len(s) > 0 {
			return false
		}
	}

	return true
}
