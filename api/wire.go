package api

import (
	"fmt"

	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

// appWire is the JSON wire shape of an AppSpec declaration, matching the
// example request body of spec.md §8 scenario 1
// ({id:"b", cmd:"run", instances:1}).
type appWire struct {
	ID                    string                    `json:"id"`
	Cmd                   string                    `json:"cmd"`
	Resources             snapshot.Resources        `json:"resources"`
	Instances             int                       `json:"instances"`
	Container             *snapshot.Container       `json:"container,omitempty"`
	HealthChecks          []snapshot.HealthCheck    `json:"healthChecks,omitempty"`
	Backoff               snapshot.Backoff          `json:"backoff"`
	Constraints           []snapshot.Constraint     `json:"constraints,omitempty"`
	PortDefinitions       []snapshot.PortDefinition `json:"portDefinitions,omitempty"`
	Dependencies          []string                  `json:"dependencies,omitempty"`
	MinimumHealthCapacity float64                   `json:"minimumHealthCapacity,omitempty"`
	MaximumOverCapacity   float64                   `json:"maximumOverCapacity,omitempty"`
}

func appToWire(a snapshot.AppSpec) appWire {
	deps := make([]string, len(a.Dependencies))
	for i, d := range a.Dependencies {
		deps[i] = d.String()
	}

	return appWire{
		ID:                    a.ID.Name(),
		Cmd:                   a.Cmd,
		Resources:             a.Resources,
		Instances:             a.Instances,
		Container:             a.Container,
		HealthChecks:          a.HealthChecks,
		Backoff:               a.Backoff,
		Constraints:           a.Constraints,
		PortDefinitions:       a.PortDefinitions,
		Dependencies:          deps,
		MinimumHealthCapacity: a.MinimumHealthCapacity,
		MaximumOverCapacity:   a.MaximumOverCapacity,
	}
}

func (w appWire) toAppSpec() (snapshot.AppSpec, error) {
	if w.ID == "" {
		return snapshot.AppSpec{}, fmt.Errorf("app declaration missing id")
	}

	deps := make([]pathid.PathId, len(w.Dependencies))
	for i, d := range w.Dependencies {
		deps[i] = pathid.Parse(d)
	}

	return snapshot.AppSpec{
		ID:                    pathid.New(w.ID),
		Cmd:                   w.Cmd,
		Resources:             w.Resources,
		Instances:             w.Instances,
		Container:             w.Container,
		HealthChecks:          w.HealthChecks,
		Backoff:               w.Backoff,
		Constraints:           w.Constraints,
		PortDefinitions:       w.PortDefinitions,
		Dependencies:          deps,
		MinimumHealthCapacity: w.MinimumHealthCapacity,
		MaximumOverCapacity:   w.MaximumOverCapacity,
	}, nil
}

// namedGroupWire names one nested group declaration within a
// groupUpdateWire.
type namedGroupWire struct {
	Name   string          `json:"name"`
	Apps   []appWire       `json:"apps,omitempty"`
	Groups []namedGroupWire `json:"groups,omitempty"`
}

func (w namedGroupWire) toDecl() (snapshot.NamedGroupDecl, error) {
	decl, err := groupDeclFrom(w.Apps, w.Groups, nil)
	if err != nil {
		return snapshot.NamedGroupDecl{}, err
	}

	return snapshot.NamedGroupDecl{Name: w.Name, Decl: decl}, nil
}

func groupDeclFrom(apps []appWire, groups []namedGroupWire, dependencies []string) (snapshot.GroupDecl, error) {
	decl := snapshot.GroupDecl{}

	for _, a := range apps {
		spec, err := a.toAppSpec()
		if err != nil {
			return snapshot.GroupDecl{}, err
		}

		decl.Apps = append(decl.Apps, spec)
	}

	for _, g := range groups {
		named, err := g.toDecl()
		if err != nil {
			return snapshot.GroupDecl{}, err
		}

		decl.Groups = append(decl.Groups, named)
	}

	for _, d := range dependencies {
		decl.Dependencies = append(decl.Dependencies, pathid.Parse(d))
	}

	return decl, nil
}

// groupUpdateWire is the JSON wire shape of a GroupUpdate: exactly one
// of Version, ScaleBy should be set; otherwise Apps/Groups/Dependencies
// describe a structural merge (spec.md §3).
type groupUpdateWire struct {
	ID           string           `json:"id,omitempty"`
	Version      *string          `json:"version,omitempty"`
	ScaleBy      *float64         `json:"scaleBy,omitempty"`
	Apps         []appWire        `json:"apps,omitempty"`
	Groups       []namedGroupWire `json:"groups,omitempty"`
	Dependencies []string         `json:"dependencies,omitempty"`
}

func (w groupUpdateWire) toUpdate() (snapshot.GroupUpdate, error) {
	if w.Version != nil {
		v, err := timestamp.Parse(*w.Version)
		if err != nil {
			return snapshot.GroupUpdate{}, err
		}

		return snapshot.GroupUpdate{Version: &v}, nil
	}

	if w.ScaleBy != nil {
		return snapshot.GroupUpdate{ScaleBy: w.ScaleBy}, nil
	}

	decl, err := groupDeclFrom(w.Apps, w.Groups, w.Dependencies)
	if err != nil {
		return snapshot.GroupUpdate{}, err
	}

	return snapshot.GroupUpdate{Structural: decl}, nil
}
