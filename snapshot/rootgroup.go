package snapshot

import (
	"math"

	"github.com/canonical/marathond/marathonerr"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/timestamp"
)

// RootGroup is a Group whose id is the absolute empty path. Its Version
// represents the last structural change anywhere in the tree. All
// operations are pure: they return a new RootGroup and never mutate the
// receiver. The underlying Group is unexported so that a same-named
// lookup method (Group(id)) can coexist with it.
type RootGroup struct {
	root Group
}

// NewRoot returns an empty RootGroup stamped with v.
func NewRoot(v timestamp.Timestamp) RootGroup {
	return RootGroup{root: emptyGroup(pathid.Root, v)}
}

// FromGroup wraps an already-built root Group (id must be pathid.Root).
func FromGroup(g Group) RootGroup {
	return RootGroup{root: g}
}

// ID is the root's id, always pathid.Root.
func (r RootGroup) ID() pathid.PathId { return r.root.ID }

// Version is the last structural-change version of the whole tree.
func (r RootGroup) Version() timestamp.Timestamp { return r.root.Version }

// Apps returns the root group's own direct apps.
func (r RootGroup) Apps() map[string]AppSpec { return copyApps(r.root.Apps) }

// Groups returns the root group's own direct sub-groups.
func (r RootGroup) Groups() map[string]Group { return copyGroups(r.root.Groups) }

// AsGroup returns the underlying Group value.
func (r RootGroup) AsGroup() Group { return r.root }

// Group looks up the group node named by id anywhere in the tree.
func (r RootGroup) Group(id pathid.PathId) (Group, bool) {
	return r.root.group(id.Segments())
}

// App looks up a single AppSpec anywhere in the tree.
func (r RootGroup) App(id pathid.PathId) (AppSpec, bool) {
	return r.root.app(id.Segments())
}

// TransitiveAppsById flattens every app in the tree into a map keyed by
// PathId.String().
func (r RootGroup) TransitiveAppsById() map[string]AppSpec {
	out := map[string]AppSpec{}

	var walk func(g Group)
	walk = func(g Group) {
		for k, a := range g.Apps {
			out[k] = a
		}

		for _, sub := range g.Groups {
			walk(sub)
		}
	}

	walk(r.root)
	return out
}

// PutGroup inserts or replaces group at its own id, auto-creating missing
// ancestors as empty groups and stamping v on every ancestor touched.
func (r RootGroup) PutGroup(group Group, v timestamp.Timestamp) (RootGroup, error) {
	newRoot, err := insertGroup(r.root, group.ID.Segments(), group, v)
	if err != nil {
		return RootGroup{}, err
	}

	return RootGroup{root: newRoot}, nil
}

// PutApp inserts or replaces a single AppSpec, auto-creating ancestors.
func (r RootGroup) PutApp(app AppSpec, v timestamp.Timestamp) (RootGroup, error) {
	newRoot, err := putApp(r.root, app.ID.Segments(), app, v)
	if err != nil {
		return RootGroup{}, err
	}

	return RootGroup{root: newRoot}, nil
}

// RemoveGroup detaches the subtree at id, pruning any ancestor left empty.
func (r RootGroup) RemoveGroup(id pathid.PathId, v timestamp.Timestamp) (RootGroup, error) {
	if id.IsRoot() {
		return NewRoot(v), nil
	}

	newRoot, err := removeGroup(r.root, id.Segments(), v)
	if err != nil {
		return RootGroup{}, err
	}

	return RootGroup{root: newRoot}, nil
}

// UpdateTransitiveApps maps fn over every app under id, stamping v on the
// modified apps and on every ancestor from the root down to id.
func (r RootGroup) UpdateTransitiveApps(id pathid.PathId, fn func(AppSpec) AppSpec, v timestamp.Timestamp) (RootGroup, error) {
	target, ok := r.Group(id)
	if !ok {
		return RootGroup{}, marathonerr.UnknownGroup{Path: id.String()}
	}

	newTarget := mapApps(target, fn, v)
	return r.PutGroup(newTarget, v)
}

// ScaleBy multiplies every transitive app's Instances by factor, rounding
// up, changing no other field.
func (r RootGroup) ScaleBy(id pathid.PathId, factor float64, v timestamp.Timestamp) (RootGroup, error) {
	return r.UpdateTransitiveApps(id, func(a AppSpec) AppSpec {
		a.Instances = int(math.Ceil(float64(a.Instances) * factor))
		return a
	}, v)
}

// WithoutAncestorVersions returns a copy of the tree with every group's
// Version zeroed, for comparing trees up to ancestor-version bumps (the
// shape used by the no-op-put property in spec.md §8).
func (r RootGroup) WithoutAncestorVersions() RootGroup {
	var strip func(g Group) Group
	strip = func(g Group) Group {
		g.Version = timestamp.Zero
		newGroups := make(map[string]Group, len(g.Groups))
		for k, sub := range g.Groups {
			newGroups[k] = strip(sub)
		}

		g.Groups = newGroups
		g.Apps = copyApps(g.Apps)
		return g
	}

	return RootGroup{root: strip(r.root)}
}
