package snapshot

import (
	"github.com/canonical/marathond/marathonerr"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/timestamp"
)

// Group is a named folder in the path tree containing apps and/or
// sub-groups. Maps are keyed by the child's PathId.String(), since PathId
// itself (holding a slice) is not a valid Go map key.
type Group struct {
	ID           pathid.PathId
	Version      timestamp.Timestamp
	Apps         map[string]AppSpec
	Groups       map[string]Group
	Dependencies []pathid.PathId
}

// emptyGroup builds a childless Group at id.
func emptyGroup(id pathid.PathId, v timestamp.Timestamp) Group {
	return Group{ID: id, Version: v, Apps: map[string]AppSpec{}, Groups: map[string]Group{}}
}

func copyApps(m map[string]AppSpec) map[string]AppSpec {
	out := make(map[string]AppSpec, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

func copyGroups(m map[string]Group) map[string]Group {
	out := make(map[string]Group, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}

// validateSubtree enforces the invariants of §3: every key equals the
// value's own id, every entry's id.Parent() is g's own id, and no path
// names both an app and a group.
func validateSubtree(g Group) error {
	for k, a := range g.Apps {
		if a.ID.String() != k {
			return marathonerr.InvalidHierarchy{Child: a.ID.String(), Parent: g.ID.String()}
		}

		if !a.ID.Parent().Equal(g.ID) {
			return marathonerr.InvalidHierarchy{Child: a.ID.String(), Parent: g.ID.String()}
		}

		if _, dup := g.Groups[k]; dup {
			return marathonerr.ConflictingPath{Path: a.ID.String()}
		}
	}

	for k, sub := range g.Groups {
		if sub.ID.String() != k {
			return marathonerr.InvalidHierarchy{Child: sub.ID.String(), Parent: g.ID.String()}
		}

		if !sub.ID.Parent().Equal(g.ID) {
			return marathonerr.InvalidHierarchy{Child: sub.ID.String(), Parent: g.ID.String()}
		}

		if _, dup := g.Apps[k]; dup {
			return marathonerr.ConflictingPath{Path: sub.ID.String()}
		}

		if err := validateSubtree(sub); err != nil {
			return err
		}
	}

	return nil
}

// group looks up the node named by the remaining segments, relative to
// cur's own position.
func (cur Group) group(segments []string) (Group, bool) {
	if len(segments) == 0 {
		return cur, true
	}

	child, ok := cur.Groups[cur.ID.Child(segments[0]).String()]
	if !ok {
		return Group{}, false
	}

	return child.group(segments[1:])
}

// app looks up an AppSpec by the remaining segments, relative to cur.
func (cur Group) app(segments []string) (AppSpec, bool) {
	if len(segments) == 0 {
		return AppSpec{}, false
	}

	key := cur.ID.Child(segments[0]).String()

	if len(segments) == 1 {
		a, ok := cur.Apps[key]
		return a, ok
	}

	child, ok := cur.Groups[key]
	if !ok {
		return AppSpec{}, false
	}

	return child.app(segments[1:])
}

func mapApps(g Group, fn func(AppSpec) AppSpec, v timestamp.Timestamp) Group {
	newApps := make(map[string]AppSpec, len(g.Apps))
	for k, a := range g.Apps {
		na := fn(a.Clone())
		na.ID = a.ID
		na.Version = v
		newApps[k] = na
	}

	newGroups := make(map[string]Group, len(g.Groups))
	for k, sub := range g.Groups {
		newGroups[k] = mapApps(sub, fn, v)
	}

	out := g
	out.Apps = newApps
	out.Groups = newGroups
	out.Version = v
	return out
}

// insertGroup inserts or replaces leaf at the location named by segments
// relative to cur, auto-vivifying missing intermediate groups and
// stamping v on every ancestor along the way.
func insertGroup(cur Group, segments []string, leaf Group, v timestamp.Timestamp) (Group, error) {
	if len(segments) == 0 {
		result := leaf
		result.ID = cur.ID
		result.Version = v
		if result.Apps == nil {
			result.Apps = map[string]AppSpec{}
		}

		if result.Groups == nil {
			result.Groups = map[string]Group{}
		}

		if err := validateSubtree(result); err != nil {
			return Group{}, err
		}

		return result, nil
	}

	name := segments[0]
	key := cur.ID.Child(name).String()
	if _, isApp := cur.Apps[key]; isApp {
		return Group{}, marathonerr.ConflictingPath{Path: key}
	}

	child, exists := cur.Groups[key]
	if !exists {
		child = emptyGroup(cur.ID.Child(name), v)
	}

	newChild, err := insertGroup(child, segments[1:], leaf, v)
	if err != nil {
		return Group{}, err
	}

	newGroups := copyGroups(cur.Groups)
	newGroups[key] = newChild
	out := cur
	out.Groups = newGroups
	out.Apps = copyApps(cur.Apps)
	out.Version = v
	return out, nil
}

// removeGroup detaches the subtree at segments (relative to cur) and
// prunes any ancestor left with no apps and no sub-groups.
func removeGroup(cur Group, segments []string, v timestamp.Timestamp) (Group, error) {
	key := cur.ID.Child(segments[0]).String()
	child, exists := cur.Groups[key]
	if !exists {
		return Group{}, marathonerr.UnknownGroup{Path: key}
	}

	var newChild Group

	prune := false
	if len(segments) == 1 {
		prune = true
	} else {
		nc, err := removeGroup(child, segments[1:], v)
		if err != nil {
			return Group{}, err
		}

		newChild = nc
		prune = len(newChild.Apps) == 0 && len(newChild.Groups) == 0
	}

	newGroups := copyGroups(cur.Groups)
	if prune {
		delete(newGroups, key)
	} else {
		newGroups[key] = newChild
	}

	out := cur
	out.Groups = newGroups
	out.Apps = copyApps(cur.Apps)
	out.Version = v
	return out, nil
}

// PutApp inserts or replaces a single app, auto-vivifying ancestor groups.
func putApp(cur Group, segments []string, app AppSpec, v timestamp.Timestamp) (Group, error) {
	if len(segments) == 1 {
		key := cur.ID.Child(segments[0]).String()
		if _, isGroup := cur.Groups[key]; isGroup {
			return Group{}, marathonerr.ConflictingPath{Path: key}
		}

		if !app.ID.Parent().Equal(cur.ID) {
			return Group{}, marathonerr.InvalidHierarchy{Child: app.ID.String(), Parent: cur.ID.String()}
		}

		newApps := copyApps(cur.Apps)
		newApps[key] = app
		out := cur
		out.Apps = newApps
		out.Groups = copyGroups(cur.Groups)
		out.Version = v
		return out, nil
	}

	name := segments[0]
	key := cur.ID.Child(name).String()
	if _, isApp := cur.Apps[key]; isApp {
		return Group{}, marathonerr.ConflictingPath{Path: key}
	}

	child, exists := cur.Groups[key]
	if !exists {
		child = emptyGroup(cur.ID.Child(name), v)
	}

	newChild, err := putApp(child, segments[1:], app, v)
	if err != nil {
		return Group{}, err
	}

	newGroups := copyGroups(cur.Groups)
	newGroups[key] = newChild
	out := cur
	out.Groups = newGroups
	out.Apps = copyApps(cur.Apps)
	out.Version = v
	return out, nil
}
