package snapshot

import (
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/timestamp"
)

// GroupDecl is the structural-merge payload of a GroupUpdate: a
// declaration of apps and nested sub-groups to merge into the target
// path, creating any of them that don't already exist.
type GroupDecl struct {
	Apps         []AppSpec
	Groups       []NamedGroupDecl
	Dependencies []pathid.PathId
}

// NamedGroupDecl names one nested group declaration by its relative
// segment under the parent being declared.
type NamedGroupDecl struct {
	Name string
	Decl GroupDecl
}

// GroupUpdate is a patch document describing an intended mutation at a
// path. Exactly one of Version, ScaleBy, or Structural applies; they are
// checked in that order (spec.md §3).
type GroupUpdate struct {
	// Version, if set, requests a revert: the subtree at the target path
	// is replaced with its stored prior version.
	Version *timestamp.Timestamp

	// ScaleBy, if set, requests a uniform scale of every transitive app.
	ScaleBy *float64

	// Structural is used when neither Version nor ScaleBy is set: merge
	// declared apps/sub-groups into the target group, creating it if
	// absent.
	Structural GroupDecl
}

// RevertLookup resolves a prior stored Group for a revert GroupUpdate.
// Implemented by the caller (GroupManager), which has repository access;
// kept as a function type here so snapshot has no dependency on the
// repository package.
type RevertLookup func(id pathid.PathId, version timestamp.Timestamp) (Group, error)

// Apply resolves the update's three mutually-exclusive cases against
// root, producing the next RootGroup.
func (u GroupUpdate) Apply(root RootGroup, at pathid.PathId, v timestamp.Timestamp, lookup RevertLookup) (RootGroup, error) {
	switch {
	case u.Version != nil:
		prior, err := lookup(at, *u.Version)
		if err != nil {
			return RootGroup{}, err
		}

		return root.PutGroup(prior, v)

	case u.ScaleBy != nil:
		return root.ScaleBy(at, *u.ScaleBy, v)

	default:
		existing, ok := root.Group(at)
		if !ok {
			existing = emptyGroup(at, v)
		}

		merged := mergeDecl(existing, u.Structural, v)
		return root.PutGroup(merged, v)
	}
}

// mergeDecl merges decl's declared apps and nested groups into existing,
// creating anything absent and overwriting anything declared anew.
func mergeDecl(existing Group, decl GroupDecl, v timestamp.Timestamp) Group {
	out := existing
	out.Version = v
	out.Apps = copyApps(existing.Apps)
	out.Groups = copyGroups(existing.Groups)

	if decl.Dependencies != nil {
		out.Dependencies = decl.Dependencies
	}

	for _, app := range decl.Apps {
		app.ID = existing.ID.Child(app.ID.Name())
		app.Version = v
		out.Apps[app.ID.String()] = app
	}

	for _, named := range decl.Groups {
		childID := existing.ID.Child(named.Name)
		childExisting, ok := out.Groups[childID.String()]
		if !ok {
			childExisting = emptyGroup(childID, v)
		}

		out.Groups[childID.String()] = mergeDecl(childExisting, named.Decl, v)
	}

	return out
}
