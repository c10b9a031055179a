// Package repository declares the external persistence contract for
// RootGroup snapshots. Snapshot storage itself is out of scope (spec.md
// Non-goals); this package only specifies the shape other components
// compile against, modeled on lxd/db's table-per-entity query style.
package repository

import (
	"context"

	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

// Repository persists and retrieves versioned RootGroup snapshots, keyed
// by the group id they're rooted at (almost always pathid.Root) and by
// Version.
type Repository interface {
	// PutRoot stores root at its own (ID, Version), alongside any history
	// already held for that ID.
	PutRoot(ctx context.Context, root snapshot.RootGroup) error

	// GetRoot fetches the snapshot stored for id at version.
	GetRoot(ctx context.Context, id pathid.PathId, version timestamp.Timestamp) (snapshot.RootGroup, error)

	// GetCurrent fetches the snapshot at id's current version, as last set
	// by CompareAndSwapCurrent.
	GetCurrent(ctx context.Context, id pathid.PathId) (snapshot.RootGroup, error)

	// ListVersions returns every version stored for id, oldest first.
	ListVersions(ctx context.Context, id pathid.PathId) ([]timestamp.Timestamp, error)

	// CompareAndSwapCurrent advances id's current version to next only if
	// its current version is still expected; otherwise it returns
	// marathonerr.ConcurrentModification, signalling a concurrent writer won
	// the race. This is the single point of optimistic concurrency control
	// GroupManager relies on (spec.md §5).
	CompareAndSwapCurrent(ctx context.Context, id pathid.PathId, expected, next timestamp.Timestamp) error

	// PruneBefore discards every stored version of id older than cutoff,
	// except the current version, for the retention janitor.
	PruneBefore(ctx context.Context, id pathid.PathId, cutoff timestamp.Timestamp) error
}
