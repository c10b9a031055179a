// Package memory implements repository.Repository with a guarded map in
// place of lxd/db's sqlite/dqlite-backed tables; same table-per-entity
// shape (snapshots keyed by id then version, plus a current pointer),
// just swapped onto an in-process map since persistence is delegated by
// spec.md.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/canonical/marathond/marathonerr"
	"github.com/canonical/marathond/pathid"
	"github.com/canonical/marathond/snapshot"
	"github.com/canonical/marathond/timestamp"
)

type entityKey string

func key(id pathid.PathId) entityKey {
	return entityKey(id.String())
}

// Repository is an in-memory repository.Repository, safe for concurrent
// use.
type Repository struct {
	mu       sync.Mutex
	versions map[entityKey]map[string]snapshot.RootGroup
	current  map[entityKey]timestamp.Timestamp
}

// New returns an empty in-memory Repository.
func New() *Repository {
	return &Repository{
		versions: map[entityKey]map[string]snapshot.RootGroup{},
		current:  map[entityKey]timestamp.Timestamp{},
	}
}

// PutRoot stores root at its own (ID, Version).
func (r *Repository) PutRoot(ctx context.Context, root snapshot.RootGroup) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(root.ID())
	bucket, ok := r.versions[k]
	if !ok {
		bucket = map[string]snapshot.RootGroup{}
		r.versions[k] = bucket
	}

	bucket[root.Version().String()] = root
	return nil
}

// GetRoot fetches the snapshot stored for id at version.
func (r *Repository) GetRoot(ctx context.Context, id pathid.PathId, version timestamp.Timestamp) (snapshot.RootGroup, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.versions[key(id)]
	if !ok {
		return snapshot.RootGroup{}, marathonerr.UnknownGroup{Path: id.String()}
	}

	root, ok := bucket[version.String()]
	if !ok {
		return snapshot.RootGroup{}, marathonerr.UnknownVersion{Path: id.String(), Version: version.String()}
	}

	return root, nil
}

// GetCurrent fetches the snapshot at id's current version, as last set by
// CompareAndSwapCurrent.
func (r *Repository) GetCurrent(ctx context.Context, id pathid.PathId) (snapshot.RootGroup, error) {
	r.mu.Lock()
	cur, ok := r.current[key(id)]
	r.mu.Unlock()

	if !ok {
		return snapshot.RootGroup{}, marathonerr.UnknownGroup{Path: id.String()}
	}

	return r.GetRoot(ctx, id, cur)
}

// ListVersions returns every version stored for id, oldest first.
func (r *Repository) ListVersions(ctx context.Context, id pathid.PathId) ([]timestamp.Timestamp, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.versions[key(id)]
	if !ok {
		return nil, marathonerr.UnknownGroup{Path: id.String()}
	}

	out := make([]snapshot.RootGroup, 0, len(bucket))
	for _, root := range bucket {
		out = append(out, root)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Version().Before(out[j].Version()) })

	versions := make([]timestamp.Timestamp, len(out))
	for i, root := range out {
		versions[i] = root.Version()
	}

	return versions, nil
}

// PruneBefore discards every stored version of id older than cutoff,
// keeping the current version regardless of age.
func (r *Repository) PruneBefore(ctx context.Context, id pathid.PathId, cutoff timestamp.Timestamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	bucket, ok := r.versions[key(id)]
	if !ok {
		return nil
	}

	current := r.current[key(id)]

	for versionStr, root := range bucket {
		if root.Version().Before(cutoff) && !root.Version().Equal(current) {
			delete(bucket, versionStr)
		}
	}

	return nil
}

// CompareAndSwapCurrent advances id's current pointer to next only if its
// stored current version still equals expected.
func (r *Repository) CompareAndSwapCurrent(ctx context.Context, id pathid.PathId, expected, next timestamp.Timestamp) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key(id)

	actual, exists := r.current[k]
	if exists && !actual.Equal(expected) {
		return marathonerr.ConcurrentModification{Path: id.String(), Expected: expected.String(), Actual: actual.String()}
	}

	if !exists && !expected.IsZero() {
		return marathonerr.ConcurrentModification{Path: id.String(), Expected: expected.String(), Actual: "<none>"}
	}

	r.current[k] = next
	return nil
}
