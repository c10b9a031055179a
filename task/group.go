package task

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Group manages a set of scheduled tasks as a unit, started and stopped
// together.
type Group struct {
	mu      sync.Mutex
	nextID  int
	tasks   map[int]taskEntry
	started bool
}

type taskEntry struct {
	f        Func
	schedule Schedule
	stop     func(time.Duration) error
	reset    func()
}

// NewGroup returns an empty, unstarted Group.
func NewGroup() *Group {
	return &Group{tasks: map[int]taskEntry{}}
}

// Add registers f on schedule, to be launched when Start is called (or
// immediately, if the group has already started).
func (g *Group) Add(f Func, schedule Schedule) int {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.nextID
	g.nextID++
	g.tasks[id] = taskEntry{f: f, schedule: schedule}

	if g.started {
		g.startTask(id)
	}

	return id
}

// Start launches every registered task's goroutine.
func (g *Group) Start(ctx context.Context) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.started = true
	for id := range g.tasks {
		g.startTask(id)
	}
}

func (g *Group) startTask(id int) {
	entry := g.tasks[id]
	stop, reset := Start(entry.f, entry.schedule)
	entry.stop = stop
	entry.reset = reset
	g.tasks[id] = entry
}

// Stop stops every task, waiting up to timeout in total for all of them
// to finish. Tasks still running past the deadline are named in the
// returned error.
func (g *Group) Stop(timeout time.Duration) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	deadline := time.Now().Add(timeout)
	var stuck []int

	ids := make([]int, 0, len(g.tasks))
	for id := range g.tasks {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	for _, id := range ids {
		entry := g.tasks[id]
		if entry.stop == nil {
			continue
		}

		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}

		if err := entry.stop(remaining); err != nil {
			stuck = append(stuck, id)
		}
	}

	if len(stuck) > 0 {
		return fmt.Errorf("Task(s) still running: IDs %v", stuck)
	}

	return nil
}

// Remove stops and forgets a single task by id.
func (g *Group) Remove(id int) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	entry, ok := g.tasks[id]
	if !ok {
		return nil
	}

	delete(g.tasks, id)

	if entry.stop != nil {
		return entry.stop(5 * time.Second)
	}

	return nil
}

// Reset triggers an immediate re-run of the given task.
func (g *Group) Reset(id int) {
	g.mu.Lock()
	entry, ok := g.tasks[id]
	g.mu.Unlock()

	if ok && entry.reset != nil {
		entry.reset()
	}
}
