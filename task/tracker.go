package task

import "sync"

// Summary is the read-only view of a tracked task.
type Summary struct {
	ID    string `json:"id"`
	Kind  string `json:"kind"`
	Phase Phase  `json:"phase"`
}

// Tracker keeps tasks in creation order for observation. It never mutates them.
type Tracker struct {
	mu    sync.RWMutex
	tasks []*Task
	index map[string]*Task
	limit int
}

// NewTracker creates a tracker retaining at most limit tasks (0 = unbounded).
// When the limit is exceeded the oldest terminal task is evicted first.
func NewTracker(limit int) *Tracker {
	return &Tracker{index: map[string]*Task{}, limit: limit}
}

// Track adds t. Tracking the same task twice is a no-op.
func (tr *Tracker) Track(t *Task) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if _, ok := tr.index[t.ID()]; ok {
		return
	}
	tr.tasks = append(tr.tasks, t)
	tr.index[t.ID()] = t
	if tr.limit > 0 && len(tr.tasks) > tr.limit {
		tr.evict()
	}
}

// Get returns the tracked task with the given id.
func (tr *Tracker) Get(id string) (*Task, bool) {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	t, ok := tr.index[id]
	return t, ok
}

// Len returns the number of tracked tasks.
func (tr *Tracker) Len() int {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return len(tr.tasks)
}

// Summaries lists tracked tasks in creation order.
func (tr *Tracker) Summaries() []Summary {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	out := make([]Summary, 0, len(tr.tasks))
	for _, t := range tr.tasks {
		out = append(out, Summary{ID: t.ID(), Kind: t.Meta().Kind, Phase: t.Phase()})
	}
	return out
}

func (tr *Tracker) evict() {
	victim := 0
	for i, t := range tr.tasks {
		if t.Phase().Terminal() {
			victim = i
			break
		}
	}
	delete(tr.index, tr.tasks[victim].ID())
	tr.tasks = append(tr.tasks[:victim], tr.tasks[victim+1:]...)
}
