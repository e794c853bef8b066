package testutils

import (
	"sync"

	"github.com/papercomputeco/aurion/pkg/facts"
)

// ChangeRecorder is a facts.Observer that records every change.
type ChangeRecorder struct {
	mu      sync.Mutex
	changes []facts.Change
}

func NewChangeRecorder() *ChangeRecorder {
	return &ChangeRecorder{}
}

func (r *ChangeRecorder) FactChanged(change facts.Change) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
}

// Changes returns a copy of the recorded changes.
func (r *ChangeRecorder) Changes() []facts.Change {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]facts.Change, len(r.changes))
	copy(out, r.changes)
	return out
}

// Kinds returns the kind of every recorded change, in order.
func (r *ChangeRecorder) Kinds() []facts.ChangeKind {
	changes := r.Changes()
	out := make([]facts.ChangeKind, len(changes))
	for i, c := range changes {
		out[i] = c.Kind
	}
	return out
}
