// Package inmemory provides a process-local fact driver, used for tests and
// for running without a database.
package inmemory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/papercomputeco/aurion/pkg/facts"
)

type record struct {
	fact   facts.Fact
	vector []float32
}

// Driver implements facts.Driver using in-memory maps.
type Driver struct {
	// mu serializes transactions. Reads are cheap enough that a single lock
	// keeps the implementation obvious.
	mu sync.Mutex

	// records is keyed by normalized question.
	records map[string]*record
}

// NewDriver creates an empty in-memory driver.
func NewDriver() *Driver {
	return &Driver{
		records: make(map[string]*record),
	}
}

// Transaction implements facts.Driver. Changes made by fn are undone when it
// returns an error.
func (d *Driver) Transaction(ctx context.Context, fn func(tx facts.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	t := &tx{d: d, undo: make(map[string]*record)}
	if err := fn(t); err != nil {
		t.rollback()
		return err
	}
	return nil
}

// Close implements facts.Driver.
func (d *Driver) Close() error {
	return nil
}

type tx struct {
	d *Driver

	// undo holds the pre-transaction record for every key touched, nil when
	// the key did not exist.
	undo map[string]*record
}

func (t *tx) touch(key string) {
	if _, seen := t.undo[key]; seen {
		return
	}
	t.undo[key] = t.d.records[key]
}

func (t *tx) rollback() {
	for key, prev := range t.undo {
		if prev == nil {
			delete(t.d.records, key)
			continue
		}
		t.d.records[key] = prev
	}
}

func (t *tx) Upsert(_ context.Context, f facts.Fact, vector []float32) (facts.Fact, bool, error) {
	t.touch(f.QuestionNorm)

	existing, ok := t.d.records[f.QuestionNorm]
	stored := cloneFact(f)
	if ok {
		stored.ID = existing.fact.ID
		stored.CreatedAt = existing.fact.CreatedAt
	}

	t.d.records[f.QuestionNorm] = &record{
		fact:   stored,
		vector: slices.Clone(vector),
	}

	return cloneFact(stored), !ok, nil
}

func (t *tx) Delete(_ context.Context, questionNorm string) (*facts.Fact, error) {
	existing, ok := t.d.records[questionNorm]
	if !ok {
		return nil, nil
	}

	t.touch(questionNorm)
	delete(t.d.records, questionNorm)

	f := cloneFact(existing.fact)
	return &f, nil
}

func (t *tx) Expiring(_ context.Context) ([]facts.Fact, error) {
	var result []facts.Fact
	for _, r := range t.sorted() {
		if r.fact.TTLDays != nil {
			result = append(result, cloneFact(r.fact))
		}
	}
	return result, nil
}

func (t *tx) DeleteIfUnchanged(_ context.Context, id string, updatedAt time.Time) (bool, error) {
	for key, r := range t.d.records {
		if r.fact.ID != id {
			continue
		}
		if !r.fact.UpdatedAt.Equal(updatedAt) {
			return false, nil
		}

		t.touch(key)
		delete(t.d.records, key)
		return true, nil
	}
	return false, nil
}

func (t *tx) Candidates(_ context.Context) ([]facts.Candidate, error) {
	records := t.sorted()
	result := make([]facts.Candidate, 0, len(records))
	for _, r := range records {
		result = append(result, facts.Candidate{
			Fact:   cloneFact(r.fact),
			Vector: slices.Clone(r.vector),
		})
	}
	return result, nil
}

func (t *tx) List(_ context.Context) ([]facts.Fact, error) {
	records := t.sorted()
	result := make([]facts.Fact, 0, len(records))
	for _, r := range records {
		result = append(result, cloneFact(r.fact))
	}
	return result, nil
}

// sorted returns records oldest first, ties broken by id.
func (t *tx) sorted() []*record {
	records := make([]*record, 0, len(t.d.records))
	for _, r := range t.d.records {
		records = append(records, r)
	}

	slices.SortFunc(records, func(a, b *record) int {
		if c := a.fact.CreatedAt.Compare(b.fact.CreatedAt); c != 0 {
			return c
		}
		if a.fact.ID < b.fact.ID {
			return -1
		}
		if a.fact.ID > b.fact.ID {
			return 1
		}
		return 0
	})
	return records
}

func cloneFact(f facts.Fact) facts.Fact {
	if f.TTLDays != nil {
		ttl := *f.TTLDays
		f.TTLDays = &ttl
	}
	return f
}
