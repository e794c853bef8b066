package facts

import (
	"context"
	"time"
)

// Driver persists facts and their embeddings. Implementations must make every
// Transaction atomic and must serialize write transactions so no reader ever
// observes a fact and an embedding from different upserts.
type Driver interface {
	// Transaction runs fn in a single atomic unit. When fn returns an error
	// nothing it did is kept and the error is returned unchanged.
	Transaction(ctx context.Context, fn func(tx Tx) error) error

	// Close releases the underlying storage handle.
	Close() error
}

// Tx is the set of operations available inside a Driver transaction.
type Tx interface {
	// Upsert stores f with its embedding. When a fact with the same
	// QuestionNorm exists its answer, source, TTL and UpdatedAt are
	// overwritten, its ID and CreatedAt are kept and its embedding is
	// replaced. The stored fact is returned with created reporting whether a
	// new row was inserted.
	Upsert(ctx context.Context, f Fact, vector []float32) (stored Fact, created bool, err error)

	// Delete removes the fact keyed by questionNorm together with its
	// embedding. It returns nil when no such fact exists.
	Delete(ctx context.Context, questionNorm string) (*Fact, error)

	// Expiring returns every fact that carries a TTL.
	Expiring(ctx context.Context) ([]Fact, error)

	// DeleteIfUnchanged removes the fact with the given id only when its
	// UpdatedAt still equals updatedAt, reporting whether a row was removed.
	DeleteIfUnchanged(ctx context.Context, id string, updatedAt time.Time) (bool, error)

	// Candidates returns every fact with its embedding vector.
	Candidates(ctx context.Context) ([]Candidate, error)

	// List returns every fact, oldest first.
	List(ctx context.Context) ([]Fact, error)
}

// ChangeKind names what happened to a fact.
type ChangeKind string

const (
	ChangeUpserted  ChangeKind = "upserted"
	ChangeForgotten ChangeKind = "forgotten"
	ChangeExpired   ChangeKind = "expired"
)

// Change describes a committed mutation.
type Change struct {
	Kind    ChangeKind
	Fact    Fact
	Created bool
	At      time.Time
}

// Observer is told about every committed change. FactChanged is called
// synchronously on the request path and must not block.
type Observer interface {
	FactChanged(change Change)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(change Change)

func (f ObserverFunc) FactChanged(change Change) {
	f(change)
}
