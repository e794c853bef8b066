package proxy

import (
	"context"

	"github.com/papercomputeco/aurion/pkg/facts"
)

// Memory is the fact memory consulted before a request reaches the model.
// *facts.Store satisfies it.
type Memory interface {
	Lookup(ctx context.Context, question string) (*facts.Match, error)
	Upsert(ctx context.Context, in facts.UpsertInput) (string, error)
	Forget(ctx context.Context, question string) (bool, error)
}
