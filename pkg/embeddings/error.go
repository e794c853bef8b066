package embeddings

import "errors"

var (
	// ErrEmbedding is returned when a provider fails to produce an embedding.
	ErrEmbedding = errors.New("embedding failed")

	// ErrCircuitOpen is returned while a provider is being shed after
	// repeated failures.
	ErrCircuitOpen = errors.New("embedding provider circuit open")
)
