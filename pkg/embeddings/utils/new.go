// Package embeddingutils is the embeddings utility package
package embeddingutils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/embeddings"
	"github.com/papercomputeco/aurion/pkg/embeddings/breaker"
	"github.com/papercomputeco/aurion/pkg/embeddings/cache"
	"github.com/papercomputeco/aurion/pkg/embeddings/ollama"
	"github.com/papercomputeco/aurion/pkg/embeddings/openai"
)

const cachePingTimeout = 2 * time.Second

type NewEmbedderOpts struct {
	ProviderType string
	TargetURL    string
	Model        string
	APIKey       string
	Dimensions   int

	// Breaker wraps the provider in a circuit breaker.
	Breaker bool

	// CacheTarget, when set, is the Redis address used to cache embeddings.
	CacheTarget string
	CacheTTL    time.Duration

	Logger *zap.Logger
}

// NewEmbedder builds the provider named by o.ProviderType and applies the
// requested decorators: breaker first, cache outermost so cache hits never
// count against the breaker.
func NewEmbedder(o *NewEmbedderOpts) (embeddings.Embedder, error) {
	var (
		e   embeddings.Embedder
		err error
	)
	switch o.ProviderType {
	case "ollama":
		e, err = ollama.NewEmbedder(ollama.EmbedderConfig{
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	case "openai":
		e, err = openai.NewEmbedder(openai.EmbedderConfig{
			APIKey:     o.APIKey,
			BaseURL:    o.TargetURL,
			Model:      o.Model,
			Dimensions: o.Dimensions,
		})
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", o.ProviderType)
	}
	if err != nil {
		return nil, err
	}

	return Decorate(e, o)
}

// Decorate applies the breaker and cache requested by o around e. If the
// cache cannot be built, e is closed before the error is returned. An
// unreachable Redis is only logged: the cache falls through to e.
func Decorate(e embeddings.Embedder, o *NewEmbedderOpts) (embeddings.Embedder, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if o.Breaker {
		e = breaker.New(e, breaker.Config{Name: o.ProviderType}, logger)
	}

	if o.CacheTarget == "" {
		return e, nil
	}

	cached, err := cache.New(e, cache.Config{
		Addr:  o.CacheTarget,
		Model: o.ProviderType + "/" + o.Model,
		TTL:   o.CacheTTL,
	}, logger)
	if err != nil {
		return nil, errors.Join(err, e.Close())
	}

	ctx, cancel := context.WithTimeout(context.Background(), cachePingTimeout)
	defer cancel()
	if err := cached.Ping(ctx); err != nil {
		logger.Warn("embedding cache unreachable, embeddings will not be cached until it recovers",
			zap.String("cache_target", o.CacheTarget),
			zap.Error(err),
		)
	}

	return cached, nil
}
