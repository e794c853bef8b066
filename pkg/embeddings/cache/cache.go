// Package cache memoizes embeddings in Redis, keyed by model and text, so the
// same question is never embedded twice across restarts or replicas.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/embeddings"
	"github.com/papercomputeco/aurion/pkg/vector"
)

const (
	// DefaultPrefix namespaces cache keys.
	DefaultPrefix = "aurion:embedding"

	// DefaultTTL is how long a cached embedding lives.
	DefaultTTL = 7 * 24 * time.Hour
)

// Config holds the cache settings.
type Config struct {
	// Addr is the Redis address, e.g. "localhost:6379".
	Addr string

	// Model is folded into the key so switching models never serves stale
	// vectors.
	Model string

	// Prefix defaults to DefaultPrefix.
	Prefix string

	// TTL defaults to DefaultTTL.
	TTL time.Duration
}

// Embedder is a caching embeddings.Embedder. Redis failures are logged and
// fall through to the wrapped embedder.
type Embedder struct {
	next   embeddings.Embedder
	rdb    *goredis.Client
	prefix string
	model  string
	ttl    time.Duration
	logger *zap.Logger
}

// New connects to Redis and wraps next. The connection is verified lazily:
// an unreachable Redis degrades to uncached embedding.
func New(next embeddings.Embedder, cfg Config, logger *zap.Logger) (*Embedder, error) {
	if cfg.Addr == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	if _, _, err := net.SplitHostPort(cfg.Addr); err != nil {
		return nil, fmt.Errorf("invalid redis address %q: %w", cfg.Addr, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	rdb := goredis.NewClient(&goredis.Options{
		Addr:        cfg.Addr,
		DialTimeout: 2 * time.Second,
		ReadTimeout: time.Second,
	})

	return &Embedder{
		next:   next,
		rdb:    rdb,
		prefix: prefix,
		model:  cfg.Model,
		ttl:    ttl,
		logger: logger,
	}, nil
}

// Ping checks the Redis connection.
func (e *Embedder) Ping(ctx context.Context) error {
	if err := e.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Embed implements embeddings.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := e.key(text)

	raw, err := e.rdb.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		v, decodeErr := vector.Decode(raw)
		if decodeErr == nil && len(v) > 0 {
			return v, nil
		}
		e.logger.Warn("discarding malformed cached embedding", zap.String("key", key))
	case errors.Is(err, goredis.Nil):
	default:
		e.logger.Warn("embedding cache read failed", zap.Error(err))
	}

	v, err := e.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}

	if err := e.rdb.Set(ctx, key, vector.Encode(v), e.ttl).Err(); err != nil {
		e.logger.Warn("embedding cache write failed", zap.Error(err))
	}

	return v, nil
}

// Close closes the Redis client and the wrapped embedder.
func (e *Embedder) Close() error {
	return errors.Join(e.rdb.Close(), e.next.Close())
}

func (e *Embedder) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return e.prefix + ":" + e.model + ":" + hex.EncodeToString(sum[:])
}

var _ embeddings.Embedder = (*Embedder)(nil)
