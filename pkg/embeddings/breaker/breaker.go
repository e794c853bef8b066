// Package breaker wraps an embeddings.Embedder with a circuit breaker so a
// failing provider is shed quickly instead of stalling every lookup.
package breaker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/embeddings"
)

// Config tunes the breaker. Zero values select the defaults below.
type Config struct {
	// Name identifies the breaker in logs.
	Name string

	// MaxRequests is the number of probes allowed while half-open. Defaults to 1.
	MaxRequests uint32

	// Interval is the cyclic period of the closed state after which counts
	// are cleared. Defaults to 60s.
	Interval time.Duration

	// Timeout is how long the breaker stays open. Defaults to 30s.
	Timeout time.Duration

	// MinRequests is the number of requests in an interval before the
	// failure ratio is considered. Defaults to 3.
	MinRequests uint32

	// FailureRatio trips the breaker once reached. Defaults to 0.6.
	FailureRatio float64
}

// Embedder is a circuit breaking embeddings.Embedder.
type Embedder struct {
	next   embeddings.Embedder
	cb     *gobreaker.CircuitBreaker
	logger *zap.Logger
}

// New wraps next.
func New(next embeddings.Embedder, cfg Config, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name == "" {
		cfg.Name = "embeddings"
	}
	if cfg.MaxRequests == 0 {
		cfg.MaxRequests = 1
	}
	if cfg.Interval == 0 {
		cfg.Interval = 60 * time.Second
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MinRequests == 0 {
		cfg.MinRequests = 3
	}
	if cfg.FailureRatio == 0 {
		cfg.FailureRatio = 0.6
	}

	st := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.MinRequests && failureRatio >= cfg.FailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("embedding circuit breaker changed state",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
		// A cancelled caller says nothing about provider health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	}

	return &Embedder{
		next:   next,
		cb:     gobreaker.NewCircuitBreaker(st),
		logger: logger,
	}
}

// Embed implements embeddings.Embedder.
func (e *Embedder) Embed(ctx context.Context, text string) ([]float32, error) {
	v, err := e.cb.Execute(func() (interface{}, error) {
		return e.next.Embed(ctx, text)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			e.logger.Debug("embedding request shed",
				zap.String("breaker", e.cb.Name()),
				zap.String("state", e.State()),
			)
			return nil, fmt.Errorf("%w: %v", embeddings.ErrCircuitOpen, err)
		}
		return nil, err
	}
	return v.([]float32), nil
}

// State reports the breaker state, e.g. "closed" or "open".
func (e *Embedder) State() string {
	return e.cb.State().String()
}

// Close closes the wrapped embedder.
func (e *Embedder) Close() error {
	return e.next.Close()
}

var _ embeddings.Embedder = (*Embedder)(nil)
