// Package factstack assembles the fact store used by the serve commands: the
// storage driver, the decorated embedder, the event publisher behind a worker
// pool, and the periodic sweeper.
package factstack

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/cmd/aurion/sqlitepath"
	"github.com/papercomputeco/aurion/pkg/config"
	"github.com/papercomputeco/aurion/pkg/embeddings"
	embeddingutils "github.com/papercomputeco/aurion/pkg/embeddings/utils"
	"github.com/papercomputeco/aurion/pkg/eventstream"
	eventstreamutils "github.com/papercomputeco/aurion/pkg/eventstream/utils"
	"github.com/papercomputeco/aurion/pkg/facts"
	factsutils "github.com/papercomputeco/aurion/pkg/facts/utils"
	"github.com/papercomputeco/aurion/pkg/worker"
)

// Stack owns every resource behind a facts.Store.
type Stack struct {
	Store *facts.Store

	driver    facts.Driver
	embedder  embeddings.Embedder
	publisher eventstream.Publisher
	pool      *worker.Pool
	sweeper   *facts.Sweeper
	logger    *zap.Logger
}

// New opens the storage driver named by cfg.Storage and wires a Store to it.
// configDir locates the default SQLite database when no path is configured.
func New(ctx context.Context, cfg *config.Config, configDir string, logger *zap.Logger) (*Stack, error) {
	s := &Stack{logger: logger}

	sweepEvery, err := cfg.Memory.SweepEvery()
	if err != nil {
		return nil, err
	}
	cacheTTL, err := cfg.Embedding.CacheDuration()
	if err != nil {
		return nil, err
	}

	sqlitePath := cfg.Storage.SQLitePath
	if cfg.Storage.Driver == "sqlite" {
		sqlitePath, err = sqlitepath.ResolveSQLitePath(sqlitePath, configDir)
		if err != nil {
			return nil, fmt.Errorf("resolving sqlite path: %w", err)
		}
	}

	s.driver, err = factsutils.NewDriver(ctx, &factsutils.NewDriverOpts{
		ProviderType: cfg.Storage.Driver,
		SQLitePath:   sqlitePath,
		PostgresDSN:  cfg.Storage.PostgresDSN,
		Logger:       logger,
	})
	if err != nil {
		return nil, fmt.Errorf("creating fact driver: %w", err)
	}

	s.embedder, err = embeddingutils.NewEmbedder(&embeddingutils.NewEmbedderOpts{
		ProviderType: cfg.Embedding.Provider,
		TargetURL:    cfg.Embedding.Target,
		Model:        cfg.Embedding.Model,
		APIKey:       cfg.Embedding.APIKey,
		Dimensions:   int(cfg.Embedding.Dimensions),
		Breaker:      cfg.Embedding.Breaker,
		CacheTarget:  cfg.Embedding.CacheTarget,
		CacheTTL:     cacheTTL,
		Logger:       logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating embedder: %w", err)
	}

	s.publisher, err = eventstreamutils.NewPublisher(&eventstreamutils.NewPublisherOpts{
		ProviderType: cfg.Events.Provider,
		Brokers:      cfg.Events.BrokerList(),
		Topic:        cfg.Events.Topic,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating event publisher: %w", err)
	}

	s.pool, err = worker.NewPool(&worker.Config{
		Publisher: s.publisher,
		Logger:    logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating worker pool: %w", err)
	}

	s.Store, err = facts.NewStore(facts.Config{
		Driver:        s.driver,
		Embedder:      s.embedder,
		Threshold:     cfg.Memory.Threshold,
		DefaultSource: cfg.Memory.DefaultSource,
		Observer:      s.pool,
		Logger:        logger,
	})
	if err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("creating fact store: %w", err)
	}

	s.sweeper = facts.NewSweeper(s.Store, sweepEvery, logger)

	logger.Info("fact memory ready",
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.String("sqlite_path", sqlitePath),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("embedding_model", cfg.Embedding.Model),
		zap.Bool("embedding_cache", cfg.Embedding.CacheTarget != ""),
		zap.String("events_provider", cfg.Events.Provider),
		zap.Float64("threshold", s.Store.Threshold()),
	)

	return s, nil
}

// RunSweeper blocks running the periodic sweeper until ctx is cancelled.
func (s *Stack) RunSweeper(ctx context.Context) error {
	return s.sweeper.Run(ctx)
}

// WatchThreshold applies memory.threshold edits in the config file to the
// running store. Invalid values are logged and ignored.
func (s *Stack) WatchThreshold(v *viper.Viper) {
	if v.ConfigFileUsed() == "" {
		return
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		s.ReloadThreshold(v.GetFloat64("memory.threshold"), e.Name)
	})
	v.WatchConfig()
}

// ReloadThreshold swaps the store threshold, keeping the old one when
// threshold is out of range.
func (s *Stack) ReloadThreshold(threshold float64, source string) {
	current := s.Store.Threshold()
	if threshold == current {
		return
	}

	if err := s.Store.SetThreshold(threshold); err != nil {
		s.logger.Warn("ignoring invalid memory threshold",
			zap.String("source", source),
			zap.Float64("threshold", threshold),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("memory threshold reloaded",
		zap.String("source", source),
		zap.Float64("previous", current),
		zap.Float64("threshold", threshold),
	)
}

// Close drains queued events and releases every resource.
func (s *Stack) Close() error {
	var errs []error

	if s.pool != nil {
		s.pool.Close()
	}
	if s.publisher != nil {
		errs = append(errs, s.publisher.Close())
	}
	if s.embedder != nil {
		errs = append(errs, s.embedder.Close())
	}
	if s.driver != nil {
		errs = append(errs, s.driver.Close())
	}

	return errors.Join(errs...)
}
