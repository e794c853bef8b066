// Package factsutils builds the configured fact storage driver.
package factsutils

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/papercomputeco/aurion/pkg/facts"
	"github.com/papercomputeco/aurion/pkg/facts/inmemory"
	"github.com/papercomputeco/aurion/pkg/facts/postgres"
	"github.com/papercomputeco/aurion/pkg/facts/sqlite"
)

type NewDriverOpts struct {
	// ProviderType is one of "sqlite", "postgres" or "inmemory".
	ProviderType string
	SQLitePath   string
	PostgresDSN  string
	Logger       *zap.Logger
}

func NewDriver(ctx context.Context, o *NewDriverOpts) (facts.Driver, error) {
	logger := o.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	switch o.ProviderType {
	case "sqlite":
		return sqlite.NewDriver(ctx, o.SQLitePath, logger)
	case "postgres":
		if o.PostgresDSN == "" {
			return nil, fmt.Errorf("postgres storage requires a connection string")
		}
		return postgres.NewDriver(ctx, o.PostgresDSN, logger)
	case "inmemory":
		logger.Warn("using in-memory fact storage, facts are lost on exit")
		return inmemory.NewDriver(), nil
	default:
		return nil, fmt.Errorf("unsupported fact storage driver: %s", o.ProviderType)
	}
}
