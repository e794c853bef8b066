// Package servecmder provides the serve command with subcommands for running services.
package servecmder

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/papercomputeco/aurion/api"
	"github.com/papercomputeco/aurion/cmd/aurion/factstack"
	apicmder "github.com/papercomputeco/aurion/cmd/aurion/serve/api"
	proxycmder "github.com/papercomputeco/aurion/cmd/aurion/serve/proxy"
	"github.com/papercomputeco/aurion/pkg/config"
	"github.com/papercomputeco/aurion/pkg/logger"
	"github.com/papercomputeco/aurion/proxy"
)

type ServeCommander struct {
	proxyListen  string
	apiListen    string
	upstream     string
	providerType string
	model        string

	storageDriver string
	sqlitePath    string
	postgresDSN   string

	embeddingProvider   string
	embeddingTarget     string
	embeddingModel      string
	embeddingDimensions uint
	embeddingCache      string

	memory        bool
	threshold     float64
	sweepInterval string

	eventsProvider string
	eventsBrokers  string

	debug     bool
	configDir string
	cfg       *config.Config
	viper     *viper.Viper
	logger    *zap.Logger
}

const serveLongDesc string = `Run Aurion services.

Use subcommands to run individual services or all services together:
  aurion serve          Run both proxy and API server together
  aurion serve api      Run just the API server
  aurion serve proxy    Run just the proxy server

Both servers share one fact store. Edits to memory.threshold in config.toml
are applied without a restart.`

const serveShortDesc string = "Run Aurion services"

var serveFlags = []string{
	config.FlagProxyListen,
	config.FlagAPIListen,
	config.FlagUpstream,
	config.FlagProvider,
	config.FlagModel,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEmbeddingCache,
	config.FlagMemory,
	config.FlagThreshold,
	config.FlagSweepInterval,
	config.FlagEvents,
	config.FlagEventsBrokers,
}

func NewServeCmd() *cobra.Command {
	cmder := &ServeCommander{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: serveShortDesc,
		Long:  serveLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, serveFlags)

			cmder.viper = v
			cmder.cfg = config.FromViper(v)
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}
			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListen, &cmder.proxyListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListen, &cmder.apiListen)
	config.AddStringFlag(cmd, config.Flags, config.FlagUpstream, &cmder.upstream)
	config.AddStringFlag(cmd, config.Flags, config.FlagProvider, &cmder.providerType)
	config.AddStringFlag(cmd, config.Flags, config.FlagModel, &cmder.model)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDimensions)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingCache, &cmder.embeddingCache)
	config.AddBoolFlag(cmd, config.Flags, config.FlagMemory, &cmder.memory)
	config.AddFloat64Flag(cmd, config.Flags, config.FlagThreshold, &cmder.threshold)
	config.AddStringFlag(cmd, config.Flags, config.FlagSweepInterval, &cmder.sweepInterval)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)

	cmd.AddCommand(apicmder.NewAPICmd())
	cmd.AddCommand(proxycmder.NewProxyCmd())

	return cmd
}

func (c *ServeCommander) run(parent context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stack, err := factstack.New(ctx, c.cfg, c.configDir, c.logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := stack.Close(); err != nil {
			c.logger.Warn("closing fact store", zap.Error(err))
		}
	}()
	stack.WatchThreshold(c.viper)

	// A nil Memory turns the proxy into a plain pass-through.
	var memory proxy.Memory
	if c.cfg.Memory.Enabled {
		memory = stack.Store
	}

	p, err := proxy.New(proxy.Config{
		ListenAddr:   c.cfg.Proxy.Listen,
		UpstreamURL:  c.cfg.Proxy.Upstream,
		ProviderType: c.cfg.Proxy.Provider,
		Model:        c.cfg.Proxy.Model,
	}, memory, c.logger)
	if err != nil {
		return fmt.Errorf("creating proxy: %w", err)
	}

	apiServer, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
	}, stack.Store, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := p.Run(); err != nil {
			return fmt.Errorf("proxy error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := apiServer.Run(); err != nil {
			return fmt.Errorf("API server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return stack.RunSweeper(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			c.logger.Info("received signal, shutting down")
		}
		return errors.Join(p.Close(), apiServer.Shutdown())
	})

	return g.Wait()
}
