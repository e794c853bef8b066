// Package apicmder provides the API aurion server cobra command.
package apicmder

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
	"github.com/papercomputeco/aurion/pkg/config"
	"github.com/papercomputeco/aurion/pkg/logger"
)

type apiCommander struct {
	listen     string
	disableMCP bool

	storageDriver string
	sqlitePath    string
	postgresDSN   string

	embeddingProvider   string
	embeddingTarget     string
	embeddingModel      string
	embeddingDimensions uint
	embeddingCache      string

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

const apiLongDesc string = `Run the Aurion API server.

Serves the fact memory over REST under /v1/facts and as MCP tools under /mcp:
  POST   /v1/facts          teach a fact
  POST   /v1/facts/lookup   look up the answer for a question
  DELETE /v1/facts          forget a fact
  GET    /v1/facts          list live facts
  POST   /v1/facts/sweep    delete expired facts`

const apiShortDesc string = "Run the Aurion API server"

var apiFlags = []string{
	config.FlagAPIListenStandalone,
	config.FlagStorageDriver,
	config.FlagSQLite,
	config.FlagPostgres,
	config.FlagEmbeddingProv,
	config.FlagEmbeddingTgt,
	config.FlagEmbeddingModel,
	config.FlagEmbeddingDims,
	config.FlagEmbeddingCache,
	config.FlagThreshold,
	config.FlagSweepInterval,
	config.FlagEvents,
	config.FlagEventsBrokers,
}

func NewAPICmd() *cobra.Command {
	cmder := &apiCommander{}

	cmd := &cobra.Command{
		Use:   "api",
		Short: apiShortDesc,
		Long:  apiLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, apiFlags)

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

	config.AddStringFlag(cmd, config.Flags, config.FlagAPIListenStandalone, &cmder.listen)
	config.AddStringFlag(cmd, config.Flags, config.FlagStorageDriver, &cmder.storageDriver)
	config.AddStringFlag(cmd, config.Flags, config.FlagSQLite, &cmder.sqlitePath)
	config.AddStringFlag(cmd, config.Flags, config.FlagPostgres, &cmder.postgresDSN)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingProv, &cmder.embeddingProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingTgt, &cmder.embeddingTarget)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingModel, &cmder.embeddingModel)
	config.AddUintFlag(cmd, config.Flags, config.FlagEmbeddingDims, &cmder.embeddingDimensions)
	config.AddStringFlag(cmd, config.Flags, config.FlagEmbeddingCache, &cmder.embeddingCache)
	config.AddFloat64Flag(cmd, config.Flags, config.FlagThreshold, &cmder.threshold)
	config.AddStringFlag(cmd, config.Flags, config.FlagSweepInterval, &cmder.sweepInterval)
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)
	cmd.Flags().BoolVar(&cmder.disableMCP, "disable-mcp", false, "Serve /mcp without any tools")

	return cmd
}

func (c *apiCommander) run(parent context.Context) error {
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

	server, err := api.NewServer(api.Config{
		ListenAddr: c.cfg.API.Listen,
		DisableMCP: c.disableMCP,
	}, stack.Store, c.logger)
	if err != nil {
		return fmt.Errorf("creating api server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := server.Run(); err != nil {
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
		return errors.Join(server.Shutdown())
	})

	return g.Wait()
}
