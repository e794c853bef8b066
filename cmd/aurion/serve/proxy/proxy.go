// Package proxycmder provides the proxy server command.
package proxycmder

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

	"github.com/papercomputeco/aurion/cmd/aurion/factstack"
	"github.com/papercomputeco/aurion/pkg/config"
	"github.com/papercomputeco/aurion/pkg/logger"
	"github.com/papercomputeco/aurion/proxy"
)

type proxyCommander struct {
	listen       string
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

	memory    bool
	threshold float64

	eventsProvider string
	eventsBrokers  string

	debug     bool
	configDir string
	cfg       *config.Config
	viper     *viper.Viper
	logger    *zap.Logger
}

const proxyLongDesc string = `Run the proxy server.

The proxy sits in front of Ollama. Chat and generate requests whose question
matches a stored fact are answered from memory; everything else is forwarded
to the configured upstream URL unchanged.

Prompts starting with "remember:" or "forget:" manage memory from inside any
Ollama client:
  remember: Who is Zorg? => Zorg is the moon base cat.
  forget: Who is Zorg?

Run with --memory=false for a plain pass-through proxy.`

const proxyShortDesc string = "Run the Aurion proxy server"

var proxyFlags = []string{
	config.FlagProxyListenStandalone,
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
	config.FlagEvents,
	config.FlagEventsBrokers,
}

func NewProxyCmd() *cobra.Command {
	cmder := &proxyCommander{}

	cmd := &cobra.Command{
		Use:   "proxy",
		Short: proxyShortDesc,
		Long:  proxyLongDesc,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cmder.configDir, _ = cmd.Flags().GetString("config-dir")

			v, err := config.InitViper(cmder.configDir)
			if err != nil {
				return fmt.Errorf("loading config: %w", err)
			}
			config.BindRegisteredFlags(v, cmd, config.Flags, proxyFlags)

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

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyListenStandalone, &cmder.listen)
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
	config.AddStringFlag(cmd, config.Flags, config.FlagEvents, &cmder.eventsProvider)
	config.AddStringFlag(cmd, config.Flags, config.FlagEventsBrokers, &cmder.eventsBrokers)

	return cmd
}

func (c *proxyCommander) run(parent context.Context) error {
	c.logger = logger.NewLogger(c.debug)
	defer func() { _ = c.logger.Sync() }()

	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var memory proxy.Memory
	if c.cfg.Memory.Enabled {
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
		memory = stack.Store
	} else {
		c.logger.Info("fact memory disabled, forwarding every request")
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

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := p.Run(); err != nil {
			return fmt.Errorf("proxy error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			c.logger.Info("received signal, shutting down")
		}
		return errors.Join(p.Close())
	})

	return g.Wait()
}
