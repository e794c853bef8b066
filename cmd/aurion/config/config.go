// Package configcmder provides the config command for managing persistent
// aurion configuration stored in the .aurion/ directory.
package configcmder

import (
	"github.com/spf13/cobra"

	"github.com/papercomputeco/aurion/pkg/cliui"
	"github.com/papercomputeco/aurion/pkg/config"
)

const configLongDesc string = `Manage persistent aurion configuration.

Configuration is stored as config.toml in the .aurion/ directory and provides
default values for command flags. CLI flags and AURION_* environment
variables always take precedence over config file values.

Keys use dotted notation matching the TOML section structure:
  storage.driver, storage.sqlite_path, storage.postgres_dsn,
  proxy.provider, proxy.upstream, proxy.listen, proxy.model,
  api.listen,
  client.proxy_target, client.api_target,
  embedding.provider, embedding.target, embedding.model, embedding.api_key,
  embedding.dimensions, embedding.cache_target, embedding.cache_ttl, embedding.breaker,
  memory.enabled, memory.threshold, memory.default_source, memory.sweep_interval,
  events.provider, events.brokers, events.topic

Use subcommands to get, set, or list configuration values:
  aurion config set <key> <value>    Set a configuration value
  aurion config get <key>            Get a configuration value
  aurion config list                 List all configuration values

Examples:
  aurion config set memory.threshold 0.9
  aurion config set storage.driver postgres
  aurion config get embedding.model
  aurion config list`

const configShortDesc string = "Manage persistent aurion configuration"

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newSetCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newListCmd())

	return cmd
}

// displayValue masks secrets before they reach the terminal.
func displayValue(key, value string) string {
	if config.IsSecretConfigKey(key) {
		return cliui.Mask(value)
	}
	return value
}
