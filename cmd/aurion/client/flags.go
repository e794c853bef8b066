package client

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aurion/pkg/config"
)

// AddTargetFlag registers --api-target on cmd.
func AddTargetFlag(cmd *cobra.Command, target *string) {
	config.AddStringFlag(cmd, config.Flags, config.FlagAPITarget, target)
}

// FromCommand resolves the API target for cmd (flag > env > config file >
// default) and returns a Client for it.
func FromCommand(cmd *cobra.Command) (*Client, error) {
	configDir, _ := cmd.Flags().GetString("config-dir")

	v, err := config.InitViper(configDir)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	config.BindRegisteredFlags(v, cmd, config.Flags, []string{config.FlagAPITarget})

	return New(v.GetString("client.api_target"))
}
