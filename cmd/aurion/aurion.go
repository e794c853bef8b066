// Package aurioncmder is the root aurion command.
package aurioncmder

import (
	"github.com/spf13/cobra"

	askcmder "github.com/papercomputeco/aurion/cmd/aurion/ask"
	configcmder "github.com/papercomputeco/aurion/cmd/aurion/config"
	factscmder "github.com/papercomputeco/aurion/cmd/aurion/facts"
	forgetcmder "github.com/papercomputeco/aurion/cmd/aurion/forget"
	initcmder "github.com/papercomputeco/aurion/cmd/aurion/init"
	servecmder "github.com/papercomputeco/aurion/cmd/aurion/serve"
	teachcmder "github.com/papercomputeco/aurion/cmd/aurion/teach"
	versioncmder "github.com/papercomputeco/aurion/cmd/version"
)

const aurionLongDesc string = `Aurion is a fact memory for your local models.

Teach it corrections once and it answers matching questions from memory,
in front of Ollama or through its API.

Run services using:
  aurion serve api      Run the API server
  aurion serve proxy    Run the proxy server
  aurion serve          Run both servers together

Work with memory using:
  aurion teach <question> <answer>
  aurion ask <question>
  aurion forget <question>
  aurion facts`

const aurionShortDesc string = "Aurion - fact memory for local models"

func NewAurionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "aurion",
		Short:         aurionShortDesc,
		Long:          aurionLongDesc,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	// Global flags
	cmd.PersistentFlags().BoolP("debug", "d", false, "Enable debug logging")
	cmd.PersistentFlags().String("config-dir", "", "Directory holding config.toml (default: ./.aurion or ~/.aurion)")

	// Add subcommands
	cmd.AddCommand(initcmder.NewInitCmd())
	cmd.AddCommand(configcmder.NewConfigCmd())
	cmd.AddCommand(servecmder.NewServeCmd())
	cmd.AddCommand(teachcmder.NewTeachCmd())
	cmd.AddCommand(askcmder.NewAskCmd())
	cmd.AddCommand(forgetcmder.NewForgetCmd())
	cmd.AddCommand(factscmder.NewFactsCmd())
	cmd.AddCommand(versioncmder.NewVersionCmd())

	return cmd
}
