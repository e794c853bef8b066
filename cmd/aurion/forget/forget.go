// Package forgetcmder provides the forget command for removing a fact.
package forgetcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aurion/cmd/aurion/client"
	"github.com/papercomputeco/aurion/pkg/cliui"
)

const forgetLongDesc string = `Forget a fact.

Removes the fact whose question matches (ignoring case, punctuation and
spacing) through the running aurion API server. Forgetting an unknown
question is not an error.

Examples:
  aurion forget "Who is Zorg?"`

const forgetShortDesc string = "Forget a fact"

func NewForgetCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "forget <question>",
		Short: forgetShortDesc,
		Long:  forgetLongDesc,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromCommand(cmd)
			if err != nil {
				return err
			}

			deleted, err := c.Forget(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !deleted {
				fmt.Fprintf(out, "%s\n", cliui.DimStyle.Render("Nothing to forget for "+fmt.Sprintf("%q", args[0])))
				return nil
			}

			fmt.Fprintf(out, "%s Forgot %s\n", cliui.SuccessMark, cliui.KeyStyle.Render(fmt.Sprintf("%q", args[0])))
			return nil
		},
	}

	client.AddTargetFlag(cmd, &apiTarget)

	return cmd
}
