// Package factscmder provides the facts command for listing and sweeping
// stored facts.
package factscmder

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aurion/api"
	"github.com/papercomputeco/aurion/cmd/aurion/client"
	"github.com/papercomputeco/aurion/pkg/cliui"
)

const factsLongDesc string = `List the facts aurion remembers.

Prints every live fact known to the running aurion API server, oldest
first. Expired facts are hidden.

Use "aurion facts sweep" to delete expired facts now instead of waiting for
the server's periodic sweep.`

const factsShortDesc string = "List remembered facts"

const answerWidth = 60

type factsCommander struct {
	apiTarget string
}

func NewFactsCmd() *cobra.Command {
	cmder := &factsCommander{}

	cmd := &cobra.Command{
		Use:   "facts",
		Short: factsShortDesc,
		Long:  factsLongDesc,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.FromCommand(cmd)
			if err != nil {
				return err
			}

			list, err := c.List(cmd.Context())
			if err != nil {
				return err
			}

			printFacts(cmd.OutOrStdout(), list)
			return nil
		},
	}

	client.AddTargetFlag(cmd, &cmder.apiTarget)
	cmd.AddCommand(newSweepCmd())

	return cmd
}

func newSweepCmd() *cobra.Command {
	var apiTarget string

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Delete expired facts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := client.FromCommand(cmd)
			if err != nil {
				return err
			}

			expired, err := c.Sweep(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Swept %s expired fact(s)\n",
				cliui.SuccessMark,
				cliui.ValueStyle.Render(fmt.Sprintf("%d", expired)),
			)
			return nil
		},
	}

	client.AddTargetFlag(cmd, &apiTarget)

	return cmd
}

func printFacts(w io.Writer, list []api.FactResponse) {
	if len(list) == 0 {
		fmt.Fprintln(w, cliui.DimStyle.Render("No facts yet. Teach one with: aurion teach <question> <answer>"))
		return
	}

	fmt.Fprintf(w, "%s\n\n", cliui.HeaderStyle.Render(fmt.Sprintf("%d fact(s)", len(list))))
	for _, f := range list {
		fmt.Fprintf(w, "%s\n  %s\n", cliui.KeyStyle.Render(f.Question), cliui.ValueStyle.Render(cliui.Truncate(f.Answer, answerWidth)))

		meta := fmt.Sprintf("  %s  source=%s  updated=%s", f.ID, f.Source, f.UpdatedAt.Local().Format(time.DateTime))
		if f.ExpiresAt != nil {
			meta += "  expires=" + f.ExpiresAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\n\n", cliui.DimStyle.Render(meta))
	}
}
