// Package teachcmder provides the teach command for storing a fact.
package teachcmder

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/aurion/api"
	"github.com/papercomputeco/aurion/cmd/aurion/client"
	"github.com/papercomputeco/aurion/pkg/cliui"
)

const teachLongDesc string = `Teach aurion a fact.

Stores the answer for a question through the running aurion API server.
Teaching a question that is already known (ignoring case, punctuation and
spacing) replaces its answer.

Use --ttl-days to let the fact expire.

Examples:
  aurion teach "Who is Zorg?" "Zorg is the moon base cat."
  aurion teach "What is the staging URL?" "https://staging.internal" --ttl-days 30
  aurion teach "Who owns billing?" "The payments team" --source runbook`

const teachShortDesc string = "Teach aurion a fact"

type teachCommander struct {
	apiTarget string
	source    string
	ttlDays   int
}

func NewTeachCmd() *cobra.Command {
	cmder := &teachCommander{}

	cmd := &cobra.Command{
		Use:   "teach <question> <answer>",
		Short: teachShortDesc,
		Long:  teachLongDesc,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromCommand(cmd)
			if err != nil {
				return err
			}

			req := api.UpsertFactRequest{
				Question: args[0],
				Answer:   args[1],
				Source:   cmder.source,
			}
			if cmd.Flags().Changed("ttl-days") {
				ttl := cmder.ttlDays
				req.TTLDays = &ttl
			}

			id, err := c.Teach(cmd.Context(), req)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s Learned %s %s\n",
				cliui.SuccessMark,
				cliui.KeyStyle.Render(fmt.Sprintf("%q", args[0])),
				cliui.DimStyle.Render("("+id+")"),
			)
			return nil
		},
	}

	client.AddTargetFlag(cmd, &cmder.apiTarget)
	cmd.Flags().StringVar(&cmder.source, "source", "", "Where the fact came from (default: memory.default_source on the server)")
	cmd.Flags().IntVar(&cmder.ttlDays, "ttl-days", 0, "Expire the fact after this many days")

	return cmd
}
