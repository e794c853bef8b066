// Package askcmder provides the ask command for looking up a fact.
package askcmder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/papercomputeco/aurion/api"
	"github.com/papercomputeco/aurion/cmd/aurion/client"
	"github.com/papercomputeco/aurion/pkg/cliui"
	"github.com/papercomputeco/aurion/pkg/facts"
)

// ErrNoMemory is returned when no stored fact is similar enough to the question.
var ErrNoMemory = errors.New("no matching memory")

const askLongDesc string = `Ask aurion a question.

Looks the question up in fact memory through the running aurion API server
and prints the stored answer when a fact is similar enough. Exits non-zero
when nothing matches.

Examples:
  aurion ask "who is zorg"
  aurion ask "Who is Zorg?" --threshold 0.7
  aurion ask "who is zorg" --quiet`

const askShortDesc string = "Look up an answer in fact memory"

type askCommander struct {
	apiTarget string
	threshold float64
	quiet     bool
}

func NewAskCmd() *cobra.Command {
	cmder := &askCommander{}

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: askShortDesc,
		Long:  askLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := client.FromCommand(cmd)
			if err != nil {
				return err
			}

			req := api.LookupRequest{Question: strings.Join(args, " ")}
			if cmd.Flags().Changed("threshold") {
				t := cmder.threshold
				req.Threshold = &t
			}

			match, err := c.Ask(cmd.Context(), req)
			if client.IsNotFound(err) {
				return ErrNoMemory
			}
			if err != nil {
				return err
			}

			return cmder.print(cmd.OutOrStdout(), match)
		},
	}

	client.AddTargetFlag(cmd, &cmder.apiTarget)
	cmd.Flags().Float64VarP(&cmder.threshold, "threshold", "t", 0, "Minimum similarity for this lookup (default: the server threshold)")
	cmd.Flags().BoolVarP(&cmder.quiet, "quiet", "q", false, "Print only the answer")

	return cmd
}

func (c *askCommander) print(w io.Writer, match *facts.Match) error {
	if c.quiet {
		fmt.Fprintln(w, match.Answer)
		return nil
	}

	answer := match.Answer
	if isTerminal(w) {
		if rendered, err := cliui.RenderMarkdown(answer); err == nil {
			answer = strings.TrimRight(rendered, "\n")
		}
	}

	fmt.Fprintln(w, answer)
	fmt.Fprintf(w, "\n%s %s  %s %s  %s %s\n",
		cliui.DimStyle.Render("matched"),
		cliui.KeyStyle.Render(fmt.Sprintf("%q", match.Question)),
		cliui.DimStyle.Render("similarity"),
		cliui.ValueStyle.Render(fmt.Sprintf("%.3f", match.Similarity)),
		cliui.DimStyle.Render("source"),
		cliui.ValueStyle.Render(match.Source),
	)
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
