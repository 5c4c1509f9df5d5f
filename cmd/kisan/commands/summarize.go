package commands

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
)

// NewSummarizeCmd constructs the `kisan summarize` command.
func NewSummarizeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "summarize [conversation-id]",
		Short: "Summarise a conversation and list its topics and schemes",
		Long: `Print the title and summary of a stored conversation together with the
topics and government schemes it touched on. Summaries are cached until the
conversation grows.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			rt, err := buildRuntime(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
			defer rt.Close()

			sum, err := rt.advisor.Summarize(ctx, args[0])
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}
			title, err := rt.advisor.Title(ctx, args[0])
			if err != nil {
				return fmt.Errorf("summarize: %w", err)
			}

			w := cmd.OutOrStdout()
			bold := color.New(color.Bold).SprintFunc()
			fmt.Fprintln(w, color.New(color.FgGreen, color.Bold).Sprint(title))
			fmt.Fprintln(w)
			fmt.Fprintln(w, sum.Text)
			fmt.Fprintln(w)
			fmt.Fprintf(w, "%s %s\n", bold("Topics:"), joinOrDash(sum.KeyTopics))
			fmt.Fprintf(w, "%s %s\n", bold("Schemes:"), joinOrDash(sum.SchemesDiscussed))
			fmt.Fprintf(w, "%s %d\n", bold("Turns:"), sum.TurnCount)
			return nil
		},
	}
}

func joinOrDash(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}
