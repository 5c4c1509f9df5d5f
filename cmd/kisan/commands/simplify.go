package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
)

// NewSimplifyCmd constructs the `kisan simplify` command.
func NewSimplifyCmd() *cobra.Command {
	var mode, language string

	cmd := &cobra.Command{
		Use:   "simplify [text]",
		Short: "Rewrite text in plain language a farmer can follow",
		Long: `Rewrite agricultural or legal text in simple words.

Modes:
  simple  everyday language (default)
  legal   scheme rules and land documents, keeping every condition

Examples:
  kisan simplify "Beneficiaries shall furnish Aadhaar-seeded bank particulars."
  kisan simplify --mode legal --lang hi "$(cat notice.txt)"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logging.New()
			ctx := logging.WithLogger(cmd.Context(), log)

			rt, err := buildRuntime(ctx, log, nil)
			if err != nil {
				return fmt.Errorf("simplify: %w", err)
			}
			defer rt.Close()

			out, err := rt.advisor.Simplify(ctx, strings.Join(args, " "), mode, language)
			if err != nil {
				return fmt.Errorf("simplify: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), out)
			return nil
		},
	}

	cmd.Flags().StringVarP(&mode, "mode", "m", "simple", "simple or legal")
	cmd.Flags().StringVarP(&language, "lang", "l", "", "Output language: en, hi, mr (default: detected)")

	return cmd
}
