// Package commands defines all Cobra CLI commands for the kisan binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/audit"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/config"
	"github.com/SuyashBhavalkar3/AI-Based-Farmer-Advisory-Chatbot/internal/logging"
)

// configPath holds the --config flag value.
var configPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "kisan",
		Short: "Kisan: grounded crop, scheme and soil advice for farmers",
		Long: `Kisan answers farmers' questions from a curated agricultural knowledge
base, with citations and a confidence score for every answer.

The model provider is selected with MODEL_PROVIDER (ollama, openai, azure,
ark, gemini). Settings can also come from a YAML or TOML config file
(~/.kisan/config.yaml) and a .env file in the working directory; real
environment variables always win.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := config.LoadDotEnv(); err != nil {
				return err
			}
			log := logging.New()

			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}

			audit.LogCommandStart(cmd.Context(), log, cmd.Name(), path)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML or TOML config file (default: ~/.kisan/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewAskCmd(),
		NewSummarizeCmd(),
		NewSimplifyCmd(),
		NewVersionCmd(),
	)

	return root
}
