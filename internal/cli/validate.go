package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tansive/flowbridge/internal/flowbridge/config"
	"github.com/tansive/flowbridge/internal/flowbridge/taxonomy"
)

func newValidateCmd() *cobra.Command {
	var configPath string
	var resumed bool

	cmd := &cobra.Command{
		Use:   "validate -c CONFIG [flags]",
		Short: "Validate an integration configuration file",
		Long: `Validate an integration configuration file without starting a session.
The file may be YAML, JSON or TOML. {{.VAR}} placeholders are filled from the
environment and from a .env file next to the configuration.

Examples:
  # Validate a configuration
  flowctl validate -c flow.yaml

  # Validate a configuration for a resumed session, where no access token is needed
  flowctl validate -c flow.yaml --resume`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFile(configPath)
			if err != nil {
				return err
			}
			cfg, err = config.Validate(cfg, resumed)
			if err != nil {
				e := taxonomy.Classify(err, taxonomy.PhaseLoading)
				if jsonOutput {
					printJSON(cmd.OutOrStdout(), map[string]any{"result": 0, "error": e})
				} else {
					errorLabel.Fprintf(cmd.OutOrStdout(), "%s\n", e.Detail())
				}
				return ErrAlreadyHandled
			}

			if jsonOutput {
				printJSON(cmd.OutOrStdout(), map[string]any{"result": 1, "value": cfg})
				return nil
			}
			okLabel.Fprintf(cmd.OutOrStdout(), "Configuration is valid\n")
			fmt.Fprintf(cmd.OutOrStdout(), "  Environment: %s\n", cfg.Environment)
			fmt.Fprintf(cmd.OutOrStdout(), "  App issuer:  %s\n", cfg.AppIssuer)
			fmt.Fprintf(cmd.OutOrStdout(), "  Flow:        %s\n", flowName(cfg.Flow.String()))
			fmt.Fprintf(cmd.OutOrStdout(), "  Theme:       %s\n", cfg.Theme)
			fmt.Fprintf(cmd.OutOrStdout(), "  Language:    %s\n", cfg.Language)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to the integration configuration file")
	cmd.Flags().BoolVar(&resumed, "resume", false, "Validate for a resumed session")
	cmd.MarkFlagRequired("config")
	return cmd
}

func flowName(flow string) string {
	if flow == "" {
		return "(default)"
	}
	return flow
}
