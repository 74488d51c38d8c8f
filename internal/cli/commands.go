package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/tansive/flowbridge/internal/flowbridge/bridge"
	"github.com/tansive/flowbridge/internal/flowbridge/sandbox"
)

var (
	// Global flags
	jsonOutput bool
)

var ErrAlreadyHandled = errors.New("already handled")

var okLabel = color.New(color.FgGreen)
var warnLabel = color.New(color.FgYellow)
var errorLabel = color.New(color.FgRed)

// newRootCmd builds the flowctl command tree.
func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "flowctl [command] [flags]",
		Short: "flowctl - run and inspect embedded financial flows",
		Long: `flowctl runs embedded financial flow sessions from the command line.
It validates integration configurations, drives a session against a local script,
a hosted script or a websocket flow host, and runs a local sandbox flow host.

Examples:
  # Validate a configuration file
  flowctl validate -c flow.yaml

  # Run a session against a local flow script
  flowctl run -c flow.yaml --script ./kyc.js

  # Run a session against a sandbox host
  flowctl sandbox serve &
  flowctl run -c flow.yaml --ws ws://localhost:8190/ws/kyc`,
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newSandboxCmd())
	return rootCmd
}

// Execute runs flowctl with the process arguments. This is called by main.main().
func Execute() {
	rootCmd := newRootCmd()
	rootCmd.SilenceErrors = true // Prevent Cobra from printing the error
	rootCmd.SilenceUsage = true  // Prevent Cobra from printing usage on error

	err := rootCmd.Execute()
	if err != nil {
		if errors.Is(err, ErrAlreadyHandled) {
			os.Exit(1)
		}
		if jsonOutput {
			kv := map[string]string{
				"error": err.Error(),
			}
			printJSON(os.Stdout, kv)
		} else {
			errorLabel.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

// newVersionCmd creates and returns a new version command
func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of flowctl",
		Run: func(cmd *cobra.Command, args []string) {
			if jsonOutput {
				kv := map[string]string{
					"version":          getCLIVersion(),
					"protocol_version": bridge.ProtocolVersion,
					"sandbox_version":  sandbox.Version,
				}
				printJSON(cmd.OutOrStdout(), kv)
			} else {
				cmd.Printf("flowctl %s\n", getCLIVersion())
				cmd.Printf("Bridge protocol: %s\n", bridge.ProtocolVersion)
			}
		},
	}
}

// printJSON writes data as indented JSON
func printJSON(w io.Writer, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Fprintln(w, string(jsonData))
}

// getCLIVersion returns the current CLI version
func getCLIVersion() string {
	return "v0.1.0"
}
