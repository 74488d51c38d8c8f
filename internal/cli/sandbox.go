package cli

import (
	"bytes"
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/tansive/flowbridge/internal/common/httpclient"
	"github.com/tansive/flowbridge/internal/flowbridge/auditlog"
	"github.com/tansive/flowbridge/internal/flowbridge/metrics"
	"github.com/tansive/flowbridge/internal/flowbridge/sandbox"
)

func newSandboxCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sandbox [command]",
		Short: "Run and use a local sandbox flow host",
		Long: `Run and use a local sandbox flow host.
The sandbox serves flow scripts, runs flows over websockets and mints short lived
access tokens for testing integrations end to end.

Available Commands:
  serve  Start the sandbox host
  token  Request an access token from a running sandbox host
  audit  Download and verify the sandbox audit log`,
	}
	cmd.AddCommand(newSandboxServeCmd())
	cmd.AddCommand(newSandboxTokenCmd())
	cmd.AddCommand(newSandboxAuditCmd())
	return cmd
}

func newSandboxServeCmd() *cobra.Command {
	var configPath, port, flowsDir string

	cmd := &cobra.Command{
		Use:   "serve [flags]",
		Short: "Start the sandbox host",
		Long: `Start the sandbox flow host and serve until interrupted.
Without --config the built-in defaults are used with a freshly generated signing key,
so tokens do not survive a restart.

Examples:
  # Serve the built-in flows on the default port
  flowctl sandbox serve

  # Serve flows from a directory on another port
  flowctl sandbox serve --flows-dir ./flows --port 9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := sandbox.DefaultConfig()
			if configPath != "" {
				var err error
				if cfg, err = sandbox.LoadConfig(configPath); err != nil {
					return err
				}
			}
			if port != "" {
				cfg.ServerPort = port
			}
			if flowsDir != "" {
				cfg.FlowsDir = flowsDir
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			okLabel.Fprintf(cmd.OutOrStdout(), "Sandbox listening on %s\n", cfg.URL())
			return sandbox.Serve(ctx, cfg, metrics.New())
		},
	}
	cmd.Flags().StringVar(&configPath, "config", "", "Path to a sandbox TOML configuration file")
	cmd.Flags().StringVar(&port, "port", "", "Port to listen on")
	cmd.Flags().StringVar(&flowsDir, "flows-dir", "", "Directory of *.js flows that override the built-in flows")
	return cmd
}

func newSandboxTokenCmd() *cobra.Command {
	var server, issuer string

	cmd := &cobra.Command{
		Use:   "token --issuer APP_ISSUER [flags]",
		Short: "Request an access token from a running sandbox host",
		Long: `Request a sandbox access token for an app issuer.
The token authenticates flow script downloads, websocket flows and server side sessions.

Examples:
  # Request a token and export it
  export TOKEN=$(flowctl sandbox token --issuer acme)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			url, err := httpclient.ResolveURL(server, "/tokens")
			if err != nil {
				return err
			}
			client := httpclient.NewClient(httpclient.ClientOptions{Timeout: 10 * time.Second, UserAgent: "flowctl/" + getCLIVersion()})
			body, err := client.Post(cmd.Context(), url, map[string]string{"appIssuer": issuer})
			if err != nil {
				return err
			}

			if jsonOutput {
				fmt.Fprintln(cmd.OutOrStdout(), gjson.GetBytes(body, "@pretty").String())
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), gjson.GetBytes(body, "accessToken").String())
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8190", "Sandbox host URL")
	cmd.Flags().StringVar(&issuer, "issuer", "", "App issuer the token is minted for")
	cmd.MarkFlagRequired("issuer")
	return cmd
}

func newSandboxAuditCmd() *cobra.Command {
	var server, token, output string

	cmd := &cobra.Command{
		Use:   "audit --token TOKEN [flags]",
		Short: "Download and verify the sandbox audit log",
		Long: `Download the signed audit log of server side sessions from a sandbox host and
verify its hash chain and signatures against the host's public key.

Examples:
  # Verify the log and keep a copy
  flowctl sandbox audit --token $TOKEN -o sandbox.ztlog`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := httpclient.NewClient(httpclient.ClientOptions{Token: token, Timeout: 30 * time.Second, UserAgent: "flowctl/" + getCLIVersion()})

			keyURL, err := httpclient.ResolveURL(server, "/audit/key")
			if err != nil {
				return err
			}
			keyRsp, err := client.Get(cmd.Context(), keyURL)
			if err != nil {
				return err
			}
			pub, err := base64.StdEncoding.DecodeString(gjson.GetBytes(keyRsp, "publicKey").String())
			if err != nil {
				return fmt.Errorf("invalid public key from server: %w", err)
			}

			logURL, err := httpclient.ResolveURL(server, "/audit/log")
			if err != nil {
				return err
			}
			data, err := client.Get(cmd.Context(), logURL)
			if err != nil {
				return err
			}

			n, verr := auditlog.Verify(bytes.NewReader(data), ed25519.PublicKey(pub))
			if output != "" {
				if err := os.WriteFile(output, data, 0o600); err != nil {
					return fmt.Errorf("writing audit log: %w", err)
				}
			}
			if jsonOutput {
				kv := map[string]any{"result": 1, "entries": n}
				if verr != nil {
					kv["result"] = 0
					kv["error"] = verr.Error()
				}
				printJSON(cmd.OutOrStdout(), kv)
			} else if verr != nil {
				errorLabel.Fprintf(cmd.OutOrStdout(), "Audit log verification failed after %d entries: %v\n", n, verr)
			} else {
				okLabel.Fprintf(cmd.OutOrStdout(), "Audit log verified: %d entries\n", n)
			}
			if verr != nil {
				return ErrAlreadyHandled
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&server, "server", "http://localhost:8190", "Sandbox host URL")
	cmd.Flags().StringVar(&token, "token", "", "Sandbox access token")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write the downloaded log to this file")
	cmd.MarkFlagRequired("token")
	return cmd
}
