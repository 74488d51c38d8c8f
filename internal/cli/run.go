package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/tansive/flowbridge/internal/common/httpclient"
	"github.com/tansive/flowbridge/internal/common/logtrace"
	"github.com/tansive/flowbridge/internal/flowbridge/config"
	"github.com/tansive/flowbridge/internal/flowbridge/surface"
	"github.com/tansive/flowbridge/pkg/api"
	"github.com/tansive/flowbridge/pkg/types"
)

type runOptions struct {
	configPath string
	scriptPath string
	flowURL    string
	wsURL      string
	token      string
	resume     bool
	timeout    time.Duration
}

func newRunCmd() *cobra.Command {
	o := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run -c CONFIG (--script FILE | --url URL | --ws URL) [flags]",
		Short: "Run one embedded flow session",
		Long: `Run one embedded flow session and report its result.
The session validates the configuration, loads the flow surface, waits for it to
become ready and prints exactly one result: success, failure or closed.
Press Ctrl-C to close the session from the host side.

The surface is one of:
  --script FILE  a local JavaScript flow
  --url URL      a JavaScript flow fetched from a flow host
  --ws URL       a flow run by a flow host over a websocket

Examples:
  # Run against a local script
  flowctl run -c flow.yaml --script ./kyc.js

  # Run against the sandbox host, continuing a retained session
  flowctl run -c flow.yaml --ws ws://localhost:8190/ws/kyc --resume --token $TOKEN

  # Print the result as JSON
  flowctl run -c flow.yaml --url http://localhost:8190/flows/kyc.js -j`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSession(cmd, o)
		},
	}
	cmd.Flags().StringVarP(&o.configPath, "config", "c", "", "Path to the integration configuration file")
	cmd.Flags().StringVar(&o.scriptPath, "script", "", "Run a local JavaScript flow")
	cmd.Flags().StringVar(&o.flowURL, "url", "", "Run a JavaScript flow fetched from a flow host")
	cmd.Flags().StringVar(&o.wsURL, "ws", "", "Run a flow hosted behind a websocket")
	cmd.Flags().StringVar(&o.token, "token", "", "Bearer token for the flow host; defaults to the configured access token")
	cmd.Flags().BoolVar(&o.resume, "resume", false, "Continue a retained session; the access token may be omitted")
	cmd.Flags().DurationVar(&o.timeout, "timeout", 0, "How long the flow may take to become ready (default 30s)")
	cmd.MarkFlagRequired("config")
	cmd.MarkFlagsMutuallyExclusive("script", "url", "ws")
	cmd.MarkFlagsOneRequired("script", "url", "ws")
	return cmd
}

func runSession(cmd *cobra.Command, o *runOptions) error {
	cfg, err := config.LoadFile(o.configPath)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	var logOut io.Writer
	var printer *logPrinter
	if jsonOutput {
		logOut = cmd.ErrOrStderr()
	} else {
		printer = newLogPrinter(out)
		logOut = printer
	}

	token := o.token
	if token == "" {
		token = cfg.AccessToken
	}
	flowLogger := logtrace.NewGate(cfg.LogSetting, cfg.Environment, logOut)

	var s api.Surface
	switch {
	case o.scriptPath != "":
		s = surface.Script(surface.File(o.scriptPath), flowLogger)
	case o.flowURL != "":
		client := httpclient.NewClient(httpclient.ClientOptions{Token: token, UserAgent: "flowctl/" + getCLIVersion()})
		s = surface.Script(surface.Remote{URL: o.flowURL, Client: client}, flowLogger)
	default:
		s = &surface.WebSocket{URL: o.wsURL, Token: token, Logger: flowLogger}
	}

	opts := []api.Option{api.WithLogWriter(logOut)}
	if o.resume {
		opts = append(opts, api.WithResumedSession())
	}
	if o.timeout > 0 {
		opts = append(opts, api.WithLoadTimeout(o.timeout))
	}
	if printer != nil {
		opts = append(opts, api.WithLoadingIndicator(printer.loading))
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := api.Embed(ctx, cfg, s, opts...)
	if printer != nil {
		for ev := range h.Lifecycle() {
			printer.lifecycle(ev)
		}
	}
	result, werr := h.Wait(context.WithoutCancel(ctx))
	if werr != nil {
		return werr
	}
	return printResult(out, h.ID(), result)
}

func printResult(out io.Writer, sessionID string, result types.Result) error {
	if jsonOutput {
		ok := 1
		if result.Kind() == types.ResultFailure {
			ok = 0
		}
		printJSON(out, map[string]any{
			"result": ok,
			"value": map[string]any{
				"sessionId": sessionID,
				"outcome":   result,
			},
		})
	} else {
		fmt.Fprintln(out)
		result.Match(
			func() { okLabel.Fprintf(out, "Session %s succeeded\n", sessionID) },
			func(e types.Error) {
				errorLabel.Fprintf(out, "Session %s failed: %s\n", sessionID, e.Detail())
				if name := e.Code.Name(); name != "" {
					fmt.Fprintf(out, "  Code: %s\n", name)
				}
			},
			func() { warnLabel.Fprintf(out, "Session %s closed\n", sessionID) },
		)
	}
	if result.Kind() == types.ResultFailure {
		return ErrAlreadyHandled
	}
	return nil
}

func (p *logPrinter) loading(show bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if show {
		flowbridgeColor.Fprintln(p.out, "  ⏳ loading flow...")
		return
	}
	flowbridgeColor.Fprintln(p.out, "  ✔ loading finished")
}

func (p *logPrinter) lifecycle(ev api.LifecycleEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	flowbridgeColor.Fprintf(p.out, "  [%s] %s -> %s\n", ev.At.Local().Format("15:04:05.000"), ev.From, ev.To)
}
