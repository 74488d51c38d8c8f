package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tansive/flowbridge/internal/common/logtrace"
	"github.com/tansive/flowbridge/internal/flowbridge/metrics"
	"github.com/tansive/flowbridge/internal/flowbridge/sandbox"
)

func init() {
	logtrace.InitLogger()
}

type cmdoptions struct {
	configFile string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		log.Error().Err(err).Msg("server failed")
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	slog := log.With().Str("state", "init").Logger()

	opt := parseFlags()

	cfg := sandbox.DefaultConfig()
	if opt.configFile != "" {
		slog.Info().Str("config_file", opt.configFile).Msg("loading config file")
		var err error
		if cfg, err = sandbox.LoadConfig(opt.configFile); err != nil {
			return fmt.Errorf("loading config file: %w", err)
		}
	} else if err := cfg.Validate(); err != nil {
		return fmt.Errorf("default config: %w", err)
	}

	if err := sandbox.Serve(ctx, cfg, metrics.New()); err != nil {
		return err
	}
	slog.Info().Msg("server stopped")
	return nil
}

func parseFlags() cmdoptions {
	var opt cmdoptions
	flag.StringVar(&opt.configFile, "config", "", "Path to the sandbox config file; built-in defaults when empty")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: %s [options]\n\n", os.Args[0])
		fmt.Println("Options:")
		flag.PrintDefaults()
	}
	flag.Parse()
	return opt
}
