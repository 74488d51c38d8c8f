package sandbox

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/tansive/flowbridge/internal/flowbridge/metrics"
)

const shutdownGrace = 5 * time.Second

// Serve runs the sandbox host until ctx is canceled or the listener fails.
func Serve(ctx context.Context, cfg Config, m *metrics.Metrics) error {
	slog := log.With().Str("state", "init").Logger()

	s, err := NewServer(cfg, m)
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer s.Close()
	s.MountHandlers()

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           s.Router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		slog.Info().Str("port", cfg.ServerPort).Str("url", cfg.URL()).Msg("sandbox started")
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
	}

	// Give outstanding requests a moment to complete.
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error().Err(err).Msg("could not stop server gracefully")
		if err := srv.Close(); err != nil {
			slog.Error().Err(err).Msg("could not stop server")
		}
	}
	slog.Info().Msg("sandbox stopped")
	return nil
}
