package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/pumpwatch/pumpwatch/internal/httpapi"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the detection loop and the read-only HTTP API",
		Long: `Starts the periodic detection cycle and serves the accumulated signal
log on /signals, process health on /health and Prometheus metrics on
/metrics until interrupted.`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	app := buildApp(cfg, newNotifier(cfg))

	apiCfg := httpapi.DefaultConfig()
	apiCfg.Addr = cfg.ListenAddr
	srv, err := httpapi.NewServer(apiCfg, httpapi.Deps{
		Signals:  app.log,
		Detector: app.detector,
		Exchange: app.client,
		Universe: app.universe,
		Metrics:  app.metrics.Handler(),
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	go app.detector.Run(ctx)

	serverErr := make(chan error, 1)
	go func() {
		log.Info().
			Str("signals", fmt.Sprintf("http://%s/signals", srv.Addr())).
			Str("health", fmt.Sprintf("http://%s/health", srv.Addr())).
			Str("metrics", fmt.Sprintf("http://%s/metrics", srv.Addr())).
			Msg("endpoints available")

		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	}

	// Stop the detector loop first so no cycle writes during teardown.
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	log.Info().Msg("pumpwatch stopped")
	return nil
}
