package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/adfharrison1/go-users/pkg/config"
	"github.com/adfharrison1/go-users/pkg/domain"
	"github.com/adfharrison1/go-users/pkg/logging"
	"github.com/adfharrison1/go-users/pkg/server"
	"github.com/adfharrison1/go-users/pkg/storage"
	"github.com/adfharrison1/go-users/pkg/telemetry"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	app := &cli.App{
		Name:    "go-users",
		Usage:   "HTTP service storing and serving user records",
		Version: Version,
		Description: "Connection settings come from the environment (MONGODB_URI, GO_USERS_*),\n" +
			"optionally seeded from an .env file. MONGODB_URI may also be file:///path/users.godb\n" +
			"to run against the embedded snapshot store.",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "env-file",
				Aliases: []string{"e"},
				Usage:   "Load variables from this .env file if it exists",
				Value:   ".env",
			},
			&cli.StringFlag{
				Name:  "addr",
				Usage: "Listen address (overrides GO_USERS_ADDR)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "trace, debug, info, warn or error (overrides GO_USERS_LOG_LEVEL)",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Error().Err(err).Msg("go-users exited with error")
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	cfg, err := config.Load(c.String("env-file"))
	if err != nil {
		return err
	}
	if addr := c.String("addr"); addr != "" {
		cfg.Addr = addr
	}
	if level := c.String("log-level"); level != "" {
		cfg.LogLevel = level
	}

	logging.Init(cfg.LogLevel, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, server.ServiceName, cfg.OTelEndpoint)
	if err != nil {
		return fmt.Errorf("setup tracing: %w", err)
	}

	driver, err := storage.Open(ctx, cfg.MongoURI, server.ServiceName)
	if err != nil {
		_ = shutdownTracing(context.Background())
		return err
	}

	srv := server.NewServer(storage.NewStore[domain.User](driver), driver, cfg)
	httpServer := srv.HTTPServer(cfg.Addr)

	serveErr := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Addr).Str("database", cfg.Database).Msg("starting go-users server")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	var errs []error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutting down server")
	case err := <-serveErr:
		if err != nil {
			errs = append(errs, fmt.Errorf("serve: %w", err))
		}
	}

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := driver.Close(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("close storage: %w", err))
	}
	if err := shutdownTracing(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("flush traces: %w", err))
	}
	if len(errs) == 0 {
		log.Info().Msg("server exited")
	}
	return errors.Join(errs...)
}
