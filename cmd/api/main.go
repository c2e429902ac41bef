package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/WeDesignz/WebApp-sub000/internal/bootstrap"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/config"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/server"
	"github.com/WeDesignz/WebApp-sub000/internal/shared/telemetry"
)

func main() {
	cfg := config.Load()
	telemetry.Configure(cfg.Env, cfg.LogLevel)

	if err := run(cfg); err != nil {
		telemetry.Error("api.fatal", map[string]any{"error": err.Error()})
		os.Exit(1)
	}
}

func run(cfg config.Config) error {
	app, err := bootstrap.Build(cfg)
	if err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}
	defer app.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", server.Addr(cfg.Port))
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	return serve(ctx, ln, app.Router, cfg.Worker.ShutdownTimeout)
}

// serve runs the HTTP server on ln until ctx ends, then drains in-flight
// requests for up to timeout.
func serve(ctx context.Context, ln net.Listener, h http.Handler, timeout time.Duration) error {
	srv := &http.Server{
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		telemetry.Info("api.started", map[string]any{"addr": ln.Addr().String()})
		errc <- srv.Serve(ln)
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	telemetry.Info("api.shutdown", map[string]any{"timeout": timeout.String()})
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
