package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"
)

// DefaultShutdownGrace is how long in-flight requests get to finish once shutdown starts.
const DefaultShutdownGrace = 10 * time.Second

// Run serves srv until ctx is done or SIGINT/SIGTERM arrives, then drains
// in-flight requests for up to grace. A clean shutdown returns nil.
func Run(ctx context.Context, srv *http.Server, grace time.Duration, logger *slog.Logger) error {
	if grace <= 0 {
		grace = DefaultShutdownGrace
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", slog.String("addr", srv.Addr))
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve %s: %w", srv.Addr, err)
	case <-ctx.Done():
	}

	logger.Info("server draining", slog.Duration("grace", grace))
	shutdownCtx, cancel := context.WithTimeout(context.Background(), grace)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("server stopped")
	return nil
}
