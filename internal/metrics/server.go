package metrics

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rally-hq/rally/internal/logging"
)

// Handler returns the HTTP handler serving /metrics from gatherer and a
// plain /healthz liveness check.
func Handler(gatherer prometheus.Gatherer, logger *logging.Logger) http.Handler {
	if logger == nil {
		logger = logging.NopLogger()
	}
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Warn("failed to write health response", "error", err)
		}
	})
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	return mux
}

// Serve listens on addr until ctx is cancelled. An empty addr disables the
// server and Serve returns immediately.
func Serve(ctx context.Context, addr string, gatherer prometheus.Gatherer, logger *logging.Logger) error {
	if addr == "" {
		return nil
	}
	if logger == nil {
		logger = logging.NopLogger()
	}
	logger = logger.WithComponent("metrics")

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}

	server := &http.Server{
		Handler:           Handler(gatherer, logger),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("metrics server shutdown error", "error", err)
		}
	}()

	logger.Info("metrics server started", "addr", ln.Addr().String())
	if err := server.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}
