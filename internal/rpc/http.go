package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// Handler returns the mux serving JSON-RPC on / and /rpc, websockets on
// /ws, a liveness check on /health and Prometheus metrics on metricsPath
// when it is set.
func Handler(s *Server, ws *WebSocketServer, metricsPath string) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s)
	mux.Handle("/rpc", s)
	if ws != nil {
		mux.Handle("/ws", ws)
	}
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"service": "presaled",
		})
	})
	if s.metrics != nil && metricsPath != "" {
		mux.Handle(metricsPath, s.metrics.Handler())
	}
	return mux
}

// ListenAndServe serves handler on addr until ctx is cancelled, then shuts
// down gracefully.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("rpc server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	logger.Info("rpc server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return nil
}
