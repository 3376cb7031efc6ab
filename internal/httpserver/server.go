// Package httpserver wires the gateway's HTTP surface (spec.md §6):
// request routing, health and metrics endpoints, logging middleware, a
// per-request timeout, and graceful shutdown.
//
// Grounded on cmd/api/main.go: gorilla/mux router, a health endpoint
// checked against a real collaborator, middleware chained via
// router.Use, and SIGTERM-triggered graceful shutdown with a bounded
// drain window.
package httpserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/novelang/gateway/internal/gateway"
)

// Server bundles the gateway's HTTP listener.
type Server struct {
	httpServer *http.Server
	addr       string
}

// New builds a Server that routes spec.md §6's three core endpoints plus
// /health and /metrics through gw, with a timeout of requestTimeout
// applied to every request context.
func New(addr string, gw *gateway.Gateway, requestTimeout time.Duration) *Server {
	router := mux.NewRouter()

	router.HandleFunc("/health", healthHandler).Methods(http.MethodGet)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	router.HandleFunc("/register_protocol_for_agent", gw.RegisterProtocolHandler()).Methods(http.MethodPost)
	router.HandleFunc("/report", gw.SubmitReportHandler()).Methods(http.MethodPost)
	router.HandleFunc("/send", gw.SendMessageHandler()).Methods(http.MethodPost)

	router.HandleFunc("/webhooks", gw.ListWebhooksHandler()).Methods(http.MethodGet)
	router.HandleFunc("/webhooks", gw.RegisterWebhookHandler()).Methods(http.MethodPost)
	router.HandleFunc("/webhooks/{webhookId}", gw.DeleteWebhookHandler()).Methods(http.MethodDelete)

	router.Use(loggingMiddleware)
	router.Use(recoveryMiddleware)
	router.Use(timeoutMiddleware(requestTimeout))

	return &Server{
		addr: addr,
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      router,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"ok":      true,
		"message": "novelang gateway is healthy",
	})
}

// loggingMiddleware logs method, path, status, and duration as structured
// fields, mirroring the teacher's Cloud-Run-compatible JSON access log
// but via log/slog instead of log.Printf.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)
		slog.Info("http_request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

// recoveryMiddleware traps a panicking handler and responds 500 rather
// than crashing the process. A panic inside Registry.WithAgent's locked
// closure releases the agent's lock through its deferred Unlock. Nothing
// is rolled back: state mutations and audit events made before the panic
// stay in place, and the panic is logged here but not written to the
// audit log.
func recoveryMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				slog.Error("handler panic", "path", r.URL.Path, "recovered", rec)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				json.NewEncoder(w).Encode(map[string]interface{}{
					"ok": false, "reason": "internal_error", "detail": "unexpected server error",
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// timeoutMiddleware attaches a deadline to the request context, per
// spec.md §5's soft per-request deadline (default 5s).
func timeoutMiddleware(d time.Duration) mux.MiddlewareFunc {
	if d <= 0 {
		d = 5 * time.Second
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// ListenAndServe starts serving and blocks until the server stops.
func (s *Server) ListenAndServe() error {
	slog.Info("gateway listening", "addr", s.addr)
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully drains in-flight requests within the given context.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
