// Package server exposes the stored stock data over a read-only HTTP API.
// All writes go through the pipeline; there are no write endpoints.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

type Server struct {
	srv *http.Server
}

// New creates a server. The baseCtx is used as the base context for all
// incoming requests; cancelling it winds down in-flight queries during
// graceful shutdown.
func New(baseCtx context.Context, port string, store StockStore) *Server {
	return &Server{
		srv: &http.Server{
			Addr:    fmt.Sprintf(":%s", port),
			Handler: NewHandler(store),
			BaseContext: func(_ net.Listener) context.Context {
				return baseCtx
			},
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  120 * time.Second,
		},
	}
}

// NewHandler creates the full HTTP handler with routes and middleware.
// Exported for use in tests (e.g., httptest.NewServer).
func NewHandler(store StockStore) http.Handler {
	h := &handler{store: store}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", h.health)
	mux.HandleFunc("GET /api/v1/stocks", h.getByDateRange)
	mux.HandleFunc("GET /api/v1/stocks/{symbol}", h.getBySymbol)
	mux.HandleFunc("GET /api/v1/stats", h.getStats)

	var handler http.Handler = mux
	handler = logging(handler)
	handler = recovery(handler)
	return handler
}

func (s *Server) Start() error {
	slog.Info("starting server", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down server")
	return s.srv.Shutdown(ctx)
}
