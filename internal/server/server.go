// Package server provides HTTP server initialization and lifecycle management
// for the Coref API.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"time"

	"github.com/tessary/coref/internal/config"
	"github.com/tessary/coref/internal/llm"
	"github.com/tessary/coref/internal/session"
	"github.com/tessary/coref/web/handlers"
)

// securityHeadersMiddleware adds security headers to all HTTP responses.
func securityHeadersMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

// Start initializes and starts the HTTP server.
// Returns the actual address being listened on (useful for testing with port 0)
// and the WebSocketHub so callers can broadcast their own events.
// The generator parameter is optional (may be nil); without it, POST /api/chat
// responds 503.
func Start(ctx context.Context, cfg *config.Config, sessions *session.Manager, generator llm.TextGenerator) (string, *handlers.WebSocketHub, error) {
	mux := http.NewServeMux()

	wsHub := handlers.NewWebSocketHub(cfg.Security.AllowedOrigins)
	go wsHub.Run()

	rateLimiter := handlers.NewRateLimiter(cfg.Limits.RequestsPerSec, cfg.Limits.Burst)

	apiHandlers := handlers.NewAPIHandlers(sessions, generator, wsHub)

	// API routes (require auth in production mode)
	apiMux := http.NewServeMux()
	apiMux.HandleFunc("POST /api/turn", apiHandlers.ProcessTurn)
	apiMux.HandleFunc("POST /api/resolve", apiHandlers.Resolve)
	apiMux.HandleFunc("GET /api/context/{id}", apiHandlers.GetContext)
	apiMux.HandleFunc("DELETE /api/session/{id}", apiHandlers.DeleteSession)
	apiMux.HandleFunc("POST /api/chat", apiHandlers.Chat)

	mux.Handle("/api/", handlers.RequireAuth(apiMux, cfg))

	// Health endpoint — no auth required, used by monitoring
	mux.HandleFunc("GET /healthz", apiHandlers.Health)

	// WebSocket endpoint — no bearer token, but the hub rejects upgrade
	// requests whose Origin is not on the configured allowlist
	mux.Handle("GET /ws", wsHub)

	// Wrap entire server with rate limiting, then security headers
	handler := handlers.RateLimitMiddleware(mux, rateLimiter)
	handler = securityHeadersMiddleware(handler)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		wsHub.Stop()
		return "", nil, fmt.Errorf("server: failed to listen on %s: %w", addr, err)
	}

	actualAddr := listener.Addr().String()

	go func() {
		if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
			log.Printf("server: serve error: %v", err)
		}
	}()

	// Handle graceful shutdown
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			log.Printf("server: shutdown error: %v", err)
		}
		wsHub.Stop()
	}()

	return actualAddr, wsHub, nil
}
