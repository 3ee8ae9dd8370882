// ABOUTME: Gateway orchestrator coordinating the HTTP server lifecycle
// ABOUTME: Wires the conversation engine, event hub and telemetry publishers

package gateway

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/firstwave/firewatch-gateway/internal/config"
	"github.com/firstwave/firewatch-gateway/internal/hub"
	"github.com/firstwave/firewatch-gateway/internal/orchestrator"
	"github.com/firstwave/firewatch-gateway/internal/tools"
)

// chatService is the slice of the conversation engine the transport needs.
type chatService interface {
	ProcessMessage(ctx context.Context, conversationID, message string) <-chan orchestrator.Event
	Conversations() []string
	ClearConversation(conversationID string) bool
}

// Gateway ties the HTTP transport to the engine, the event hub and the
// telemetry publishers, and owns their combined lifecycle.
type Gateway struct {
	config    *config.Config
	engine    chatService
	hub       *hub.Hub
	telemetry *hub.Telemetry
	toolGW    *tools.Gateway
	logger    *slog.Logger

	httpServer *http.Server
}

// New creates a gateway. telemetry may be nil when periodic publishing is
// disabled.
func New(cfg *config.Config, engine chatService, eventHub *hub.Hub, telemetry *hub.Telemetry, toolGW *tools.Gateway, logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		config:    cfg,
		engine:    engine,
		hub:       eventHub,
		telemetry: telemetry,
		toolGW:    toolGW,
		logger:    logger.With("component", "gateway"),
	}
}

// Run starts the telemetry publishers and the HTTP server, then blocks
// until the context is cancelled or the server fails. Shutdown order
// matters: publishers stop first (and are awaited), then the hub closes so
// event streams drain, then the HTTP server shuts down gracefully.
func (g *Gateway) Run(ctx context.Context) error {
	g.httpServer = &http.Server{
		Addr:    g.config.Server.HTTPAddr,
		Handler: withCORS(g.routes()),
	}

	if g.telemetry != nil {
		g.telemetry.Start()
	}

	errCh := make(chan error, 1)
	go func() {
		if err := g.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	g.logger.Info("http server listening", "addr", g.config.Server.HTTPAddr)

	var serveErr error
	select {
	case <-ctx.Done():
	case serveErr = <-errCh:
		g.logger.Error("http server failed", "error", serveErr)
	}

	if g.telemetry != nil {
		g.telemetry.Stop()
	}
	g.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := g.httpServer.Shutdown(shutdownCtx); err != nil && serveErr == nil {
		serveErr = err
	}

	g.logger.Info("gateway stopped")
	return serveErr
}

func (g *Gateway) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", g.handleInfo)
	mux.HandleFunc("/health", g.handleHealth)
	mux.HandleFunc("/api/chat/message", g.handleChatMessage)
	mux.HandleFunc("/api/chat/conversations", g.handleConversations)
	mux.HandleFunc("/api/chat/conversations/", g.handleClearConversation)
	mux.HandleFunc("/api/events/stream", g.handleEventStream)
	mux.HandleFunc("/api/events/publish", g.handlePublish)
	return mux
}

// withCORS allows the dashboard frontend, served from another origin, to
// reach the API.
func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
