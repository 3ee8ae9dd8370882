// ABOUTME: HTTP handlers for chat, event streaming and publishing
// ABOUTME: Serializes engine events and hub envelopes into SSE frames

package gateway

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/firstwave/firewatch-gateway/internal/hub"
	"github.com/firstwave/firewatch-gateway/internal/orchestrator"
)

type chatRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// handleChatMessage accepts one operator message and streams the engine's
// orchestration events back as SSE.
func (g *Gateway) handleChatMessage(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		g.sendJSONError(w, http.StatusBadRequest, "message is required")
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.New().String()
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	setSSEHeaders(w)

	g.logger.Info("chat message received", "conversation_id", conversationID)

	for ev := range g.engine.ProcessMessage(r.Context(), conversationID, req.Message) {
		name, data := encodeChatEvent(ev)
		g.writeSSEEvent(w, name, data)
		flusher.Flush()
	}
}

// encodeChatEvent maps an orchestration event to its SSE frame.
func encodeChatEvent(ev orchestrator.Event) (string, any) {
	switch ev.Type {
	case orchestrator.EventConversationStarted:
		return "message_start", map[string]any{"conversation_id": ev.ConversationID}
	case orchestrator.EventContent:
		return "content_delta", map[string]any{"content": ev.Content}
	case orchestrator.EventToolCall:
		return "tool_call", map[string]any{"tool": ev.ToolName, "arguments": ev.Args}
	case orchestrator.EventToolResult:
		return "tool_result", map[string]any{"tool": ev.ToolName, "result": ev.Result}
	case orchestrator.EventToolError:
		return "tool_error", map[string]any{"tool": ev.ToolName, "error": ev.Error}
	case orchestrator.EventMissionComplete:
		return "mission_complete", map[string]any{"message": ev.Content, "conversation_id": ev.ConversationID}
	case orchestrator.EventComplete:
		return "message_complete", map[string]any{"status": "complete"}
	case orchestrator.EventError:
		return "error", map[string]any{"error": ev.Error}
	default:
		return string(ev.Type), map[string]any{}
	}
}

// handleEventStream subscribes the client to the dashboard event hub and
// streams events as SSE until the client disconnects.
func (g *Gateway) handleEventStream(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		g.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}
	setSSEHeaders(w)

	events, subscriberID := g.hub.Subscribe()
	defer g.hub.Unsubscribe(subscriberID)

	g.writeSSEEvent(w, "connected", map[string]string{"message": "Event stream connected"})
	flusher.Flush()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case env, ok := <-events:
			if !ok {
				return
			}
			if env.Heartbeat {
				fmt.Fprint(w, ": heartbeat\n\n")
				flusher.Flush()
				continue
			}
			name, _ := env.Event["event_type"].(string)
			if name == "" {
				name = "message"
			}
			g.writeSSEEvent(w, name, env.Event)
			flusher.Flush()
		}
	}
}

// handlePublish lets external producers push one event into the hub.
func (g *Gateway) handlePublish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var event map[string]any
	if err := json.NewDecoder(r.Body).Decode(&event); err != nil {
		g.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	eventType, _ := event["event_type"].(string)
	if eventType == "" {
		g.sendJSONError(w, http.StatusBadRequest, "event_type is required")
		return
	}

	delivered := g.hub.Publish(hub.Event(event))
	g.logger.Debug("event published", "event_type", eventType, "delivered", delivered)

	g.sendJSON(w, http.StatusOK, map[string]any{
		"status":           "published",
		"event_type":       eventType,
		"clients_notified": delivered,
	})
}

// handleConversations lists the conversations with history.
func (g *Gateway) handleConversations(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	ids := g.engine.Conversations()
	if ids == nil {
		ids = []string{}
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"conversations": ids})
}

// handleClearConversation deletes one conversation's history.
func (g *Gateway) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodDelete {
		g.sendJSONError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	id := strings.TrimPrefix(r.URL.Path, "/api/chat/conversations/")
	if id == "" || strings.Contains(id, "/") {
		g.sendJSONError(w, http.StatusBadRequest, "conversation id is required")
		return
	}
	if !g.engine.ClearConversation(id) {
		g.sendJSONError(w, http.StatusNotFound, "conversation not found")
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{"status": "cleared", "conversation_id": id})
}

// handleInfo serves the service info document at the root path.
func (g *Gateway) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		g.sendJSONError(w, http.StatusNotFound, "not found")
		return
	}
	g.sendJSON(w, http.StatusOK, map[string]any{
		"service": "firewatch-gateway",
		"endpoints": map[string]string{
			"chat":          "POST /api/chat/message",
			"conversations": "GET /api/chat/conversations",
			"events":        "GET /api/events/stream",
			"publish":       "POST /api/events/publish",
			"health":        "GET /health",
		},
	})
}

// handleHealth reports liveness plus the configured model endpoint and the
// registered tool count.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	g.sendJSON(w, http.StatusOK, map[string]any{
		"status":       "healthy",
		"llm_endpoint": g.config.LLM.BaseURL,
		"tools":        len(g.toolGW.Specs()),
		"subscribers":  g.hub.SubscriberCount(),
	})
}

func setSSEHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
}

// writeSSEEvent writes one event:/data: frame. Marshal failures degrade to
// an error frame rather than corrupting the stream.
func (g *Gateway) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		g.logger.Error("failed to marshal SSE payload", "event", event, "error", err)
		fmt.Fprint(w, "event: error\ndata: {\"error\":\"internal serialization failure\"}\n\n")
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, payload)
}

func (g *Gateway) sendJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		g.logger.Error("failed to encode response", "error", err)
	}
}

func (g *Gateway) sendJSONError(w http.ResponseWriter, status int, message string) {
	g.sendJSON(w, status, map[string]string{"error": message})
}
