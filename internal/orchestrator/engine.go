// ABOUTME: Conversation engine driving the model/tool loop for each message
// ABOUTME: Streams orchestration events, repairs tool arguments, tracks subscriptions

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/firstwave/firewatch-gateway/internal/tools"
)

// missionCompletePhrases short-circuit the model loop when any of them
// appears in the operator's message, case-insensitively.
var missionCompletePhrases = []string{
	"the mission is completed",
	"mission completed",
	"mission complete",
}

// missionCompleteAck is the fixed acknowledgement streamed back on the
// mission-complete path.
const missionCompleteAck = "Mission completed. Resetting dashboard to normal mode and clearing all data."

// Options tunes the conversation engine. Zero values fall back to defaults.
type Options struct {
	DefaultDeviceID   string
	MaxToolIterations int
	ToolErrorTruncate int

	// SystemPrompt overrides the built-in bushfire-response prompt.
	SystemPrompt string
}

// Engine owns per-conversation history and drives the streamed model/tool
// loop. All state is in memory; a restart starts every conversation fresh.
type Engine struct {
	model  ModelGateway
	tools  ToolGateway
	logger *slog.Logger

	defaultDeviceID string
	maxIterations   int
	errorTruncate   int
	systemPrompt    string

	mu            sync.Mutex
	conversations map[string][]Message

	subscriptions *SubscriptionCache
}

// NewEngine builds a conversation engine over the given gateways.
func NewEngine(model ModelGateway, toolGW ToolGateway, opts Options, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultDeviceID == "" {
		opts.DefaultDeviceID = "drone-001"
	}
	if opts.MaxToolIterations <= 0 {
		opts.MaxToolIterations = 5
	}
	if opts.ToolErrorTruncate <= 0 {
		opts.ToolErrorTruncate = 500
	}
	if opts.SystemPrompt == "" {
		opts.SystemPrompt = defaultSystemPrompt
	}
	return &Engine{
		model:           model,
		tools:           toolGW,
		logger:          logger.With("component", "orchestrator"),
		defaultDeviceID: opts.DefaultDeviceID,
		maxIterations:   opts.MaxToolIterations,
		errorTruncate:   opts.ToolErrorTruncate,
		systemPrompt:    opts.SystemPrompt,
		conversations:   make(map[string][]Message),
		subscriptions:   NewSubscriptionCache(),
	}
}

// ProcessMessage handles one operator message and returns a channel of
// orchestration events. The channel is closed after the terminal event.
// Cancelling the context stops the stream; history is only ever committed
// at iteration boundaries, so a cancelled turn never leaves a half-written
// conversation behind.
func (e *Engine) ProcessMessage(ctx context.Context, conversationID, text string) <-chan Event {
	out := make(chan Event, 16)
	go func() {
		defer close(out)
		e.run(ctx, conversationID, text, out)
	}()
	return out
}

// Conversations lists the ids of conversations with history.
func (e *Engine) Conversations() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	ids := make([]string, 0, len(e.conversations))
	for id := range e.conversations {
		ids = append(ids, id)
	}
	return ids
}

// ClearConversation drops a conversation's history and tracked
// subscriptions. Returns false when the conversation is unknown.
func (e *Engine) ClearConversation(conversationID string) bool {
	e.mu.Lock()
	_, ok := e.conversations[conversationID]
	delete(e.conversations, conversationID)
	e.mu.Unlock()

	e.subscriptions.Clear(conversationID)
	return ok
}

func (e *Engine) run(ctx context.Context, conversationID, text string, out chan<- Event) {
	if !emit(ctx, out, Event{Type: EventConversationStarted, ConversationID: conversationID}) {
		return
	}

	if e.isMissionComplete(text) {
		e.logger.Info("mission complete requested", "conversation_id", conversationID)
		if !emit(ctx, out, Event{Type: EventContent, ConversationID: conversationID, Content: missionCompleteAck}) {
			return
		}
		if !emit(ctx, out, Event{Type: EventMissionComplete, ConversationID: conversationID, Content: "Mission completed"}) {
			return
		}
		e.mu.Lock()
		delete(e.conversations, conversationID)
		e.mu.Unlock()
		e.subscriptions.Clear(conversationID)
		emit(ctx, out, Event{Type: EventComplete, ConversationID: conversationID})
		return
	}

	e.appendMessages(conversationID, Message{Role: RoleUser, Content: text})
	specs := e.tools.Specs()

	for iteration := 0; iteration < e.maxIterations; iteration++ {
		assistant, calls, ok := e.streamModelTurn(ctx, conversationID, specs, out)
		if !ok {
			break
		}

		if len(calls) == 0 {
			e.appendMessages(conversationID, assistant)
			break
		}

		batch := []Message{assistant}
		var undos []func()
		keepGoing := true
		for _, call := range calls {
			result, undo, abort := e.executeCall(ctx, conversationID, call, out)
			batch = append(batch, result)
			if undo != nil {
				undos = append(undos, undo)
			}
			if abort {
				keepGoing = false
				break
			}
		}

		if ctx.Err() != nil {
			// The batch is discarded, so cache mutations from this
			// iteration are rolled back with it.
			for i := len(undos) - 1; i >= 0; i-- {
				undos[i]()
			}
			return
		}
		e.appendMessages(conversationID, batch...)
		if !keepGoing {
			break
		}
	}

	emit(ctx, out, Event{Type: EventComplete, ConversationID: conversationID})
}

// streamModelTurn runs one model call, forwarding content deltas and feeding
// tool-call fragments to an assembler. Returns ok=false when the turn ended
// fatally (the error event, if any, has already been emitted).
func (e *Engine) streamModelTurn(ctx context.Context, conversationID string, specs []tools.Spec, out chan<- Event) (Message, []ToolCall, bool) {
	history := e.historySnapshot(conversationID)

	stream, err := e.model.StreamTurn(ctx, history, specs)
	if err != nil {
		e.logger.Error("model turn failed", "conversation_id", conversationID, "error", err)
		emit(ctx, out, Event{Type: EventError, ConversationID: conversationID, Error: err.Error()})
		return Message{}, nil, false
	}
	defer stream.Close()

	asm := NewAssembler()
	var content strings.Builder
	for {
		delta, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			e.logger.Error("model stream failed", "conversation_id", conversationID, "error", err)
			emit(ctx, out, Event{Type: EventError, ConversationID: conversationID, Error: err.Error()})
			return Message{}, nil, false
		}
		if delta.Content != "" {
			content.WriteString(delta.Content)
			if !emit(ctx, out, Event{Type: EventContent, ConversationID: conversationID, Content: delta.Content}) {
				return Message{}, nil, false
			}
		}
		if delta.ToolCall != nil {
			asm.Feed(*delta.ToolCall)
		}
	}

	calls := asm.Finish()
	assistant := Message{Role: RoleAssistant, Content: content.String(), ToolCalls: calls}
	return assistant, calls, true
}

// executeCall runs one assembled tool call and returns the tool message to
// record in history, plus an undo for any subscription-cache mutation so
// the caller can roll it back if the iteration's batch is discarded.
// abort=true means the remaining calls of this turn must be skipped
// (argument parsing failed, so later calls would be operating on a
// corrupted turn).
func (e *Engine) executeCall(ctx context.Context, conversationID string, call ToolCall, out chan<- Event) (Message, func(), bool) {
	args, err := parseToolArguments(call.Arguments)
	if err != nil {
		e.logger.Warn("tool arguments unparseable", "tool", call.Name, "error", err)
		emit(ctx, out, Event{Type: EventToolError, ConversationID: conversationID, ToolName: call.Name, Error: e.truncatedError(call, err)})
		return e.toolErrorMessage(call, err), nil, true
	}

	e.autofillSubscriptionID(conversationID, call.Name, args)

	if !emit(ctx, out, Event{Type: EventToolCall, ConversationID: conversationID, ToolName: call.Name, Args: args}) {
		return Message{}, nil, true
	}

	result, err := e.tools.Invoke(ctx, call.Name, args)
	if err != nil {
		e.logger.Warn("tool failed", "tool", call.Name, "error", err)
		emit(ctx, out, Event{Type: EventToolError, ConversationID: conversationID, ToolName: call.Name, Error: e.truncatedError(call, err)})
		return e.toolErrorMessage(call, err), nil, false
	}

	emit(ctx, out, Event{Type: EventToolResult, ConversationID: conversationID, ToolName: call.Name, Result: result})

	undo := e.trackSubscription(conversationID, call.Name, args, result)

	return Message{
		Role:       RoleTool,
		ToolCallID: call.ID,
		Name:       call.Name,
		Content:    e.sanitizeResult(call.Name, result),
	}, undo, false
}

// truncatedError renders a tool failure with the message capped at the
// configured length, so one giant upstream error never floods the history
// or the event stream.
func (e *Engine) truncatedError(call ToolCall, err error) string {
	msg := fmt.Sprintf("error executing tool %s: %v", call.Name, err)
	if len(msg) > e.errorTruncate {
		msg = msg[:e.errorTruncate]
	}
	return msg
}

// toolErrorMessage builds the structured error document recorded in history
// when a tool call fails.
func (e *Engine) toolErrorMessage(call ToolCall, err error) Message {
	doc, _ := json.Marshal(map[string]any{
		"error":     e.truncatedError(call, err),
		"tool_name": call.Name,
		"status":    "failed",
	})
	return Message{
		Role:       RoleTool,
		ToolCallID: call.ID,
		Name:       call.Name,
		Content:    string(doc),
	}
}

// sanitizeResult guarantees the history entry for a tool result is valid
// JSON even if a gateway misbehaves.
func (e *Engine) sanitizeResult(toolName string, result json.RawMessage) string {
	if json.Valid(result) {
		return string(result)
	}
	e.logger.Warn("tool result is not valid JSON", "tool", toolName)
	doc, _ := json.Marshal(map[string]any{
		"error":     "tool result validation failed: not valid JSON",
		"tool_name": toolName,
	})
	return string(doc)
}

// parseToolArguments decodes a streamed argument string into an object.
// Models occasionally emit a valid JSON object followed by trailing or
// duplicated data; in that case the first complete value is used and the
// rest discarded.
func parseToolArguments(s string) (map[string]any, error) {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}, nil
	}

	var args map[string]any
	if err := json.Unmarshal([]byte(s), &args); err == nil {
		// A literal JSON null decodes without error but leaves the map nil
		if args == nil {
			args = map[string]any{}
		}
		return args, nil
	}

	dec := json.NewDecoder(strings.NewReader(s))
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, fmt.Errorf("parsing tool arguments: %w", err)
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("tool arguments are not a JSON object")
	}
	return m, nil
}

// autofillSubscriptionID completes unsubscribe_* calls that arrive without a
// subscription_id, using the id tracked when the matching subscribe_* call
// succeeded earlier in the conversation.
func (e *Engine) autofillSubscriptionID(conversationID, toolName string, args map[string]any) {
	kind, ok := strings.CutPrefix(toolName, "unsubscribe_")
	if !ok {
		return
	}
	if id, _ := args["subscription_id"].(string); id != "" {
		return
	}
	device := e.deviceFromArgs(args)
	if id, found := e.subscriptions.Lookup(conversationID, device, kind); found {
		args["subscription_id"] = id
		e.logger.Debug("subscription id autofilled", "tool", toolName, "device_id", device)
	}
}

// trackSubscription updates the cache after a successful tool call:
// subscribe_* results carrying both device_id and subscription_id are
// recorded, successful unsubscribe_* calls evict the tracked entry. The
// returned undo restores the previous cache state; it is nil when nothing
// changed. Mutations apply immediately so later calls in the same turn see
// them, and the undo lets the caller keep the cache aligned with history
// when an iteration's batch is discarded.
func (e *Engine) trackSubscription(conversationID, toolName string, args map[string]any, result json.RawMessage) func() {
	if kind, ok := strings.CutPrefix(toolName, "subscribe_"); ok {
		var res struct {
			SubscriptionID string `json:"subscription_id"`
			DeviceID       string `json:"device_id"`
		}
		if err := json.Unmarshal(result, &res); err != nil || res.SubscriptionID == "" || res.DeviceID == "" {
			return nil
		}
		prev, had := e.subscriptions.Lookup(conversationID, res.DeviceID, kind)
		e.subscriptions.Track(conversationID, res.DeviceID, kind, res.SubscriptionID)
		return func() {
			if had {
				e.subscriptions.Track(conversationID, res.DeviceID, kind, prev)
			} else {
				e.subscriptions.Remove(conversationID, res.DeviceID, kind)
			}
		}
	}

	if kind, ok := strings.CutPrefix(toolName, "unsubscribe_"); ok {
		var res map[string]any
		if err := json.Unmarshal(result, &res); err != nil {
			return nil
		}
		if _, failed := res["error"]; failed {
			return nil
		}
		device := e.deviceFromArgs(args)
		prev, had := e.subscriptions.Lookup(conversationID, device, kind)
		if !had {
			return nil
		}
		e.subscriptions.Remove(conversationID, device, kind)
		return func() {
			e.subscriptions.Track(conversationID, device, kind, prev)
		}
	}

	return nil
}

func (e *Engine) deviceFromArgs(args map[string]any) string {
	if id, ok := args["device_id"].(string); ok && id != "" {
		return id
	}
	return e.defaultDeviceID
}

func (e *Engine) isMissionComplete(text string) bool {
	lower := strings.ToLower(text)
	for _, phrase := range missionCompletePhrases {
		if strings.Contains(lower, phrase) {
			return true
		}
	}
	return false
}

// appendMessages commits messages to a conversation, seeding the system
// prompt on first touch.
func (e *Engine) appendMessages(conversationID string, msgs ...Message) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.conversations[conversationID]; !ok {
		e.conversations[conversationID] = []Message{{Role: RoleSystem, Content: e.systemPrompt}}
	}
	e.conversations[conversationID] = append(e.conversations[conversationID], msgs...)
}

func (e *Engine) historySnapshot(conversationID string) []Message {
	e.mu.Lock()
	defer e.mu.Unlock()

	history := e.conversations[conversationID]
	snapshot := make([]Message, len(history))
	copy(snapshot, history)
	return snapshot
}

// emit delivers an event unless the context is cancelled first.
func emit(ctx context.Context, out chan<- Event, ev Event) bool {
	select {
	case out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
