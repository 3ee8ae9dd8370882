// ABOUTME: Message, tool call and orchestration event types for the engine
// ABOUTME: Defines the vocabulary shared by the model gateway, engine and transport

package orchestrator

import "encoding/json"

// Role identifies the author of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry in a conversation history.
type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that requested tool execution.
	ToolCalls []ToolCall

	// ToolCallID and Name are set on tool messages and correlate the
	// result back to the call that produced it.
	ToolCallID string
	Name       string
}

// ToolCall is a fully assembled tool invocation request from the model.
type ToolCall struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// EventType discriminates orchestration events.
type EventType string

const (
	EventConversationStarted EventType = "conversation_started"
	EventContent             EventType = "content"
	EventToolCall            EventType = "tool_call"
	EventToolResult          EventType = "tool_result"
	EventToolError           EventType = "tool_error"
	EventMissionComplete     EventType = "mission_complete"
	EventComplete            EventType = "complete"
	EventError               EventType = "error"
)

// Event is one step of a ProcessMessage stream. Only the fields relevant
// to the event type are populated.
type Event struct {
	Type           EventType
	ConversationID string

	// Content carries streamed assistant text and the mission-complete
	// acknowledgement.
	Content string

	// ToolName and Args describe a tool_call; Result carries the raw JSON
	// document of a tool_result.
	ToolName string
	Args     map[string]any
	Result   json.RawMessage

	// Error carries tool_error detail and fatal error messages.
	Error string
}
