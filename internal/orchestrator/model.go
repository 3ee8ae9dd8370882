// ABOUTME: Gateway interfaces to the model backend and the tool registry
// ABOUTME: Streaming turn delta contract consumed by the conversation engine

package orchestrator

import (
	"context"
	"encoding/json"

	"github.com/firstwave/firewatch-gateway/internal/tools"
)

// TurnDelta is one streamed fragment of a model turn: a piece of assistant
// text, a piece of a tool call, or both absent (ignored).
type TurnDelta struct {
	Content  string
	ToolCall *ToolCallDelta
}

// ToolCallDelta is a fragment of a streamed tool call. Fragments sharing an
// index belong to the same call; Name and Arguments accumulate across
// fragments.
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// ModelStream yields turn deltas until io.EOF. Any other error is terminal.
type ModelStream interface {
	Recv() (TurnDelta, error)
	Close() error
}

// ModelGateway opens one streamed model turn over the conversation history.
type ModelGateway interface {
	StreamTurn(ctx context.Context, history []Message, specs []tools.Spec) (ModelStream, error)
}

// ToolGateway advertises and executes tools on behalf of the engine.
type ToolGateway interface {
	Specs() []tools.Spec
	Invoke(ctx context.Context, name string, args map[string]any) (json.RawMessage, error)
}
