// ABOUTME: Tests for the conversation engine's model/tool loop
// ABOUTME: Uses a scripted model stream and a stub tool gateway

package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/firstwave/firewatch-gateway/internal/tools"
)

// scriptedModel plays back pre-scripted turns and records the history it
// was handed for each.
type scriptedModel struct {
	turns     []scriptedTurn
	calls     int
	histories [][]Message
}

type scriptedTurn struct {
	deltas  []TurnDelta
	err     error // terminal stream error after the deltas
	openErr error // StreamTurn fails outright
}

func (m *scriptedModel) StreamTurn(ctx context.Context, history []Message, specs []tools.Spec) (ModelStream, error) {
	m.histories = append(m.histories, history)
	if m.calls >= len(m.turns) {
		return nil, errors.New("unexpected model turn")
	}
	turn := m.turns[m.calls]
	m.calls++
	if turn.openErr != nil {
		return nil, turn.openErr
	}
	return &scriptedStream{deltas: turn.deltas, err: turn.err}, nil
}

type scriptedStream struct {
	deltas []TurnDelta
	pos    int
	err    error
}

func (s *scriptedStream) Recv() (TurnDelta, error) {
	if s.pos < len(s.deltas) {
		d := s.deltas[s.pos]
		s.pos++
		return d, nil
	}
	if s.err != nil {
		return TurnDelta{}, s.err
	}
	return TurnDelta{}, io.EOF
}

func (s *scriptedStream) Close() error { return nil }

// stubTools records invocations and returns canned results or errors per
// tool name. rawResults takes precedence over results and is returned
// verbatim; onInvoke, when set, runs on every call.
type stubTools struct {
	results     map[string]map[string]any
	rawResults  map[string]json.RawMessage
	errs        map[string]error
	onInvoke    func()
	invocations []invocation
}

type invocation struct {
	name string
	args map[string]any
}

func (s *stubTools) Specs() []tools.Spec { return nil }

func (s *stubTools) Invoke(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	copied := make(map[string]any, len(args))
	for k, v := range args {
		copied[k] = v
	}
	s.invocations = append(s.invocations, invocation{name: name, args: copied})

	if s.onInvoke != nil {
		s.onInvoke()
	}
	if err := s.errs[name]; err != nil {
		return nil, err
	}
	if raw, ok := s.rawResults[name]; ok {
		return raw, nil
	}
	raw, err := json.Marshal(s.results[name])
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func collect(ch <-chan Event) []Event {
	var events []Event
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func eventTypes(events []Event) []EventType {
	types := make([]EventType, len(events))
	for i, ev := range events {
		types[i] = ev.Type
	}
	return types
}

func toolCallDelta(index int, id, name, args string) TurnDelta {
	return TurnDelta{ToolCall: &ToolCallDelta{Index: index, ID: id, Name: name, Arguments: args}}
}

func TestMissionCompleteShortCircuit(t *testing.T) {
	model := &scriptedModel{}
	engine := NewEngine(model, &stubTools{}, Options{}, nil)
	engine.subscriptions.Track("conv-1", "drone-001", "geofencing", "sub-1")

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Great work team, the Mission is Completed!"))

	assert.Equal(t, []EventType{
		EventConversationStarted,
		EventContent,
		EventMissionComplete,
		EventComplete,
	}, eventTypes(events))
	assert.Equal(t, missionCompleteAck, events[1].Content)

	// No model call was made and all conversation state is gone
	assert.Zero(t, model.calls)
	assert.Empty(t, engine.Conversations())
	_, ok := engine.subscriptions.Lookup("conv-1", "drone-001", "geofencing")
	assert.False(t, ok)
}

func TestPlainTextResponse(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{{Content: "All "}, {Content: "clear."}}},
	}}
	engine := NewEngine(model, &stubTools{}, Options{}, nil)

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Status report"))

	assert.Equal(t, []EventType{
		EventConversationStarted,
		EventContent,
		EventContent,
		EventComplete,
	}, eventTypes(events))
	assert.Equal(t, "All ", events[1].Content)
	assert.Equal(t, "clear.", events[2].Content)

	history := engine.historySnapshot("conv-1")
	require.Len(t, history, 3)
	assert.Equal(t, RoleSystem, history[0].Role)
	assert.Equal(t, RoleUser, history[1].Role)
	assert.Equal(t, RoleAssistant, history[2].Role)
	assert.Equal(t, "All clear.", history[2].Content)
}

func TestToolCallFlowTracksSubscription(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "subscribe_geofencing", `{"latitude":-37.8259,`),
			toolCallDelta(0, "", "", `"longitude":145.3569,"radius":200}`),
		}},
		{deltas: []TurnDelta{{Content: "Geofencing subscription created"}}},
	}}
	stub := &stubTools{results: map[string]map[string]any{
		"subscribe_geofencing": {"subscription_id": "sub-1", "device_id": "drone-001", "status": "active"},
	}}
	engine := NewEngine(model, stub, Options{}, nil)

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Create a geofence"))

	assert.Equal(t, []EventType{
		EventConversationStarted,
		EventToolCall,
		EventToolResult,
		EventContent,
		EventComplete,
	}, eventTypes(events))
	assert.Equal(t, "subscribe_geofencing", events[1].ToolName)
	assert.Equal(t, float64(200), events[1].Args["radius"])

	// Result was tracked in the subscription cache
	id, ok := engine.subscriptions.Lookup("conv-1", "drone-001", "geofencing")
	assert.True(t, ok)
	assert.Equal(t, "sub-1", id)

	// The second model turn saw the assistant call and the tool result
	require.Len(t, model.histories, 2)
	second := model.histories[1]
	require.Len(t, second, 4)
	assert.Equal(t, RoleAssistant, second[2].Role)
	require.Len(t, second[2].ToolCalls, 1)
	assert.Equal(t, RoleTool, second[3].Role)
	assert.Equal(t, "call-1", second[3].ToolCallID)
	assert.Contains(t, second[3].Content, "sub-1")
}

func TestUnsubscribeAutofillsAndEvicts(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "unsubscribe_geofencing", `{}`),
		}},
		{deltas: []TurnDelta{{Content: "Subscription cancelled"}}},
	}}
	stub := &stubTools{results: map[string]map[string]any{
		"unsubscribe_geofencing": {"subscription_id": "sub-1", "status": "cancelled"},
	}}
	engine := NewEngine(model, stub, Options{}, nil)
	engine.subscriptions.Track("conv-1", "drone-001", "geofencing", "sub-1")

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Cancel the geofencing subscription"))

	require.Len(t, stub.invocations, 1)
	assert.Equal(t, "sub-1", stub.invocations[0].args["subscription_id"])

	_, ok := engine.subscriptions.Lookup("conv-1", "drone-001", "geofencing")
	assert.False(t, ok)
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
}

func TestNullArgumentsTreatedAsEmptyObject(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "unsubscribe_geofencing", `null`),
		}},
		{deltas: []TurnDelta{{Content: "Subscription cancelled"}}},
	}}
	stub := &stubTools{results: map[string]map[string]any{
		"unsubscribe_geofencing": {"subscription_id": "sub-1", "status": "cancelled"},
	}}
	engine := NewEngine(model, stub, Options{}, nil)
	engine.subscriptions.Track("conv-1", "drone-001", "geofencing", "sub-1")

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Cancel the geofencing subscription"))

	// A literal null argument payload behaves like {}, so the autofill
	// still supplies the tracked subscription id
	require.Len(t, stub.invocations, 1)
	assert.Equal(t, "sub-1", stub.invocations[0].args["subscription_id"])
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
}

func TestToolResultRecordedByteForByte(t *testing.T) {
	raw := `{"z": 1, "a": {"nested": [1, 2, 3]}}`
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "get_qos_profiles", `{}`),
		}},
		{deltas: []TurnDelta{{Content: "Done"}}},
	}}
	stub := &stubTools{rawResults: map[string]json.RawMessage{
		"get_qos_profiles": json.RawMessage(raw),
	}}
	engine := NewEngine(model, stub, Options{}, nil)

	collect(engine.ProcessMessage(context.Background(), "conv-1", "List QoS profiles"))

	// The gateway's bytes land in history untouched: key order and
	// whitespace included
	history := engine.historySnapshot("conv-1")
	var toolMsg *Message
	for i := range history {
		if history[i].Role == RoleTool {
			toolMsg = &history[i]
		}
	}
	require.NotNil(t, toolMsg)
	assert.Equal(t, raw, toolMsg.Content)
}

func TestInvalidToolResultSanitized(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "get_qos_profiles", `{}`),
		}},
		{deltas: []TurnDelta{{Content: "Done"}}},
	}}
	stub := &stubTools{rawResults: map[string]json.RawMessage{
		"get_qos_profiles": json.RawMessage("not-json"),
	}}
	engine := NewEngine(model, stub, Options{}, nil)

	collect(engine.ProcessMessage(context.Background(), "conv-1", "List QoS profiles"))

	history := engine.historySnapshot("conv-1")
	last := history[len(history)-2]
	require.Equal(t, RoleTool, last.Role)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(last.Content), &doc))
	assert.Contains(t, doc["error"], "validation failed")
	assert.Equal(t, "get_qos_profiles", doc["tool_name"])
}

func TestArgumentPrefixRepair(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "verify_location", `{"latitude":1}{"latitude":1}`),
		}},
		{deltas: []TurnDelta{{Content: "Verified"}}},
	}}
	stub := &stubTools{results: map[string]map[string]any{
		"verify_location": {"verificationResult": "TRUE"},
	}}
	engine := NewEngine(model, stub, Options{}, nil)

	collect(engine.ProcessMessage(context.Background(), "conv-1", "Check arrival"))

	require.Len(t, stub.invocations, 1)
	assert.Equal(t, float64(1), stub.invocations[0].args["latitude"])
}

func TestArgumentParseFailureAbortsTurn(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "verify_location", `{not json at all`),
			toolCallDelta(1, "call-2", "get_qos_profiles", `{}`),
		}},
	}}
	stub := &stubTools{}
	engine := NewEngine(model, stub, Options{}, nil)

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Do two things"))

	assert.Equal(t, []EventType{
		EventConversationStarted,
		EventToolError,
		EventComplete,
	}, eventTypes(events))

	// The second call never ran and no further model turn happened
	assert.Empty(t, stub.invocations)
	assert.Equal(t, 1, model.calls)

	// History still records the failure for the next message
	history := engine.historySnapshot("conv-1")
	last := history[len(history)-1]
	assert.Equal(t, RoleTool, last.Role)
	assert.Contains(t, last.Content, "failed")
}

func TestToolFailureContinuesWithRemainingCalls(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "discover_edge_node", `{}`),
			toolCallDelta(1, "call-2", "get_qos_profiles", `{}`),
		}},
		{deltas: []TurnDelta{{Content: "Done"}}},
	}}
	stub := &stubTools{
		results: map[string]map[string]any{"get_qos_profiles": {"profiles": []any{}}},
		errs:    map[string]error{"discover_edge_node": errors.New("edge discovery offline")},
	}
	engine := NewEngine(model, stub, Options{}, nil)

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Find an edge node"))

	assert.Equal(t, []EventType{
		EventConversationStarted,
		EventToolCall,
		EventToolError,
		EventToolCall,
		EventToolResult,
		EventContent,
		EventComplete,
	}, eventTypes(events))
	require.Len(t, stub.invocations, 2)
}

func TestToolErrorTruncated(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "discover_edge_node", `{}`),
		}},
		{deltas: []TurnDelta{{Content: "Done"}}},
	}}
	stub := &stubTools{
		errs: map[string]error{"discover_edge_node": errors.New(strings.Repeat("x", 2000))},
	}
	engine := NewEngine(model, stub, Options{ToolErrorTruncate: 50}, nil)

	collect(engine.ProcessMessage(context.Background(), "conv-1", "Find an edge node"))

	history := engine.historySnapshot("conv-1")
	var toolMsg *Message
	for i := range history {
		if history[i].Role == RoleTool {
			toolMsg = &history[i]
		}
	}
	require.NotNil(t, toolMsg)

	var doc map[string]any
	require.NoError(t, json.Unmarshal([]byte(toolMsg.Content), &doc))
	errText, _ := doc["error"].(string)
	assert.Len(t, errText, 50)
}

func TestIterationCap(t *testing.T) {
	callTurn := scriptedTurn{deltas: []TurnDelta{
		toolCallDelta(0, "call-1", "get_qos_profiles", `{}`),
	}}
	model := &scriptedModel{turns: []scriptedTurn{callTurn, callTurn, callTurn}}
	stub := &stubTools{results: map[string]map[string]any{
		"get_qos_profiles": {"profiles": []any{}},
	}}
	engine := NewEngine(model, stub, Options{MaxToolIterations: 2}, nil)

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Loop forever"))

	assert.Equal(t, 2, model.calls)
	assert.Len(t, stub.invocations, 2)
	assert.Equal(t, EventComplete, events[len(events)-1].Type)
}

func TestModelFailureIsTerminal(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{openErr: errors.New("connection refused")},
	}}
	engine := NewEngine(model, &stubTools{}, Options{}, nil)

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Hello"))

	assert.Equal(t, []EventType{
		EventConversationStarted,
		EventError,
		EventComplete,
	}, eventTypes(events))
	assert.Contains(t, events[1].Error, "connection refused")
}

func TestModelStreamFailureMidTurn(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{{Content: "partial"}}, err: errors.New("stream reset")},
	}}
	engine := NewEngine(model, &stubTools{}, Options{}, nil)

	events := collect(engine.ProcessMessage(context.Background(), "conv-1", "Hello"))

	types := eventTypes(events)
	assert.Equal(t, EventContent, types[1])
	assert.Equal(t, EventError, types[2])
	assert.Equal(t, EventComplete, types[3])

	// The half-streamed assistant turn was not committed
	history := engine.historySnapshot("conv-1")
	assert.Equal(t, RoleUser, history[len(history)-1].Role)
}

func TestCancelledIterationRollsBackSubscriptionCache(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{
			toolCallDelta(0, "call-1", "subscribe_geofencing", `{"radius":200}`),
		}},
	}}
	ctx, cancel := context.WithCancel(context.Background())
	stub := &stubTools{
		results: map[string]map[string]any{
			"subscribe_geofencing": {"subscription_id": "sub-1", "device_id": "drone-001", "status": "active"},
		},
		onInvoke: cancel,
	}
	engine := NewEngine(model, stub, Options{}, nil)

	events := collect(engine.ProcessMessage(ctx, "conv-1", "Create a geofence"))

	// The iteration's batch was discarded, so the cache entry written for
	// the subscribe result must not outlive it
	_, ok := engine.subscriptions.Lookup("conv-1", "drone-001", "geofencing")
	assert.False(t, ok)

	history := engine.historySnapshot("conv-1")
	assert.Equal(t, RoleUser, history[len(history)-1].Role)

	for _, ev := range events {
		assert.NotEqual(t, EventComplete, ev.Type)
	}
}

func TestConversationsAndClear(t *testing.T) {
	model := &scriptedModel{turns: []scriptedTurn{
		{deltas: []TurnDelta{{Content: "hi"}}},
	}}
	engine := NewEngine(model, &stubTools{}, Options{}, nil)

	collect(engine.ProcessMessage(context.Background(), "conv-1", "Hello"))

	assert.Equal(t, []string{"conv-1"}, engine.Conversations())
	assert.True(t, engine.ClearConversation("conv-1"))
	assert.False(t, engine.ClearConversation("conv-1"))
	assert.Empty(t, engine.Conversations())
}
