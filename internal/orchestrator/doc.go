// ABOUTME: Package documentation for the orchestrator package
// ABOUTME: Explains the engine's event stream and tool loop

// Package orchestrator implements the conversation engine at the center of
// firewatch-gateway. Each operator message becomes a stream of orchestration
// events: assistant text deltas, tool calls with their results or errors,
// and a terminal completion marker.
//
// The engine runs a bounded model/tool loop: it streams one model turn,
// assembles any tool calls from the streamed fragments, executes them
// sequentially through the tool gateway, records the results in the
// conversation history, and hands the extended history back to the model
// for the next turn. The loop ends when a turn produces no tool calls, when
// the iteration cap is reached, or when the model stream fails.
//
// Mission-complete messages short-circuit the loop entirely: a fixed
// acknowledgement is streamed, the conversation history and tracked
// subscriptions are cleared, and no model or tool call is made.
package orchestrator
