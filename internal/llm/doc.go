// ABOUTME: Package documentation for the llm package
// ABOUTME: Describes the OpenAI-compatible model gateway

// Package llm implements the model gateway over an OpenAI-compatible chat
// completions endpoint. It translates conversation history and tool specs
// into a streamed chat completion request and yields the response as turn
// deltas: content fragments and tool-call fragments keyed by index.
package llm
