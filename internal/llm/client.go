// ABOUTME: OpenAI-compatible model gateway built on go-openai
// ABOUTME: Streams chat completion deltas with tool calling support

package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	openai "github.com/sashabaranov/go-openai"

	"github.com/firstwave/firewatch-gateway/internal/config"
	"github.com/firstwave/firewatch-gateway/internal/orchestrator"
	"github.com/firstwave/firewatch-gateway/internal/tools"
)

// Client implements orchestrator.ModelGateway against an OpenAI-compatible
// chat completions endpoint.
type Client struct {
	chat   *openai.Client
	model  string
	logger *slog.Logger
}

// New builds a client from the llm config section.
func New(cfg config.LLMConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	return &Client{
		chat:   openai.NewClientWithConfig(clientCfg),
		model:  cfg.Model,
		logger: logger.With("component", "llm"),
	}
}

// StreamTurn opens one streamed chat completion over the history with the
// given tools advertised.
func (c *Client) StreamTurn(ctx context.Context, history []orchestrator.Message, specs []tools.Spec) (orchestrator.ModelStream, error) {
	stream, err := c.chat.CreateChatCompletionStream(ctx, c.newRequest(history, specs))
	if err != nil {
		return nil, fmt.Errorf("starting chat completion stream: %w", err)
	}
	return &turnStream{stream: stream}, nil
}

// newRequest assembles the chat completion request. Tool selection must be
// deterministic, so temperature is pinned to zero; go-openai treats a zero
// Temperature as unset, hence the smallest non-zero float.
func (c *Client) newRequest(history []orchestrator.Message, specs []tools.Spec) openai.ChatCompletionRequest {
	return openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    encodeMessages(history),
		Tools:       encodeTools(specs),
		Temperature: math.SmallestNonzeroFloat32,
	}
}

// turnStream adapts the go-openai stream to the orchestrator contract. One
// upstream chunk can carry both content and several tool-call fragments, so
// decoded deltas are buffered and handed out one at a time.
type turnStream struct {
	stream  *openai.ChatCompletionStream
	pending []orchestrator.TurnDelta
}

func (s *turnStream) Recv() (orchestrator.TurnDelta, error) {
	for {
		if len(s.pending) > 0 {
			d := s.pending[0]
			s.pending = s.pending[1:]
			return d, nil
		}

		resp, err := s.stream.Recv()
		if errors.Is(err, io.EOF) {
			return orchestrator.TurnDelta{}, io.EOF
		}
		if err != nil {
			return orchestrator.TurnDelta{}, fmt.Errorf("model stream: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}

		delta := resp.Choices[0].Delta
		if delta.Content != "" {
			s.pending = append(s.pending, orchestrator.TurnDelta{Content: delta.Content})
		}
		for _, tc := range delta.ToolCalls {
			idx := 0
			if tc.Index != nil {
				idx = *tc.Index
			}
			s.pending = append(s.pending, orchestrator.TurnDelta{ToolCall: &orchestrator.ToolCallDelta{
				Index:     idx,
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}})
		}
	}
}

func (s *turnStream) Close() error {
	return s.stream.Close()
}

func encodeMessages(history []orchestrator.Message) []openai.ChatCompletionMessage {
	msgs := make([]openai.ChatCompletionMessage, 0, len(history))
	for _, m := range history {
		msg := openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		}
		if m.Role == orchestrator.RoleTool {
			msg.ToolCallID = m.ToolCallID
			msg.Name = m.Name
		}
		for _, call := range m.ToolCalls {
			msg.ToolCalls = append(msg.ToolCalls, openai.ToolCall{
				ID:   call.ID,
				Type: openai.ToolTypeFunction,
				Function: openai.FunctionCall{
					Name:      call.Name,
					Arguments: call.Arguments,
				},
			})
		}
		msgs = append(msgs, msg)
	}
	return msgs
}

func encodeTools(specs []tools.Spec) []openai.Tool {
	if len(specs) == 0 {
		return nil
	}
	out := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		out = append(out, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  json.RawMessage(s.InputSchema),
			},
		})
	}
	return out
}
