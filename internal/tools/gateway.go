// ABOUTME: Tool gateway registry with JSON Schema argument validation
// ABOUTME: Routes invocations from the conversation engine to named tool handlers

package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrUnknownTool is returned by Invoke when no tool is registered under
// the requested name.
var ErrUnknownTool = errors.New("unknown tool")

// Spec describes a tool advertised to the model backend.
type Spec struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

// Handler executes one tool call. The returned value must marshal to JSON;
// the gateway substitutes a structured error document for anything that
// does not.
type Handler func(ctx context.Context, args map[string]any) (any, error)

type tool struct {
	spec    Spec
	schema  *jsonschema.Schema
	handler Handler
}

// Gateway is the registry of callable tools. Every invocation validates its
// arguments against the tool's JSON Schema before the handler runs, and
// every response is guaranteed to be a valid JSON document.
type Gateway struct {
	mu     sync.RWMutex
	tools  map[string]*tool
	order  []string
	logger *slog.Logger
}

// NewGateway creates an empty tool gateway. Pass nil logger for default.
func NewGateway(logger *slog.Logger) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		tools:  make(map[string]*tool),
		logger: logger.With("component", "tools"),
	}
}

// Register adds a tool to the gateway. The spec's input schema is compiled
// eagerly so malformed schemas fail at startup rather than at call time.
func (g *Gateway) Register(spec Spec, handler Handler) error {
	if spec.Name == "" {
		return fmt.Errorf("tool spec requires a name")
	}
	if handler == nil {
		return fmt.Errorf("tool %s requires a handler", spec.Name)
	}

	schema, err := compileSchema(spec.Name, spec.InputSchema)
	if err != nil {
		return fmt.Errorf("tool %s: %w", spec.Name, err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if _, exists := g.tools[spec.Name]; exists {
		return fmt.Errorf("tool %s already registered", spec.Name)
	}
	g.tools[spec.Name] = &tool{spec: spec, schema: schema, handler: handler}
	g.order = append(g.order, spec.Name)
	return nil
}

// Specs returns the registered tool specs in registration order.
func (g *Gateway) Specs() []Spec {
	g.mu.RLock()
	defer g.mu.RUnlock()

	specs := make([]Spec, 0, len(g.order))
	for _, name := range g.order {
		specs = append(specs, g.tools[name].spec)
	}
	return specs
}

// Invoke validates the arguments and runs the named tool. The returned
// bytes are always a valid JSON document; handler outputs that cannot be
// serialized are replaced with a structured {"error": ...} document.
func (g *Gateway) Invoke(ctx context.Context, name string, args map[string]any) (json.RawMessage, error) {
	g.mu.RLock()
	t, ok := g.tools[name]
	g.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}

	if args == nil {
		args = map[string]any{}
	}
	if t.schema != nil {
		if err := t.schema.Validate(toInstance(args)); err != nil {
			return nil, fmt.Errorf("invalid arguments for %s: %w", name, err)
		}
	}

	g.logger.Debug("tool invoked", "tool", name)

	out, err := t.handler(ctx, args)
	if err != nil {
		return nil, fmt.Errorf("tool %s failed: %w", name, err)
	}

	raw, err := json.Marshal(out)
	if err != nil || !json.Valid(raw) {
		g.logger.Warn("tool returned non-JSON result", "tool", name)
		doc, _ := json.Marshal(map[string]any{
			"error": fmt.Sprintf("tool %s returned a result that is not valid JSON", name),
		})
		return doc, nil
	}
	return raw, nil
}

// compileSchema compiles a raw JSON Schema document. A nil schema is
// allowed and disables validation for that tool.
func compileSchema(name string, raw json.RawMessage) (*jsonschema.Schema, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal schema: %w", err)
	}

	c := jsonschema.NewCompiler()
	resource := name + ".schema.json"
	if err := c.AddResource(resource, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	schema, err := c.Compile(resource)
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	return schema, nil
}

// toInstance rebuilds the arguments through encoding/json so the validator
// sees plain map/slice/float64 values regardless of how callers built them.
func toInstance(args map[string]any) any {
	raw, err := json.Marshal(args)
	if err != nil {
		return args
	}
	var instance any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return args
	}
	return instance
}
