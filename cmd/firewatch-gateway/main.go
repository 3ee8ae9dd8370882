// ABOUTME: Entry point for the firewatch-gateway control server
// ABOUTME: Serves the chat orchestrator and dashboard event hub

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/firstwave/firewatch-gateway/internal/config"
	"github.com/firstwave/firewatch-gateway/internal/gateway"
	"github.com/firstwave/firewatch-gateway/internal/hub"
	"github.com/firstwave/firewatch-gateway/internal/llm"
	"github.com/firstwave/firewatch-gateway/internal/orchestrator"
	"github.com/firstwave/firewatch-gateway/internal/tools"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
  __ _                         _       _
 / _(_)_ __ _____      ____ _| |_ ___| |__
| |_| | '__/ _ \ \ /\ / / _' | __/ __| '_ \
|  _| | | |  __/\ V  V / (_| | || (__| | | |
|_| |_|_|  \___| \_/\_/ \__,_|\__\___|_| |_|
`

// getConfigPath returns the path to the gateway config file.
// Priority: FIREWATCH_CONFIG env var > XDG_CONFIG_HOME/firewatch/gateway.yaml > ~/.config/firewatch/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("FIREWATCH_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "firewatch", "gateway.yaml")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: firewatch-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve   Start the gateway server")
		fmt.Println("  init    Write a default config file")
		fmt.Println("  health  Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := setupLogger(cfg.Logging)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config: %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:   %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Model:  %s\n", cfg.LLM.Model)
	fmt.Println()

	logger.Info("starting firewatch-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"model", cfg.LLM.Model,
	)

	toolGW, err := tools.NewCamaraGateway(tools.CamaraOptions{
		DefaultDeviceID:    cfg.Mission.DefaultDeviceID,
		DefaultPhoneNumber: cfg.Mission.DefaultPhoneNumber,
	}, logger)
	if err != nil {
		return fmt.Errorf("building tool gateway: %w", err)
	}

	model := llm.New(cfg.LLM, logger)

	engine := orchestrator.NewEngine(model, toolGW, orchestrator.Options{
		DefaultDeviceID:   cfg.Mission.DefaultDeviceID,
		MaxToolIterations: cfg.Chat.MaxToolIterations,
		ToolErrorTruncate: cfg.Chat.ToolErrorTruncate,
	}, logger)

	eventHub := hub.New(hub.Options{
		QueueCapacity:     cfg.Events.QueueCapacity,
		HeartbeatInterval: cfg.Events.HeartbeatInterval,
		PublishTimeout:    cfg.Events.PublishTimeout,
	}, logger)

	var telemetry *hub.Telemetry
	if cfg.Telemetry.Enabled {
		telemetry = hub.NewTelemetry(eventHub, hub.TelemetryOptions{
			LocationInterval:    cfg.Telemetry.LocationInterval,
			DeviceCountInterval: cfg.Telemetry.DeviceCountInterval,
			BaseLat:             cfg.Mission.IncidentLat,
			BaseLon:             cfg.Mission.IncidentLon,
		}, logger)
	}

	gw := gateway.New(cfg, engine, eventHub, telemetry, toolGW, logger)
	return gw.Run(ctx)
}

const defaultConfigTemplate = `# firewatch-gateway configuration
server:
  http_addr: "localhost:4000"

llm:
  base_url: "https://api.openai.com/v1"
  api_key: "${OPENAI_API_KEY}"
  model: "gpt-4o-mini"

mission:
  default_device_id: "drone-001"
  default_phone_number: "+61491570006"
  incident_lat: -37.8136
  incident_lon: 144.9631

chat:
  max_tool_iterations: 5
  tool_error_truncate: 500

events:
  queue_capacity: 50
  heartbeat_interval: "30s"
  publish_timeout: "1s"

telemetry:
  enabled: true
  location_interval: "10s"
  device_count_interval: "30s"

logging:
  level: "info"
  format: "text"
`

func runInit() error {
	configPath := getConfigPath()

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists at %s", configPath)
	}

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(defaultConfigTemplate), 0o600); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	fmt.Printf("Wrote default config to %s\n", configPath)
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
