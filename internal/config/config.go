// ABOUTME: Configuration loading and parsing for firewatch-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete firewatch-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Mission   MissionConfig   `yaml:"mission"`
	Chat      ChatConfig      `yaml:"chat"`
	Events    EventsConfig    `yaml:"events"`
	Telemetry TelemetryConfig `yaml:"telemetry"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// LLMConfig holds the OpenAI-compatible model endpoint configuration
type LLMConfig struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// MissionConfig holds mission defaults used by the orchestrator and tools
type MissionConfig struct {
	DefaultDeviceID    string  `yaml:"default_device_id"`
	DefaultPhoneNumber string  `yaml:"default_phone_number"`
	IncidentLat        float64 `yaml:"incident_lat"`
	IncidentLon        float64 `yaml:"incident_lon"`
}

// ChatConfig holds tuning for the conversation engine
type ChatConfig struct {
	MaxToolIterations int `yaml:"max_tool_iterations"`
	ToolErrorTruncate int `yaml:"tool_error_truncate"`
}

// EventsConfig holds event hub tuning
type EventsConfig struct {
	QueueCapacity     int           `yaml:"queue_capacity"`
	HeartbeatInterval time.Duration `yaml:"-"`
	PublishTimeout    time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	HeartbeatIntervalRaw string `yaml:"heartbeat_interval"`
	PublishTimeoutRaw    string `yaml:"publish_timeout"`
}

// TelemetryConfig holds the periodic publisher configuration
type TelemetryConfig struct {
	Enabled             bool          `yaml:"enabled"`
	LocationInterval    time.Duration `yaml:"-"`
	DeviceCountInterval time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LocationIntervalRaw    string `yaml:"location_interval"`
	DeviceCountIntervalRaw string `yaml:"device_count_interval"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns a configuration with every tuning value at its documented
// default. Load starts from this, so a config file only overrides what it
// cares about.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr: "localhost:4000",
		},
		LLM: LLMConfig{
			BaseURL: "https://api.openai.com/v1",
			Model:   "gpt-4o-mini",
		},
		Mission: MissionConfig{
			DefaultDeviceID:    "drone-001",
			DefaultPhoneNumber: "+61491570006",
			IncidentLat:        -37.8136,
			IncidentLon:        144.9631,
		},
		Chat: ChatConfig{
			MaxToolIterations: 5,
			ToolErrorTruncate: 500,
		},
		Events: EventsConfig{
			QueueCapacity:     50,
			HeartbeatInterval: 30 * time.Second,
			PublishTimeout:    time.Second,
		},
		Telemetry: TelemetryConfig{
			Enabled:             true,
			LocationInterval:    10 * time.Second,
			DeviceCountInterval: 30 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expandedData), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Parse duration fields
	if err := parseDurations(cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.LLM.BaseURL == "" {
		return fmt.Errorf("llm.base_url is required")
	}
	if c.LLM.Model == "" {
		return fmt.Errorf("llm.model is required")
	}

	if c.Chat.MaxToolIterations < 1 {
		return fmt.Errorf("chat.max_tool_iterations must be at least 1")
	}
	if c.Chat.ToolErrorTruncate < 1 {
		return fmt.Errorf("chat.tool_error_truncate must be at least 1")
	}

	if c.Events.QueueCapacity < 1 {
		return fmt.Errorf("events.queue_capacity must be at least 1")
	}
	if c.Events.HeartbeatInterval <= 0 {
		return fmt.Errorf("events.heartbeat_interval must be positive")
	}
	if c.Events.PublishTimeout <= 0 {
		return fmt.Errorf("events.publish_timeout must be positive")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.LocationInterval <= 0 {
			return fmt.Errorf("telemetry.location_interval must be positive")
		}
		if c.Telemetry.DeviceCountInterval <= 0 {
			return fmt.Errorf("telemetry.device_count_interval must be positive")
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"events.heartbeat_interval", cfg.Events.HeartbeatIntervalRaw, &cfg.Events.HeartbeatInterval},
		{"events.publish_timeout", cfg.Events.PublishTimeoutRaw, &cfg.Events.PublishTimeout},
		{"telemetry.location_interval", cfg.Telemetry.LocationIntervalRaw, &cfg.Telemetry.LocationInterval},
		{"telemetry.device_count_interval", cfg.Telemetry.DeviceCountIntervalRaw, &cfg.Telemetry.DeviceCountInterval},
	}

	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		parsed, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("parsing %s %q: %w", d.name, d.raw, err)
		}
		*d.dst = parsed
	}

	return nil
}
