package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"agenda/internal/llm"
	"agenda/internal/tracing"
)

// Config represents the complete agenda configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Chat      ChatConfig      `yaml:"chat"`
	Database  DatabaseConfig  `yaml:"database"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Security  SecurityConfig  `yaml:"security"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Tracing   tracing.Config  `yaml:"tracing"`
	MCP       MCPConfig       `yaml:"mcp"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig contains HTTP listener settings
type ServerConfig struct {
	Addr string `yaml:"addr"`
	// UserHeader carries the authenticated user id set by the upstream
	// authentication proxy.
	UserHeader        string        `yaml:"user_header"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	// PublicURL is used to build OAuth redirect targets after a callback.
	PublicURL string `yaml:"public_url"`
}

// LLMConfig selects the chat completion provider
type LLMConfig struct {
	Provider        string            `yaml:"provider"` // "mistral" or "openai"
	BaseURL         string            `yaml:"base_url"`
	APIKey          string            `yaml:"api_key"`
	Model           string            `yaml:"model"`
	Temperature     float32           `yaml:"temperature"`
	MaxTokens       int               `yaml:"max_tokens"`
	MaxRounds       int               `yaml:"max_rounds"`
	ConnectTimeout  time.Duration     `yaml:"connect_timeout"`
	ResponseTimeout time.Duration     `yaml:"response_timeout"`
	Breaker         llm.BreakerConfig `yaml:"breaker"`
}

// ChatConfig contains conversation behaviour
type ChatConfig struct {
	SystemPrompt string `yaml:"system_prompt"`
	// FallbackAnswer is persisted when a chat produces no final text.
	FallbackAnswer string `yaml:"fallback_answer"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// CalendarConfig holds the Google OAuth client and calendar settings
type CalendarConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
	Timezone     string `yaml:"timezone"`
	// Endpoint overrides, empty means Google production.
	AuthURL     string `yaml:"auth_url"`
	TokenURL    string `yaml:"token_url"`
	APIEndpoint string `yaml:"api_endpoint"`
}

type SecurityConfig struct {
	EncryptionKey string `yaml:"encryption_key"`
}

// RateLimitConfig bounds chat requests per user
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type LogConfig struct {
	Verbose bool `yaml:"verbose"`
	NoColor bool `yaml:"no_color"`
}

// MCPConfig contains MCP-specific settings
type MCPConfig struct {
	Servers []MCPServerConfig `yaml:"servers"`
}

// MCPServerConfig defines a single MCP server
type MCPServerConfig struct {
	Name      string            `yaml:"name"`      // Unique server identifier
	Transport string            `yaml:"transport"` // "stdio" (only supported initially)
	Command   string            `yaml:"command"`   // Executable to run
	Args      []string          `yaml:"args"`      // Command arguments
	Env       map[string]string `yaml:"env"`       // Environment variables with ${VAR} support
	Disabled  bool              `yaml:"disabled"`  // Skip this server if true
}

const DefaultSystemPrompt = "You are a helpful and friendly AI assistant. Answer concisely and naturally. " +
	"You can use the Google Calendar functions to answer questions about appointments and events."

// Default returns the configuration used when no file is present.
// Secrets reference environment variables and are expanded on load.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:              ":8080",
			UserHeader:        "X-User-ID",
			ReadHeaderTimeout: 10 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			PublicURL:         "http://localhost:8080",
		},
		LLM: LLMConfig{
			Provider:        "mistral",
			APIKey:          "${MISTRAL_API_KEY}",
			Model:           "mistral-small-latest",
			Temperature:     0.7,
			MaxTokens:       1024,
			MaxRounds:       5,
			ConnectTimeout:  10 * time.Second,
			ResponseTimeout: 60 * time.Second,
			Breaker: llm.BreakerConfig{
				MaxFailures: 5,
				Timeout:     30 * time.Second,
				Interval:    time.Minute,
			},
		},
		Chat: ChatConfig{
			SystemPrompt:   DefaultSystemPrompt,
			FallbackAnswer: "[Response given through function calls]",
		},
		Database: DatabaseConfig{Path: "agenda.db"},
		Calendar: CalendarConfig{
			ClientID:     "${GOOGLE_CLIENT_ID}",
			ClientSecret: "${GOOGLE_CLIENT_SECRET}",
			RedirectURL:  "http://localhost:8080/api/oauth/google/callback",
			Timezone:     "Local",
		},
		Security: SecurityConfig{EncryptionKey: "${AGENDA_ENCRYPTION_KEY}"},
		RateLimit: RateLimitConfig{
			Requests: 60,
			Window:   time.Hour,
		},
		Tracing: tracing.Config{Exporter: "noop"},
	}
}

// Load reads and parses the YAML config file on top of Default
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}

	cfg.expand()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// LoadWithDefaults loads config with fallback to default locations
// Checks: ./agenda.yaml, ./configs/agenda.yaml, ~/.config/agenda/agenda.yaml, /etc/agenda/agenda.yaml
func LoadWithDefaults() (*Config, error) {
	locations := []string{
		"./agenda.yaml",
		"./configs/agenda.yaml",
	}

	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".config", "agenda", "agenda.yaml"))
	}

	locations = append(locations, "/etc/agenda/agenda.yaml")

	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return Load(loc)
		}
	}

	// No config found - defaults are not an error
	cfg := Default()
	cfg.expand()
	return cfg, nil
}

// expand resolves environment references in secret-bearing fields
func (c *Config) expand() {
	c.LLM.APIKey = ExpandEnv(c.LLM.APIKey)
	c.LLM.BaseURL = ExpandEnv(c.LLM.BaseURL)
	c.Calendar.ClientID = ExpandEnv(c.Calendar.ClientID)
	c.Calendar.ClientSecret = ExpandEnv(c.Calendar.ClientSecret)
	c.Security.EncryptionKey = ExpandEnv(c.Security.EncryptionKey)
	c.Database.Path = ExpandEnv(c.Database.Path)
}

// Validate checks config correctness
func (c *Config) Validate() error {
	switch c.LLM.Provider {
	case "mistral", "openai":
	default:
		return fmt.Errorf("llm.provider: unsupported provider %q", c.LLM.Provider)
	}
	if c.LLM.MaxRounds < 1 {
		return fmt.Errorf("llm.max_rounds must be at least 1")
	}
	if c.LLM.Temperature < 0 || c.LLM.Temperature > 2 {
		return fmt.Errorf("llm.temperature must be within [0, 2]")
	}
	if c.RateLimit.Requests < 1 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("rate_limit: requests and window must be positive")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Server.UserHeader == "" {
		return fmt.Errorf("server.user_header is required")
	}
	if _, err := c.Location(); err != nil {
		return fmt.Errorf("calendar.timezone: %w", err)
	}

	// Check for duplicate server names
	names := make(map[string]bool)
	for i, server := range c.MCP.Servers {
		if server.Name == "" {
			return fmt.Errorf("server #%d: name cannot be empty", i+1)
		}

		if names[server.Name] {
			return fmt.Errorf("duplicate server name: %s", server.Name)
		}
		names[server.Name] = true

		if err := server.Validate(); err != nil {
			return fmt.Errorf("server %s: %w", server.Name, err)
		}
	}

	return nil
}

// Location resolves the calendar timezone. An empty value means Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Calendar.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Calendar.Timezone)
}

// Validate checks a single server config
func (s *MCPServerConfig) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	// Server names prefix tool names, so they follow the function name
	// pattern ^[a-zA-Z0-9_-]+$
	for _, ch := range s.Name {
		if !((ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9') || ch == '_' || ch == '-') {
			return fmt.Errorf("server name '%s' contains invalid character '%c' (only alphanumeric, underscore, and hyphen allowed)", s.Name, ch)
		}
	}

	if s.Transport == "" {
		return fmt.Errorf("transport is required")
	}

	if s.Transport != "stdio" {
		return fmt.Errorf("unsupported transport: %s (only 'stdio' is supported)", s.Transport)
	}

	if s.Command == "" {
		return fmt.Errorf("command is required")
	}

	return nil
}
