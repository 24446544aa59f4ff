package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ternarybob/percipio/internal/models"
)

// Duration is a time.Duration that decodes from TOML strings like "30s" or
// "5m". go-toml only maps TOML values onto primitive kinds, so duration
// fields go through this wrapper's TextUnmarshaler.
type Duration time.Duration

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config represents the application configuration
type Config struct {
	Environment string           `toml:"environment"` // "development" or "production"
	Server      ServerConfig     `toml:"server"`
	Storage     StorageConfig    `toml:"storage"`
	Logging     LoggingConfig    `toml:"logging"`
	Crawler     CrawlerConfig    `toml:"crawler"`
	Dispatcher  DispatcherConfig `toml:"dispatcher"`
	Audit       AuditConfig      `toml:"audit"`
	LLM         LLMConfig        `toml:"llm"`
	Claude      ClaudeConfig     `toml:"claude"`
	Gemini      GeminiConfig     `toml:"gemini"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type StorageConfig struct {
	Badger BadgerConfig `toml:"badger"`
}

// BadgerConfig represents BadgerDB-specific configuration
type BadgerConfig struct {
	Path           string `toml:"path"`             // Database directory path
	ResetOnStartup bool   `toml:"reset_on_startup"` // Delete database on startup for clean test runs
}

type LoggingConfig struct {
	Level  string   `toml:"level"`  // "debug", "info", "warn", "error"
	Output []string `toml:"output"` // "stdout", "file"
}

// CrawlerConfig controls the bounded same-origin crawl
type CrawlerConfig struct {
	UserAgent          string   `toml:"user_agent"`           // User agent sent with every fetch
	RequestTimeout     Duration `toml:"request_timeout"`      // Per-request timeout
	CrawlBudget        Duration `toml:"crawl_budget"`         // Total wall-clock budget for one crawl
	DefaultMaxPages    int      `toml:"default_max_pages"`    // Page cap when the request doesn't supply one
	RequestDelay       Duration `toml:"request_delay"`        // Minimum delay between requests to the origin
	MaxRedirects       int      `toml:"max_redirects"`        // Redirect chain cap before treating as a loop
	EnableJavaScript   bool     `toml:"enable_javascript"`    // Render pages with chromedp instead of plain HTTP
	JavaScriptWaitTime Duration `toml:"javascript_wait_time"` // Settle time after navigation when rendering
}

// DispatcherConfig controls the twelve-way LLM module fan-out
type DispatcherConfig struct {
	ModuleConcurrency    int      `toml:"module_concurrency"`     // Concurrent modules per job (floor 2)
	GlobalLLMConcurrency int      `toml:"global_llm_concurrency"` // In-flight LLM calls across all jobs
	CallTimeout          Duration `toml:"call_timeout"`           // Per-LLM-call timeout
	MaxAttempts          int      `toml:"max_attempts"`           // Call attempts including the first
	RetryBackoff         Duration `toml:"retry_backoff"`          // Initial backoff, doubled per attempt
}

// AuditConfig controls job lifecycle policy
type AuditConfig struct {
	JobDeadline    Duration `toml:"job_deadline"`    // Wall-clock ceiling per job
	StaleAfter     Duration `toml:"stale_after"`     // Running jobs without updates beyond this are reaped
	ReaperSchedule string   `toml:"reaper_schedule"` // Cron schedule for the stale-job reaper
}

// LLMProvider represents the AI provider type
type LLMProvider string

const (
	LLMProviderClaude LLMProvider = "claude"
	LLMProviderGemini LLMProvider = "gemini"
)

// LLMConfig selects the default provider
type LLMConfig struct {
	DefaultProvider LLMProvider `toml:"default_provider"` // "claude" or "gemini"
}

// ClaudeConfig contains Anthropic Claude API configuration
type ClaudeConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"`       // default: "claude-haiku-4-5"
	MaxTokens   int     `toml:"max_tokens"`  // default: 8192
	Temperature float32 `toml:"temperature"` // default: 0.1, audits want near-deterministic output
	RateLimit   string  `toml:"rate_limit"`  // minimum spacing between calls, duration string
}

// GeminiConfig contains Google Gemini API configuration
type GeminiConfig struct {
	APIKey      string  `toml:"api_key"`
	Model       string  `toml:"model"` // default: "gemini-2.5-flash"
	MaxTokens   int     `toml:"max_tokens"`
	Temperature float32 `toml:"temperature"`
	RateLimit   string  `toml:"rate_limit"`
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here for production stability.
// Only user-facing settings should be exposed in percipio.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 8080,
			Host: "localhost",
		},
		Storage: StorageConfig{
			Badger: BadgerConfig{
				Path: "./data",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Crawler: CrawlerConfig{
			UserAgent:          "percipio-audit/1.0 (+https://github.com/ternarybob/percipio)",
			RequestTimeout:     Duration(30 * time.Second),
			CrawlBudget:        Duration(3 * time.Minute),
			DefaultMaxPages:    5,
			RequestDelay:       Duration(250 * time.Millisecond),
			MaxRedirects:       5,
			EnableJavaScript:   false,
			JavaScriptWaitTime: Duration(3 * time.Second),
		},
		Dispatcher: DispatcherConfig{
			ModuleConcurrency:    12,
			GlobalLLMConcurrency: 32,
			CallTimeout:          Duration(120 * time.Second),
			MaxAttempts:          3,
			RetryBackoff:         Duration(time.Second),
		},
		Audit: AuditConfig{
			JobDeadline:    Duration(30 * time.Minute),
			StaleAfter:     Duration(15 * time.Minute),
			ReaperSchedule: "0 */5 * * * *", // every 5 minutes
		},
		LLM: LLMConfig{
			DefaultProvider: LLMProviderClaude,
		},
		Claude: ClaudeConfig{
			Model:       "claude-haiku-4-5",
			MaxTokens:   8192,
			Temperature: 0.1,
			RateLimit:   "1s",
		},
		Gemini: GeminiConfig{
			Model:       "gemini-2.5-flash",
			MaxTokens:   8192,
			Temperature: 0.1,
			RateLimit:   "4s",
		},
	}
}

// LoadFromFiles loads configuration with precedence:
// defaults -> file1 -> file2 -> ... -> environment variables.
// Later files override earlier ones; missing files are an error.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)
	return config, nil
}

// ApplyFlagOverrides applies command-line flag values (highest priority)
func ApplyFlagOverrides(config *Config, port int, host string) {
	if port != 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// Validate checks that configuration required at startup is bound.
func (c *Config) Validate() error {
	if c.Storage.Badger.Path == "" {
		return fmt.Errorf("%w: storage.badger.path", models.ErrConfigMissing)
	}
	switch c.LLM.DefaultProvider {
	case LLMProviderClaude:
		if c.Claude.APIKey == "" {
			return fmt.Errorf("%w: claude.api_key (set PERCIPIO_CLAUDE_API_KEY or ANTHROPIC_API_KEY)", models.ErrConfigMissing)
		}
	case LLMProviderGemini:
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("%w: gemini.api_key (set PERCIPIO_GEMINI_API_KEY or GEMINI_API_KEY)", models.ErrConfigMissing)
		}
	default:
		return fmt.Errorf("%w: llm.default_provider must be claude or gemini, got %q", models.ErrConfigMissing, c.LLM.DefaultProvider)
	}
	if c.Dispatcher.ModuleConcurrency < 2 {
		c.Dispatcher.ModuleConcurrency = 2 // floor per dispatch model
	}
	return nil
}

// applyEnvOverrides maps PERCIPIO_* environment variables onto the config,
// plus the conventional provider key names as fallbacks.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("PERCIPIO_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("PERCIPIO_SERVER_HOST"); v != "" {
		config.Server.Host = v
	}
	if v := os.Getenv("PERCIPIO_STORAGE_PATH"); v != "" {
		config.Storage.Badger.Path = v
	}
	if v := os.Getenv("PERCIPIO_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("PERCIPIO_LLM_PROVIDER"); v != "" {
		config.LLM.DefaultProvider = LLMProvider(strings.ToLower(v))
	}
	if v := os.Getenv("PERCIPIO_CLAUDE_API_KEY"); v != "" {
		config.Claude.APIKey = v
	} else if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" && config.Claude.APIKey == "" {
		config.Claude.APIKey = v
	}
	if v := os.Getenv("PERCIPIO_CLAUDE_MODEL"); v != "" {
		config.Claude.Model = v
	}
	if v := os.Getenv("PERCIPIO_GEMINI_API_KEY"); v != "" {
		config.Gemini.APIKey = v
	} else if v := os.Getenv("GEMINI_API_KEY"); v != "" && config.Gemini.APIKey == "" {
		config.Gemini.APIKey = v
	}
	if v := os.Getenv("PERCIPIO_GEMINI_MODEL"); v != "" {
		config.Gemini.Model = v
	}
	if v := os.Getenv("PERCIPIO_MAX_PAGES"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Crawler.DefaultMaxPages = n
		}
	}
	if v := os.Getenv("PERCIPIO_JOB_DEADLINE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Audit.JobDeadline = Duration(d)
		}
	}
	if v := os.Getenv("PERCIPIO_LLM_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			config.Dispatcher.GlobalLLMConcurrency = n
		}
	}
	if v := os.Getenv("PERCIPIO_CALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Dispatcher.CallTimeout = Duration(d)
		}
	}
}
