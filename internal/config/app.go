package config

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tedbot/pkg/log"
)

type AppConfig struct {
	RuntimePath string `env:"TED_RUNTIME_PATH" envDefault:".tedbot"`

	// Allow selecting the provider
	LLMProvider string `env:"LLM_PROVIDER" envDefault:"openai"`
	Model       string `env:"LLM_MODEL" envDefault:"gpt-4.1"`

	OpenAIAPIKey     string `env:"OPENAI_API_KEY"`
	OpenRouterAPIKey string `env:"OPENROUTER_API_KEY"`
	OllamaBaseURL    string `env:"OLLAMA_BASE_URL" envDefault:"http://localhost:11434"`
	OllamaAPIKey     string `env:"OLLAMA_API_KEY"`
	CustomBaseURL    string `env:"CUSTOM_OPENAI_BASE_URL"`
	CustomAPIKey     string `env:"CUSTOM_OPENAI_API_KEY"`

	// Transport Flags
	EnableHTTP bool   `env:"ENABLE_HTTP" envDefault:"true"`
	EnableCLI  bool   `env:"ENABLE_CLI" envDefault:"false"`
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8000"`

	// Identity
	AssistantName string `env:"ASSISTANT_NAME" envDefault:"Ted"`
	UserName      string `env:"USER_NAME" envDefault:"User"`
	DefaultUserID string `env:"DEFAULT_USER_ID" envDefault:"u42"`

	// Time awareness. The timezone is a single deployment-wide setting.
	UserTimezone string `env:"USER_TZ" envDefault:"Europe/Berlin"`
	Hemisphere   string `env:"HEMISPHERE" envDefault:"northern"`

	// Context Management
	FreshnessHours      float64 `env:"FRESHNESS_HOURS" envDefault:"8"`
	BreakThresholdHours float64 `env:"BREAK_THRESHOLD_HOURS" envDefault:"4"`
	MaxStaleMessages    int     `env:"MAX_STALE_MESSAGES" envDefault:"3"`
	ContextWindow       int     `env:"CONTEXT_WINDOW" envDefault:"20"`

	// Memory Retrieval
	MemoriesCount       int     `env:"MEMORIES_COUNT" envDefault:"5"`
	MinSimilarity       float64 `env:"MIN_SIMILARITY" envDefault:"0.45"`
	RecencyHalfLifeDays float64 `env:"RECENCY_HALFLIFE_DAYS" envDefault:"30"`

	loc *time.Location
}

func NewAppConfig(ctx context.Context) *AppConfig {
	c := &AppConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse App config")
	}
	if err := c.Validate(); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("invalid App config")
	}
	return c
}

// Validate fails fast on threshold and timezone misconfiguration so that
// per-call code never has to handle it.
func (c *AppConfig) Validate() error {
	if c.BreakThresholdHours > c.FreshnessHours {
		return fmt.Errorf("BREAK_THRESHOLD_HOURS (%v) must not exceed FRESHNESS_HOURS (%v)",
			c.BreakThresholdHours, c.FreshnessHours)
	}
	if c.BreakThresholdHours < 0 || c.FreshnessHours < 0 {
		return fmt.Errorf("gap thresholds must be non-negative")
	}
	if c.MaxStaleMessages < 0 {
		return fmt.Errorf("MAX_STALE_MESSAGES must be non-negative")
	}
	if c.ContextWindow <= 0 {
		return fmt.Errorf("CONTEXT_WINDOW must be positive")
	}
	if c.MemoriesCount <= 0 {
		return fmt.Errorf("MEMORIES_COUNT must be positive")
	}
	switch strings.ToLower(c.Hemisphere) {
	case "northern", "southern":
	default:
		return fmt.Errorf("HEMISPHERE must be northern or southern, got %q", c.Hemisphere)
	}
	loc, err := time.LoadLocation(c.UserTimezone)
	if err != nil {
		return fmt.Errorf("invalid USER_TZ %q: %w", c.UserTimezone, err)
	}
	c.loc = loc
	return nil
}

// Location returns the validated user timezone. Only valid after Validate.
func (c *AppConfig) Location() *time.Location {
	if c.loc == nil {
		return time.UTC
	}
	return c.loc
}

func (c *AppConfig) GetRuntimePath() string {
	return c.RuntimePath
}

func (c *AppConfig) GetDatabasePath() string {
	return filepath.Join(c.RuntimePath, "tedbot.db")
}
