package config

import (
	"context"

	"github.com/caarlos0/env/v11"
	"github.com/sandevgo/tedbot/pkg/log"
)

// MemoryConfig points at the external semantic memory service. An empty
// BaseURL disables long-term memory entirely (the noop provider is used).
type MemoryConfig struct {
	BaseURL string `env:"MEMORY_API_URL"`
	APIKey  string `env:"MEMORY_API_KEY"`
}

func NewMemoryConfig(ctx context.Context) *MemoryConfig {
	c := &MemoryConfig{}
	if err := env.Parse(c); err != nil {
		log.FromCtx(ctx).Fatal().Err(err).Msg("failed to parse Memory config")
	}
	return c
}

func (c *MemoryConfig) Enabled() bool {
	return c.BaseURL != ""
}
