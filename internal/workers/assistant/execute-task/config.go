// internal/workers/assistant/execute-task/config.go
package executetask

import (
	"time"

	"agentic-assistant/internal/common/config"
)

type Config struct {
	Pricing config.CostConfig
	Timeout time.Duration
}

func LoadConfig(pricing config.CostConfig) *Config {
	return &Config{
		Pricing: pricing,
		Timeout: 60 * time.Second,
	}
}
