// internal/workers/assistant/estimate-cost/config.go
package estimatecost

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
		Timeout: 5 * time.Second,
	}
}
