// internal/workers/assistant/plan-intent/config.go
package planintent

import "time"

type Config struct {
	// MaxInstructionRunes caps how much of typed text is read as an instruction.
	MaxInstructionRunes int
	Timeout             time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxInstructionRunes: 200,
		Timeout:             5 * time.Second,
	}
}
