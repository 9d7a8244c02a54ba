// internal/workers/assistant/process-request/config.go
package processrequest

import "time"

type Config struct {
	Timeout time.Duration
}

func LoadConfig(timeout time.Duration) *Config {
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Config{Timeout: timeout}
}
