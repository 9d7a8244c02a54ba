// internal/workers/assistant/build-response/config.go
package buildresponse

import "time"

type Config struct {
	MaxLogLines int
	Timeout     time.Duration
}

func LoadConfig() *Config {
	return &Config{
		MaxLogLines: 100,
		Timeout:     5 * time.Second,
	}
}
