package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFromFile_AppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
apis:
  genai:
    base_url: http://genai.local
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Address)
	assert.Equal(t, BackendMemory, cfg.Session.Backend)
	assert.Equal(t, 600000, cfg.Session.TTL)
	assert.Equal(t, BackendMemory, cfg.Ledger.Backend)
	assert.Equal(t, "assistant-responses", cfg.Archive.Index)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 60000, cfg.APIs.GenAI.Timeout)

	rate := cfg.Cost.RateFor(cfg.Cost.ModelFor("summarization"))
	assert.Equal(t, 0.003, rate.InputPer1K)
	assert.Equal(t, 0.015, rate.OutputPer1K)
}

func TestLoadFromFile_ExpandsEnvPlaceholders(t *testing.T) {
	t.Setenv("TEST_GENAI_URL", "http://from-env:9000")

	path := writeConfig(t, `
apis:
  genai:
    base_url: ${TEST_GENAI_URL}
cost:
  default_model: small
  models:
    small:
      input_per_1k: 0.001
      output_per_1k: 0.002
    large:
      input_per_1k: 0.01
      output_per_1k: 0.03
  task_models:
    code_explanation: large
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "http://from-env:9000", cfg.APIs.GenAI.BaseURL)
	assert.Equal(t, "large", cfg.Cost.ModelFor("code_explanation"))
	assert.Equal(t, "small", cfg.Cost.ModelFor("summarization"))
	assert.Equal(t, 0.03, cfg.Cost.RateFor("large").OutputPer1K)
	assert.Equal(t, 0.001, cfg.Cost.RateFor("unknown").InputPer1K)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "missing genai url",
			body:    "logging:\n  level: debug\n",
			wantErr: "apis.genai.base_url is required",
		},
		{
			name: "redis session without address",
			body: `
apis:
  genai:
    base_url: http://genai
session:
  backend: redis
`,
			wantErr: "database.redis.address is required",
		},
		{
			name: "postgres ledger without host",
			body: `
apis:
  genai:
    base_url: http://genai
ledger:
  backend: postgres
`,
			wantErr: "database.postgres.host is required",
		},
		{
			name: "unknown ledger backend",
			body: `
apis:
  genai:
    base_url: http://genai
ledger:
  backend: sqlite
`,
			wantErr: "ledger.backend must be",
		},
		{
			name: "archive without elasticsearch",
			body: `
apis:
  genai:
    base_url: http://genai
archive:
  enabled: true
`,
			wantErr: "database.elasticsearch",
		},
		{
			name: "camunda without broker",
			body: `
apis:
  genai:
    base_url: http://genai
camunda:
  enabled: true
`,
			wantErr: "camunda.broker_address is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestGetDuration(t *testing.T) {
	assert.Equal(t, 1500*time.Millisecond, GetDuration(1500))
}

func TestGetWorkerConfig_Fallback(t *testing.T) {
	cfg := &Config{Workers: map[string]WorkerConfig{
		"assistant-process-request": {Enabled: false, MaxJobsActive: 2},
	}}

	assert.False(t, IsWorkerEnabled(cfg, "assistant-process-request"))
	assert.Equal(t, 2, GetWorkerConfig(cfg, "assistant-process-request").MaxJobsActive)

	def := GetWorkerConfig(cfg, "other")
	assert.True(t, def.Enabled)
	assert.Equal(t, 30000, def.Timeout)
}
