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

func TestLoadFromFile_FullConfig(t *testing.T) {
	t.Setenv("TEST_MODEL_KEY", "from-env")
	path := writeConfig(t, `
app:
  name: viora-nlu
  environment: test
camunda:
  broker_address: localhost:26500
redis:
  address: localhost:6379
workers:
  route-utterance:
    enabled: true
    max_jobs_active: 8
model:
  base_url: http://model:8000
  api_key: ${TEST_MODEL_KEY}
  max_retries: 4
recovery:
  accept_truncated_strings: true
dispatch:
  stream:
    enabled: true
    key: viora:decisions
  topic:
    enabled: true
    topic_arn: arn:aws:sns:eu-west-1:123456789012:decisions
    region: eu-west-1
logging:
  level: debug
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, "localhost:26500", cfg.Camunda.BrokerAddress)
	assert.Equal(t, 10, cfg.Camunda.MaxJobsActive)
	assert.Equal(t, "http://model:8000", cfg.Model.BaseURL)
	assert.Equal(t, "from-env", cfg.Model.APIKey)
	assert.Equal(t, 4, cfg.Model.MaxRetries)
	assert.Equal(t, 300, cfg.Model.MaxNewTokens)
	assert.Equal(t, 30*time.Second, GetDuration(cfg.Model.Timeout))
	assert.True(t, cfg.Recovery.AcceptTruncatedStrings)
	assert.Equal(t, "viora:decisions", cfg.Dispatch.Stream.Key)
	assert.Equal(t, int64(10000), cfg.Dispatch.Stream.MaxLen)
	assert.Equal(t, "eu-west-1", cfg.Dispatch.Topic.Region)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	w := GetWorkerConfig(cfg, "route-utterance")
	assert.True(t, w.Enabled)
	assert.Equal(t, 8, w.MaxJobsActive)
	assert.Equal(t, 30000, w.Timeout)
	assert.Equal(t, 3, w.MaxRetries)
}

func TestLoadFromFile_EnvOverridesMissingKeys(t *testing.T) {
	t.Setenv("MODEL_BASE_URL", "http://env-model:9000")
	path := writeConfig(t, `
camunda:
  broker_address: localhost:26500
`)

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "http://env-model:9000", cfg.Model.BaseURL)
	assert.False(t, cfg.Recovery.AcceptTruncatedStrings)
	assert.Equal(t, ":8080", cfg.Observability.MetricsAddress)
}

func TestLoadFromFile_Validation(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantMsg string
	}{
		{
			name:    "missing broker",
			body:    "model:\n  base_url: http://m\n",
			wantMsg: "camunda.broker_address",
		},
		{
			name:    "missing model url",
			body:    "camunda:\n  broker_address: b:26500\n",
			wantMsg: "model.base_url",
		},
		{
			name: "stream without redis",
			body: "camunda:\n  broker_address: b:26500\nmodel:\n  base_url: http://m\n" +
				"dispatch:\n  stream:\n    enabled: true\n",
			wantMsg: "redis.address",
		},
		{
			name: "topic without arn",
			body: "camunda:\n  broker_address: b:26500\nmodel:\n  base_url: http://m\n" +
				"dispatch:\n  topic:\n    enabled: true\n",
			wantMsg: "topic_arn",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadFromFile(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestLoadFromFile_DisabledWorkerNeedsNoModel(t *testing.T) {
	cfg, err := LoadFromFile(writeConfig(t, `
camunda:
  broker_address: localhost:26500
workers:
  route-utterance:
    enabled: false
`))
	require.NoError(t, err)
	assert.False(t, IsWorkerEnabled(cfg, "route-utterance"))
	assert.True(t, IsWorkerEnabled(cfg, "something-else"))
}

func TestLoadFromFile_MissingFile(t *testing.T) {
	_, err := LoadFromFile(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
