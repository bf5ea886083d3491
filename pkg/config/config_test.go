package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, 5, c.Simulation.Rounds)
	assert.Equal(t, "sequential", c.Simulation.Mode)
	assert.Equal(t, "retry", c.Orchestrator.OutOfRange)
	assert.Equal(t, 10, c.Orchestrator.Retry.MaxAttempts)
	assert.Equal(t, 250*time.Millisecond, c.Orchestrator.Retry.BackoffMin)
	assert.Equal(t, "agentomics.rounds", c.Kafka.Topic)
	assert.Equal(t, 30*time.Second, c.Log.CollectInterval)
	assert.Equal(t, float64(30), c.LLM.RequestsPerMinute)
	require.NoError(t, c.Validate())
}

func TestParseOverlaysDefaults(t *testing.T) {
	c, err := Parse([]byte(`
simulation:
  rounds: 8
  mode: parallel
orchestrator:
  retry:
    max_attempts: 0
fred:
  series:
    - id: UNRATE
      field: unemployment_rate
    - id: GDP
      field: gdp_growth_rate
      scale: 0.001
`))
	require.NoError(t, err)
	assert.Equal(t, 8, c.Simulation.Rounds)
	assert.Equal(t, "parallel", c.Simulation.Mode)
	assert.Equal(t, 0, c.Orchestrator.Retry.MaxAttempts)
	assert.Equal(t, "info", c.Log.Level)
	require.Len(t, c.FRED.Series, 2)
	assert.Equal(t, 0.01, c.FRED.Series[0].Scale)
	assert.Equal(t, 0.001, c.FRED.Series[1].Scale)
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown mode", "simulation:\n  mode: chaotic\n", "Mode"},
		{"unknown policy", "orchestrator:\n  out_of_range: ignore\n", "OutOfRange"},
		{"kafka export without brokers", "export:\n  kafka: true\n", "kafka.brokers"},
		{"log collection without brokers", "log:\n  collect: true\n", "kafka.brokers"},
		{"fred without key", "simulation:\n  seed_source: fred\nfred:\n  series:\n    - id: UNRATE\n      field: unemployment_rate\n", "fred.api_key"},
		{"fred without series", "simulation:\n  seed_source: fred\nfred:\n  api_key: k\n", "fred.series"},
		{"inverted backoff", "orchestrator:\n  retry:\n    backoff_min: 5s\n    backoff_max: 1s\n", "backoff_max"},
		{"negative rounds", "simulation:\n  rounds: -1\n", "Rounds"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("simulation:\n  rounds: 3\n"), 0o644))

	t.Setenv("ROUNDS", "12")
	t.Setenv("ORCHESTRATOR_MODE", "parallel")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("LLM_API_KEY", "secret")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, 12, c.Simulation.Rounds)
	assert.Equal(t, "parallel", c.Simulation.Mode)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.Equal(t, "secret", c.LLM.APIKey)

	t.Setenv("ROUNDS", "many")
	_, err = LoadWithEnv(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
