package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":12345", cfg.Coordinator.ListenAddr)
	assert.Equal(t, "ceil", cfg.Coordinator.AssignMode)
	assert.Equal(t, time.Duration(0), cfg.Coordinator.ResultTimeout)
	assert.Equal(t, "127.0.0.1:12345", cfg.Worker.CoordinatorAddr)
	assert.Equal(t, 0, cfg.Worker.Lanes)
	assert.Equal(t, 10*time.Second, cfg.Worker.DialTimeout)
	assert.False(t, cfg.HTTP.Enabled)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
coordinator:
  listen_addr: ":9000"
  assign_mode: largest_remainder
worker:
  coordinator_addr: "10.0.0.5:9000"
  lanes: 6
http:
  enabled: true
  address: ":8088"
logging:
  level: debug
  format: json
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)

	assert.Equal(t, ":9000", cfg.Coordinator.ListenAddr)
	assert.Equal(t, "largest_remainder", cfg.Coordinator.AssignMode)
	assert.Equal(t, "10.0.0.5:9000", cfg.Worker.CoordinatorAddr)
	assert.Equal(t, 6, cfg.Worker.Lanes)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, ":8088", cfg.HTTP.Address)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	// Keys the file omits keep their defaults.
	assert.Equal(t, 10*time.Second, cfg.Worker.DialTimeout)
}

func TestMissingFileKeepsDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/config.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, ":12345", cfg.Coordinator.ListenAddr)
}

func TestMalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coordinator: ["), 0o644))

	_, err := NewLoader().WithConfigPath(path).Load()
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("DI_COORDINATOR_LISTEN_ADDR", ":7000")
	t.Setenv("DI_COORDINATOR_RESULT_TIMEOUT", "90s")
	t.Setenv("DI_WORKER_LANES", "3")
	t.Setenv("DI_HTTP_ENABLED", "true")
	t.Setenv("DI_LOG_LEVEL", "warn")

	cfg, err := NewLoader().Load()
	require.NoError(t, err)

	assert.Equal(t, ":7000", cfg.Coordinator.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.Coordinator.ResultTimeout)
	assert.Equal(t, 3, cfg.Worker.Lanes)
	assert.True(t, cfg.HTTP.Enabled)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("coordinator:\n  listen_addr: \":9000\"\n"), 0o644))
	t.Setenv("DI_COORDINATOR_LISTEN_ADDR", ":7000")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, ":7000", cfg.Coordinator.ListenAddr)
}

func TestEnvParseError(t *testing.T) {
	t.Setenv("DI_WORKER_LANES", "many")

	_, err := NewLoader().Load()
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{name: "empty listen addr", mutate: func(c *Config) { c.Coordinator.ListenAddr = "" }},
		{name: "bad assign mode", mutate: func(c *Config) { c.Coordinator.AssignMode = "round_robin" }},
		{name: "negative timeout", mutate: func(c *Config) { c.Coordinator.ResultTimeout = -time.Second }},
		{name: "empty coordinator addr", mutate: func(c *Config) { c.Worker.CoordinatorAddr = "" }},
		{name: "negative lanes", mutate: func(c *Config) { c.Worker.Lanes = -1 }},
		{name: "http enabled without address", mutate: func(c *Config) {
			c.HTTP.Enabled = true
			c.HTTP.Address = ""
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}
