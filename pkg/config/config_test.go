package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const minimalYAML = `
environment: test
backend:
  type: clickhouse
feed:
  api_key: test-key
  symbols: ["AAPL", "MSFT"]
model:
  url: http://localhost:8000
risk:
  portfolios:
    - id: balanced
      holdings:
        AAPL: 0.5
        MSFT: 0.5
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.Equal(t, "test", cfg.Environment)
	require.Equal(t, "clickhouse", cfg.Backend.Type)
	require.Equal(t, []string{"AAPL", "MSFT"}, cfg.Feed.Symbols)
	require.Len(t, cfg.Risk.Portfolios, 1)
	require.Equal(t, 0.5, cfg.Risk.Portfolios[0].Holdings["AAPL"])
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("FEED_API_KEY", "env-key")
	t.Setenv("SYMBOLS", "TSLA,NVDA")
	t.Setenv("BACKEND", "kafka")
	t.Setenv("MODEL_SERVICE_URL", "http://model:9000")
	t.Setenv("PORT", "9090")

	cfg, err := LoadWithEnv(writeConfig(t, minimalYAML))
	require.NoError(t, err)
	require.Equal(t, "env-key", cfg.Feed.APIKey)
	require.Equal(t, []string{"TSLA", "NVDA"}, cfg.Feed.Symbols)
	require.Equal(t, "kafka", cfg.Backend.Type)
	require.Equal(t, "http://model:9000", cfg.Model.URL)
	require.Equal(t, 9090, cfg.Server.Port)
}

func TestValidateErrors(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing environment", func(c *Config) { c.Environment = "" }},
		{"missing backend", func(c *Config) { c.Backend.Type = "" }},
		{"unknown backend", func(c *Config) { c.Backend.Type = "postgres" }},
		{"no symbols", func(c *Config) { c.Feed.Symbols = nil }},
		{"no api key", func(c *Config) { c.Feed.APIKey = "" }},
		{"no model url", func(c *Config) { c.Model.URL = "" }},
		{"portfolio without id", func(c *Config) { c.Risk.Portfolios[0].ID = "" }},
		{"portfolio without holdings", func(c *Config) { c.Risk.Portfolios[0].Holdings = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, minimalYAML))
			require.NoError(t, err)
			tc.mutate(cfg)
			require.Error(t, cfg.Validate())
		})
	}
}
