package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{"llm": {"api_key": "k"}}`))
	require.NoError(t, err)
	require.Equal(t, "gemini", cfg.LLM.Provider)
	require.Equal(t, 8192, cfg.LLM.ManifestMaxTokens)
	require.InDelta(t, 0.3, cfg.LLM.ManifestTemperature, 1e-9)
	require.Equal(t, 2*time.Second, cfg.Retry.LinearDelay)
	require.Equal(t, 20*time.Second, cfg.Image.LoadingWait)
	require.Equal(t, "file", cfg.Storage.Backend)
	require.Equal(t, 14, cfg.MediaPlan.DurationDays)
	require.Equal(t, "Asia/Kolkata", cfg.MediaPlan.Timezone)
	require.False(t, cfg.Moderation.FailClosed)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("CAMPAIGNER_MODERATION_FAIL_CLOSED", "true")
	t.Setenv("CAMPAIGNER_LLM_API_KEY", "from-env")
	cfg, err := LoadConfig(writeConfig(t, `{"moderation": {"fail_closed": false}, "llm": {"api_key": "file"}}`))
	require.NoError(t, err)
	require.True(t, cfg.Moderation.FailClosed)
	require.Equal(t, "from-env", cfg.LLM.APIKey)
}

func TestLoadConfigRejectsInvalidSections(t *testing.T) {
	cases := map[string]string{
		"provider": `{"llm": {"provider": "anthropic"}}`,
		"backend":  `{"storage": {"backend": "s3"}}`,
		"postgres": `{"storage": {"backend": "postgres"}}`,
		"events":   `{"events": {"enabled": true}}`,
		"timezone": `{"media_plan": {"timezone": "Mars/Olympus"}}`,
		"search":   `{"search": {"provider": "bing"}}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestPostgresDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "c"}
	require.Equal(t, "postgres://u:p@db:5432/c?sslmode=disable", p.DSN())
	require.Equal(t, "postgres://x", PostgresConfig{URL: "postgres://x"}.DSN())
}
