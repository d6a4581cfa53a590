package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sigfix/internal/codectx"
	"sigfix/internal/logx"
)

func envMap(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 0.7, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, 4, cfg.Pipeline.SignalsPerPR)
	assert.Equal(t, "anthropic", cfg.LLM.Provider)
	assert.Equal(t, "main", cfg.Repo.DefaultBranch)
	assert.True(t, cfg.Pipeline.AutoApplyFormatFixes)
	assert.False(t, cfg.GitHubConfigured())
	assert.Equal(t, logx.Info, cfg.LogLevel())
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(envMap(map[string]string{
		"CONFIDENCE_THRESHOLD":       "0.85",
		"SIGNALS_PER_PR":             "2",
		"LLM_PROVIDER":               "openai",
		"OPENAI_API_KEY":             "sk-openai",
		"ANTHROPIC_API_KEY":          "sk-ant",
		"AUTO_APPLY_FORMAT_FIXES":    "false",
		"DEBUG_LLM":                  "1",
		"LOG_LEVEL":                  "debug",
		"GITHUB_TOKEN":               "ghp",
		"TARGET_REPO_OWNER":          "acme",
		"TARGET_REPO_NAME":           "app",
		"TARGET_REPO_DEFAULT_BRANCH": "develop",
	})))
	assert.Equal(t, 0.85, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, 2, cfg.Pipeline.SignalsPerPR)
	assert.Equal(t, "sk-openai", cfg.LLM.APIKey)
	assert.False(t, cfg.Pipeline.AutoApplyFormatFixes)
	assert.True(t, cfg.Logging.DebugLLM)
	assert.Equal(t, logx.Debug, cfg.LogLevel())
	assert.True(t, cfg.GitHubConfigured())
	assert.Equal(t, "develop", cfg.Repo.DefaultBranch)
}

func TestApplyEnvExplicitKeyWins(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.applyEnv(envMap(map[string]string{
		"LLM_API_KEY":       "explicit",
		"ANTHROPIC_API_KEY": "fallback",
	})))
	assert.Equal(t, "explicit", cfg.LLM.APIKey)
}

func TestApplyEnvRejectsBadNumbers(t *testing.T) {
	assert.Error(t, Default().applyEnv(envMap(map[string]string{"CONFIDENCE_THRESHOLD": "high"})))
	assert.Error(t, Default().applyEnv(envMap(map[string]string{"SIGNALS_PER_PR": "many"})))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"threshold above one", func(c *Config) { c.Pipeline.ConfidenceThreshold = 1.5 }},
		{"negative threshold", func(c *Config) { c.Pipeline.ConfidenceThreshold = -0.1 }},
		{"zero group size", func(c *Config) { c.Pipeline.SignalsPerPR = 0 }},
		{"unknown provider", func(c *Config) { c.LLM.Provider = "llama" }},
		{"unknown log level", func(c *Config) { c.Logging.Level = "verbose" }},
		{"bad edit window", func(c *Config) {
			c.Context.EditWindows = []codectx.WindowRule{{Rules: []string{"X1"}, WindowSpec: codectx.WindowSpec{Type: "paragraph"}}}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadConfigYAML(t *testing.T) {
	for _, k := range []string{"CONFIDENCE_THRESHOLD", "SIGNALS_PER_PR", "LLM_PROVIDER", "LLM_API_KEY", "GEMINI_API_KEY", "LOG_LEVEL"} {
		t.Setenv(k, "")
	}
	path := filepath.Join(t.TempDir(), "sigfix.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
pipeline:
  confidence_threshold: 0.5
  skip_rules: [E999]
llm:
  provider: gemini
  timeout_seconds: 30
context:
  merge_gap: 4
  edit_windows:
    - rules: ["ruff:E501"]
      type: lines
      lines: 2
`), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Pipeline.ConfidenceThreshold)
	assert.Equal(t, 4, cfg.Pipeline.SignalsPerPR)
	assert.Equal(t, []string{"E999"}, cfg.Pipeline.SkipRules)

	opts, err := cfg.ContextOptions()
	require.NoError(t, err)
	assert.Equal(t, 4, opts.MergeGap)
	assert.Equal(t, codectx.WindowSpec{Type: codectx.WindowLines, Lines: 2}, opts.Windows.Lookup("ruff", "E501"))

	llmOpts := cfg.LLMOptions()
	assert.Equal(t, "gemini", llmOpts.Provider)
	assert.Equal(t, 30*time.Second, llmOpts.Timeout)
	assert.Equal(t, 3, llmOpts.Retry.MaxRetries)
}

func TestLoadConfigMissingFile(t *testing.T) {
	t.Setenv("LLM_PROVIDER", "")
	t.Setenv("LOG_LEVEL", "")
	t.Setenv("CONFIDENCE_THRESHOLD", "")
	t.Setenv("SIGNALS_PER_PR", "")
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Pipeline, cfg.Pipeline)
}
