package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"sigfix/internal/codectx"
	"sigfix/internal/llm"
	"sigfix/internal/logx"
)

type Config struct {
	Repo struct {
		Root          string `yaml:"root"`
		Owner         string `yaml:"owner"`
		Name          string `yaml:"name"`
		DefaultBranch string `yaml:"default_branch"`
		Token         string `yaml:"-"`
	} `yaml:"repo"`
	Pipeline struct {
		ArtifactsDir         string   `yaml:"artifacts_dir"`
		ConfidenceThreshold  float64  `yaml:"confidence_threshold"`
		SignalsPerPR         int      `yaml:"signals_per_pr"`
		AutoApplyFormatFixes bool     `yaml:"auto_apply_format_fixes"`
		SkipRules            []string `yaml:"skip_rules"`
		ParseWorkers         int      `yaml:"parse_workers"`
		DryRunDir            string   `yaml:"dry_run_dir"`
		DBPath               string   `yaml:"db_path"`
	} `yaml:"pipeline"`
	LLM struct {
		Provider       string  `yaml:"provider"`
		Model          string  `yaml:"model"`
		APIKey         string  `yaml:"api_key"`
		BaseURL        string  `yaml:"base_url"`
		TimeoutSeconds int     `yaml:"timeout_seconds"`
		MaxRetries     int     `yaml:"max_retries"`
		Temperature    float64 `yaml:"temperature"`
		MaxTokens      int     `yaml:"max_tokens"`
	} `yaml:"llm"`
	Context struct {
		WindowLines  int                  `yaml:"window_lines"`
		MaxFileBytes int64                `yaml:"max_file_bytes"`
		MergeGap     int                  `yaml:"merge_gap"`
		EditWindows  []codectx.WindowRule `yaml:"edit_windows"`
	} `yaml:"context"`
	Logging struct {
		Level    string `yaml:"level"`
		DebugLLM bool   `yaml:"debug_llm"`
		DebugDir string `yaml:"debug_dir"`
		LogDir   string `yaml:"log_dir"`
	} `yaml:"logging"`
}

func Default() *Config {
	var cfg Config
	cfg.Repo.Root = "."
	cfg.Repo.DefaultBranch = "main"
	cfg.Pipeline.ArtifactsDir = "cicd-artifacts-target"
	cfg.Pipeline.ConfidenceThreshold = 0.7
	cfg.Pipeline.SignalsPerPR = 4
	cfg.Pipeline.AutoApplyFormatFixes = true
	cfg.Pipeline.ParseWorkers = 4
	cfg.Pipeline.DryRunDir = "sigfix-out"
	cfg.Pipeline.DBPath = "sigfix.db"
	cfg.LLM.Provider = "anthropic"
	cfg.LLM.TimeoutSeconds = int(llm.DefaultTimeout / time.Second)
	cfg.LLM.MaxRetries = 3
	cfg.LLM.MaxTokens = llm.DefaultMaxTokens
	cfg.Context.WindowLines = codectx.DefaultWindowLines
	cfg.Context.MaxFileBytes = codectx.DefaultMaxFileBytes
	cfg.Context.MergeGap = codectx.DefaultMergeGap
	cfg.Logging.Level = "info"
	cfg.Logging.DebugDir = "debug"
	cfg.Logging.LogDir = "logs"
	return &cfg
}

// LoadConfig layers .env, the optional YAML file at path and the environment
// over Default. A missing YAML file is not an error.
func LoadConfig(path string) (*Config, error) {
	// 1. Load .env if exists
	_ = godotenv.Load()

	cfg := Default()

	// 2. Load YAML config
	if path != "" {
		file, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			logx.Debugf("config file %s not found, using defaults", path)
		case err != nil:
			return nil, err
		default:
			if err := yaml.Unmarshal(file, cfg); err != nil {
				return nil, fmt.Errorf("parse %s: %w", path, err)
			}
		}
	}

	// 3. Override with Environment Variables if present
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(getenv(key)); v != "" {
			*dst = v
		}
	}
	str("TARGET_REPO_ROOT", &c.Repo.Root)
	str("TARGET_REPO_OWNER", &c.Repo.Owner)
	str("TARGET_REPO_NAME", &c.Repo.Name)
	str("TARGET_REPO_DEFAULT_BRANCH", &c.Repo.DefaultBranch)
	str("GITHUB_TOKEN", &c.Repo.Token)
	str("LLM_PROVIDER", &c.LLM.Provider)
	str("LLM_MODEL", &c.LLM.Model)
	str("LLM_API_KEY", &c.LLM.APIKey)
	str("LLM_BASE_URL", &c.LLM.BaseURL)
	str("LOG_LEVEL", &c.Logging.Level)

	if v := strings.TrimSpace(getenv("CONFIDENCE_THRESHOLD")); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("CONFIDENCE_THRESHOLD: %w", err)
		}
		c.Pipeline.ConfidenceThreshold = f
	}
	if v := strings.TrimSpace(getenv("SIGNALS_PER_PR")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SIGNALS_PER_PR: %w", err)
		}
		c.Pipeline.SignalsPerPR = n
	}
	if v := strings.TrimSpace(getenv("AUTO_APPLY_FORMAT_FIXES")); v != "" {
		c.Pipeline.AutoApplyFormatFixes = parseBool(v)
	}
	if v := strings.TrimSpace(getenv("DEBUG_LLM")); v != "" {
		c.Logging.DebugLLM = parseBool(v)
	}

	if c.LLM.APIKey == "" {
		if key, ok := providerKeyEnv[strings.ToLower(c.LLM.Provider)]; ok {
			c.LLM.APIKey = strings.TrimSpace(getenv(key))
		}
	}
	return nil
}

var providerKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
	"claude":    "ANTHROPIC_API_KEY",
	"gemini":    "GEMINI_API_KEY",
}

func parseBool(v string) bool {
	switch strings.ToLower(v) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func (c *Config) Validate() error {
	if c.Pipeline.ConfidenceThreshold < 0 || c.Pipeline.ConfidenceThreshold > 1 {
		return fmt.Errorf("confidence threshold must be within [0,1], got %g", c.Pipeline.ConfidenceThreshold)
	}
	if c.Pipeline.SignalsPerPR < 1 {
		return fmt.Errorf("signals per PR must be at least 1, got %d", c.Pipeline.SignalsPerPR)
	}
	if _, ok := providerKeyEnv[strings.ToLower(c.LLM.Provider)]; !ok {
		return fmt.Errorf("unsupported llm provider: %s", c.LLM.Provider)
	}
	if _, ok := logx.ParseLevel(c.Logging.Level); !ok {
		return fmt.Errorf("unknown log level: %s", c.Logging.Level)
	}
	if strings.TrimSpace(c.Repo.DefaultBranch) == "" {
		return errors.New("default branch must not be empty")
	}
	if _, err := c.EditWindowTable(); err != nil {
		return err
	}
	return nil
}

// LogLevel returns the parsed logging level, Info when unknown.
func (c *Config) LogLevel() logx.Level {
	l, _ := logx.ParseLevel(c.Logging.Level)
	return l
}

func (c *Config) GitHubConfigured() bool {
	return c.Repo.Token != "" && c.Repo.Owner != "" && c.Repo.Name != ""
}

// EditWindowTable is the built-in table with the configured rules applied.
func (c *Config) EditWindowTable() (*codectx.EditWindowTable, error) {
	t := codectx.DefaultEditWindowTable()
	if err := t.Override(c.Context.EditWindows); err != nil {
		return nil, err
	}
	return t, nil
}

func (c *Config) ContextOptions() (codectx.Options, error) {
	t, err := c.EditWindowTable()
	if err != nil {
		return codectx.Options{}, err
	}
	return codectx.Options{
		WindowLines:  c.Context.WindowLines,
		MaxFileBytes: c.Context.MaxFileBytes,
		MergeGap:     c.Context.MergeGap,
		Windows:      t,
	}, nil
}

func (c *Config) LLMOptions() llm.Options {
	retry := llm.DefaultRetryPolicy()
	retry.MaxRetries = c.LLM.MaxRetries
	if c.LLM.MaxRetries == 0 {
		// 0 in the config means no retries
		retry.MaxRetries = -1
	}
	return llm.Options{
		Provider: c.LLM.Provider,
		APIKey:   c.LLM.APIKey,
		Model:    c.LLM.Model,
		BaseURL:  c.LLM.BaseURL,
		Timeout:  time.Duration(c.LLM.TimeoutSeconds) * time.Second,
		Retry:    retry,
	}
}
