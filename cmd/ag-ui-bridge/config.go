package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// config is the serve command's full configuration: the YAML file provides
// the base values, environment variables override field by field.
type config struct {
	Addr        string `yaml:"addr"`
	AppName     string `yaml:"app_name"`
	AgentName   string `yaml:"agent_name"`
	Instruction string `yaml:"instruction"`

	Anthropic struct {
		APIKey    string  `yaml:"api_key"`
		Model     string  `yaml:"model"`
		MaxTokens int     `yaml:"max_tokens"`
		Temp      float64 `yaml:"temperature"`
	} `yaml:"anthropic"`

	Mongo struct {
		URL      string `yaml:"url"`
		Database string `yaml:"database"`
	} `yaml:"mongo"`

	Redis struct {
		URL      string `yaml:"url"`
		Password string `yaml:"password"`
	} `yaml:"redis"`

	// Durations are given as Go duration strings ("20m", "90s") in both the
	// YAML file and the environment.
	SessionTimeoutStr   string `yaml:"session_timeout"`
	CleanupIntervalStr  string `yaml:"cleanup_interval"`
	MaxSessionsPerUser  int    `yaml:"max_sessions_per_user"`
	ExecutionTimeoutStr string `yaml:"execution_timeout"`
	MaxConcurrent       int    `yaml:"max_concurrent"`

	Debug bool `yaml:"debug"`

	SessionTimeout   time.Duration `yaml:"-"`
	CleanupInterval  time.Duration `yaml:"-"`
	ExecutionTimeout time.Duration `yaml:"-"`
}

// loadConfig reads the optional YAML file, then applies environment
// overrides and defaults.
func loadConfig(path string) (config, error) {
	var cfg config
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	cfg.Addr = envOr("BRIDGE_ADDR", defaultStr(cfg.Addr, ":8080"))
	cfg.AgentName = envOr("BRIDGE_AGENT_NAME", defaultStr(cfg.AgentName, "ag-ui-agent"))
	cfg.AppName = envOr("BRIDGE_APP_NAME", cfg.AppName)
	cfg.Instruction = envOr("BRIDGE_INSTRUCTION", cfg.Instruction)

	cfg.Anthropic.APIKey = envOr("ANTHROPIC_API_KEY", cfg.Anthropic.APIKey)
	cfg.Anthropic.Model = envOr("ANTHROPIC_MODEL", defaultStr(cfg.Anthropic.Model, "claude-sonnet-4-5"))
	cfg.Anthropic.MaxTokens = envIntOr("ANTHROPIC_MAX_TOKENS", defaultInt(cfg.Anthropic.MaxTokens, 4096))

	cfg.Mongo.URL = envOr("MONGO_URL", cfg.Mongo.URL)
	cfg.Mongo.Database = envOr("MONGO_DATABASE", defaultStr(cfg.Mongo.Database, "agui"))

	cfg.Redis.URL = envOr("REDIS_URL", cfg.Redis.URL)
	cfg.Redis.Password = envOr("REDIS_PASSWORD", cfg.Redis.Password)

	cfg.SessionTimeout = envDurationOr("SESSION_TIMEOUT", parseDurOr(cfg.SessionTimeoutStr, 20*time.Minute))
	cfg.CleanupInterval = envDurationOr("CLEANUP_INTERVAL", parseDurOr(cfg.CleanupIntervalStr, 5*time.Minute))
	cfg.MaxSessionsPerUser = envIntOr("MAX_SESSIONS_PER_USER", cfg.MaxSessionsPerUser)
	cfg.ExecutionTimeout = envDurationOr("EXECUTION_TIMEOUT", parseDurOr(cfg.ExecutionTimeoutStr, 10*time.Minute))
	cfg.MaxConcurrent = envIntOr("MAX_CONCURRENT", defaultInt(cfg.MaxConcurrent, 10))

	if cfg.Anthropic.APIKey == "" {
		return cfg, fmt.Errorf("ANTHROPIC_API_KEY is required")
	}
	return cfg, nil
}

func defaultStr(v, def string) string {
	if v != "" {
		return v
	}
	return def
}

func defaultInt(v, def int) int {
	if v != 0 {
		return v
	}
	return def
}

func parseDurOr(v string, def time.Duration) time.Duration {
	if v == "" {
		return def
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return def
}

// envOr returns the environment variable value or a default.
func envOr(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// envIntOr returns the environment variable as int or a default.
func envIntOr(key string, defaultVal int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultVal
}

// envDurationOr returns the environment variable as duration or a default.
func envDurationOr(key string, defaultVal time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultVal
}
