// Package config loads runtime settings from the environment. Every knob
// has a default; only the Anthropic API key is required for live
// classification, and its absence degrades to fallback assessments rather
// than failing startup.
package config

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "AGENTGUARD"

// Config is the full runtime configuration.
type Config struct {
	// PolicyPath points at the policy YAML. Empty selects the built-in
	// default policy.
	PolicyPath string `mapstructure:"policy_path"`

	// LedgerPath is the SQLite database file. Empty selects the
	// in-memory ledger.
	LedgerPath string `mapstructure:"ledger_path"`

	// ListenAddr is the read API bind address.
	ListenAddr string `mapstructure:"listen_addr" validate:"required"`

	// RedisURL enables the stream transport when set.
	RedisURL string `mapstructure:"redis_url"`

	AnthropicAPIKey string        `mapstructure:"anthropic_api_key"`
	AnalyzerModel   string        `mapstructure:"analyzer_model"`
	AnalyzerTimeout time.Duration `mapstructure:"analyzer_timeout" validate:"min=0"`
	TriageModel     string        `mapstructure:"triage_model"`
	TriageTimeout   time.Duration `mapstructure:"triage_timeout" validate:"min=0"`

	LogLevel string `mapstructure:"log_level" validate:"oneof=debug info warn warning error"`
	JSONLogs bool   `mapstructure:"json_logs"`

	// InsightCapacity bounds the in-process insight store.
	InsightCapacity int `mapstructure:"insight_capacity" validate:"min=0"`

	// WorkerName identifies this consumer within the enrichment group.
	WorkerName string `mapstructure:"worker_name"`
}

var validate = validator.New()

// Load reads configuration from the environment.
//
// AGENTGUARD_-prefixed variables map to their snake_case keys
// (AGENTGUARD_POLICY_PATH, AGENTGUARD_ANALYZER_TIMEOUT, ...).
// ANTHROPIC_API_KEY and REDIS_URL are honored unprefixed, matching the
// conventions of the services they configure.
func Load() (Config, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()

	v.SetDefault("policy_path", "policies/default.yaml")
	v.SetDefault("ledger_path", "")
	v.SetDefault("listen_addr", ":8787")
	v.SetDefault("analyzer_model", "")
	v.SetDefault("analyzer_timeout", 10*time.Second)
	v.SetDefault("triage_model", "")
	v.SetDefault("triage_timeout", 30*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("json_logs", false)
	v.SetDefault("insight_capacity", 1000)
	v.SetDefault("worker_name", "worker-1")

	// These cross service boundaries and keep their conventional names.
	_ = v.BindEnv("anthropic_api_key", "ANTHROPIC_API_KEY")
	_ = v.BindEnv("redis_url", "REDIS_URL", "AGENTGUARD_REDIS_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
