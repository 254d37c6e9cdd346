package config

import (
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("REDIS_URL", "")
	t.Setenv("AGENTGUARD_REDIS_URL", "")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PolicyPath != "policies/default.yaml" {
		t.Errorf("PolicyPath = %q", cfg.PolicyPath)
	}
	if cfg.ListenAddr != ":8787" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.AnalyzerTimeout != 10*time.Second {
		t.Errorf("AnalyzerTimeout = %v", cfg.AnalyzerTimeout)
	}
	if cfg.TriageTimeout != 30*time.Second {
		t.Errorf("TriageTimeout = %v", cfg.TriageTimeout)
	}
	if cfg.LogLevel != "info" || cfg.JSONLogs {
		t.Errorf("logging defaults: level=%q json=%v", cfg.LogLevel, cfg.JSONLogs)
	}
	if cfg.InsightCapacity != 1000 {
		t.Errorf("InsightCapacity = %d", cfg.InsightCapacity)
	}
	if cfg.WorkerName != "worker-1" {
		t.Errorf("WorkerName = %q", cfg.WorkerName)
	}
	if cfg.LedgerPath != "" || cfg.RedisURL != "" || cfg.AnthropicAPIKey != "" {
		t.Errorf("optional settings not empty: %+v", cfg)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AGENTGUARD_POLICY_PATH", "/etc/agentguard/policy.yaml")
	t.Setenv("AGENTGUARD_LEDGER_PATH", "/var/lib/agentguard/events.db")
	t.Setenv("AGENTGUARD_LISTEN_ADDR", "127.0.0.1:9000")
	t.Setenv("AGENTGUARD_ANALYZER_TIMEOUT", "5s")
	t.Setenv("AGENTGUARD_JSON_LOGS", "true")
	t.Setenv("AGENTGUARD_LOG_LEVEL", "debug")
	t.Setenv("AGENTGUARD_INSIGHT_CAPACITY", "250")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.PolicyPath != "/etc/agentguard/policy.yaml" {
		t.Errorf("PolicyPath = %q", cfg.PolicyPath)
	}
	if cfg.LedgerPath != "/var/lib/agentguard/events.db" {
		t.Errorf("LedgerPath = %q", cfg.LedgerPath)
	}
	if cfg.ListenAddr != "127.0.0.1:9000" {
		t.Errorf("ListenAddr = %q", cfg.ListenAddr)
	}
	if cfg.AnalyzerTimeout != 5*time.Second {
		t.Errorf("AnalyzerTimeout = %v", cfg.AnalyzerTimeout)
	}
	if !cfg.JSONLogs {
		t.Error("JSONLogs not set")
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q", cfg.LogLevel)
	}
	if cfg.InsightCapacity != 250 {
		t.Errorf("InsightCapacity = %d", cfg.InsightCapacity)
	}
}

// The API key and Redis URL keep the names their services conventionally
// use, with and without the AGENTGUARD prefix for the latter.
func TestUnprefixedAliases(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	t.Setenv("REDIS_URL", "redis://localhost:6379/0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AnthropicAPIKey != "sk-test-key" {
		t.Errorf("AnthropicAPIKey = %q", cfg.AnthropicAPIKey)
	}
	if cfg.RedisURL != "redis://localhost:6379/0" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestPrefixedRedisURL(t *testing.T) {
	t.Setenv("AGENTGUARD_REDIS_URL", "redis://stream-host:6379")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RedisURL != "redis://stream-host:6379" {
		t.Errorf("RedisURL = %q", cfg.RedisURL)
	}
}

func TestInvalidLogLevelRejected(t *testing.T) {
	t.Setenv("AGENTGUARD_LOG_LEVEL", "shouty")

	if _, err := Load(); err == nil {
		t.Fatal("Load accepted an invalid log level")
	}
}
