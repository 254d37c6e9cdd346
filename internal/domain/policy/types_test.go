package policy

import (
	"reflect"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestParseConfigTopLevel(t *testing.T) {
	doc := `
name: strict
risk_threshold: 0.8
review_threshold: 0.5
deny_tools:
  - bash
session_limits:
  max_actions: 10
  max_blocked: 2
`
	cfg, err := ParseConfig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Name != "strict" || cfg.RiskThreshold != 0.8 || cfg.ReviewThreshold != 0.5 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if cfg.SessionLimits.MaxActions != 10 || cfg.SessionLimits.MaxBlocked != 2 {
		t.Errorf("session limits: %+v", cfg.SessionLimits)
	}
}

func TestParseConfigNestedPolicyKey(t *testing.T) {
	doc := `
policy:
  name: nested
  deny_tools:
    - bash
  deny_domains:
    - "*.ngrok.io"
`
	cfg, err := ParseConfig([]byte(doc))
	if err != nil {
		t.Fatalf("ParseConfig: %v", err)
	}
	if cfg.Name != "nested" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if len(cfg.DenyTools) != 1 || cfg.DenyTools[0] != "bash" {
		t.Errorf("DenyTools = %v", cfg.DenyTools)
	}
	if len(cfg.DenyDomains) != 1 || cfg.DenyDomains[0] != "*.ngrok.io" {
		t.Errorf("DenyDomains = %v", cfg.DenyDomains)
	}
	// Unspecified fields keep their defaults.
	if cfg.RiskThreshold != 0.75 || cfg.SessionLimits.MaxActions != 1000 {
		t.Errorf("defaults not applied: %+v", cfg)
	}
}

func TestParseConfigRejectsUnknownFields(t *testing.T) {
	if _, err := ParseConfig([]byte("name: x\nbogus_field: true\n")); err == nil {
		t.Error("unknown top-level field accepted")
	}
	if _, err := ParseConfig([]byte("policy:\n  name: x\n  bogus: 1\n")); err == nil {
		t.Error("unknown nested field accepted")
	}
}

func TestParseConfigThresholdInvariant(t *testing.T) {
	if _, err := ParseConfig([]byte("risk_threshold: 0.5\nreview_threshold: 0.5\n")); err == nil {
		t.Error("review_threshold == risk_threshold accepted")
	}
	if _, err := ParseConfig([]byte("risk_threshold: 0.4\nreview_threshold: 0.6\n")); err == nil {
		t.Error("review_threshold > risk_threshold accepted")
	}
	if _, err := ParseConfig([]byte("risk_threshold: 1.5\nreview_threshold: 0.6\n")); err == nil {
		t.Error("out-of-range threshold accepted")
	}
}

func TestParseConfigEmptyDocument(t *testing.T) {
	cfg, err := ParseConfig([]byte(""))
	if err != nil {
		t.Fatalf("ParseConfig(empty): %v", err)
	}
	if !reflect.DeepEqual(cfg, DefaultConfig()) {
		t.Errorf("empty document should yield defaults, got %+v", cfg)
	}
}

// parse -> serialise -> parse must yield an equivalent configuration.
func TestConfigRoundTrip(t *testing.T) {
	doc := `
name: roundtrip
risk_threshold: 0.9
review_threshold: 0.4
deny_tools: [bash, "rm*"]
allow_tools: []
deny_path_patterns: ["~/.ssh/**"]
deny_domains: ["*.requestbin.com"]
review_tools: ["http*"]
session_limits:
  max_actions: 50
  max_blocked: 5
`
	first, err := ParseConfig([]byte(doc))
	if err != nil {
		t.Fatalf("first parse: %v", err)
	}
	out, err := yaml.Marshal(first)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	second, err := ParseConfig(out)
	if err != nil {
		t.Fatalf("second parse: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Errorf("round trip diverged:\nfirst:  %+v\nsecond: %+v", first, second)
	}
}
