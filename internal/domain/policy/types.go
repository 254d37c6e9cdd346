// Package policy contains the deterministic rule engine: the YAML policy
// schema, glob matchers for tools/paths/domains, risk thresholds, and
// session limits. Evaluation is synchronous and CPU-only; no rule ever
// performs I/O.
package policy

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Decision is the outcome of a policy evaluation.
type Decision string

const (
	// DecisionAllow permits the action to proceed.
	DecisionAllow Decision = "allow"
	// DecisionBlock prevents the action from executing.
	DecisionBlock Decision = "block"
	// DecisionReview permits the action but flags it for human triage.
	DecisionReview Decision = "review"
)

// String returns the string representation of the Decision.
func (d Decision) String() string {
	return string(d)
}

// Violation records which deterministic rule fired and the decision it
// implies.
type Violation struct {
	RuleName string   `json:"rule_name"`
	RuleType string   `json:"rule_type"`
	Detail   string   `json:"detail"`
	Decision Decision `json:"decision"`
}

// SessionLimits caps per-session activity. A session that reaches
// MaxActions total actions or MaxBlocked blocked actions is cut off.
type SessionLimits struct {
	MaxActions int `yaml:"max_actions" validate:"min=0"`
	MaxBlocked int `yaml:"max_blocked" validate:"min=0"`
}

// Config is the policy file schema.
//
// RiskThreshold and ReviewThreshold apply to classifier scores:
// score >= RiskThreshold blocks, score >= ReviewThreshold flags for review.
// The invariant ReviewThreshold < RiskThreshold is enforced at load.
type Config struct {
	Name             string        `yaml:"name"`
	RiskThreshold    float64       `yaml:"risk_threshold" validate:"gte=0,lte=1"`
	ReviewThreshold  float64       `yaml:"review_threshold" validate:"gte=0,lte=1"`
	DenyTools        []string      `yaml:"deny_tools"`
	DenyPathPatterns []string      `yaml:"deny_path_patterns"`
	DenyDomains      []string      `yaml:"deny_domains"`
	ReviewTools      []string      `yaml:"review_tools"`
	AllowTools       []string      `yaml:"allow_tools"`
	SessionLimits    SessionLimits `yaml:"session_limits"`
}

var validate = validator.New()

// DefaultConfig returns the built-in defaults: thresholds 0.75/0.60, no
// rule lists, session limits 1000 actions / 50 blocked.
func DefaultConfig() Config {
	return Config{
		Name:            "default",
		RiskThreshold:   0.75,
		ReviewThreshold: 0.60,
		SessionLimits:   SessionLimits{MaxActions: 1000, MaxBlocked: 50},
	}
}

// Validate checks field ranges and the threshold ordering invariant.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid policy config: %w", err)
	}
	if c.ReviewThreshold >= c.RiskThreshold {
		return fmt.Errorf("review_threshold (%v) must be less than risk_threshold (%v)",
			c.ReviewThreshold, c.RiskThreshold)
	}
	return nil
}

// LoadConfig parses and validates a policy YAML file. Unknown fields are
// rejected. Missing optional fields take their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read policy file: %w", err)
	}
	return ParseConfig(data)
}

// ParseConfig parses and validates policy YAML bytes. The document is
// either the config itself or the config nested under a single "policy"
// key.
func ParseConfig(data []byte) (Config, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return Config{}, fmt.Errorf("parse policy yaml: %w", err)
	}
	if len(root.Content) == 0 {
		cfg := DefaultConfig()
		return cfg, cfg.Validate()
	}
	doc := root.Content[0]
	if nested := nestedPolicyNode(doc); nested != nil {
		doc = nested
	}
	return decodeConfigNode(doc)
}

// nestedPolicyNode returns the value under a sole top-level "policy" key,
// or nil when the document is the top-level form.
func nestedPolicyNode(doc *yaml.Node) *yaml.Node {
	if doc.Kind != yaml.MappingNode || len(doc.Content) != 2 {
		return nil
	}
	if doc.Content[0].Value != "policy" {
		return nil
	}
	return doc.Content[1]
}

// decodeConfigNode strictly decodes a YAML mapping into a Config layered
// over the defaults.
func decodeConfigNode(node *yaml.Node) (Config, error) {
	cfg := DefaultConfig()

	dec := strictDecoder{node: node}
	if err := dec.decode(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// strictDecoder wraps yaml.Node decoding with KnownFields semantics.
// yaml.Node.Decode does not expose KnownFields, so the node is re-encoded
// and decoded through a strict yaml.Decoder.
type strictDecoder struct {
	node *yaml.Node
}

func (d strictDecoder) decode(out any) error {
	raw, err := yaml.Marshal(d.node)
	if err != nil {
		return fmt.Errorf("re-encode policy node: %w", err)
	}
	if err := unmarshalStrict(raw, out); err != nil {
		return fmt.Errorf("parse policy config: %w", err)
	}
	return nil
}

// unmarshalStrict decodes YAML rejecting unknown fields.
func unmarshalStrict(data []byte, out any) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
