// Package rules evaluates threshold rules over entity metrics and raises
// alerts when they trip. Rules live in a yaml file and can be hot-reloaded
// while the monitor runs.
package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/psmlab/realtime/pkg/alerts"
	"github.com/psmlab/realtime/pkg/metrics"
)

// Rule is one threshold check over a metrics field.
type Rule struct {
	Name      string  `yaml:"name"`
	Field     string  `yaml:"field"`
	Op        string  `yaml:"op"`
	Threshold float64 `yaml:"threshold"`
	Priority  string  `yaml:"priority"`
	AlertType string  `yaml:"alert_type"`
	Message   string  `yaml:"message"`
}

// Config is the rule file layout.
type Config struct {
	Version string `yaml:"version"`
	Rules   []Rule `yaml:"rules"`
}

var validOps = map[string]struct{}{
	"gt": {}, "gte": {}, "lt": {}, "lte": {}, "eq": {},
}

var knownFields = func() map[string]struct{} {
	m := make(map[string]struct{}, len(metrics.AllFields))
	for _, f := range metrics.AllFields {
		m[f] = struct{}{}
	}
	return m
}()

// Validate rejects malformed rules. A bad rule file is a config error and
// fails loudly rather than silently skipping rules.
func (c *Config) Validate() error {
	seen := make(map[string]struct{}, len(c.Rules))
	for i, r := range c.Rules {
		if r.Name == "" {
			return fmt.Errorf("rule %d: name is required", i)
		}
		if _, dup := seen[r.Name]; dup {
			return fmt.Errorf("rule %q: duplicate name", r.Name)
		}
		seen[r.Name] = struct{}{}

		if _, ok := knownFields[r.Field]; !ok {
			return fmt.Errorf("rule %q: unknown metrics field %q", r.Name, r.Field)
		}
		if _, ok := validOps[r.Op]; !ok {
			return fmt.Errorf("rule %q: unknown op %q (want gt, gte, lt, lte, eq)", r.Name, r.Op)
		}
		if _, err := alerts.ParsePriority(r.Priority); err != nil {
			return fmt.Errorf("rule %q: %w", r.Name, err)
		}
	}
	return nil
}

// LoadConfig reads and validates a rule file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parse rule config %s: %w", path, err)
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid rule config %s: %w", path, err)
	}
	return &config, nil
}
