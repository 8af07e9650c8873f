package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/psmlab/realtime/pkg/alerts"
	"github.com/psmlab/realtime/pkg/metrics"
	"github.com/psmlab/realtime/pkg/observability"
)

type compiledRule struct {
	Rule
	priority alerts.Priority
}

// Engine evaluates a rule set against entity metric snapshots.
type Engine struct {
	ledger *metrics.Ledger
	alerts *alerts.Service
	log    *observability.Logger

	mu    sync.RWMutex
	rules []compiledRule
}

// NewEngine creates a rule engine. The initial rule set may be nil.
func NewEngine(ledger *metrics.Ledger, alertSvc *alerts.Service, log *observability.Logger) *Engine {
	if log == nil {
		log = observability.Nop()
	}
	return &Engine{ledger: ledger, alerts: alertSvc, log: log}
}

// Reload swaps in a validated rule set. In-flight evaluations finish on the
// old set.
func (e *Engine) Reload(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	compiled := make([]compiledRule, len(cfg.Rules))
	for i, r := range cfg.Rules {
		pri, err := alerts.ParsePriority(r.Priority)
		if err != nil {
			return err
		}
		compiled[i] = compiledRule{Rule: r, priority: pri}
	}

	e.mu.Lock()
	e.rules = compiled
	e.mu.Unlock()

	e.log.WithField("rules", len(compiled)).Info("rule set loaded")
	return nil
}

// RuleCount returns the size of the active rule set.
func (e *Engine) RuleCount() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.rules)
}

func asFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func (r compiledRule) tripped(value float64) bool {
	switch r.Op {
	case "gt":
		return value > r.Threshold
	case "gte":
		return value >= r.Threshold
	case "lt":
		return value < r.Threshold
	case "lte":
		return value <= r.Threshold
	case "eq":
		return value == r.Threshold
	}
	return false
}

// Evaluate snapshots the entity's metrics and raises one alert per tripped
// rule. Fields the entity has no value for are skipped, not treated as zero.
func (e *Engine) Evaluate(ctx context.Context, entityID string) ([]alerts.Alert, error) {
	snapshot, err := e.ledger.Snapshot(ctx, entityID)
	if err != nil {
		return nil, err
	}
	if len(snapshot) == 0 {
		return nil, nil
	}

	e.mu.RLock()
	active := e.rules
	e.mu.RUnlock()

	var raised []alerts.Alert
	for _, rule := range active {
		raw, ok := snapshot[rule.Field]
		if !ok {
			continue
		}
		value, ok := asFloat(raw)
		if !ok {
			e.log.WithFields(map[string]interface{}{
				"rule":  rule.Name,
				"field": rule.Field,
			}).Warn("metrics field is not numeric, skipping rule")
			continue
		}
		if !rule.tripped(value) {
			continue
		}

		message := rule.Message
		if message == "" {
			message = fmt.Sprintf("%s %s %s %g (observed %g)", rule.Name, rule.Field, rule.Op, rule.Threshold, value)
		}
		alertType := rule.AlertType
		if alertType == "" {
			alertType = "threshold"
		}

		alert, err := e.alerts.Raise(ctx, entityID, alertType, message, rule.priority, map[string]interface{}{
			"rule":      rule.Name,
			"field":     rule.Field,
			"value":     value,
			"threshold": rule.Threshold,
		})
		if err != nil {
			return raised, err
		}
		raised = append(raised, alert)
	}
	return raised, nil
}

// EvaluateAll runs Evaluate over a batch of entities, carrying on past
// per-entity failures so one broken entity cannot starve the rest.
func (e *Engine) EvaluateAll(ctx context.Context, entityIDs []string) []alerts.Alert {
	var raised []alerts.Alert
	for _, id := range entityIDs {
		alerts, err := e.Evaluate(ctx, id)
		if err != nil {
			e.log.WithError(err).WithField("entity_id", id).Warn("rule evaluation failed")
			continue
		}
		raised = append(raised, alerts...)
	}
	return raised
}

// Watch reloads the rule file on change until ctx is done. A reload that
// fails validation is logged and the previous rule set stays active.
func (e *Engine) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	// Watch the directory: editors replace files rather than writing in place.
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if filepath.Clean(event.Name) != filepath.Clean(path) {
					continue
				}
				cfg, err := LoadConfig(path)
				if err != nil {
					e.log.WithError(err).Warn("rule reload failed, keeping previous rules")
					continue
				}
				if err := e.Reload(cfg); err != nil {
					e.log.WithError(err).Warn("rule reload failed, keeping previous rules")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				e.log.WithError(err).Warn("rule watcher error")
			}
		}
	}()
	return nil
}
