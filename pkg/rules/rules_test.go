package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psmlab/realtime/pkg/alerts"
	"github.com/psmlab/realtime/pkg/metrics"
	"github.com/psmlab/realtime/pkg/store"
)

func setupEngine(t *testing.T) (*Engine, *metrics.Ledger, *alerts.Service, func()) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client, err := store.NewClient(store.Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err)

	ledger := metrics.NewLedger(client)
	alertSvc := alerts.NewService(client)
	engine := NewEngine(ledger, alertSvc, nil)

	cleanup := func() {
		client.Close()
		mr.Close()
	}
	return engine, ledger, alertSvc, cleanup
}

func writeRuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "alert-rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

const sampleRules = `
version: v1
rules:
  - name: likes-spike
    field: total_likes
    op: gt
    threshold: 100
    priority: high
    alert_type: spike
    message: like volume above 100
  - name: sentiment-floor
    field: avg_sentiment
    op: lt
    threshold: 0.5
    priority: low
`

func TestLoadConfig_Valid(t *testing.T) {
	path := writeRuleFile(t, sampleRules)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Len(t, cfg.Rules, 2)
	assert.Equal(t, "likes-spike", cfg.Rules[0].Name)
	assert.Equal(t, 100.0, cfg.Rules[0].Threshold)
}

func TestLoadConfig_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown field": `
rules:
  - {name: r1, field: nope, op: gt, threshold: 1, priority: low}
`,
		"unknown op": `
rules:
  - {name: r1, field: total_likes, op: above, threshold: 1, priority: low}
`,
		"unknown priority": `
rules:
  - {name: r1, field: total_likes, op: gt, threshold: 1, priority: urgent}
`,
		"missing name": `
rules:
  - {field: total_likes, op: gt, threshold: 1, priority: low}
`,
		"duplicate name": `
rules:
  - {name: r1, field: total_likes, op: gt, threshold: 1, priority: low}
  - {name: r1, field: posts_count, op: gt, threshold: 1, priority: low}
`,
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := writeRuleFile(t, content)
			_, err := LoadConfig(path)
			assert.Error(t, err)
		})
	}
}

func TestEvaluate_RaisesOnTrippedRule(t *testing.T) {
	engine, ledger, alertSvc, cleanup := setupEngine(t)
	defer cleanup()

	ctx := context.Background()

	cfg, err := LoadConfig(writeRuleFile(t, sampleRules))
	require.NoError(t, err)
	require.NoError(t, engine.Reload(cfg))

	_, err = ledger.Increment(ctx, "e1", map[string]int64{metrics.FieldTotalLikes: 150}, 0)
	require.NoError(t, err)

	raised, err := engine.Evaluate(ctx, "e1")
	require.NoError(t, err)
	require.Len(t, raised, 1)
	assert.Equal(t, "spike", raised[0].Type)
	assert.Equal(t, alerts.PriorityHigh, raised[0].Priority)
	assert.Equal(t, "like volume above 100", raised[0].Message)

	pending, err := alertSvc.Pending(ctx, "e1", 0, alerts.PriorityLow)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestEvaluate_SkipsMissingFields(t *testing.T) {
	engine, ledger, _, cleanup := setupEngine(t)
	defer cleanup()

	ctx := context.Background()

	// The sentiment-floor rule would trip at 0, but the entity has no
	// avg_sentiment value, so it must be skipped, not zero-filled.
	cfg, err := LoadConfig(writeRuleFile(t, sampleRules))
	require.NoError(t, err)
	require.NoError(t, engine.Reload(cfg))

	_, err = ledger.Increment(ctx, "e1", map[string]int64{metrics.FieldTotalLikes: 10}, 0)
	require.NoError(t, err)

	raised, err := engine.Evaluate(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, raised)
}

func TestEvaluate_UnknownEntity(t *testing.T) {
	engine, _, _, cleanup := setupEngine(t)
	defer cleanup()

	cfg, err := LoadConfig(writeRuleFile(t, sampleRules))
	require.NoError(t, err)
	require.NoError(t, engine.Reload(cfg))

	raised, err := engine.Evaluate(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Empty(t, raised)
}

func TestEvaluateAll_ContinuesPastFailures(t *testing.T) {
	engine, ledger, _, cleanup := setupEngine(t)
	defer cleanup()

	ctx := context.Background()

	cfg, err := LoadConfig(writeRuleFile(t, sampleRules))
	require.NoError(t, err)
	require.NoError(t, engine.Reload(cfg))

	_, err = ledger.Increment(ctx, "e2", map[string]int64{metrics.FieldTotalLikes: 500}, 0)
	require.NoError(t, err)

	raised := engine.EvaluateAll(ctx, []string{"e1", "e2"})
	assert.Len(t, raised, 1)
	assert.Equal(t, "e2", raised[0].EntityID)
}

func TestWatch_HotReload(t *testing.T) {
	engine, _, _, cleanup := setupEngine(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := writeRuleFile(t, sampleRules)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, engine.Reload(cfg))
	require.Equal(t, 2, engine.RuleCount())

	require.NoError(t, engine.Watch(ctx, path))

	shrunk := `
rules:
  - {name: only-rule, field: posts_count, op: gt, threshold: 1, priority: low}
`
	require.NoError(t, os.WriteFile(path, []byte(shrunk), 0644))

	assert.Eventually(t, func() bool {
		return engine.RuleCount() == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func TestWatch_KeepsRulesOnBadReload(t *testing.T) {
	engine, _, _, cleanup := setupEngine(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	path := writeRuleFile(t, sampleRules)
	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NoError(t, engine.Reload(cfg))

	require.NoError(t, engine.Watch(ctx, path))

	require.NoError(t, os.WriteFile(path, []byte("rules: [{name: broken, field: nope, op: gt, threshold: 1, priority: low}]"), 0644))

	// The watcher must reject the broken file and keep the old set.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, engine.RuleCount())
}
