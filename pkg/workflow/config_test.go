package workflow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainstormhq/conductor/pkg/models"
)

const validConfig = `{
  "providers": [
    {"name": "reflect", "type": "static", "ttl_ms": 60000,
     "pruning": {"mode": "fixed-window", "window": 10}},
    {"name": "record", "type": "static", "ttl_ms": 0,
     "pruning": {"mode": "none"}},
    {"name": "verify", "type": "static", "ttl_ms": 120000}
  ],
  "workflows": [
    {"intent": "deciding", "steps": [
      {"provider": "reflect", "action": "reflect"},
      {"provider": "record", "action": "record", "visibility": "internal"},
      {"provider": "verify", "action": "verify", "parallel": true,
       "conditions": [{"kind": "min-confidence", "threshold": 50}]}
    ]}
  ],
  "router": {
    "default_intent": "deciding",
    "keywords": [{"intent": "deciding", "keywords": ["decide"]}]
  }
}`

func TestParseConfig_Valid(t *testing.T) {
	config, err := ParseConfig([]byte(validConfig))

	require.NoError(t, err)
	require.Len(t, config.Providers, 3)
	require.Len(t, config.Workflows, 1)

	steps := config.Workflows[0].Steps
	require.Len(t, steps, 3)
	assert.True(t, steps[2].Parallel)
	assert.Equal(t, models.VisibilityInternal, steps[1].OutputVisibility())
	require.Len(t, steps[2].Conditions, 1)
	assert.Equal(t, models.ConditionMinConfidence, steps[2].Conditions[0].Kind)
}

func TestParseConfig_NormalizesPruningProvider(t *testing.T) {
	config, err := ParseConfig([]byte(validConfig))

	require.NoError(t, err)
	rules := config.PruningRules()
	require.Len(t, rules, 2)
	assert.Equal(t, "reflect", rules[0].Provider)
	assert.Equal(t, "record", rules[1].Provider)
}

func TestParseConfig_TTLs(t *testing.T) {
	config, err := ParseConfig([]byte(validConfig))

	require.NoError(t, err)
	ttls := config.TTLs()
	assert.Equal(t, time.Minute, ttls["reflect"])
	assert.Equal(t, time.Duration(0), ttls["record"])
	assert.Equal(t, 2*time.Minute, ttls["verify"])
}

func TestParseConfig_RejectsInvalidJSON(t *testing.T) {
	_, err := ParseConfig([]byte("{not json"))

	require.Error(t, err)
}

func TestParseConfig_SchemaRejectsMissingWorkflows(t *testing.T) {
	_, err := ParseConfig([]byte(`{"providers": [{"name": "a", "type": "static"}]}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "schema")
}

func TestParseConfig_SchemaRejectsUnknownConditionKind(t *testing.T) {
	_, err := ParseConfig([]byte(`{
	  "providers": [{"name": "a", "type": "static"}],
	  "workflows": [{"intent": "x", "steps": [
	    {"provider": "a", "action": "go", "conditions": [{"kind": "sometimes"}]}
	  ]}]
	}`))

	require.Error(t, err)
}

func TestParseConfig_RejectsUndeclaredStepProvider(t *testing.T) {
	_, err := ParseConfig([]byte(`{
	  "providers": [{"name": "a", "type": "static"}],
	  "workflows": [{"intent": "x", "steps": [{"provider": "ghost", "action": "go"}]}]
	}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestParseConfig_RejectsDuplicateProviderNames(t *testing.T) {
	_, err := ParseConfig([]byte(`{
	  "providers": [
	    {"name": "a", "type": "static"},
	    {"name": "a", "type": "http"}
	  ],
	  "workflows": [{"intent": "x", "steps": [{"provider": "a", "action": "go"}]}]
	}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate provider")
}

func TestParseConfig_RejectsDuplicateIntents(t *testing.T) {
	_, err := ParseConfig([]byte(`{
	  "providers": [{"name": "a", "type": "static"}],
	  "workflows": [
	    {"intent": "x", "steps": [{"provider": "a", "action": "go"}]},
	    {"intent": "x", "steps": [{"provider": "a", "action": "go"}]}
	  ]
	}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate workflow intent")
}

func TestParseConfig_RejectsUndeclaredRouterProvider(t *testing.T) {
	_, err := ParseConfig([]byte(`{
	  "providers": [{"name": "a", "type": "static"}],
	  "workflows": [{"intent": "x", "steps": [{"provider": "a", "action": "go"}]}],
	  "router": {"provider": "classifier"}
	}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "classifier")
}

func TestParseConfig_RejectsUnknownRouterDefaultIntent(t *testing.T) {
	_, err := ParseConfig([]byte(`{
	  "providers": [{"name": "a", "type": "static"}],
	  "workflows": [{"intent": "x", "steps": [{"provider": "a", "action": "go"}]}],
	  "router": {"default_intent": "y"}
	}`))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "default intent")
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("does-not-exist.json")

	require.Error(t, err)
}
