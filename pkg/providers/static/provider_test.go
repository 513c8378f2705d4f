package static

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brainstormhq/conductor/pkg/models"
)

func TestProvider_ScriptedOutput(t *testing.T) {
	provider, err := NewProvider(map[string]any{
		"outputs": map[string]any{
			"verify": map[string]any{"verdict": "consistent"},
		},
		"estimated_tokens": float64(25),
	})
	require.NoError(t, err)

	output, err := provider.Invoke(context.Background(), "verify", nil)

	require.NoError(t, err)
	assert.Equal(t, "consistent", output.Output["verdict"])
	assert.Equal(t, 25, output.EstimatedTokens)
	assert.Equal(t, models.VisibilityPublic, output.Visibility)
	assert.Equal(t, int64(1), provider.Invocations())
}

func TestProvider_ScriptedFailure(t *testing.T) {
	provider, err := NewProvider(map[string]any{
		"outputs":      map[string]any{"verify": map[string]any{}},
		"fail_actions": []any{"verify"},
	})
	require.NoError(t, err)

	_, err = provider.Invoke(context.Background(), "verify", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "scripted failure")
}

func TestProvider_UnknownActionFails(t *testing.T) {
	provider, err := NewProvider(map[string]any{})
	require.NoError(t, err)

	_, err = provider.Invoke(context.Background(), "mystery", nil)

	require.Error(t, err)
}

func TestProvider_InternalVisibility(t *testing.T) {
	provider, err := NewProvider(map[string]any{
		"outputs":    map[string]any{"record": map[string]any{"ok": true}},
		"visibility": "internal",
	})
	require.NoError(t, err)

	output, err := provider.Invoke(context.Background(), "record", nil)

	require.NoError(t, err)
	assert.Equal(t, models.VisibilityInternal, output.Visibility)
}

func TestProvider_DelayHonorsContext(t *testing.T) {
	provider, err := NewProvider(map[string]any{
		"outputs":  map[string]any{"slow": map[string]any{}},
		"delay_ms": float64(5000),
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = provider.Invoke(ctx, "slow", nil)

	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestProvider_RejectsNonObjectOutput(t *testing.T) {
	_, err := NewProvider(map[string]any{
		"outputs": map[string]any{"verify": "not an object"},
	})

	require.Error(t, err)
}
