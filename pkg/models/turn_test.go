package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationTurn_HasTag(t *testing.T) {
	turn := &ConversationTurn{Tags: []string{"verify", "reflect"}}

	assert.True(t, turn.HasTag("verify"))
	assert.False(t, turn.HasTag("record"))
	assert.False(t, (&ConversationTurn{}).HasTag("verify"))
}

func TestProjectState_FingerprintIsDeterministic(t *testing.T) {
	state := &ProjectState{
		ConversationID: "conv-1",
		Revision:       3,
		Data:           map[string]any{"phase": "deciding"},
	}

	assert.Equal(t, state.Fingerprint(), state.Fingerprint())
}

func TestProjectState_FingerprintChangesWithRevision(t *testing.T) {
	state := &ProjectState{ConversationID: "conv-1", Revision: 1}
	bumped := &ProjectState{ConversationID: "conv-1", Revision: 2}

	assert.NotEqual(t, state.Fingerprint(), bumped.Fingerprint())
}

func TestProjectState_FingerprintChangesWithData(t *testing.T) {
	state := &ProjectState{Revision: 1, Data: map[string]any{"phase": "exploring"}}
	changed := &ProjectState{Revision: 1, Data: map[string]any{"phase": "deciding"}}

	assert.NotEqual(t, state.Fingerprint(), changed.Fingerprint())
}

func TestWorkflowStep_OutputVisibilityDefaultsToPublic(t *testing.T) {
	assert.Equal(t, VisibilityPublic, (&WorkflowStep{}).OutputVisibility())
	assert.Equal(t, VisibilityInternal, (&WorkflowStep{Visibility: VisibilityInternal}).OutputVisibility())
}
