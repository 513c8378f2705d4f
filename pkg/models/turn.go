// Package models defines the core domain models for capability-provider coordination.
package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// Role identifies the author of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ConversationTurn is a single entry in a conversation history. Turns are
// owned by the external state store and consumed read-only here.
type ConversationTurn struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"      validate:"required,oneof=user assistant system"`
	Content   string    `json:"content"   validate:"required"`
	Timestamp time.Time `json:"timestamp"`
	Tags      []string  `json:"tags,omitempty"`
}

// HasTag reports whether the turn carries the given structural tag.
func (t *ConversationTurn) HasTag(tag string) bool {
	return slices.Contains(t.Tags, tag)
}

// ProjectState is the mutable external state attached to a conversation.
// Revision is bumped by the state store on every state mutation.
type ProjectState struct {
	ConversationID string         `json:"conversation_id"`
	Revision       int64          `json:"revision"`
	Data           map[string]any `json:"data,omitempty"`
}

// Fingerprint returns a stable hash of the state. Cache entries keyed on a
// fingerprint stop matching as soon as the underlying state mutates.
func (s *ProjectState) Fingerprint() string {
	h := sha256.New()

	if s != nil {
		fmt.Fprintf(h, "%d\x00", s.Revision)

		if data, err := json.Marshal(s.Data); err == nil {
			h.Write(data)
		}
	}

	return hex.EncodeToString(h.Sum(nil))
}
