package models

// ProviderInput is the bounded payload handed to a capability provider for
// one step invocation. History is already pruned per the provider's rule;
// the triggering turn and the state snapshot travel outside the history and
// are therefore never pruned.
//
// Prior exposes results of fully settled batches only. Siblings within the
// same batch never observe each other.
type ProviderInput struct {
	ConversationID string                `json:"conversation_id"`
	Turn           *ConversationTurn     `json:"turn"`
	History        []*ConversationTurn   `json:"history,omitempty"`
	State          *ProjectState         `json:"state,omitempty"`
	Prior          []*ProviderCallResult `json:"prior,omitempty"`
}
