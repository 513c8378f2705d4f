package models

// PruneMode selects the history-bounding policy applied before a provider
// call.
type PruneMode string

const (
	// PruneModeFixedWindow keeps the last N turns, chronological.
	PruneModeFixedWindow PruneMode = "fixed-window"
	// PruneModeFilterTag keeps turns carrying a structural tag, capped at a
	// safety maximum.
	PruneModeFilterTag PruneMode = "filter-tag"
	// PruneModeNone passes the full history through. Used sparingly, for
	// providers that need global context.
	PruneModeNone PruneMode = "none"
)

// PruningRule is the per-provider history-bounding policy, defined in static
// configuration.
type PruningRule struct {
	Provider string    `json:"provider"          validate:"required"`
	Mode     PruneMode `json:"mode"              validate:"required,oneof=fixed-window filter-tag none"`
	Window   int       `json:"window,omitempty"  validate:"min=0"`
	Tag      string    `json:"tag,omitempty"`
	Cap      int       `json:"cap,omitempty"     validate:"min=0"`
}
