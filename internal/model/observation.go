package model

import "time"

// Observation is a timestamped record belonging to exactly one item.
// The owning item is implied by where the observation is stored.
// Start is not required to precede End.
type Observation struct {
	ID    string    `json:"id"`
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
