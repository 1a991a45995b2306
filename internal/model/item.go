// Package model defines the domain types for KeepTrack.
package model

// Item is a trackable entity. Its ID addresses every record stored for it.
type Item struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}
