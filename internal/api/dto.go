package api

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/keeptrack/internal/model"
	"github.com/starford/keeptrack/internal/tracker"
)

// CreateItemRequest is the request body for creating an item. Both fields
// must be present; empty strings are allowed.
type CreateItemRequest struct {
	Name        *string `json:"name" example:"Bike"`
	Description *string `json:"description" example:"Commuter bike"`
}

// Validate implements validation.Validatable.
func (r *CreateItemRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Name, validation.NotNil),
		validation.Field(&r.Description, validation.NotNil),
	)
}

func (r *CreateItemRequest) input() tracker.ItemInput {
	return tracker.ItemInput{Name: *r.Name, Description: *r.Description}
}

// CreateObservationRequest is the request body for recording an observation.
type CreateObservationRequest struct {
	Start *string `json:"start" example:"2025-05-06T22:53:40.311020299Z"`
	End   *string `json:"end" example:"2025-05-06T23:30:00Z"`
}

// Validate implements validation.Validatable.
func (r *CreateObservationRequest) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.Start, validation.NotNil),
		validation.Field(&r.End, validation.NotNil),
	)
}

func (r *CreateObservationRequest) input() tracker.ObservationInput {
	return tracker.ObservationInput{Start: *r.Start, End: *r.End}
}

// Item is the item response type (aliased from the domain layer).
type Item = model.Item

// Observation is the observation response type (aliased from the domain layer).
type Observation = model.Observation

// DateBucket is one entry of a grouped observation listing.
type DateBucket = tracker.DateBucket
