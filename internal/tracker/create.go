// Package tracker creates and reads items and observations on top of a
// storage engine.
package tracker

import (
	"fmt"

	"github.com/starford/keeptrack/internal/apperr"
	"github.com/starford/keeptrack/internal/ids"
	"github.com/starford/keeptrack/internal/model"
	"github.com/starford/keeptrack/internal/storage"
)

// ItemInput holds the caller-supplied fields of a new item.
type ItemInput struct {
	Name        string
	Description string
}

// ObservationInput holds the textual instants of a new observation.
type ObservationInput struct {
	Start string
	End   string
}

// CreateItem assigns a fresh id, stores the item and returns it as built.
func CreateItem(store storage.Storage, in ItemInput) (model.Item, error) {
	item := model.Item{
		ID:          ids.New(),
		Name:        in.Name,
		Description: in.Description,
	}
	if err := store.StoreItem(item); err != nil {
		return model.Item{}, err
	}
	return item, nil
}

// CreateObservation parses the instants, assigns a fresh id and stores the
// observation under itemID. The item is assumed to exist.
func CreateObservation(store storage.Storage, itemID string, in ObservationInput) (model.Observation, error) {
	start, err := model.ParseInstant(in.Start)
	if err != nil {
		return model.Observation{}, fmt.Errorf("%w: start: %w", apperr.ErrInvalidInput, err)
	}
	end, err := model.ParseInstant(in.End)
	if err != nil {
		return model.Observation{}, fmt.Errorf("%w: end: %w", apperr.ErrInvalidInput, err)
	}
	obs := model.Observation{ID: ids.New(), Start: start, End: end}
	if err := store.StoreObservation(itemID, obs); err != nil {
		return model.Observation{}, err
	}
	return obs, nil
}
