// Package storage persists items and their observations.
package storage

import (
	"errors"

	"github.com/starford/keeptrack/internal/model"
)

// ErrRetrieveFailed is the single failure reported by RetrieveItem, whether
// the record is absent, unreadable, or malformed.
var ErrRetrieveFailed = errors.New("failed")

// ItemFile is the reserved file name holding an item record inside its directory.
const ItemFile = "item.json"

// Storage is the persistence contract for items and observations.
//
// Single-record lookups report unusable records as ErrRetrieveFailed.
// Listings skip unusable records. Any other returned error is an
// underlying I/O fault.
type Storage interface {
	// StoreItem writes item, replacing any previous record with the same ID.
	StoreItem(item model.Item) error
	// ItemExists reports whether an item record is present for id.
	ItemExists(id string) bool
	// RetrieveItem returns the validated item stored under id.
	RetrieveItem(id string) (model.Item, error)
	// Items returns every readable item.
	Items() ([]model.Item, error)
	// StoreObservation writes obs under the item. The item must already exist.
	StoreObservation(itemID string, obs model.Observation) error
	// Observations returns every readable observation of the item. An error
	// wrapping fs.ErrNotExist is returned when the item does not exist.
	Observations(itemID string) ([]model.Observation, error)
}

var (
	_ Storage = (*FS)(nil)
	_ Storage = (*Memory)(nil)
	_ Storage = (*SQLite)(nil)
)
