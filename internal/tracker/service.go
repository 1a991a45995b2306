package tracker

import (
	"context"
	"fmt"
	"sort"

	"github.com/starford/keeptrack/internal/apperr"
	"github.com/starford/keeptrack/internal/ids"
	"github.com/starford/keeptrack/internal/model"
	"github.com/starford/keeptrack/internal/storage"
)

// Event kinds passed to a Notifier.
const (
	KindItemCreated        = "item.created"
	KindObservationCreated = "observation.created"
)

// Notifier is called after a record has been stored. observationID is empty
// for item events.
type Notifier func(kind, itemID, observationID string)

// DateBucket groups the observations whose start falls on Date (UTC).
type DateBucket struct {
	Date         string              `json:"date"`
	Observations []model.Observation `json:"observations"`
}

// Service performs the boundary checks the transports share: id format,
// item existence, and input parsing.
type Service struct {
	store  storage.Storage
	notify Notifier
}

// NewService creates a new tracker service. notify may be nil.
func NewService(store storage.Storage, notify Notifier) *Service {
	return &Service{store: store, notify: notify}
}

// CreateItem stores a new item.
func (s *Service) CreateItem(_ context.Context, in ItemInput) (model.Item, error) {
	item, err := CreateItem(s.store, in)
	if err != nil {
		return model.Item{}, err
	}
	s.emit(KindItemCreated, item.ID, "")
	return item, nil
}

// ListItems returns every readable item.
func (s *Service) ListItems(_ context.Context) ([]model.Item, error) {
	items, err := s.store.Items()
	if err != nil {
		return nil, err
	}
	return nonNilSlice(items), nil
}

// GetItem returns the item stored under id.
func (s *Service) GetItem(ctx context.Context, id string) (model.Item, error) {
	if err := s.CheckItem(ctx, id); err != nil {
		return model.Item{}, err
	}
	item, err := s.store.RetrieveItem(id)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: %w", apperr.ErrMalformed, err)
	}
	return item, nil
}

// RecordObservation stores a new observation for an existing item.
func (s *Service) RecordObservation(ctx context.Context, itemID string, in ObservationInput) (model.Observation, error) {
	if err := s.CheckItem(ctx, itemID); err != nil {
		return model.Observation{}, err
	}
	obs, err := CreateObservation(s.store, itemID, in)
	if err != nil {
		return model.Observation{}, err
	}
	s.emit(KindObservationCreated, itemID, obs.ID)
	return obs, nil
}

// ListObservations returns every readable observation of an existing item.
func (s *Service) ListObservations(ctx context.Context, itemID string) ([]model.Observation, error) {
	if err := s.CheckItem(ctx, itemID); err != nil {
		return nil, err
	}
	obs, err := s.store.Observations(itemID)
	if err != nil {
		return nil, err
	}
	return nonNilSlice(obs), nil
}

// ObservationsByDate buckets the observations of an item by the UTC date of
// their start, oldest date first. Within a bucket observations are ordered
// by start.
func (s *Service) ObservationsByDate(ctx context.Context, itemID string) ([]DateBucket, error) {
	obs, err := s.ListObservations(ctx, itemID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(obs, func(i, j int) bool { return obs[i].Start.Before(obs[j].Start) })

	buckets := []DateBucket{}
	for _, o := range obs {
		date := model.DateString(o.Start)
		if n := len(buckets); n > 0 && buckets[n-1].Date == date {
			buckets[n-1].Observations = append(buckets[n-1].Observations, o)
			continue
		}
		buckets = append(buckets, DateBucket{Date: date, Observations: []model.Observation{o}})
	}
	return buckets, nil
}

// CheckItem reports ErrInvalidID for a malformed id and ErrNotFound for an
// id with no stored item.
func (s *Service) CheckItem(_ context.Context, id string) error {
	if !ids.Valid(id) {
		return apperr.ErrInvalidID
	}
	if !s.store.ItemExists(id) {
		return apperr.ErrNotFound
	}
	return nil
}

func (s *Service) emit(kind, itemID, observationID string) {
	if s.notify != nil {
		s.notify(kind, itemID, observationID)
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
