package storage

import (
	"fmt"
	"os"
	"sync"

	"github.com/starford/keeptrack/internal/model"
)

// Memory implements Storage in process memory. It keeps the encoded
// documents, so reads go through the same validation as FS.
type Memory struct {
	mu    sync.RWMutex
	order []string
	items map[string]*memoryItem
}

type memoryItem struct {
	doc          []byte
	obsOrder     []string
	observations map[string][]byte
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{items: make(map[string]*memoryItem)}
}

// StoreItem adds the item or replaces its document, keeping its position.
func (m *Memory) StoreItem(item model.Item) error {
	doc, err := EncodeItem(item)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.items[item.ID]; ok {
		e.doc = doc
		return nil
	}
	m.items[item.ID] = &memoryItem{doc: doc, observations: make(map[string][]byte)}
	m.order = append(m.order, item.ID)
	return nil
}

// ItemExists reports whether an item with id has been stored.
func (m *Memory) ItemExists(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.items[id]
	return ok
}

// RetrieveItem decodes and validates the stored document for id.
func (m *Memory) RetrieveItem(id string) (model.Item, error) {
	m.mu.RLock()
	e, ok := m.items[id]
	var doc []byte
	if ok {
		doc = e.doc
	}
	m.mu.RUnlock()
	if !ok {
		return model.Item{}, fmt.Errorf("%w: %s: %w", ErrRetrieveFailed, id, os.ErrNotExist)
	}
	item, err := decodeItem(doc)
	if err != nil {
		return model.Item{}, fmt.Errorf("%w: decode %s: %w", ErrRetrieveFailed, id, err)
	}
	return item, nil
}

// Items returns every retrievable item in insertion order.
func (m *Memory) Items() ([]model.Item, error) {
	m.mu.RLock()
	ids := append([]string(nil), m.order...)
	m.mu.RUnlock()

	items := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		item, err := m.RetrieveItem(id)
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	return items, nil
}

// StoreObservation overwrites the observation under an existing item.
func (m *Memory) StoreObservation(itemID string, obs model.Observation) error {
	doc, err := EncodeObservation(obs)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.items[itemID]
	if !ok {
		return fmt.Errorf("storage: item %s: %w", itemID, os.ErrNotExist)
	}
	if _, seen := e.observations[obs.ID]; !seen {
		e.obsOrder = append(e.obsOrder, obs.ID)
	}
	e.observations[obs.ID] = doc
	return nil
}

// Observations returns the valid observations of an item in insertion order.
func (m *Memory) Observations(itemID string) ([]model.Observation, error) {
	m.mu.RLock()
	e, ok := m.items[itemID]
	if !ok {
		m.mu.RUnlock()
		return nil, fmt.Errorf("storage: list observations of %s: %w", itemID, os.ErrNotExist)
	}
	docs := make([][]byte, 0, len(e.obsOrder))
	for _, id := range e.obsOrder {
		docs = append(docs, e.observations[id])
	}
	m.mu.RUnlock()

	out := make([]model.Observation, 0, len(docs))
	for _, doc := range docs {
		obs, err := decodeObservation(doc)
		if err != nil {
			continue
		}
		out = append(out, obs)
	}
	return out, nil
}
