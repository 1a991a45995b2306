package storage

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/starford/keeptrack/internal/model"
	"github.com/starford/keeptrack/internal/schema"
)

type observationRecord struct {
	ID    string `json:"id"`
	Start string `json:"start"`
	End   string `json:"end"`
}

// EncodeItem renders the on-disk form of an item.
func EncodeItem(item model.Item) ([]byte, error) {
	return encode(item)
}

// EncodeObservation renders the on-disk form of an observation.
func EncodeObservation(obs model.Observation) ([]byte, error) {
	return encode(observationRecord{
		ID:    obs.ID,
		Start: model.FormatInstant(obs.Start),
		End:   model.FormatInstant(obs.End),
	})
}

// encode writes 2-space indented JSON without HTML escaping or a trailing
// newline.
func encode(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("storage: encode: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func decodeItem(data []byte) (model.Item, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.Item{}, err
	}
	return schema.Item(raw)
}

func decodeObservation(data []byte) (model.Observation, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return model.Observation{}, err
	}
	return schema.Observation(raw)
}
