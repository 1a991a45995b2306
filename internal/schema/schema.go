// Package schema validates decoded JSON documents against the on-disk shapes
// of items and observations. Validation never performs I/O and never panics.
package schema

import (
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/keeptrack/internal/model"
)

// ErrNotObject is returned when the document is not a JSON object.
var ErrNotObject = errors.New("must be a JSON object")

var (
	isString  = validation.By(stringRule)
	isInstant = validation.By(instantRule)
)

var itemRules = validation.Map(
	validation.Key("id", isString),
	validation.Key("name", isString),
	validation.Key("description", isString),
).AllowExtraKeys()

var observationRules = validation.Map(
	validation.Key("id", isString),
	validation.Key("start", isString, isInstant),
	validation.Key("end", isString, isInstant),
).AllowExtraKeys()

// Item checks raw against the item shape and extracts it.
func Item(raw any) (model.Item, error) {
	m, err := object(raw, itemRules)
	if err != nil {
		return model.Item{}, err
	}
	return model.Item{
		ID:          m["id"].(string),
		Name:        m["name"].(string),
		Description: m["description"].(string),
	}, nil
}

// Observation checks raw against the observation shape and extracts it,
// converting start and end to instants.
func Observation(raw any) (model.Observation, error) {
	m, err := object(raw, observationRules)
	if err != nil {
		return model.Observation{}, err
	}
	start, err := model.ParseInstant(m["start"].(string))
	if err != nil {
		return model.Observation{}, err
	}
	end, err := model.ParseInstant(m["end"].(string))
	if err != nil {
		return model.Observation{}, err
	}
	return model.Observation{ID: m["id"].(string), Start: start, End: end}, nil
}

func object(raw any, rules validation.MapRule) (map[string]any, error) {
	m, ok := raw.(map[string]any)
	if !ok || m == nil {
		return nil, ErrNotObject
	}
	if err := validation.Validate(m, rules); err != nil {
		return nil, err
	}
	return m, nil
}

func stringRule(value any) error {
	if _, ok := value.(string); !ok {
		return fmt.Errorf("must be a string, got %T", value)
	}
	return nil
}

func instantRule(value any) error {
	s, _ := value.(string)
	if _, err := model.ParseInstant(s); err != nil {
		return errors.New("must be a UTC RFC 3339 instant")
	}
	return nil
}
