package schema

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/starford/keeptrack/internal/model"
)

func decode(t *testing.T, doc string) any {
	t.Helper()
	var v any
	require.NoError(t, json.Unmarshal([]byte(doc), &v))
	return v
}

func TestItemAccepts(t *testing.T) {
	got, err := Item(decode(t, `{"id":"a1","name":"Bike","description":"red"}`))
	require.NoError(t, err)
	assert.Equal(t, model.Item{ID: "a1", Name: "Bike", Description: "red"}, got)
}

func TestItemAcceptsEmptyStringsAndExtraKeys(t *testing.T) {
	got, err := Item(decode(t, `{"id":"a1","name":"","description":"","color":"blue"}`))
	require.NoError(t, err)
	assert.Equal(t, model.Item{ID: "a1"}, got)
}

func TestItemRejects(t *testing.T) {
	docs := map[string]string{
		"missing description": `{"id":"a1","name":"Bike"}`,
		"numeric name":        `{"id":"a1","name":3,"description":"x"}`,
		"null id":             `{"id":null,"name":"n","description":"x"}`,
		"nested object":       `{"id":{"v":1},"name":"n","description":"x"}`,
		"array":               `[{"id":"a1","name":"n","description":"x"}]`,
		"string":              `"item"`,
		"null":                `null`,
		"empty object":        `{}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			got, err := Item(decode(t, doc))
			assert.Error(t, err)
			assert.Equal(t, model.Item{}, got)
		})
	}
}

func TestItemRejectsNonJSONValues(t *testing.T) {
	_, err := Item(nil)
	assert.ErrorIs(t, err, ErrNotObject)
	_, err = Item(map[string]any(nil))
	assert.ErrorIs(t, err, ErrNotObject)
	_, err = Item(42)
	assert.ErrorIs(t, err, ErrNotObject)
}

func TestObservationAccepts(t *testing.T) {
	got, err := Observation(decode(t, `{
  "id": "o1",
  "start": "2025-05-06T22:53:40.311020299Z",
  "end": "2025-05-06T23:00:00Z"
}`))
	require.NoError(t, err)
	assert.Equal(t, "o1", got.ID)
	assert.True(t, got.Start.Equal(time.Date(2025, 5, 6, 22, 53, 40, 311020299, time.UTC)))
	assert.True(t, got.End.Equal(time.Date(2025, 5, 6, 23, 0, 0, 0, time.UTC)))
}

func TestObservationAllowsEndBeforeStart(t *testing.T) {
	got, err := Observation(decode(t, `{"id":"o1","start":"2025-05-07T00:00:00Z","end":"2025-05-06T00:00:00Z"}`))
	require.NoError(t, err)
	assert.True(t, got.End.Before(got.Start))
}

func TestObservationRejects(t *testing.T) {
	docs := map[string]string{
		"missing end":      `{"id":"o1","start":"2025-05-06T22:53:40Z"}`,
		"missing id":       `{"start":"2025-05-06T22:53:40Z","end":"2025-05-06T22:53:40Z"}`,
		"numeric start":    `{"id":"o1","start":1746571620,"end":"2025-05-06T22:53:40Z"}`,
		"unparseable end":  `{"id":"o1","start":"2025-05-06T22:53:40Z","end":"tomorrow"}`,
		"offset start":     `{"id":"o1","start":"2025-05-06T22:53:40+01:00","end":"2025-05-06T22:53:40Z"}`,
		"comma fraction":   `{"id":"o1","start":"2025-05-06T22:53:40,5Z","end":"2025-05-06T22:53:40Z"}`,
		"long fraction":    `{"id":"o1","start":"2025-05-06T22:53:40Z","end":"2025-05-06T22:53:40.1234567891234Z"}`,
		"item document":    `{"id":"a1","name":"n","description":"x"}`,
		"top-level number": `7`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			got, err := Observation(decode(t, doc))
			assert.Error(t, err)
			assert.Equal(t, model.Observation{}, got)
		})
	}
}
