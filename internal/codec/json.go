// Package codec provides the built-in serializers for persisted flow states:
// a JSON codec (the default) and a gob codec. Both apply a structural guard on
// decode so corrupt or foreign data yields nil instead of a panic somewhere
// downstream.
package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"github.com/juhanik/flowstate/pkg/api"
)

// stateSchema is the wire shape of a persisted record. Fields beyond the
// required set are allowed so extension metadata round-trips.
const stateSchema = `{
	"type": "object",
	"required": ["stepId", "context", "history", "status"],
	"properties": {
		"stepId":      {"type": "string", "minLength": 1},
		"context":     {"type": "object"},
		"path":        {"type": "array", "items": {"$ref": "#/definitions/visit"}},
		"history":     {"type": "array", "items": {"$ref": "#/definitions/visit"}},
		"status":      {"enum": ["active", "complete"]},
		"startedAt":   {"type": "number"},
		"completedAt": {"type": "number"},
		"__meta":      {"type": "object"}
	},
	"definitions": {
		"visit": {
			"type": "object",
			"required": ["stepId", "startedAt"],
			"properties": {
				"stepId":      {"type": "string"},
				"startedAt":   {"type": "number"},
				"completedAt": {"type": "number"},
				"action":      {"type": "string"}
			}
		}
	}
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(stateSchema))
	})
	return schema, schemaErr
}

// JSON is the default codec: a textual representation with a structural
// type guard on decode.
type JSON struct{}

var _ api.Codec = JSON{}

func (JSON) Encode(state *api.PersistedState) ([]byte, error) {
	return json.Marshal(state)
}

// Decode validates data against the persisted record schema before
// unmarshalling. Any parse failure or schema violation yields (nil, err);
// stores and the persister treat that as "no usable record".
func (JSON) Decode(data []byte) (*api.PersistedState, error) {
	s, err := compiledSchema()
	if err != nil {
		return nil, err
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return nil, fmt.Errorf("not a persisted flow state: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return nil, fmt.Errorf("persisted flow state rejected: %s", strings.Join(msgs, "; "))
	}
	var st api.PersistedState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

// ValidateShape applies the decoded-side structural guard to an in-memory
// state. The persister uses it to keep migration functions inside their
// domain.
func ValidateShape(st *api.PersistedState) error {
	if st == nil {
		return fmt.Errorf("nil state")
	}
	if st.StepID == "" {
		return fmt.Errorf("empty stepId")
	}
	if st.Context == nil {
		return fmt.Errorf("nil context")
	}
	if st.Status != api.StatusActive && st.Status != api.StatusComplete {
		return fmt.Errorf("unknown status %q", st.Status)
	}
	return nil
}
