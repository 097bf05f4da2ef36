package codec

import (
	"bytes"
	"encoding/gob"

	"github.com/juhanik/flowstate/pkg/api"
)

// Gob is a binary codec for stores that prefer a compact non-textual
// representation. Callers must ensure that context values are gob-encodable;
// non-standard concrete types need a gob.Register call on both ends.
type Gob struct{}

var _ api.Codec = Gob{}

func (Gob) Encode(state *api.PersistedState) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(state); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (Gob) Decode(data []byte) (*api.PersistedState, error) {
	var st api.PersistedState
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&st); err != nil {
		return nil, err
	}
	if err := ValidateShape(&st); err != nil {
		return nil, err
	}
	return &st, nil
}
