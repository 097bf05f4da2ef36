// Package storage contains the built-in storage adapters. Every adapter
// implements api.Store over the same composite-addressing record (one
// independently-addressable instance per flow × variant × instance), with
// enumeration offered where the backend can list its keys.
//
// Adapters are individually fault-tolerant: a record that fails to decode is
// treated as absent on Get and skipped during List, while backend I/O errors
// propagate to the persister.
package storage

import (
	"encoding/json"

	"github.com/juhanik/flowstate/internal/codec"
	"github.com/juhanik/flowstate/pkg/api"
)

// DefaultPrefix namespaces keys when the caller does not supply one.
const DefaultPrefix = "flowstate"

// resolve fills in the defaults for a store config: JSON codec, default
// colon-delimited key scheme.
func resolve(cfg api.StoreConfig) (api.Codec, api.KeyFunc, string) {
	c := cfg.Codec
	if c == nil {
		c = codec.JSON{}
	}
	prefix := cfg.Prefix
	if prefix == "" {
		prefix = DefaultPrefix
	}
	k := cfg.KeyFunc
	if k == nil {
		k = api.DefaultKeyFunc(prefix)
	}
	return c, k, prefix
}

// envelope is what key-value backends actually write: the codec-encoded state
// wrapped with its composite address, so enumeration never has to parse keys.
type envelope struct {
	FlowID     string `json:"flowId"`
	InstanceID string `json:"instanceId"`
	VariantID  string `json:"variantId"`
	State      []byte `json:"state"`
}

func wrap(c api.Codec, flowID string, state *api.PersistedState, opts api.StoreOptions) ([]byte, error) {
	data, err := c.Encode(state)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{
		FlowID:     flowID,
		InstanceID: opts.InstanceID,
		VariantID:  opts.VariantID,
		State:      data,
	})
}

// unwrap decodes an envelope and its state. A nil state with a nil error
// means the record is corrupt or foreign and should be ignored.
func unwrap(c api.Codec, data []byte) (envelope, *api.PersistedState) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return envelope{}, nil
	}
	st, err := c.Decode(env.State)
	if err != nil {
		return env, nil
	}
	return env, st
}

func record(env envelope, st *api.PersistedState) api.InstanceRecord {
	return api.InstanceRecord{
		FlowID:     env.FlowID,
		InstanceID: env.InstanceID,
		VariantID:  env.VariantID,
		State:      st,
	}
}
