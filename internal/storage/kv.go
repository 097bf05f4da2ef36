package storage

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/juhanik/flowstate/pkg/api"
)

// kvStore adapts any api.KV backend to the Store contract.
type kvStore struct {
	kv    api.KV
	codec api.Codec
	key   api.KeyFunc
}

// enumerableKVStore adds enumeration when the backend can list its keys.
type enumerableKVStore struct {
	kvStore
	lister api.KeyLister
}

var (
	_ api.Store           = (*kvStore)(nil)
	_ api.EnumerableStore = (*enumerableKVStore)(nil)
)

// NewKV wraps an arbitrary key-value backend. The returned store supports
// enumeration exactly when kv also implements api.KeyLister.
func NewKV(kv api.KV, cfg api.StoreConfig) api.Store {
	c, k, _ := resolve(cfg)
	base := kvStore{kv: kv, codec: c, key: k}
	if lister, ok := kv.(api.KeyLister); ok {
		return &enumerableKVStore{kvStore: base, lister: lister}
	}
	return &base
}

func (s *kvStore) Get(ctx context.Context, flowID string, opts api.StoreOptions) (*api.PersistedState, error) {
	data, found, err := s.kv.Get(ctx, s.key(flowID, opts.InstanceID, opts.VariantID))
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, nil
	}
	_, st := unwrap(s.codec, data)
	return st, nil
}

func (s *kvStore) Set(ctx context.Context, flowID string, state *api.PersistedState, opts api.StoreOptions) error {
	data, err := wrap(s.codec, flowID, state, opts)
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key(flowID, opts.InstanceID, opts.VariantID), data)
}

func (s *kvStore) Remove(ctx context.Context, flowID string, opts api.StoreOptions) error {
	return s.kv.Delete(ctx, s.key(flowID, opts.InstanceID, opts.VariantID))
}

func (s *enumerableKVStore) RemoveFlow(ctx context.Context, flowID string) error {
	return s.each(ctx, func(key string, env envelope) error {
		if env.FlowID == flowID {
			return s.kv.Delete(ctx, key)
		}
		return nil
	})
}

func (s *enumerableKVStore) RemoveAll(ctx context.Context) error {
	keys, err := s.lister.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := s.kv.Delete(ctx, key); err != nil {
			return err
		}
	}
	return nil
}

func (s *enumerableKVStore) List(ctx context.Context, flowID string) ([]api.InstanceRecord, error) {
	var records []api.InstanceRecord
	err := s.each(ctx, func(key string, env envelope) error {
		if env.FlowID != flowID {
			return nil
		}
		st, derr := s.codec.Decode(env.State)
		if derr != nil || st == nil {
			return nil
		}
		records = append(records, record(env, st))
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].VariantID != records[j].VariantID {
			return records[i].VariantID < records[j].VariantID
		}
		return records[i].InstanceID < records[j].InstanceID
	})
	return records, nil
}

// each reads every listed key sequentially, skipping individual records that
// fail to read or parse.
func (s *enumerableKVStore) each(ctx context.Context, fn func(key string, env envelope) error) error {
	keys, err := s.lister.Keys(ctx)
	if err != nil {
		return err
	}
	for _, key := range keys {
		data, found, gerr := s.kv.Get(ctx, key)
		if gerr != nil || !found {
			continue
		}
		var env envelope
		if json.Unmarshal(data, &env) != nil {
			continue
		}
		if ferr := fn(key, env); ferr != nil {
			return ferr
		}
	}
	return nil
}
