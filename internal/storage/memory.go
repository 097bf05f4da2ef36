package storage

import (
	"context"
	"sort"
	"sync"

	"github.com/juhanik/flowstate/pkg/api"
)

// Memory is a goroutine-safe Store backed by a map. Non-durable; intended for
// tests and ephemeral flows.
type Memory struct {
	mu      sync.RWMutex
	entries map[string][]byte

	codec api.Codec
	key   api.KeyFunc
}

var _ api.EnumerableStore = (*Memory)(nil)

// NewMemory creates an in-memory store.
func NewMemory(cfg api.StoreConfig) *Memory {
	c, k, _ := resolve(cfg)
	return &Memory{
		entries: make(map[string][]byte),
		codec:   c,
		key:     k,
	}
}

func (m *Memory) Get(ctx context.Context, flowID string, opts api.StoreOptions) (*api.PersistedState, error) {
	m.mu.RLock()
	data, ok := m.entries[m.key(flowID, opts.InstanceID, opts.VariantID)]
	m.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	_, st := unwrap(m.codec, data)
	return st, nil
}

func (m *Memory) Set(ctx context.Context, flowID string, state *api.PersistedState, opts api.StoreOptions) error {
	data, err := wrap(m.codec, flowID, state, opts)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.entries[m.key(flowID, opts.InstanceID, opts.VariantID)] = data
	m.mu.Unlock()
	return nil
}

func (m *Memory) Remove(ctx context.Context, flowID string, opts api.StoreOptions) error {
	m.mu.Lock()
	delete(m.entries, m.key(flowID, opts.InstanceID, opts.VariantID))
	m.mu.Unlock()
	return nil
}

func (m *Memory) RemoveFlow(ctx context.Context, flowID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, data := range m.entries {
		env, _ := unwrap(m.codec, data)
		if env.FlowID == flowID {
			delete(m.entries, key)
		}
	}
	return nil
}

func (m *Memory) RemoveAll(ctx context.Context) error {
	m.mu.Lock()
	m.entries = make(map[string][]byte)
	m.mu.Unlock()
	return nil
}

func (m *Memory) List(ctx context.Context, flowID string) ([]api.InstanceRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []api.InstanceRecord
	for _, data := range m.entries {
		env, st := unwrap(m.codec, data)
		if st == nil || env.FlowID != flowID {
			continue
		}
		records = append(records, record(env, st))
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].VariantID != records[j].VariantID {
			return records[i].VariantID < records[j].VariantID
		}
		return records[i].InstanceID < records[j].InstanceID
	})
	return records, nil
}
