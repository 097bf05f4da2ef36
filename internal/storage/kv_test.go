package storage

import (
	"context"
	"sort"
	"testing"

	"github.com/juhanik/flowstate/pkg/api"
)

// mapKV is a minimal KV backend without key listing.
type mapKV struct {
	entries map[string][]byte
}

func newMapKV() *mapKV { return &mapKV{entries: map[string][]byte{}} }

func (m *mapKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	v, ok := m.entries[key]
	return v, ok, nil
}

func (m *mapKV) Set(ctx context.Context, key string, value []byte) error {
	m.entries[key] = value
	return nil
}

func (m *mapKV) Delete(ctx context.Context, key string) error {
	delete(m.entries, key)
	return nil
}

// listableKV additionally satisfies api.KeyLister.
type listableKV struct {
	mapKV
}

func (l *listableKV) Keys(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(l.entries))
	for k := range l.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

func TestKV_BasicOperations(t *testing.T) {
	ctx := context.Background()
	store := NewKV(newMapKV(), api.StoreConfig{})

	if got, err := store.Get(ctx, "flow", api.StoreOptions{}); err != nil || got != nil {
		t.Fatalf("expected nothing before Set, got %+v / %v", got, err)
	}
	if err := store.Set(ctx, "flow", testState("s1"), api.StoreOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, "flow", api.StoreOptions{})
	if err != nil || got == nil || got.StepID != "s1" {
		t.Fatalf("unexpected record: %+v / %v", got, err)
	}
	if err := store.Remove(ctx, "flow", api.StoreOptions{}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got, _ := store.Get(ctx, "flow", api.StoreOptions{}); got != nil {
		t.Fatalf("record survived Remove")
	}
}

func TestKV_EnumerationFollowsBackendCapability(t *testing.T) {
	plain := NewKV(newMapKV(), api.StoreConfig{})
	if api.CanEnumerate(plain) {
		t.Fatalf("store over a plain KV must not claim enumeration")
	}

	listable := NewKV(&listableKV{mapKV: *newMapKV()}, api.StoreConfig{})
	if !api.CanEnumerate(listable) {
		t.Fatalf("store over a key-listing KV should enumerate")
	}
}

func TestKV_ListAndRemoveFlow(t *testing.T) {
	ctx := context.Background()
	store := NewKV(&listableKV{mapKV: *newMapKV()}, api.StoreConfig{})
	enum := store.(api.EnumerableStore)

	_ = store.Set(ctx, "survey", testState("q1"), api.StoreOptions{InstanceID: "i1"})
	_ = store.Set(ctx, "survey", testState("q2"), api.StoreOptions{InstanceID: "i2"})
	_ = store.Set(ctx, "other", testState("x"), api.StoreOptions{})

	records, err := enum.List(ctx, "survey")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}

	if err := enum.RemoveFlow(ctx, "survey"); err != nil {
		t.Fatalf("RemoveFlow failed: %v", err)
	}
	records, _ = enum.List(ctx, "survey")
	if len(records) != 0 {
		t.Fatalf("records survived RemoveFlow: %+v", records)
	}
	if got, _ := store.Get(ctx, "other", api.StoreOptions{}); got == nil {
		t.Fatalf("unrelated flow removed")
	}

	if err := enum.RemoveAll(ctx); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	if got, _ := store.Get(ctx, "other", api.StoreOptions{}); got != nil {
		t.Fatalf("record survived RemoveAll")
	}
}

func TestKV_ListSkipsForeignEntries(t *testing.T) {
	ctx := context.Background()
	backend := &listableKV{mapKV: *newMapKV()}
	store := NewKV(backend, api.StoreConfig{})
	enum := store.(api.EnumerableStore)

	_ = store.Set(ctx, "survey", testState("q1"), api.StoreOptions{InstanceID: "i1"})
	// A foreign value sharing the namespace must not break enumeration.
	backend.entries["unrelated"] = []byte("not an envelope")

	records, err := enum.List(ctx, "survey")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 1 || records[0].InstanceID != "i1" {
		t.Fatalf("unexpected records: %+v", records)
	}
}
