package storage

import (
	"context"
	"testing"

	"github.com/juhanik/flowstate/pkg/api"
)

func testState(stepID string) *api.PersistedState {
	return &api.PersistedState{
		FlowState: api.FlowState{
			StepID:  stepID,
			Context: map[string]any{"k": "v"},
			Path:    []api.StepVisit{{StepID: stepID, StartedAt: 1}},
			History: []api.StepVisit{{StepID: stepID, StartedAt: 1}},
			Status:  api.StatusActive,
		},
	}
}

func TestMemory_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(api.StoreConfig{})

	got, err := store.Get(ctx, "onboarding", api.StoreOptions{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil for missing record, got %+v", got)
	}

	if err := store.Set(ctx, "onboarding", testState("welcome"), api.StoreOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}

	got, err = store.Get(ctx, "onboarding", api.StoreOptions{})
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got == nil || got.StepID != "welcome" {
		t.Fatalf("unexpected record: %+v", got)
	}

	if err := store.Remove(ctx, "onboarding", api.StoreOptions{}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	got, err = store.Get(ctx, "onboarding", api.StoreOptions{})
	if err != nil || got != nil {
		t.Fatalf("expected nothing after Remove, got %+v / %v", got, err)
	}
}

func TestMemory_RemoveMissingIsNoop(t *testing.T) {
	store := NewMemory(api.StoreConfig{})
	if err := store.Remove(context.Background(), "never-saved", api.StoreOptions{}); err != nil {
		t.Fatalf("Remove of missing record should succeed: %v", err)
	}
}

func TestMemory_CompositeAddressing(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(api.StoreConfig{})

	cases := []struct {
		opts api.StoreOptions
		step string
	}{
		{api.StoreOptions{}, "base"},
		{api.StoreOptions{InstanceID: "i1"}, "first"},
		{api.StoreOptions{InstanceID: "i2"}, "second"},
		{api.StoreOptions{InstanceID: "i1", VariantID: "b"}, "variant"},
	}
	for _, c := range cases {
		if err := store.Set(ctx, "survey", testState(c.step), c.opts); err != nil {
			t.Fatalf("Set(%+v) failed: %v", c.opts, err)
		}
	}
	for _, c := range cases {
		got, err := store.Get(ctx, "survey", c.opts)
		if err != nil {
			t.Fatalf("Get(%+v) failed: %v", c.opts, err)
		}
		if got == nil || got.StepID != c.step {
			t.Fatalf("Get(%+v) = %+v, want step %q", c.opts, got, c.step)
		}
	}

	// Removing one instance leaves the others intact.
	if err := store.Remove(ctx, "survey", api.StoreOptions{InstanceID: "i1"}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got, _ := store.Get(ctx, "survey", api.StoreOptions{InstanceID: "i2"}); got == nil {
		t.Fatalf("sibling instance removed")
	}
}

func TestMemory_ListFiltersAndSorts(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(api.StoreConfig{})

	mustSet := func(flowID string, opts api.StoreOptions) {
		t.Helper()
		if err := store.Set(ctx, flowID, testState("s"), opts); err != nil {
			t.Fatalf("Set failed: %v", err)
		}
	}
	mustSet("survey", api.StoreOptions{InstanceID: "i2"})
	mustSet("survey", api.StoreOptions{InstanceID: "i1"})
	mustSet("survey", api.StoreOptions{InstanceID: "i1", VariantID: "alt"})
	mustSet("other", api.StoreOptions{InstanceID: "x"})

	records, err := store.List(ctx, "survey")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	// Sorted by variant then instance; empty variant sorts first.
	want := []struct{ variant, instance string }{
		{"", "i1"}, {"", "i2"}, {"alt", "i1"},
	}
	for i, w := range want {
		if records[i].VariantID != w.variant || records[i].InstanceID != w.instance {
			t.Fatalf("records[%d] = %s/%s, want %s/%s",
				i, records[i].VariantID, records[i].InstanceID, w.variant, w.instance)
		}
	}
	for _, r := range records {
		if r.FlowID != "survey" || r.State == nil {
			t.Fatalf("bad record: %+v", r)
		}
	}
}

func TestMemory_RemoveFlow(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(api.StoreConfig{})

	_ = store.Set(ctx, "a", testState("s"), api.StoreOptions{})
	_ = store.Set(ctx, "a", testState("s"), api.StoreOptions{InstanceID: "i1"})
	_ = store.Set(ctx, "b", testState("s"), api.StoreOptions{})

	if err := store.RemoveFlow(ctx, "a"); err != nil {
		t.Fatalf("RemoveFlow failed: %v", err)
	}
	if got, _ := store.Get(ctx, "a", api.StoreOptions{InstanceID: "i1"}); got != nil {
		t.Fatalf("instance of flow a survived RemoveFlow")
	}
	if got, _ := store.Get(ctx, "b", api.StoreOptions{}); got == nil {
		t.Fatalf("flow b should survive RemoveFlow(a)")
	}
}

func TestMemory_RemoveAll(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(api.StoreConfig{})

	_ = store.Set(ctx, "a", testState("s"), api.StoreOptions{})
	_ = store.Set(ctx, "b", testState("s"), api.StoreOptions{})

	if err := store.RemoveAll(ctx); err != nil {
		t.Fatalf("RemoveAll failed: %v", err)
	}
	for _, flow := range []string{"a", "b"} {
		if got, _ := store.Get(ctx, flow, api.StoreOptions{}); got != nil {
			t.Fatalf("flow %s survived RemoveAll", flow)
		}
	}
}

func TestMemory_CorruptRecordReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	store := NewMemory(api.StoreConfig{})
	key := api.DefaultKeyFunc(DefaultPrefix)("bad", "", "")

	store.mu.Lock()
	store.entries[key] = []byte(`{"flowId":"bad","state":"bm90IGpzb24="}`)
	store.mu.Unlock()

	got, err := store.Get(ctx, "bad", api.StoreOptions{})
	if err != nil {
		t.Fatalf("corrupt record must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("corrupt record should read as absent, got %+v", got)
	}
}

func TestMemory_CustomKeyFunc(t *testing.T) {
	ctx := context.Background()
	var seen []string
	store := NewMemory(api.StoreConfig{
		KeyFunc: func(flowID, instanceID, variantID string) string {
			key := "user-42/" + flowID
			seen = append(seen, key)
			return key
		},
	})

	_ = store.Set(ctx, "onboarding", testState("s"), api.StoreOptions{})
	if got, _ := store.Get(ctx, "onboarding", api.StoreOptions{}); got == nil {
		t.Fatalf("record not found under custom key")
	}
	if len(seen) == 0 || seen[0] != "user-42/onboarding" {
		t.Fatalf("custom key func not used: %v", seen)
	}
}

func TestDefaultKeyFunc(t *testing.T) {
	key := api.DefaultKeyFunc("flowstate")
	if got := key("checkout", "", ""); got != "flowstate:checkout:default:default" {
		t.Fatalf("default segments wrong: %q", got)
	}
	if got := key("checkout", "i9", "b"); got != "flowstate:checkout:b:i9" {
		t.Fatalf("composite key wrong: %q", got)
	}
	// A trailing colon on the prefix does not double up.
	if got := api.DefaultKeyFunc("app:")("f", "i", "v"); got != "app:f:v:i" {
		t.Fatalf("prefix normalization wrong: %q", got)
	}
}
