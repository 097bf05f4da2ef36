package storage

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/juhanik/flowstate/pkg/api"
)

func newSQLiteStore(t *testing.T) *SQLite {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLite(db, api.StoreConfig{})
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	return store
}

func TestSQLite_SetGetRemove(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	if got, err := store.Get(ctx, "checkout", api.StoreOptions{}); err != nil || got != nil {
		t.Fatalf("expected nothing before Set, got %+v / %v", got, err)
	}

	if err := store.Set(ctx, "checkout", testState("cart"), api.StoreOptions{}); err != nil {
		t.Fatalf("Set failed: %v", err)
	}
	got, err := store.Get(ctx, "checkout", api.StoreOptions{})
	if err != nil || got == nil || got.StepID != "cart" {
		t.Fatalf("unexpected record: %+v / %v", got, err)
	}

	// Upsert replaces in place.
	if err := store.Set(ctx, "checkout", testState("payment"), api.StoreOptions{}); err != nil {
		t.Fatalf("second Set failed: %v", err)
	}
	got, _ = store.Get(ctx, "checkout", api.StoreOptions{})
	if got == nil || got.StepID != "payment" {
		t.Fatalf("upsert did not replace: %+v", got)
	}

	if err := store.Remove(ctx, "checkout", api.StoreOptions{}); err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if got, _ := store.Get(ctx, "checkout", api.StoreOptions{}); got != nil {
		t.Fatalf("record survived Remove")
	}
}

func TestSQLite_CompositeAddressing(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

	_ = store.Set(ctx, "survey", testState("a"), api.StoreOptions{InstanceID: "i1"})
	_ = store.Set(ctx, "survey", testState("b"), api.StoreOptions{InstanceID: "i2"})
	_ = store.Set(ctx, "survey", testState("c"), api.StoreOptions{InstanceID: "i1", VariantID: "alt"})

	got, err := store.Get(ctx, "survey", api.StoreOptions{InstanceID: "i1", VariantID: "alt"})
	if err != nil || got == nil || got.StepID != "c" {
		t.Fatalf("variant-addressed read wrong: %+v / %v", got, err)
	}

	records, err := store.List(ctx, "survey")
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if err := store.RemoveFlow(ctx, "survey"); err != nil {
		t.Fatalf("RemoveFlow failed: %v", err)
	}
	records, _ = store.List(ctx, "survey")
	if len(records) != 0 {
		t.Fatalf("records survived RemoveFlow: %+v", records)
	}
}

func TestSQLite_CorruptPayloadReadsAsAbsent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("opening sqlite: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewSQLite(db, api.StoreConfig{})
	if err != nil {
		t.Fatalf("NewSQLite failed: %v", err)
	}
	if _, err := db.Exec(`
		INSERT INTO flow_states (flow_id, variant_id, instance_id, payload, saved_at)
		VALUES ('bad', 'default', 'default', X'00FF', 0)`); err != nil {
		t.Fatalf("seeding corrupt row: %v", err)
	}

	got, err := store.Get(ctx, "bad", api.StoreOptions{})
	if err != nil {
		t.Fatalf("corrupt payload must not error: %v", err)
	}
	if got != nil {
		t.Fatalf("corrupt payload should read as absent, got %+v", got)
	}
}

func TestSQLite_RemoveAll(t *testing.T) {
	ctx := context.Background()
	store := newSQLiteStore(t)

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
