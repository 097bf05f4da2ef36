package api

import (
	"context"
	"log/slog"
	"time"
)

// MigrateFunc transforms a persisted state from an older schema version to the
// one the caller requested. Returning (nil, nil) declines the migration: the
// stored record is discarded and Restore returns nothing. A non-nil result is
// treated as the new authoritative state and flows through the remaining
// restore checks. A structurally invalid result is a programming error and
// surfaces as a MigrationError.
type MigrateFunc func(state *PersistedState, fromVersion string) (*PersistedState, error)

// SaveOptions parameterizes one Save call.
type SaveOptions struct {
	// Version is stamped into __meta and checked on restore.
	Version    string
	InstanceID string
	VariantID  string
}

// RestoreOptions parameterizes one Restore call.
type RestoreOptions struct {
	// Version, when non-empty, must match the stored __meta.version. On
	// mismatch the record is migrated (if Migrate is set) or discarded:
	// stale, un-migrated state is never exposed to a newer flow definition.
	Version    string
	InstanceID string
	VariantID  string
	Migrate    MigrateFunc
}

// Persister orchestrates storage adapter calls with cross-cutting policy:
// TTL expiry, version-mismatch migration, custom validation, and lifecycle
// callbacks.
//
// Failure semantics: storage I/O errors are routed to the observer's OnError
// and returned alongside a nil state; policy discards (TTL expiry, version
// mismatch, validation rejection, nothing stored) return (nil, nil). Either
// way a transient failure degrades to "acts as if nothing was saved" rather
// than breaking flow navigation.
type Persister interface {
	// Save stamps __meta (savedAt, version, instanceId), writes through the
	// store, fires OnSave and returns the stamped record.
	Save(ctx context.Context, flowID string, state FlowState, opts SaveOptions) (*PersistedState, error)

	// Restore reads through the store and applies, in order: TTL check
	// (expired records are eagerly removed), version check with optional
	// migration, then the custom validation predicate. On all-clear it fires
	// OnRestore and returns the state.
	Restore(ctx context.Context, flowID string, opts RestoreOptions) (*PersistedState, error)

	// Remove deletes one instance record.
	Remove(ctx context.Context, flowID string, opts StoreOptions) error

	// RemoveFlow purges a flow and all of its instances. Documented no-op
	// when the store cannot enumerate.
	RemoveFlow(ctx context.Context, flowID string) error

	// RemoveAll purges the store's whole namespace. Documented no-op when
	// the store cannot enumerate.
	RemoveAll(ctx context.Context) error

	// List enumerates live instances of a flow. Returns ErrNotSupported when
	// the store cannot enumerate.
	List(ctx context.Context, flowID string) ([]InstanceRecord, error)

	// CanEnumerate reports whether RemoveFlow/RemoveAll/List are backed by a
	// real capability on the underlying store.
	CanEnumerate() bool
}

// PersisterConfig describes how to construct a Persister.
type PersisterConfig struct {
	Store Store

	// TTL is the maximum age of a persisted record. Zero disables expiry.
	TTL time.Duration

	// Observer receives save/restore/error callbacks. Side-effect only: no
	// return value influences control flow.
	Observer Observer

	// Validate, when set, may reject a restored state outright. It must be
	// read-only; transformation belongs in a MigrateFunc.
	Validate func(state *PersistedState) bool

	Logger *slog.Logger

	// Now overrides the clock, mainly for tests.
	Now func() time.Time
}
