package api

import (
	"context"
	"strings"
)

// Codec converts a persisted state to and from its storage representation.
// Codecs are pluggable per storage adapter, so a backend can use compression,
// encryption or an alternate encoding without touching the reducer or the
// persister.
//
// Decode is a boundary operation: corrupt or foreign data must yield
// (nil, err) rather than panicking, and stores treat a nil state as "no
// usable record".
type Codec interface {
	Encode(state *PersistedState) ([]byte, error)
	Decode(data []byte) (*PersistedState, error)
}

// KeyFunc formats the storage key for one flow instance. Injecting it
// decouples the addressing scheme from storage mechanics: the same adapter
// serves a flat prefix scheme, a user-scoped scheme, or a fully composite
// flow:variant:instance scheme without code changes.
type KeyFunc func(flowID, instanceID, variantID string) string

// DefaultSegment substitutes for an absent instance or variant segment in the
// default key scheme.
const DefaultSegment = "default"

// DefaultKeyFunc returns the documented default colon-delimited scheme:
// prefix:flowID:variantID:instanceID.
func DefaultKeyFunc(prefix string) KeyFunc {
	prefix = strings.TrimSuffix(prefix, ":")
	return func(flowID, instanceID, variantID string) string {
		if instanceID == "" {
			instanceID = DefaultSegment
		}
		if variantID == "" {
			variantID = DefaultSegment
		}
		return prefix + ":" + flowID + ":" + variantID + ":" + instanceID
	}
}

// StoreOptions addresses one instance of a flow. Zero values mean the default
// instance/variant.
type StoreOptions struct {
	InstanceID string
	VariantID  string
}

// Store is the uniform key-value contract implemented by storage backends.
//
// Get returns (nil, nil) when nothing usable is stored under the key, both
// for a missing record and for one the codec rejects as corrupt. Backend I/O
// failures are returned as errors; the persister routes them to the OnError
// hook and degrades to "nothing persisted".
type Store interface {
	Get(ctx context.Context, flowID string, opts StoreOptions) (*PersistedState, error)
	Set(ctx context.Context, flowID string, state *PersistedState, opts StoreOptions) error
	Remove(ctx context.Context, flowID string, opts StoreOptions) error
}

// EnumerableStore is the optional enumeration capability. Its absence on a
// Store is a legal, detectable condition (see CanEnumerate), not an error.
type EnumerableStore interface {
	Store

	// RemoveFlow purges the base record and every instance of the flow.
	RemoveFlow(ctx context.Context, flowID string) error

	// RemoveAll purges everything under this store's namespace.
	RemoveAll(ctx context.Context) error

	// List enumerates all live instances of a flow. Individual records that
	// fail to read or decode are skipped, not fatal: one corrupt record never
	// blocks visibility into the rest.
	List(ctx context.Context, flowID string) ([]InstanceRecord, error)
}

// CanEnumerate reports whether the store supports enumeration.
func CanEnumerate(s Store) bool {
	_, ok := s.(EnumerableStore)
	return ok
}

// StoreConfig carries the injectable pieces shared by store constructors.
// Zero values select the JSON codec and the default key scheme.
type StoreConfig struct {
	Codec   Codec
	KeyFunc KeyFunc
	Prefix  string
}

// KV is the minimal contract an arbitrary key-value backend must satisfy to
// be usable as a Store (via the KV adapter). Get returns found=false for a
// missing key; errors are reserved for backend failures.
type KV interface {
	Get(ctx context.Context, key string) (value []byte, found bool, err error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// KeyLister is an optional extension of KV. A backend that can enumerate its
// keys gets List/RemoveFlow/RemoveAll support; one that cannot (a write-only
// remote API, say) still works as a plain Store.
type KeyLister interface {
	Keys(ctx context.Context) ([]string, error)
}
