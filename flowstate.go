package flowstate

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	icodec "github.com/juhanik/flowstate/internal/codec"
	"github.com/juhanik/flowstate/internal/engine"
	"github.com/juhanik/flowstate/internal/persist"
	"github.com/juhanik/flowstate/internal/storage"
	"github.com/juhanik/flowstate/pkg/api"
)

// Re-export key types so users don't need to dig into pkg/api.

type (
	FlowDefinition    = api.FlowDefinition
	StepDefinition    = api.StepDefinition
	FlowState         = api.FlowState
	StepVisit         = api.StepVisit
	PersistedState    = api.PersistedState
	Meta              = api.Meta
	InstanceRecord    = api.InstanceRecord
	Action            = api.Action
	ActionType        = api.ActionType
	Status            = api.Status
	Resolver          = api.Resolver
	RuntimeConfig     = api.RuntimeConfig
	ContextFunc       = api.ContextFunc
	Codec             = api.Codec
	Store             = api.Store
	EnumerableStore   = api.EnumerableStore
	StoreOptions      = api.StoreOptions
	StoreConfig       = api.StoreConfig
	KeyFunc           = api.KeyFunc
	KV                = api.KV
	KeyLister         = api.KeyLister
	Persister         = api.Persister
	PersisterConfig   = api.PersisterConfig
	SaveOptions       = api.SaveOptions
	RestoreOptions    = api.RestoreOptions
	MigrateFunc       = api.MigrateFunc
	Observer          = api.Observer
	LoggingObserver   = api.LoggingObserver
	CompositeObserver = api.CompositeObserver
	NoopObserver      = api.NoopObserver
	BasicMetrics      = api.BasicMetrics
	ValidationError   = api.ValidationError
	BranchError       = api.BranchError
	ResolverError     = api.ResolverError
	MigrationError    = api.MigrationError
)

// Re-export action constructors and observer helpers.

var (
	Next       = api.Next
	NextTo     = api.NextTo
	Skip       = api.Skip
	SkipTo     = api.SkipTo
	Back       = api.Back
	SetContext = api.SetContext
	ResetFlow  = api.Reset
	RestoreTo  = api.Restore

	NewLoggingObserver   = api.NewLoggingObserver
	NewCompositeObserver = api.NewCompositeObserver

	DefaultKeyFunc = api.DefaultKeyFunc
)

// Re-export sentinel errors.

var ErrNotSupported = api.ErrNotSupported

// Re-export status values for convenience.

const (
	StatusActive   = api.StatusActive
	StatusComplete = api.StatusComplete
)

// Built-in codecs. JSONCodec is the default used by every store constructor
// when StoreConfig.Codec is nil.

var (
	JSONCodec Codec = icodec.JSON{}
	GobCodec  Codec = icodec.Gob{}
)

// Validate checks a flow definition for referential integrity, collecting
// every violation into a single *ValidationError. Definitions should be
// validated once, before any Reduce call.
func Validate(def FlowDefinition) error {
	return engine.Validate(def)
}

// Reduce is the pure flow transition function. See the package documentation
// for the action semantics.
func Reduce(state FlowState, action Action, def FlowDefinition, cfg *RuntimeConfig) (FlowState, error) {
	return engine.Reduce(state, action, def, cfg)
}

// NewState seeds a fresh state at the definition's start step using the
// runtime config's clock.
func NewState(def FlowDefinition, initialContext map[string]any, cfg *RuntimeConfig) FlowState {
	return api.NewFlowState(def, initialContext, cfg.Clock()())
}

// Store constructors
// These wrap the internal/storage package so external callers never need to
// import internal packages.

// NewMemoryStore returns a non-durable Store backed by a map, best for tests.
func NewMemoryStore() EnumerableStore {
	return storage.NewMemory(StoreConfig{})
}

// NewMemoryStoreWithConfig is NewMemoryStore with an explicit codec/key scheme.
func NewMemoryStoreWithConfig(cfg StoreConfig) EnumerableStore {
	return storage.NewMemory(cfg)
}

// NewFileStore returns a Store that keeps one file per instance under dir.
func NewFileStore(dir string) (EnumerableStore, error) {
	return storage.NewFile(dir, StoreConfig{})
}

// NewFileStoreWithConfig is NewFileStore with an explicit codec/key scheme.
func NewFileStoreWithConfig(dir string, cfg StoreConfig) (EnumerableStore, error) {
	return storage.NewFile(dir, cfg)
}

// NewSQLiteStore returns a Store that persists instances in a SQLite
// database. The caller imports the driver, e.g. modernc.org/sqlite.
func NewSQLiteStore(db *sql.DB) (EnumerableStore, error) {
	return storage.NewSQLite(db, StoreConfig{})
}

// NewSQLiteStoreWithConfig is NewSQLiteStore with an explicit codec.
func NewSQLiteStoreWithConfig(db *sql.DB, cfg StoreConfig) (EnumerableStore, error) {
	return storage.NewSQLite(db, cfg)
}

// NewPostgresStore returns a Store that persists instances in PostgreSQL.
func NewPostgresStore(db *sql.DB) (EnumerableStore, error) {
	return storage.NewPostgres(db, StoreConfig{})
}

// NewPostgresStoreWithConfig is NewPostgresStore with an explicit codec.
func NewPostgresStoreWithConfig(db *sql.DB, cfg StoreConfig) (EnumerableStore, error) {
	return storage.NewPostgres(db, cfg)
}

// NewRedisStore returns a Store that persists instances in Redis.
func NewRedisStore(client *redis.Client) EnumerableStore {
	return storage.NewRedis(client, StoreConfig{})
}

// NewRedisStoreWithConfig is NewRedisStore with an explicit codec/key scheme.
func NewRedisStoreWithConfig(client *redis.Client, cfg StoreConfig) EnumerableStore {
	return storage.NewRedis(client, cfg)
}

// NewMongoStore returns a Store that persists instances in MongoDB.
// dbName and collName fall back to "flowstate" and "flow_states".
func NewMongoStore(client *mongo.Client, dbName, collName string) EnumerableStore {
	return storage.NewMongo(client, dbName, collName, StoreConfig{})
}

// NewMongoStoreWithConfig is NewMongoStore with an explicit codec/key scheme.
func NewMongoStoreWithConfig(client *mongo.Client, dbName, collName string, cfg StoreConfig) EnumerableStore {
	return storage.NewMongo(client, dbName, collName, cfg)
}

// NewKVStore wraps an arbitrary key-value backend. The returned store
// supports enumeration exactly when kv also implements KeyLister.
func NewKVStore(kv KV) Store {
	return storage.NewKV(kv, StoreConfig{})
}

// NewKVStoreWithConfig is NewKVStore with an explicit codec/key scheme.
func NewKVStoreWithConfig(kv KV, cfg StoreConfig) Store {
	return storage.NewKV(kv, cfg)
}

// NewPersister returns a Persister over the given store with default policy:
// no TTL, no version pinning, no custom validation.
func NewPersister(store Store) Persister {
	return persist.New(PersisterConfig{Store: store})
}

// NewPersisterWithConfig creates a Persister using the given configuration.
func NewPersisterWithConfig(cfg PersisterConfig) Persister {
	return persist.New(cfg)
}
