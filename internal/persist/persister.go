// Package persist implements the Persister: storage adapter orchestration
// plus the cross-cutting policy applied on restore: TTL expiry, version
// checks with optional migration, and custom validation.
package persist

import (
	"context"
	"log/slog"
	"time"

	"github.com/juhanik/flowstate/internal/codec"
	"github.com/juhanik/flowstate/pkg/api"
)

type persister struct {
	store    api.Store
	ttl      time.Duration
	observer api.Observer
	validate func(*api.PersistedState) bool
	logger   *slog.Logger
	now      func() time.Time
}

var _ api.Persister = (*persister)(nil)

// New constructs a Persister from the given config.
func New(cfg api.PersisterConfig) api.Persister {
	obs := cfg.Observer
	if obs == nil {
		obs = api.NoopObserver{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &persister{
		store:    cfg.Store,
		ttl:      cfg.TTL,
		observer: obs,
		validate: cfg.Validate,
		logger:   logger,
		now:      now,
	}
}

func (p *persister) Save(ctx context.Context, flowID string, state api.FlowState, opts api.SaveOptions) (*api.PersistedState, error) {
	stamped := &api.PersistedState{
		FlowState: state.Clone(),
		Meta: &api.Meta{
			SavedAt:    p.now().UnixMilli(),
			Version:    opts.Version,
			InstanceID: opts.InstanceID,
		},
	}

	storeOpts := api.StoreOptions{InstanceID: opts.InstanceID, VariantID: opts.VariantID}
	if err := p.store.Set(ctx, flowID, stamped, storeOpts); err != nil {
		p.observer.OnError(ctx, "save", flowID, err)
		return nil, err
	}

	p.observer.OnSave(ctx, flowID, stamped)
	return stamped, nil
}

func (p *persister) Restore(ctx context.Context, flowID string, opts api.RestoreOptions) (*api.PersistedState, error) {
	storeOpts := api.StoreOptions{InstanceID: opts.InstanceID, VariantID: opts.VariantID}

	stored, err := p.store.Get(ctx, flowID, storeOpts)
	if err != nil {
		p.observer.OnError(ctx, "restore", flowID, err)
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	// Policy checks run strictly in order: TTL, then version/migration, then
	// custom validation.
	if p.expired(stored) {
		// Expired state is never handed back, and is cleaned up eagerly now
		// that it has been noticed.
		if rerr := p.store.Remove(ctx, flowID, storeOpts); rerr != nil {
			p.observer.OnError(ctx, "remove", flowID, rerr)
		}
		p.logger.Debug("persisted flow expired", slog.String("flow", flowID))
		return nil, nil
	}

	stored, err = p.checkVersion(stored, flowID, opts)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, nil
	}

	if p.validate != nil && !p.validate(stored) {
		p.logger.Debug("persisted flow rejected by validator", slog.String("flow", flowID))
		return nil, nil
	}

	p.observer.OnRestore(ctx, flowID, stored)
	return stored, nil
}

func (p *persister) expired(stored *api.PersistedState) bool {
	if p.ttl <= 0 || stored.Meta == nil || stored.Meta.SavedAt == 0 {
		return false
	}
	age := p.now().UnixMilli() - stored.Meta.SavedAt
	return age > p.ttl.Milliseconds()
}

// checkVersion discards or migrates a record whose stored version differs
// from the requested one. Without a migration function, mismatch alone is
// sufficient to discard: stale, un-migrated state is never exposed to a newer
// flow definition.
func (p *persister) checkVersion(stored *api.PersistedState, flowID string, opts api.RestoreOptions) (*api.PersistedState, error) {
	if opts.Version == "" {
		return stored, nil
	}
	storedVersion := ""
	if stored.Meta != nil {
		storedVersion = stored.Meta.Version
	}
	if storedVersion == opts.Version {
		return stored, nil
	}
	if opts.Migrate == nil {
		p.logger.Debug("persisted flow version mismatch, discarding",
			slog.String("flow", flowID),
			slog.String("stored", storedVersion),
			slog.String("requested", opts.Version),
		)
		return nil, nil
	}

	migrated, err := opts.Migrate(stored, storedVersion)
	if err != nil {
		return nil, err
	}
	if migrated == nil {
		// Migration declined; the record cannot be carried forward.
		return nil, nil
	}
	if err := codec.ValidateShape(migrated); err != nil {
		return nil, &api.MigrationError{FlowID: flowID, FromVersion: storedVersion, Reason: err.Error()}
	}
	if migrated.Meta == nil {
		migrated.Meta = &api.Meta{}
	}
	migrated.Meta.Version = opts.Version
	return migrated, nil
}

func (p *persister) Remove(ctx context.Context, flowID string, opts api.StoreOptions) error {
	if err := p.store.Remove(ctx, flowID, opts); err != nil {
		p.observer.OnError(ctx, "remove", flowID, err)
		return err
	}
	return nil
}

func (p *persister) RemoveFlow(ctx context.Context, flowID string) error {
	es, ok := p.store.(api.EnumerableStore)
	if !ok {
		// Documented capability gap: nothing to enumerate, nothing removed.
		return nil
	}
	if err := es.RemoveFlow(ctx, flowID); err != nil {
		p.observer.OnError(ctx, "removeFlow", flowID, err)
		return err
	}
	return nil
}

func (p *persister) RemoveAll(ctx context.Context) error {
	es, ok := p.store.(api.EnumerableStore)
	if !ok {
		return nil
	}
	if err := es.RemoveAll(ctx); err != nil {
		p.observer.OnError(ctx, "removeAll", "", err)
		return err
	}
	return nil
}

func (p *persister) List(ctx context.Context, flowID string) ([]api.InstanceRecord, error) {
	es, ok := p.store.(api.EnumerableStore)
	if !ok {
		return nil, api.ErrNotSupported
	}
	records, err := es.List(ctx, flowID)
	if err != nil {
		p.observer.OnError(ctx, "list", flowID, err)
		return nil, err
	}
	return records, nil
}

func (p *persister) CanEnumerate() bool {
	return api.CanEnumerate(p.store)
}
