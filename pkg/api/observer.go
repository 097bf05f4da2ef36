package api

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Observer receives callbacks from the persister for logging and metrics.
//
// Implementations should be fast and non-blocking; heavy work should be done
// asynchronously so as not to delay flow navigation.
type Observer interface {
	// OnSave is called after a state has been written through the store.
	OnSave(ctx context.Context, flowID string, state *PersistedState)

	// OnRestore is called when a restored state has passed every policy
	// check and is about to be returned to the caller.
	OnRestore(ctx context.Context, flowID string, state *PersistedState)

	// OnError is called once per failed storage operation. op is the
	// persister operation that failed ("save", "restore", "remove", ...).
	OnError(ctx context.Context, op string, flowID string, err error)
}

// NoopObserver is an Observer that does nothing.
// It is used as the default when no observer is configured.
type NoopObserver struct{}

func (NoopObserver) OnSave(ctx context.Context, flowID string, state *PersistedState)    {}
func (NoopObserver) OnRestore(ctx context.Context, flowID string, state *PersistedState) {}
func (NoopObserver) OnError(ctx context.Context, op string, flowID string, err error)    {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver creates an Observer that forwards events to each
// non-nil observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	if len(filtered) == 0 {
		return NoopObserver{}
	}
	if len(filtered) == 1 {
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnSave(ctx context.Context, flowID string, state *PersistedState) {
	for _, o := range c.observers {
		o.OnSave(ctx, flowID, state)
	}
}

func (c *CompositeObserver) OnRestore(ctx context.Context, flowID string, state *PersistedState) {
	for _, o := range c.observers {
		o.OnRestore(ctx, flowID, state)
	}
}

func (c *CompositeObserver) OnError(ctx context.Context, op string, flowID string, err error) {
	for _, o := range c.observers {
		o.OnError(ctx, op, flowID, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver creates an Observer that logs persistence lifecycle
// events using the provided slog.Logger. If logger is nil, slog.Default()
// is used.
func NewLoggingObserver(logger *slog.Logger) Observer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoggingObserver{Logger: logger}
}

func (o *LoggingObserver) OnSave(ctx context.Context, flowID string, state *PersistedState) {
	o.Logger.InfoContext(ctx, "flow_saved",
		slog.String("flow", flowID),
		slog.String("step", state.StepID),
		slog.String("status", string(state.Status)),
	)
}

func (o *LoggingObserver) OnRestore(ctx context.Context, flowID string, state *PersistedState) {
	o.Logger.InfoContext(ctx, "flow_restored",
		slog.String("flow", flowID),
		slog.String("step", state.StepID),
		slog.String("status", string(state.Status)),
	)
}

func (o *LoggingObserver) OnError(ctx context.Context, op string, flowID string, err error) {
	o.Logger.ErrorContext(ctx, "flow_persistence_error",
		slog.String("flow", flowID),
		slog.String("op", op),
		slog.Any("error", err),
	)
}

// BasicMetrics collects simple persistence counters. It implements Observer
// and can be combined with LoggingObserver via NewCompositeObserver.
type BasicMetrics struct {
	saves    atomic.Int64
	restores atomic.Int64
	errors   atomic.Int64
}

// BasicMetricsSnapshot is an immutable snapshot of BasicMetrics.
type BasicMetricsSnapshot struct {
	Saves    int64
	Restores int64
	Errors   int64
}

func (m *BasicMetrics) OnSave(ctx context.Context, flowID string, state *PersistedState) {
	m.saves.Add(1)
}

func (m *BasicMetrics) OnRestore(ctx context.Context, flowID string, state *PersistedState) {
	m.restores.Add(1)
}

func (m *BasicMetrics) OnError(ctx context.Context, op string, flowID string, err error) {
	m.errors.Add(1)
}

// Snapshot returns a snapshot of the current counters.
func (m *BasicMetrics) Snapshot() BasicMetricsSnapshot {
	return BasicMetricsSnapshot{
		Saves:    m.saves.Load(),
		Restores: m.restores.Load(),
		Errors:   m.errors.Load(),
	}
}
