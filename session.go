package flowstate

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/juhanik/flowstate/internal/engine"
	"github.com/juhanik/flowstate/pkg/api"
)

// ErrNoPersister is returned by Session.Save/Restore when the session was
// built without a persister.
var ErrNoPersister = errors.New("flowstate: session has no persister")

// SessionConfig describes how to construct a Session.
type SessionConfig struct {
	// Runtime carries resolvers, logger and clock. Optional.
	Runtime *RuntimeConfig

	// Persister enables Save/Restore on the session. Optional.
	Persister Persister

	// InstanceID addresses this run among concurrent runs of the same flow.
	// A random UUID is generated when empty.
	InstanceID string

	// InitialContext seeds the context bag.
	InitialContext map[string]any
}

// Session is a stateful convenience wrapper around the pure reducer: it
// bundles a validated definition, its runtime config, the current state and
// an optional persister behind a mutex, so UI call sites get the serialized
// dispatch the engine itself does not provide.
//
// The reducer stays usable on its own; a Session is just one owner for one
// flow instance.
type Session struct {
	mu sync.Mutex

	def       api.FlowDefinition
	cfg       *api.RuntimeConfig
	persister api.Persister

	instanceID string
	state      api.FlowState
}

// NewSession validates the definition and seeds a session at its start step.
func NewSession(def FlowDefinition, cfg SessionConfig) (*Session, error) {
	if err := engine.Validate(def); err != nil {
		return nil, err
	}
	instanceID := cfg.InstanceID
	if instanceID == "" {
		instanceID = uuid.NewString()
	}
	return &Session{
		def:        def,
		cfg:        cfg.Runtime,
		persister:  cfg.Persister,
		instanceID: instanceID,
		state:      api.NewFlowState(def, cfg.InitialContext, cfg.Runtime.Clock()()),
	}, nil
}

// InstanceID returns the instance identifier of this run.
func (s *Session) InstanceID() string {
	return s.instanceID
}

// Definition returns the flow definition driving this session.
func (s *Session) Definition() FlowDefinition {
	return s.def
}

// Dispatch runs one action through the reducer and adopts the result.
func (s *Session) Dispatch(action Action) (FlowState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, err := engine.Reduce(s.state, action, s.def, s.cfg)
	if err != nil {
		return s.state.Clone(), err
	}
	s.state = next
	return next.Clone(), nil
}

// Next advances the flow.
func (s *Session) Next() (FlowState, error) { return s.Dispatch(api.Next()) }

// NextTo advances to an explicitly chosen destination.
func (s *Session) NextTo(target string) (FlowState, error) { return s.Dispatch(api.NextTo(target)) }

// Skip advances while recording that the step was bypassed.
func (s *Session) Skip() (FlowState, error) { return s.Dispatch(api.Skip()) }

// Back re-enters the previous step.
func (s *Session) Back() (FlowState, error) { return s.Dispatch(api.Back()) }

// SetContext applies a context update without navigating.
func (s *Session) SetContext(update any) (FlowState, error) {
	return s.Dispatch(api.SetContext(update))
}

// Reset discards all progress and re-seeds the flow.
func (s *Session) Reset(initial map[string]any) (FlowState, error) {
	return s.Dispatch(api.Reset(initial))
}

// State returns a copy of the current state.
func (s *Session) State() FlowState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Completed reports whether the flow has reached a terminal step.
func (s *Session) Completed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Status == api.StatusComplete
}

// Save persists the current state under this session's flow, variant and
// instance, stamping the definition version.
func (s *Session) Save(ctx context.Context) (*PersistedState, error) {
	if s.persister == nil {
		return nil, ErrNoPersister
	}
	s.mu.Lock()
	state := s.state.Clone()
	s.mu.Unlock()

	return s.persister.Save(ctx, s.def.ID, state, api.SaveOptions{
		Version:    s.def.Version,
		InstanceID: s.instanceID,
		VariantID:  s.def.VariantID,
	})
}

// Restore loads previously persisted state for this session's address and,
// when found, splices it in wholesale. It reports whether anything was
// restored; (false, nil) means there was nothing usable saved.
func (s *Session) Restore(ctx context.Context, migrate MigrateFunc) (bool, error) {
	if s.persister == nil {
		return false, ErrNoPersister
	}
	stored, err := s.persister.Restore(ctx, s.def.ID, api.RestoreOptions{
		Version:    s.def.Version,
		InstanceID: s.instanceID,
		VariantID:  s.def.VariantID,
		Migrate:    migrate,
	})
	if err != nil || stored == nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	next, err := engine.Reduce(s.state, api.Restore(&stored.FlowState), s.def, s.cfg)
	if err != nil {
		return false, err
	}
	s.state = next
	return true, nil
}
