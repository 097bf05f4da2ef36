package api

import (
	"encoding/json"
	"time"
)

// Status represents the lifecycle state of a flow instance.
type Status string

const (
	StatusActive   Status = "active"
	StatusComplete Status = "complete"
)

// Visit actions recorded when a step is exited.
const (
	VisitActionNext = "next"
	VisitActionSkip = "skip"
	VisitActionBack = "back"
)

// StepVisit records one stay on a step. CompletedAt and Action are zero while
// the step is still current; they are stamped when the step is exited.
// Timestamps are Unix milliseconds.
type StepVisit struct {
	StepID      string `json:"stepId"`
	StartedAt   int64  `json:"startedAt"`
	CompletedAt int64  `json:"completedAt,omitempty"`
	Action      string `json:"action,omitempty"`
}

// FlowState is the full in-memory state of one flow instance.
//
// Path is the navigable stack used by BACK: entries are pushed on forward
// movement and popped on back-navigation. History is an append-only audit log
// of every step visited. Invariants: Path is never empty, the last Path
// entry's StepID equals StepID, and Status is StatusComplete exactly when the
// current step has no outgoing transition.
type FlowState struct {
	StepID      string         `json:"stepId"`
	Context     map[string]any `json:"context"`
	Path        []StepVisit    `json:"path"`
	History     []StepVisit    `json:"history"`
	Status      Status         `json:"status"`
	StartedAt   int64          `json:"startedAt"`
	CompletedAt int64          `json:"completedAt,omitempty"`
}

// NewFlowState seeds a fresh state at the definition's start step.
// The caller owns initialContext; a nil map is replaced with an empty one.
func NewFlowState(def FlowDefinition, initialContext map[string]any, now time.Time) FlowState {
	if initialContext == nil {
		initialContext = map[string]any{}
	}
	ms := now.UnixMilli()
	visit := StepVisit{StepID: def.Start, StartedAt: ms}
	st := FlowState{
		StepID:    def.Start,
		Context:   initialContext,
		Path:      []StepVisit{visit},
		History:   []StepVisit{visit},
		Status:    StatusActive,
		StartedAt: ms,
	}
	if step, ok := def.Step(def.Start); ok && step.IsTerminal() {
		st.Status = StatusComplete
		st.CompletedAt = ms
	}
	return st
}

// Clone returns a deep copy of the state. Context values are copied shallowly;
// the engine treats them as opaque.
func (s FlowState) Clone() FlowState {
	out := s
	out.Context = make(map[string]any, len(s.Context))
	for k, v := range s.Context {
		out.Context[k] = v
	}
	out.Path = make([]StepVisit, len(s.Path))
	copy(out.Path, s.Path)
	out.History = make([]StepVisit, len(s.History))
	copy(out.History, s.History)
	return out
}

// Meta is the persistence envelope stamped onto a state when it is saved.
// Extra holds extension fields round-tripped under __meta without the engine
// interpreting them.
type Meta struct {
	SavedAt    int64
	Version    string
	InstanceID string
	Extra      map[string]any
}

func (m Meta) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, 3+len(m.Extra))
	for k, v := range m.Extra {
		out[k] = v
	}
	if m.SavedAt != 0 {
		out["savedAt"] = m.SavedAt
	}
	if m.Version != "" {
		out["version"] = m.Version
	}
	if m.InstanceID != "" {
		out["instanceId"] = m.InstanceID
	}
	return json.Marshal(out)
}

func (m *Meta) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Meta{}
	for k, v := range raw {
		switch k {
		case "savedAt":
			if err := json.Unmarshal(v, &m.SavedAt); err != nil {
				return err
			}
		case "version":
			if err := json.Unmarshal(v, &m.Version); err != nil {
				return err
			}
		case "instanceId":
			if err := json.Unmarshal(v, &m.InstanceID); err != nil {
				return err
			}
		default:
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			if m.Extra == nil {
				m.Extra = map[string]any{}
			}
			m.Extra[k] = val
		}
	}
	return nil
}

// PersistedState is a FlowState plus its persistence metadata. It is what the
// Persister hands to storage adapters and back to callers on restore.
type PersistedState struct {
	FlowState
	Meta *Meta `json:"__meta,omitempty"`
}

// Clone returns a deep copy of the persisted state.
func (p *PersistedState) Clone() *PersistedState {
	if p == nil {
		return nil
	}
	out := &PersistedState{FlowState: p.FlowState.Clone()}
	if p.Meta != nil {
		m := *p.Meta
		if p.Meta.Extra != nil {
			m.Extra = make(map[string]any, len(p.Meta.Extra))
			for k, v := range p.Meta.Extra {
				m.Extra[k] = v
			}
		}
		out.Meta = &m
	}
	return out
}

// InstanceRecord is the composite-addressing unit stored by key-value
// backends: one independently-addressable run of a flow definition.
type InstanceRecord struct {
	FlowID     string          `json:"flowId"`
	InstanceID string          `json:"instanceId"`
	VariantID  string          `json:"variantId"`
	State      *PersistedState `json:"state"`
}
