package api

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// StepDefinition describes a single step and its allowed outgoing transitions.
//
// Exactly one of the following shapes is valid:
//   - terminal step: neither Next nor NextOneOf set; the flow completes on arrival.
//   - single destination: Next set; NEXT/SKIP always move there.
//   - branch: NextOneOf set; moving requires either an explicit target that is a
//     member of NextOneOf, or a Resolver registered for the step in RuntimeConfig.
//
// On the wire both shapes share the "next" key: a string for a single
// destination, an array for a branch. Terminal steps serialize as {}.
type StepDefinition struct {
	Next      string
	NextOneOf []string
}

// IsTerminal reports whether the step has no outgoing transition.
func (s StepDefinition) IsTerminal() bool {
	return s.Next == "" && len(s.NextOneOf) == 0
}

// IsBranch reports whether the step declares multiple allowed destinations.
func (s StepDefinition) IsBranch() bool {
	return len(s.NextOneOf) > 0
}

// Targets returns all statically declared destinations of the step.
func (s StepDefinition) Targets() []string {
	if s.Next != "" {
		return []string{s.Next}
	}
	return s.NextOneOf
}

// Allows reports whether target is a legal destination for this step.
func (s StepDefinition) Allows(target string) bool {
	if s.Next != "" {
		return target == s.Next
	}
	for _, t := range s.NextOneOf {
		if t == target {
			return true
		}
	}
	return false
}

type stepDefinitionJSON struct {
	Next json.RawMessage `json:"next,omitempty"`
}

// MarshalJSON emits the compact wire shape: {"next":"b"}, {"next":["x","y"]}
// or {} for terminal steps.
func (s StepDefinition) MarshalJSON() ([]byte, error) {
	var out stepDefinitionJSON
	switch {
	case s.Next != "":
		raw, err := json.Marshal(s.Next)
		if err != nil {
			return nil, err
		}
		out.Next = raw
	case len(s.NextOneOf) > 0:
		raw, err := json.Marshal(s.NextOneOf)
		if err != nil {
			return nil, err
		}
		out.Next = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON accepts both the string and array forms of "next".
func (s *StepDefinition) UnmarshalJSON(data []byte) error {
	var in stepDefinitionJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*s = StepDefinition{}
	if len(in.Next) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(in.Next, &single); err == nil {
		s.Next = single
		return nil
	}
	var many []string
	if err := json.Unmarshal(in.Next, &many); err != nil {
		return fmt.Errorf("step next must be a string or an array of strings: %w", err)
	}
	s.NextOneOf = many
	return nil
}

// FlowDefinition is a static, serializable graph of steps. It is plain data:
// resolver functions live in RuntimeConfig, not here, so definitions can be
// stored and transmitted as-is.
//
// Definitions are expected to be validated once, before any Reduce call.
type FlowDefinition struct {
	ID        string                    `json:"id"         validate:"required"`
	Start     string                    `json:"start"      validate:"required"`
	Steps     map[string]StepDefinition `json:"steps"      validate:"required,min=1"`
	Version   string                    `json:"version,omitempty"`
	VariantID string                    `json:"variantId,omitempty"`
}

// Step returns the definition of the given step.
func (d FlowDefinition) Step(id string) (StepDefinition, bool) {
	s, ok := d.Steps[id]
	return s, ok
}

// Resolver picks one destination among a branch step's declared options based
// on the current context. Returning ok=false means "not ready to branch yet";
// the reducer leaves the state unchanged. Returning a step ID that is not a
// member of the branch's options is a programming error and makes the reducer
// fail with a ResolverError.
type Resolver func(context map[string]any) (target string, ok bool)

// RuntimeConfig carries the non-serializable half of a flow: resolver
// functions keyed by step ID, plus a logger and clock. It is passed alongside
// the plain-data FlowDefinition at every call site that needs it.
//
// A nil *RuntimeConfig is valid and means "no resolvers, default logger,
// wall clock".
type RuntimeConfig struct {
	Resolvers map[string]Resolver
	Logger    *slog.Logger
	Now       func() time.Time
}

// ResolverFor returns the resolver registered for the given step, if any.
func (c *RuntimeConfig) ResolverFor(stepID string) (Resolver, bool) {
	if c == nil || c.Resolvers == nil {
		return nil, false
	}
	r, ok := c.Resolvers[stepID]
	return r, ok
}

// LoggerOrDefault returns the configured logger, or slog.Default().
func (c *RuntimeConfig) LoggerOrDefault() *slog.Logger {
	if c == nil || c.Logger == nil {
		return slog.Default()
	}
	return c.Logger
}

// Clock returns the configured time source, or time.Now.
func (c *RuntimeConfig) Clock() func() time.Time {
	if c == nil || c.Now == nil {
		return time.Now
	}
	return c.Now
}
