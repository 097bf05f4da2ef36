package flowstate

import (
	"fmt"

	"github.com/juhanik/flowstate/internal/engine"
	"github.com/juhanik/flowstate/pkg/api"
)

// FlowBuilder provides a fluent API for defining flows:
//
//	def, err := flowstate.NewFlow("checkout").
//	    Step("cart", "shipping").
//	    Step("shipping", "payment").
//	    Choice("payment", "card", "invoice").
//	    Step("card", "done").
//	    Step("invoice", "done").
//	    Terminal("done").
//	    Build()
//
// The first step added becomes the start step unless Start is called
// explicitly. Build validates the assembled definition and reports every
// violation at once.
type FlowBuilder struct {
	def api.FlowDefinition
}

// NewFlow creates a new flow builder with the given flow ID.
func NewFlow(id string) *FlowBuilder {
	return &FlowBuilder{
		def: api.FlowDefinition{
			ID:    id,
			Steps: make(map[string]api.StepDefinition),
		},
	}
}

// ID returns the flow ID.
func (b *FlowBuilder) ID() string {
	return b.def.ID
}

// Start overrides the start step.
func (b *FlowBuilder) Start(stepID string) *FlowBuilder {
	b.def.Start = stepID
	return b
}

// Step adds a step with a single deterministic destination.
func (b *FlowBuilder) Step(id, next string) *FlowBuilder {
	b.add(id, api.StepDefinition{Next: next})
	return b
}

// Choice adds a branch step. Moving off it requires an explicit target or a
// resolver registered for the step in the RuntimeConfig.
func (b *FlowBuilder) Choice(id string, options ...string) *FlowBuilder {
	b.add(id, api.StepDefinition{NextOneOf: options})
	return b
}

// Terminal adds a step with no outgoing transition; the flow completes on
// arrival.
func (b *FlowBuilder) Terminal(id string) *FlowBuilder {
	b.add(id, api.StepDefinition{})
	return b
}

// Version sets the definition version stamped into persisted state.
func (b *FlowBuilder) Version(v string) *FlowBuilder {
	b.def.Version = v
	return b
}

// Variant marks the definition as a structural variant of the flow.
func (b *FlowBuilder) Variant(variantID string) *FlowBuilder {
	b.def.VariantID = variantID
	return b
}

func (b *FlowBuilder) add(id string, step api.StepDefinition) {
	if id == "" {
		panic("flowstate: step id must not be empty")
	}
	if _, exists := b.def.Steps[id]; exists {
		panic(fmt.Sprintf("flowstate: step %q defined twice", id))
	}
	b.def.Steps[id] = step
	if b.def.Start == "" {
		b.def.Start = id
	}
}

// Definition returns the assembled definition without validating it.
// Typically used when interacting with lower-level APIs.
func (b *FlowBuilder) Definition() api.FlowDefinition {
	return b.def
}

// Build validates and returns the definition.
func (b *FlowBuilder) Build() (api.FlowDefinition, error) {
	if err := engine.Validate(b.def); err != nil {
		return api.FlowDefinition{}, err
	}
	return b.def, nil
}

// MustBuild is like Build but panics on error.
// Useful for initialization in main().
func (b *FlowBuilder) MustBuild() api.FlowDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}
