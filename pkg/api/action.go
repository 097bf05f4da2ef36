package api

// ActionType identifies a reducer action.
type ActionType string

const (
	ActionNext       ActionType = "NEXT"
	ActionSkip       ActionType = "SKIP"
	ActionBack       ActionType = "BACK"
	ActionSetContext ActionType = "SET_CONTEXT"
	ActionReset      ActionType = "RESET"
	ActionRestore    ActionType = "RESTORE"
)

// ContextFunc replaces the whole context: its return value becomes the new
// context with no implicit merge.
type ContextFunc func(current map[string]any) map[string]any

// Action is the input to Reduce.
//
// Update is either a map[string]any (shallow-merged over the current context)
// or a ContextFunc (full replacement). It applies to NEXT, SKIP and
// SET_CONTEXT.
type Action struct {
	Type ActionType

	// Target is an optional explicit destination for NEXT/SKIP.
	Target string

	// Update mutates the context; see the type comment.
	Update any

	// Initial seeds the context for RESET.
	Initial map[string]any

	// State is the full replacement state for RESTORE.
	State *FlowState
}

// WithUpdate attaches a context update to the action.
func (a Action) WithUpdate(update any) Action {
	a.Update = update
	return a
}

// Next advances to the current step's destination, consulting a resolver on
// branch steps.
func Next() Action { return Action{Type: ActionNext} }

// NextTo advances to an explicitly chosen destination of the current step.
func NextTo(target string) Action { return Action{Type: ActionNext, Target: target} }

// Skip is Next with the audit trail recording that the step was bypassed.
func Skip() Action { return Action{Type: ActionSkip} }

// SkipTo is NextTo with the skip tag.
func SkipTo(target string) Action { return Action{Type: ActionSkip, Target: target} }

// Back pops the navigation stack and re-enters the previous step.
func Back() Action { return Action{Type: ActionBack} }

// SetContext applies a context update without navigating.
func SetContext(update any) Action { return Action{Type: ActionSetContext, Update: update} }

// Reset discards all progress and re-seeds the flow at its start step.
func Reset(initial map[string]any) Action { return Action{Type: ActionReset, Initial: initial} }

// Restore replaces the working state wholesale, bypassing transition rules.
// The state is assumed to have been produced by valid transitions previously.
func Restore(state *FlowState) Action { return Action{Type: ActionRestore, State: state} }
