package engine

import (
	"fmt"
	"log/slog"

	"github.com/juhanik/flowstate/pkg/api"
)

// Reduce is the flow transition function. It is pure and synchronous: every
// invocation computes a new state from (state, action, definition) without
// retaining references to its inputs, so concurrent callers on independent
// states never interfere.
//
// Flow-authoring bugs (a branch with neither resolver nor explicit target, a
// resolver leaving its declared options) are returned as errors with the input
// state untouched. Recoverable conditions (an invalid explicit target, a
// resolver that is not ready, an unknown action type) degrade to "stay where
// you are" with a diagnostic on the configured logger, so calling UIs never
// have to guard navigation with error handling.
//
// The definition is assumed to have been validated; Reduce does not
// re-validate it.
func Reduce(state api.FlowState, action api.Action, def api.FlowDefinition, cfg *api.RuntimeConfig) (api.FlowState, error) {
	logger := cfg.LoggerOrDefault()

	switch action.Type {
	case api.ActionNext:
		return advance(state, action, def, cfg, api.VisitActionNext)
	case api.ActionSkip:
		// Identical resolution path; only the recorded exit action differs,
		// so the audit trail can tell "completed" from "bypassed".
		return advance(state, action, def, cfg, api.VisitActionSkip)
	case api.ActionBack:
		return back(state, def, cfg)
	case api.ActionSetContext:
		out := state.Clone()
		out.Context = applyUpdate(out.Context, action.Update, logger)
		return out, nil
	case api.ActionReset:
		return api.NewFlowState(def, action.Initial, cfg.Clock()()), nil
	case api.ActionRestore:
		if action.State == nil {
			logger.Warn("restore without state, ignoring", slog.String("flow", def.ID))
			return state, nil
		}
		return action.State.Clone(), nil
	default:
		logger.Warn("unknown action type, state unchanged",
			slog.String("flow", def.ID),
			slog.String("action", string(action.Type)),
		)
		return state, nil
	}
}

// advance implements NEXT and SKIP as one parameterized transition with an
// action tag.
func advance(state api.FlowState, action api.Action, def api.FlowDefinition, cfg *api.RuntimeConfig, tag string) (api.FlowState, error) {
	logger := cfg.LoggerOrDefault()
	ms := cfg.Clock()().UnixMilli()

	out := state.Clone()
	ensurePath(&out)
	if action.Update != nil {
		out.Context = applyUpdate(out.Context, action.Update, logger)
	}

	step, ok := def.Step(out.StepID)
	if !ok {
		// State drifted away from the definition (e.g. restored against a
		// reshaped flow). Not a navigation error the UI could fix.
		logger.Warn("current step not in definition, state unchanged",
			slog.String("flow", def.ID),
			slog.String("step", out.StepID),
		)
		return out, nil
	}

	if step.IsTerminal() {
		if out.Status != api.StatusComplete {
			out.Status = api.StatusComplete
			out.CompletedAt = ms
		}
		return out, nil
	}

	var target string
	switch {
	case action.Target != "":
		if !step.Allows(action.Target) {
			// A UI might offer a stale button; warn and stay put.
			logger.Warn("invalid navigation target, state unchanged",
				slog.String("flow", def.ID),
				slog.String("step", out.StepID),
				slog.String("target", action.Target),
			)
			return out, nil
		}
		target = action.Target
	case !step.IsBranch():
		target = step.Next
	default:
		resolver, found := cfg.ResolverFor(out.StepID)
		if !found {
			return state, &api.BranchError{StepID: out.StepID, Options: step.NextOneOf}
		}
		resolved, ready := resolver(out.Context)
		if !ready {
			// Not ready to branch yet: a normal condition, no history mutation.
			return out, nil
		}
		if !step.Allows(resolved) {
			return state, &api.ResolverError{StepID: out.StepID, Result: resolved, Options: step.NextOneOf}
		}
		target = resolved
	}

	return moveTo(out, target, def, tag, ms), nil
}

// moveTo closes out the current visit, pushes the destination onto path and
// history, and completes the flow if the destination is terminal.
func moveTo(out api.FlowState, target string, def api.FlowDefinition, tag string, ms int64) api.FlowState {
	cur := &out.Path[len(out.Path)-1]
	cur.CompletedAt = ms
	cur.Action = tag
	closeHistory(&out, cur.StepID, ms, tag)

	visit := api.StepVisit{StepID: target, StartedAt: ms}
	out.Path = append(out.Path, visit)
	out.History = append(out.History, visit)
	out.StepID = target

	if step, ok := def.Step(target); ok && step.IsTerminal() {
		out.Status = api.StatusComplete
		out.CompletedAt = ms
	} else {
		out.Status = api.StatusActive
		out.CompletedAt = 0
	}
	return out
}

// back pops the navigation stack. From the first step it is a no-op: there is
// nowhere to go.
func back(state api.FlowState, def api.FlowDefinition, cfg *api.RuntimeConfig) (api.FlowState, error) {
	if len(state.Path) <= 1 {
		return state, nil
	}
	ms := cfg.Clock()().UnixMilli()

	out := state.Clone()
	// History is append-only: the visit being abandoned is closed with the
	// back tag, never removed.
	closeHistory(&out, out.StepID, ms, api.VisitActionBack)

	out.Path = out.Path[:len(out.Path)-1]
	re := &out.Path[len(out.Path)-1]
	re.CompletedAt = 0
	re.Action = ""
	out.StepID = re.StepID

	if step, ok := def.Step(out.StepID); ok && !step.IsTerminal() {
		out.Status = api.StatusActive
		out.CompletedAt = 0
	}
	return out, nil
}

// closeHistory stamps the exit of the newest open audit entry for stepID.
func closeHistory(out *api.FlowState, stepID string, ms int64, tag string) {
	if n := len(out.History); n > 0 {
		h := &out.History[n-1]
		if h.StepID == stepID && h.CompletedAt == 0 {
			h.CompletedAt = ms
			h.Action = tag
		}
	}
}

// ensurePath repairs a drifted state whose path stack is empty. The reducer
// must stay total over malformed input states.
func ensurePath(out *api.FlowState) {
	if len(out.Path) == 0 {
		out.Path = []api.StepVisit{{StepID: out.StepID, StartedAt: out.StartedAt}}
	}
	if out.Context == nil {
		out.Context = map[string]any{}
	}
}

// applyUpdate implements the context update rule: a partial map is
// shallow-merged, a function's return value becomes the new context outright.
// current must already be owned by the caller (the reducer passes a clone).
func applyUpdate(current map[string]any, update any, logger *slog.Logger) map[string]any {
	switch u := update.(type) {
	case nil:
		return current
	case map[string]any:
		for k, v := range u {
			current[k] = v
		}
		return current
	case api.ContextFunc:
		return replaceContext(current, u)
	case func(map[string]any) map[string]any:
		return replaceContext(current, u)
	default:
		logger.Warn("unsupported context update, ignoring", slog.String("type", fmt.Sprintf("%T", update)))
		return current
	}
}

func replaceContext(current map[string]any, fn func(map[string]any) map[string]any) map[string]any {
	next := fn(current)
	if next == nil {
		return map[string]any{}
	}
	return next
}
