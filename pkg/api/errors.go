package api

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotSupported is returned when an enumeration operation (List, RemoveFlow,
// RemoveAll) is requested from a store that cannot enumerate its keys. This is
// a capability gap, not a failure.
var ErrNotSupported = errors.New("flowstate: store does not support enumeration")

// ValidationError aggregates every referential-integrity violation found in a
// flow definition. Validation collects all issues before failing so a broken
// definition can be fixed in one pass.
type ValidationError struct {
	FlowID string
	Issues []string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("flowstate: invalid definition %q: %s", e.FlowID, strings.Join(e.Issues, "; "))
}

// BranchError reports a NEXT/SKIP on a branch step with neither an explicit
// target nor a registered resolver. This is a flow-authoring bug; Options
// names every legal destination.
type BranchError struct {
	StepID  string
	Options []string
}

func (e *BranchError) Error() string {
	return fmt.Sprintf("flowstate: branch step %q needs a resolver or an explicit target (options: %s)",
		e.StepID, strings.Join(e.Options, ", "))
}

// ResolverError reports a resolver returning a destination outside the branch
// step's declared options.
type ResolverError struct {
	StepID  string
	Result  string
	Options []string
}

func (e *ResolverError) Error() string {
	return fmt.Sprintf("flowstate: resolver for step %q returned %q, not one of [%s]",
		e.StepID, e.Result, strings.Join(e.Options, ", "))
}

// MigrationError reports a migration function producing a structurally invalid
// state. Like a resolver leaving its domain, this cannot be retried away.
type MigrationError struct {
	FlowID      string
	FromVersion string
	Reason      string
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("flowstate: migration of flow %q from version %q produced invalid state: %s",
		e.FlowID, e.FromVersion, e.Reason)
}
