package engine

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"github.com/juhanik/flowstate/pkg/api"
)

var structValidator = validator.New(validator.WithRequiredStructEnabled())

// Validate checks a flow definition for referential integrity: field-level
// constraints first, then the start pointer and every statically declared
// transition target. All violations are collected before failing, so a caller
// sees every broken reference in one pass; the result is a single
// *api.ValidationError. Resolver-based transitions cannot be checked
// statically and are verified at transition time instead.
func Validate(def api.FlowDefinition) error {
	var issues []string

	if err := structValidator.Struct(def); err != nil {
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				issues = append(issues, fmt.Sprintf("field %s violates %q", fe.Field(), fe.Tag()))
			}
		} else {
			issues = append(issues, err.Error())
		}
	}

	if def.Start != "" && len(def.Steps) > 0 {
		if _, ok := def.Steps[def.Start]; !ok {
			issues = append(issues, fmt.Sprintf("start step %q is not defined", def.Start))
		}
	}

	// Walk steps in sorted order so the aggregated message is deterministic.
	ids := make([]string, 0, len(def.Steps))
	for id := range def.Steps {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	for _, id := range ids {
		if id == "" {
			issues = append(issues, "step with empty identifier")
			continue
		}
		step := def.Steps[id]
		if step.Next != "" && len(step.NextOneOf) > 0 {
			issues = append(issues, fmt.Sprintf("step %q declares both a single destination and branch options", id))
		}
		for _, target := range step.Targets() {
			if target == "" {
				issues = append(issues, fmt.Sprintf("step %q declares an empty transition target", id))
				continue
			}
			if _, ok := def.Steps[target]; !ok {
				issues = append(issues, fmt.Sprintf("step %q references unknown step %q", id, target))
			}
		}
	}

	if len(issues) > 0 {
		return &api.ValidationError{FlowID: def.ID, Issues: issues}
	}
	return nil
}
