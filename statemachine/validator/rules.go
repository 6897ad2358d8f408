package validator

import (
	"fmt"
	"slices"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/tickfsm/statemachine"
)

// Severity defines the severity level of a validation issue.
type Severity int

const (
	SeverityError Severity = iota
	SeverityWarning
)

// RuleResult contains both errors and warnings from a rule check.
type RuleResult struct {
	Errors   []ValidationError
	Warnings []ValidationWarning
}

// Rule defines a validation rule that checks a graph for specific issues.
type Rule interface {
	Name() string
	Severity() Severity
	Check(subject Subject) RuleResult
}

// DefaultRules returns the standard set of validation rules.
func DefaultRules() []Rule {
	return []Rule{
		&unreachableStateRule{},
		&deadEndRule{},
		&duplicateTransitionRule{},
		&shadowedTransitionRule{},
		&namingConventionRule{},
	}
}

// unreachableStateRule reports states no path from the initial state leads to.
type unreachableStateRule struct{}

func (r *unreachableStateRule) Name() string {
	return "UnreachableState"
}

func (r *unreachableStateRule) Severity() Severity {
	return SeverityWarning
}

func (r *unreachableStateRule) Check(subject Subject) RuleResult {
	var warnings []ValidationWarning

	initial, ok := subject.Graph.State(subject.Initial)
	if !ok {
		return RuleResult{Errors: []ValidationError{{
			Code:     "INITIAL_STATE_MISSING",
			Message:  fmt.Sprintf("Initial state %d is not in graph '%s'", subject.Initial, subject.Graph.Name()),
			Location: stateLocation(""),
		}}}
	}

	reachable := map[statemachine.StateID]bool{initial.ID(): true}

	queue := []*statemachine.State{initial}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, t := range current.Transitions() {
			if !reachable[t.To()] {
				reachable[t.To()] = true
				queue = append(queue, t.ToState())
			}
		}
	}

	var unreachable []string

	for _, state := range subject.Graph.States() {
		if !reachable[state.ID()] {
			unreachable = append(unreachable, state.Name())
		}
	}

	natsort.Sort(unreachable)

	for _, name := range unreachable {
		warnings = append(warnings, ValidationWarning{
			Code:     "UNREACHABLE_STATE",
			Message:  fmt.Sprintf("State '%s' cannot be reached from initial state '%s'", name, initial.Name()),
			Location: stateLocation(name),
			Fix:      RemoveUnreachableState(name),
		})
	}

	return RuleResult{Warnings: warnings}
}

// deadEndRule reports states a machine can never leave once it enters them.
type deadEndRule struct{}

func (r *deadEndRule) Name() string {
	return "DeadEnd"
}

func (r *deadEndRule) Severity() Severity {
	return SeverityWarning
}

func (r *deadEndRule) Check(subject Subject) RuleResult {
	var warnings []ValidationWarning

	for _, state := range subject.Graph.States() {
		leaves := slices.ContainsFunc(state.Transitions(), func(t *statemachine.Transition) bool {
			return t.To() != state.ID()
		})

		if !leaves {
			warnings = append(warnings, ValidationWarning{
				Code:     "DEAD_END_STATE",
				Message:  fmt.Sprintf("State '%s' has no transition to another state; machines entering it stay forever", state.Name()),
				Location: stateLocation(state.Name()),
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// duplicateTransitionRule reports transitions with the same target and the
// same set of guards as an earlier one from the same state.
type duplicateTransitionRule struct{}

func (r *duplicateTransitionRule) Name() string {
	return "DuplicateTransition"
}

func (r *duplicateTransitionRule) Severity() Severity {
	return SeverityError
}

func (r *duplicateTransitionRule) Check(subject Subject) RuleResult {
	var errors []ValidationError

	for _, state := range subject.Graph.States() {
		seen := make(map[string]bool)

		for i, t := range state.Transitions() {
			key := t.ToState().Name() + "|" + strings.Join(guardSet(t), "&")
			if seen[key] {
				errors = append(errors, ValidationError{
					Code: "DUPLICATE_TRANSITION",
					Message: fmt.Sprintf("Transition %d from '%s' to '%s' repeats an earlier transition",
						i, state.Name(), t.ToState().Name()),
					Location: Location{State: state.Name(), Transition: i},
					Fix:      RemoveTransition(state.Name(), i, t.ToState().Name()),
				})
			}

			seen[key] = true
		}
	}

	return RuleResult{Errors: errors}
}

// shadowedTransitionRule reports transitions that can never be taken because
// a later transition from the same state fires whenever they do, and the
// later match wins. A later transition shadows an earlier one when its guards
// are a subset of the earlier one's; an unguarded transition shadows
// everything declared before it.
type shadowedTransitionRule struct{}

func (r *shadowedTransitionRule) Name() string {
	return "ShadowedTransition"
}

func (r *shadowedTransitionRule) Severity() Severity {
	return SeverityError
}

func (r *shadowedTransitionRule) Check(subject Subject) RuleResult {
	var errors []ValidationError

	for _, state := range subject.Graph.States() {
		transitions := state.Transitions()

		for i, earlier := range transitions {
			earlierGuards := guardSet(earlier)

			for j := i + 1; j < len(transitions); j++ {
				later := transitions[j]

				// Exact repeats are reported by the duplicate rule.
				if later.To() == earlier.To() && slices.Equal(guardSet(later), earlierGuards) {
					continue
				}

				if !isSubset(guardSet(later), earlierGuards) {
					continue
				}

				errors = append(errors, ValidationError{
					Code: "SHADOWED_TRANSITION",
					Message: fmt.Sprintf("Transition %d from '%s' to '%s' is always overridden by transition %d to '%s'",
						i, state.Name(), earlier.ToState().Name(), j, later.ToState().Name()),
					Location: Location{State: state.Name(), Transition: i},
					Fix:      RemoveTransition(state.Name(), i, earlier.ToState().Name()),
				})

				break
			}
		}
	}

	return RuleResult{Errors: errors}
}

// namingConventionRule warns about state names that are not snake_case.
type namingConventionRule struct{}

func (r *namingConventionRule) Name() string {
	return "NamingConvention"
}

func (r *namingConventionRule) Severity() Severity {
	return SeverityWarning
}

func (r *namingConventionRule) Check(subject Subject) RuleResult {
	var warnings []ValidationWarning

	for _, state := range subject.Graph.States() {
		if !isSnakeCase(state.Name()) {
			suggested := toSnakeCase(state.Name())

			warnings = append(warnings, ValidationWarning{
				Code: "NAMING_CONVENTION",
				Message: fmt.Sprintf("State '%s' should use snake_case naming (suggested: '%s')",
					state.Name(), suggested),
				Location: stateLocation(state.Name()),
				Fix:      RenameState(state.Name(), suggested),
			})
		}
	}

	return RuleResult{Warnings: warnings}
}

// guardSet returns the sorted, de-duplicated guard texts of t. Guards are
// conjunctive, so order and repetition do not change when t fires.
func guardSet(t *statemachine.Transition) []string {
	conditions := t.Conditions()

	guards := make([]string, 0, len(conditions))
	for _, cond := range conditions {
		guards = append(guards, cond.String())
	}

	slices.Sort(guards)

	return slices.Compact(guards)
}

func isSubset(sub, super []string) bool {
	for _, s := range sub {
		if _, found := slices.BinarySearch(super, s); !found {
			return false
		}
	}

	return true
}

func isSnakeCase(s string) bool {
	for _, r := range s {
		if r >= 'A' && r <= 'Z' {
			return false
		}

		if r == '-' || r == ' ' {
			return false
		}
	}

	return true
}

func toSnakeCase(s string) string {
	var result []rune

	for i, r := range s {
		switch {
		case r >= 'A' && r <= 'Z':
			if i > 0 {
				result = append(result, '_')
			}

			result = append(result, r+('a'-'A'))
		case r == '-' || r == ' ':
			result = append(result, '_')
		default:
			result = append(result, r)
		}
	}

	return string(result)
}
