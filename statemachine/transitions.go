package statemachine

import (
	"context"
	"errors"
	"slices"
	"strings"
)

// Transition is a guarded edge between two states of the same Graph.
type Transition struct {
	graph      *Graph
	from       StateID
	to         StateID
	label      string
	conditions []Condition
}

// From returns the source state ID.
func (t *Transition) From() StateID {
	return t.from
}

// To returns the target state ID.
func (t *Transition) To() StateID {
	return t.to
}

// FromState returns the source state.
func (t *Transition) FromState() *State {
	return t.graph.mustState(t.from)
}

// ToState returns the target state.
func (t *Transition) ToState() *State {
	return t.graph.mustState(t.to)
}

// Label returns the optional human-readable name of the edge.
func (t *Transition) Label() string {
	return t.label
}

// Conditions returns a copy of the guard list.
func (t *Transition) Conditions() []Condition {
	return slices.Clone(t.conditions)
}

// Test evaluates every condition, even after one has failed, and fires only
// when all of them hold. An empty condition list always fires. Diagnostics
// from conditions are joined and returned alongside the verdict.
func (t *Transition) Test(ctx context.Context, facts Facts) (bool, error) {
	fires := true

	var errs []error

	for _, cond := range t.conditions {
		ok, err := cond.Evaluate(ctx, facts)
		if err != nil {
			errs = append(errs, wrapConditionError(cond, err))
			ok = false
		}

		fires = fires && ok
	}

	return fires, errors.Join(errs...)
}

func (t *Transition) String() string {
	var sb strings.Builder

	sb.WriteString(t.FromState().Name())
	sb.WriteString(" -> ")
	sb.WriteString(t.ToState().Name())

	if len(t.conditions) > 0 {
		parts := make([]string, len(t.conditions))
		for i, cond := range t.conditions {
			parts[i] = cond.String()
		}

		sb.WriteString(" [")
		sb.WriteString(strings.Join(parts, " && "))
		sb.WriteString("]")
	}

	return sb.String()
}
