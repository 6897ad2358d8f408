package statemachine

import "context"

// Condition is an atomic predicate over the facts of a single tick.
//
// Evaluate must not mutate anything. A non-nil error is a diagnostic: the
// condition is treated as false for this tick, and the error is surfaced to
// the driver through StepResult.Diagnostics.
type Condition interface {
	Evaluate(ctx context.Context, facts Facts) (bool, error)
	String() string
}

// StateID indexes a state within its Graph.
type StateID int

// NoState is the StateID returned when a lookup fails.
const NoState StateID = -1
