package statemachine

import (
	"errors"
	"fmt"
)

// Predefined error types.
var (
	// ErrMissingFact indicates that a condition referenced a key absent from the facts.
	ErrMissingFact = errors.New("fact not found")
	// ErrTypeMismatch indicates that a fact holds a value of the wrong kind for a condition.
	ErrTypeMismatch = errors.New("fact has wrong type")
	// ErrUnsupportedValue indicates that a Go value cannot be stored as a fact.
	ErrUnsupportedValue = errors.New("unsupported fact value")
	// ErrInvalidValueText indicates that serialized value text could not be parsed.
	ErrInvalidValueText = errors.New("invalid value text")

	// ErrMalformedCondition indicates that a condition was built with inconsistent parameters.
	ErrMalformedCondition = errors.New("malformed condition")
	// ErrUnknownComparator indicates an unrecognized comparator.
	ErrUnknownComparator = errors.New("unknown comparator")
	// ErrConditionKeyRequired indicates that a fact key is required.
	ErrConditionKeyRequired = errors.New("condition fact key is required")
	// ErrNonNumericOperand indicates that a literal numeric operand is not a number.
	ErrNonNumericOperand = errors.New("operand is not numeric")
	// ErrScriptResult indicates that a script condition did not produce a boolean.
	ErrScriptResult = errors.New("script condition did not produce a boolean")
	// ErrUnknownConditionType indicates that no builder is registered for a condition type.
	ErrUnknownConditionType = errors.New("unknown condition type")

	// ErrDanglingTransition indicates that a transition points outside its graph.
	ErrDanglingTransition = errors.New("transition references a state outside the graph")
	// ErrStateNameRequired indicates that a state name is required.
	ErrStateNameRequired = errors.New("state name is required")
	// ErrDuplicateStateName indicates that a duplicate state name was found.
	ErrDuplicateStateName = errors.New("duplicate state name")
	// ErrStateNotFound indicates a state lookup by name or ID failed.
	ErrStateNotFound = errors.New("state not found")
	// ErrGraphFrozen indicates an attempt to mutate a graph that a machine is running.
	ErrGraphFrozen = errors.New("graph is frozen")
	// ErrEmptyGraph indicates that a graph has no states.
	ErrEmptyGraph = errors.New("graph has no states")

	// ErrNilActiveState indicates that a machine would have no active state.
	ErrNilActiveState = errors.New("machine has no active state")
	// ErrInitialStateNotFound indicates that the initial state does not exist.
	ErrInitialStateNotFound = fmt.Errorf("initial state does not exist: %w", ErrNilActiveState)
	// ErrNilGraph indicates that a machine was constructed without a graph.
	ErrNilGraph = errors.New("graph is required")
	// ErrNilFactStore indicates that a machine was constructed without a fact store.
	ErrNilFactStore = errors.New("fact store is required")

	// ErrConfigNameRequired indicates that a configuration name is required.
	ErrConfigNameRequired = errors.New("config name is required")
	// ErrInitialStateRequired indicates that an initial state is required.
	ErrInitialStateRequired = errors.New("initial state is required")
	// ErrStateRequired indicates that at least one state is required.
	ErrStateRequired = errors.New("at least one state is required")
	// ErrTransitionToRequired indicates that a transition target is required.
	ErrTransitionToRequired = errors.New("transition to state is required")
	// ErrTransitionToNotFound indicates that a transition target does not exist.
	ErrTransitionToNotFound = errors.New("transition to state does not exist")
)

// FactError wraps a fact lookup failure with the key involved.
type FactError struct {
	Key string
	Err error
}

func (e *FactError) Error() string {
	return fmt.Sprintf("fact %q: %v", e.Key, e.Err)
}

func (e *FactError) Unwrap() error {
	return e.Err
}

// ConditionError wraps an evaluation diagnostic with the condition that produced it.
type ConditionError struct {
	Condition string
	Err       error
}

func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition %s: %v", e.Condition, e.Err)
}

func (e *ConditionError) Unwrap() error {
	return e.Err
}

// StateError wraps an error with state context.
type StateError struct {
	State string
	Err   error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state %s: %v", e.State, e.Err)
}

func (e *StateError) Unwrap() error {
	return e.Err
}

// TransitionError wraps an error with transition context.
type TransitionError struct {
	From string
	To   string
	Err  error
}

func (e *TransitionError) Error() string {
	if e.To == "" {
		return fmt.Sprintf("transition from %s: %v", e.From, e.Err)
	}

	return fmt.Sprintf("transition %s -> %s: %v", e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error {
	return e.Err
}

// WrapStateError wraps an error with state context.
func WrapStateError(state string, err error) error {
	if err == nil {
		return nil
	}

	return &StateError{
		State: state,
		Err:   err,
	}
}

// WrapTransitionError wraps an error with transition context.
func WrapTransitionError(from, to string, err error) error {
	if err == nil {
		return nil
	}

	return &TransitionError{
		From: from,
		To:   to,
		Err:  err,
	}
}

func wrapFactError(key string, err error) error {
	return &FactError{Key: key, Err: err}
}

func wrapConditionError(cond Condition, err error) error {
	if err == nil {
		return nil
	}

	return &ConditionError{Condition: cond.String(), Err: err}
}
