// Package statetest provides testing utilities for state machines: a machine
// wrapper that records every tick, matchers over the recorded trace, and
// scripted fact scenarios.
package statetest

import (
	"fmt"
	"testing"

	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/stretchr/testify/require"
)

// TestMachine wraps a Machine over its own Blackboard and records a trace.
type TestMachine struct {
	*statemachine.Machine

	t          testing.TB
	facts      *statemachine.Blackboard
	trace      []TraceEntry
	assertions []Assertion
}

// TraceEntry records a single tick.
type TraceEntry struct {
	Tick        uint64
	From        string
	To          string
	Label       string
	Fired       bool
	Changed     bool
	Diagnostics error
	Facts       statemachine.MapFacts // Facts as they were before the tick
}

// Assertion represents a test assertion.
type Assertion struct {
	Name   string
	Passed bool
	Error  error
}

// NewTestMachine starts a machine on graph with the given initial facts.
func NewTestMachine(
	t testing.TB,
	graph *statemachine.Graph,
	initial statemachine.StateID,
	facts map[string]any,
	opts ...statemachine.Option,
) *TestMachine {
	t.Helper()

	bb, err := statemachine.NewBlackboardFrom(facts)
	require.NoError(t, err, "failed to seed facts")

	machine, err := statemachine.NewMachine(graph, initial, bb, opts...)
	require.NoError(t, err, "failed to create machine")

	return &TestMachine{
		Machine: machine,
		t:       t,
		facts:   bb,
	}
}

// NewTestMachineFromConfig builds config with factory (nil for the built-ins)
// and starts a machine on it.
func NewTestMachineFromConfig(
	t testing.TB,
	config *statemachine.Config,
	factory *statemachine.ConditionFactory,
	facts map[string]any,
) *TestMachine {
	t.Helper()

	graph, initial, err := config.Build(factory)
	require.NoError(t, err, "failed to build graph")

	return NewTestMachine(t, graph, initial, facts)
}

// Facts returns the machine's blackboard.
func (tm *TestMachine) Facts() *statemachine.Blackboard {
	return tm.facts
}

// Set writes facts before the next tick.
func (tm *TestMachine) Set(values map[string]any) *TestMachine {
	tm.t.Helper()

	require.NoError(tm.t, tm.facts.SetAll(values), "failed to set facts")

	return tm
}

// Delete removes facts before the next tick.
func (tm *TestMachine) Delete(keys ...string) *TestMachine {
	for _, key := range keys {
		tm.facts.Delete(key)
	}

	return tm
}

// Tick steps the machine once and records the result.
func (tm *TestMachine) Tick() statemachine.StepResult {
	tm.t.Helper()

	snapshot, err := tm.facts.Snapshot(tm.t.Context())
	require.NoError(tm.t, err)

	result := tm.Step(tm.t.Context())

	entry := TraceEntry{
		Tick:        result.Tick,
		From:        result.From.Name(),
		To:          result.To.Name(),
		Changed:     result.Changed,
		Diagnostics: result.Diagnostics,
		Facts:       snapshot.(statemachine.MapFacts), //nolint:forcetypeassert // Blackboard snapshots are MapFacts
	}

	if transition, ok := result.Transition.Get(); ok {
		entry.Fired = true
		entry.Label = transition.Label()
	}

	tm.trace = append(tm.trace, entry)

	return result
}

// TickN steps the machine n times.
func (tm *TestMachine) TickN(n int) *TestMachine {
	tm.t.Helper()

	for range n {
		tm.Tick()
	}

	return tm
}

func (tm *TestMachine) record(assertion Assertion) {
	tm.assertions = append(tm.assertions, assertion)
}

// AssertState checks the active state.
func (tm *TestMachine) AssertState(expected string) {
	tm.t.Helper()

	actual := tm.ActiveState().Name()

	assertion := Assertion{
		Name:   fmt.Sprintf("Active state is '%s'", expected),
		Passed: actual == expected,
	}

	if actual != expected {
		assertion.Error = fmt.Errorf("%w: expected '%s', got '%s'", ErrWrongState, expected, actual)
	}

	tm.record(assertion)
	require.Equal(tm.t, expected, actual, "active state should be '%s'", expected)
}

// AssertStateVisited checks if a state was active after any recorded tick.
func (tm *TestMachine) AssertStateVisited(stateName string) {
	tm.t.Helper()

	tm.assertMatcher(StateWasVisited(stateName))
}

// AssertTransitionTaken checks if a transition from one state to another fired.
func (tm *TestMachine) AssertTransitionTaken(from, to string) {
	tm.t.Helper()

	tm.assertMatcher(TransitionWasTaken(from, to))
}

// AssertNoDiagnostics checks that no recorded tick reported diagnostics.
func (tm *TestMachine) AssertNoDiagnostics() {
	tm.t.Helper()

	tm.assertMatcher(NoDiagnostics())
}

// AssertDiagnostic checks that some recorded tick reported an error matching target.
func (tm *TestMachine) AssertDiagnostic(target error) {
	tm.t.Helper()

	tm.assertMatcher(DiagnosticIs(target))
}

// Assert runs a matcher against the trace.
func (tm *TestMachine) Assert(matcher Matcher) {
	tm.t.Helper()

	tm.assertMatcher(matcher)
}

func (tm *TestMachine) assertMatcher(matcher Matcher) {
	tm.t.Helper()

	matched, err := matcher.Match(tm)

	tm.record(Assertion{
		Name:   matcher.Description(),
		Passed: matched && err == nil,
		Error:  err,
	})

	require.NoError(tm.t, err, matcher.Description())
	require.True(tm.t, matched, matcher.Description())
}

// Path returns the active state after each recorded tick, starting with the
// state before the first one.
func (tm *TestMachine) Path() []string {
	if len(tm.trace) == 0 {
		return []string{tm.ActiveState().Name()}
	}

	path := []string{tm.trace[0].From}
	for _, entry := range tm.trace {
		path = append(path, entry.To)
	}

	return path
}

// GetTrace returns the recorded ticks.
func (tm *TestMachine) GetTrace() []TraceEntry {
	return tm.trace
}

// GetAssertions returns all assertions made.
func (tm *TestMachine) GetAssertions() []Assertion {
	return tm.assertions
}
