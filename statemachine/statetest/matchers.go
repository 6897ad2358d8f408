package statetest

import (
	"errors"
	"fmt"
	"slices"
)

// Matcher errors.
var (
	ErrNoTrace            = errors.New("no ticks recorded")
	ErrNoMatchersPassed   = errors.New("no matchers passed")
	ErrWrongState         = errors.New("unexpected active state")
	ErrStateNotVisited    = errors.New("state was not visited")
	ErrTransitionNotTaken = errors.New("transition was not taken")
	ErrUnexpectedDiag     = errors.New("tick reported diagnostics")
	ErrDiagnosticMissing  = errors.New("no tick reported the expected diagnostic")
	ErrPathMismatch       = errors.New("state path mismatch")
)

// Matcher defines an assertion matcher interface.
type Matcher interface {
	Match(tm *TestMachine) (bool, error)
	Description() string
}

// StateWasVisited creates a matcher that checks if a state was active after any tick.
func StateWasVisited(name string) Matcher {
	return &stateVisitedMatcher{stateName: name}
}

type stateVisitedMatcher struct {
	stateName string
}

func (m *stateVisitedMatcher) Match(tm *TestMachine) (bool, error) {
	if slices.Contains(tm.Path(), m.stateName) {
		return true, nil
	}

	return false, fmt.Errorf("%w: '%s'", ErrStateNotVisited, m.stateName)
}

func (m *stateVisitedMatcher) Description() string {
	return fmt.Sprintf("state '%s' should be visited", m.stateName)
}

// TransitionWasTaken creates a matcher that checks if a transition fired.
func TransitionWasTaken(from, to string) Matcher {
	return &transitionTakenMatcher{from: from, to: to}
}

type transitionTakenMatcher struct {
	from string
	to   string
}

func (m *transitionTakenMatcher) Match(tm *TestMachine) (bool, error) {
	for _, entry := range tm.trace {
		if entry.Fired && entry.From == m.from && entry.To == m.to {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: from '%s' to '%s'", ErrTransitionNotTaken, m.from, m.to)
}

func (m *transitionTakenMatcher) Description() string {
	return fmt.Sprintf("transition from '%s' to '%s' should be taken", m.from, m.to)
}

// FollowedPath creates a matcher that checks the exact sequence of active states.
func FollowedPath(states ...string) Matcher {
	return &pathMatcher{states: states}
}

type pathMatcher struct {
	states []string
}

func (m *pathMatcher) Match(tm *TestMachine) (bool, error) {
	if len(tm.trace) == 0 {
		return false, ErrNoTrace
	}

	if actual := tm.Path(); !slices.Equal(actual, m.states) {
		return false, fmt.Errorf("%w: got %v, want %v", ErrPathMismatch, actual, m.states)
	}

	return true, nil
}

func (m *pathMatcher) Description() string {
	return fmt.Sprintf("machine should follow %v", m.states)
}

// NoDiagnostics creates a matcher that checks every tick evaluated cleanly.
func NoDiagnostics() Matcher {
	return &noDiagnosticsMatcher{}
}

type noDiagnosticsMatcher struct{}

func (m *noDiagnosticsMatcher) Match(tm *TestMachine) (bool, error) {
	if len(tm.trace) == 0 {
		return false, ErrNoTrace
	}

	for _, entry := range tm.trace {
		if entry.Diagnostics != nil {
			return false, fmt.Errorf("%w: tick %d: %w", ErrUnexpectedDiag, entry.Tick, entry.Diagnostics)
		}
	}

	return true, nil
}

func (m *noDiagnosticsMatcher) Description() string {
	return "ticks should report no diagnostics"
}

// DiagnosticIs creates a matcher that checks some tick reported target.
func DiagnosticIs(target error) Matcher {
	return &diagnosticMatcher{target: target}
}

type diagnosticMatcher struct {
	target error
}

func (m *diagnosticMatcher) Match(tm *TestMachine) (bool, error) {
	for _, entry := range tm.trace {
		if errors.Is(entry.Diagnostics, m.target) {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: %w", ErrDiagnosticMissing, m.target)
}

func (m *diagnosticMatcher) Description() string {
	return fmt.Sprintf("a tick should report %v", m.target)
}

// All creates a matcher that requires all sub-matchers to pass.
func All(matchers ...Matcher) Matcher {
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(tm *TestMachine) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(tm)
		if !matched || err != nil {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any creates a matcher that requires at least one sub-matcher to pass.
func Any(matchers ...Matcher) Matcher {
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(tm *TestMachine) (bool, error) {
	for _, matcher := range m.matchers {
		matched, err := matcher.Match(tm)
		if matched && err == nil {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}
