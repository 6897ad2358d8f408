package statemachine

import (
	"context"
	"errors"
	"slices"

	"github.com/amp-labs/tickfsm/optional"
)

// State is a named node holding its outgoing transitions in declaration order.
type State struct {
	id          StateID
	name        string
	transitions []*Transition
}

// ID returns the state's index in its graph.
func (s *State) ID() StateID {
	return s.id
}

// Name returns the state name.
func (s *State) Name() string {
	return s.name
}

// Transitions returns the outgoing transitions in declaration order.
func (s *State) Transitions() []*Transition {
	return slices.Clone(s.transitions)
}

// TestTransiting tests every outgoing transition in declaration order and
// returns the last one that fires. When several transitions fire on the same
// tick, the one declared later wins. None means the machine stays put.
func (s *State) TestTransiting(ctx context.Context, facts Facts) (optional.Value[*Transition], error) {
	match := optional.None[*Transition]()

	var errs []error

	for _, t := range s.transitions {
		fires, err := t.Test(ctx, facts)
		if err != nil {
			errs = append(errs, WrapTransitionError(s.name, t.ToState().Name(), err))
		}

		if fires {
			match = optional.Some(t)
		}
	}

	return match, errors.Join(errs...)
}

func (s *State) String() string {
	return s.name
}
