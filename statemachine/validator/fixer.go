package validator

import (
	"cmp"
	"errors"
	"fmt"
	"slices"

	"github.com/amp-labs/tickfsm/statemachine"
)

var (
	// ErrStateNotFound is returned when a fix names a state that doesn't exist.
	ErrStateNotFound = errors.New("state not found")
	// ErrTransitionNotFound is returned when a fix names a transition that doesn't exist.
	ErrTransitionNotFound = errors.New("transition not found")
	// ErrStateAlreadyExists is returned when attempting to rename to an existing state name.
	ErrStateAlreadyExists = errors.New("state already exists")
	// ErrRemoveInitialState is returned when attempting to remove the initial state.
	ErrRemoveInitialState = errors.New("cannot remove the initial state")
)

type fixKind int

const (
	fixRemoveTransition fixKind = iota
	fixRemoveState
	fixRename
)

// Fix represents an automatic fix for a validation issue.
type Fix struct {
	Description string
	Apply       func(config *statemachine.Config) error

	kind  fixKind
	state string
	index int
}

// RemoveTransition creates a fix that removes the index-th transition of a
// state. The fix refuses to apply if that transition no longer targets to.
func RemoveTransition(state string, index int, to string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove transition %d from '%s' to '%s'", index, state, to),
		kind:        fixRemoveTransition,
		state:       state,
		index:       index,
		Apply: func(config *statemachine.Config) error {
			i := slices.IndexFunc(config.States, func(s statemachine.StateConfig) bool {
				return s.Name == state
			})
			if i < 0 {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, state)
			}

			transitions := config.States[i].Transitions
			if index < 0 || index >= len(transitions) || transitions[index].To != to {
				return fmt.Errorf("%w: %d from '%s' to '%s'", ErrTransitionNotFound, index, state, to)
			}

			config.States[i].Transitions = slices.Delete(slices.Clone(transitions), index, index+1)

			return nil
		},
	}
}

// RemoveUnreachableState creates a fix that removes a state and every
// transition into it.
func RemoveUnreachableState(stateName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Remove unreachable state '%s'", stateName),
		kind:        fixRemoveState,
		state:       stateName,
		Apply: func(config *statemachine.Config) error {
			if config.InitialState == stateName {
				return fmt.Errorf("%w: '%s'", ErrRemoveInitialState, stateName)
			}

			newStates := make([]statemachine.StateConfig, 0, len(config.States))
			found := false

			for _, state := range config.States {
				if state.Name == stateName {
					found = true

					continue
				}

				state.Transitions = slices.DeleteFunc(slices.Clone(state.Transitions),
					func(t statemachine.TransitionConfig) bool {
						return t.To == stateName
					})

				newStates = append(newStates, state)
			}

			if !found {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, stateName)
			}

			config.States = newStates

			return nil
		},
	}
}

// RenameState creates a fix that renames a state and every reference to it.
func RenameState(oldName, newName string) *Fix {
	return &Fix{
		Description: fmt.Sprintf("Rename state from '%s' to '%s'", oldName, newName),
		kind:        fixRename,
		state:       oldName,
		Apply: func(config *statemachine.Config) error {
			for _, state := range config.States {
				if state.Name == newName {
					return fmt.Errorf("%w: '%s'", ErrStateAlreadyExists, newName)
				}
			}

			found := false

			for i := range config.States {
				if config.States[i].Name == oldName {
					config.States[i].Name = newName
					found = true
				}

				for j := range config.States[i].Transitions {
					if config.States[i].Transitions[j].To == oldName {
						config.States[i].Transitions[j].To = newName
					}
				}
			}

			if !found {
				return fmt.Errorf("%w: '%s'", ErrStateNotFound, oldName)
			}

			if config.InitialState == oldName {
				config.InitialState = newName
			}

			return nil
		},
	}
}

// orderFixes puts transition removals first, highest index first within a
// state so earlier indexes stay valid. State removals and renames follow.
func orderFixes(fixes []*Fix) []*Fix {
	removed := make(map[string]bool)

	for _, f := range fixes {
		if f != nil && f.kind == fixRemoveState {
			removed[f.state] = true
		}
	}

	// Renaming a state that is also being removed would fail.
	ordered := slices.DeleteFunc(slices.Clone(fixes), func(f *Fix) bool {
		return f == nil || f.Apply == nil || (f.kind == fixRename && removed[f.state])
	})

	slices.SortStableFunc(ordered, func(a, b *Fix) int {
		if c := cmp.Compare(a.kind, b.kind); c != 0 {
			return c
		}

		if a.kind != fixRemoveTransition {
			return 0
		}

		if c := cmp.Compare(a.state, b.state); c != 0 {
			return c
		}

		return cmp.Compare(b.index, a.index)
	})

	return slices.CompactFunc(ordered, func(a, b *Fix) bool {
		return a.kind == b.kind && a.state == b.state && a.index == b.index && a.Description == b.Description
	})
}

// ApplyFixes applies a list of fixes to a config in a safe order and
// revalidates it.
func ApplyFixes(config *statemachine.Config, fixes []*Fix) error {
	for _, fix := range orderFixes(fixes) {
		err := fix.Apply(config)
		if err != nil {
			return fmt.Errorf("failed to apply fix '%s': %w", fix.Description, err)
		}
	}

	return config.Validate()
}
