package statemachine

import (
	"fmt"
	"strconv"
	"sync"

	"github.com/zeebo/xxh3"
)

// Graph is an arena of states. States are addressed by StateID, the index
// at which they were added, and transitions store IDs rather than pointers.
// A graph is mutable until Freeze; NewMachine freezes the graph it runs.
type Graph struct {
	mu     sync.RWMutex
	name   string
	states []*State
	byName map[string]StateID
	frozen bool
}

// NewGraph creates an empty graph.
func NewGraph(name string) *Graph {
	return &Graph{
		name:   name,
		byName: make(map[string]StateID),
	}
}

// Name returns the graph name.
func (g *Graph) Name() string {
	return g.name
}

// AddState appends a state and returns its ID.
func (g *Graph) AddState(name string) (StateID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return NoState, ErrGraphFrozen
	}

	if name == "" {
		return NoState, ErrStateNameRequired
	}

	if _, exists := g.byName[name]; exists {
		return NoState, fmt.Errorf("%w: %s", ErrDuplicateStateName, name)
	}

	id := StateID(len(g.states))
	g.states = append(g.states, &State{id: id, name: name})
	g.byName[name] = id

	return id, nil
}

// AddTransition appends an edge to the outgoing list of from. Both endpoints
// must already exist in this graph.
func (g *Graph) AddTransition(from, to StateID, conditions ...Condition) (*Transition, error) {
	return g.AddLabeledTransition("", from, to, conditions...)
}

// AddLabeledTransition is AddTransition with a display label.
func (g *Graph) AddLabeledTransition(label string, from, to StateID, conditions ...Condition) (*Transition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return nil, ErrGraphFrozen
	}

	if !g.contains(from) {
		return nil, fmt.Errorf("%w: from state %d", ErrDanglingTransition, from)
	}

	if !g.contains(to) {
		return nil, fmt.Errorf("%w: to state %d", ErrDanglingTransition, to)
	}

	for i, cond := range conditions {
		if cond == nil {
			return nil, fmt.Errorf("%w: condition %d is nil", ErrMalformedCondition, i)
		}
	}

	t := &Transition{
		graph:      g,
		from:       from,
		to:         to,
		label:      label,
		conditions: append([]Condition(nil), conditions...),
	}

	src := g.states[from]
	src.transitions = append(src.transitions, t)

	return t, nil
}

// State returns the state with the given ID.
func (g *Graph) State(id StateID) (*State, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if !g.contains(id) {
		return nil, false
	}

	return g.states[id], true
}

// StateByName looks a state up by name.
func (g *Graph) StateByName(name string) (*State, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	id, ok := g.byName[name]
	if !ok {
		return nil, false
	}

	return g.states[id], true
}

// MustStateID returns the ID of the named state or panics. Intended for fixtures.
func (g *Graph) MustStateID(name string) StateID {
	s, ok := g.StateByName(name)
	if !ok {
		panic(fmt.Sprintf("statemachine: graph %q has no state %q", g.name, name))
	}

	return s.id
}

// States returns all states in ID order.
func (g *Graph) States() []*State {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return append([]*State(nil), g.states...)
}

// Len returns the number of states.
func (g *Graph) Len() int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return len(g.states)
}

// Transitions returns every transition, grouped by source state in ID order.
func (g *Graph) Transitions() []*Transition {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var out []*Transition
	for _, s := range g.states {
		out = append(out, s.transitions...)
	}

	return out
}

// Validate checks structural invariants: at least one state, and every
// transition endpoint inside the arena and owned by its source state.
func (g *Graph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if len(g.states) == 0 {
		return ErrEmptyGraph
	}

	for _, s := range g.states {
		for _, t := range s.transitions {
			if t.graph != g || t.from != s.id || !g.contains(t.to) {
				return WrapStateError(s.name, fmt.Errorf("%w: %d -> %d", ErrDanglingTransition, t.from, t.to))
			}
		}
	}

	return nil
}

// Freeze makes the graph read-only.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.frozen = true
}

// Frozen reports whether the graph is read-only.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.frozen
}

// Fingerprint hashes the graph's structure: state names, edges and guard text.
// Two graphs with equal fingerprints behave identically.
func (g *Graph) Fingerprint() uint64 {
	g.mu.RLock()
	defer g.mu.RUnlock()

	h := xxh3.New()

	_, _ = h.WriteString(g.name)

	for _, s := range g.states {
		_, _ = h.WriteString("\x00s:" + s.name)

		for _, t := range s.transitions {
			_, _ = h.WriteString("\x00t:" + strconv.Itoa(int(t.to)) + ":" + t.label)

			for _, cond := range t.conditions {
				_, _ = h.WriteString("\x00c:" + cond.String())
			}
		}
	}

	return h.Sum64()
}

func (g *Graph) contains(id StateID) bool {
	return id >= 0 && int(id) < len(g.states)
}

func (g *Graph) mustState(id StateID) *State {
	s, ok := g.State(id)
	if !ok {
		panic(fmt.Sprintf("statemachine: graph %q has no state %d", g.name, id))
	}

	return s
}
