package statemachine

import (
	"errors"
	"fmt"
)

// Builder provides a fluent API for constructing graphs by state name.
// Errors are collected and reported together by Build.
type Builder struct {
	graph   *Graph
	initial string
	errs    []error
}

// NewBuilder creates a new graph builder.
func NewBuilder(name string) *Builder {
	return &Builder{
		graph: NewGraph(name),
	}
}

// State adds one or more states.
func (b *Builder) State(names ...string) *Builder {
	for _, name := range names {
		if _, err := b.graph.AddState(name); err != nil {
			b.errs = append(b.errs, err)
		}
	}

	return b
}

// Initial sets the initial state. The first state added is used when unset.
func (b *Builder) Initial(name string) *Builder {
	b.initial = name

	return b
}

// When adds a transition from one named state to another guarded by conditions.
func (b *Builder) When(from, to string, conditions ...Condition) *Builder {
	return b.WhenLabeled("", from, to, conditions...)
}

// WhenLabeled is When with a display label.
func (b *Builder) WhenLabeled(label, from, to string, conditions ...Condition) *Builder {
	src, ok := b.graph.StateByName(from)
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("%w: from %s", ErrDanglingTransition, from))

		return b
	}

	dst, ok := b.graph.StateByName(to)
	if !ok {
		b.errs = append(b.errs, fmt.Errorf("%w: to %s", ErrDanglingTransition, to))

		return b
	}

	if _, err := b.graph.AddLabeledTransition(label, src.ID(), dst.ID(), conditions...); err != nil {
		b.errs = append(b.errs, err)
	}

	return b
}

// WhenFact adds a transition guarded by a single boolean fact.
func (b *Builder) WhenFact(from, to, key string, expected bool) *Builder {
	cond, err := NewBoolCondition(key, expected)
	if err != nil {
		b.errs = append(b.errs, err)

		return b
	}

	return b.When(from, to, cond)
}

// Build returns the graph and initial state ID.
func (b *Builder) Build() (*Graph, StateID, error) {
	if len(b.errs) > 0 {
		return nil, NoState, errors.Join(b.errs...)
	}

	if err := b.graph.Validate(); err != nil {
		return nil, NoState, err
	}

	initial := b.initial
	if initial == "" {
		initial = b.graph.States()[0].Name()
	}

	s, ok := b.graph.StateByName(initial)
	if !ok {
		return nil, NoState, fmt.Errorf("%w: %s", ErrInitialStateNotFound, initial)
	}

	return b.graph, s.ID(), nil
}

// BuildMachine builds the graph and starts a machine on it.
func (b *Builder) BuildMachine(store FactStore, opts ...Option) (*Machine, error) {
	graph, initial, err := b.Build()
	if err != nil {
		return nil, err
	}

	return NewMachine(graph, initial, store, opts...)
}
