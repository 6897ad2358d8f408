package statemachine

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/amp-labs/tickfsm/optional"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const defaultHistoryLimit = 64

// Step outcome labels.
const (
	outcomeTransition = "transition"
	outcomeStay       = "stay"
	outcomeError      = "error"
)

// TransitionRecord is one entry in a machine's history.
type TransitionRecord struct {
	Tick      uint64
	From      string
	To        string
	Label     string
	Timestamp time.Time
}

// StepResult describes one tick.
type StepResult struct {
	Tick       uint64
	From       *State
	To         *State
	Transition optional.Value[*Transition]
	// Changed is true when the active state differs after the step. A fired
	// self-loop has a Transition but Changed is false.
	Changed bool
	// Diagnostics joins every condition and fact-store error seen during the
	// step. They never abort the step; a failing condition counts as false.
	Diagnostics error
}

// TransitionHook is called after a step that fired a transition, outside the
// machine's lock.
type TransitionHook func(ctx context.Context, m *Machine, record TransitionRecord)

// Option configures a Machine.
type Option func(*Machine)

// WithID sets the machine ID. The default is a random UUID.
func WithID(id string) Option {
	return func(m *Machine) {
		m.id = id
	}
}

// WithLogger sets the logging hooks.
func WithLogger(logger Logger) Option {
	return func(m *Machine) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithHistoryLimit bounds the number of retained transition records. Zero
// disables history.
func WithHistoryLimit(limit int) Option {
	return func(m *Machine) {
		m.historyLimit = max(limit, 0)
	}
}

// WithTransitionHook registers a hook called after every fired transition.
func WithTransitionHook(hook TransitionHook) Option {
	return func(m *Machine) {
		if hook != nil {
			m.hooks = append(m.hooks, hook)
		}
	}
}

// Machine advances an active state through a Graph one Step at a time.
// Steps are serialized; accessors never observe a step half applied.
type Machine struct {
	mu           sync.RWMutex
	id           string
	graph        *Graph
	initial      StateID
	active       StateID
	store        FactStore
	ticks        uint64
	history      []TransitionRecord
	historyLimit int
	hooks        []TransitionHook
	logger       Logger
}

// NewMachine validates and freezes graph and starts the machine in initial.
func NewMachine(graph *Graph, initial StateID, store FactStore, opts ...Option) (*Machine, error) {
	if graph == nil {
		return nil, ErrNilGraph
	}

	if store == nil {
		return nil, ErrNilFactStore
	}

	if err := graph.Validate(); err != nil {
		return nil, fmt.Errorf("invalid graph %s: %w", graph.Name(), err)
	}

	if _, ok := graph.State(initial); !ok {
		return nil, fmt.Errorf("%w: %d", ErrInitialStateNotFound, initial)
	}

	graph.Freeze()

	m := &Machine{
		id:           uuid.New().String(),
		graph:        graph,
		initial:      initial,
		active:       initial,
		store:        store,
		historyLimit: defaultHistoryLimit,
		logger:       nopLogger{},
	}

	for _, opt := range opts {
		opt(m)
	}

	return m, nil
}

// NewMachineByName is NewMachine with the initial state given by name.
func NewMachineByName(graph *Graph, initial string, store FactStore, opts ...Option) (*Machine, error) {
	if graph == nil {
		return nil, ErrNilGraph
	}

	s, ok := graph.StateByName(initial)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrInitialStateNotFound, initial)
	}

	return NewMachine(graph, s.ID(), store, opts...)
}

// ID returns the machine ID.
func (m *Machine) ID() string {
	return m.id
}

// Graph returns the graph the machine runs.
func (m *Machine) Graph() *Graph {
	return m.graph
}

// ActiveState returns the current state. It is never nil.
func (m *Machine) ActiveState() *State {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.graph.mustState(m.active)
}

// InitialState returns the state the machine started in.
func (m *Machine) InitialState() *State {
	return m.graph.mustState(m.initial)
}

// FactStore returns the current fact store.
func (m *Machine) FactStore() FactStore {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.store
}

// SetFactStore replaces the fact store used by subsequent steps.
func (m *Machine) SetFactStore(store FactStore) error {
	if store == nil {
		return ErrNilFactStore
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.store = store

	return nil
}

// Ticks returns the number of steps taken.
func (m *Machine) Ticks() uint64 {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.ticks
}

// History returns retained transition records, oldest first.
func (m *Machine) History() []TransitionRecord {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Clone(m.history)
}

// Reset returns the machine to its initial state and clears its history.
func (m *Machine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = m.initial
	m.history = nil
}

// Restore moves the machine to the named state without evaluating guards.
// It is used when a new graph replaces an old one and a member should resume
// where it was.
func (m *Machine) Restore(name string) error {
	s, ok := m.graph.StateByName(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrStateNotFound, name)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.active = s.ID()

	return nil
}

// Step evaluates the active state's transitions against one snapshot of the
// facts and applies the last one that fires. It always returns; fact-store
// failures and condition diagnostics are reported in the result.
func (m *Machine) Step(ctx context.Context) StepResult {
	ctx, span := startStepSpan(ctx, m)
	defer span.End()

	start := time.Now()
	result, record := m.advance(ctx)
	elapsed := time.Since(start)

	outcome := outcomeStay

	switch {
	case result.Transition.NonEmpty():
		outcome = outcomeTransition
	case result.Diagnostics != nil:
		outcome = outcomeError
	}

	span.SetAttributes(
		attribute.String("from", result.From.Name()),
		attribute.String("to", result.To.Name()),
		attribute.String("outcome", outcome),
		attribute.Int64("tick", int64(result.Tick)), //nolint:gosec
	)

	if result.Diagnostics != nil {
		span.RecordError(result.Diagnostics)
		span.SetStatus(codes.Error, "step completed with diagnostics")
	} else {
		span.SetStatus(codes.Ok, outcome)
	}

	graphName := sanitizeGraph(m.graph.Name())

	stepsTotal.WithLabelValues(graphName, result.From.Name(), outcome).Inc()
	stepDuration.WithLabelValues(graphName).Observe(elapsed.Seconds())

	if result.Diagnostics != nil {
		diagnosticsTotal.WithLabelValues(graphName, result.From.Name()).Inc()
		m.logger.ConditionFailed(ctx, m.id, result.From.Name(), result.Diagnostics)
	}

	m.logger.StepCompleted(ctx, m.id, result, elapsed)

	if record != nil {
		transitionsTotal.WithLabelValues(graphName, record.From, record.To).Inc()
		m.logger.TransitionTaken(ctx, m.id, *record)

		for _, hook := range m.hooks {
			hook(ctx, m, *record)
		}
	}

	return result
}

// advance is the locked part of Step.
func (m *Machine) advance(ctx context.Context) (result StepResult, record *TransitionRecord) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.ticks++

	from := m.graph.mustState(m.active)

	result = StepResult{
		Tick:       m.ticks,
		From:       from,
		To:         from,
		Transition: optional.None[*Transition](),
	}

	defer func() {
		// A panicking custom condition must not take the tick loop down with it.
		if r := recover(); r != nil {
			m.active = from.ID()
			result.Transition = optional.None[*Transition]()
			result.To = from
			result.Changed = false
			result.Diagnostics = WrapStateError(from.Name(), fmt.Errorf("%w: panic: %v", ErrMalformedCondition, r))
			record = nil
		}
	}()

	facts, err := m.store.Snapshot(ctx)
	if err != nil {
		result.Diagnostics = WrapStateError(from.Name(), fmt.Errorf("fact store snapshot: %w", err))

		return result, nil
	}

	match, diag := from.TestTransiting(ctx, facts)
	result.Diagnostics = diag

	transition, ok := match.Get()
	if !ok {
		return result, nil
	}

	to := transition.ToState()

	m.active = to.ID()

	result.To = to
	result.Transition = match
	result.Changed = to.ID() != from.ID()

	rec := TransitionRecord{
		Tick:      m.ticks,
		From:      from.Name(),
		To:        to.Name(),
		Label:     transition.Label(),
		Timestamp: time.Now(),
	}

	m.appendHistory(rec)

	return result, &rec
}

func (m *Machine) appendHistory(rec TransitionRecord) {
	if m.historyLimit == 0 {
		return
	}

	m.history = append(m.history, rec)

	if over := len(m.history) - m.historyLimit; over > 0 {
		m.history = slices.Delete(m.history, 0, over)
	}
}
