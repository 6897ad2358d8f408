// Package herd runs many machines over one graph, stepping them together on
// a shared worker pool. Each member owns its fact store; a tick evaluates
// every member against its own snapshot.
package herd

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"facette.io/natsort"
	"github.com/alitto/pond/v2"
	"github.com/amp-labs/tickfsm/logger"
	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/google/uuid"
	"go.uber.org/atomic"
)

const defaultWorkers = 8

var (
	ErrClosed          = errors.New("herd is closed")
	ErrMemberNotFound  = errors.New("member not found")
	ErrMemberExists    = errors.New("member already exists")
	ErrInvalidInterval = errors.New("tick interval must be positive")
)

// Member is one machine in a herd together with its fact store.
type Member struct {
	id      string
	created time.Time
	store   Store
	machine *atomic.Pointer[statemachine.Machine]
}

func (m *Member) ID() string {
	return m.id
}

func (m *Member) Created() time.Time {
	return m.created
}

func (m *Member) Store() Store {
	return m.store
}

// Machine returns the member's current machine. Replace swaps it.
func (m *Member) Machine() *statemachine.Machine {
	return m.machine.Load()
}

// Step advances the member by one tick.
func (m *Member) Step(ctx context.Context) statemachine.StepResult {
	return m.Machine().Step(logger.WithMachineID(ctx, m.id))
}

// TickReport summarizes one herd tick.
type TickReport struct {
	Tick    uint64
	Members int
	// Transitions counts members whose active state changed.
	Transitions int
	// Diagnosed counts members whose step reported diagnostics.
	Diagnosed int
	Duration  time.Duration
	Results   map[string]statemachine.StepResult
}

// ReplaceReport counts how members fared when the graph was swapped.
type ReplaceReport struct {
	// Restored members resumed in a state of the same name.
	Restored int
	// Reset members had a state the new graph lacks and restarted in its
	// initial state.
	Reset int
}

// Stats are lifetime counters of a herd.
type Stats struct {
	Members     int
	Ticks       uint64
	Steps       uint64
	Transitions uint64
	Diagnosed   uint64
}

// Option configures a Herd.
type Option func(*Herd)

// WithName sets the herd name used in metrics and logs.
func WithName(name string) Option {
	return func(h *Herd) {
		h.name = name
	}
}

// WithWorkers bounds how many members step concurrently.
func WithWorkers(n int) Option {
	return func(h *Herd) {
		if n > 0 {
			h.workers = n
		}
	}
}

// WithStoreFactory sets how member fact stores are created.
func WithStoreFactory(f StoreFactory) Option {
	return func(h *Herd) {
		if f != nil {
			h.stores = f
		}
	}
}

// WithMachineOptions applies opts to every member machine. The member ID
// always overrides any statemachine.WithID given here.
func WithMachineOptions(opts ...statemachine.Option) Option {
	return func(h *Herd) {
		h.machineOpts = append(h.machineOpts, opts...)
	}
}

// Herd is a set of machines sharing a graph.
type Herd struct {
	name        string
	workers     int
	stores      StoreFactory
	machineOpts []statemachine.Option
	pool        pond.Pool

	mu      sync.RWMutex
	graph   *statemachine.Graph
	initial string
	members map[string]*Member
	// pending holds IDs whose store is being seeded by AddWithID.
	pending map[string]struct{}

	ticks       *atomic.Uint64
	steps       *atomic.Uint64
	transitions *atomic.Uint64
	diagnosed   *atomic.Uint64
	closed      *atomic.Bool
}

// New validates and freezes graph and returns an empty herd.
func New(graph *statemachine.Graph, initial statemachine.StateID, opts ...Option) (*Herd, error) {
	name, err := checkGraph(graph, initial)
	if err != nil {
		return nil, err
	}

	h := &Herd{
		name:        "herd",
		workers:     defaultWorkers,
		stores:      MemoryStores,
		graph:       graph,
		initial:     name,
		members:     make(map[string]*Member),
		pending:     make(map[string]struct{}),
		ticks:       atomic.NewUint64(0),
		steps:       atomic.NewUint64(0),
		transitions: atomic.NewUint64(0),
		diagnosed:   atomic.NewUint64(0),
		closed:      atomic.NewBool(false),
	}

	for _, opt := range opts {
		opt(h)
	}

	h.pool = pond.NewPool(h.workers)

	membersGauge.WithLabelValues(h.name).Set(0)
	ticksTotal.WithLabelValues(h.name).Add(0)

	return h, nil
}

func checkGraph(graph *statemachine.Graph, initial statemachine.StateID) (string, error) {
	if graph == nil {
		return "", statemachine.ErrNilGraph
	}

	if err := graph.Validate(); err != nil {
		return "", fmt.Errorf("invalid graph %s: %w", graph.Name(), err)
	}

	state, ok := graph.State(initial)
	if !ok {
		return "", fmt.Errorf("%w: %d", statemachine.ErrInitialStateNotFound, initial)
	}

	graph.Freeze()

	return state.Name(), nil
}

// Name returns the herd name.
func (h *Herd) Name() string {
	return h.name
}

// Graph returns the current graph and the name of its initial state.
func (h *Herd) Graph() (*statemachine.Graph, string) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return h.graph, h.initial
}

// Add creates a member with a random ID, seeded with facts.
func (h *Herd) Add(ctx context.Context, facts map[string]any) (*Member, error) {
	return h.AddWithID(ctx, uuid.NewString(), facts)
}

// AddWithID creates a member with the given ID, seeded with facts.
func (h *Herd) AddWithID(ctx context.Context, id string, facts map[string]any) (*Member, error) {
	if h.closed.Load() {
		return nil, ErrClosed
	}

	values, err := statemachine.NewMapFacts(facts)
	if err != nil {
		return nil, err
	}

	if err := h.reserve(id); err != nil {
		return nil, err
	}

	store, err := h.seedStore(ctx, id, values)
	if err != nil {
		h.mu.Lock()
		delete(h.pending, id)
		h.mu.Unlock()

		return nil, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	delete(h.pending, id)

	machine, err := h.newMachine(h.graph, h.initial, store, id)
	if err != nil {
		return nil, err
	}

	member := &Member{
		id:      id,
		created: time.Now(),
		store:   store,
		machine: atomic.NewPointer(machine),
	}

	h.members[id] = member
	membersGauge.WithLabelValues(h.name).Set(float64(len(h.members)))

	logger.Get(logger.WithMachineID(ctx, id)).Debug("Member added", "herd", h.name, "facts", len(values))

	return member, nil
}

// reserve claims id so a concurrent add of the same ID fails before it can
// touch the store.
func (h *Herd) reserve(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	_, exists := h.members[id]
	if _, seeding := h.pending[id]; exists || seeding {
		return fmt.Errorf("%w: %s", ErrMemberExists, id)
	}

	h.pending[id] = struct{}{}

	return nil
}

// seedStore creates the member store, dropping anything a previous member
// with the same ID left behind, and writes the initial facts.
func (h *Herd) seedStore(ctx context.Context, id string, values statemachine.MapFacts) (Store, error) {
	store, err := h.stores(ctx, id)
	if err != nil {
		return nil, logger.AnnotateError(fmt.Errorf("failed to create fact store: %w", err), "machine_id", id)
	}

	if c, ok := store.(clearer); ok {
		if err := c.Clear(ctx); err != nil {
			return nil, logger.AnnotateError(fmt.Errorf("failed to clear fact store: %w", err), "machine_id", id)
		}
	}

	if len(values) > 0 {
		if err := store.PutAll(ctx, values); err != nil {
			return nil, logger.AnnotateError(fmt.Errorf("failed to seed facts: %w", err), "machine_id", id)
		}
	}

	return store, nil
}

func (h *Herd) newMachine(graph *statemachine.Graph, initial string, store Store, id string) (*statemachine.Machine, error) {
	opts := slices.Concat(h.machineOpts, []statemachine.Option{statemachine.WithID(id)})

	return statemachine.NewMachineByName(graph, initial, store, opts...)
}

// Get returns a member by ID.
func (h *Herd) Get(id string) (*Member, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	m, ok := h.members[id]

	return m, ok
}

// Members returns all members in natural ID order.
func (h *Herd) Members() []*Member {
	h.mu.RLock()
	ids := slices.Collect(maps.Keys(h.members))
	members := maps.Clone(h.members)
	h.mu.RUnlock()

	natsort.Sort(ids)

	out := make([]*Member, len(ids))
	for i, id := range ids {
		out[i] = members[id]
	}

	return out
}

// Len returns the number of members.
func (h *Herd) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.members)
}

// Remove deletes a member. Stores holding state outside the process are
// cleared.
func (h *Herd) Remove(ctx context.Context, id string) error {
	h.mu.Lock()
	member, ok := h.members[id]
	delete(h.members, id)
	membersGauge.WithLabelValues(h.name).Set(float64(len(h.members)))
	h.mu.Unlock()

	if !ok {
		return fmt.Errorf("%w: %s", ErrMemberNotFound, id)
	}

	if c, ok := member.store.(clearer); ok {
		if err := c.Clear(ctx); err != nil {
			return logger.AnnotateError(fmt.Errorf("failed to clear fact store: %w", err), "machine_id", id)
		}
	}

	return nil
}

// Tick steps every member once, concurrently. A member added during the
// tick is first stepped on the next one.
func (h *Herd) Tick(ctx context.Context) (TickReport, error) {
	if h.closed.Load() {
		return TickReport{}, ErrClosed
	}

	members := h.Members()
	results := make([]statemachine.StepResult, len(members))

	start := time.Now()

	group := h.pool.NewGroup()
	for i, member := range members {
		group.Submit(func() {
			results[i] = member.Step(ctx)
		})
	}

	if err := group.Wait(); err != nil {
		return TickReport{}, fmt.Errorf("herd tick failed: %w", err)
	}

	report := TickReport{
		Tick:     h.ticks.Inc(),
		Members:  len(members),
		Duration: time.Since(start),
		Results:  make(map[string]statemachine.StepResult, len(members)),
	}

	for i, member := range members {
		result := results[i]
		report.Results[member.id] = result

		if result.Changed {
			report.Transitions++
		}

		if result.Diagnostics != nil {
			report.Diagnosed++
		}
	}

	h.steps.Add(uint64(report.Members))         //nolint:gosec
	h.transitions.Add(uint64(report.Transitions)) //nolint:gosec
	h.diagnosed.Add(uint64(report.Diagnosed))     //nolint:gosec

	ticksTotal.WithLabelValues(h.name).Inc()
	tickDuration.WithLabelValues(h.name).Observe(report.Duration.Seconds())

	logger.Get(ctx).Debug("Herd tick completed",
		"herd", h.name,
		"tick", report.Tick,
		"members", report.Members,
		"transitions", report.Transitions,
		"diagnosed", report.Diagnosed,
		"duration", report.Duration)

	return report, nil
}

// Run ticks every interval until ctx is done or the herd is closed.
func (h *Herd) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return ErrInvalidInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := h.Tick(ctx)
			if errors.Is(err, ErrClosed) {
				return err
			}

			if err != nil {
				logger.Get(ctx).Error("Herd tick failed", logger.Error(err))
			}
		}
	}
}

// Replace swaps the graph of every member. A member whose active state
// exists by name in the new graph resumes there; the rest restart in
// initial. Machine history and tick counts start over. Nothing changes if
// any member machine cannot be built.
func (h *Herd) Replace(ctx context.Context, graph *statemachine.Graph, initial statemachine.StateID) (ReplaceReport, error) {
	initialName, err := checkGraph(graph, initial)
	if err != nil {
		return ReplaceReport{}, err
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	var report ReplaceReport

	replacements := make(map[string]*statemachine.Machine, len(h.members))

	for id, member := range h.members {
		machine, err := h.newMachine(graph, initialName, member.store, id)
		if err != nil {
			return ReplaceReport{}, logger.AnnotateError(err, "machine_id", id)
		}

		if machine.Restore(member.Machine().ActiveState().Name()) == nil {
			report.Restored++
		} else {
			report.Reset++
		}

		replacements[id] = machine
	}

	for id, machine := range replacements {
		h.members[id].machine.Store(machine)
	}

	h.graph = graph
	h.initial = initialName

	graphReplacements.WithLabelValues(h.name).Inc()

	logger.Get(ctx).Info("Graph replaced",
		logger.Graph(graph.Name()),
		"herd", h.name,
		"restored", report.Restored,
		"reset", report.Reset)

	return report, nil
}

// Stats returns lifetime counters.
func (h *Herd) Stats() Stats {
	return Stats{
		Members:     h.Len(),
		Ticks:       h.ticks.Load(),
		Steps:       h.steps.Load(),
		Transitions: h.transitions.Load(),
		Diagnosed:   h.diagnosed.Load(),
	}
}

// Close stops the worker pool after in-flight steps finish. Further ticks
// and adds fail with ErrClosed.
func (h *Herd) Close() {
	if h.closed.Swap(true) {
		return
	}

	h.pool.StopAndWait()
}
