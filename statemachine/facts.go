package statemachine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"
)

// Facts is a read-only view of the blackboard that conditions evaluate against.
type Facts interface {
	Lookup(key string) (Value, bool)
	Keys() []string
}

// FactStore produces consistent views of an externally owned blackboard.
// A single Step evaluates every condition against one Snapshot, so writes made
// by other goroutines during a step are never half-observed.
type FactStore interface {
	Snapshot(ctx context.Context) (Facts, error)
}

// MapFacts is an immutable Facts backed by a map.
type MapFacts map[string]Value

func (m MapFacts) Lookup(key string) (Value, bool) {
	v, ok := m[key]

	return v, ok
}

func (m MapFacts) Keys() []string {
	return slices.Sorted(maps.Keys(m))
}

// Snapshot returns m itself; MapFacts is already immutable by convention.
func (m MapFacts) Snapshot(context.Context) (Facts, error) {
	return m, nil
}

// NewMapFacts builds MapFacts from plain Go values.
func NewMapFacts(values map[string]any) (MapFacts, error) {
	out := make(MapFacts, len(values))

	for k, raw := range values {
		v, err := ValueOf(raw)
		if err != nil {
			return nil, wrapFactError(k, err)
		}

		out[k] = v
	}

	return out, nil
}

// LookupBool reads a boolean fact.
func LookupBool(facts Facts, key string) (bool, error) {
	v, ok := facts.Lookup(key)
	if !ok {
		return false, wrapFactError(key, ErrMissingFact)
	}

	b, ok := v.AsBool().Get()
	if !ok {
		return false, wrapFactError(key, fmt.Errorf("%w: want bool, have %s", ErrTypeMismatch, v.Kind()))
	}

	return b, nil
}

// LookupNumber reads a numeric fact as a Value of kind Int or Float.
func LookupNumber(facts Facts, key string) (Value, error) {
	v, ok := facts.Lookup(key)
	if !ok {
		return Value{}, wrapFactError(key, ErrMissingFact)
	}

	if !v.IsNumeric() {
		return Value{}, wrapFactError(key, fmt.Errorf("%w: want number, have %s", ErrTypeMismatch, v.Kind()))
	}

	return v, nil
}

// Blackboard is a thread-safe in-memory FactStore.
type Blackboard struct {
	mu        sync.RWMutex
	data      map[string]Value
	updatedAt time.Time
}

// NewBlackboard creates an empty blackboard.
func NewBlackboard() *Blackboard {
	return &Blackboard{
		data:      make(map[string]Value),
		updatedAt: time.Now(),
	}
}

// NewBlackboardFrom creates a blackboard seeded with plain Go values.
func NewBlackboardFrom(values map[string]any) (*Blackboard, error) {
	bb := NewBlackboard()

	if err := bb.SetAll(values); err != nil {
		return nil, err
	}

	return bb, nil
}

// Get retrieves a value from the blackboard.
func (b *Blackboard) Get(key string) (Value, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	val, ok := b.data[key]

	return val, ok
}

// Set stores a value.
func (b *Blackboard) Set(key string, value Value) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.data[key] = value
	b.updatedAt = time.Now()
}

// SetAny converts and stores a plain Go value.
func (b *Blackboard) SetAny(key string, value any) error {
	v, err := ValueOf(value)
	if err != nil {
		return wrapFactError(key, err)
	}

	b.Set(key, v)

	return nil
}

// SetAll converts and stores every entry, or nothing if any entry is unsupported.
func (b *Blackboard) SetAll(values map[string]any) error {
	converted, err := NewMapFacts(values)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	maps.Copy(b.data, converted)

	b.updatedAt = time.Now()

	return nil
}

// Delete removes a key. Deleting an absent key is a no-op.
func (b *Blackboard) Delete(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.data, key)

	b.updatedAt = time.Now()
}

// Len returns the number of facts.
func (b *Blackboard) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return len(b.data)
}

// UpdatedAt returns the time of the last write.
func (b *Blackboard) UpdatedAt() time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.updatedAt
}

// Snapshot copies the current contents under the read lock.
func (b *Blackboard) Snapshot(context.Context) (Facts, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return MapFacts(maps.Clone(b.data)), nil
}
