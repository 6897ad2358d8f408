package herd

import (
	"context"

	"github.com/amp-labs/tickfsm/statemachine"
)

// Store is a writable fact store. Both the in-memory blackboard and the
// Redis store satisfy it.
type Store interface {
	statemachine.FactStore
	Put(ctx context.Context, key string, value statemachine.Value) error
	PutAll(ctx context.Context, values map[string]statemachine.Value) error
	Remove(ctx context.Context, key string) error
}

// StoreFactory creates the store for a new member.
type StoreFactory func(ctx context.Context, memberID string) (Store, error)

// clearer is implemented by stores that hold state outside the process.
type clearer interface {
	Clear(ctx context.Context) error
}

// BlackboardStore adapts a statemachine.Blackboard to Store.
type BlackboardStore struct {
	*statemachine.Blackboard
}

// NewBlackboardStore returns an empty in-memory store.
func NewBlackboardStore() *BlackboardStore {
	return &BlackboardStore{Blackboard: statemachine.NewBlackboard()}
}

// MemoryStores is the default StoreFactory.
func MemoryStores(context.Context, string) (Store, error) {
	return NewBlackboardStore(), nil
}

func (s *BlackboardStore) Put(_ context.Context, key string, value statemachine.Value) error {
	s.Set(key, value)

	return nil
}

func (s *BlackboardStore) PutAll(_ context.Context, values map[string]statemachine.Value) error {
	plain := make(map[string]any, len(values))
	for k, v := range values {
		plain[k] = v
	}

	return s.SetAll(plain)
}

func (s *BlackboardStore) Remove(_ context.Context, key string) error {
	s.Delete(key)

	return nil
}
