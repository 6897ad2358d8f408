// Package redisstore keeps a machine's facts in a Redis hash so that writers
// outside the process can drive it. Each hash field holds one fact encoded
// with statemachine.Value.MarshalText ("int:5", "bool:true").
package redisstore

import (
	"context"
	"errors"
	"fmt"

	"github.com/amp-labs/tickfsm/statemachine"
	"github.com/redis/go-redis/v9"
)

// Store is a statemachine.FactStore over a single Redis hash.
type Store struct {
	client redis.UniversalClient
	key    string
}

// New returns a store reading and writing the hash at key.
func New(client redis.UniversalClient, key string) *Store {
	return &Store{client: client, key: key}
}

// Key returns the Redis key of the hash.
func (s *Store) Key() string {
	return s.key
}

// Snapshot reads the whole hash with one HGETALL. Fields that do not decode
// are left out, so conditions reading them see a missing fact.
func (s *Store) Snapshot(ctx context.Context) (statemachine.Facts, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, errors.Join(ErrReadFailed, err)
	}

	facts, _ := Decode(fields)

	return facts, nil
}

// Put writes a single fact.
func (s *Store) Put(ctx context.Context, key string, value statemachine.Value) error {
	return s.PutAll(ctx, map[string]statemachine.Value{key: value})
}

// PutAll writes every fact in one HSET, so a concurrent Snapshot sees all of
// them or none.
func (s *Store) PutAll(ctx context.Context, values map[string]statemachine.Value) error {
	if len(values) == 0 {
		return nil
	}

	fields, err := Encode(values)
	if err != nil {
		return err
	}

	if err := s.client.HSet(ctx, s.key, fields).Err(); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}

	return nil
}

// Remove deletes a fact. Removing an absent fact is not an error.
func (s *Store) Remove(ctx context.Context, key string) error {
	if err := s.client.HDel(ctx, s.key, key).Err(); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}

	return nil
}

// Clear deletes the whole hash.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Join(ErrWriteFailed, err)
	}

	return nil
}

// Encode converts facts to hash fields.
func Encode(values map[string]statemachine.Value) (map[string]any, error) {
	fields := make(map[string]any, len(values))

	for key, value := range values {
		text, err := value.MarshalText()
		if err != nil {
			return nil, fmt.Errorf("fact %q: %w", key, err)
		}

		fields[key] = string(text)
	}

	return fields, nil
}

// Decode converts hash fields to facts. Fields that fail to decode are
// skipped and reported in the joined error.
func Decode(fields map[string]string) (statemachine.MapFacts, error) {
	facts := make(statemachine.MapFacts, len(fields))

	var errs []error

	for key, text := range fields {
		var value statemachine.Value
		if err := value.UnmarshalText([]byte(text)); err != nil {
			errs = append(errs, fmt.Errorf("field %q: %w", key, err))

			continue
		}

		facts[key] = value
	}

	return facts, errors.Join(errs...)
}
