// Package optional provides Value, a container holding zero or one element.
// It is used wherever a lookup can legitimately find nothing (a state with no
// matching transition, a fact of the wrong type) and a nil pointer would
// invite a dereference.
package optional

import (
	"encoding/json"
	"errors"
	"fmt"
	"iter"
)

var errMissingValueField = errors.New("optional: missing 'value' field in JSON")

// Value holds a T or nothing. The zero Value is empty.
type Value[T any] struct {
	value T
	isSet bool
}

// Some wraps value.
func Some[T any](value T) Value[T] {
	return Value[T]{value: value, isSet: true}
}

// None returns an empty Value.
func None[T any]() Value[T] {
	return Value[T]{}
}

// FromPointer returns None for a nil pointer and Some(*ptr) otherwise.
func FromPointer[T any](ptr *T) Value[T] {
	if ptr == nil {
		return None[T]()
	}

	return Some(*ptr)
}

// All yields the held value once, or nothing.
func (o Value[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		if o.isSet {
			yield(o.value)
		}
	}
}

// NonEmpty reports whether a value is held.
func (o Value[T]) NonEmpty() bool {
	return o.isSet
}

// Empty reports whether no value is held.
func (o Value[T]) Empty() bool {
	return !o.isSet
}

// Get returns the held value and whether it was present.
func (o Value[T]) Get() (T, bool) {
	return o.value, o.isSet
}

// GetOrPanic returns the held value or panics when empty.
func (o Value[T]) GetOrPanic() T {
	if !o.isSet {
		panic("optional: GetOrPanic called on None")
	}

	return o.value
}

// GetOrElse returns the held value or defaultValue.
func (o Value[T]) GetOrElse(defaultValue T) T {
	if o.isSet {
		return o.value
	}

	return defaultValue
}

// OrElse returns o when it holds a value, otherwise alternative.
func (o Value[T]) OrElse(alternative Value[T]) Value[T] {
	if o.isSet {
		return o
	}

	return alternative
}

// Filter keeps the held value only if predicate accepts it.
func (o Value[T]) Filter(predicate func(T) bool) Value[T] {
	if o.isSet && predicate(o.value) {
		return o
	}

	return None[T]()
}

// String renders "Some(v)" or "None".
func (o Value[T]) String() string {
	if !o.isSet {
		return "None"
	}

	return fmt.Sprintf("Some(%v)", o.value)
}

// Map applies f to the held value.
func Map[T any, U any](o Value[T], f func(T) U) Value[U] {
	if !o.isSet {
		return None[U]()
	}

	return Some(f(o.value))
}

// FlatMap applies an optional-returning f to the held value.
func FlatMap[T any, U any](o Value[T], f func(T) Value[U]) Value[U] {
	if !o.isSet {
		return None[U]()
	}

	return f(o.value)
}

// MarshalJSON encodes None as null and Some(v) as {"value": v}.
func (o Value[T]) MarshalJSON() ([]byte, error) {
	if !o.isSet {
		return []byte("null"), nil
	}

	return json.Marshal(map[string]T{"value": o.value})
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (o *Value[T]) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*o = None[T]()

		return nil
	}

	var wrapper map[string]T
	if err := json.Unmarshal(data, &wrapper); err != nil {
		return err
	}

	value, ok := wrapper["value"]
	if !ok {
		return errMissingValueField
	}

	*o = Some(value)

	return nil
}
