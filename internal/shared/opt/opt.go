// Package opt provides an explicit optional value.
//
// Device commands carry parameters the caller may leave out. A None value
// is omitted from the wire representation entirely rather than being
// written as null or a zero value.
package opt

import "fmt"

// Value holds either a T or nothing
type Value[T any] struct {
	v  T
	ok bool
}

// Some wraps v as a present value
func Some[T any](v T) Value[T] {
	return Value[T]{v: v, ok: true}
}

// None returns an absent value
func None[T any]() Value[T] {
	return Value[T]{}
}

// FromPtr converts a nil-able pointer into a Value
func FromPtr[T any](p *T) Value[T] {
	if p == nil {
		return None[T]()
	}
	return Some(*p)
}

// Get returns the value and whether it is present
func (o Value[T]) Get() (T, bool) {
	return o.v, o.ok
}

// IsSome reports whether a value is present
func (o Value[T]) IsSome() bool {
	return o.ok
}

// Or returns the value if present, otherwise fallback
func (o Value[T]) Or(fallback T) T {
	if o.ok {
		return o.v
	}
	return fallback
}

func (o Value[T]) String() string {
	if !o.ok {
		return "None"
	}
	return fmt.Sprintf("Some(%v)", o.v)
}
