package store

import "github.com/roach88/gudam/internal/value"

// Cell is a typed accessor for one state field.
//
//	var count = store.Field[value.Int]("n")
//	count.Set(s, count.Get(s)+1)
type Cell[T value.Value] struct {
	name string
}

// Field returns a typed accessor for the named field.
func Field[T value.Value](name string) Cell[T] {
	return Cell[T]{name: name}
}

// Name returns the field name.
func (c Cell[T]) Name() string {
	return c.name
}

// Lookup returns the field's value if it holds a T.
func (c Cell[T]) Lookup(s *Instance) (T, bool) {
	v, ok := s.Get(c.name).(T)
	return v, ok
}

// Get returns the field's value, or the zero T when it is missing or holds
// another type.
func (c Cell[T]) Get(s *Instance) T {
	v, _ := c.Lookup(s)
	return v
}

// Set writes the field through the instance, notifying as Set does.
func (c Cell[T]) Set(s *Instance, v T) error {
	return s.Set(c.name, v)
}

// Update applies fn to the current value and writes the result.
func (c Cell[T]) Update(s *Instance, fn func(T) T) error {
	return c.Set(s, fn(c.Get(s)))
}
