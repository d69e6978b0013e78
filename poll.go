package coop

// A Poll is what a [Task] hands back every time it is advanced: either
// a ready value or a note that the Task is not done yet and should be
// advanced again later.
//
// A Poll is a plain value. It is created fresh on every advance and is never
// modified afterwards.
type Poll[T any] struct {
	value T
	ready bool
}

// Ready returns a [Poll] that is ready with v.
func Ready[T any](v T) Poll[T] {
	return Poll[T]{value: v, ready: true}
}

// Pending returns a [Poll] that is not ready.
func Pending[T any]() Poll[T] {
	return Poll[T]{}
}

// IsReady reports whether p carries a value.
func (p Poll[T]) IsReady() bool {
	return p.ready
}

// IsPending reports whether p does not carry a value.
func (p Poll[T]) IsPending() bool {
	return !p.ready
}

// Get returns the value of p and whether p is ready.
// If p is pending, Get returns the zero value of T and false.
func (p Poll[T]) Get() (v T, ok bool) {
	return p.value, p.ready
}
