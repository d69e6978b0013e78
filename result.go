package coop

import "fmt"

// A Result is the outcome of a [Task]: either a success carrying a value,
// or a failure carrying an error.
//
// A failure is data, not a fault. A Task that fails still completes; it is
// whoever awaits the Task that decides what to do with the error.
type Result[T any] struct {
	value T
	err   error
}

// Success returns a successful [Result] carrying v.
func Success[T any](v T) Result[T] {
	return Result[T]{value: v}
}

// Failure returns a failed [Result] carrying err.
//
// Failure panics if err is nil.
func Failure[T any](err error) Result[T] {
	if err == nil {
		panic("coop: Failure with nil error")
	}
	return Result[T]{err: err}
}

// Ok reports whether r is a success.
func (r Result[T]) Ok() bool {
	return r.err == nil
}

// Value returns the value of r.
// If r is a failure, Value returns the zero value of T.
func (r Result[T]) Value() T {
	return r.value
}

// Err returns the error of r, or nil if r is a success.
func (r Result[T]) Err() error {
	return r.err
}

// Get returns both the value and the error of r.
func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

func (r Result[T]) String() string {
	if r.err != nil {
		return fmt.Sprintf("Failure(%v)", r.err)
	}
	return fmt.Sprintf("Success(%v)", r.value)
}

func failureAs[T, U any](r Result[U]) Result[T] {
	return Result[T]{err: r.err}
}
