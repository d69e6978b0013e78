package coop

import (
	"github.com/hashicorp/go-multierror"
)

// Join returns a [Task] that runs tasks concurrently and completes with
// their values, in the order tasks were given.
//
// Each time the returned Task is advanced, it advances every child that has
// not completed yet, once, in index order. A child's value is recorded as
// soon as the child completes, but is only handed out when every child has
// completed.
//
// If a child fails, Join fails with the same error right away. Children
// after the failed one are not advanced in that turn, and no child is ever
// advanced again; they are simply dropped. When more than one child would
// fail in the same turn, the one with the lowest index wins.
//
// Join with no tasks completes with an empty slice the first time it is
// advanced.
func Join[T any](tasks ...Task[T]) Task[[]T] {
	return &joinTask[T]{
		guard:    guard{name: "join"},
		children: tasks,
		values:   make([]T, len(tasks)),
		resolved: newBitset(len(tasks)),
	}
}

type joinTask[T any] struct {
	guard
	children []Task[T]
	values   []T
	resolved bitset
}

func (t *joinTask[T]) Advance() (Poll[Result[[]T]], error) {
	if err := t.check(); err != nil {
		return Pending[Result[[]T]](), err
	}

	for i, child := range t.children {
		if t.resolved.has(i) {
			continue
		}

		p, err := child.Advance()
		if err != nil {
			return Pending[Result[[]T]](), err
		}

		res, ok := p.Get()
		if !ok {
			continue
		}

		if !res.Ok() {
			t.children, t.values = nil, nil
			return endWith(&t.guard, failureAs[[]T](res)), nil
		}

		t.values[i] = res.Value()
		t.resolved.set(i)
		t.children[i] = nil
	}

	if t.resolved.count() < len(t.children) {
		return Pending[Result[[]T]](), nil
	}

	values := t.values
	t.children, t.values = nil, nil

	return endWith(&t.guard, Success(values)), nil
}

// JoinSettled returns a [Task] that runs tasks concurrently, like [Join],
// but never fails: it waits for every child to complete and hands out
// every child's [Result], in the order tasks were given.
//
// Use [Collect] to turn the results into values and a combined error.
func JoinSettled[T any](tasks ...Task[T]) Task[[]Result[T]] {
	return &settledTask[T]{
		guard:    guard{name: "join-settled"},
		children: tasks,
		results:  make([]Result[T], len(tasks)),
		resolved: newBitset(len(tasks)),
	}
}

type settledTask[T any] struct {
	guard
	children []Task[T]
	results  []Result[T]
	resolved bitset
}

func (t *settledTask[T]) Advance() (Poll[Result[[]Result[T]]], error) {
	if err := t.check(); err != nil {
		return Pending[Result[[]Result[T]]](), err
	}

	for i, child := range t.children {
		if t.resolved.has(i) {
			continue
		}

		p, err := child.Advance()
		if err != nil {
			return Pending[Result[[]Result[T]]](), err
		}

		if res, ok := p.Get(); ok {
			t.results[i] = res
			t.resolved.set(i)
			t.children[i] = nil
		}
	}

	if t.resolved.count() < len(t.children) {
		return Pending[Result[[]Result[T]]](), nil
	}

	results := t.results
	t.children, t.results = nil, nil

	return endWith(&t.guard, Success(results)), nil
}

// Collect returns the values of results, in order, and an error combining
// the errors of every failed result. If no result failed, the error is nil.
// Values of failed results are left as zero values.
func Collect[T any](results []Result[T]) ([]T, error) {
	var errs *multierror.Error

	values := make([]T, len(results))

	for i, res := range results {
		if res.Ok() {
			values[i] = res.Value()
			continue
		}
		errs = multierror.Append(errs, res.Err())
	}

	return values, errs.ErrorOrNil()
}
