package coop

// Timeout returns a [Task] that advances t at most n times.
//
// If t completes within n advances, the returned Task completes with the
// same result. Otherwise it fails with an error matching [ErrTimeout] on
// its n-th advance and drops t; no further transition of t runs.
//
// Since a [Scheduler] advances every queued task once per turn, a Timeout
// submitted directly to a Scheduler expires after n turns.
func Timeout[T any](t Task[T], n int) Task[T] {
	if n <= 0 {
		panic("coop(Timeout): non-positive count")
	}
	return &timeoutTask[T]{guard: guard{name: nameOf(t)}, inner: t, n: n, left: n}
}

type timeoutTask[T any] struct {
	guard
	inner Task[T]
	n     int
	left  int
}

func (t *timeoutTask[T]) Advance() (Poll[Result[T]], error) {
	if err := t.check(); err != nil {
		return Pending[Result[T]](), err
	}

	p, err := t.inner.Advance()
	if err != nil {
		return Pending[Result[T]](), err
	}

	if res, ok := p.Get(); ok {
		t.inner = nil
		return endWith(&t.guard, res), nil
	}

	t.left--

	if t.left == 0 {
		t.inner = nil
		return endWith(&t.guard, Failure[T](errorf("%w after %d advances", ErrTimeout, t.n))), nil
	}

	return p, nil
}
