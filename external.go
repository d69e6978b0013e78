package coop

import "sync"

// An Operation is an asynchronous operation that runs outside of any
// [Scheduler], such as a network round trip.
//
// Start begins the operation. Poll reports whether the operation has
// finished and, if so, its [Result]. Neither may block.
//
// An Operation owns whatever machinery it needs to make progress on its
// own (goroutines, timers, I/O). The engine only ever polls it.
type Operation[T any] interface {
	Start()
	Poll() Poll[Result[T]]
}

// External returns a [Task] that wraps op.
//
// The first advance starts op and suspends. Every later advance polls op,
// and completes with op's result once there is one.
func External[T any](name string, op Operation[T]) Task[T] {
	return &externalTask[T]{guard: guard{name: name}, op: op}
}

type externalTask[T any] struct {
	guard
	op      Operation[T]
	started bool
}

func (t *externalTask[T]) Advance() (Poll[Result[T]], error) {
	if err := t.check(); err != nil {
		return Pending[Result[T]](), err
	}

	if !t.started {
		t.started = true
		t.op.Start()
		return Pending[Result[T]](), nil
	}

	p := t.op.Poll()

	if res, ok := p.Get(); ok {
		t.op = nil
		return endWith(&t.guard, res), nil
	}

	return p, nil
}

// A Completion is a write-once [Result] cell.
//
// One side, usually a goroutine doing the actual work, completes it with
// Resolve or Reject; the other side polls it. Only the first completion
// counts.
//
// A Completion is safe for concurrent use. The zero value is ready to use.
type Completion[T any] struct {
	mu     sync.Mutex
	done   bool
	result Result[T]
}

// Resolve completes c with [Success](v).
// It reports whether c was completed by this call.
func (c *Completion[T]) Resolve(v T) bool {
	return c.complete(Success(v))
}

// Reject completes c with [Failure](err).
// It reports whether c was completed by this call.
func (c *Completion[T]) Reject(err error) bool {
	return c.complete(Failure[T](err))
}

func (c *Completion[T]) complete(res Result[T]) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.done {
		return false
	}

	c.done = true
	c.result = res

	return true
}

// Poll returns a ready [Poll] with the result of c if c has been completed,
// or a pending one otherwise.
func (c *Completion[T]) Poll() Poll[Result[T]] {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.done {
		return Pending[Result[T]]()
	}

	return Ready(c.result)
}

// Go returns an [Operation] that, when started, calls fn in a new goroutine
// and completes with what fn returns.
//
// A panic in fn is recovered and turned into a failure carrying
// a *[PanicError].
func Go[T any](fn func() (T, error)) Operation[T] {
	return &goOperation[T]{fn: fn}
}

type goOperation[T any] struct {
	Completion[T]
	fn func() (T, error)
}

func (op *goOperation[T]) Start() {
	fn := op.fn
	op.fn = nil
	go func() {
		var (
			v   T
			err error
		)
		if pe := try(func() { v, err = fn() }); pe != nil {
			op.Reject(pe)
			return
		}
		if err != nil {
			op.Reject(err)
			return
		}
		op.Resolve(v)
	}()
}
