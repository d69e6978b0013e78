package coop

// A Task is a unit of suspendable, resumable computation.
//
// A Task's job is to produce a [Result].
// Each call to Advance runs one synchronous segment of the Task, from where
// it was suspended to the next suspension point, and returns either a pending
// [Poll], meaning the Task suspended again and wants to be advanced later, or
// a ready Poll carrying the Result.
//
// Advance must not block. Any waiting must be expressed as returning
// a pending Poll and being advanced again.
//
// Once a Task has returned a ready Poll, it is terminal. Advancing it again
// returns an error that matches [ErrInvalidState]. Any other error returned
// by Advance is a programming defect as well, and a [Scheduler] that sees
// one aborts.
type Task[T any] interface {
	Advance() (Poll[Result[T]], error)
}

// Named is implemented by tasks that carry a name. Schedulers use it when
// logging and when reporting errors.
type Named interface {
	Name() string
}

func nameOf(v any) string {
	if n, ok := v.(Named); ok {
		return n.Name()
	}
	return ""
}

// guard records whether a task has completed.
// Every task in this package embeds one.
type guard struct {
	name  string
	ended bool
	state string
}

func (g *guard) Name() string {
	return g.name
}

func (g *guard) check() error {
	if g.ended {
		return invalidState(g.name, g.state)
	}
	return nil
}

func (g *guard) end(state string) {
	g.ended = true
	g.state = state
}

func endWith[T any](g *guard, res Result[T]) Poll[Result[T]] {
	if res.Ok() {
		g.end(stateCompleted)
	} else {
		g.end(stateFailed)
	}
	return Ready(res)
}

const (
	stateCompleted = "completed"
	stateFailed    = "failed"
)

// Value returns a [Task] that completes with [Success](v) the first time
// it is advanced.
func Value[T any](v T) Task[T] {
	return &resultTask[T]{res: Success(v)}
}

// Fail returns a [Task] that completes with [Failure](err) the first time
// it is advanced.
func Fail[T any](err error) Task[T] {
	return &resultTask[T]{res: Failure[T](err)}
}

type resultTask[T any] struct {
	guard
	res Result[T]
}

func (t *resultTask[T]) Advance() (Poll[Result[T]], error) {
	if err := t.check(); err != nil {
		return Pending[Result[T]](), err
	}
	return endWith(&t.guard, t.res), nil
}

// Sleep returns a [Task] that suspends n times before completing.
// It has n suspension points, so it takes n+1 advances to complete.
//
// Sleep counts advances, not time. The engine has no clock.
func Sleep(n int) Task[struct{}] {
	if n < 0 {
		panic("coop(Sleep): negative count")
	}
	return &sleepTask{left: n}
}

type sleepTask struct {
	guard
	left int
}

func (t *sleepTask) Advance() (Poll[Result[struct{}]], error) {
	if err := t.check(); err != nil {
		return Pending[Result[struct{}]](), err
	}
	if t.left > 0 {
		t.left--
		return Pending[Result[struct{}]](), nil
	}
	return endWith(&t.guard, Success(struct{}{})), nil
}

// A TaskFunc is a function that is called once per advance with the number
// of the advance, starting at 1.
type TaskFunc[T any] func(n int) Poll[Result[T]]

// FromFunc returns a [Task] that calls f every time it is advanced, until
// f returns a ready [Poll].
func FromFunc[T any](name string, f TaskFunc[T]) Task[T] {
	return &funcTask[T]{guard: guard{name: name}, f: f}
}

type funcTask[T any] struct {
	guard
	f TaskFunc[T]
	n int
}

func (t *funcTask[T]) Advance() (Poll[Result[T]], error) {
	if err := t.check(); err != nil {
		return Pending[Result[T]](), err
	}
	t.n++
	p := t.f(t.n)
	if res, ok := p.Get(); ok {
		t.f = nil
		return endWith(&t.guard, res), nil
	}
	return p, nil
}
