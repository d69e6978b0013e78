package coop

import (
	"fmt"
	"slices"
)

// A Builder describes a computation as an ordered list of synchronous steps
// separated by suspension points, and builds it into a [Machine].
//
// The steps between two suspension points form a segment. Each advance of
// an [Instance] runs exactly one segment.
//
// Steps communicate through variables declared with [NewVar]. Every step
// declares the variables it touches with [Reads] and [Writes], which lets
// [Builder.Build] work out, once and for all, which variables must survive
// each suspension point.
type Builder[R any] struct {
	name   string
	scope  *scope
	segs   []segment
	ret    func(env *Env) (R, error)
	retAcc Access
	sealed bool
	err    error
}

type step struct {
	fn  func(env *Env) error
	acc Access
	cc  access
}

type point struct {
	name  string
	start func(env *Env) pollFunc
	acc   Access
	cc    access
	bind  Ref
	bc    access
}

type segment struct {
	steps []step
	end   *point
}

// pollFunc advances an awaited child once.
// fatal is an error returned by the child's Advance method.
type pollFunc func() (ready bool, failure, fatal error)

// NewBuilder creates a [Builder] for a computation named name.
func NewBuilder[R any](name string) *Builder[R] {
	return &Builder[R]{
		name:  name,
		scope: &scope{},
		segs:  make([]segment, 1),
	}
}

func (b *Builder[R]) open() bool {
	if b.sealed && b.err == nil {
		b.err = errorf("coop: builder %q: step added after Return", b.name)
	}
	return b.err == nil
}

func (b *Builder[R]) current() *segment {
	return &b.segs[len(b.segs)-1]
}

// Do appends a synchronous step to the current segment.
// If fn returns an error, the computation fails with that error.
func (b *Builder[R]) Do(fn func(env *Env) error, acc ...Access) *Builder[R] {
	if b.open() {
		seg := b.current()
		seg.steps = append(seg.steps, step{fn: fn, acc: mergeAccess(acc)})
	}
	return b
}

// Yield ends the current segment with a suspension point that is pending
// exactly once.
func (b *Builder[R]) Yield(name string) *Builder[R] {
	b.suspend(name, func(*Env) pollFunc {
		yielded := false
		return func() (bool, error, error) {
			if !yielded {
				yielded = true
				return false, nil, nil
			}
			return true, nil, nil
		}
	}, nil, nil)
	return b
}

// Await ends the current segment of b with a suspension point that awaits
// a child [Task] created by start.
//
// start is called once, at the end of the segment, and may read the
// variables declared by acc. The child is advanced right away and then
// once per advance of the computation, until it completes. If the child
// succeeds, its value is stored in dst, unless dst is the zero [Var].
// If the child fails, the computation fails with the same error.
func Await[T, R any](b *Builder[R], name string, dst Var[T], start func(env *Env) Task[T], acc ...Access) *Builder[R] {
	var bind Ref
	if dst.id != 0 {
		bind = dst
	}
	b.suspend(name, func(env *Env) pollFunc {
		child := start(env)
		return func() (bool, error, error) {
			p, err := child.Advance()
			if err != nil {
				return false, nil, err
			}
			res, ok := p.Get()
			switch {
			case !ok:
				return false, nil, nil
			case !res.Ok():
				return true, res.Err(), nil
			}
			if bind != nil {
				dst.Set(env, res.Value())
			}
			return true, nil, nil
		}
	}, bind, acc)
	return b
}

func (b *Builder[R]) suspend(name string, start func(env *Env) pollFunc, bind Ref, acc []Access) {
	if !b.open() {
		return
	}
	if name == "" {
		name = fmt.Sprintf("await#%d", len(b.segs))
	}
	b.current().end = &point{name: name, start: start, acc: mergeAccess(acc), bind: bind}
	b.segs = append(b.segs, segment{})
}

// Return ends the computation with a final step whose return values become
// the [Result] of the computation.
func (b *Builder[R]) Return(fn func(env *Env) (R, error), acc ...Access) *Builder[R] {
	if b.open() {
		b.ret = fn
		b.retAcc = mergeAccess(acc)
		b.sealed = true
	}
	return b
}

// Build checks the computation described by b and returns a [Machine] that
// creates instances of it.
//
// Build fails if Return was never called, if a step was added after Return,
// if a variable from another Builder is used, or if some step reads
// a variable that no earlier step (or awaited child) writes; the last one
// matches [ErrUncapturedRead].
func (b *Builder[R]) Build() (*Machine[R], error) {
	if b.err != nil {
		return nil, b.err
	}
	if !b.sealed {
		return nil, errorf("coop: builder %q: missing Return", b.name)
	}

	m := &Machine[R]{
		name:    b.name,
		vars:    slices.Clone(b.scope.vars),
		segs:    make([]segment, len(b.segs)),
		ret:     b.ret,
		liveOut: make([]bitset, len(b.segs)-1),
	}

	n := len(m.vars)
	for i := range m.liveOut {
		m.liveOut[i] = newBitset(n)
	}

	lastWrite := make([]int, n)
	for i := range lastWrite {
		lastWrite[i] = -1
	}

	var err error

	compile := func(seg int, where string, acc Access) access {
		cc := access{reads: newBitset(n), writes: newBitset(n)}
		for _, r := range acc.reads {
			slot, e := b.slotOf(r)
			if e != nil {
				err = cmpOr(err, e)
				continue
			}
			cc.reads.set(slot)
			w := lastWrite[slot]
			if w < 0 {
				err = cmpOr(err, errorf("%w: %q read by %s of %q", ErrUncapturedRead, m.vars[slot], where, b.name))
				continue
			}
			for i := w; i < seg; i++ {
				m.liveOut[i].set(slot)
			}
		}
		for _, r := range acc.writes {
			slot, e := b.slotOf(r)
			if e != nil {
				err = cmpOr(err, e)
				continue
			}
			cc.writes.set(slot)
			lastWrite[slot] = seg
		}
		return cc
	}

	m.states = append(m.states, "start")

	for s, seg := range b.segs {
		out := &m.segs[s]

		if s > 0 {
			if p := b.segs[s-1].end; p.bind != nil {
				m.segs[s-1].end.bc = compile(s, "the result of "+p.name, Writes(p.bind))
			}
		}

		out.steps = make([]step, len(seg.steps))
		for i, st := range seg.steps {
			out.steps[i] = st
			out.steps[i].cc = compile(s, fmt.Sprintf("step %d.%d", s, i+1), st.acc)
		}

		if seg.end != nil {
			p := *seg.end
			p.cc = compile(s, p.name, p.acc)
			out.end = &p
			m.states = append(m.states, p.name)
		}
	}

	m.retCC = compile(len(b.segs)-1, "Return", b.retAcc)
	m.states = append(m.states, stateCompleted, stateFailed)

	if err != nil {
		return nil, err
	}

	return m, nil
}

func (b *Builder[R]) slotOf(r Ref) (int, error) {
	id, s := r.ref()
	if id == 0 {
		return 0, errorf("coop: builder %q: zero Var used in an access list", b.name)
	}
	if s != b.scope {
		return 0, errorf("coop: builder %q: variable from another builder", b.name)
	}
	return id - 1, nil
}

func cmpOr(err, next error) error {
	if err != nil {
		return err
	}
	return next
}

func mergeAccess(acc []Access) Access {
	if len(acc) == 1 {
		return acc[0]
	}
	var m Access
	for _, a := range acc {
		m.reads = append(m.reads, a.reads...)
		m.writes = append(m.writes, a.writes...)
	}
	return m
}

// A Machine is a built computation. It is immutable and may be used to
// create any number of independent instances.
type Machine[R any] struct {
	name    string
	vars    []string
	segs    []segment
	ret     func(env *Env) (R, error)
	retCC   access
	liveOut []bitset
	states  []string
}

// Name returns the name of m.
func (m *Machine[R]) Name() string {
	return m.name
}

// States returns the names of the states an instance of m goes through,
// in order: "start", one state per suspension point, then "completed" and
// "failed".
func (m *Machine[R]) States() []string {
	return slices.Clone(m.states)
}

// SuspensionPoints returns the number of suspension points of m.
func (m *Machine[R]) SuspensionPoints() int {
	return len(m.segs) - 1
}

// Captures returns the names of the variables that are kept across
// the i-th suspension point, counting from 1.
func (m *Machine[R]) Captures(i int) []string {
	if i < 1 || i > len(m.liveOut) {
		return nil
	}
	var names []string
	for slot, name := range m.vars {
		if m.liveOut[i-1].has(slot) {
			names = append(names, name)
		}
	}
	return names
}

// New creates a new [Instance] of m.
func (m *Machine[R]) New() *Instance[R] {
	return &Instance[R]{m: m, env: newEnv(m.vars)}
}

// An Instance is a running computation created by [Machine.New].
// It implements [Task].
type Instance[R any] struct {
	m     *Machine[R]
	env   Env
	state int
	child pollFunc
	polls int
}

func (t *Instance[R]) completed() int { return len(t.m.segs) }
func (t *Instance[R]) failed() int    { return len(t.m.segs) + 1 }

// Name returns the name of the [Machine] t was created from.
func (t *Instance[R]) Name() string {
	return t.m.name
}

// State returns the name of the current state of t.
func (t *Instance[R]) State() string {
	return t.m.states[t.state]
}

// Done reports whether t has completed.
func (t *Instance[R]) Done() bool {
	return t.state >= t.completed()
}

// Polls returns how many times t has been advanced.
func (t *Instance[R]) Polls() int {
	return t.polls
}

// Captured returns the names of the variables t currently holds.
func (t *Instance[R]) Captured() []string {
	return t.env.Captured()
}

// Advance runs the next segment of t.
func (t *Instance[R]) Advance() (Poll[Result[R]], error) {
	if t.Done() {
		return Pending[Result[R]](), invalidState(t.m.name, t.State())
	}

	t.polls++

	m, env := t.m, &t.env

	for {
		if t.state > 0 {
			p := m.segs[t.state-1].end
			env.perm = &p.bc
			ready, failure, err := t.child()
			env.perm = nil
			if err != nil {
				return Pending[Result[R]](), err
			}
			if !ready {
				return Pending[Result[R]](), nil
			}
			t.child = nil
			if failure != nil {
				return t.fail(failure), nil
			}
		}

		seg := &m.segs[t.state]

		for i := range seg.steps {
			st := &seg.steps[i]
			env.perm = &st.cc
			err := st.fn(env)
			env.perm = nil
			if err != nil {
				return t.fail(err), nil
			}
		}

		if seg.end == nil {
			env.perm = &m.retCC
			v, err := m.ret(env)
			env.perm = nil
			if err != nil {
				return t.fail(err), nil
			}
			env.keep(nil)
			t.transition(t.completed())
			return Ready(Success(v)), nil
		}

		env.perm = &seg.end.cc
		t.child = seg.end.start(env)
		env.perm = nil
		env.keep(m.liveOut[t.state])
		t.transition(t.state + 1)
	}
}

func (t *Instance[R]) fail(err error) Poll[Result[R]] {
	t.child = nil
	t.env.keep(nil)
	t.transition(t.failed())
	return Ready(Failure[R](err))
}

func (t *Instance[R]) transition(next int) {
	if next <= t.state {
		panic(fmt.Sprintf("coop: %q moved backwards from %q", t.m.name, t.State()))
	}
	t.state = next
}
