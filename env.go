package coop

import (
	"fmt"
	"slices"
)

// An Env holds the variables of a running [Instance] of a [Machine].
//
// Variables are stored by slot, one slot per [Var] declared on the
// [Builder]. After each synchronous segment, an Env keeps only the
// variables that are read after the next suspension point, and drops
// the rest.
//
// An Env is owned by exactly one Instance and must not be retained by
// a step after the step returns.
type Env struct {
	vars   []string
	values []any
	held   bitset
	perm   *access
}

func newEnv(vars []string) Env {
	return Env{
		vars:   vars,
		values: make([]any, len(vars)),
		held:   newBitset(len(vars)),
	}
}

func (env *Env) load(slot int) any {
	if env.perm == nil || !env.perm.reads.has(slot) {
		panic(fmt.Sprintf("coop: read of undeclared variable %q", env.vars[slot]))
	}
	if !env.held.has(slot) {
		panic(fmt.Sprintf("coop: variable %q is not held", env.vars[slot]))
	}
	return env.values[slot]
}

func (env *Env) store(slot int, v any) {
	if env.perm == nil || !env.perm.writes.has(slot) {
		panic(fmt.Sprintf("coop: write of undeclared variable %q", env.vars[slot]))
	}
	env.values[slot] = v
	env.held.set(slot)
}

// keep drops every variable that is not in live.
func (env *Env) keep(live bitset) {
	for i := range env.values {
		if !live.has(i) {
			env.values[i] = nil
			env.held[i/64] &^= 1 << (uint(i) % 64)
		}
	}
}

// Captured returns the names of the variables env currently holds,
// in declaration order.
func (env *Env) Captured() []string {
	var names []string
	for i, name := range env.vars {
		if env.held.has(i) {
			names = append(names, name)
		}
	}
	return slices.Clip(names)
}

// A Var is a typed handle to a variable slot of a [Machine].
// Vars are declared with [NewVar].
//
// The zero Var refers to no variable. Awaiting into the zero Var discards
// the awaited value.
type Var[T any] struct {
	id    int // slot + 1
	scope *scope
}

// NewVar declares a variable named name on b.
func NewVar[T, R any](b *Builder[R], name string) Var[T] {
	b.scope.vars = append(b.scope.vars, name)
	return Var[T]{id: len(b.scope.vars), scope: b.scope}
}

// Name returns the name v was declared with.
func (v Var[T]) Name() string {
	if v.id == 0 {
		return ""
	}
	return v.scope.vars[v.id-1]
}

// Get returns the value of v in env.
// The calling step must have declared v with [Reads].
func (v Var[T]) Get(env *Env) T {
	if v.id == 0 {
		panic("coop: read of the zero Var")
	}
	x, _ := env.load(v.id - 1).(T)
	return x
}

// Set sets the value of v in env.
// The calling step must have declared v with [Writes].
func (v Var[T]) Set(env *Env, x T) {
	if v.id == 0 {
		panic("coop: write of the zero Var")
	}
	env.store(v.id-1, x)
}

func (v Var[T]) ref() (int, *scope) {
	return v.id, v.scope
}

// A Ref is any [Var].
type Ref interface {
	ref() (id int, s *scope)
}

// An Access declares the variables a step reads or writes.
// Several Accesses may be passed to a single step.
type Access struct {
	reads, writes []Ref
}

// Reads declares that a step reads vars.
func Reads(vars ...Ref) Access {
	return Access{reads: vars}
}

// Writes declares that a step writes vars.
func Writes(vars ...Ref) Access {
	return Access{writes: vars}
}

type access struct {
	reads, writes bitset
}

type scope struct {
	vars []string
}
