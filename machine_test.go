package coop_test

import (
	"errors"
	"testing"

	"github.com/b97tsk/coop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func advanceUntilReady[T any](t *testing.T, task coop.Task[T]) (coop.Result[T], int) {
	t.Helper()

	for n := 1; n <= 1000; n++ {
		p, err := task.Advance()
		require.NoError(t, err)
		if res, ok := p.Get(); ok {
			return res, n
		}
	}

	t.Fatal("task did not complete")

	return coop.Result[T]{}, 0
}

func TestMachine(t *testing.T) {
	t.Parallel()

	t.Run("SuspensionPoints", func(t *testing.T) {
		t.Parallel()

		for k := range 5 {
			b := coop.NewBuilder[int]("yields")
			for range k {
				b.Yield("")
			}
			b.Return(func(*coop.Env) (int, error) { return k, nil })

			m, err := b.Build()
			require.NoError(t, err)
			require.Equal(t, k, m.SuspensionPoints())

			res, n := advanceUntilReady[int](t, m.New())
			assert.Equal(t, k+1, n)
			assert.Equal(t, coop.Success(k), res)
		}
	})

	t.Run("CaptureFidelity", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[[2]int]("capture")
		a := coop.NewVar[int](b, "a")
		c := coop.NewVar[int](b, "b")

		b.Do(func(env *coop.Env) error {
			a.Set(env, 1)
			c.Set(env, 2)
			return nil
		}, coop.Writes(a, c))
		b.Yield("pause")
		b.Return(func(env *coop.Env) ([2]int, error) {
			return [2]int{a.Get(env), c.Get(env)}, nil
		}, coop.Reads(a, c))

		m, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"a", "b"}, m.Captures(1))

		task := m.New()

		p, err := task.Advance()
		require.NoError(t, err)
		require.True(t, p.IsPending())
		assert.Equal(t, "pause", task.State())
		assert.Equal(t, []string{"a", "b"}, task.Captured())

		p, err = task.Advance()
		require.NoError(t, err)

		res, ok := p.Get()
		require.True(t, ok)
		assert.Equal(t, [2]int{1, 2}, res.Value())
		assert.Equal(t, "completed", task.State())
		assert.Empty(t, task.Captured())
	})

	t.Run("TransientVariables", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("scoping")
		important := coop.NewVar[int](b, "important")
		temporary := coop.NewVar[string](b, "temporary")
		result := coop.NewVar[int](b, "result")

		var seen string

		b.Do(func(env *coop.Env) error {
			important.Set(env, 42)
			temporary.Set(env, "temporary")
			return nil
		}, coop.Writes(important, temporary))
		b.Do(func(env *coop.Env) error {
			seen = temporary.Get(env)
			return nil
		}, coop.Reads(temporary))
		b.Yield("sleep")
		b.Do(func(env *coop.Env) error {
			result.Set(env, important.Get(env)*2)
			return nil
		}, coop.Reads(important), coop.Writes(result))
		b.Return(func(env *coop.Env) (int, error) {
			return result.Get(env), nil
		}, coop.Reads(result))

		m, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"important"}, m.Captures(1))

		task := m.New()

		_, err = task.Advance()
		require.NoError(t, err)
		assert.Equal(t, "temporary", seen)
		assert.Equal(t, []string{"important"}, task.Captured())

		res, n := advanceUntilReady[int](t, task)
		assert.Equal(t, 1, n)
		assert.Equal(t, 84, res.Value())
	})

	t.Run("LiveRange", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("live-range")
		x := coop.NewVar[int](b, "x")
		y := coop.NewVar[int](b, "y")

		b.Do(func(env *coop.Env) error { x.Set(env, 1); return nil }, coop.Writes(x))
		b.Yield("one")
		b.Do(func(env *coop.Env) error { y.Set(env, x.Get(env)+1); return nil }, coop.Reads(x), coop.Writes(y))
		b.Yield("two")
		b.Yield("three")
		b.Return(func(env *coop.Env) (int, error) { return y.Get(env), nil }, coop.Reads(y))

		m, err := b.Build()
		require.NoError(t, err)

		assert.Equal(t, []string{"x"}, m.Captures(1))
		assert.Equal(t, []string{"y"}, m.Captures(2))
		assert.Equal(t, []string{"y"}, m.Captures(3))
		assert.Nil(t, m.Captures(4))
		assert.Equal(t, []string{"start", "one", "two", "three", "completed", "failed"}, m.States())
	})

	t.Run("Await", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("await")
		v := coop.NewVar[int](b, "v")

		coop.Await(b, "child", v, func(*coop.Env) coop.Task[int] {
			return coop.FromFunc("child", func(n int) coop.Poll[coop.Result[int]] {
				if n < 3 {
					return coop.Pending[coop.Result[int]]()
				}
				return coop.Ready(coop.Success(7))
			})
		})
		b.Return(func(env *coop.Env) (int, error) { return v.Get(env) * 6, nil }, coop.Reads(v))

		m, err := b.Build()
		require.NoError(t, err)
		assert.Empty(t, m.Captures(1))

		task := m.New()

		for range 2 {
			p, err := task.Advance()
			require.NoError(t, err)
			require.True(t, p.IsPending())
			assert.Equal(t, "child", task.State())
		}

		res, n := advanceUntilReady[int](t, task)
		assert.Equal(t, 1, n)
		assert.Equal(t, 42, res.Value())
		assert.Equal(t, 3, task.Polls())
	})

	t.Run("AwaitReadyChildDoesNotSuspend", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[string]("inline")
		s := coop.NewVar[string](b, "s")

		coop.Await(b, "value", s, func(*coop.Env) coop.Task[string] { return coop.Value("now") })
		b.Return(func(env *coop.Env) (string, error) { return s.Get(env), nil }, coop.Reads(s))

		m, err := b.Build()
		require.NoError(t, err)

		res, n := advanceUntilReady[string](t, m.New())
		assert.Equal(t, 1, n)
		assert.Equal(t, "now", res.Value())
	})

	t.Run("AwaitReadsCapturedVariables", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("chain")
		n := coop.NewVar[int](b, "n")
		doubled := coop.NewVar[int](b, "doubled")

		b.Do(func(env *coop.Env) error { n.Set(env, 5); return nil }, coop.Writes(n))
		coop.Await(b, "sleep", coop.Var[struct{}]{}, func(*coop.Env) coop.Task[struct{}] { return coop.Sleep(1) })
		coop.Await(b, "double", doubled, func(env *coop.Env) coop.Task[int] {
			return coop.Value(n.Get(env) * 2)
		}, coop.Reads(n))
		b.Return(func(env *coop.Env) (int, error) { return doubled.Get(env), nil }, coop.Reads(doubled))

		m, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"n"}, m.Captures(1))
		assert.Empty(t, m.Captures(2))

		res, k := advanceUntilReady[int](t, m.New())
		assert.Equal(t, 2, k)
		assert.Equal(t, 10, res.Value())
	})

	t.Run("Failure", func(t *testing.T) {
		t.Parallel()

		errInvalidID := errors.New("invalid id")

		b := coop.NewBuilder[string]("validate")
		id := coop.NewVar[int](b, "id")

		var reached bool

		b.Do(func(env *coop.Env) error { id.Set(env, 0); return nil }, coop.Writes(id))
		b.Yield("validation")
		b.Do(func(env *coop.Env) error {
			if id.Get(env) == 0 {
				return errInvalidID
			}
			return nil
		}, coop.Reads(id))
		b.Yield("processing")
		b.Return(func(*coop.Env) (string, error) {
			reached = true
			return "processed", nil
		})

		m, err := b.Build()
		require.NoError(t, err)

		task := m.New()

		res, n := advanceUntilReady[string](t, task)
		assert.Equal(t, 2, n)
		assert.ErrorIs(t, res.Err(), errInvalidID)
		assert.False(t, reached)
		assert.Equal(t, "failed", task.State())
		assert.Empty(t, task.Captured())
	})

	t.Run("AwaitFailure", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")

		b := coop.NewBuilder[int]("await-failure")
		v := coop.NewVar[int](b, "v")

		coop.Await(b, "", v, func(*coop.Env) coop.Task[int] { return coop.Fail[int](errBoom) })
		b.Return(func(env *coop.Env) (int, error) { return v.Get(env), nil }, coop.Reads(v))

		m, err := b.Build()
		require.NoError(t, err)
		assert.Equal(t, []string{"start", "await#1", "completed", "failed"}, m.States())

		res, n := advanceUntilReady[int](t, m.New())
		assert.Equal(t, 1, n)
		assert.ErrorIs(t, res.Err(), errBoom)
	})

	t.Run("InvalidState", func(t *testing.T) {
		t.Parallel()

		m, err := coop.NewBuilder[int]("once").
			Return(func(*coop.Env) (int, error) { return 1, nil }).
			Build()
		require.NoError(t, err)

		task := m.New()

		_, n := advanceUntilReady[int](t, task)
		require.Equal(t, 1, n)

		for range 2 {
			p, err := task.Advance()
			require.ErrorIs(t, err, coop.ErrInvalidState)
			assert.True(t, p.IsPending())

			var ise *coop.InvalidStateError
			require.ErrorAs(t, err, &ise)
			assert.Equal(t, "once", ise.Task)
			assert.Equal(t, "completed", ise.State)
		}
	})

	t.Run("IndependentInstances", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("counter")
		n := coop.NewVar[int](b, "n")

		start := 0

		b.Do(func(env *coop.Env) error {
			start++
			n.Set(env, start)
			return nil
		}, coop.Writes(n))
		b.Yield("")
		b.Return(func(env *coop.Env) (int, error) { return n.Get(env), nil }, coop.Reads(n))

		m, err := b.Build()
		require.NoError(t, err)

		t1, t2 := m.New(), m.New()

		_, err = t1.Advance()
		require.NoError(t, err)
		_, err = t2.Advance()
		require.NoError(t, err)

		r1, _ := advanceUntilReady[int](t, t1)
		r2, _ := advanceUntilReady[int](t, t2)
		assert.Equal(t, 1, r1.Value())
		assert.Equal(t, 2, r2.Value())
	})

	t.Run("UndeclaredAccess", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("undeclared")
		x := coop.NewVar[int](b, "x")

		b.Do(func(env *coop.Env) error { x.Set(env, 1); return nil })
		b.Return(func(*coop.Env) (int, error) { return 0, nil })

		m, err := b.Build()
		require.NoError(t, err)

		assert.PanicsWithValue(t, `coop: write of undeclared variable "x"`, func() { _, _ = m.New().Advance() })
	})

	t.Run("ZeroVar", func(t *testing.T) {
		t.Parallel()

		var zero coop.Var[int]

		b := coop.NewBuilder[int]("zero-var")
		b.Do(func(env *coop.Env) error { zero.Set(env, 1); return nil })
		b.Return(func(env *coop.Env) (int, error) { return zero.Get(env), nil })

		m, err := b.Build()
		require.NoError(t, err)

		assert.PanicsWithValue(t, "coop: write of the zero Var", func() { _, _ = m.New().Advance() })

		b = coop.NewBuilder[int]("zero-var-read")
		b.Return(func(env *coop.Env) (int, error) { return zero.Get(env), nil })

		m, err = b.Build()
		require.NoError(t, err)

		assert.PanicsWithValue(t, "coop: read of the zero Var", func() { _, _ = m.New().Advance() })
	})
}

func TestBuild(t *testing.T) {
	t.Parallel()

	t.Run("UncapturedRead", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("uncaptured")
		x := coop.NewVar[int](b, "x")

		b.Yield("")
		b.Return(func(env *coop.Env) (int, error) { return x.Get(env), nil }, coop.Reads(x))

		_, err := b.Build()
		require.ErrorIs(t, err, coop.ErrUncapturedRead)
		assert.Contains(t, err.Error(), `"x"`)
	})

	t.Run("WriteAfterRead", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("write-after-read")
		x := coop.NewVar[int](b, "x")

		b.Do(func(env *coop.Env) error { _ = x.Get(env); return nil }, coop.Reads(x))
		b.Do(func(env *coop.Env) error { x.Set(env, 1); return nil }, coop.Writes(x))
		b.Return(func(*coop.Env) (int, error) { return 0, nil })

		_, err := b.Build()
		require.ErrorIs(t, err, coop.ErrUncapturedRead)
	})

	t.Run("AwaitedValueCountsAsWrite", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("awaited")
		x := coop.NewVar[int](b, "x")

		coop.Await(b, "", x, func(*coop.Env) coop.Task[int] { return coop.Value(1) })
		b.Return(func(env *coop.Env) (int, error) { return x.Get(env), nil }, coop.Reads(x))

		_, err := b.Build()
		require.NoError(t, err)
	})

	t.Run("MissingReturn", func(t *testing.T) {
		t.Parallel()

		_, err := coop.NewBuilder[int]("missing").Yield("").Build()
		require.Error(t, err)
	})

	t.Run("StepAfterReturn", func(t *testing.T) {
		t.Parallel()

		b := coop.NewBuilder[int]("after")
		b.Return(func(*coop.Env) (int, error) { return 0, nil })
		b.Yield("")

		_, err := b.Build()
		require.Error(t, err)
	})

	t.Run("ForeignVariable", func(t *testing.T) {
		t.Parallel()

		other := coop.NewBuilder[int]("other")
		x := coop.NewVar[int](other, "x")

		b := coop.NewBuilder[int]("foreign")
		b.Do(func(env *coop.Env) error { x.Set(env, 1); return nil }, coop.Writes(x))
		b.Return(func(*coop.Env) (int, error) { return 0, nil })

		_, err := b.Build()
		require.Error(t, err)
	})
}
