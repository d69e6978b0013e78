package coop

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// A Scheduler drives submitted tasks to completion.
//
// Submitted tasks are kept in a FIFO queue. A turn pops every task that was
// in the queue when the turn started, advances it once, and pushes it back
// to the end of the queue if it is still pending. Tasks that complete are
// not pushed back; their results are published on their [Handle]s.
//
// It is done in a single-threaded manner.
// Only one task is being advanced at any time, and a task is never
// interrupted in the middle of a segment. If one task blocks, no other tasks
// can run. The best practice is not to block.
//
// A Scheduler has no clock. Anything time-related, such as timeouts, is
// expressed in turns (see [Timeout]).
//
// The zero value is ready to use. [NewScheduler] creates one with options.
type Scheduler struct {
	once          sync.Once
	mu            sync.Mutex
	q             queue[runnable]
	running       bool
	turns         int
	logger        *logrus.Entry
	meterProvider metric.MeterProvider
	ins           *instruments
}

// NewScheduler creates a new [Scheduler].
func NewScheduler(opts ...Option) *Scheduler {
	s := &Scheduler{}
	for _, opt := range opts {
		opt(s)
	}
	s.once.Do(s.setup)
	return s
}

func (s *Scheduler) setup() {
	if s.logger == nil {
		s.logger = discardLogger()
	}
	if s.meterProvider == nil {
		s.meterProvider = defaultMeterProvider()
	}
	ins, err := newInstruments(s.meterProvider)
	if err != nil {
		s.logger.WithError(err).Warn("metrics disabled")
		ins, _ = newInstruments(noop.NewMeterProvider())
	}
	s.ins = ins
}

type runnable interface {
	advance() (done, ok bool, err error)
	info() *taskInfo
}

type taskInfo struct {
	id        uuid.UUID
	name      string
	polls     int
	done      bool
	dropped   bool
	abandoned atomic.Bool
}

func (ti *taskInfo) info() *taskInfo {
	return ti
}

func (ti *taskInfo) fields() logrus.Fields {
	return logrus.Fields{"task": ti.name, "id": ti.id.String(), "polls": ti.polls}
}

// A Handle refers to a [Task] submitted to a [Scheduler].
//
// Apart from Abandon, the methods of a Handle should only be called from
// the goroutine that runs the Scheduler, or after the Scheduler returns.
type Handle[T any] struct {
	taskInfo
	task   Task[T]
	result Result[T]
}

// ID returns the identifier the [Scheduler] gave the task.
func (h *Handle[T]) ID() uuid.UUID {
	return h.id
}

// Name returns the name of the task, if the task implements [Named].
func (h *Handle[T]) Name() string {
	return h.name
}

// Polls returns how many times the task has been advanced.
func (h *Handle[T]) Polls() int {
	return h.polls
}

// Done reports whether the task has completed.
func (h *Handle[T]) Done() bool {
	return h.done
}

// Result returns the result of the task, and whether the task has
// completed.
func (h *Handle[T]) Result() (Result[T], bool) {
	return h.result, h.done
}

// Abandon tells the [Scheduler] to drop the task the next time the task
// would be advanced. No further transition of the task runs.
// If the task has already completed, Abandon has no effect.
//
// Abandon is safe for concurrent use.
func (h *Handle[T]) Abandon() {
	h.abandoned.Store(true)
}

// Abandoned reports whether the task was dropped before it completed.
func (h *Handle[T]) Abandoned() bool {
	return h.dropped
}

func (h *Handle[T]) advance() (done, ok bool, err error) {
	p, err := h.task.Advance()
	if err != nil {
		return false, false, err
	}
	res, ready := p.Get()
	if !ready {
		return false, false, nil
	}
	h.result = res
	h.done = true
	h.task = nil
	return true, res.Ok(), nil
}

// Submit adds t to the queue of s and returns a [Handle] to it.
// t is first advanced during the next turn of s.
//
// Submit does not block, and is safe for concurrent use.
func Submit[T any](s *Scheduler, t Task[T]) *Handle[T] {
	s.once.Do(s.setup)

	h := &Handle[T]{task: t}
	h.id = uuid.New()
	h.name = nameOf(t)

	s.mu.Lock()
	s.q.Push(h)
	s.mu.Unlock()

	s.logger.WithFields(h.fields()).Debug("task submitted")

	return h
}

// RunToCompletion submits t to s and runs s until t completes.
// Other tasks in s keep being advanced, turn by turn, alongside t.
//
// RunToCompletion returns the result of t. It returns an error only if
// the run was aborted (see [Scheduler.RunUntilAllComplete]), or if t was
// abandoned before it completed, which matches [ErrAbandoned]. If s is
// already running, t is not submitted and the error matches [ErrBusy].
func RunToCompletion[T any](s *Scheduler, t Task[T]) (Result[T], error) {
	if err := s.begin(); err != nil {
		return Result[T]{}, err
	}
	defer s.end()

	h := Submit(s, t)

	for !h.done {
		if h.dropped || s.Len() == 0 {
			return Result[T]{}, withStackTrace(ErrAbandoned)
		}
		if err := s.turn(); err != nil {
			return Result[T]{}, err
		}
	}

	return h.result, nil
}

// RunUntilAllComplete runs turns until the queue of s is empty, including
// tasks submitted while running.
//
// If advancing a task returns an error, or panics, the run is aborted and
// the error is returned; in case of a panic, the error is a *[PanicError].
// Either way, the offending task is dropped and any other task stays in
// the queue.
func (s *Scheduler) RunUntilAllComplete() error {
	if err := s.begin(); err != nil {
		return err
	}
	defer s.end()

	for s.Len() != 0 {
		if err := s.turn(); err != nil {
			return err
		}
	}

	return nil
}

// Turn runs a single turn: every task that is in the queue when Turn is
// called is advanced exactly once. A Turn on an empty queue does nothing
// and is not counted. It reports whether any task is left in
// the queue afterwards.
func (s *Scheduler) Turn() (more bool, err error) {
	if err := s.begin(); err != nil {
		return false, err
	}
	defer s.end()

	if err := s.turn(); err != nil {
		return false, err
	}

	return s.Len() != 0, nil
}

// Len returns the number of tasks in the queue of s.
func (s *Scheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.q.Len()
}

// Turns returns the number of turns s has run, not counting turns on an
// empty queue.
func (s *Scheduler) Turns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.turns
}

func (s *Scheduler) begin() error {
	s.once.Do(s.setup)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return withStackTrace(ErrBusy)
	}

	s.running = true

	return nil
}

func (s *Scheduler) end() {
	s.mu.Lock()
	s.running = false
	s.mu.Unlock()
}

func (s *Scheduler) turn() error {
	s.mu.Lock()
	n := s.q.Len()
	if n == 0 {
		s.mu.Unlock()
		return nil
	}
	s.turns++
	turn := s.turns
	s.mu.Unlock()

	s.ins.turn()

	for range n {
		s.mu.Lock()
		t := s.q.Pop()
		s.mu.Unlock()

		if err := s.run(t, turn); err != nil {
			return err
		}
	}

	return nil
}

func (s *Scheduler) run(t runnable, turn int) error {
	ti := t.info()

	if ti.abandoned.Load() {
		ti.dropped = true
		s.ins.abandon()
		s.logger.WithFields(ti.fields()).WithField("turn", turn).Debug("task abandoned")
		return nil
	}

	ti.polls++
	s.ins.poll()

	var (
		done, ok bool
		err      error
	)

	if pe := try(func() { done, ok, err = t.advance() }); pe != nil {
		pe.Task = ti.name
		err = withStackTrace(pe)
	}

	if err != nil {
		ti.dropped = true
		s.logger.WithFields(ti.fields()).WithField("turn", turn).WithError(err).Error("run aborted")
		s.logger.Debug(ErrorStack(err))
		return err
	}

	if !done {
		s.mu.Lock()
		s.q.Push(t)
		s.mu.Unlock()
		return nil
	}

	s.ins.complete(ok)
	s.logger.WithFields(ti.fields()).WithField("turn", turn).WithField("ok", ok).Debug("task completed")

	return nil
}
