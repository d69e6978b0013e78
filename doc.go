// Package coop is a small cooperative task execution engine.
//
// Go has goroutines, and for most programs that is all the concurrency one
// needs. This package is for the other cases: when a piece of work has to
// suspend and resume without holding a goroutine, when one wants to know
// exactly how far every unit of work has progressed, or when a set of
// computations must be interleaved deterministically on a single thread.
//
// # Tasks
//
// A [Task] is a unit of suspendable, resumable computation with a single
// method, Advance. Each call runs one synchronous segment of the Task and
// returns a [Poll]: pending if the Task suspended again, ready with
// a [Result] if the Task completed. A completed Task must not be advanced
// again; doing so is reported as an error matching [ErrInvalidState].
//
// Small tasks are provided by [Value], [Fail], [Sleep] and [FromFunc].
//
// # State Machines
//
// Longer computations are written with a [Builder]: an ordered list of
// synchronous steps ([Builder.Do]) separated by suspension points
// ([Builder.Yield] and [Await]), ended by [Builder.Return].
// [Builder.Build] turns it into a [Machine], whose instances are tasks.
//
// Steps share variables, declared with [NewVar]. Each step tells which
// variables it reads and writes. From that, Build computes, once, which
// variables are live across each suspension point. An instance keeps those
// and drops every other variable at the end of each segment. A step that
// reads a variable no earlier step writes is reported by Build, not at run
// time.
//
// # Scheduling
//
// A [Scheduler] drives tasks to completion, one turn at a time.
// In a turn, every queued task is advanced once, in FIFO order, and
// pending tasks go to the back of the queue. No task can starve another.
//
// Tasks are submitted with [Submit], which returns a [Handle] through which
// the result is later available. [RunToCompletion] submits a task and runs
// until it completes. [Scheduler.RunUntilAllComplete] runs until the queue
// is empty.
//
// There is no preemption and no clock. A task that blocks blocks the whole
// Scheduler. Timeouts are counted in advances (see [Timeout]), and
// cancellation is just abandonment (see [Handle.Abandon]): an abandoned
// task is dropped and never runs again, without any cleanup step.
//
// # Joining
//
// [Join] runs several tasks concurrently within a single task, advancing
// each of them once per advance of its own, and completes with all their
// values in order, or with the first failure. [JoinSettled] waits for
// every task regardless of failures.
//
// # Operations Outside the Engine
//
// Work that happens elsewhere, like a network round trip, is wrapped as an
// [Operation] and turned into a Task with [External]. The engine only ever
// polls an Operation; the Operation itself is responsible for making
// progress, typically on a goroutine (see [Go] and [Completion]).
// Package [github.com/b97tsk/coop/httpop] provides HTTP requests this way.
//
// # Errors
//
// A failed Result is data. It is returned to whoever awaits the Task, and
// never aborts a Scheduler. Errors returned from Advance, on the other hand,
// are programming defects: a Scheduler that sees one, or a panic from
// a Task, stops and returns it.
package coop
