package coop

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "github.com/b97tsk/coop"

type instruments struct {
	turns     metric.Int64Counter
	polls     metric.Int64Counter
	completed metric.Int64Counter
	abandoned metric.Int64Counter
}

var (
	outcomeSuccess = metric.WithAttributes(attribute.String("outcome", "success"))
	outcomeFailure = metric.WithAttributes(attribute.String("outcome", "failure"))
)

func newInstruments(mp metric.MeterProvider) (*instruments, error) {
	meter := mp.Meter(meterName)

	var (
		ins instruments
		err error
	)

	if ins.turns, err = meter.Int64Counter("coop.scheduler.turns",
		metric.WithDescription("Number of scheduler turns run."),
	); err != nil {
		return nil, withStackTrace(err)
	}

	if ins.polls, err = meter.Int64Counter("coop.task.polls",
		metric.WithDescription("Number of times a task was advanced."),
	); err != nil {
		return nil, withStackTrace(err)
	}

	if ins.completed, err = meter.Int64Counter("coop.task.completed",
		metric.WithDescription("Number of tasks that completed, by outcome."),
	); err != nil {
		return nil, withStackTrace(err)
	}

	if ins.abandoned, err = meter.Int64Counter("coop.task.abandoned",
		metric.WithDescription("Number of tasks dropped before they completed."),
	); err != nil {
		return nil, withStackTrace(err)
	}

	return &ins, nil
}

func (ins *instruments) turn() {
	ins.turns.Add(context.Background(), 1)
}

func (ins *instruments) poll() {
	ins.polls.Add(context.Background(), 1)
}

func (ins *instruments) complete(ok bool) {
	if ok {
		ins.completed.Add(context.Background(), 1, outcomeSuccess)
	} else {
		ins.completed.Add(context.Background(), 1, outcomeFailure)
	}
}

func (ins *instruments) abandon() {
	ins.abandoned.Add(context.Background(), 1)
}
