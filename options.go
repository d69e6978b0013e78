package coop

import (
	"io"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// An Option configures a [Scheduler].
type Option func(*Scheduler)

// WithLogger sets the logger a [Scheduler] reports task lifecycle events to.
// By default, nothing is logged.
func WithLogger(logger *logrus.Entry) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMeterProvider sets the meter provider a [Scheduler] creates its
// instruments from. By default, the global meter provider is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Scheduler) {
		if mp != nil {
			s.meterProvider = mp
		}
	}
}

func discardLogger() *logrus.Entry {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return logrus.NewEntry(l)
}

func defaultMeterProvider() metric.MeterProvider {
	return otel.GetMeterProvider()
}
