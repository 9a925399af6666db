package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "codementor"

// Metrics holds all CodeMentor metric instruments.
type Metrics struct {
	TurnsStarted   metric.Int64Counter
	TurnsCompleted metric.Int64Counter
	TurnsFailed    metric.Int64Counter
	TurnsRejected  metric.Int64Counter
	ToolDispatches metric.Int64Counter
	TurnDuration   metric.Float64Histogram
	StreamedChars  metric.Int64Counter
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.TurnsStarted, err = meter.Int64Counter("codementor.turns.started",
		metric.WithDescription("Number of turns admitted and started"))
	if err != nil {
		return nil, err
	}

	m.TurnsCompleted, err = meter.Int64Counter("codementor.turns.completed",
		metric.WithDescription("Number of turns finalized successfully"))
	if err != nil {
		return nil, err
	}

	m.TurnsFailed, err = meter.Int64Counter("codementor.turns.failed",
		metric.WithDescription("Number of turns finalized in the error state"))
	if err != nil {
		return nil, err
	}

	m.TurnsRejected, err = meter.Int64Counter("codementor.turns.rejected",
		metric.WithDescription("Number of turns rejected by the admission gate"))
	if err != nil {
		return nil, err
	}

	m.ToolDispatches, err = meter.Int64Counter("codementor.tooldispatches",
		metric.WithDescription("Number of tool calls dispatched"))
	if err != nil {
		return nil, err
	}

	m.TurnDuration, err = meter.Float64Histogram("codementor.turn.duration_seconds",
		metric.WithDescription("Turn duration in seconds"))
	if err != nil {
		return nil, err
	}

	m.StreamedChars, err = meter.Int64Counter("codementor.turn.streamed_chars",
		metric.WithDescription("Characters of assistant text streamed"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
