// Package otel provides OpenTelemetry instrumentation for the AI
// orchestration pipeline.
package otel

import (
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "convosphere"

// Metrics holds all pipeline metric instruments.
type Metrics struct {
	RequestsStarted   metric.Int64Counter
	RequestsCompleted metric.Int64Counter
	RequestsFailed    metric.Int64Counter
	BudgetRejections  metric.Int64Counter
	CostAlerts        metric.Int64Counter
	ToolCalls         metric.Int64Counter
	TokensIn          metric.Int64Counter
	TokensOut         metric.Int64Counter
	RequestCost       metric.Float64Histogram
	RequestDuration   metric.Float64Histogram
}

// NewMetrics creates all metric instruments.
func NewMetrics() (*Metrics, error) {
	meter := otel.Meter(meterName)
	m := &Metrics{}
	var err error

	m.RequestsStarted, err = meter.Int64Counter("convosphere.requests.started",
		metric.WithDescription("Number of chat requests started"))
	if err != nil {
		return nil, err
	}

	m.RequestsCompleted, err = meter.Int64Counter("convosphere.requests.completed",
		metric.WithDescription("Number of chat requests completed"))
	if err != nil {
		return nil, err
	}

	m.RequestsFailed, err = meter.Int64Counter("convosphere.requests.failed",
		metric.WithDescription("Number of chat requests failed"))
	if err != nil {
		return nil, err
	}

	m.BudgetRejections, err = meter.Int64Counter("convosphere.budget.rejections",
		metric.WithDescription("Number of requests rejected by budget enforcement"))
	if err != nil {
		return nil, err
	}

	m.CostAlerts, err = meter.Int64Counter("convosphere.cost.alerts",
		metric.WithDescription("Soft daily budget threshold crossings"))
	if err != nil {
		return nil, err
	}

	m.ToolCalls, err = meter.Int64Counter("convosphere.toolcalls",
		metric.WithDescription("Number of tool invocations"))
	if err != nil {
		return nil, err
	}

	m.TokensIn, err = meter.Int64Counter("convosphere.tokens.in",
		metric.WithDescription("Prompt tokens consumed"))
	if err != nil {
		return nil, err
	}

	m.TokensOut, err = meter.Int64Counter("convosphere.tokens.out",
		metric.WithDescription("Completion tokens produced"))
	if err != nil {
		return nil, err
	}

	m.RequestCost, err = meter.Float64Histogram("convosphere.request.cost_usd",
		metric.WithDescription("Request cost in USD"))
	if err != nil {
		return nil, err
	}

	m.RequestDuration, err = meter.Float64Histogram("convosphere.request.duration_seconds",
		metric.WithDescription("Request duration in seconds"))
	if err != nil {
		return nil, err
	}

	return m, nil
}
