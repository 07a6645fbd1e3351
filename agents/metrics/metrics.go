/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

// Package metrics records model token usage, model call latency and command
// outcomes as OpenTelemetry instruments.
package metrics

import (
	"context"
	"time"

	"github.com/chainguard-dev/clog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// MeterName is the meter every pragent instrument is registered under.
const MeterName = "chainguard.dev/pragent"

// AttributeEnricher adds request attributes to the base attributes of a measurement.
type AttributeEnricher func(ctx context.Context, base []attribute.KeyValue) []attribute.KeyValue

// Recorder records model usage and command outcomes. Instruments that fail to
// register fall back to no-ops.
type Recorder struct {
	promptTokens     metric.Int64Counter
	completionTokens metric.Int64Counter
	modelCalls       metric.Int64Counter
	modelLatency     metric.Float64Histogram
	commands         metric.Int64Counter
	enrich           AttributeEnricher
}

// New creates a Recorder on the global meter provider.
func New(meterName string) *Recorder {
	return NewFromProvider(otel.GetMeterProvider(), meterName)
}

// NewFromProvider creates a Recorder on mp.
func NewFromProvider(mp metric.MeterProvider, meterName string) *Recorder {
	meter := mp.Meter(meterName, metric.WithInstrumentationVersion("1.0.0"))
	r := &Recorder{}

	var err error
	if r.promptTokens, err = meter.Int64Counter("genai.token.prompt",
		metric.WithDescription("Prompt tokens sent to models"),
		metric.WithUnit("{tokens}")); err != nil {
		clog.Warn("Failed to create prompt token counter", "error", err)
		r.promptTokens = noop.Int64Counter{}
	}
	if r.completionTokens, err = meter.Int64Counter("genai.token.completion",
		metric.WithDescription("Completion tokens returned by models"),
		metric.WithUnit("{tokens}")); err != nil {
		clog.Warn("Failed to create completion token counter", "error", err)
		r.completionTokens = noop.Int64Counter{}
	}
	if r.modelCalls, err = meter.Int64Counter("genai.model.calls",
		metric.WithDescription("Model calls by outcome"),
		metric.WithUnit("{calls}")); err != nil {
		clog.Warn("Failed to create model call counter", "error", err)
		r.modelCalls = noop.Int64Counter{}
	}
	if r.modelLatency, err = meter.Float64Histogram("genai.model.duration",
		metric.WithDescription("Model call latency"),
		metric.WithUnit("s")); err != nil {
		clog.Warn("Failed to create model latency histogram", "error", err)
		r.modelLatency = noop.Float64Histogram{}
	}
	if r.commands, err = meter.Int64Counter("pragent.commands",
		metric.WithDescription("Commands handled by outcome"),
		metric.WithUnit("{commands}")); err != nil {
		clog.Warn("Failed to create command counter", "error", err)
		r.commands = noop.Int64Counter{}
	}
	return r
}

// SetAttributeEnricher sets the enricher applied to every measurement.
func (r *Recorder) SetAttributeEnricher(e AttributeEnricher) {
	r.enrich = e
}

func (r *Recorder) attrs(ctx context.Context, base []attribute.KeyValue, extra []attribute.KeyValue) metric.MeasurementOption {
	if r.enrich != nil {
		base = r.enrich(ctx, base)
	}
	return metric.WithAttributes(append(base, extra...)...)
}

// RecordTokens records the token usage of one model call.
func (r *Recorder) RecordTokens(ctx context.Context, model string, prompt, completion int64, extra ...attribute.KeyValue) {
	opt := r.attrs(ctx, []attribute.KeyValue{attribute.String("model", model)}, extra)
	r.promptTokens.Add(ctx, prompt, opt)
	r.completionTokens.Add(ctx, completion, opt)
}

// RecordModelCall records the outcome and latency of one model call.
func (r *Recorder) RecordModelCall(ctx context.Context, model string, d time.Duration, err error) {
	opt := r.attrs(ctx, []attribute.KeyValue{
		attribute.String("model", model),
		attribute.String("outcome", outcome(err)),
	}, nil)
	r.modelCalls.Add(ctx, 1, opt)
	r.modelLatency.Record(ctx, d.Seconds(), opt)
}

// RecordCommand records that command finished on provider.
func (r *Recorder) RecordCommand(ctx context.Context, command, provider string, err error) {
	r.commands.Add(ctx, 1, r.attrs(ctx, []attribute.KeyValue{
		attribute.String("command", command),
		attribute.String("provider", provider),
		attribute.String("outcome", outcome(err)),
	}, nil))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
