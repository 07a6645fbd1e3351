/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package metrics_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"chainguard.dev/pragent/agents/metrics"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collect(t *testing.T, reader *sdkmetric.ManualReader) map[string]metricdata.Aggregation {
	t.Helper()
	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() = %v", err)
	}
	out := map[string]metricdata.Aggregation{}
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			out[m.Name] = m.Data
		}
	}
	return out
}

func sum(t *testing.T, agg metricdata.Aggregation) int64 {
	t.Helper()
	s, ok := agg.(metricdata.Sum[int64])
	if !ok {
		t.Fatalf("aggregation is %T, want Sum[int64]", agg)
	}
	var total int64
	for _, dp := range s.DataPoints {
		total += dp.Value
	}
	return total
}

func TestRecorder(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	r := metrics.NewFromProvider(sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader)), metrics.MeterName)

	var enriched bool
	r.SetAttributeEnricher(func(_ context.Context, base []attribute.KeyValue) []attribute.KeyValue {
		enriched = true
		return append(base, attribute.String("repository", "octo/repo"))
	})

	ctx := context.Background()
	r.RecordTokens(ctx, "gpt-4.1", 1000, 200)
	r.RecordTokens(ctx, "gpt-4.1", 500, 100)
	r.RecordModelCall(ctx, "gpt-4.1", 2*time.Second, nil)
	r.RecordModelCall(ctx, "gpt-4.1", time.Second, errors.New("429"))
	r.RecordCommand(ctx, "review", "github", nil)

	got := collect(t, reader)
	if n := sum(t, got["genai.token.prompt"]); n != 1500 {
		t.Errorf("prompt tokens = %d, want 1500", n)
	}
	if n := sum(t, got["genai.token.completion"]); n != 300 {
		t.Errorf("completion tokens = %d, want 300", n)
	}
	calls, ok := got["genai.model.calls"].(metricdata.Sum[int64])
	if !ok || len(calls.DataPoints) != 2 {
		t.Errorf("model calls = %+v, want one series per outcome", got["genai.model.calls"])
	}
	if _, ok := got["genai.model.duration"].(metricdata.Histogram[float64]); !ok {
		t.Errorf("model duration is %T, want Histogram[float64]", got["genai.model.duration"])
	}
	if n := sum(t, got["pragent.commands"]); n != 1 {
		t.Errorf("commands = %d, want 1", n)
	}
	if !enriched {
		t.Error("attribute enricher was not called")
	}
}
