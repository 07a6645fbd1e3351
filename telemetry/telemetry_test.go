/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package telemetry_test

import (
	"context"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"chainguard.dev/pragent/agents/metrics"
	"chainguard.dev/pragent/telemetry"
)

func TestSetup(t *testing.T) {
	m, err := telemetry.Setup("pragent-test", "v0.0.1")
	if err != nil {
		t.Fatalf("Setup() = %v", err)
	}
	t.Cleanup(func() { _ = m.Shutdown(context.Background()) })

	rec := metrics.New(metrics.MeterName)
	rec.RecordCommand(context.Background(), "review", "github", nil)

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()
	resp, err := srv.Client().Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics = %v", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	for _, want := range []string{"pragent_commands", `command="review"`, "go_goroutines"} {
		if !strings.Contains(string(body), want) {
			t.Errorf("metrics output is missing %q", want)
		}
	}
}
