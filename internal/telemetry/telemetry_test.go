package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"go.opentelemetry.io/otel"
)

func TestSetup_Disabled(t *testing.T) {
	shutdown, err := Setup(context.Background(), Config{})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	if shutdown == nil {
		t.Fatal("shutdown function is nil")
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown failed: %v", err)
	}
}

func TestSetup_ExportsToEndpoint(t *testing.T) {
	var hits atomic.Int32
	collector := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer collector.Close()

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Setup(context.Background(), Config{
		Endpoint:       collector.URL,
		SampleRatio:    1,
		ServiceName:    "consultd",
		ServiceVersion: "test",
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}

	_, span := otel.Tracer("telemetry_test").Start(context.Background(), "probe")
	if !span.SpanContext().IsSampled() {
		t.Error("span not sampled at ratio 1")
	}
	span.End()

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("shutdown failed: %v", err)
	}
	if hits.Load() == 0 {
		t.Error("no export request reached the collector")
	}
}

func TestSetup_RatioZeroDropsSpans(t *testing.T) {
	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := Setup(context.Background(), Config{
		Endpoint:    "http://127.0.0.1:4318",
		SampleRatio: 0,
	})
	if err != nil {
		t.Fatalf("setup failed: %v", err)
	}
	defer shutdown(context.Background())

	for range 10 {
		_, span := otel.Tracer("telemetry_test").Start(context.Background(), "probe")
		if span.SpanContext().IsSampled() {
			t.Fatal("span sampled at ratio 0")
		}
		span.End()
	}
}

func TestSampler(t *testing.T) {
	tests := []struct {
		name  string
		ratio float64
		want  string
	}{
		{"full", 1.0, "AlwaysOnSampler"},
		{"above one", 1.5, "AlwaysOnSampler"},
		{"zero", 0.0, "AlwaysOffSampler"},
		{"negative", -0.5, "AlwaysOffSampler"},
		{"partial", 0.5, "TraceIDRatioBased"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sampler(tt.ratio).Description()
			if !strings.Contains(got, tt.want) {
				t.Errorf("sampler(%v) = %q, want to contain %q", tt.ratio, got, tt.want)
			}
		})
	}
}
