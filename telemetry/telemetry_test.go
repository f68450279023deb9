package telemetry

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestInit_RequiresServiceName(t *testing.T) {
	if _, err := Init(context.Background(), Config{}); !errors.Is(err, ErrServiceName) {
		t.Fatalf("Init() error = %v, want ErrServiceName", err)
	}
}

func TestInit_NoExporterIsNoop(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{ServiceName: "ai-todo-app"})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}

func TestNewTracerProvider_EmitsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()
	tp, err := newTracerProvider(exp, Config{ServiceName: "ai-todo-app", ServiceVersion: "1.0.0"})
	if err != nil {
		t.Fatalf("newTracerProvider() error = %v", err)
	}

	_, span := tp.Tracer("test").Start(context.Background(), "assistant.turn")
	span.End()
	if err := tp.ForceFlush(context.Background()); err != nil {
		t.Fatalf("ForceFlush() error = %v", err)
	}

	spans := exp.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("got %d spans, want 1", len(spans))
	}
	if spans[0].Name != "assistant.turn" {
		t.Errorf("span name = %q, want assistant.turn", spans[0].Name)
	}

	found := false
	for _, kv := range spans[0].Resource.Attributes() {
		if kv.Key == attribute.Key("service.name") && kv.Value.AsString() == "ai-todo-app" {
			found = true
		}
	}
	if !found {
		t.Error("resource is missing service.name")
	}

	if err := tp.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown() error = %v", err)
	}
}

func TestNewMeterProvider_RecordsCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp, err := newMeterProvider(reader, Config{ServiceName: "ai-todo-app"})
	if err != nil {
		t.Fatalf("newMeterProvider() error = %v", err)
	}
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	counter, err := mp.Meter("test").Int64Counter("assistant.tool.invocations")
	if err != nil {
		t.Fatalf("Int64Counter() error = %v", err)
	}
	counter.Add(context.Background(), 2)
	counter.Add(context.Background(), 1)

	var rm metricdata.ResourceMetrics
	if err := reader.Collect(context.Background(), &rm); err != nil {
		t.Fatalf("Collect() error = %v", err)
	}
	if len(rm.ScopeMetrics) != 1 || len(rm.ScopeMetrics[0].Metrics) != 1 {
		t.Fatalf("collected %+v, want one metric", rm.ScopeMetrics)
	}
	sum, ok := rm.ScopeMetrics[0].Metrics[0].Data.(metricdata.Sum[int64])
	if !ok || len(sum.DataPoints) != 1 {
		t.Fatalf("data = %#v, want one int64 sum point", rm.ScopeMetrics[0].Metrics[0].Data)
	}
	if sum.DataPoints[0].Value != 3 {
		t.Errorf("counter = %d, want 3", sum.DataPoints[0].Value)
	}
}

func TestInit_StdoutInstallsMeterProvider(t *testing.T) {
	prev := otel.GetMeterProvider()
	t.Cleanup(func() { otel.SetMeterProvider(prev) })

	shutdown, err := Init(context.Background(), Config{ServiceName: "ai-todo-app", Stdout: true})
	if err != nil {
		t.Fatalf("Init() error = %v", err)
	}
	if _, ok := otel.GetMeterProvider().(*sdkmetric.MeterProvider); !ok {
		t.Errorf("global meter provider = %T, want *sdkmetric.MeterProvider", otel.GetMeterProvider())
	}
	if err := shutdown(context.Background()); err != nil {
		t.Errorf("shutdown() error = %v", err)
	}
}
