package observability

import (
	"context"
	"log"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	otelmetric "go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/sdk/metric"
)

type Observability struct {
	meterProvider *metric.MeterProvider
	meter         otelmetric.Meter
	utterances    otelmetric.Int64Counter
	latency       otelmetric.Float64Histogram
}

// New exports through the default prometheus registerer and installs the
// meter provider globally.
func New(serviceName string) *Observability {
	o := NewWithRegisterer(serviceName, promclient.DefaultRegisterer)
	if o.meterProvider != nil {
		otel.SetMeterProvider(o.meterProvider)
	}
	return o
}

// NewWithRegisterer exports through reg. On exporter failure it returns an
// Observability whose recorders are no-ops.
func NewWithRegisterer(serviceName string, reg promclient.Registerer) *Observability {
	exporter, err := prometheus.New(prometheus.WithRegisterer(reg))
	if err != nil {
		log.Printf("Failed to create Prometheus exporter: %v", err)
		return &Observability{}
	}

	provider := metric.NewMeterProvider(metric.WithReader(exporter))
	meter := provider.Meter(serviceName)

	utterances, _ := meter.Int64Counter(
		"nlu.utterances.processed",
		otelmetric.WithDescription("Number of utterances routed to a decision"),
	)

	latency, _ := meter.Float64Histogram(
		"nlu.utterance.duration",
		otelmetric.WithDescription("End-to-end utterance handling duration"),
		otelmetric.WithUnit("ms"),
	)

	return &Observability{
		meterProvider: provider,
		meter:         meter,
		utterances:    utterances,
		latency:       latency,
	}
}

// RecordUtterance counts one routed utterance. source is "model" or "raw".
func (o *Observability) RecordUtterance(ctx context.Context, decision, source string) {
	if o == nil || o.utterances == nil {
		return
	}
	o.utterances.Add(ctx, 1, otelmetric.WithAttributes(
		attribute.String("decision", decision),
		attribute.String("source", source),
	))
}

func (o *Observability) RecordLatency(ctx context.Context, duration time.Duration, source string) {
	if o == nil || o.latency == nil {
		return
	}
	o.latency.Record(ctx, float64(duration.Microseconds())/1000, otelmetric.WithAttributes(
		attribute.String("source", source),
	))
}

func (o *Observability) Shutdown() {
	if o == nil || o.meterProvider == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = o.meterProvider.Shutdown(ctx)
}
