package kv

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	metricsOnce     sync.Once
	storeOperations metric.Int64Counter
	storeDuration   metric.Float64Histogram
)

func initMetrics() {
	metricsOnce.Do(func() {
		meter := otel.Meter("github.com/storewatch/storewatch-bridge/internal/kv")

		var err error
		storeOperations, err = meter.Int64Counter(
			"store.operations",
			metric.WithDescription("Total key-value store operations"),
		)
		if err != nil {
			otel.Handle(err)
		}

		storeDuration, err = meter.Float64Histogram(
			"store.operation.duration",
			metric.WithDescription("Key-value store operation duration"),
			metric.WithUnit("s"),
		)
		if err != nil {
			otel.Handle(err)
		}
	})
}

// Instrumented wraps a Store with metrics instrumentation.
type Instrumented struct {
	wrapped   Store
	storeType string
}

// NewInstrumented creates an instrumented store wrapper.
func NewInstrumented(store Store, storeType string) *Instrumented {
	initMetrics()
	return &Instrumented{
		wrapped:   store,
		storeType: storeType,
	}
}

// Get retrieves a value from the wrapped store.
func (i *Instrumented) Get(ctx context.Context, key string) (string, bool, error) {
	start := time.Now()

	value, found, err := i.wrapped.Get(ctx, key)

	duration := time.Since(start)
	i.recordDuration(ctx, "get", duration)

	status := "miss"
	if err != nil {
		status = "error"
	} else if found {
		status = "hit"
	}
	i.recordOperation(ctx, "get", status)
	i.setSpanAttributes(ctx, "get", status, duration)

	return value, found, err
}

// Set stores a value in the wrapped store.
func (i *Instrumented) Set(ctx context.Context, key string, value string) error {
	start := time.Now()

	err := i.wrapped.Set(ctx, key, value)

	duration := time.Since(start)
	i.recordDuration(ctx, "set", duration)

	status := "success"
	if err != nil {
		status = "error"
	}
	i.recordOperation(ctx, "set", status)
	i.setSpanAttributes(ctx, "set", status, duration)

	return err
}

// Ping verifies the wrapped store is reachable.
func (i *Instrumented) Ping(ctx context.Context) error {
	start := time.Now()

	err := i.wrapped.Ping(ctx)

	duration := time.Since(start)
	i.recordDuration(ctx, "ping", duration)

	status := "success"
	if err != nil {
		status = "error"
	}
	i.recordOperation(ctx, "ping", status)

	return err
}

// Close releases any resources held by the wrapped store.
func (i *Instrumented) Close() error {
	return i.wrapped.Close()
}

func (i *Instrumented) recordOperation(ctx context.Context, operation, status string) {
	if storeOperations == nil {
		return
	}
	storeOperations.Add(ctx, 1, metric.WithAttributes(
		attribute.String("store.type", i.storeType),
		attribute.String("store.operation", operation),
		attribute.String("store.status", status),
	))
}

func (i *Instrumented) recordDuration(ctx context.Context, operation string, duration time.Duration) {
	if storeDuration == nil {
		return
	}
	storeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("store.type", i.storeType),
		attribute.String("store.operation", operation),
	))
}

func (i *Instrumented) setSpanAttributes(ctx context.Context, operation, status string, duration time.Duration) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.String("store.type", i.storeType),
		attribute.String("store.operation", operation),
		attribute.String("store.status", status),
		attribute.Float64("store.duration_seconds", duration.Seconds()),
	)
}
