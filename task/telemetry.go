package task

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Errors returned while resolving an exporter by name.
var (
	ErrEndpointNotConfigured = errors.New("task: telemetry endpoint not configured")
	ErrInvalidExporter       = errors.New("task: invalid telemetry exporter")
)

// TelemetryConfig configures a Telemetry instance: which OpenTelemetry
// backends (if any) attempt counts, retries, durations, and circuit
// transitions are mirrored into.
type TelemetryConfig struct {
	ServiceName string
	Version     string

	TracingEnabled  bool
	TracingExporter string // otlp|stdout|none
	SamplePct       float64

	MetricsEnabled  bool
	MetricsExporter string // otlp|prometheus|stdout|none
}

// Telemetry holds a tracer, a meter, and the task-specific instruments
// built from it. Its Hooks method produces a Hooks value that mirrors
// every Run call's outcome into those instruments; callers typically
// compose it with their own Hooks via ComposeHooks.
type Telemetry struct {
	tracer trace.Tracer
	meter  metric.Meter

	attemptCount metric.Int64Counter
	retryCount   metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	circuitCount metric.Int64Counter

	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
}

// NewTelemetry builds a Telemetry from cfg. Disabled subsystems fall
// back to OpenTelemetry's no-op implementations, so a caller can leave
// tracing or metrics off without special-casing anything downstream.
func NewTelemetry(ctx context.Context, cfg TelemetryConfig) (*Telemetry, error) {
	t := &Telemetry{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.Version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("task: telemetry resource: %w", err)
	}

	if cfg.TracingEnabled {
		exp, err := newTracingExporter(ctx, cfg.TracingExporter)
		if err != nil {
			return nil, fmt.Errorf("task: telemetry tracing exporter: %w", err)
		}

		var sampler sdktrace.Sampler
		switch {
		case cfg.SamplePct >= 1.0:
			sampler = sdktrace.AlwaysSample()
		case cfg.SamplePct <= 0:
			sampler = sdktrace.NeverSample()
		default:
			sampler = sdktrace.TraceIDRatioBased(cfg.SamplePct)
		}

		tp := sdktrace.NewTracerProvider(
			sdktrace.WithResource(res),
			sdktrace.WithSampler(sampler),
			sdktrace.WithBatcher(exp),
		)
		otel.SetTracerProvider(tp)
		t.tracerProvider = tp
		t.tracer = tp.Tracer(cfg.ServiceName)
	} else {
		t.tracer = tracenoop.NewTracerProvider().Tracer("noop")
	}

	if cfg.MetricsEnabled {
		reader, err := newMetricsReader(ctx, cfg.MetricsExporter)
		if err != nil {
			return nil, fmt.Errorf("task: telemetry metrics reader: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithResource(res),
			sdkmetric.WithReader(reader),
		)
		otel.SetMeterProvider(mp)
		t.meterProvider = mp
		t.meter = mp.Meter(cfg.ServiceName)
	} else {
		t.meter = noop.NewMeterProvider().Meter("noop")
	}

	if err := t.buildInstruments(); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Telemetry) buildInstruments() error {
	var err error
	t.attemptCount, err = t.meter.Int64Counter("task.exec.attempts",
		metric.WithDescription("Total number of task attempts"), metric.WithUnit("{attempt}"))
	if err != nil {
		return err
	}
	t.retryCount, err = t.meter.Int64Counter("task.exec.retries",
		metric.WithDescription("Total number of retries scheduled"), metric.WithUnit("{retry}"))
	if err != nil {
		return err
	}
	t.errorCount, err = t.meter.Int64Counter("task.exec.errors",
		metric.WithDescription("Total number of failed task attempts"), metric.WithUnit("{error}"))
	if err != nil {
		return err
	}
	t.durationHist, err = t.meter.Float64Histogram("task.exec.duration_ms",
		metric.WithDescription("Task call duration in milliseconds"), metric.WithUnit("ms"))
	if err != nil {
		return err
	}
	t.circuitCount, err = t.meter.Int64Counter("task.circuit.transitions",
		metric.WithDescription("Total number of circuit breaker state transitions"), metric.WithUnit("{transition}"))
	if err != nil {
		return err
	}
	return nil
}

// newTracingExporter resolves a span exporter by name: "stdout",
// "otlp" (requires OTEL_EXPORTER_OTLP_ENDPOINT or
// OTEL_EXPORTER_OTLP_TRACES_ENDPOINT), or "none"/"" (discards spans).
func newTracingExporter(ctx context.Context, name string) (sdktrace.SpanExporter, error) {
	switch name {
	case "stdout":
		return stdouttrace.New(stdouttrace.WithWriter(os.Stdout))

	case "otlp":
		endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", ErrEndpointNotConfigured)
		}
		return otlptracegrpc.New(ctx)

	case "none", "":
		return stdouttrace.New(stdouttrace.WithWriter(io.Discard))

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidExporter, name)
	}
}

// newMetricsReader resolves a metrics reader by name: "stdout",
// "otlp" (requires OTEL_EXPORTER_OTLP_ENDPOINT or
// OTEL_EXPORTER_OTLP_METRICS_ENDPOINT), "prometheus", or "none"/""
// (discards metrics). attemptCount/retryCount/errorCount/durationHist
// and circuitCount are the only instruments this reader ever serves,
// so "prometheus" is exposed alongside "otlp" for engines that run
// their own scrape endpoint rather than push through a collector.
func newMetricsReader(ctx context.Context, name string) (sdkmetric.Reader, error) {
	switch name {
	case "stdout":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(os.Stdout))
		if err != nil {
			return nil, fmt.Errorf("task: stdout metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "otlp":
		endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
		if endpoint == "" {
			endpoint = os.Getenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT")
		}
		if endpoint == "" {
			return nil, fmt.Errorf("%w: set OTEL_EXPORTER_OTLP_ENDPOINT or OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", ErrEndpointNotConfigured)
		}
		exp, err := otlpmetricgrpc.New(ctx)
		if err != nil {
			return nil, fmt.Errorf("task: OTLP metrics exporter: %w", err)
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	case "prometheus":
		exp, err := prometheus.New()
		if err != nil {
			return nil, fmt.Errorf("task: prometheus exporter: %w", err)
		}
		return exp, nil

	case "none", "":
		exp, err := stdoutmetric.New(stdoutmetric.WithWriter(io.Discard))
		if err != nil {
			return nil, err
		}
		return sdkmetric.NewPeriodicReader(exp), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidExporter, name)
	}
}

// Hooks returns a Hooks value that records every Run call's outcome
// into this Telemetry's instruments. Compose it with user hooks via
// ComposeHooks; do not pass it as the only Hooks if the caller also
// wants their own callbacks.
func (t *Telemetry) Hooks() Hooks {
	return Hooks{
		OnSuccess: func(ctx context.Context, _ any, m Metrics) {
			t.attemptCount.Add(ctx, 1)
		},
		OnError: func(ctx context.Context, err *TypedError, m Metrics) {
			t.attemptCount.Add(ctx, 1)
			t.errorCount.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(err.Code))))
		},
		OnFinally: func(ctx context.Context, m Metrics) {
			t.durationHist.Record(ctx, float64(m.TotalDuration.Milliseconds()))
		},
		OnRetry: func(ctx context.Context, attempt int, err *TypedError, _ time.Duration) {
			t.retryCount.Add(ctx, 1, metric.WithAttributes(attribute.String("code", string(err.Code))))
		},
		OnCircuitStateChange: func(from, to State) {
			t.circuitCount.Add(context.Background(), 1,
				metric.WithAttributes(attribute.String("from", from.String()), attribute.String("to", to.String())))
		},
	}
}

// Shutdown flushes and releases the underlying providers. Idempotent;
// returns the first error encountered.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("task: tracer shutdown: %w", err)
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("task: meter shutdown: %w", err)
		}
	}
	return nil
}

// Traced wraps t in a span named spanName, started on the Telemetry's
// tracer before the task runs and ended (with error status set) after
// it returns. It composes around Task independently of Engine, so a
// caller can add tracing to one call without changing engine.go.
func Traced[T any](tel *Telemetry, spanName string, t Task[T]) Task[T] {
	return func(ctx context.Context) (T, error) {
		ctx, span := tel.tracer.Start(ctx, spanName, trace.WithSpanKind(trace.SpanKindInternal))
		defer span.End()

		v, err := t(ctx)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "")
		}
		return v, err
	}
}

// ComposeHooks merges hs in order: every non-nil callback on each
// Hooks fires, in the order given. Use it to combine Telemetry.Hooks()
// with application-level Hooks without either silently replacing the
// other.
func ComposeHooks(hs ...Hooks) Hooks {
	var out Hooks
	for _, h := range hs {
		h := h
		if h.OnSuccess != nil {
			prev := out.OnSuccess
			out.OnSuccess = func(ctx context.Context, data any, m Metrics) {
				if prev != nil {
					prev(ctx, data, m)
				}
				h.OnSuccess(ctx, data, m)
			}
		}
		if h.OnError != nil {
			prev := out.OnError
			out.OnError = func(ctx context.Context, err *TypedError, m Metrics) {
				if prev != nil {
					prev(ctx, err, m)
				}
				h.OnError(ctx, err, m)
			}
		}
		if h.OnRetry != nil {
			prev := out.OnRetry
			out.OnRetry = func(ctx context.Context, attempt int, err *TypedError, delay time.Duration) {
				if prev != nil {
					prev(ctx, attempt, err, delay)
				}
				h.OnRetry(ctx, attempt, err, delay)
			}
		}
		if h.OnFinally != nil {
			prev := out.OnFinally
			out.OnFinally = func(ctx context.Context, m Metrics) {
				if prev != nil {
					prev(ctx, m)
				}
				h.OnFinally(ctx, m)
			}
		}
		if h.OnAbort != nil {
			prev := out.OnAbort
			out.OnAbort = func(ctx context.Context, err *TypedError) {
				if prev != nil {
					prev(ctx, err)
				}
				h.OnAbort(ctx, err)
			}
		}
		if h.OnCircuitStateChange != nil {
			prev := out.OnCircuitStateChange
			out.OnCircuitStateChange = func(from, to State) {
				if prev != nil {
					prev(from, to)
				}
				h.OnCircuitStateChange(from, to)
			}
		}
	}
	return out
}
