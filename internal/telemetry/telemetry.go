// Package telemetry bootstraps OpenTelemetry metrics and traces when an
// OTLP collector endpoint is configured. It is optional: a deployment that
// never sets the endpoint runs with the SDK's no-op providers and pays
// nothing for instrumentation it never exports.
package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// Providers bundles the SDK providers InitProviders installs, so callers
// have a single value to shut down in reverse dependency order.
type Providers struct {
	Meter  *sdkmetric.MeterProvider
	Tracer *sdktrace.TracerProvider
}

// Shutdown flushes and stops every provider. Errors are joined, not
// short-circuited, so a tracer flush failure doesn't hide a meter one.
func (p *Providers) Shutdown(ctx context.Context) error {
	var err error
	if p.Tracer != nil {
		if e := p.Tracer.Shutdown(ctx); e != nil {
			err = errors.Join(err, e)
		}
	}
	if p.Meter != nil {
		if e := p.Meter.Shutdown(ctx); e != nil {
			err = errors.Join(err, e)
		}
	}
	return err
}

// InitProviders bootstraps OTLP/gRPC metric and trace exporters against
// endpoint (e.g. "otel-collector:4317") and installs them as the global
// providers. The caller must defer Shutdown to flush pending telemetry.
func InitProviders(ctx context.Context, serviceName, endpoint string) (*Providers, error) {
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
	)

	mp, err := initMeterProvider(ctx, res, endpoint)
	if err != nil {
		return nil, err
	}

	tp, err := initTracerProvider(ctx, res, endpoint)
	if err != nil {
		_ = mp.Shutdown(ctx)
		return nil, err
	}

	otel.SetMeterProvider(mp)
	otel.SetTracerProvider(tp)

	return &Providers{Meter: mp, Tracer: tp}, nil
}

func initMeterProvider(ctx context.Context, res *resource.Resource, endpoint string) (*sdkmetric.MeterProvider, error) {
	exporter, err := otlpmetricgrpc.New(ctx,
		otlpmetricgrpc.WithEndpoint(endpoint),
		otlpmetricgrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithResource(res),
	), nil
}

func initTracerProvider(ctx context.Context, res *resource.Resource, endpoint string) (*sdktrace.TracerProvider, error) {
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(endpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, err
	}

	return sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
	), nil
}

// Tracer returns a tracer scoped to name from the currently installed
// global TracerProvider (the SDK no-op provider if InitProviders was
// never called).
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}
