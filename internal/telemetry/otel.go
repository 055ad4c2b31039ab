package telemetry

import (
	"context"
	"errors"

	"github.com/joeshaw/envdecode"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// InstrumentationName - имя трейсера и метра планировщика.
const InstrumentationName = "example.com/ai-meal-planner/backend/planner"

// Config читается из переменных окружения. Адрес и заголовки экспортера
// SDK берет сам из OTEL_EXPORTER_OTLP_*.
type Config struct {
	Enabled        bool   `env:"OTEL_ENABLED,default=false"`
	Endpoint       string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	ServiceName    string `env:"OTEL_SERVICE_NAME,default=ai-meal-planner"`
	ServiceVersion string `env:"OTEL_SERVICE_VERSION,default=0.1.0"`
	DeployEnv      string `env:"OTEL_DEPLOY_ENV,default=development"`
}

type Shutdown func(ctx context.Context) error

// LoadConfig декодирует конфиг телеметрии.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, err
	}
	return cfg, nil
}

// Init поднимает OTLP-экспортеры и регистрирует глобальные провайдеры.
// Если телеметрия выключена, глобальные провайдеры остаются no-op.
func Init(ctx context.Context, cfg Config) (Shutdown, error) {
	if !cfg.Enabled {
		return func(context.Context) error { return nil }, nil
	}

	res, err := resource.New(ctx, resource.WithAttributes(
		attribute.String("service.name", cfg.ServiceName),
		attribute.String("service.version", cfg.ServiceVersion),
		attribute.String("deployment.environment", cfg.DeployEnv),
	))
	if err != nil {
		return nil, err
	}

	traceExporter, err := otlptrace.New(ctx, otlptracegrpc.NewClient())
	if err != nil {
		return nil, err
	}

	metricExporter, err := otlpmetricgrpc.New(ctx)
	if err != nil {
		return nil, errors.Join(err, traceExporter.Shutdown(ctx))
	}

	tracerProvider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExporter),
		sdktrace.WithResource(res),
	)
	meterProvider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(metricExporter)),
		sdkmetric.WithResource(res),
	)

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	return func(ctx context.Context) error {
		err := errors.Join(
			tracerProvider.Shutdown(ctx),
			meterProvider.Shutdown(ctx),
		)
		if err != nil && err.Error() == "gRPC exporter is shutdown" {
			return nil
		}
		return err
	}, nil
}
