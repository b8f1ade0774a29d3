// Package observability wires logging, metrics, and tracing for the process.
package observability

import (
	"go.uber.org/fx"

	"github.com/solacehealth/solace/internal/observability/logger"
	"github.com/solacehealth/solace/internal/observability/metrics"
	"github.com/solacehealth/solace/internal/observability/tracing"
)

var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		newLoggerConfig,
		newMetricsConfig,
		newTracingConfig,
		logger.New,
		metrics.NewProvider,
		metrics.New,
		tracing.NewProvider,
	),
)

func newLoggerConfig(cfg Config) logger.Config {
	return logger.Config{
		ServiceName:         cfg.ServiceName,
		Environment:         cfg.Environment,
		Version:             cfg.Version,
		Level:               cfg.LogLevel,
		Format:              cfg.LogFormat,
		Debug:               cfg.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: true,
	}
}

func newMetricsConfig(cfg Config) metrics.Config {
	return metrics.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
	}
}

func newTracingConfig(cfg Config) tracing.Config {
	return tracing.Config{
		Enabled:          cfg.OtelEnabled,
		ExporterEndpoint: cfg.OtelExporterEndpoint,
		ExporterProtocol: cfg.OtelExporterProtocol,
		ServiceName:      cfg.ServiceName,
		Environment:      cfg.Environment,
		Version:          cfg.Version,
		SamplingRatio:    cfg.OtelSamplingRatio,
	}
}
