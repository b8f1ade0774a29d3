package metrics

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Config configures the metrics provider.
type Config struct {
	Enabled          bool
	ExporterEndpoint string
	ExporterProtocol string
	ServiceName      string
	Environment      string
}

// Metrics exposes application-level instruments.
type Metrics struct {
	payments          metric.Int64Counter
	quotes            metric.Int64Counter
	oracleFallbacks   metric.Int64Counter
	bridgeFallbacks   metric.Int64Counter
	verificationPolls metric.Int64Counter
	minutesConsumed   metric.Int64Counter
	subscriptions     metric.Int64Counter
}

// NewProvider configures and registers the meter provider.
func NewProvider(lc fx.Lifecycle, cfg Config, log *zap.Logger) (metric.MeterProvider, error) {
	if !cfg.Enabled {
		provider := noop.NewMeterProvider()
		otel.SetMeterProvider(provider)
		return provider, nil
	}

	exporter, err := newExporter(cfg.ExporterProtocol, cfg.ExporterEndpoint)
	if err != nil {
		return nil, err
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(10*time.Second))
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	otel.SetMeterProvider(provider)

	if lc != nil {
		lc.Append(fx.Hook{
			OnStop: func(ctx context.Context) error {
				if log != nil {
					log.Info("shutting down meter provider")
				}
				return provider.Shutdown(ctx)
			},
		})
	}

	return provider, nil
}

// New configures the domain metrics instruments.
func New(cfg Config, provider metric.MeterProvider) (*Metrics, error) {
	name := strings.TrimSpace(cfg.ServiceName)
	if name == "" {
		name = "solace"
	}
	meter := provider.Meter(name)

	payments, err := meter.Int64Counter("solace_payments_total")
	if err != nil {
		return nil, err
	}
	quotes, err := meter.Int64Counter("solace_quotes_total")
	if err != nil {
		return nil, err
	}
	oracleFallbacks, err := meter.Int64Counter("solace_oracle_fallback_total")
	if err != nil {
		return nil, err
	}
	bridgeFallbacks, err := meter.Int64Counter("solace_bridge_fallback_total")
	if err != nil {
		return nil, err
	}
	verificationPolls, err := meter.Int64Counter("solace_verification_polls_total")
	if err != nil {
		return nil, err
	}
	minutesConsumed, err := meter.Int64Counter("solace_minutes_consumed_total")
	if err != nil {
		return nil, err
	}
	subscriptions, err := meter.Int64Counter("solace_subscriptions_activated_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		payments:          payments,
		quotes:            quotes,
		oracleFallbacks:   oracleFallbacks,
		bridgeFallbacks:   bridgeFallbacks,
		verificationPolls: verificationPolls,
		minutesConsumed:   minutesConsumed,
		subscriptions:     subscriptions,
	}, nil
}

// RecordPayment increments payment counts by chain and terminal status.
func (m *Metrics) RecordPayment(ctx context.Context, chainID, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("chain", strings.TrimSpace(chainID)),
		attribute.String("status", strings.TrimSpace(status)),
	)
	m.payments.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordQuote increments quote counts by chain.
func (m *Metrics) RecordQuote(ctx context.Context, chainID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("chain", strings.TrimSpace(chainID)))
	m.quotes.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordOracleFallback counts prices served from the static fallback table.
func (m *Metrics) RecordOracleFallback(ctx context.Context, symbol string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("symbol", strings.TrimSpace(symbol)))
	m.oracleFallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordBridgeFallback counts settlements that fell back to an unreconciled
// local reference because the bridge was unavailable.
func (m *Metrics) RecordBridgeFallback(ctx context.Context, chainID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("chain", strings.TrimSpace(chainID)))
	m.bridgeFallbacks.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordVerificationPoll counts confirmation polls per chain.
func (m *Metrics) RecordVerificationPoll(ctx context.Context, chainID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("chain", strings.TrimSpace(chainID)))
	m.verificationPolls.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordMinutesConsumed counts session minutes drawn down from entitlements.
func (m *Metrics) RecordMinutesConsumed(ctx context.Context, sessionType string, minutes int64) {
	if m == nil || minutes <= 0 {
		return
	}
	attrs := FilterAttributes(attribute.String("session_type", strings.TrimSpace(sessionType)))
	m.minutesConsumed.Add(ctx, minutes, metric.WithAttributes(attrs...))
}

// RecordSubscriptionActivated counts subscription activations by tier.
func (m *Metrics) RecordSubscriptionActivated(ctx context.Context, tierID string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("tier", strings.TrimSpace(tierID)))
	m.subscriptions.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func newExporter(protocol, endpoint string) (sdkmetric.Exporter, error) {
	protocol = strings.ToLower(strings.TrimSpace(protocol))
	switch protocol {
	case "http", "http/protobuf":
		opts := []otlpmetrichttp.Option{}
		if endpoint != "" {
			opts = append(opts, otlpmetrichttp.WithEndpoint(endpoint))
		}
		return otlpmetrichttp.New(context.Background(), opts...)
	case "grpc", "grpc/protobuf", "":
		opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithInsecure()}
		if endpoint != "" {
			opts = append(opts, otlpmetricgrpc.WithEndpoint(endpoint))
		}
		return otlpmetricgrpc.New(context.Background(), opts...)
	default:
		return nil, fmt.Errorf("unsupported OTLP protocol %q", protocol)
	}
}

// allowedLabelKeys keeps cardinality bounded and user identifiers out of
// metrics.
var allowedLabelKeys = map[attribute.Key]struct{}{
	"chain":        {},
	"status":       {},
	"symbol":       {},
	"session_type": {},
	"tier":         {},
}

// FilterAttributes drops attributes whose keys are not allow-listed.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		if strings.TrimSpace(attr.Value.AsString()) == "" {
			continue
		}
		out = append(out, attr)
	}
	return out
}
