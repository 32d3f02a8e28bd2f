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
	messagesRecorded metric.Int64Counter
	statusUpdates    metric.Int64Counter
	invitesAccepted  metric.Int64Counter
	apiKeyAuth       metric.Int64Counter
	rateLimitDenied  metric.Int64Counter
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
		name = "textlane"
	}
	meter := provider.Meter(name)

	messagesRecorded, err := meter.Int64Counter("textlane_messages_recorded_total")
	if err != nil {
		return nil, err
	}
	statusUpdates, err := meter.Int64Counter("textlane_message_status_updates_total")
	if err != nil {
		return nil, err
	}
	invitesAccepted, err := meter.Int64Counter("textlane_invites_accepted_total")
	if err != nil {
		return nil, err
	}
	apiKeyAuth, err := meter.Int64Counter("textlane_api_key_auth_total")
	if err != nil {
		return nil, err
	}
	rateLimitDenied, err := meter.Int64Counter("textlane_rate_limit_denied_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		messagesRecorded: messagesRecorded,
		statusUpdates:    statusUpdates,
		invitesAccepted:  invitesAccepted,
		apiKeyAuth:       apiKeyAuth,
		rateLimitDenied:  rateLimitDenied,
	}, nil
}

// RecordMessage increments recorded message counts.
func (m *Metrics) RecordMessage(ctx context.Context, service string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("service", strings.TrimSpace(service)))
	m.messagesRecorded.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordStatusUpdate increments delivery-status transition counts.
func (m *Metrics) RecordStatusUpdate(ctx context.Context, status string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("status", strings.TrimSpace(status)))
	m.statusUpdates.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordInviteAccepted increments accepted invite counts.
func (m *Metrics) RecordInviteAccepted(ctx context.Context) {
	if m == nil {
		return
	}
	m.invitesAccepted.Add(ctx, 1)
}

// RecordAPIKeyAuth increments API key authentication attempts by result.
func (m *Metrics) RecordAPIKeyAuth(ctx context.Context, result string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(attribute.String("result", strings.TrimSpace(result)))
	m.apiKeyAuth.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// RecordRateLimitDenied increments rate limit deny counts.
func (m *Metrics) RecordRateLimitDenied(ctx context.Context, orgID, reason string) {
	if m == nil {
		return
	}
	attrs := FilterAttributes(
		attribute.String("org_id", strings.TrimSpace(orgID)),
		attribute.String("reason", strings.TrimSpace(reason)),
	)
	m.rateLimitDenied.Add(ctx, 1, metric.WithAttributes(attrs...))
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

var allowedLabelKeys = map[attribute.Key]struct{}{
	"org_id":  {},
	"service": {},
	"status":  {},
	"result":  {},
	"reason":  {},
}

// FilterAttributes strips disallowed labels to keep metrics low-cardinality.
func FilterAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	filtered := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, ok := allowedLabelKeys[attr.Key]; !ok {
			continue
		}
		filtered = append(filtered, attr)
	}
	return filtered
}
