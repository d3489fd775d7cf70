package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"marketing-dashboard/backend/internal/telemetry"
)

const instrumentationName = "marketing-dashboard.gateway"

// RecordEmitter is the subset of otellog.Logger the adapter needs.
type RecordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewEventEmitter returns an EventEmitter that sends events as OTel log records via the given LoggerProvider.
// If provider is nil, returns a no-op emitter.
func NewEventEmitter(provider *sdklog.LoggerProvider) telemetry.EventEmitter {
	if provider == nil {
		return noopEmitter{}
	}
	return NewEventEmitterWithLogger(provider.Logger(instrumentationName))
}

// NewEventEmitterWithLogger wraps any record emitter; used by tests to capture records.
func NewEventEmitterWithLogger(l RecordEmitter) telemetry.EventEmitter {
	if l == nil {
		return noopEmitter{}
	}
	return &otelEmitter{logger: l}
}

type noopEmitter struct{}

func (noopEmitter) Emit(context.Context, *telemetry.Event) error { return nil }

type otelEmitter struct {
	logger RecordEmitter
}

// Emit converts the event to an OTel log record. Metadata becomes the body; identifiers become attributes.
func (e *otelEmitter) Emit(ctx context.Context, event *telemetry.Event) error {
	if event == nil {
		return nil
	}
	rec := otellog.Record{}
	ts := event.CreatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	rec.SetTimestamp(ts)
	rec.SetSeverity(severityOf(event.Severity))
	if event.Severity != "" {
		rec.SetSeverityText(event.Severity)
	}
	if len(event.Metadata) > 0 {
		rec.SetBody(otellog.BytesValue(event.Metadata))
	}
	for _, kv := range []struct{ key, value string }{
		{"tenant_id", event.TenantID},
		{"user_id", event.UserID},
		{"event_type", event.EventType},
		{"source", event.Source},
	} {
		if kv.value != "" {
			rec.AddAttributes(otellog.String(kv.key, kv.value))
		}
	}
	e.logger.Emit(ctx, rec)
	return nil
}

func severityOf(s string) otellog.Severity {
	switch s {
	case "high", "critical":
		return otellog.SeverityError
	case "medium", "warning":
		return otellog.SeverityWarn
	default:
		return otellog.SeverityInfo
	}
}
