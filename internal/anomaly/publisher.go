package anomaly

import (
	"context"
	"encoding/json"

	"go.uber.org/zap"

	"marketing-dashboard/backend/internal/telemetry"
)

// Counter counts detected anomalies.
type Counter interface {
	AnomalyDetected(kind, severity string)
}

// Publisher ships anomalies as telemetry events. Delivery is asynchronous and best-effort; notification
// dispatch consumes the events elsewhere.
type Publisher struct {
	emitter telemetry.EventEmitter
	counter Counter
	logger  *zap.Logger
}

// NewPublisher returns a Publisher. emitter and counter may be nil.
func NewPublisher(emitter telemetry.EventEmitter, counter Counter, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Publisher{emitter: emitter, counter: counter, logger: logger}
}

// Publish emits one event per anomaly.
func (p *Publisher) Publish(ctx context.Context, anomalies []Anomaly) {
	for i := range anomalies {
		a := anomalies[i]
		if p.counter != nil {
			p.counter.AnomalyDetected(a.Type, string(a.Severity))
		}
		p.logger.Info("anomaly detected",
			zap.String("tenant_id", a.TenantID),
			zap.String("type", a.Type),
			zap.String("severity", string(a.Severity)),
			zap.Float64("percent_change", a.PercentChange),
		)
		meta, err := json.Marshal(a)
		if err != nil {
			p.logger.Warn("anomaly: encode event", zap.Error(err))
			continue
		}
		telemetry.EmitAsync(ctx, p.emitter, &telemetry.Event{
			TenantID:  a.TenantID,
			EventType: telemetry.EventAnomalyDetected,
			Source:    "anomaly_detector",
			Severity:  string(a.Severity),
			Metadata:  meta,
			CreatedAt: a.DetectedAt,
		}, p.logger)
	}
}
