package telemetry

import (
	"context"
	"encoding/json"
	"time"
)

// Event types emitted by the gateway.
const (
	EventSecurityViolation = "security_violation"
	EventAnomalyDetected   = "anomaly_detected"
)

// Event is a tenant-scoped telemetry record shipped to OTel logs and Kafka.
type Event struct {
	TenantID  string          `json:"tenantId"`
	UserID    string          `json:"userId,omitempty"`
	EventType string          `json:"eventType"`
	Source    string          `json:"source"`
	Severity  string          `json:"severity,omitempty"`
	Metadata  json.RawMessage `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

// EventEmitter emits telemetry events (e.g. to OTel Logs or Kafka). Best-effort; callers log and ignore errors.
type EventEmitter interface {
	Emit(ctx context.Context, event *Event) error
}

// MultiEmitter sends each event to every non-nil emitter and returns the first error.
type MultiEmitter []EventEmitter

// Emit calls Emit on every emitter; a failing emitter does not stop the others.
func (m MultiEmitter) Emit(ctx context.Context, event *Event) error {
	var first error
	for _, e := range m {
		if e == nil {
			continue
		}
		if err := e.Emit(ctx, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}
