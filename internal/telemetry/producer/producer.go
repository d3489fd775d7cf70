// Package producer ships telemetry events to a message broker (Kafka) for downstream consumers
// such as cmd/worker and notification dispatchers.
package producer

import (
	"context"

	"marketing-dashboard/backend/internal/telemetry"
)

// Producer emits telemetry events. Callers use it best-effort: log and ignore errors.
type Producer interface {
	telemetry.EventEmitter
	// Close releases resources (e.g. Kafka writer). Safe to call if already closed.
	Close() error
}

var _ Producer = (*KafkaProducer)(nil)

// Nop is a Producer that drops every event. Used when no brokers are configured.
type Nop struct{}

// Emit drops the event.
func (Nop) Emit(context.Context, *telemetry.Event) error { return nil }

// Close is a no-op.
func (Nop) Close() error { return nil }
