package producer

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/segmentio/kafka-go"

	"marketing-dashboard/backend/internal/telemetry"
)

type captureWriter struct {
	msgs   []kafka.Message
	closed bool
}

func (w *captureWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *captureWriter) Close() error {
	w.closed = true
	return nil
}

func TestNewKafkaProducer_NoBrokers(t *testing.T) {
	if p := NewKafkaProducer(nil, "topic"); p != nil {
		t.Error("NewKafkaProducer without brokers should return nil")
	}
	var p *KafkaProducer
	if err := p.Emit(context.Background(), &telemetry.Event{}); err != nil {
		t.Errorf("nil producer Emit: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Errorf("nil producer Close: %v", err)
	}
}

func TestKafkaProducer_EmitKeysByTenant(t *testing.T) {
	w := &captureWriter{}
	p := NewKafkaProducerWithWriter(w, "dashboard-anomalies")

	err := p.Emit(context.Background(), &telemetry.Event{
		TenantID:  "t-1",
		EventType: telemetry.EventAnomalyDetected,
		Source:    "anomaly",
	})
	if err != nil {
		t.Fatalf("Emit: %v", err)
	}
	if len(w.msgs) != 1 {
		t.Fatalf("messages = %d, want 1", len(w.msgs))
	}
	msg := w.msgs[0]
	if string(msg.Key) != "t-1" {
		t.Errorf("key = %q, want %q", msg.Key, "t-1")
	}
	var decoded telemetry.Event
	if err := json.Unmarshal(msg.Value, &decoded); err != nil {
		t.Fatalf("value is not JSON: %v", err)
	}
	if decoded.EventType != telemetry.EventAnomalyDetected {
		t.Errorf("eventType = %q", decoded.EventType)
	}

	if err := p.Close(); err != nil || !w.closed {
		t.Errorf("Close: err=%v closed=%v", err, w.closed)
	}
}
