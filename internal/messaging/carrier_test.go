package messaging

import (
	"testing"

	"github.com/segmentio/kafka-go"
)

func TestHeader(t *testing.T) {
	msg := kafka.Message{Headers: []kafka.Header{
		{Key: HeaderPattern, Value: []byte("createOrder")},
		{Key: HeaderReplyTo, Value: []byte("orders.replies")},
	}}

	if got := Header(msg, HeaderPattern); got != "createOrder" {
		t.Errorf("expected createOrder, got %q", got)
	}
	if got := Header(msg, HeaderCorrelationID); got != "" {
		t.Errorf("expected empty value for absent header, got %q", got)
	}
}

func TestMessageCarrier(t *testing.T) {
	msg := &kafka.Message{}
	carrier := newMessageCarrier(msg)

	carrier.Set("traceparent", "00-abc-def-01")
	if got := carrier.Get("traceparent"); got != "00-abc-def-01" {
		t.Errorf("expected propagated value, got %q", got)
	}

	carrier.Set("traceparent", "00-abc-def-02")
	if len(msg.Headers) != 1 {
		t.Fatalf("expected overwrite, got %d headers", len(msg.Headers))
	}
	if got := carrier.Get("traceparent"); got != "00-abc-def-02" {
		t.Errorf("expected overwritten value, got %q", got)
	}

	keys := carrier.Keys()
	if len(keys) != 1 || keys[0] != "traceparent" {
		t.Errorf("unexpected keys: %v", keys)
	}
}
