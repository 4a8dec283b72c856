package messaging

import "github.com/segmentio/kafka-go"

// Well-known request/reply headers. Requests name the operation in
// HeaderPattern and the topic to answer on in HeaderReplyTo; replies
// echo HeaderCorrelationID so callers can match them up.
const (
	HeaderPattern       = "pattern"
	HeaderCorrelationID = "correlation-id"
	HeaderReplyTo       = "reply-to"
)

// Header returns the value of the named header, or "" when absent.
func Header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

// messageCarrier adapts kafka message headers to the OTel
// TextMapCarrier interface for trace context propagation.
type messageCarrier struct {
	msg *kafka.Message
}

func newMessageCarrier(msg *kafka.Message) *messageCarrier {
	return &messageCarrier{msg: msg}
}

func (c *messageCarrier) Get(key string) string {
	return Header(*c.msg, key)
}

func (c *messageCarrier) Set(key, value string) {
	for i, h := range c.msg.Headers {
		if h.Key == key {
			c.msg.Headers[i].Value = []byte(value)
			return
		}
	}
	c.msg.Headers = append(c.msg.Headers, kafka.Header{
		Key:   key,
		Value: []byte(value),
	})
}

func (c *messageCarrier) Keys() []string {
	keys := make([]string, len(c.msg.Headers))
	for i, h := range c.msg.Headers {
		keys[i] = h.Key
	}
	return keys
}
