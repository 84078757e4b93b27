package pipeline

import "time"

// Message is the canonical representation of one inbound broker message.
// The topic is carried first-class because every downstream decision — node,
// measurement, decode policy — derives from it.
type Message struct {
	// ID identifies the message for logging. For MQTT it is the packet ID,
	// which is only unique per in-flight window; treat it as a trace hint,
	// not a key.
	ID string

	// Topic is the full topic the message was published on.
	Topic string

	// Payload is the raw message body, owned by the pipeline after receipt.
	Payload []byte

	// ReceivedAt is when the consumer handed the message to the pipeline.
	ReceivedAt time.Time

	// Ack signals the source that the message is fully handled.
	Ack func()

	// Nack signals the source that handling failed and the message may be
	// redelivered, where the broker supports it.
	Nack func()
}
