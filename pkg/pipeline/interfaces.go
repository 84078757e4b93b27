package pipeline

import "context"

// MessageConsumer is the contract for a message source (the MQTT client, or a
// mock in tests). It delivers messages on a channel and owns its own
// connection lifecycle.
type MessageConsumer interface {
	// Messages returns the read-only channel pipeline workers receive from.
	Messages() <-chan Message
	// Start begins consumption. It must not block for the consumer's lifetime.
	Start(ctx context.Context) error
	// Stop gracefully ceases consumption and closes the Messages channel.
	Stop(ctx context.Context) error
	// Done is closed once the consumer has completely shut down.
	Done() <-chan struct{}
}

// MessageTransformer converts one raw Message into a typed payload T.
// Returning skip=true acks and drops the message without error; this is the
// path for malformed input that should never be redelivered. Returning an
// error nacks the message.
type MessageTransformer[T any] func(ctx context.Context, msg *Message) (payload *T, skip bool, err error)

// ProcessableItem pairs a transformed payload with its original message so a
// batch processor can ack or nack each message on flush.
type ProcessableItem[T any] struct {
	Original Message
	Payload  *T
}

// BatchProcessor hands a flushed batch to the write sink. The implementation
// owns acknowledgement: it must Ack or Nack every item in the batch. An error
// return is logged by the service but does not stop the pipeline.
type BatchProcessor[T any] func(ctx context.Context, batch []ProcessableItem[T]) error
