package pipeline

import (
	"context"

	"github.com/rs/zerolog"
)

// WithPayloadSizeLimit decorates a transformer with a payload size gate.
// Oversized (or undersized) messages are skipped before the inner transformer
// runs, protecting the decoder from pathological inputs such as a multi-MB
// retained message on a sensor topic.
func WithPayloadSizeLimit[T any](
	inner MessageTransformer[T],
	minSize int,
	maxSize int,
	logger zerolog.Logger,
) MessageTransformer[T] {
	return func(ctx context.Context, msg *Message) (*T, bool, error) {
		payloadLen := len(msg.Payload)
		if payloadLen < minSize || payloadLen > maxSize {
			logger.Warn().Str("msg_id", msg.ID).Str("topic", msg.Topic).Int("payload_size", payloadLen).Msg("Rejecting message due to invalid payload size.")
			return nil, true, nil
		}
		return inner(ctx, msg)
	}
}
