package influxstore

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/pipeline"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/translate"
)

// NewPointBatchProcessor adapts a PointBatchInserter into the pipeline's
// BatchProcessor contract. The processor owns acknowledgement: a successful
// insert acks every message in the batch, a failed insert nacks them. Either
// way the failure stays batch-local and the pipeline keeps running.
func NewPointBatchProcessor(inserter PointBatchInserter, logger zerolog.Logger) pipeline.BatchProcessor[translate.Point] {
	log := logger.With().Str("component", "PointBatchProcessor").Logger()

	return func(ctx context.Context, batch []pipeline.ProcessableItem[translate.Point]) error {
		if len(batch) == 0 {
			return nil
		}

		points := make([]*translate.Point, len(batch))
		for i, item := range batch {
			points[i] = item.Payload
		}

		if err := inserter.InsertBatch(ctx, points); err != nil {
			log.Error().Err(err).Int("batch_size", len(batch)).Msg("Failed to insert batch, Nacking messages.")
			for _, item := range batch {
				if item.Original.Nack != nil {
					item.Original.Nack()
				}
			}
			return err
		}

		for _, item := range batch {
			if item.Original.Ack != nil {
				item.Original.Ack()
			}
		}
		return nil
	}
}
