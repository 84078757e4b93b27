package devices

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/pipeline"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/translate"
)

// WithMetadataTags decorates a point transformer so that every produced point
// carries the node's metadata as additional tags. The sensor_node tag always
// wins a key collision with metadata tags.
//
// A failed fetch is not an error: the point goes through with only its
// sensor_node tag, so a missing registry entry can never stall the pipeline.
func WithMetadataTags(
	inner pipeline.MessageTransformer[translate.Point],
	fetcher Fetcher,
	logger zerolog.Logger,
) pipeline.MessageTransformer[translate.Point] {
	log := logger.With().Str("component", "MetadataEnricher").Logger()

	return func(ctx context.Context, msg *pipeline.Message) (*translate.Point, bool, error) {
		point, skip, err := inner(ctx, msg)
		if err != nil || skip {
			return point, skip, err
		}

		node := point.Tags[translate.NodeTag]
		md, fetchErr := fetcher.Fetch(ctx, node)
		if fetchErr != nil {
			log.Debug().Err(fetchErr).Str("node", node).Msg("No metadata for node, forwarding point without enrichment.")
			return point, false, nil
		}

		for k, v := range md.TagMap() {
			if k == translate.NodeTag {
				continue
			}
			point.Tags[k] = v
		}
		return point, false, nil
	}
}
