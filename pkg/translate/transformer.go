package translate

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/metrics"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/pipeline"
)

// TransformerConfig configures the topic and payload handling of the
// point transformer.
type TransformerConfig struct {
	// TopicPrefix is stripped from incoming topics before a node and
	// measurement are extracted. Optional.
	TopicPrefix string
	// NodeNames is the set of sensor nodes the wider system subscribed for.
	// A resolved node outside this set is logged, not dropped, matching the
	// subscription side which may use broader wildcards. Empty disables the
	// check.
	NodeNames []string
	// StringifyMeasurements lists measurement names whose scalar payloads
	// are always stored as strings, bypassing numeric parsing.
	StringifyMeasurements []string
}

// NewPointTransformer builds the pipeline transformer that is the heart of the
// forwarder: topic -> (node, measurement), payload -> fields, both -> Point.
//
// Malformed topics and undecodable payloads are message-local failures: the
// transformer logs them, bumps a counter, and signals skip so the message is
// acked and dropped. It never returns an error, so a poison message cannot be
// redelivered in a loop.
func NewPointTransformer(cfg TransformerConfig, logger zerolog.Logger) pipeline.MessageTransformer[Point] {
	resolver := NewResolver(cfg.TopicPrefix)

	knownNodes := make(map[string]struct{}, len(cfg.NodeNames))
	for _, n := range cfg.NodeNames {
		knownNodes[n] = struct{}{}
	}
	stringify := make(map[string]struct{}, len(cfg.StringifyMeasurements))
	for _, m := range cfg.StringifyMeasurements {
		stringify[m] = struct{}{}
	}

	log := logger.With().Str("component", "PointTransformer").Logger()

	return func(_ context.Context, msg *pipeline.Message) (*Point, bool, error) {
		node, measurement, err := resolver.Resolve(msg.Topic)
		if err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic).Msg("Could not resolve node and measurement from topic, dropping message.")
			metrics.MessagesDropped.WithLabelValues("topic").Inc()
			return nil, true, nil
		}

		if len(knownNodes) > 0 {
			if _, ok := knownNodes[node]; !ok {
				log.Warn().Str("node", node).Str("topic", msg.Topic).Msg("Resolved node is not in the configured node list.")
			}
		}

		decode := Decode
		if _, ok := stringify[measurement]; ok {
			decode = DecodeVerbatim
		}
		fields, err := decode(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("topic", msg.Topic).Msg("Could not decode payload, dropping message.")
			metrics.MessagesDropped.WithLabelValues("payload").Inc()
			return nil, true, nil
		}

		point := NewPoint(node, measurement, fields)
		return &point, false, nil
	}
}
