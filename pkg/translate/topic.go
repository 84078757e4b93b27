package translate

import "strings"

// Resolver derives a (node name, measurement name) pair from a slash-delimited
// MQTT topic. It is a pure value: construct once, share freely across workers.
type Resolver struct {
	prefix []string
}

// NewResolver creates a Resolver. The prefix is optional; when set, topics
// must start with it and it is stripped before interpretation. Leading,
// trailing, and duplicate slashes are insignificant, so "/home", "home" and
// "home/" are equivalent. A prefix may span several segments ("site/floor1").
func NewResolver(prefix string) Resolver {
	return Resolver{prefix: splitTopic(prefix)}
}

// Resolve splits the topic into segments, strips the configured prefix, and
// returns the first remaining segment as the node name and the following
// segment as the measurement name. Segments beyond the measurement are
// ignored; topics deeper than {prefix}/{node}/{measurement} keep only the
// measurement segment immediately after the node.
//
// Returns ErrPrefixMismatch when a prefix is configured but absent, and
// ErrMalformedTopic when fewer than two segments remain.
func (r Resolver) Resolve(topic string) (node, measurement string, err error) {
	segments := splitTopic(topic)

	if len(r.prefix) > 0 {
		if len(segments) < len(r.prefix) {
			return "", "", ErrPrefixMismatch
		}
		for i, p := range r.prefix {
			if segments[i] != p {
				return "", "", ErrPrefixMismatch
			}
		}
		segments = segments[len(r.prefix):]
	}

	if len(segments) < 2 {
		return "", "", ErrMalformedTopic
	}
	return segments[0], segments[1], nil
}

// splitTopic splits on "/" and discards the empty segments produced by
// leading, trailing, or duplicated separators.
func splitTopic(topic string) []string {
	parts := strings.Split(topic, "/")
	segments := make([]string, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			segments = append(segments, p)
		}
	}
	return segments
}
