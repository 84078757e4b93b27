package translate

import "time"

// NodeTag is the tag key carrying the sensor node name on every point.
const NodeTag = "sensor_node"

// Point is a fully translated time-series point, ready for the write sink.
// Points are created fresh per message and never mutated after construction.
type Point struct {
	Measurement string
	Tags        map[string]string
	Fields      Fields
	Timestamp   time.Time
}

// NewPoint assembles a Point from resolved identity and decoded fields,
// stamping it with the current time. It performs no validation: upstream
// components guarantee a non-empty measurement and field set.
func NewPoint(node, measurement string, fields Fields) Point {
	return Point{
		Measurement: measurement,
		Tags:        map[string]string{NodeTag: node},
		Fields:      fields,
		Timestamp:   time.Now().UTC(),
	}
}
