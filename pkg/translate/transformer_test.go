package translate_test

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/pipeline"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/translate"
)

func newMessage(topic, payload string) *pipeline.Message {
	return &pipeline.Message{
		ID:         "test-msg",
		Topic:      topic,
		Payload:    []byte(payload),
		ReceivedAt: time.Now().UTC(),
	}
}

func TestPointTransformer_Scenarios(t *testing.T) {
	testCases := []struct {
		name       string
		cfg        translate.TransformerConfig
		topic      string
		payload    string
		wantSkip   bool
		wantPoint  translate.Point
		wantFields translate.Fields
	}{
		{
			name:       "numeric scalar no prefix",
			topic:      "/weather/uv",
			payload:    "0",
			wantFields: translate.Fields{"value": 0.0},
			wantPoint:  translate.Point{Measurement: "uv", Tags: map[string]string{"sensor_node": "weather"}},
		},
		{
			name:       "numeric scalar with prefix",
			cfg:        translate.TransformerConfig{TopicPrefix: "home"},
			topic:      "/home/weather/temp",
			payload:    "18.80",
			wantFields: translate.Fields{"value": 18.8},
			wantPoint:  translate.Point{Measurement: "temp", Tags: map[string]string{"sensor_node": "weather"}},
		},
		{
			name:    "structured payload",
			topic:   "/heaterroom/boiler-led",
			payload: `{"valid":true,"dark_duty_cycle":0,"color":"amber"}`,
			wantFields: translate.Fields{
				"valid":           1.0,
				"dark_duty_cycle": 0.0,
				"color":           "amber",
			},
			wantPoint: translate.Point{Measurement: "boiler-led", Tags: map[string]string{"sensor_node": "heaterroom"}},
		},
		{
			name:     "malformed single segment topic is dropped",
			topic:    "/weather",
			payload:  "1",
			wantSkip: true,
		},
		{
			name:     "prefix mismatch is dropped",
			cfg:      translate.TransformerConfig{TopicPrefix: "home"},
			topic:    "/office/weather/temp",
			payload:  "1",
			wantSkip: true,
		},
		{
			name:     "empty payload is dropped",
			topic:    "/weather/uv",
			payload:  "",
			wantSkip: true,
		},
		{
			name:       "stringified measurement keeps scalar as string",
			cfg:        translate.TransformerConfig{StringifyMeasurements: []string{"firmware"}},
			topic:      "/weather/firmware",
			payload:    "1.2",
			wantFields: translate.Fields{"value": "1.2"},
			wantPoint:  translate.Point{Measurement: "firmware", Tags: map[string]string{"sensor_node": "weather"}},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			transformer := translate.NewPointTransformer(tc.cfg, zerolog.Nop())

			point, skip, err := transformer(context.Background(), newMessage(tc.topic, tc.payload))
			require.NoError(t, err, "translation failures must never surface as pipeline errors")

			if tc.wantSkip {
				assert.True(t, skip)
				assert.Nil(t, point)
				return
			}

			require.False(t, skip)
			require.NotNil(t, point)
			assert.Equal(t, tc.wantPoint.Measurement, point.Measurement)
			assert.Equal(t, tc.wantPoint.Tags, point.Tags)
			assert.Equal(t, tc.wantFields, point.Fields)
			assert.WithinDuration(t, time.Now().UTC(), point.Timestamp, time.Second)
		})
	}
}

// Translating the same message twice must yield identical points except for
// the timestamp.
func TestPointTransformer_Idempotence(t *testing.T) {
	transformer := translate.NewPointTransformer(translate.TransformerConfig{}, zerolog.Nop())

	first, skip, err := transformer(context.Background(), newMessage("/weather/temp", "18.80"))
	require.NoError(t, err)
	require.False(t, skip)

	second, skip, err := transformer(context.Background(), newMessage("/weather/temp", "18.80"))
	require.NoError(t, err)
	require.False(t, skip)

	assert.Equal(t, first.Measurement, second.Measurement)
	assert.Equal(t, first.Tags, second.Tags)
	assert.Equal(t, first.Fields, second.Fields)
}

// An unknown node is logged but the point still goes through; the allowlist
// only governs what the consumer subscribes to.
func TestPointTransformer_UnknownNodeIsForwarded(t *testing.T) {
	transformer := translate.NewPointTransformer(translate.TransformerConfig{
		NodeNames: []string{"weather"},
	}, zerolog.Nop())

	point, skip, err := transformer(context.Background(), newMessage("/garage/door", "1"))
	require.NoError(t, err)
	require.False(t, skip)
	assert.Equal(t, "garage", point.Tags["sensor_node"])
}
