package translate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/translate"
)

func TestResolver_Resolve(t *testing.T) {
	testCases := []struct {
		name            string
		prefix          string
		topic           string
		wantNode        string
		wantMeasurement string
		wantErr         error
	}{
		{
			name:            "simple two segments",
			topic:           "/weather/uv",
			wantNode:        "weather",
			wantMeasurement: "uv",
		},
		{
			name:            "no leading slash",
			topic:           "weather/uv",
			wantNode:        "weather",
			wantMeasurement: "uv",
		},
		{
			name:            "trailing slash",
			topic:           "/weather/uv/",
			wantNode:        "weather",
			wantMeasurement: "uv",
		},
		{
			name:            "duplicate separators",
			topic:           "//weather//uv",
			wantNode:        "weather",
			wantMeasurement: "uv",
		},
		{
			name:            "prefix stripped",
			prefix:          "home",
			topic:           "/home/weather/temp",
			wantNode:        "weather",
			wantMeasurement: "temp",
		},
		{
			name:            "prefix with slashes in config",
			prefix:          "/home/",
			topic:           "/home/weather/temp",
			wantNode:        "weather",
			wantMeasurement: "temp",
		},
		{
			name:            "multi segment prefix",
			prefix:          "site/floor1",
			topic:           "/site/floor1/heaterroom/boiler-led",
			wantNode:        "heaterroom",
			wantMeasurement: "boiler-led",
		},
		{
			name:            "deeper nesting ignored beyond measurement",
			topic:           "/weather/outdoor/temp/celsius",
			wantNode:        "weather",
			wantMeasurement: "outdoor",
		},
		{
			name:    "prefix mismatch",
			prefix:  "home",
			topic:   "/office/weather/temp",
			wantErr: translate.ErrPrefixMismatch,
		},
		{
			name:    "prefix longer than topic",
			prefix:  "site/floor1",
			topic:   "/site",
			wantErr: translate.ErrPrefixMismatch,
		},
		{
			name:    "single segment is malformed",
			topic:   "/weather",
			wantErr: translate.ErrMalformedTopic,
		},
		{
			name:    "only prefix remains is malformed",
			prefix:  "home",
			topic:   "/home/weather",
			wantErr: translate.ErrMalformedTopic,
		},
		{
			name:    "empty topic is malformed",
			topic:   "",
			wantErr: translate.ErrMalformedTopic,
		},
		{
			name:    "slashes only is malformed",
			topic:   "///",
			wantErr: translate.ErrMalformedTopic,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			resolver := translate.NewResolver(tc.prefix)
			node, measurement, err := resolver.Resolve(tc.topic)

			if tc.wantErr != nil {
				require.ErrorIs(t, err, tc.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantNode, node)
			assert.Equal(t, tc.wantMeasurement, measurement)
		})
	}
}

// Stripping a matching prefix must be equivalent to resolving the topic with
// the prefix segment removed and no prefix configured.
func TestResolver_PrefixStripEquivalence(t *testing.T) {
	topics := []string{
		"/home/weather/temp",
		"home/heaterroom/boiler-led",
		"/home/garden/soil/moisture",
	}

	withPrefix := translate.NewResolver("home")
	noPrefix := translate.NewResolver("")

	for _, topic := range topics {
		nodeA, measurementA, errA := withPrefix.Resolve(topic)
		require.NoError(t, errA, topic)

		stripped := topic[len("/home"):]
		if topic[0] != '/' {
			stripped = topic[len("home"):]
		}
		nodeB, measurementB, errB := noPrefix.Resolve(stripped)
		require.NoError(t, errB, topic)

		assert.Equal(t, nodeB, nodeA, topic)
		assert.Equal(t, measurementB, measurementA, topic)
	}
}
