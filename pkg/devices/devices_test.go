package devices_test

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/devices"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/pipeline"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/translate"
)

func TestMetadata_TagMap(t *testing.T) {
	md := devices.Metadata{
		Location: "attic",
		Hardware: "esp32-rev2",
		Tags:     map[string]string{"owner": "facilities"},
	}

	assert.Equal(t, map[string]string{
		"location": "attic",
		"hardware": "esp32-rev2",
		"owner":    "facilities",
	}, md.TagMap())

	assert.Empty(t, devices.Metadata{}.TagMap())
}

func TestInMemoryFetcher(t *testing.T) {
	fetcher := devices.NewInMemoryFetcher(map[string]devices.Metadata{
		"weather": {Location: "roof"},
	})
	t.Cleanup(func() { _ = fetcher.Close() })

	md, err := fetcher.Fetch(context.Background(), "weather")
	require.NoError(t, err)
	assert.Equal(t, "roof", md.Location)

	_, err = fetcher.Fetch(context.Background(), "unknown")
	require.Error(t, err)
}

// failingFetcher always errors, standing in for an empty registry.
type failingFetcher struct{}

func (failingFetcher) Fetch(context.Context, string) (devices.Metadata, error) {
	return devices.Metadata{}, errors.New("registry unavailable")
}
func (failingFetcher) Close() error { return nil }

func pointTransformer() pipeline.MessageTransformer[translate.Point] {
	return translate.NewPointTransformer(translate.TransformerConfig{}, zerolog.Nop())
}

func TestWithMetadataTags_EnrichesPoint(t *testing.T) {
	fetcher := devices.NewInMemoryFetcher(map[string]devices.Metadata{
		"weather": {Location: "roof", Hardware: "esp32-rev2"},
	})
	transformer := devices.WithMetadataTags(pointTransformer(), fetcher, zerolog.Nop())

	point, skip, err := transformer(context.Background(), &pipeline.Message{
		Topic:   "/weather/temp",
		Payload: []byte("18.80"),
	})
	require.NoError(t, err)
	require.False(t, skip)

	assert.Equal(t, map[string]string{
		"sensor_node": "weather",
		"location":    "roof",
		"hardware":    "esp32-rev2",
	}, point.Tags)
	assert.Equal(t, translate.Fields{"value": 18.8}, point.Fields)
}

func TestWithMetadataTags_FetchFailureForwardsBarePoint(t *testing.T) {
	transformer := devices.WithMetadataTags(pointTransformer(), failingFetcher{}, zerolog.Nop())

	point, skip, err := transformer(context.Background(), &pipeline.Message{
		Topic:   "/weather/temp",
		Payload: []byte("18.80"),
	})
	require.NoError(t, err)
	require.False(t, skip)
	assert.Equal(t, map[string]string{"sensor_node": "weather"}, point.Tags)
}

func TestWithMetadataTags_SensorNodeTagWins(t *testing.T) {
	fetcher := devices.NewInMemoryFetcher(map[string]devices.Metadata{
		"weather": {Tags: map[string]string{"sensor_node": "impostor"}},
	})
	transformer := devices.WithMetadataTags(pointTransformer(), fetcher, zerolog.Nop())

	point, _, err := transformer(context.Background(), &pipeline.Message{
		Topic:   "/weather/temp",
		Payload: []byte("1"),
	})
	require.NoError(t, err)
	assert.Equal(t, "weather", point.Tags["sensor_node"])
}

func TestWithMetadataTags_SkipPassesThrough(t *testing.T) {
	fetcher := devices.NewInMemoryFetcher(nil)
	transformer := devices.WithMetadataTags(pointTransformer(), fetcher, zerolog.Nop())

	point, skip, err := transformer(context.Background(), &pipeline.Message{
		Topic:   "/weather",
		Payload: []byte("1"),
	})
	require.NoError(t, err)
	assert.True(t, skip)
	assert.Nil(t, point)
}
