// Package devices provides optional per-node metadata used to enrich point
// tags beyond the sensor_node identity, with a Redis-backed store and an
// in-memory fallback.
package devices

import (
	"context"
	"fmt"
	"sync"
)

// Metadata describes a sensor node beyond its name. All fields become point
// tags when enrichment is enabled.
type Metadata struct {
	Location string            `json:"location,omitempty"`
	Hardware string            `json:"hardware,omitempty"`
	Tags     map[string]string `json:"tags,omitempty"`
}

// TagMap flattens the metadata into tag key/value pairs.
func (m Metadata) TagMap() map[string]string {
	tags := make(map[string]string, len(m.Tags)+2)
	for k, v := range m.Tags {
		tags[k] = v
	}
	if m.Location != "" {
		tags["location"] = m.Location
	}
	if m.Hardware != "" {
		tags["hardware"] = m.Hardware
	}
	return tags
}

// Fetcher retrieves metadata for a node name.
type Fetcher interface {
	Fetch(ctx context.Context, node string) (Metadata, error)
	Close() error
}

// InMemoryFetcher is a static, map-backed Fetcher. It serves as the source of
// truth in small deployments and as the fallback behind RedisFetcher.
type InMemoryFetcher struct {
	mu    sync.RWMutex
	nodes map[string]Metadata
}

// NewInMemoryFetcher creates a fetcher over a fixed node map. The map is
// copied; later mutation of the argument does not affect the fetcher.
func NewInMemoryFetcher(nodes map[string]Metadata) *InMemoryFetcher {
	copied := make(map[string]Metadata, len(nodes))
	for k, v := range nodes {
		copied[k] = v
	}
	return &InMemoryFetcher{nodes: copied}
}

// Fetch returns the metadata for node, or an error when the node is unknown.
func (f *InMemoryFetcher) Fetch(_ context.Context, node string) (Metadata, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	md, ok := f.nodes[node]
	if !ok {
		return Metadata{}, fmt.Errorf("no metadata for node %q", node)
	}
	return md, nil
}

// Close is a no-op for the in-memory fetcher.
func (f *InMemoryFetcher) Close() error { return nil }
