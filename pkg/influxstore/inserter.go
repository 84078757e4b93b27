package influxstore

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	client "github.com/influxdata/influxdb1-client/v2"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/metrics"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/translate"
)

// PointBatchInserter is the contract for writing a batch of translated points
// to a time-series store. It abstracts the concrete database so the batch
// writer (and tests) never touch a real connection.
type PointBatchInserter interface {
	InsertBatch(ctx context.Context, points []*translate.Point) error
	Close() error
}

// InfluxInserter implements PointBatchInserter against an InfluxDB 1.x HTTP
// endpoint. Transient write failures are retried with exponential backoff
// before the batch is reported as failed.
type InfluxInserter struct {
	client     client.Client
	cfg        *InfluxConfig
	logger     zerolog.Logger
	maxRetries uint64
}

// NewInfluxInserter creates the HTTP client and pings the server once to
// surface obvious misconfiguration early. A failed ping is logged, not fatal:
// the database may simply not be up yet.
func NewInfluxInserter(cfg *InfluxConfig, logger zerolog.Logger) (*InfluxInserter, error) {
	password, err := cfg.resolvePassword()
	if err != nil {
		return nil, err
	}

	c, err := client.NewHTTPClient(client.HTTPConfig{
		Addr:     cfg.URL,
		Username: cfg.Username,
		Password: password,
		Timeout:  cfg.WriteTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create InfluxDB client: %w", err)
	}

	log := logger.With().Str("component", "InfluxInserter").Str("database", cfg.Database).Logger()

	if _, _, err := c.Ping(5 * time.Second); err != nil {
		log.Warn().Err(err).Msg("InfluxDB is not reachable yet, writes will be retried.")
	} else {
		log.Info().Str("url", cfg.URL).Msg("Connected to InfluxDB.")
	}

	return &InfluxInserter{
		client:     c,
		cfg:        cfg,
		logger:     log,
		maxRetries: cfg.MaxRetries,
	}, nil
}

// InsertBatch converts the points into one InfluxDB batch and writes it,
// retrying transient failures. An error return means the retries were
// exhausted; the caller decides what happens to the originating messages.
func (i *InfluxInserter) InsertBatch(ctx context.Context, points []*translate.Point) error {
	if len(points) == 0 {
		return nil
	}

	bp, err := client.NewBatchPoints(client.BatchPointsConfig{
		Database:        i.cfg.Database,
		RetentionPolicy: i.cfg.RetentionPolicy,
		Precision:       "ns",
	})
	if err != nil {
		return fmt.Errorf("failed to create batch points: %w", err)
	}

	for _, p := range points {
		pt, err := client.NewPoint(p.Measurement, p.Tags, map[string]interface{}(p.Fields), p.Timestamp)
		if err != nil {
			// A point the client cannot encode is dropped individually; the
			// rest of the batch still goes out.
			i.logger.Error().Err(err).Str("measurement", p.Measurement).Msg("Skipping unencodable point.")
			continue
		}
		bp.AddPoint(pt)
	}

	if len(bp.Points()) == 0 {
		return nil
	}

	writeOp := func() error {
		return i.client.Write(bp)
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), i.maxRetries), ctx)

	if err := backoff.Retry(writeOp, policy); err != nil {
		metrics.WriteErrors.Inc()
		i.logger.Error().Err(err).Int("batch_size", len(bp.Points())).Msg("Failed to write batch to InfluxDB.")
		return fmt.Errorf("influxdb write failed: %w", err)
	}

	metrics.PointsWritten.Add(float64(len(bp.Points())))
	i.logger.Debug().Int("batch_size", len(bp.Points())).Msg("Wrote batch to InfluxDB.")
	return nil
}

// Close releases the underlying HTTP client.
func (i *InfluxInserter) Close() error {
	i.logger.Info().Msg("Closing InfluxDB client.")
	return i.client.Close()
}
