package devices

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// RedisConfig holds the configuration for the Redis metadata store.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	// KeyPrefix is prepended to the node name to form the Redis key.
	KeyPrefix string
	// CacheTTL is applied to values written back after a fallback hit.
	CacheTTL time.Duration
}

// RedisFetcher looks node metadata up in Redis, optionally falling back to
// another Fetcher on a miss and writing the result back in the background.
type RedisFetcher struct {
	redisClient *redis.Client
	logger      zerolog.Logger
	keyPrefix   string
	ttl         time.Duration
	fallback    Fetcher
}

// NewRedisFetcher creates and connects a RedisFetcher, pinging the server to
// ensure connectivity before returning. The fallback may be nil.
func NewRedisFetcher(ctx context.Context, cfg *RedisConfig, logger zerolog.Logger, fallback Fetcher) (*RedisFetcher, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	keyPrefix := cfg.KeyPrefix
	if keyPrefix == "" {
		keyPrefix = "device:"
	}

	log := logger.With().Str("component", "RedisFetcher").Logger()
	log.Info().Str("redis_address", cfg.Addr).Msg("Successfully connected to Redis.")

	return &RedisFetcher{
		redisClient: rdb,
		logger:      log,
		keyPrefix:   keyPrefix,
		ttl:         cfg.CacheTTL,
		fallback:    fallback,
	}, nil
}

// Fetch retrieves metadata for a node. It first checks Redis; on a cache miss
// with a configured fallback it fetches from the fallback, writes the result
// back to Redis in the background, and returns the value.
func (f *RedisFetcher) Fetch(ctx context.Context, node string) (Metadata, error) {
	key := f.keyPrefix + node

	cached, err := f.redisClient.Get(ctx, key).Result()
	if err == nil {
		var md Metadata
		if jsonErr := json.Unmarshal([]byte(cached), &md); jsonErr != nil {
			f.logger.Error().Err(jsonErr).Str("key", key).Msg("Failed to unmarshal cached metadata.")
			return Metadata{}, fmt.Errorf("failed to unmarshal metadata: %w", jsonErr)
		}
		return md, nil
	}

	// redis.Nil is a normal miss; anything else is a genuine problem.
	if !errors.Is(err, redis.Nil) {
		f.logger.Error().Err(err).Str("key", key).Msg("Unexpected Redis error during fetch.")
		return Metadata{}, err
	}

	if f.fallback == nil {
		return Metadata{}, fmt.Errorf("no metadata for node %q in redis and no fallback configured", node)
	}

	md, err := f.fallback.Fetch(ctx, node)
	if err != nil {
		return Metadata{}, err
	}

	// Write back off the request path.
	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if writeErr := f.write(writeCtx, key, md); writeErr != nil {
			f.logger.Error().Err(writeErr).Str("key", key).Msg("Failed to write metadata back to Redis.")
		}
	}()

	return md, nil
}

func (f *RedisFetcher) write(ctx context.Context, key string, md Metadata) error {
	data, err := json.Marshal(md)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := f.redisClient.Set(ctx, key, data, f.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set metadata in redis: %w", err)
	}
	return nil
}

// Close closes the Redis client connection.
func (f *RedisFetcher) Close() error {
	if f.redisClient != nil {
		f.logger.Info().Msg("Closing Redis client connection...")
		return f.redisClient.Close()
	}
	return nil
}
