package influxstore

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// InfluxConfig holds connection and write settings for the InfluxDB sink.
type InfluxConfig struct {
	// URL of the InfluxDB HTTP endpoint, e.g. "http://localhost:8086".
	URL      string
	Username string
	// Password authenticates the write user. PasswordFile, when set, takes
	// precedence and is read at startup.
	Password     string
	PasswordFile string
	// Database is the target database name.
	Database string
	// RetentionPolicy is optional; empty uses the database default.
	RetentionPolicy string
	// WriteTimeout bounds a single HTTP write request.
	WriteTimeout time.Duration
	// MaxRetries is the number of backoff retries per batch write before the
	// batch is given up and its messages nacked.
	MaxRetries uint64
}

// Env variable names for the InfluxDB sink.
const (
	InfluxURL             = "INFLUX_URL"
	InfluxUser            = "INFLUX_USER"
	InfluxPassword        = "INFLUX_PASSWORD"
	InfluxPasswordFile    = "INFLUX_PASSWORD_FILE"
	InfluxDatabase        = "INFLUX_DB"
	InfluxRetentionPolicy = "INFLUX_RETENTION_POLICY"
)

// LoadInfluxConfigWithEnv loads the sink configuration from environment
// variables, with defaults for the operational settings. URL and database are
// required.
func LoadInfluxConfigWithEnv() (*InfluxConfig, error) {
	cfg := &InfluxConfig{
		URL:             os.Getenv(InfluxURL),
		Username:        os.Getenv(InfluxUser),
		Password:        os.Getenv(InfluxPassword),
		PasswordFile:    os.Getenv(InfluxPasswordFile),
		Database:        os.Getenv(InfluxDatabase),
		RetentionPolicy: os.Getenv(InfluxRetentionPolicy),
		WriteTimeout:    10 * time.Second,
		MaxRetries:      3,
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("%s environment variable not set", InfluxURL)
	}
	if cfg.Database == "" {
		return nil, fmt.Errorf("%s environment variable not set", InfluxDatabase)
	}
	return cfg, nil
}

// resolvePassword returns the effective password, reading PasswordFile when
// configured.
func (c *InfluxConfig) resolvePassword() (string, error) {
	if c.PasswordFile == "" {
		return c.Password, nil
	}
	data, err := os.ReadFile(c.PasswordFile)
	if err != nil {
		return "", fmt.Errorf("failed to read InfluxDB password file %s: %w", c.PasswordFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}
