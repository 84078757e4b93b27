package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/devices"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/influxstore"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/metrics"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/mqttsource"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/pipeline"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/translate"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "forwarder",
	Short: "Forwards IoT sensor readings from MQTT to InfluxDB",
	Long: `forwarder subscribes to sensor topics on an MQTT broker, translates
each message into a time-series point, and writes the points to InfluxDB in
batches. Topics are interpreted as {prefix}/{node}/{measurement}.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return run(cmd.Context())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is $HOME/.config/forwarder.yaml)")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")

	flags.String("mqtt-broker-url", "tcp://localhost:1883", "MQTT broker URL")
	flags.String("mqtt-user", "", "MQTT username")
	flags.String("mqtt-pass-file", "", "file containing the MQTT password")
	flags.String("mqtt-client-id-prefix", "mqtt-forwarder-", "MQTT client ID prefix")
	flags.String("mqtt-topic-prefix", "", "topic prefix shared by all sensor topics")
	flags.StringSlice("node-name", nil, "sensor node name to subscribe for (repeatable)")
	flags.StringSlice("stringify-values-for-measurements", nil, "measurement names whose scalar payloads are stored as strings")

	flags.String("influx-url", "http://localhost:8086", "InfluxDB URL")
	flags.String("influx-user", "", "InfluxDB username")
	flags.String("influx-pass-file", "", "file containing the InfluxDB password")
	flags.String("influx-db", "", "InfluxDB database name")
	flags.String("influx-retention-policy", "", "InfluxDB retention policy (empty uses the database default)")

	flags.Int("workers", 4, "number of translation workers")
	flags.Int("batch-size", 50, "points per write batch")
	flags.Duration("flush-interval", 5*time.Second, "maximum age of a partial batch")
	flags.Int("max-payload-bytes", 64*1024, "messages with larger payloads are dropped")

	flags.String("metrics-addr", ":9100", "address of the metrics/health HTTP server")

	flags.String("redis-addr", "", "Redis address for device metadata enrichment (empty disables enrichment)")
	flags.String("redis-password", "", "Redis password")
	flags.Int("redis-db", 0, "Redis database number")

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("FORWARDER")
	viper.AutomaticEnv()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home + "/.config")
		}
		viper.SetConfigName("forwarder")
		viper.SetConfigType("yaml")
	}
	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func run(ctx context.Context) error {
	logger := newLogger(viper.GetString("log-level"))

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.StartServer(ctx, metrics.ServerConfig{Addr: viper.GetString("metrics-addr")}, logger)

	// Source.
	mqttCfg := mqttsource.LoadMQTTClientConfigWithEnv()
	mqttCfg.BrokerURL = viper.GetString("mqtt-broker-url")
	mqttCfg.Username = viper.GetString("mqtt-user")
	mqttCfg.PasswordFile = viper.GetString("mqtt-pass-file")
	mqttCfg.ClientIDPrefix = viper.GetString("mqtt-client-id-prefix")
	mqttCfg.TopicPrefix = viper.GetString("mqtt-topic-prefix")
	mqttCfg.NodeNames = viper.GetStringSlice("node-name")

	consumer, err := mqttsource.NewMqttConsumer(mqttCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create MQTT consumer: %w", err)
	}

	// Translation.
	transformer := translate.NewPointTransformer(translate.TransformerConfig{
		TopicPrefix:           mqttCfg.TopicPrefix,
		NodeNames:             mqttCfg.NodeNames,
		StringifyMeasurements: viper.GetStringSlice("stringify-values-for-measurements"),
	}, logger)
	transformer = pipeline.WithPayloadSizeLimit(transformer, 1, viper.GetInt("max-payload-bytes"), logger)

	if redisAddr := viper.GetString("redis-addr"); redisAddr != "" {
		fetcher, err := devices.NewRedisFetcher(ctx, &devices.RedisConfig{
			Addr:     redisAddr,
			Password: viper.GetString("redis-password"),
			DB:       viper.GetInt("redis-db"),
			CacheTTL: time.Hour,
		}, logger, nil)
		if err != nil {
			return fmt.Errorf("failed to connect metadata store: %w", err)
		}
		defer func() { _ = fetcher.Close() }()
		transformer = devices.WithMetadataTags(transformer, fetcher, logger)
	}

	// Sink.
	influxCfg := &influxstore.InfluxConfig{
		URL:             viper.GetString("influx-url"),
		Username:        viper.GetString("influx-user"),
		PasswordFile:    viper.GetString("influx-pass-file"),
		Database:        viper.GetString("influx-db"),
		RetentionPolicy: viper.GetString("influx-retention-policy"),
		WriteTimeout:    10 * time.Second,
		MaxRetries:      3,
	}
	if influxCfg.Database == "" {
		return fmt.Errorf("--influx-db is required")
	}
	inserter, err := influxstore.NewInfluxInserter(influxCfg, logger)
	if err != nil {
		return fmt.Errorf("failed to create InfluxDB inserter: %w", err)
	}
	defer func() { _ = inserter.Close() }()

	service, err := pipeline.NewForwardingService(
		pipeline.ForwardingServiceConfig{
			NumWorkers:    viper.GetInt("workers"),
			BatchSize:     viper.GetInt("batch-size"),
			FlushInterval: viper.GetDuration("flush-interval"),
		},
		consumer,
		transformer,
		influxstore.NewPointBatchProcessor(inserter, logger),
		logger,
	)
	if err != nil {
		return fmt.Errorf("failed to create forwarding service: %w", err)
	}

	if err := service.Start(ctx); err != nil {
		return fmt.Errorf("failed to start forwarding service: %w", err)
	}
	logger.Info().Msg("Forwarder running. Press Ctrl+C to stop.")

	<-ctx.Done()

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return service.Stop(stopCtx)
}

func newLogger(level string) zerolog.Logger {
	logLevel, err := zerolog.ParseLevel(level)
	if err != nil {
		logLevel = zerolog.InfoLevel
	}
	return zerolog.New(os.Stdout).Level(logLevel).With().Timestamp().Logger()
}
