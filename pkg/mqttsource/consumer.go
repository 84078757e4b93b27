package mqttsource

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/illmade-knight/go-mqtt-forwarder/pkg/metrics"
	"github.com/illmade-knight/go-mqtt-forwarder/pkg/pipeline"
)

// MqttConsumer implements the pipeline.MessageConsumer interface for an MQTT
// source. It subscribes to one wildcard topic per configured sensor node and
// hands every received message to the pipeline unchanged.
type MqttConsumer struct {
	pahoClient mqtt.Client
	logger     zerolog.Logger
	outputChan chan pipeline.Message
	doneChan   chan struct{}
	mqttCfg    *MQTTClientConfig
	stopOnce   sync.Once
}

// NewMqttConsumer creates a new MqttConsumer. It does not connect until Start
// is called.
func NewMqttConsumer(cfg *MQTTClientConfig, logger zerolog.Logger) (*MqttConsumer, error) {
	if cfg.BrokerURL == "" {
		return nil, fmt.Errorf("MQTT broker URL is required")
	}
	return &MqttConsumer{
		logger:     logger.With().Str("component", "MqttConsumer").Logger(),
		outputChan: make(chan pipeline.Message, 1000),
		doneChan:   make(chan struct{}),
		mqttCfg:    cfg,
	}, nil
}

// Messages returns the read-only channel raw messages arrive on.
func (c *MqttConsumer) Messages() <-chan pipeline.Message {
	return c.outputChan
}

// Start launches the connection logic and begins consuming messages. A failed
// initial connect is logged, not returned: the Paho client keeps retrying in
// the background.
func (c *MqttConsumer) Start(ctx context.Context) error {
	opts, err := c.createMqttOptions()
	if err != nil {
		return err
	}
	opts.SetDefaultPublishHandler(c.handleIncomingMessage(ctx))
	c.pahoClient = mqtt.NewClient(opts)

	c.logger.Info().Str("broker", c.mqttCfg.BrokerURL).Msg("Attempting to connect to MQTT broker...")
	if token := c.pahoClient.Connect(); token.WaitTimeout(c.mqttCfg.ConnectTimeout) && token.Error() != nil {
		c.logger.Error().Err(token.Error()).Msg("Failed to connect to MQTT broker on startup. The Paho client will continue to retry in the background.")
	} else if token.Error() == nil {
		c.logger.Info().Msg("Initial connection to MQTT broker successful.")
	}

	go func() {
		<-ctx.Done()
		c.logger.Info().Msg("Shutdown signal received, ensuring consumer is stopped.")
		_ = c.Stop(context.Background())
	}()

	return nil
}

// Stop gracefully ceases message consumption and closes the output channel.
func (c *MqttConsumer) Stop(_ context.Context) error {
	c.stopOnce.Do(func() {
		c.logger.Info().Msg("Stopping MqttConsumer...")
		if c.pahoClient != nil && c.pahoClient.IsConnected() {
			topics := c.mqttCfg.SubscriptionTopics()
			if token := c.pahoClient.Unsubscribe(topics...); token.WaitTimeout(2*time.Second) && token.Error() != nil {
				c.logger.Warn().Err(token.Error()).Strs("topics", topics).Msg("Failed to unsubscribe from MQTT topics.")
			}
			c.pahoClient.Disconnect(500) // 500ms grace period
			c.logger.Info().Msg("Paho MQTT client disconnected.")
		}
		close(c.outputChan)
		close(c.doneChan)
		c.logger.Info().Msg("MqttConsumer stopped.")
	})
	return nil
}

// Done returns a channel that is closed when the consumer has fully stopped.
func (c *MqttConsumer) Done() <-chan struct{} {
	return c.doneChan
}

// IsConnected returns the connection status of the underlying Paho client.
// Useful for integration tests waiting for the consumer to become ready.
func (c *MqttConsumer) IsConnected() bool {
	return c.pahoClient != nil && c.pahoClient.IsConnected()
}

// GetMessageHandlerForTest returns the internal message handler for unit testing.
func (c *MqttConsumer) GetMessageHandlerForTest(ctx context.Context) mqtt.MessageHandler {
	return c.handleIncomingMessage(ctx)
}

// handleIncomingMessage converts Paho messages into pipeline messages.
func (c *MqttConsumer) handleIncomingMessage(ctx context.Context) mqtt.MessageHandler {
	return func(_ mqtt.Client, msg mqtt.Message) {
		c.logger.Debug().Str("topic", msg.Topic()).Msg("Received MQTT message.")
		metrics.MessagesReceived.WithLabelValues("mqtt").Inc()

		// Paho reuses payload buffers; the pipeline owns its own copy.
		payloadCopy := make([]byte, len(msg.Payload()))
		copy(payloadCopy, msg.Payload())

		// For MQTT with QoS > 0 acknowledgement happens at the protocol
		// level inside the Paho client, so Ack/Nack are no-ops here.
		m := pipeline.Message{
			ID:         fmt.Sprintf("%d", msg.MessageID()),
			Topic:      msg.Topic(),
			Payload:    payloadCopy,
			ReceivedAt: time.Now().UTC(),
			Ack:        func() {},
			Nack:       func() {},
		}

		select {
		case c.outputChan <- m:
		case <-ctx.Done():
			c.logger.Warn().Str("topic", msg.Topic()).Msg("Consumer is shutting down, dropping MQTT message.")
		}
	}
}

// createMqttOptions assembles the Paho client options from the config.
func (c *MqttConsumer) createMqttOptions() (*mqtt.ClientOptions, error) {
	password, err := c.mqttCfg.resolvePassword()
	if err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(c.mqttCfg.BrokerURL)
	opts.SetClientID(fmt.Sprintf("%s%s", c.mqttCfg.ClientIDPrefix, uuid.NewString()[:8]))
	opts.SetUsername(c.mqttCfg.Username)
	opts.SetPassword(password)
	opts.SetKeepAlive(c.mqttCfg.KeepAlive)
	opts.SetConnectTimeout(c.mqttCfg.ConnectTimeout)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(c.mqttCfg.ReconnectWaitMax)
	opts.SetOrderMatters(false)

	opts.SetOnConnectHandler(func(client mqtt.Client) {
		c.logger.Info().Str("broker", c.mqttCfg.BrokerURL).Msg("Paho client connected to MQTT broker.")
		for _, topic := range c.mqttCfg.SubscriptionTopics() {
			token := client.Subscribe(topic, c.mqttCfg.QoS, nil)
			go func(topic string) {
				if token.WaitTimeout(5*time.Second) && token.Error() != nil {
					c.logger.Error().Err(token.Error()).Str("topic", topic).Msg("Failed to subscribe to MQTT topic.")
				} else {
					c.logger.Info().Str("topic", topic).Msg("Subscribed to MQTT topic.")
				}
			}(topic)
		}
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.logger.Error().Err(err).Msg("Paho client lost MQTT connection.")
	})

	if strings.HasPrefix(strings.ToLower(c.mqttCfg.BrokerURL), "tls://") {
		tlsConfig, err := newTLSConfig(c.mqttCfg)
		if err != nil {
			c.logger.Error().Err(err).Msg("Failed to create TLS config, proceeding without it.")
		} else {
			opts.SetTLSConfig(tlsConfig)
			c.logger.Info().Msg("TLS configured for MQTT client.")
		}
	}
	return opts, nil
}

// newTLSConfig is a helper to create a tls.Config.
func newTLSConfig(cfg *MQTTClientConfig) (*tls.Config, error) {
	tlsConfig := &tls.Config{InsecureSkipVerify: cfg.InsecureSkipVerify}
	if cfg.CACertFile != "" {
		caCert, err := os.ReadFile(cfg.CACertFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA cert file %s: %w", cfg.CACertFile, err)
		}
		caCertPool := x509.NewCertPool()
		if !caCertPool.AppendCertsFromPEM(caCert) {
			return nil, fmt.Errorf("failed to append CA cert from %s", cfg.CACertFile)
		}
		tlsConfig.RootCAs = caCertPool
	}
	if cfg.ClientCertFile != "" && cfg.ClientKeyFile != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCertFile, cfg.ClientKeyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load client certificate/key pair: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}
	return tlsConfig, nil
}
