package mqttsource

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// MQTTClientConfig holds all necessary configuration for the Paho MQTT client:
// connection parameters, security settings, and the subscriptions derived from
// the configured sensor nodes.
type MQTTClientConfig struct {
	// BrokerURL is the full URL of the MQTT broker to connect to.
	// Example: "tls://mqtt.example.com:8883"
	BrokerURL string
	// TopicPrefix is the optional leading path shared by all sensor topics.
	// It participates in subscription topics and is stripped again during
	// translation.
	TopicPrefix string
	// NodeNames are the sensor nodes to subscribe for. One subscription
	// {prefix}/{node}/# is created per node.
	NodeNames []string
	// ClientIDPrefix is a prefix for the MQTT client ID. A unique suffix is
	// appended so concurrent forwarder instances never collide.
	ClientIDPrefix string
	// Username for authenticating with the MQTT broker.
	Username string
	// Password for authenticating with the MQTT broker. PasswordFile, when
	// set, takes precedence and is read at startup.
	Password     string
	PasswordFile string
	// QoS used for all subscriptions.
	QoS byte
	// KeepAlive is the interval at which the client pings the broker.
	KeepAlive time.Duration
	// ConnectTimeout is the timeout for the initial connection attempt.
	ConnectTimeout time.Duration
	// ReconnectWaitMax is the maximum backoff between reconnect attempts.
	ReconnectWaitMax time.Duration
	// CACertFile is an optional path to a CA certificate for verifying the
	// broker's certificate.
	CACertFile string
	// ClientCertFile / ClientKeyFile enable mTLS authentication.
	ClientCertFile string
	ClientKeyFile  string
	// InsecureSkipVerify skips TLS certificate verification. Not for
	// production use.
	InsecureSkipVerify bool
}

// Env variable names for the MQTT operational settings.
const (
	MqttSkipVerify            = "MQTT_INSECURE_SKIP_VERIFY"
	MqttKeepAliveSeconds      = "MQTT_KEEP_ALIVE_SECONDS"
	MqttConnectTimeoutSeconds = "MQTT_CONNECT_TIMEOUT_SECONDS"
)

// LoadMQTTClientConfigWithEnv returns a config populated with defaults,
// overridden by the operational environment variables where set. Broker,
// credentials, and subscriptions must be filled in by the caller.
func LoadMQTTClientConfigWithEnv() *MQTTClientConfig {
	cfg := &MQTTClientConfig{
		QoS:              1,
		KeepAlive:        60 * time.Second,
		ConnectTimeout:   10 * time.Second,
		ReconnectWaitMax: 120 * time.Second,
		ClientIDPrefix:   "mqtt-forwarder-",
	}
	if skipVerify := os.Getenv(MqttSkipVerify); skipVerify == "true" {
		cfg.InsecureSkipVerify = true
	}
	if ka := os.Getenv(MqttKeepAliveSeconds); ka != "" {
		if s, err := time.ParseDuration(ka + "s"); err == nil {
			cfg.KeepAlive = s
		}
	}
	if ct := os.Getenv(MqttConnectTimeoutSeconds); ct != "" {
		if s, err := time.ParseDuration(ct + "s"); err == nil {
			cfg.ConnectTimeout = s
		}
	}
	return cfg
}

// SubscriptionTopics derives the wildcard subscription for each configured
// node, mirroring the shape the translation side expects:
// {prefix}/{node}/#. With no nodes configured a single {prefix}/# (or "#")
// subscription is used.
func (c *MQTTClientConfig) SubscriptionTopics() []string {
	prefix := strings.Trim(c.TopicPrefix, "/")

	if len(c.NodeNames) == 0 {
		if prefix == "" {
			return []string{"#"}
		}
		return []string{prefix + "/#"}
	}

	topics := make([]string, 0, len(c.NodeNames))
	for _, node := range c.NodeNames {
		if prefix == "" {
			topics = append(topics, fmt.Sprintf("%s/#", node))
		} else {
			topics = append(topics, fmt.Sprintf("%s/%s/#", prefix, node))
		}
	}
	return topics
}

// resolvePassword returns the effective broker password, reading
// PasswordFile when configured.
func (c *MQTTClientConfig) resolvePassword() (string, error) {
	if c.PasswordFile == "" {
		return c.Password, nil
	}
	data, err := os.ReadFile(c.PasswordFile)
	if err != nil {
		return "", fmt.Errorf("failed to read MQTT password file %s: %w", c.PasswordFile, err)
	}
	return strings.TrimSpace(string(data)), nil
}
