// Package mqtt mirrors device properties to an MQTT broker.
package mqtt

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/strefethen/soundtouch-hub-go/internal/config"
	"github.com/strefethen/soundtouch-hub-go/internal/soundtouch"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	disconnectQuiesce     = 250 // milliseconds
	maxQoS                = 2
)

// Client is the part of the paho client the publisher needs.
type Client interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) pahomqtt.Token
}

// Publisher publishes every property update as a retained message on
// <prefix>/<device id>/<property>. It implements soundtouch.Listener.
type Publisher struct {
	client  Client
	prefix  string
	qos     byte
	timeout time.Duration
	logger  zerolog.Logger

	disconnect func()
}

// NewPublisher wraps an already connected client.
func NewPublisher(client Client, prefix string, qos int, logger zerolog.Logger) (*Publisher, error) {
	if qos < 0 || qos > maxQoS {
		return nil, ErrInvalidQoS
	}
	return &Publisher{
		client:  client,
		prefix:  strings.TrimSuffix(prefix, "/"),
		qos:     byte(qos),
		timeout: defaultPublishTimeout,
		logger:  logger.With().Str("component", "mqtt").Logger(),
	}, nil
}

// Connect dials the broker described by cfg and returns a publisher on it.
// The broker marks the hub offline through a retained will message.
func Connect(cfg config.MQTTConfig, logger zerolog.Logger) (*Publisher, error) {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(defaultConnectTimeout)

	statusTopic := strings.TrimSuffix(cfg.TopicPrefix, "/") + "/status"
	opts.SetWill(statusTopic, "offline", 1, true)

	log := logger.With().Str("component", "mqtt").Str("broker", cfg.Broker).Logger()
	opts.SetOnConnectHandler(func(c pahomqtt.Client) {
		log.Info().Msg("Connected to MQTT broker")
		c.Publish(statusTopic, 1, true, "online")
	})
	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		log.Warn().Err(err).Msg("Lost MQTT broker connection")
	})

	client := pahomqtt.NewClient(opts)
	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	publisher, err := NewPublisher(client, cfg.TopicPrefix, cfg.QoS, logger)
	if err != nil {
		client.Disconnect(disconnectQuiesce)
		return nil, err
	}
	publisher.disconnect = func() {
		client.Publish(statusTopic, 1, true, "offline").WaitTimeout(defaultPublishTimeout)
		client.Disconnect(disconnectQuiesce)
	}
	return publisher, nil
}

// Topic returns the topic a device property is published on.
func (p *Publisher) Topic(deviceID string, property soundtouch.Property) string {
	return p.prefix + "/" + deviceID + "/" + string(property)
}

// UpdateProperty implements soundtouch.Listener. Failures are logged.
func (p *Publisher) UpdateProperty(deviceID string, property soundtouch.Property, value any) {
	if err := p.Publish(deviceID, property, value); err != nil {
		p.logger.Warn().Err(err).Str("device", deviceID).Str("property", string(property)).Msg("Failed to publish property")
	}
}

// Publish sends one property value and waits for the broker.
func (p *Publisher) Publish(deviceID string, property soundtouch.Property, value any) error {
	payload, err := encodePayload(value)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	token := p.client.Publish(p.Topic(deviceID, property), p.qos, true, payload)
	if !token.WaitTimeout(p.timeout) {
		return fmt.Errorf("%w: timeout after %v", ErrPublishFailed, p.timeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("%w: %w", ErrPublishFailed, err)
	}
	return nil
}

// Close publishes the offline status and disconnects when the publisher
// owns its connection.
func (p *Publisher) Close() {
	if p.disconnect != nil {
		p.disconnect()
		p.disconnect = nil
	}
}

// encodePayload sends strings as they are and everything else as JSON.
func encodePayload(value any) ([]byte, error) {
	if s, ok := value.(string); ok {
		return []byte(s), nil
	}
	return json.Marshal(value)
}
