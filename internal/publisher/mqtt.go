package publisher

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"

	"github.com/jgoulah/thermonode/internal/config"
	"github.com/jgoulah/thermonode/internal/retry"
	"github.com/jgoulah/thermonode/pkg/models"
)

// Broker is the part of mqtt.Client the publisher uses
type Broker interface {
	IsConnected() bool
	Connect() mqtt.Token
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher keeps the broker connection up and sends telemetry at a fixed interval
type Publisher struct {
	client   Broker
	topic    string
	interval uint64 // milliseconds
	policy   retry.Policy
	logger   *slog.Logger

	lastPublish uint64
}

// New creates a publisher for the configured broker using mutual TLS.
// It does not connect; call EnsureConnected.
func New(cfg *config.Config, logger *slog.Logger) (*Publisher, error) {
	if cfg.MQTT.Host == "" {
		return nil, fmt.Errorf("MQTT broker host is required")
	}

	tlsConfig, err := NewTLSConfig(cfg.MQTT.CertFile, cfg.MQTT.KeyFile, cfg.MQTT.CAFile)
	if err != nil {
		return nil, err
	}

	p := &Publisher{
		topic:    cfg.GetMQTTTopic(),
		interval: uint64(cfg.GetPublishInterval().Milliseconds()),
		policy:   retry.Forever(cfg.GetMQTTRetryInterval()),
		logger:   logger,
	}

	clientID := cfg.MQTT.ClientID
	if clientID == "" {
		clientID = uuid.New().String()[:22]
	}

	// Configure MQTT client options
	opts := mqtt.NewClientOptions()
	opts.AddBroker(fmt.Sprintf("ssl://%s:%d", cfg.MQTT.Host, cfg.GetMQTTPort()))
	opts.SetClientID(clientID)
	opts.SetTLSConfig(tlsConfig)
	// Reconnects are driven by Service so the loop sees the link state.
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)
	opts.SetConnectTimeout(10 * time.Second)
	opts.SetKeepAlive(15 * time.Second)
	opts.SetDefaultPublishHandler(p.HandleMessage)
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		logger.Warn("broker connection lost", "error", err)
	})

	p.client = mqtt.NewClient(opts)
	return p, nil
}

// NewWithClient creates a publisher on an existing client
func NewWithClient(client Broker, topic string, interval time.Duration, policy retry.Policy, logger *slog.Logger) *Publisher {
	return &Publisher{
		client:   client,
		topic:    topic,
		interval: uint64(interval.Milliseconds()),
		policy:   policy,
		logger:   logger,
	}
}

// NewTLSConfig loads the client certificate, private key and CA trust anchor
func NewTLSConfig(certFile, keyFile, caFile string) (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, fmt.Errorf("loading client certificate: %w", err)
	}

	ca, err := os.ReadFile(caFile)
	if err != nil {
		return nil, fmt.Errorf("reading CA certificate: %w", err)
	}

	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(ca) {
		return nil, fmt.Errorf("no certificates parsed from %s", caFile)
	}

	return &tls.Config{
		RootCAs:      pool,
		Certificates: []tls.Certificate{cert},
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Status reports the broker link state
func (p *Publisher) Status() models.LinkState {
	if p.client.IsConnected() {
		return models.Connected
	}
	return models.Disconnected
}

// EnsureConnected blocks until the broker accepts the connection, retrying
// under the publisher's policy. Telemetry cannot proceed without it.
func (p *Publisher) EnsureConnected(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}

	p.logger.Info("connecting to MQTT broker")
	err := p.policy.Do(ctx, func() error {
		token := p.client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			return err
		}
		if !p.client.IsConnected() {
			return errors.New("not connected")
		}
		return nil
	}, func(attempt uint, err error) {
		p.logger.Warn("MQTT connect failed", "attempt", attempt+1, "retry_in", p.policy.Interval, "error", err)
	})
	if err != nil {
		return fmt.Errorf("connecting to MQTT broker: %w", err)
	}

	p.logger.Info("connected to MQTT broker")
	return nil
}

// Service runs once per loop iteration and re-establishes a dropped link
func (p *Publisher) Service(ctx context.Context) error {
	if p.client.IsConnected() {
		return nil
	}
	p.logger.Warn("broker link down, reconnecting")
	return p.EnsureConnected(ctx)
}

// MaybePublish publishes the reading when at least the publish interval has
// elapsed since the last publish, measured in uptime milliseconds. An
// invalid reading is skipped without using up the slot. It reports whether
// a publish was attempted.
func (p *Publisher) MaybePublish(tick uint64, reading models.Reading) (bool, error) {
	if tick-p.lastPublish < p.interval {
		return false, nil
	}
	if !reading.Valid() {
		return false, nil
	}

	p.lastPublish = tick

	payload, err := models.NewTelemetryMessage(reading).Marshal()
	if err != nil {
		return true, fmt.Errorf("encoding payload: %w", err)
	}

	token := p.client.Publish(p.topic, 0, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return true, fmt.Errorf("publishing to %s: %w", p.topic, err)
	}

	p.logger.Info("published telemetry", "topic", p.topic, "payload", string(payload))
	return true, nil
}

// HandleMessage receives messages the broker delivers to this client.
// They are only logged.
func (p *Publisher) HandleMessage(_ mqtt.Client, msg mqtt.Message) {
	p.logger.Info("message arrived", "topic", msg.Topic(), "payload", string(msg.Payload()))
}

// Close disconnects from the MQTT broker
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
