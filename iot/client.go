// Package iot provides a lightweight MQTT client for managing device
// connections and messaging against an AWS IoT endpoint.
//
// A Client is an explicitly constructed, caller-owned instance with an
// explicit lifecycle: create, Connect, use, Disconnect. The package
// deliberately holds no process-wide client.
package iot

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/sirupsen/logrus"

	"github.com/opd-ai/sdlkit/retry"
)

// ErrMissingEndpoint indicates no endpoint was configured or found in
// the environment.
var ErrMissingEndpoint = errors.New("iot endpoint not configured")

// ErrNotConnected indicates an operation on a client that is not connected.
var ErrNotConnected = errors.New("iot client not connected")

// DefaultPort is the standard MQTT-over-TLS port.
const DefaultPort = 8883

// MessageHandler processes one message received on a subscribed topic.
type MessageHandler func(topic string, payload []byte)

// Options configures a Client. Empty fields fall back to environment
// variables and then to the historical defaults.
type Options struct {
	Endpoint string // default: AWS_IOT_ENDPOINT
	Port     int    // default: 8883
	ClientID string // default: AWS_IOT_CLIENT_ID, then hostname
	CertPath string // default: AWS_IOT_CERT_PATH, then cert.pem
	KeyPath  string // default: AWS_IOT_KEY_PATH, then private.key
	CAPath   string // default: AWS_IOT_CA_PATH, then root-CA.crt
	Retry    retry.Policy
}

// Client is a device-side MQTT client with per-topic message handlers.
type Client struct {
	opts Options
	log  *logrus.Logger

	mu        sync.Mutex
	client    mqtt.Client
	handlers  map[string]MessageHandler
	connected bool
}

// New builds a client, resolving defaults from the environment. The
// logger is required; transfers and telemetry share one observability
// path on these devices.
func New(opts Options, log *logrus.Logger) (*Client, error) {
	if opts.Endpoint == "" {
		opts.Endpoint = os.Getenv("AWS_IOT_ENDPOINT")
	}
	if opts.Endpoint == "" {
		return nil, ErrMissingEndpoint
	}
	if opts.Port == 0 {
		opts.Port = DefaultPort
	}
	if opts.ClientID == "" {
		opts.ClientID = os.Getenv("AWS_IOT_CLIENT_ID")
	}
	if opts.ClientID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			return nil, fmt.Errorf("resolve client id: %w", err)
		}
		opts.ClientID = hostname
	}
	if opts.CertPath == "" {
		opts.CertPath = envOr("AWS_IOT_CERT_PATH", "cert.pem")
	}
	if opts.KeyPath == "" {
		opts.KeyPath = envOr("AWS_IOT_KEY_PATH", "private.key")
	}
	if opts.CAPath == "" {
		opts.CAPath = envOr("AWS_IOT_CA_PATH", "root-CA.crt")
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = retry.Default()
	}

	return &Client{
		opts:     opts,
		log:      log,
		handlers: make(map[string]MessageHandler),
	}, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// ClientID returns the resolved client identifier.
func (c *Client) ClientID() string {
	return c.opts.ClientID
}

// Connect establishes the MQTT session, retrying per the configured
// fixed-count, fixed-delay policy.
func (c *Client) Connect(ctx context.Context) error {
	tlsCfg, err := c.tlsConfig()
	if err != nil {
		return err
	}

	broker := fmt.Sprintf("tls://%s:%d", c.opts.Endpoint, c.opts.Port)
	mqttOpts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(c.opts.ClientID).
		SetTLSConfig(tlsCfg).
		SetKeepAlive(60 * time.Second).
		SetAutoReconnect(false)

	mqttOpts.SetDefaultPublishHandler(func(_ mqtt.Client, msg mqtt.Message) {
		c.dispatch(msg.Topic(), msg.Payload())
	})

	return c.opts.Retry.Do(ctx, func() error {
		client := mqtt.NewClient(mqttOpts)
		token := client.Connect()
		token.Wait()
		if err := token.Error(); err != nil {
			c.log.WithFields(logrus.Fields{
				"function": "Connect",
				"endpoint": c.opts.Endpoint,
				"error":    err.Error(),
			}).Warn("IoT connection attempt failed")
			return err
		}

		c.mu.Lock()
		c.client = client
		c.connected = true
		c.mu.Unlock()

		c.log.WithFields(logrus.Fields{
			"function":  "Connect",
			"endpoint":  c.opts.Endpoint,
			"client_id": c.opts.ClientID,
		}).Info("Connected to IoT endpoint")
		return nil
	})
}

func (c *Client) tlsConfig() (*tls.Config, error) {
	cert, err := tls.LoadX509KeyPair(c.opts.CertPath, c.opts.KeyPath)
	if err != nil {
		return nil, fmt.Errorf("load device certificate: %w", err)
	}

	caPEM, err := os.ReadFile(c.opts.CAPath)
	if err != nil {
		return nil, fmt.Errorf("load CA certificate: %w", err)
	}
	pool := x509.NewCertPool()
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("CA certificate %s contains no usable certificates", c.opts.CAPath)
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		RootCAs:      pool,
		MinVersion:   tls.VersionTLS12,
	}, nil
}

// Publish sends a payload to a topic at QoS 1.
func (c *Client) Publish(topic string, payload []byte) error {
	c.mu.Lock()
	client := c.client
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	token := client.Publish(topic, 1, false, payload)
	token.Wait()
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}

	c.log.WithFields(logrus.Fields{
		"function": "Publish",
		"topic":    topic,
		"bytes":    len(payload),
	}).Debug("Published message")
	return nil
}

// Subscribe registers handler for a topic and subscribes at QoS 1.
// A failed subscribe leaves no handler behind.
func (c *Client) Subscribe(topic string, handler MessageHandler) error {
	c.mu.Lock()
	client := c.client
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return ErrNotConnected
	}

	// Register before the broker acknowledges so no message arriving
	// right after the ack is dropped.
	c.mu.Lock()
	c.handlers[topic] = handler
	c.mu.Unlock()

	token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
		c.dispatch(msg.Topic(), msg.Payload())
	})
	token.Wait()
	if err := token.Error(); err != nil {
		c.mu.Lock()
		delete(c.handlers, topic)
		c.mu.Unlock()
		return fmt.Errorf("subscribe to %s: %w", topic, err)
	}
	return nil
}

func (c *Client) dispatch(topic string, payload []byte) {
	c.mu.Lock()
	handler, ok := c.handlers[topic]
	c.mu.Unlock()

	if !ok {
		c.log.WithFields(logrus.Fields{
			"function": "dispatch",
			"topic":    topic,
		}).Debug("No handler registered for topic")
		return
	}
	handler(topic, payload)
}

// Handlers returns the topics with a registered handler.
func (c *Client) Handlers() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	topics := make([]string, 0, len(c.handlers))
	for topic := range c.handlers {
		topics = append(topics, topic)
	}
	return topics
}

// Disconnect closes the MQTT session, waiting briefly for in-flight
// messages. Disconnect on an unconnected client is a no-op.
func (c *Client) Disconnect() {
	c.mu.Lock()
	client := c.client
	connected := c.connected
	c.connected = false
	c.mu.Unlock()

	if !connected {
		return
	}

	client.Disconnect(250)
	c.log.WithFields(logrus.Fields{
		"function": "Disconnect",
	}).Info("Disconnected from IoT endpoint")
}
