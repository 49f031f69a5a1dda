// Package mqtt connects the engine to an MQTT broker: run events are
// published per run and run requests are accepted on a request topic.
package mqtt

import (
	"errors"
	"os"
	"strings"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

const (
	qos            = 1
	connectTimeout = 10 * time.Second
	publishTimeout = 5 * time.Second
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt: not connected")

// Conn is the subset of a broker connection used by the publisher and the
// request subscriber.
type Conn interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler paho.MessageHandler) error
	Unsubscribe(topics ...string) error
}

// Client wraps the Paho MQTT client.
type Client struct {
	client paho.Client
	broker string
	logger *zap.Logger
	mu     sync.Mutex
}

var _ Conn = (*Client)(nil)

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// NewClient creates a new MQTT client but does not connect. An empty
// broker falls back to BrokerURL.
func NewClient(broker, clientID string, logger *zap.Logger) *Client {
	if broker == "" {
		broker = BrokerURL()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Client{broker: broker, logger: logger}
	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			logger.Warn("mqtt connection lost", zap.String("broker", broker), zap.Error(err))
		}).
		SetOnConnectHandler(func(_ paho.Client) {
			logger.Info("mqtt connected", zap.String("broker", broker))
		})

	c.client = paho.NewClient(opts)
	return c
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return &TimeoutError{Op: "connect", Topic: c.broker}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	token := c.client.Subscribe(topic, qos, handler)
	if !token.WaitTimeout(connectTimeout) {
		return &TimeoutError{Op: "subscribe", Topic: topic}
	}
	return token.Error()
}

// Unsubscribe removes the subscriptions for topics.
func (c *Client) Unsubscribe(topics ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := c.client.Unsubscribe(topics...)
	if !token.WaitTimeout(connectTimeout) {
		return &TimeoutError{Op: "unsubscribe", Topic: strings.Join(topics, ",")}
	}
	return token.Error()
}

// Publish sends payload to topic. It fails fast while disconnected so a
// down broker never stalls the pipeline.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnectionOpen() {
		return ErrNotConnected
	}
	token := c.client.Publish(topic, qos, false, payload)
	if !token.WaitTimeout(publishTimeout) {
		return &TimeoutError{Op: "publish", Topic: topic}
	}
	return token.Error()
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// Broker returns the broker URL the client dials.
func (c *Client) Broker() string { return c.broker }

// TimeoutError reports a broker operation that did not complete in time.
type TimeoutError struct {
	Op    string
	Topic string
}

func (e *TimeoutError) Error() string {
	return "mqtt " + e.Op + " timeout: " + e.Topic
}

// Start connects and subscribes the request subscriber, logging errors
// but not failing. Returns true if connected.
func (c *Client) Start(sub *RunRequestSubscriber) bool {
	if err := c.Connect(); err != nil {
		c.logger.Error("mqtt connect failed", zap.String("broker", c.broker), zap.Error(err))
		return false
	}
	if sub == nil {
		return true
	}
	if err := sub.Subscribe(); err != nil {
		c.logger.Error("mqtt subscribe failed", zap.String("topic", sub.Topic()), zap.Error(err))
		return false
	}
	c.logger.Info("mqtt subscribed", zap.String("topic", sub.Topic()))
	return true
}
