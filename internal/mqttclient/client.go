package mqttclient

import (
	"fmt"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"
)

type Options struct {
	BrokerURL      string
	ClientID       string
	Username       string
	Password       string
	ConnectTimeout time.Duration
	Logger         *zap.Logger
}

type subscription struct {
	qos     byte
	handler mqtt.MessageHandler
}

// Client wraps a paho client and restores its subscriptions after a reconnect.
type Client struct {
	raw    mqtt.Client
	broker string
	log    *zap.Logger

	mu   sync.Mutex
	subs map[string]subscription
}

func New(opts Options) (*Client, error) {
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = 10 * time.Second
	}
	c := &Client{
		broker: opts.BrokerURL,
		log:    opts.Logger,
		subs:   make(map[string]subscription),
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}

	o := mqtt.NewClientOptions()
	o.AddBroker(opts.BrokerURL)
	o.SetClientID(opts.ClientID)
	if opts.Username != "" {
		o.SetUsername(opts.Username)
		o.SetPassword(opts.Password)
	}
	o.SetAutoReconnect(true)
	o.SetConnectRetry(true)
	o.SetConnectRetryInterval(2 * time.Second)
	o.SetOnConnectHandler(c.onConnect)
	o.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		c.log.Warn("mqtt connection lost", zap.String("broker", c.broker), zap.Error(err))
	})
	c.raw = mqtt.NewClient(o)

	token := c.raw.Connect()
	if !token.WaitTimeout(opts.ConnectTimeout) {
		return nil, fmt.Errorf("connect to %s: timed out after %s", opts.BrokerURL, opts.ConnectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.BrokerURL, err)
	}
	return c, nil
}

func (c *Client) onConnect(raw mqtt.Client) {
	c.mu.Lock()
	subs := make(map[string]subscription, len(c.subs))
	for t, s := range c.subs {
		subs[t] = s
	}
	c.mu.Unlock()

	c.log.Info("mqtt connected", zap.String("broker", c.broker), zap.Int("subscriptions", len(subs)))
	for topic, s := range subs {
		if tok := raw.Subscribe(topic, s.qos, s.handler); tok.Wait() && tok.Error() != nil {
			c.log.Warn("mqtt resubscribe failed", zap.String("topic", topic), zap.Error(tok.Error()))
		}
	}
}

func (c *Client) Publish(topic string, payload []byte, qos byte, retained bool) error {
	token := c.raw.Publish(topic, qos, retained, payload)
	token.Wait()
	return token.Error()
}

func (c *Client) Subscribe(topic string, qos byte, handler mqtt.MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = subscription{qos: qos, handler: handler}
	c.mu.Unlock()

	token := c.raw.Subscribe(topic, qos, handler)
	token.Wait()
	return token.Error()
}

func (c *Client) Close() {
	c.raw.Disconnect(250)
}

func (c *Client) String() string {
	return "mqtt(" + c.broker + ")"
}
