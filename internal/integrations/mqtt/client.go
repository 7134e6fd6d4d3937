package mqtt

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"facewatch-go/config"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	log "github.com/sirupsen/logrus"
)

// MessageHandler processes messages arriving on a subscribed topic.
// Handlers run in their own goroutine per message.
type MessageHandler func(topic string, payload []byte)

// Client wraps the paho MQTT client: it carries the availability
// topic, re-establishes subscriptions on every reconnect and
// marshals outgoing payloads.
type Client struct {
	config config.MQTTConfig
	client mqtt.Client

	mu   sync.Mutex
	subs map[string]MessageHandler
}

// NewClient creates the MQTT client for the given configuration.
func NewClient(cfg config.MQTTConfig) *Client {
	return &Client{
		config: cfg,
		subs:   map[string]MessageHandler{},
	}
}

// StatusTopic is the availability topic: "online" retained while the
// instance runs, "offline" via last will when it drops.
func (c *Client) StatusTopic() string {
	return c.config.BaseTopic + "/status"
}

// Subscribe registers handler for topic. Registering before Start is
// fine; all subscriptions are (re)made on every connect.
func (c *Client) Subscribe(topic string, handler MessageHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.subs[topic] = handler
	log.Debugf("Registered MQTT handler for topic %s", topic)
}

// Start connects to the broker. With MQTT disabled it is a no-op.
func (c *Client) Start() error {
	if !c.config.Enabled {
		log.Info("MQTT client is disabled in configuration")
		return nil
	}

	opts := mqtt.NewClientOptions()

	brokerURL := fmt.Sprintf("tcp://%s:%d", c.config.Broker, c.config.Port)
	opts.AddBroker(brokerURL)
	opts.SetClientID(c.config.ClientID)

	if c.config.Username != "" {
		opts.SetUsername(c.config.Username)
		opts.SetPassword(c.config.Password)
	}

	opts.SetOnConnectHandler(c.onConnect)
	opts.SetConnectionLostHandler(c.onConnectionLost)
	opts.SetAutoReconnect(true)
	opts.SetMaxReconnectInterval(1 * time.Minute)
	opts.SetWill(c.StatusTopic(), "offline", 1, true)

	c.client = mqtt.NewClient(opts)

	log.Infof("Connecting to MQTT broker at %s", brokerURL)
	if token := c.client.Connect(); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to connect to MQTT broker: %v", token.Error())
		return token.Error()
	}

	return nil
}

// Stop announces unavailability and disconnects.
func (c *Client) Stop() {
	if c.client != nil && c.client.IsConnected() {
		log.Info("Disconnecting MQTT client...")
		if err := c.PublishRetain(c.StatusTopic(), "offline"); err != nil {
			log.WithError(err).Warn("Failed to publish offline status")
		}
		c.client.Disconnect(250)
		log.Info("MQTT client disconnected")
	}
}

// IsConnected reports whether the broker connection is up.
func (c *Client) IsConnected() bool {
	return c.client != nil && c.client.IsConnected()
}

func (c *Client) onConnect(client mqtt.Client) {
	log.Infof("Connected to MQTT broker at %s:%d", c.config.Broker, c.config.Port)

	if token := client.Publish(c.StatusTopic(), 1, true, "online"); token.Wait() && token.Error() != nil {
		log.Errorf("Failed to publish online status: %v", token.Error())
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for topic, handler := range c.subs {
		h := handler
		token := client.Subscribe(topic, 1, func(_ mqtt.Client, msg mqtt.Message) {
			go h(msg.Topic(), msg.Payload())
		})
		if token.Wait() && token.Error() != nil {
			log.Errorf("Failed to subscribe to topic %s: %v", topic, token.Error())
			continue
		}
		log.Infof("Subscribed to MQTT topic: %s", topic)
	}
}

func (c *Client) onConnectionLost(client mqtt.Client, err error) {
	log.Errorf("MQTT connection lost: %v", err)
}

// PublishMessage publishes a payload to a topic. Strings and byte
// slices go out as-is, scalars are stringified, everything else is
// marshalled to JSON.
func (c *Client) PublishMessage(topic string, payload interface{}, retain bool) error {
	if !c.IsConnected() {
		return fmt.Errorf("MQTT client is not connected")
	}

	var payloadBytes []byte
	var err error

	switch p := payload.(type) {
	case string:
		payloadBytes = []byte(p)
	case []byte:
		payloadBytes = p
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64, bool:
		payloadBytes = []byte(fmt.Sprintf("%v", p))
	default:
		payloadBytes, err = json.Marshal(p)
		if err != nil {
			return fmt.Errorf("failed to marshal payload to JSON: %w", err)
		}
	}

	token := c.client.Publish(topic, 1, retain, payloadBytes)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish message to topic %s: %w", topic, token.Error())
	}

	log.Debugf("Published message to topic: %s", topic)
	return nil
}

// PublishRetain publishes with the retain flag set.
func (c *Client) PublishRetain(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, true)
}

// Publish publishes without the retain flag.
func (c *Client) Publish(topic string, payload interface{}) error {
	return c.PublishMessage(topic, payload, false)
}
