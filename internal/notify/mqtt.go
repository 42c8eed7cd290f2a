package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/goccy/go-json"
)

// MQTTConfig holds the broker connection settings.
type MQTTConfig struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
	QoS         byte
}

// Publisher is the subset of mqtt.Client used to publish.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// ConnectMQTT opens a broker connection with auto-reconnect.
func ConnectMQTT(cfg MQTTConfig) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}
	opts.SetAutoReconnect(true)
	opts.SetCleanSession(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("connect to MQTT broker: %w", token.Error())
	}
	return client, nil
}

// MQTTNotifier publishes each message as JSON on
// {prefix}/{channel_id}/{type}.
type MQTTNotifier struct {
	publisher Publisher
	prefix    string
	qos       byte
	timeout   time.Duration
}

func NewMQTTNotifier(publisher Publisher, prefix string, qos byte) *MQTTNotifier {
	if prefix == "" {
		prefix = "stations/alerts"
	}
	return &MQTTNotifier{
		publisher: publisher,
		prefix:    strings.TrimSuffix(prefix, "/"),
		qos:       qos,
		timeout:   10 * time.Second,
	}
}

// Topic returns the topic msg is published on.
func (n *MQTTNotifier) Topic(msg Message) string {
	return fmt.Sprintf("%s/%d/%s", n.prefix, msg.ChannelID, strings.ToLower(msg.Type))
}

func (n *MQTTNotifier) Notify(ctx context.Context, msg Message) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal alert: %w", err)
	}

	topic := n.Topic(msg)
	token := n.publisher.Publish(topic, n.qos, false, payload)
	select {
	case <-token.Done():
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(n.timeout):
		return fmt.Errorf("publish to %s: timed out", topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", topic, err)
	}
	return nil
}
