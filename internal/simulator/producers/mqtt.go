package producers

import (
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/chrisdamba/deliverysim/internal/logger"
)

const publishTimeout = 5 * time.Second

// Publisher is the part of mqtt.Client the producer needs.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// MQTTProducer publishes event messages under <prefix>/<topic>.
type MQTTProducer struct {
	client Publisher
	prefix string
	qos    byte
	log    logger.Logger
}

// NewMQTTProducer connects to broker and returns a producer publishing with the given QoS.
func NewMQTTProducer(broker, clientID string, qos byte, log logger.Logger) (*MQTTProducer, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(10 * time.Second)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to broker %s: %w", broker, token.Error())
	}
	log = logger.OrNop(log)
	log.Infof("MQTT producer connected to %s as %s", broker, clientID)
	return NewMQTTProducerFromClient(client, clientID, qos, log), nil
}

func NewMQTTProducerFromClient(client Publisher, prefix string, qos byte, log logger.Logger) *MQTTProducer {
	return &MQTTProducer{
		client: client,
		prefix: strings.TrimSuffix(prefix, "/"),
		qos:    qos,
		log:    logger.OrNop(log),
	}
}

func (m *MQTTProducer) WriteMessage(topic string, msg []byte) error {
	if m.client == nil {
		return fmt.Errorf("mqtt producer is closed")
	}
	full := topic
	if m.prefix != "" {
		full = m.prefix + "/" + topic
	}
	token := m.client.Publish(full, m.qos, false, msg)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish to %s: timed out after %s", full, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish to %s: %w", full, err)
	}
	return nil
}

func (m *MQTTProducer) Close() error {
	if m.client != nil {
		m.client.Disconnect(250)
		m.client = nil
	}
	return nil
}
