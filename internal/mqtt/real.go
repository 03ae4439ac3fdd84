package mqtt

import (
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/sweeney/door-alerter/internal/logic"
)

// bufferCapacity bounds how many messages are kept while disconnected.
const bufferCapacity = 100

// RealPublisher publishes to an actual MQTT broker.
// Messages published while the connection is down are buffered and replayed
// on reconnect.
type RealPublisher struct {
	client paho.Client
	prefix string
	log    zerolog.Logger

	queue *offlineQueue
}

// NewRealPublisher creates a publisher for the given broker. The connection
// is retried in the background if the broker is not reachable yet.
func NewRealPublisher(broker, clientID, prefix string, log zerolog.Logger) (*RealPublisher, error) {
	if prefix == "" {
		prefix = DefaultTopicPrefix
	}
	p := &RealPublisher{
		prefix: prefix,
		log:    log,
		queue:  newOfflineQueue(bufferCapacity),
	}

	will, err := FormatSystemPayload(SystemEvent{Timestamp: time.Now(), Event: "OFFLINE"})
	if err != nil {
		return nil, fmt.Errorf("format will payload: %w", err)
	}

	opts := paho.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(SystemTopic(prefix), string(will), 1, true).
		SetOnConnectHandler(p.onConnect).
		SetConnectionLostHandler(func(_ paho.Client, err error) {
			log.Warn().Err(err).Msg("mqtt connection lost")
		})

	p.client = paho.NewClient(opts)
	token := p.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		log.Warn().Str("broker", broker).Msg("mqtt broker not reachable yet, buffering")
		return p, nil
	}
	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("connect to broker: %w", err)
	}

	return p, nil
}

// Publish sends a door event. QoS 0 (at-most-once), not retained.
func (p *RealPublisher) Publish(event logic.Event) error {
	payload, err := FormatPayload(event)
	if err != nil {
		return fmt.Errorf("format payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: EventsTopic(p.prefix), payload: payload})
}

// PublishSystem sends a system lifecycle event with QoS 1.
func (p *RealPublisher) PublishSystem(event SystemEvent) error {
	payload, err := FormatSystemPayload(event)
	if err != nil {
		return fmt.Errorf("format system payload: %w", err)
	}
	return p.publish(bufferedMsg{topic: SystemTopic(p.prefix), payload: payload, qos: 1, retained: event.Retained})
}

// IsConnected reports whether the broker connection is currently up.
func (p *RealPublisher) IsConnected() bool {
	return p.client.IsConnectionOpen()
}

// Close disconnects from the broker.
func (p *RealPublisher) Close() error {
	p.client.Disconnect(1000) // 1 second timeout
	return nil
}

func (p *RealPublisher) publish(msg bufferedMsg) error {
	held, firstDrop := p.queue.hold(msg, p.client.IsConnectionOpen)
	if firstDrop {
		p.log.Warn().Int("capacity", bufferCapacity).Msg("mqtt buffer full, dropping oldest")
	}
	if held {
		return nil
	}
	return p.send(msg)
}

func (p *RealPublisher) send(msg bufferedMsg) error {
	token := p.client.Publish(msg.topic, msg.qos, msg.retained, msg.payload)
	if !token.WaitTimeout(5 * time.Second) {
		return fmt.Errorf("publish %s timeout", msg.topic)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", msg.topic, err)
	}
	return nil
}

// onConnect replays messages buffered while disconnected. paho marks the
// connection open before calling it.
func (p *RealPublisher) onConnect(_ paho.Client) {
	pending := p.queue.drain()

	p.log.Info().Int("replayed", len(pending)).Msg("mqtt connected")
	for _, msg := range pending {
		if err := p.send(msg); err != nil {
			p.log.Warn().Err(err).Msg("mqtt replay failed")
		}
	}
}
