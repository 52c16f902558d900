package feed

import (
	"context"
	"encoding/json"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"envlogger/bus"
	"envlogger/types"
	"envlogger/x/strx"
)

const publishWait = 2 * time.Second

// Publisher is the part of mqtt.Client the sink uses.
type Publisher interface {
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
}

// MQTTSink republishes each Reading as JSON on one broker topic.
// Delivery is best-effort: failures are logged and the Reading is not retried.
type MQTTSink struct {
	client Publisher
	topic  string
	log    *zap.Logger
}

func NewMQTTSink(client Publisher, topic string, log *zap.Logger) *MQTTSink {
	if log == nil {
		log = zap.NewNop()
	}
	return &MQTTSink{client: client, topic: topic, log: log}
}

// DialMQTT connects to broker. An empty clientID gets a random one.
func DialMQTT(broker, clientID string) (mqtt.Client, error) {
	clientID = strx.Coalesce(clientID, "envlogger-"+uuid.NewString()[:8])
	opts := mqtt.NewClientOptions().
		AddBroker(broker).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectTimeout(5 * time.Second)
	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.Wait() && token.Error() != nil {
		return nil, token.Error()
	}
	return c, nil
}

// Start subscribes to Readings and forwards them until ctx is done.
func (s *MQTTSink) Start(ctx context.Context, conn *bus.Connection) {
	sub := conn.Subscribe(types.TopicReading)
	drain(sub)
	go s.loop(ctx, conn, sub)
}

func (s *MQTTSink) loop(ctx context.Context, conn *bus.Connection, sub *bus.Subscription) {
	defer conn.Unsubscribe(sub)
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-sub.Channel():
			if !ok {
				return
			}
			if r, ok := msg.Payload.(types.Reading); ok {
				s.Publish(r)
			}
		}
	}
}

func (s *MQTTSink) Publish(r types.Reading) {
	payload, err := json.Marshal(r)
	if err != nil {
		s.log.Error("marshal reading", zap.Error(err))
		return
	}
	token := s.client.Publish(s.topic, 0, false, payload)
	if !token.WaitTimeout(publishWait) {
		s.log.Warn("mqtt publish timed out", zap.Uint32("sequence_id", r.SequenceID))
		return
	}
	if err := token.Error(); err != nil {
		s.log.Warn("mqtt publish failed", zap.Uint32("sequence_id", r.SequenceID), zap.Error(err))
	}
}
