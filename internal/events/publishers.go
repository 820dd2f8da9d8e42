package events

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"

	"qms/token-queue/internal/store"
)

type LogPublisher struct{}

func (LogPublisher) Publish(ctx context.Context, event Event) error {
	log.Printf("event type=%s token_id=%s counter_id=%s department=%s", event.Type, event.TokenID, event.CounterID, event.Department)
	return nil
}

// JournalPublisher appends token events to the audit journal. Events that do
// not concern a token are ignored.
type JournalPublisher struct {
	Journal store.Journal
}

func (p JournalPublisher) Publish(ctx context.Context, event Event) error {
	if !event.TokenEvent() || len(event.Payload) == 0 {
		return nil
	}
	_, err := p.Journal.AppendTokenEvent(ctx, event.TokenID, event.Type, event.Payload, event.CreatedAt)
	return err
}

type RedisPublisher struct {
	client  *redis.Client
	channel string
}

func NewRedisPublisher(ctx context.Context, addr, channel string) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}
	if channel == "" {
		channel = "token-queue.events"
	}
	return &RedisPublisher{client: client, channel: channel}, nil
}

func (p *RedisPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.client.Publish(ctx, p.channel, body).Err()
}

func (p *RedisPublisher) Close() error {
	return p.client.Close()
}

// NATSPublisher publishes each event on <prefix>.<type>, e.g.
// queue.token.called.
type NATSPublisher struct {
	conn   *nats.Conn
	prefix string
}

func NewNATSPublisher(url, prefix string) (*NATSPublisher, error) {
	conn, err := nats.Connect(url, nats.Name("token-queue"), nats.MaxReconnects(-1))
	if err != nil {
		return nil, err
	}
	if prefix == "" {
		prefix = "queue"
	}
	return &NATSPublisher{conn: conn, prefix: prefix}, nil
}

func (p *NATSPublisher) Subject(event Event) string {
	return subjectFor(p.prefix, event)
}

func subjectFor(prefix string, event Event) string {
	return strings.TrimSuffix(prefix, ".") + "." + event.Type
}

func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	body, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.conn.Publish(p.Subject(event), body)
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}

// KafkaPublisher writes events to one topic keyed by token id, so a token's
// events stay on one partition and in order.
type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, event Event) error {
	msg, err := kafkaMessage(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, msg)
}

func kafkaMessage(event Event) (kafka.Message, error) {
	body, err := json.Marshal(event)
	if err != nil {
		return kafka.Message{}, err
	}
	key := event.TokenID
	if key == "" {
		key = event.CounterID
	}
	return kafka.Message{
		Key:   []byte(key),
		Value: body,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.Type)},
		},
		Time: event.CreatedAt,
	}, nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// ParseBrokers splits "host1:9092,host2:9092".
func ParseBrokers(s string) []string {
	var out []string
	for _, t := range strings.Split(s, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
