package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
)

// CredentialsIssuedEvent announces that an account received a temporary
// password. It never carries the password: topics are retained on disk and the
// secret reaches the user only over SMTP.
type CredentialsIssuedEvent struct {
	Email    string    `json:"email"`
	FullName string    `json:"full_name"`
	WorkID   string    `json:"work_id"`
	IssuedAt time.Time `json:"issued_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaConfig holds broker settings
type KafkaConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

// KafkaSender publishes credentials-issued events to a topic
type KafkaSender struct {
	writer messageWriter
}

// NewKafkaSender creates a new Kafka sender
func NewKafkaSender(cfg KafkaConfig) *KafkaSender {
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	return &KafkaSender{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			WriteTimeout: cfg.WriteTimeout,
		},
	}
}

// Name implements Sender
func (k *KafkaSender) Name() string { return "kafka" }

// SendCredentials publishes one event keyed by email
func (k *KafkaSender) SendCredentials(ctx context.Context, c Credentials) error {
	now := time.Now().UTC()
	value, err := json.Marshal(CredentialsIssuedEvent{
		Email:    c.Email,
		FullName: c.FullName,
		WorkID:   c.WorkID,
		IssuedAt: now,
	})
	if err != nil {
		return fmt.Errorf("marshal credentials event: %w", err)
	}

	return k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(c.Email),
		Value: value,
		Time:  now,
	})
}

// Close flushes and closes the writer
func (k *KafkaSender) Close() error {
	return k.writer.Close()
}
