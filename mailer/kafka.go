package mailer

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"time"

	"consultancy-cms/models"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl/plain"
)

// MailEvent is the payload published for an external mail service.
type MailEvent struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	HTML    string    `json:"html"`
	Text    string    `json:"text"`
	SentAt  time.Time `json:"sent_at"`
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaTransport hands messages to a mail service through a Kafka topic,
// keyed by recipient.
type KafkaTransport struct {
	writer messageWriter
}

type KafkaConfig struct {
	Broker   string
	Topic    string
	Username string
	Password string
}

func NewKafkaTransport(cfg KafkaConfig) *KafkaTransport {
	transport := &kafka.Transport{}
	if cfg.Username != "" {
		transport.SASL = plain.Mechanism{Username: cfg.Username, Password: cfg.Password}
		transport.TLS = &tls.Config{}
	}
	return &KafkaTransport{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(cfg.Broker),
			Topic:        cfg.Topic,
			Balancer:     &kafka.LeastBytes{},
			RequiredAcks: kafka.RequireAll,
			Transport:    transport,
			WriteTimeout: 10 * time.Second,
		},
	}
}

func (t *KafkaTransport) Name() string { return "kafka" }

func (t *KafkaTransport) Send(ctx context.Context, to, subject, html, text string) error {
	value, err := json.Marshal(MailEvent{To: to, Subject: subject, HTML: html, Text: text, SentAt: time.Now().UTC()})
	if err != nil {
		return models.ErrorTransport{Transport: t.Name(), Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := t.writer.WriteMessages(ctx, kafka.Message{Key: []byte(to), Value: value, Time: time.Now()}); err != nil {
		return models.ErrorTransport{Transport: t.Name(), Err: err}
	}
	return nil
}

func (t *KafkaTransport) Close() error {
	return t.writer.Close()
}
