package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/segmentio/kafka-go"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

// NewWriter returns a writer bound to a single topic.
func NewWriter(brokers, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(strings.Split(brokers, ",")...),
		Topic:                  topic,
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireOne,
		AllowAutoTopicCreation: true,
	}
}

// MessageWriter is the part of *kafka.Writer the publishers use.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// KafkaLogShipper publishes fraud log records, keyed by order.
type KafkaLogShipper struct {
	writer MessageWriter
}

func NewKafkaLogShipper(writer MessageWriter) *KafkaLogShipper {
	return &KafkaLogShipper{writer: writer}
}

func (s *KafkaLogShipper) SendLog(ctx context.Context, record models.LogRecord) error {
	return publishJSON(ctx, s.writer, record.OrderIncrementID, record)
}

// KafkaMailer hands decline mails to the notification service.
type KafkaMailer struct {
	writer MessageWriter
}

func NewKafkaMailer(writer MessageWriter) *KafkaMailer {
	return &KafkaMailer{writer: writer}
}

func (m *KafkaMailer) SendDeclineMail(ctx context.Context, mail models.DeclineMail) error {
	return publishJSON(ctx, m.writer, mail.OrderIncrementID, mail)
}

func publishJSON(ctx context.Context, writer MessageWriter, key string, v interface{}) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	if err := writer.WriteMessages(ctx, kafka.Message{Key: []byte(key), Value: payload}); err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}
