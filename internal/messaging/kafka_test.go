package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/fraud-orchestrator/internal/models"
)

type recordingWriter struct {
	messages []kafka.Message
	err      error
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func TestKafkaLogShipper_SendLog(t *testing.T) {
	writer := &recordingWriter{}
	shipper := NewKafkaLogShipper(writer)
	record := models.LogRecord{
		ID:               "log-1",
		SiteID:           "site-1",
		OrderIncrementID: "100000001",
		Label:            "Post-Auth",
		Metadata:         map[string]interface{}{"decision": "approve"},
		Timestamp:        time.Now().UTC(),
	}

	require.NoError(t, shipper.SendLog(context.Background(), record))
	require.Len(t, writer.messages, 1)
	assert.Equal(t, []byte("100000001"), writer.messages[0].Key)

	var decoded models.LogRecord
	require.NoError(t, json.Unmarshal(writer.messages[0].Value, &decoded))
	assert.Equal(t, "Post-Auth", decoded.Label)
	assert.Equal(t, "approve", decoded.Metadata["decision"])
}

func TestKafkaMailer_SendDeclineMail(t *testing.T) {
	writer := &recordingWriter{}
	mailer := NewKafkaMailer(writer)

	require.NoError(t, mailer.SendDeclineMail(context.Background(), models.DeclineMail{
		OrderIncrementID: "100000002",
		CustomerEmail:    "shopper@example.com",
		Template:         "fraud_decline",
	}))
	require.Len(t, writer.messages, 1)
	assert.Equal(t, []byte("100000002"), writer.messages[0].Key)
	assert.Contains(t, string(writer.messages[0].Value), `"template":"fraud_decline"`)

	writer.err = errors.New("broker unavailable")
	err := mailer.SendDeclineMail(context.Background(), models.DeclineMail{OrderIncrementID: "100000003"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broker unavailable")
}

func TestNewWriter(t *testing.T) {
	w := NewWriter("broker-1:9092,broker-2:9092", "fraud.logs")
	assert.Equal(t, "fraud.logs", w.Topic)
	assert.Equal(t, "broker-1:9092,broker-2:9092", w.Addr.String())
}
