package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func TestKafkaPublisher_PaymentTransitioned(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w)
	p.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }

	payment := &models.Payment{
		ID:             "p1",
		GatewayOrderID: "order_1",
		UserID:         "u1",
		Type:           models.TypeEventFee,
		Context:        models.EventFeeContext{EventID: "evt_1"},
	}
	require.NoError(t, p.PaymentTransitioned(context.Background(), payment, models.StatusPending, models.StatusSuccess))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicPaymentState, w.msgs[0].Topic)
	assert.Equal(t, "order_1", string(w.msgs[0].Key))

	var ev paymentStateEvent
	require.NoError(t, json.Unmarshal(w.msgs[0].Value, &ev))
	assert.Equal(t, models.StatusSuccess, ev.State)
	assert.Equal(t, models.StatusPending, ev.PreviousState)
	assert.Equal(t, "evt_1", ev.EventID)
}

func TestKafkaPublisher_CertificateIssued(t *testing.T) {
	w := &recordingWriter{}
	p := NewKafkaPublisher(w)

	require.NoError(t, p.CertificateIssued(context.Background(), &models.Certificate{UID: "SPT-CERT-E1-S1", Kind: models.KindStandard}))
	require.Len(t, w.msgs, 1)
	assert.Equal(t, TopicCertificateIssued, w.msgs[0].Topic)
	assert.Equal(t, "SPT-CERT-E1-S1", string(w.msgs[0].Key))
}
