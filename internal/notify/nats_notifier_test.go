package notify

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/akylbek/payment-system/event-certificates/internal/models"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
}

func (c *fakeConn) Publish(subj string, data []byte) error {
	c.subjects = append(c.subjects, subj)
	c.payloads = append(c.payloads, data)
	return nil
}

func TestNatsNotifier_PaymentSucceeded(t *testing.T) {
	conn := &fakeConn{}
	n := NewNatsNotifier(conn)

	err := n.PaymentSucceeded(context.Background(), &models.Payment{ID: "p1", UserID: "u1", Amount: 40000, Currency: "INR"})
	require.NoError(t, err)

	require.Equal(t, []string{SubjectPaymentReceipt}, conn.subjects)
	var req receiptRequest
	require.NoError(t, json.Unmarshal(conn.payloads[0], &req))
	assert.Equal(t, int64(40000), req.Amount)
}

func TestNatsNotifier_CancelledContextSkipsPublish(t *testing.T) {
	conn := &fakeConn{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := NewNatsNotifier(conn).CertificateIssued(ctx, &models.Certificate{UID: "x"})
	assert.Error(t, err)
	assert.Empty(t, conn.subjects)
}
