package gateway_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/payment"
	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/internal/infrastructure/gateway"
	"github.com/xiebiao/storefront/internal/testutil"
	"github.com/xiebiao/storefront/pkg/circuitbreaker"
)

const secret = "whsec_test"

func TestSignatureVerifier(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"checkout.session.completed"}`)
	now := testutil.Epoch
	v := gateway.NewSignatureVerifier(secret, time.Minute)

	t.Run("签名正确", func(t *testing.T) {
		header := gateway.SignPayload(secret, payload, now)
		assert.NoError(t, v.Verify(payload, header, now.Add(30*time.Second)))
	})

	t.Run("载荷被篡改", func(t *testing.T) {
		header := gateway.SignPayload(secret, payload, now)
		err := v.Verify([]byte(`{"id":"evt_2"}`), header, now)
		assert.ErrorIs(t, err, webhook.ErrInvalidSignature)
	})

	t.Run("密钥不一致", func(t *testing.T) {
		header := gateway.SignPayload("other", payload, now)
		assert.ErrorIs(t, v.Verify(payload, header, now), webhook.ErrInvalidSignature)
	})

	t.Run("时间戳超出容忍窗口", func(t *testing.T) {
		header := gateway.SignPayload(secret, payload, now)
		assert.ErrorIs(t, v.Verify(payload, header, now.Add(2*time.Minute)), webhook.ErrInvalidSignature)
		assert.ErrorIs(t, v.Verify(payload, header, now.Add(-2*time.Minute)), webhook.ErrInvalidSignature)
	})

	t.Run("多个v1任意一个匹配", func(t *testing.T) {
		header := gateway.SignPayload(secret, payload, now) + ",v1=deadbeef"
		assert.NoError(t, v.Verify(payload, header, now))
	})

	t.Run("签名头格式错误", func(t *testing.T) {
		for _, header := range []string{"", "v1=abc", "t=abc,v1=abc", "garbage"} {
			assert.ErrorIs(t, v.Verify(payload, header, now), webhook.ErrInvalidSignature, header)
		}
	})
}

func TestMock_CheckoutAndEvents(t *testing.T) {
	ctx := context.Background()
	clk := testutil.NewClock()
	m := gateway.NewMock(gateway.Config{Secret: secret}, clk, zap.NewNop())

	session, err := m.CreateCheckoutSession(ctx, payment.CheckoutRequest{
		OrderID:  "order-1",
		Currency: "usd",
		LineItems: []payment.LineItem{
			{Name: "ebook", UnitAmount: 1200, Quantity: 2},
			{Name: "consulting", UnitAmount: 5000, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Contains(t, session.SessionID, "cs_")
	assert.Contains(t, session.PaymentIntentID, "pi_")
	assert.Contains(t, session.URL, session.SessionID)

	payload, header, err := m.CompletedEvent(session.SessionID)
	require.NoError(t, err)
	require.NoError(t, gateway.NewSignatureVerifier(secret, 0).Verify(payload, header, clk.Now()))

	ev, err := webhook.ParseEvent(payload)
	require.NoError(t, err)
	assert.Equal(t, webhook.EventCheckoutSessionCompleted, ev.Type)

	var obj webhook.CheckoutSessionObject
	require.NoError(t, ev.DecodeObject(&obj))
	assert.Equal(t, "order-1", obj.ClientReferenceID)
	assert.Equal(t, session.PaymentIntentID, obj.PaymentIntent)
	assert.Equal(t, int64(7400), obj.AmountTotal)

	payload, _, err = m.FailedEvent(session.SessionID)
	require.NoError(t, err)
	var failed webhook.Event
	require.NoError(t, json.Unmarshal(payload, &failed))
	assert.Equal(t, webhook.EventPaymentIntentFailed, failed.Type)

	_, _, err = m.CompletedEvent("cs_unknown")
	assert.Error(t, err)
}

func TestMock_Refund(t *testing.T) {
	ctx := context.Background()
	m := gateway.NewMock(gateway.Config{Secret: secret}, testutil.NewClock(), zap.NewNop())

	id, err := m.CreateRefund(ctx, "pi_1", 500, "requested_by_customer")
	require.NoError(t, err)
	assert.Contains(t, id, "re_")

	_, err = m.CreateRefund(ctx, "pi_1", 0, "")
	assert.ErrorIs(t, err, payment.ErrInvalidRefundAmount)
}

func TestMock_CircuitBreaker(t *testing.T) {
	ctx := context.Background()
	clk := testutil.NewClock()
	m := gateway.NewMock(gateway.Config{Secret: secret}, clk, zap.NewNop())

	m.SetFailure(errors.New("connection reset"))
	for i := 0; i < 5; i++ {
		_, err := m.CreateRefund(ctx, "pi_1", 100, "")
		assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)
	}
	assert.Equal(t, circuitbreaker.StateOpen, m.Breaker().State())

	// 熔断期间即使网关恢复也直接拒绝
	m.SetFailure(nil)
	_, err := m.CreateRefund(ctx, "pi_1", 100, "")
	assert.ErrorIs(t, err, payment.ErrGatewayUnavailable)

	clk.Advance(31 * time.Second)
	_, err = m.CreateRefund(ctx, "pi_1", 100, "")
	require.NoError(t, err)
	assert.Equal(t, circuitbreaker.StateClosed, m.Breaker().State())
}
