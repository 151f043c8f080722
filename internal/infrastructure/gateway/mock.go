// Package gateway 支付网关适配
//
// Mock在本地生成会话、支付意图和退款ID,并能按网关格式生成带签名的回调事件,
// 用于mock支付模式和测试。所有网关调用都经过熔断器。
package gateway

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/payment"
	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/pkg/circuitbreaker"
	"github.com/xiebiao/storefront/pkg/clock"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/metrics"
)

// Config Mock网关配置
type Config struct {
	Secret      string // 回调签名密钥
	CheckoutURL string // 支付页地址前缀
}

// Mock 模拟支付网关
type Mock struct {
	cfg     Config
	breaker *circuitbreaker.CircuitBreaker
	clock   clock.Clock
	logger  *zap.Logger

	mu       sync.Mutex
	sessions map[string]*session
	failure  error
}

type session struct {
	id            string
	paymentIntent string
	orderID       string
	currency      string
	amount        int64
}

// NewMock 创建Mock网关
func NewMock(cfg Config, clk clock.Clock, logger *zap.Logger) *Mock {
	if cfg.CheckoutURL == "" {
		cfg.CheckoutURL = "https://checkout.mock.local/pay/"
	}
	m := &Mock{
		cfg:      cfg,
		clock:    clk,
		logger:   logger,
		sessions: make(map[string]*session),
	}
	m.breaker = circuitbreaker.NewCircuitBreaker("payment-gateway", circuitbreaker.Config{
		Timeout: 30 * time.Second,
		Now:     clk.Now,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			metrics.RecordCircuitBreaker(name, "state_change", int(to))
			logger.Warn("熔断器状态变化",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})
	return m
}

// SetFailure 之后的网关调用都返回err,nil恢复正常
func (m *Mock) SetFailure(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failure = err
}

// Breaker 网关熔断器
func (m *Mock) Breaker() *circuitbreaker.CircuitBreaker {
	return m.breaker
}

// CreateCheckoutSession 创建支付会话
func (m *Mock) CreateCheckoutSession(ctx context.Context, req payment.CheckoutRequest) (*payment.CheckoutSession, error) {
	var out *payment.CheckoutSession
	err := m.call(ctx, func(ctx context.Context) error {
		var amount int64
		for _, li := range req.LineItems {
			amount += li.UnitAmount * int64(li.Quantity)
		}
		s := &session{
			id:            newID("cs_"),
			paymentIntent: newID("pi_"),
			orderID:       req.OrderID,
			currency:      req.Currency,
			amount:        amount,
		}

		m.mu.Lock()
		m.sessions[s.id] = s
		m.mu.Unlock()

		out = &payment.CheckoutSession{
			SessionID:       s.id,
			URL:             m.cfg.CheckoutURL + s.id,
			PaymentIntentID: s.paymentIntent,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateRefund 创建退款,返回网关退款ID
func (m *Mock) CreateRefund(ctx context.Context, paymentIntentID string, amount int64, reason string) (string, error) {
	if amount <= 0 {
		return "", payment.ErrInvalidRefundAmount
	}
	var id string
	err := m.call(ctx, func(ctx context.Context) error {
		id = newID("re_")
		m.logger.Debug("mock网关退款",
			zap.String("payment_intent_id", paymentIntentID),
			zap.Int64("amount", amount),
			zap.String("reason", reason),
		)
		return nil
	})
	return id, err
}

func (m *Mock) call(ctx context.Context, fn func(ctx context.Context) error) error {
	err := m.breaker.ExecuteContext(ctx, func(ctx context.Context) error {
		m.mu.Lock()
		failure := m.failure
		m.mu.Unlock()
		if failure != nil {
			return failure
		}
		return fn(ctx)
	})

	state := int(m.breaker.State())
	switch {
	case errors.Is(err, circuitbreaker.ErrOpenState):
		metrics.RecordCircuitBreaker(m.breaker.Name(), "rejected", state)
		return payment.ErrGatewayUnavailable
	case err != nil:
		metrics.RecordCircuitBreaker(m.breaker.Name(), "failure", state)
		if apperrors.IsAppError(err) {
			return err
		}
		return apperrors.WithDetail(payment.ErrGatewayUnavailable, "%v", err)
	default:
		metrics.RecordCircuitBreaker(m.breaker.Name(), "success", state)
		return nil
	}
}

// CompletedEvent 生成会话支付成功的签名回调
func (m *Mock) CompletedEvent(sessionID string) ([]byte, string, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, "", err
	}
	return m.SignedEvent(webhook.EventCheckoutSessionCompleted, webhook.CheckoutSessionObject{
		ID:                s.id,
		ClientReferenceID: s.orderID,
		PaymentIntent:     s.paymentIntent,
		AmountTotal:       s.amount,
		Currency:          s.currency,
	})
}

// FailedEvent 生成会话支付失败的签名回调
func (m *Mock) FailedEvent(sessionID string) ([]byte, string, error) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return nil, "", err
	}
	return m.SignedEvent(webhook.EventPaymentIntentFailed, webhook.PaymentIntentObject{ID: s.paymentIntent})
}

// SignedEvent 按网关格式包装事件对象并签名,返回载荷和签名头
func (m *Mock) SignedEvent(eventType string, object interface{}) ([]byte, string, error) {
	raw, err := json.Marshal(object)
	if err != nil {
		return nil, "", apperrors.Wrap(err, "序列化事件对象失败")
	}
	payload, err := json.Marshal(webhook.Event{
		ID:   newID("evt_"),
		Type: eventType,
		Data: webhook.EventData{Object: raw},
	})
	if err != nil {
		return nil, "", apperrors.Wrap(err, "序列化事件失败")
	}
	return payload, SignPayload(m.cfg.Secret, payload, m.clock.Now()), nil
}

// PaymentIntent 会话对应的支付意图ID
func (m *Mock) PaymentIntent(sessionID string) (string, bool) {
	s, err := m.lookup(sessionID)
	if err != nil {
		return "", false
	}
	return s.paymentIntent, true
}

func (m *Mock) lookup(sessionID string) (*session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok {
		return nil, apperrors.WithDetail(apperrors.ErrInvalidParams, "未知的支付会话%s", sessionID)
	}
	return s, nil
}

func newID(prefix string) string {
	b := make([]byte, 12)
	_, _ = rand.Read(b)
	return prefix + hex.EncodeToString(b)
}
