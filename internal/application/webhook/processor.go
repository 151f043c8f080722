package webhook

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/application/fulfillment"
	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/webhook"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// 履约事件路由键
const (
	RoutingFulfillmentDigital = "fulfillment.digital"
	RoutingBookingConfirmed   = "booking.confirmed"
)

// Payments 支付结果处理,由fulfillment.Service实现
type Payments interface {
	CompletePayment(ctx context.Context, in fulfillment.PaymentSucceeded) error
	FailPayment(ctx context.Context, paymentIntentID string) error
}

// Publisher 履约事件发布
type Publisher interface {
	Publish(ctx context.Context, routingKey, messageID string, message interface{}) error
}

// Processor 按任务类型分发
type Processor struct {
	payments  Payments
	publisher Publisher
	logger    *zap.Logger
}

// NewProcessor 创建任务处理器
func NewProcessor(payments Payments, publisher Publisher, logger *zap.Logger) *Processor {
	return &Processor{payments: payments, publisher: publisher, logger: logger}
}

// Handle 处理一个任务
// 返回错误时任务按退避重试;格式错误的载荷重试无意义,直接失败
func (p *Processor) Handle(ctx context.Context, job *webhook.Job) error {
	switch job.Type {
	case webhook.EventCheckoutSessionCompleted:
		var obj webhook.CheckoutSessionObject
		if err := decodeEvent(job.Payload, &obj); err != nil {
			return err
		}
		if obj.ClientReferenceID == "" {
			return backoff.Permanent(apperrors.WithDetail(webhook.ErrMalformedEvent, "缺少client_reference_id"))
		}
		err := p.payments.CompletePayment(ctx, fulfillment.PaymentSucceeded{
			OrderID:           obj.ClientReferenceID,
			PaymentIntentID:   obj.PaymentIntent,
			CheckoutSessionID: obj.ID,
			Amount:            obj.AmountTotal,
			Currency:          obj.Currency,
		})
		if errors.Is(err, booking.ErrReservationExpired) {
			// 占位已过期,需要人工处理(退款或改约)
			return backoff.Permanent(err)
		}
		return err

	case webhook.EventPaymentIntentFailed:
		var obj webhook.PaymentIntentObject
		if err := decodeEvent(job.Payload, &obj); err != nil {
			return err
		}
		return p.payments.FailPayment(ctx, obj.ID)

	case webhook.EventPaymentIntentSucceeded, webhook.EventChargeRefunded:
		p.logger.Info("回调事件无需处理", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil

	case webhook.TaskFulfillDigital:
		return p.publish(ctx, RoutingFulfillmentDigital, job)

	case webhook.TaskConfirmBooking:
		return p.publish(ctx, RoutingBookingConfirmed, job)

	default:
		p.logger.Debug("忽略未知类型的事件", zap.String("job_id", job.ID), zap.String("type", job.Type))
		return nil
	}
}

func (p *Processor) publish(ctx context.Context, routingKey string, job *webhook.Job) error {
	var task webhook.FulfillmentTask
	if err := json.Unmarshal(job.Payload, &task); err != nil {
		return backoff.Permanent(apperrors.WithDetail(webhook.ErrMalformedEvent, "%v", err))
	}
	// 任务ID作为消息ID,消费方据此去重
	return p.publisher.Publish(ctx, routingKey, job.ID, task)
}

func decodeEvent(payload []byte, v interface{}) error {
	ev, err := webhook.ParseEvent(payload)
	if err == nil {
		err = ev.DecodeObject(v)
	}
	if err != nil && errors.Is(err, webhook.ErrMalformedEvent) {
		return backoff.Permanent(err)
	}
	return err
}

// LogPublisher 未配置消息队列时只记录日志
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher 创建日志发布器
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(_ context.Context, routingKey, messageID string, message interface{}) error {
	p.logger.Info("履约事件(未配置消息队列)",
		zap.String("routing_key", routingKey),
		zap.String("message_id", messageID),
		zap.Any("message", message),
	)
	return nil
}
