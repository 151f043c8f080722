// Package webhook 接收支付网关回调并异步处理
//
// 接收端只做三件事: 校验签名、解析事件、以事件ID为主键写入任务表。
// 业务处理由任务池执行,失败按退避重试;重复投递的事件不会产生新任务。
package webhook

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/pkg/clock"
	"github.com/xiebiao/storefront/pkg/metrics"
)

// Verifier 回调签名校验
type Verifier interface {
	Verify(payload []byte, header string, now time.Time) error
}

// Receiver 回调接收端
type Receiver struct {
	verifier    Verifier
	jobs        webhook.JobRepository
	clock       clock.Clock
	maxAttempts int
	logger      *zap.Logger
}

// NewReceiver 创建回调接收端
func NewReceiver(verifier Verifier, jobs webhook.JobRepository, clk clock.Clock, maxAttempts int, logger *zap.Logger) *Receiver {
	return &Receiver{
		verifier:    verifier,
		jobs:        jobs,
		clock:       clk,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// ReceiveResult 接收结果
type ReceiveResult struct {
	Received  bool `json:"received"`
	Duplicate bool `json:"duplicate"`
}

// Receive 校验并入队
// 签名无效返回ErrInvalidSignature,不写入任何数据
func (r *Receiver) Receive(ctx context.Context, payload []byte, signatureHeader string) (*ReceiveResult, error) {
	now := r.clock.Now()
	if err := r.verifier.Verify(payload, signatureHeader, now); err != nil {
		metrics.RecordWebhook("invalid_signature")
		r.logger.Warn("回调签名校验失败", zap.Error(err))
		return nil, err
	}

	ev, err := webhook.ParseEvent(payload)
	if err != nil {
		metrics.RecordWebhook("malformed")
		return nil, err
	}

	created, err := r.jobs.Enqueue(ctx, webhook.NewJob(ev.ID, ev.Type, payload, r.maxAttempts, now))
	if err != nil {
		metrics.RecordWebhook("error")
		return nil, err
	}

	if !created {
		metrics.RecordWebhook("duplicate")
		r.logger.Info("重复的回调事件", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
		return &ReceiveResult{Received: true, Duplicate: true}, nil
	}

	metrics.RecordWebhook("received")
	r.logger.Info("回调事件已入队", zap.String("event_id", ev.ID), zap.String("type", ev.Type))
	return &ReceiveResult{Received: true}, nil
}
