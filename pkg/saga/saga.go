// Package saga 实现按步骤执行、失败逆序补偿的Saga
//
// 退款流程由三个本地步骤组成：记录退款、调用网关退款、回补库存。
// 任一步失败时按逆序执行已完成步骤的补偿,补偿失败只记录日志并继续,
// 最终错误同时包含步骤错误和补偿错误。
package saga

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/pkg/metrics"
)

// Step 表示Saga中的一个步骤
// Action和Compensate都必须可重入,Compensate可以为nil
type Step struct {
	Name       string
	Action     func(ctx context.Context) error
	Compensate func(ctx context.Context) error
}

// Saga 表示一次Saga执行
// 一个Saga实例只能Execute一次
type Saga struct {
	name     string
	steps    []Step
	executed []Step
	timeout  time.Duration
	logger   *zap.Logger
}

// Option Saga选项
type Option func(*Saga)

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(s *Saga) { s.logger = logger }
}

// WithTimeout 设置整体超时,0表示不限制
func WithTimeout(timeout time.Duration) Option {
	return func(s *Saga) { s.timeout = timeout }
}

// NewSaga 创建Saga
func NewSaga(name string, opts ...Option) *Saga {
	s := &Saga{name: name, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AddStep 添加一个步骤,按添加顺序执行,按逆序补偿
func (s *Saga) AddStep(name string, action, compensate func(ctx context.Context) error) *Saga {
	s.steps = append(s.steps, Step{Name: name, Action: action, Compensate: compensate})
	return s
}

// StepError 步骤失败错误
type StepError struct {
	Step         string
	Err          error
	Compensation error // 补偿过程中出现的错误,可能为nil
}

func (e *StepError) Error() string {
	if e.Compensation != nil {
		return fmt.Sprintf("saga步骤[%s]失败: %v (补偿失败: %v)", e.Step, e.Err, e.Compensation)
	}
	return fmt.Sprintf("saga步骤[%s]失败: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Execute 执行Saga
// 返回的错误可以用errors.Is匹配失败步骤的原始错误
func (s *Saga) Execute(ctx context.Context) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	for _, step := range s.steps {
		err := ctx.Err()
		if err == nil && step.Action != nil {
			err = step.Action(ctx)
		}
		if err != nil {
			// 补偿不受原ctx取消影响,但保留其中的值（链路、事务外的请求信息）
			compErr, n := s.compensate(context.WithoutCancel(ctx))
			metrics.RecordSaga(s.name, "failure", n)
			s.logger.Warn("saga执行失败,已补偿",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Int("compensated", n),
				zap.Error(err),
			)
			return &StepError{Step: step.Name, Err: err, Compensation: compErr}
		}
		s.executed = append(s.executed, step)
	}

	metrics.RecordSaga(s.name, "success", 0)
	return nil
}

func (s *Saga) compensate(ctx context.Context) (error, int) {
	var errs []error
	n := 0
	for i := len(s.executed) - 1; i >= 0; i-- {
		step := s.executed[i]
		if step.Compensate == nil {
			continue
		}
		n++
		if err := step.Compensate(ctx); err != nil {
			s.logger.Error("saga补偿失败,需要人工介入",
				zap.String("saga", s.name),
				zap.String("step", step.Name),
				zap.Error(err),
			)
			errs = append(errs, fmt.Errorf("%s: %w", step.Name, err))
		}
	}
	s.executed = nil
	return errors.Join(errs...), n
}
