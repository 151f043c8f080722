// Package queue 基于webhook_jobs表的持久化任务队列消费端
//
// 调度协程定期取出到期任务,用条件更新(PENDING → PROCESSING)抢占后交给N个worker;
// 失败按指数退避重新排期,重试耗尽后标记FAILED等待人工处理。
// 多个实例可以同时运行,抢占保证同一任务同一时刻只有一个执行者。
package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/pkg/clock"
	"github.com/xiebiao/storefront/pkg/metrics"
	"github.com/xiebiao/storefront/pkg/tracing"
)

// Handler 任务处理器
// 返回backoff.Permanent包装的错误时不再重试,直接标记FAILED
type Handler interface {
	Handle(ctx context.Context, job *webhook.Job) error
}

// HandlerFunc 函数适配器
type HandlerFunc func(ctx context.Context, job *webhook.Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *webhook.Job) error {
	return f(ctx, job)
}

// Config 任务池配置
type Config struct {
	Workers           int
	PollInterval      time.Duration
	BatchSize         int
	VisibilityTimeout time.Duration // PROCESSING超过该时长视为执行者已崩溃
	BackoffInitial    time.Duration
	BackoffMax        time.Duration
}

func (c *Config) setDefaults() {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	if c.VisibilityTimeout <= 0 {
		c.VisibilityTimeout = 5 * time.Minute
	}
	if c.BackoffInitial <= 0 {
		c.BackoffInitial = 2 * time.Second
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = 10 * time.Minute
	}
}

// Pool 任务池
type Pool struct {
	jobs    webhook.JobRepository
	handler Handler
	clock   clock.Clock
	cfg     Config
	logger  *zap.Logger
}

// NewPool 创建任务池
func NewPool(jobs webhook.JobRepository, handler Handler, clk clock.Clock, cfg Config, logger *zap.Logger) *Pool {
	cfg.setDefaults()
	return &Pool{
		jobs:    jobs,
		handler: handler,
		clock:   clk,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run 启动调度协程和worker,阻塞到ctx取消
// 取消后不再领取新任务,已领取的任务执行完再返回
func (p *Pool) Run(ctx context.Context) {
	ch := make(chan *webhook.Job, p.cfg.Workers)

	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range ch {
				p.process(context.WithoutCancel(ctx), job)
			}
		}()
	}

	p.logger.Info("任务池已启动", zap.Int("workers", p.cfg.Workers))

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		p.dispatch(ctx, func(job *webhook.Job) bool {
			select {
			case ch <- job:
				return true
			case <-ctx.Done():
				return false
			}
		})

		select {
		case <-ctx.Done():
			close(ch)
			wg.Wait()
			p.logger.Info("任务池已停止")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce 在当前协程中领取并执行一批到期任务,返回执行的任务数
func (p *Pool) RunOnce(ctx context.Context) (int, error) {
	n := 0
	err := p.dispatch(ctx, func(job *webhook.Job) bool {
		p.process(ctx, job)
		n++
		return true
	})
	return n, err
}

// dispatch 回收超时任务,领取到期任务交给deliver;deliver返回false时停止
func (p *Pool) dispatch(ctx context.Context, deliver func(job *webhook.Job) bool) error {
	now := p.clock.Now()

	reclaimed, err := p.jobs.ReclaimStale(ctx, now.Add(-p.cfg.VisibilityTimeout), now)
	if err != nil {
		p.logger.Error("回收超时任务失败", zap.Error(err))
	} else if reclaimed > 0 {
		p.logger.Warn("回收超时任务", zap.Int64("count", reclaimed))
	}

	due, err := p.jobs.ListDue(ctx, now, p.cfg.BatchSize)
	if err != nil {
		p.logger.Error("查询到期任务失败", zap.Error(err))
		return err
	}

	for _, job := range due {
		ok, err := p.jobs.Claim(ctx, job.ID, now)
		if err != nil {
			p.logger.Error("领取任务失败", zap.String("job_id", job.ID), zap.Error(err))
			continue
		}
		if !ok {
			continue // 已被其他实例领取
		}
		job.Status = webhook.JobProcessing
		if !deliver(job) {
			return ctx.Err()
		}
	}
	return nil
}

// process 执行任务并记录结果
func (p *Pool) process(ctx context.Context, job *webhook.Job) {
	start := time.Now()
	// 处理超时后仍要写回结果,状态更新不受处理超时约束
	markCtx := context.WithoutCancel(ctx)

	runCtx, cancel := context.WithTimeout(ctx, p.cfg.VisibilityTimeout)
	defer cancel()
	runCtx, span := tracing.StartSpan(runCtx, "queue", "job."+job.Type)
	err := p.handle(runCtx, job)
	tracing.End(span, err)

	seconds := time.Since(start).Seconds()
	now := p.clock.Now()
	log := p.logger.With(
		zap.String("job_id", job.ID),
		zap.String("job_type", job.Type),
	)

	if err == nil {
		if err := p.jobs.MarkSucceeded(markCtx, job.ID, now); err != nil {
			log.Error("更新任务状态失败", zap.Error(err))
		}
		metrics.RecordJob(job.Type, "succeeded", seconds)
		return
	}

	attempts := job.Attempts + 1
	var permanent *backoff.PermanentError
	if attempts >= job.MaxAttempts || errors.As(err, &permanent) {
		if err := p.jobs.MarkFailed(markCtx, job.ID, attempts, err.Error(), now); err != nil {
			log.Error("更新任务状态失败", zap.Error(err))
		}
		metrics.RecordJob(job.Type, "failed", seconds)
		log.Error("任务执行失败,已停止重试,需要人工处理",
			zap.Int("attempts", attempts),
			zap.Error(err),
		)
		return
	}

	delay := RetryDelay(p.cfg.BackoffInitial, p.cfg.BackoffMax, attempts)
	if err := p.jobs.MarkRetry(markCtx, job.ID, attempts, now.Add(delay), err.Error(), now); err != nil {
		log.Error("更新任务状态失败", zap.Error(err))
	}
	metrics.RecordJob(job.Type, "retry", seconds)
	log.Warn("任务执行失败,稍后重试",
		zap.Int("attempts", attempts),
		zap.Duration("delay", delay),
		zap.Error(err),
	)
}

func (p *Pool) handle(ctx context.Context, job *webhook.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("任务处理panic: %v", r)
		}
	}()
	return p.handler.Handle(ctx, job)
}

// RetryDelay 第attempts次失败后的等待时间: initial * 2^(attempts-1),不超过maxDelay
func RetryDelay(initial, maxDelay time.Duration, attempts int) time.Duration {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = initial
	b.Multiplier = 2
	b.RandomizationFactor = 0
	b.MaxInterval = maxDelay
	b.MaxElapsedTime = 0
	b.Reset()

	delay := initial
	for i := 0; i < attempts; i++ {
		delay = b.NextBackOff()
	}
	return delay
}
