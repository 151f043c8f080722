package webhook

import (
	"context"

	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/pkg/clock"
)

// JobAdmin 失败任务的人工处理
type JobAdmin struct {
	jobs   webhook.JobRepository
	clock  clock.Clock
	logger *zap.Logger
}

// NewJobAdmin 创建任务管理
func NewJobAdmin(jobs webhook.JobRepository, clk clock.Clock, logger *zap.Logger) *JobAdmin {
	return &JobAdmin{jobs: jobs, clock: clk, logger: logger}
}

// ListFailed 最近失败的任务
func (a *JobAdmin) ListFailed(ctx context.Context, limit int) ([]*webhook.Job, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	return a.jobs.ListFailed(ctx, limit)
}

// RetryJob 重新排队一个FAILED任务
// 任务不存在返回ErrJobNotFound,不是FAILED状态返回ErrJobNotFailed
func (a *JobAdmin) RetryJob(ctx context.Context, id string) error {
	if err := a.jobs.Rearm(ctx, id, a.clock.Now()); err != nil {
		return err
	}
	a.logger.Info("失败任务已重新排队", zap.String("job_id", id))
	return nil
}
