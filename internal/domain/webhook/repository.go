package webhook

import (
	"context"
	"time"
)

// JobRepository 持久化任务队列
type JobRepository interface {
	// Enqueue 不存在时插入;ID已存在(无论处于何种状态)时不做任何修改,返回false
	Enqueue(ctx context.Context, job *Job) (bool, error)

	FindByID(ctx context.Context, id string) (*Job, error)

	// ListDue 查询到期的PENDING任务
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Job, error)

	// Claim 条件更新 PENDING → PROCESSING,返回是否抢占成功
	Claim(ctx context.Context, id string, now time.Time) (bool, error)

	MarkSucceeded(ctx context.Context, id string, now time.Time) error

	// MarkRetry 记录失败并安排下次执行(状态回到PENDING)
	MarkRetry(ctx context.Context, id string, attempts int, nextRunAt time.Time, lastErr string, now time.Time) error

	// MarkFailed 重试耗尽
	MarkFailed(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error

	// ReclaimStale 把领取时间早于before的PROCESSING任务计一次失败:
	// 次数耗尽的置为FAILED,其余放回PENDING
	ReclaimStale(ctx context.Context, before, now time.Time) (int64, error)

	ListFailed(ctx context.Context, limit int) ([]*Job, error)

	// Rearm FAILED → PENDING,重置尝试次数
	Rearm(ctx context.Context, id string, now time.Time) error
}
