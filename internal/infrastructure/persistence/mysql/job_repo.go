package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/storefront/internal/domain/webhook"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// jobRepository 持久化任务队列
// 任务ID即幂等键,INSERT ... ON CONFLICT DO NOTHING保证同一事件只入队一次
type jobRepository struct {
	db *gorm.DB
}

// NewJobRepository 创建任务仓储
func NewJobRepository(db *gorm.DB) webhook.JobRepository {
	return &jobRepository{db: db}
}

// Enqueue 不存在时插入
func (r *jobRepository) Enqueue(ctx context.Context, job *webhook.Job) (bool, error) {
	result := dbFrom(ctx, r.db).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(toJobModel(job))
	if result.Error != nil {
		if isDuplicateError(result.Error) {
			return false, nil
		}
		return false, apperrors.Wrap(result.Error, "任务入队失败")
	}
	return result.RowsAffected > 0, nil
}

func (r *jobRepository) FindByID(ctx context.Context, id string) (*webhook.Job, error) {
	var model JobModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, webhook.ErrJobNotFound
		}
		return nil, apperrors.Wrap(err, "查询任务失败")
	}
	return toJobEntity(&model), nil
}

func (r *jobRepository) ListDue(ctx context.Context, now time.Time, limit int) ([]*webhook.Job, error) {
	var models []JobModel
	err := dbFrom(ctx, r.db).
		Where("status = ? AND next_run_at <= ?", string(webhook.JobPending), now).
		Order("next_run_at ASC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询到期任务失败")
	}
	return toJobEntities(models), nil
}

// Claim 条件更新 PENDING → PROCESSING
// 多个实例同时轮询时只有一个能领取成功
func (r *jobRepository) Claim(ctx context.Context, id string, now time.Time) (bool, error) {
	result := dbFrom(ctx, r.db).Model(&JobModel{}).
		Where("id = ? AND status = ?", id, string(webhook.JobPending)).
		Updates(map[string]interface{}{
			"status":     string(webhook.JobProcessing),
			"claimed_at": now,
			"updated_at": now,
		})
	if result.Error != nil {
		return false, apperrors.Wrap(result.Error, "领取任务失败")
	}
	return result.RowsAffected > 0, nil
}

func (r *jobRepository) MarkSucceeded(ctx context.Context, id string, now time.Time) error {
	return r.update(ctx, id, webhook.JobProcessing, map[string]interface{}{
		"status":     string(webhook.JobSucceeded),
		"attempts":   gorm.Expr("attempts + 1"),
		"last_error": "",
		"updated_at": now,
	})
}

func (r *jobRepository) MarkRetry(ctx context.Context, id string, attempts int, nextRunAt time.Time, lastErr string, now time.Time) error {
	return r.update(ctx, id, webhook.JobProcessing, map[string]interface{}{
		"status":      string(webhook.JobPending),
		"attempts":    attempts,
		"next_run_at": nextRunAt,
		"last_error":  lastErr,
		"claimed_at":  nil,
		"updated_at":  now,
	})
}

func (r *jobRepository) MarkFailed(ctx context.Context, id string, attempts int, lastErr string, now time.Time) error {
	return r.update(ctx, id, webhook.JobProcessing, map[string]interface{}{
		"status":     string(webhook.JobFailed),
		"attempts":   attempts,
		"last_error": lastErr,
		"claimed_at": nil,
		"updated_at": now,
	})
}

// ReclaimStale 处理中超时的任务(处理超时或实例崩溃)计一次失败
// 达到最大次数的直接置为FAILED,其余放回队列
func (r *jobRepository) ReclaimStale(ctx context.Context, before, now time.Time) (int64, error) {
	var total int64
	err := dbFrom(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		stale := func() *gorm.DB {
			return tx.Model(&JobModel{}).
				Where("status = ? AND claimed_at < ?", string(webhook.JobProcessing), before)
		}

		failed := stale().
			Where("attempts + 1 >= max_attempts").
			Updates(map[string]interface{}{
				"status":     string(webhook.JobFailed),
				"attempts":   gorm.Expr("attempts + 1"),
				"last_error": webhook.ErrVisibilityTimeout.Error(),
				"claimed_at": nil,
				"updated_at": now,
			})
		if failed.Error != nil {
			return failed.Error
		}

		requeued := stale().
			Updates(map[string]interface{}{
				"status":      string(webhook.JobPending),
				"attempts":    gorm.Expr("attempts + 1"),
				"last_error":  webhook.ErrVisibilityTimeout.Error(),
				"next_run_at": now,
				"claimed_at":  nil,
				"updated_at":  now,
			})
		if requeued.Error != nil {
			return requeued.Error
		}
		total = failed.RowsAffected + requeued.RowsAffected
		return nil
	})
	if err != nil {
		return 0, apperrors.Wrap(err, "回收超时任务失败")
	}
	return total, nil
}

func (r *jobRepository) ListFailed(ctx context.Context, limit int) ([]*webhook.Job, error) {
	var models []JobModel
	err := dbFrom(ctx, r.db).
		Where("status = ?", string(webhook.JobFailed)).
		Order("updated_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询失败任务失败")
	}
	return toJobEntities(models), nil
}

// Rearm FAILED → PENDING
func (r *jobRepository) Rearm(ctx context.Context, id string, now time.Time) error {
	result := dbFrom(ctx, r.db).Model(&JobModel{}).
		Where("id = ? AND status = ?", id, string(webhook.JobFailed)).
		Updates(map[string]interface{}{
			"status":      string(webhook.JobPending),
			"attempts":    0,
			"next_run_at": now,
			"updated_at":  now,
		})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "重置任务失败")
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindByID(ctx, id); err != nil {
			return err
		}
		return webhook.ErrJobNotFailed
	}
	return nil
}

// update 只更新仍处于from状态的任务,被回收后迟到的结果会被忽略
func (r *jobRepository) update(ctx context.Context, id string, from webhook.JobStatus, values map[string]interface{}) error {
	result := dbFrom(ctx, r.db).Model(&JobModel{}).
		Where("id = ? AND status = ?", id, string(from)).
		Updates(values)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新任务状态失败")
	}
	return nil
}

func toJobModel(j *webhook.Job) *JobModel {
	return &JobModel{
		ID:          j.ID,
		Type:        j.Type,
		Payload:     j.Payload,
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		NextRunAt:   j.NextRunAt,
		LastError:   j.LastError,
		ClaimedAt:   j.ClaimedAt,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
	}
}

func toJobEntity(m *JobModel) *webhook.Job {
	return &webhook.Job{
		ID:          m.ID,
		Type:        m.Type,
		Payload:     m.Payload,
		Status:      webhook.JobStatus(m.Status),
		Attempts:    m.Attempts,
		MaxAttempts: m.MaxAttempts,
		NextRunAt:   m.NextRunAt,
		LastError:   m.LastError,
		ClaimedAt:   m.ClaimedAt,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

func toJobEntities(models []JobModel) []*webhook.Job {
	jobs := make([]*webhook.Job, len(models))
	for i := range models {
		jobs[i] = toJobEntity(&models[i])
	}
	return jobs
}
