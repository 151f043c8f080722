package webhook

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobPending    JobStatus = "PENDING"
	JobProcessing JobStatus = "PROCESSING"
	JobSucceeded  JobStatus = "SUCCEEDED"
	JobFailed     JobStatus = "FAILED" // 重试耗尽,等待人工处理,不会被删除
)

// DefaultMaxAttempts 默认最大尝试次数
const DefaultMaxAttempts = 8

// Job 持久化任务
// ID即幂等键:网关事件使用事件ID,履约任务使用"类型:明细ID"
type Job struct {
	ID          string
	Type        string
	Payload     []byte
	Status      JobStatus
	Attempts    int
	MaxAttempts int
	NextRunAt   time.Time
	LastError   string
	ClaimedAt   *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewJob 创建待执行任务
func NewJob(id, typ string, payload []byte, maxAttempts int, now time.Time) *Job {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Job{
		ID:          id,
		Type:        typ,
		Payload:     payload,
		Status:      JobPending,
		MaxAttempts: maxAttempts,
		NextRunAt:   now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// Exhausted 本次失败后是否已耗尽重试次数
func (j *Job) Exhausted() bool {
	return j.Attempts >= j.MaxAttempts
}
