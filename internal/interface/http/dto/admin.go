package dto

import (
	"time"

	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/webhook"
)

// LedgerExportRequest 流水导出过滤条件,全部可选
type LedgerExportRequest struct {
	StockItemID string    `form:"stock_item_id"`
	OrderID     string    `form:"order_id"`
	Since       time.Time `form:"since" time_format:"2006-01-02T15:04:05Z07:00"`
	Until       time.Time `form:"until" time_format:"2006-01-02T15:04:05Z07:00"`
}

// Filter 转换为仓储过滤条件
func (r *LedgerExportRequest) Filter() inventory.ExportFilter {
	return inventory.ExportFilter{
		StockItemID: r.StockItemID,
		OrderID:     r.OrderID,
		Since:       r.Since,
		Until:       r.Until,
	}
}

// ListJobsRequest 失败任务查询
type ListJobsRequest struct {
	Limit int `form:"limit" binding:"omitempty,min=1,max=200" example:"50"`
}

// JobResponse 任务
// 不返回payload,排查时按ID查库
type JobResponse struct {
	ID          string `json:"id"`
	Type        string `json:"type"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
	MaxAttempts int    `json:"max_attempts"`
	LastError   string `json:"last_error,omitempty"`
	NextRunAt   string `json:"next_run_at"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// ToJobResponses 任务列表 → 响应
func ToJobResponses(jobs []*webhook.Job) []JobResponse {
	out := make([]JobResponse, len(jobs))
	for i, j := range jobs {
		out[i] = JobResponse{
			ID:          j.ID,
			Type:        j.Type,
			Status:      string(j.Status),
			Attempts:    j.Attempts,
			MaxAttempts: j.MaxAttempts,
			LastError:   j.LastError,
			NextRunAt:   j.NextRunAt.UTC().Format(timeLayout),
			CreatedAt:   j.CreatedAt.UTC().Format(timeLayout),
			UpdatedAt:   j.UpdatedAt.UTC().Format(timeLayout),
		}
	}
	return out
}
