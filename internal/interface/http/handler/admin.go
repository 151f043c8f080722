package handler

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/application/ledger"
	webhookapp "github.com/xiebiao/storefront/internal/application/webhook"
	"github.com/xiebiao/storefront/internal/interface/http/dto"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/metrics"
	"github.com/xiebiao/storefront/pkg/response"
)

// AdminHandler 运营接口:流水导出与对账、失败任务管理
type AdminHandler struct {
	exporter   *ledger.Exporter
	reconciler *ledger.Reconciler
	jobs       *webhookapp.JobAdmin
	logger     *zap.Logger
}

// NewAdminHandler 创建运营处理器
func NewAdminHandler(
	exporter *ledger.Exporter,
	reconciler *ledger.Reconciler,
	jobs *webhookapp.JobAdmin,
	logger *zap.Logger,
) *AdminHandler {
	return &AdminHandler{
		exporter:   exporter,
		reconciler: reconciler,
		jobs:       jobs,
		logger:     logger,
	}
}

// ExportLedger 按(created_at, id)顺序导出库存流水,每行一个JSON对象
// @Summary      导出库存流水
// @Tags         运营
// @Produce      application/x-ndjson
// @Security     BearerAuth
// @Param        stock_item_id query string false "库存项ID"
// @Param        order_id query string false "订单ID"
// @Param        since query string false "开始时间(RFC3339)"
// @Param        until query string false "结束时间(RFC3339)"
// @Success      200 {string} string "NDJSON"
// @Router       /api/v1/admin/ledger/export [get]
func (h *AdminHandler) ExportLedger(c *gin.Context) {
	var req dto.LedgerExportRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, apperrors.WithDetail(apperrors.ErrBindError, "参数错误: %v", err))
		return
	}

	started := false
	exported := 0
	enc := json.NewEncoder(c.Writer)
	err := h.exporter.Export(c.Request.Context(), req.Filter(), func(records []ledger.Record) error {
		if !started {
			c.Header("Content-Type", "application/x-ndjson")
			c.Status(200)
			started = true
		}
		for i := range records {
			if err := enc.Encode(&records[i]); err != nil {
				return err
			}
		}
		exported += len(records)
		c.Writer.Flush()
		return nil
	})
	if err != nil {
		if !started {
			response.Error(c, err)
			return
		}
		// 响应头已发出,只能中断连接
		h.logger.Error("流水导出中断", zap.Int("exported", exported), zap.Error(err))
		c.Abort()
		return
	}
	if !started {
		c.Header("Content-Type", "application/x-ndjson")
		c.Status(200)
	}
	metrics.RecordLedgerExport("http", exported)
}

// Reconcile 重放流水并与存储的计数器比较
// @Summary      库存对账
// @Tags         运营
// @Produce      json
// @Security     BearerAuth
// @Param        stockItemId path string true "库存项ID"
// @Success      200 {object} response.Response{data=inventory.Drift}
// @Failure      404 {object} response.Response "库存项不存在"
// @Router       /api/v1/admin/ledger/reconcile/{stockItemId} [get]
func (h *AdminHandler) Reconcile(c *gin.Context) {
	drift, err := h.reconciler.Reconcile(c.Request.Context(), c.Param("stockItemId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if !drift.IsZero() {
		h.logger.Warn("库存计数器与流水不一致",
			zap.String("stock_item_id", drift.StockItemID),
			zap.Int("quantity_drift", drift.QuantityDrift),
			zap.Int("hold_drift", drift.HoldDrift),
		)
	}
	response.Success(c, drift)
}

// ListFailedJobs 重试耗尽的任务
// @Summary      失败任务列表
// @Tags         运营
// @Produce      json
// @Security     BearerAuth
// @Param        limit query int false "数量" default(50)
// @Success      200 {object} response.Response{data=[]dto.JobResponse}
// @Router       /api/v1/admin/webhook-jobs/failed [get]
func (h *AdminHandler) ListFailedJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, apperrors.WithDetail(apperrors.ErrBindError, "参数错误: %v", err))
		return
	}

	jobs, err := h.jobs.ListFailed(c.Request.Context(), req.Limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToJobResponses(jobs))
}

// RetryJob 重新执行失败任务
// @Summary      重试失败任务
// @Tags         运营
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "任务ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/admin/webhook-jobs/{id}/retry [post]
func (h *AdminHandler) RetryJob(c *gin.Context) {
	if err := h.jobs.RetryJob(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}
