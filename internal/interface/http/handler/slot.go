package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/interface/http/dto"
	"github.com/xiebiao/storefront/pkg/clock"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/response"
)

// defaultSlotWindow 未指定to时的查询范围
const defaultSlotWindow = 7 * 24 * time.Hour

// SlotHandler 可预约时段查询
type SlotHandler struct {
	catalog catalog.Reader
	clock   clock.Clock
}

// NewSlotHandler 创建时段处理器
func NewSlotHandler(catalogReader catalog.Reader, clk clock.Clock) *SlotHandler {
	return &SlotHandler{catalog: catalogReader, clock: clk}
}

// ListSlots 查询资源仍有名额的时段
// @Summary      可预约时段
// @Tags         预约
// @Produce      json
// @Param        resource_id query string true "资源ID"
// @Param        from query string false "开始时间(RFC3339),默认当前时间"
// @Param        to query string false "结束时间(RFC3339),默认from之后7天"
// @Success      200 {object} response.Response{data=[]dto.SlotResponse}
// @Router       /api/v1/slots [get]
func (h *SlotHandler) ListSlots(c *gin.Context) {
	var req dto.ListSlotsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, apperrors.WithDetail(apperrors.ErrBindError, "参数错误: %v", err))
		return
	}
	if req.From.IsZero() {
		req.From = h.clock.Now()
	}
	if req.To.IsZero() {
		req.To = req.From.Add(defaultSlotWindow)
	}
	if !req.To.After(req.From) {
		response.Error(c, apperrors.WithDetail(apperrors.ErrInvalidParams, "to必须晚于from"))
		return
	}

	slots, err := h.catalog.ListAvailableSlots(c.Request.Context(), req.ResourceID, req.From, req.To)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToSlotResponses(slots))
}
