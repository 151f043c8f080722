package handler

import (
	"github.com/gin-gonic/gin"

	orderapp "github.com/xiebiao/storefront/internal/application/order"
	"github.com/xiebiao/storefront/internal/interface/http/dto"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/response"
)

// OrderHandler 订单HTTP处理器
type OrderHandler struct {
	pipeline *orderapp.PipelineService
	checkout *orderapp.CheckoutService
	refunds  *orderapp.RefundService
}

// NewOrderHandler 创建订单处理器
func NewOrderHandler(
	pipeline *orderapp.PipelineService,
	checkout *orderapp.CheckoutService,
	refunds *orderapp.RefundService,
) *OrderHandler {
	return &OrderHandler{
		pipeline: pipeline,
		checkout: checkout,
		refunds:  refunds,
	}
}

// CreateOrder 由购物车生成订单
// @Summary      创建订单
// @Description  快照购物车明细和价格生成DRAFT订单,占用从购物车转移到订单,购物车被清空
// @Tags         订单模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        request body dto.CreateOrderRequest true "购物车"
// @Success      200 {object} response.Response{data=dto.OrderResponse} "下单成功"
// @Failure      401 {object} response.Response "未登录"
// @Failure      404 {object} response.Response "购物车不存在"
// @Failure      40013 {object} response.Response "购物车为空"
// @Router       /api/v1/orders [post]
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	var req dto.CreateOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.WithDetail(apperrors.ErrBindError, "参数错误: %v", err))
		return
	}

	o, err := h.pipeline.CreateFromCart(c.Request.Context(), req.CartID, middleware.MustGetCustomerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

// GetOrder 查询订单
// @Summary      查询订单
// @Tags         订单模块
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "订单ID"
// @Success      200 {object} response.Response{data=dto.OrderResponse}
// @Failure      404 {object} response.Response "订单不存在"
// @Router       /api/v1/orders/{id} [get]
func (h *OrderHandler) GetOrder(c *gin.Context) {
	o, err := h.pipeline.GetOrder(c.Request.Context(), c.Param("id"), middleware.MustGetCustomerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToOrderResponse(o))
}

// ListOrders 当前客户的订单列表
// @Summary      订单列表
// @Tags         订单模块
// @Produce      json
// @Security     BearerAuth
// @Param        page query int false "页码" default(1)
// @Param        page_size query int false "每页数量" default(20)
// @Success      200 {object} response.Response{data=response.PageData{list=[]dto.OrderResponse}}
// @Router       /api/v1/orders [get]
func (h *OrderHandler) ListOrders(c *gin.Context) {
	var req dto.ListOrdersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.Error(c, apperrors.WithDetail(apperrors.ErrBindError, "参数错误: %v", err))
		return
	}
	if req.Page == 0 {
		req.Page = 1
	}
	if req.PageSize == 0 {
		req.PageSize = 20
	}

	orders, total, err := h.pipeline.ListOrders(c.Request.Context(), middleware.MustGetCustomerID(c), req.Page, req.PageSize)
	if err != nil {
		response.Error(c, err)
		return
	}

	list := make([]*dto.OrderResponse, len(orders))
	for i, o := range orders {
		list[i] = dto.ToOrderResponse(o)
	}
	response.SuccessWithPage(c, list, total, req.Page, req.PageSize)
}

// Checkout 发起支付
// @Summary      发起支付
// @Description  为DRAFT订单创建支付会话,订单进入PENDING,返回支付页地址
// @Tags         订单模块
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "订单ID"
// @Success      200 {object} response.Response{data=orderapp.CheckoutResult}
// @Failure      40002 {object} response.Response "订单不是草稿状态"
// @Failure      50003 {object} response.Response "支付网关不可用"
// @Router       /api/v1/orders/{id}/checkout [post]
func (h *OrderHandler) Checkout(c *gin.Context) {
	result, err := h.checkout.Checkout(c.Request.Context(), c.Param("id"), middleware.MustGetCustomerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, result)
}

// Refund 退款
// @Summary      退款
// @Description  全额或部分退款,可选回补数字商品库存;网关退款失败时退款记录标记为FAILED
// @Tags         订单模块
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "订单ID"
// @Param        request body dto.RefundRequest true "退款信息"
// @Success      200 {object} response.Response{data=dto.RefundResponse}
// @Failure      40014 {object} response.Response "退款金额超出实付"
// @Failure      40015 {object} response.Response "回补数量超出已扣减数量"
// @Router       /api/v1/orders/{id}/refunds [post]
func (h *OrderHandler) Refund(c *gin.Context) {
	var req dto.RefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.WithDetail(apperrors.ErrBindError, "参数错误: %v", err))
		return
	}

	refund, err := h.refunds.Refund(c.Request.Context(), orderapp.RefundInput{
		OrderID:      c.Param("id"),
		CustomerID:   middleware.MustGetCustomerID(c),
		Amount:       req.Amount,
		Reason:       req.Reason,
		Restock:      req.Restock,
		OrderItemIDs: req.OrderItemIDs,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToRefundResponse(refund))
}
