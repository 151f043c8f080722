package handler

import (
	"github.com/gin-gonic/gin"

	cartapp "github.com/xiebiao/storefront/internal/application/cart"
	"github.com/xiebiao/storefront/internal/interface/http/dto"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
	"github.com/xiebiao/storefront/pkg/response"
)

// CartHandler 购物车HTTP处理器
type CartHandler struct {
	carts *cartapp.Service
}

// NewCartHandler 创建购物车处理器
func NewCartHandler(carts *cartapp.Service) *CartHandler {
	return &CartHandler{carts: carts}
}

// CreateCart 创建购物车
// @Summary      创建购物车
// @Tags         购物车
// @Produce      json
// @Security     BearerAuth
// @Success      200 {object} response.Response{data=dto.CartResponse}
// @Failure      401 {object} response.Response "未登录"
// @Router       /api/v1/carts [post]
func (h *CartHandler) CreateCart(c *gin.Context) {
	customerID := middleware.MustGetCustomerID(c)

	cart, err := h.carts.CreateCart(c.Request.Context(), customerID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToCartResponse(cart))
}

// GetCart 查询购物车
// @Summary      查询购物车
// @Tags         购物车
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "购物车ID"
// @Success      200 {object} response.Response{data=dto.CartResponse}
// @Failure      404 {object} response.Response "购物车不存在"
// @Router       /api/v1/carts/{id} [get]
func (h *CartHandler) GetCart(c *gin.Context) {
	cart, err := h.carts.GetCart(c.Request.Context(), c.Param("id"), middleware.MustGetCustomerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToCartResponse(cart))
}

// AddItem 加入购物车
// @Summary      加入购物车
// @Description  数字商品占用库存,预约类商品占用时段名额,占用随购物车过期释放
// @Tags         购物车
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "购物车ID"
// @Param        request body dto.AddCartItemRequest true "商品信息"
// @Success      200 {object} response.Response{data=dto.CartItemResponse}
// @Failure      400 {object} response.Response "参数错误"
// @Failure      404 {object} response.Response "购物车或商品不存在"
// @Router       /api/v1/carts/{id}/items [post]
func (h *CartHandler) AddItem(c *gin.Context) {
	var req dto.AddCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, apperrors.WithDetail(apperrors.ErrBindError, "参数错误: %v", err))
		return
	}

	item, err := h.carts.AddItem(c.Request.Context(), cartapp.AddItemInput{
		CartID:     c.Param("id"),
		CustomerID: middleware.MustGetCustomerID(c),
		ProductID:  req.ProductID,
		PriceID:    req.PriceID,
		Quantity:   req.Quantity,
		SlotID:     req.SlotID,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, dto.ToCartItemResponse(item))
}

// RemoveItem 删除购物车明细
// @Summary      删除购物车明细
// @Description  同时释放该明细持有的库存占用或时段预约
// @Tags         购物车
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "购物车ID"
// @Param        itemId path string true "明细ID"
// @Success      200 {object} response.Response
// @Router       /api/v1/carts/{id}/items/{itemId} [delete]
func (h *CartHandler) RemoveItem(c *gin.Context) {
	err := h.carts.RemoveItem(c.Request.Context(), c.Param("id"), middleware.MustGetCustomerID(c), c.Param("itemId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, nil)
}

// GetTotal 购物车金额
// @Summary      购物车金额
// @Tags         购物车
// @Produce      json
// @Security     BearerAuth
// @Param        id path string true "购物车ID"
// @Success      200 {object} response.Response{data=cartapp.Total}
// @Router       /api/v1/carts/{id}/total [get]
func (h *CartHandler) GetTotal(c *gin.Context) {
	total, err := h.carts.CalculateTotal(c.Request.Context(), c.Param("id"), middleware.MustGetCustomerID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, total)
}
