package dto

import (
	"github.com/xiebiao/storefront/internal/domain/cart"
)

// timeLayout 响应中的时间格式
const timeLayout = "2006-01-02T15:04:05Z07:00"

// AddCartItemRequest 加购请求
// 预约类商品必须传slot_id,数量只能为1
type AddCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required" example:"7d9c5c1e-6a55-4d3b-9d2a-2f1f3c1b0a11"`
	PriceID   string `json:"price_id" binding:"required" example:"a1f0c6b2-3c9d-4b1e-8f55-0e2d1c9b7a33"`
	Quantity  int    `json:"quantity" binding:"omitempty,min=1,max=999" example:"1"`
	SlotID    string `json:"slot_id" binding:"omitempty" example:""`
}

// CartItemResponse 购物车明细
type CartItemResponse struct {
	ID            string `json:"id"`
	ProductID     string `json:"product_id"`
	PriceID       string `json:"price_id"`
	Quantity      int    `json:"quantity"`
	SlotID        string `json:"slot_id,omitempty"`
	StockItemID   string `json:"stock_item_id,omitempty"`
	HoldID        string `json:"hold_id,omitempty"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// CartResponse 购物车
type CartResponse struct {
	ID         string             `json:"id"`
	CustomerID string             `json:"customer_id"`
	ExpiresAt  string             `json:"expires_at" example:"2024-05-01T09:30:00Z"`
	Items      []CartItemResponse `json:"items"`
	CreatedAt  string             `json:"created_at"`
}

// ToCartItemResponse 明细 → 响应
func ToCartItemResponse(item *cart.CartItem) CartItemResponse {
	return CartItemResponse{
		ID:            item.ID,
		ProductID:     item.ProductID,
		PriceID:       item.PriceID,
		Quantity:      item.Quantity,
		SlotID:        item.SlotID,
		StockItemID:   item.StockItemID,
		HoldID:        item.HoldID,
		ReservationID: item.ReservationID,
	}
}

// ToCartResponse 购物车 → 响应
func ToCartResponse(c *cart.Cart) *CartResponse {
	items := make([]CartItemResponse, len(c.Items))
	for i := range c.Items {
		items[i] = ToCartItemResponse(&c.Items[i])
	}
	return &CartResponse{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		ExpiresAt:  c.ExpiresAt.UTC().Format(timeLayout),
		Items:      items,
		CreatedAt:  c.CreatedAt.UTC().Format(timeLayout),
	}
}
