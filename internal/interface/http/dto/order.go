package dto

import (
	"fmt"

	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/payment"
)

// CreateOrderRequest 由购物车生成订单
type CreateOrderRequest struct {
	CartID string `json:"cart_id" binding:"required" example:"3c2b1a09-8f7e-4d6c-b5a4-9382716f5e4d"`
}

// ListOrdersRequest 订单列表请求
type ListOrdersRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1" example:"1"`
	PageSize int `form:"page_size" binding:"omitempty,min=1,max=100" example:"20"`
}

// RefundRequest 退款请求
// amount为0表示退还剩余全部可退金额;restock为true时回补order_item_ids中的数字商品库存,
// order_item_ids为空表示全部明细
type RefundRequest struct {
	Amount       int64    `json:"amount" binding:"omitempty,min=1" example:"1500"`
	Reason       string   `json:"reason" binding:"omitempty,max=200" example:"requested_by_customer"`
	Restock      bool     `json:"restock" example:"true"`
	OrderItemIDs []string `json:"order_item_ids"`
}

// OrderItemResponse 订单明细
type OrderItemResponse struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	PriceID         string `json:"price_id"`
	Quantity        int    `json:"quantity"`
	UnitAmount      int64  `json:"unit_amount"`
	TotalAmount     int64  `json:"total_amount"`
	FulfillmentType string `json:"fulfillment_type" example:"DIGITAL"`
	ReservationID   string `json:"reservation_id,omitempty"`
}

// OrderResponse 订单
type OrderResponse struct {
	ID                string              `json:"id"`
	OrderNo           string              `json:"order_no" example:"ORD1714554000123456"`
	Status            string              `json:"status" example:"DRAFT"`
	Currency          string              `json:"currency" example:"usd"`
	TotalAmount       int64               `json:"total_amount" example:"3000"`   // 最小货币单位
	TotalDisplay      string              `json:"total_display" example:"30.00"` // 方便前端显示
	CheckoutSessionID string              `json:"checkout_session_id,omitempty"`
	Items             []OrderItemResponse `json:"items"`
	CreatedAt         string              `json:"created_at"`
	UpdatedAt         string              `json:"updated_at"`
}

// ToOrderResponse 订单 → 响应
func ToOrderResponse(o *order.Order) *OrderResponse {
	items := make([]OrderItemResponse, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemResponse{
			ID:              item.ID,
			ProductID:       item.ProductID,
			PriceID:         item.PriceID,
			Quantity:        item.Quantity,
			UnitAmount:      item.UnitAmount,
			TotalAmount:     item.TotalAmount,
			FulfillmentType: string(item.FulfillmentType),
			ReservationID:   item.ReservationID,
		}
	}
	return &OrderResponse{
		ID:                o.ID,
		OrderNo:           o.OrderNo,
		Status:            o.Status.String(),
		Currency:          o.Currency,
		TotalAmount:       o.TotalAmount,
		TotalDisplay:      FormatAmount(o.TotalAmount),
		CheckoutSessionID: o.CheckoutSessionID,
		Items:             items,
		CreatedAt:         o.CreatedAt.UTC().Format(timeLayout),
		UpdatedAt:         o.UpdatedAt.UTC().Format(timeLayout),
	}
}

// RefundResponse 退款结果
type RefundResponse struct {
	ID              string `json:"id"`
	OrderID         string `json:"order_id"`
	Amount          int64  `json:"amount"`
	Status          string `json:"status" example:"SUCCEEDED"`
	Reason          string `json:"reason,omitempty"`
	Restock         bool   `json:"restock"`
	GatewayRefundID string `json:"gateway_refund_id,omitempty"`
	CreatedAt       string `json:"created_at"`
}

// ToRefundResponse 退款 → 响应
func ToRefundResponse(r *payment.Refund) *RefundResponse {
	return &RefundResponse{
		ID:              r.ID,
		OrderID:         r.OrderID,
		Amount:          r.Amount,
		Status:          string(r.Status),
		Reason:          r.Reason,
		Restock:         r.Restock,
		GatewayRefundID: r.GatewayRefundID,
		CreatedAt:       r.CreatedAt.UTC().Format(timeLayout),
	}
}

// FormatAmount 最小货币单位 → 两位小数
// 例如:5900 → "59.00"
func FormatAmount(minor int64) string {
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	return fmt.Sprintf("%s%d.%02d", sign, minor/100, minor%100)
}
