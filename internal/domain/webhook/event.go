package webhook

import (
	"encoding/json"
	"fmt"
)

// 支付网关事件类型
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventPaymentIntentFailed      = "payment_intent.payment_failed"
	EventPaymentIntentSucceeded   = "payment_intent.succeeded"
	EventChargeRefunded           = "charge.refunded"
)

// 内部履约任务类型
const (
	TaskFulfillDigital = "fulfill-digital"
	TaskConfirmBooking = "confirm-booking"
)

// Event 支付网关事件 {id, type, data:{object}}
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// EventData 事件数据
type EventData struct {
	Object json.RawMessage `json:"object"`
}

// ParseEvent 解析事件
func ParseEvent(payload []byte) (*Event, error) {
	var ev Event
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	if ev.ID == "" || ev.Type == "" {
		return nil, ErrMalformedEvent
	}
	return &ev, nil
}

// CheckoutSessionObject checkout.session.completed事件对象
type CheckoutSessionObject struct {
	ID                string `json:"id"`
	ClientReferenceID string `json:"client_reference_id"` // 订单ID
	PaymentIntent     string `json:"payment_intent"`
	AmountTotal       int64  `json:"amount_total"`
	Currency          string `json:"currency"`
}

// PaymentIntentObject payment_intent.*事件对象
type PaymentIntentObject struct {
	ID string `json:"id"`
}

// DecodeObject 解析事件对象
func (e *Event) DecodeObject(v interface{}) error {
	if len(e.Data.Object) == 0 {
		return ErrMalformedEvent
	}
	if err := json.Unmarshal(e.Data.Object, v); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedEvent, err)
	}
	return nil
}

// FulfillmentTask 履约任务载荷
type FulfillmentTask struct {
	OrderID       string `json:"order_id"`
	OrderItemID   string `json:"order_item_id"`
	CustomerID    string `json:"customer_id"`
	ProductID     string `json:"product_id"`
	Quantity      int    `json:"quantity"`
	ReservationID string `json:"reservation_id,omitempty"`
}

// FulfillDigitalJobID 数字商品交付任务ID
func FulfillDigitalJobID(orderItemID string) string {
	return TaskFulfillDigital + ":" + orderItemID
}

// ConfirmBookingJobID 预约确认通知任务ID
func ConfirmBookingJobID(reservationID string) string {
	return TaskConfirmBooking + ":" + reservationID
}
