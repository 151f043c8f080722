package order

import (
	"time"
)

// Status 订单状态
// DRAFT → PENDING → PAID → FULFILLED
// DRAFT | PENDING → CANCELLED
type Status string

const (
	StatusDraft     Status = "DRAFT"     // 草稿(由购物车生成,未发起支付)
	StatusPending   Status = "PENDING"   // 待支付(已创建支付会话)
	StatusPaid      Status = "PAID"      // 已支付
	StatusFulfilled Status = "FULFILLED" // 已履约(终态)
	StatusCancelled Status = "CANCELLED" // 已取消(终态)
)

// String 实现Stringer接口(方便日志输出)
func (s Status) String() string {
	return string(s)
}

// transitions 合法的状态转换规则
var transitions = map[Status][]Status{
	StatusDraft:     {StatusPending, StatusCancelled},
	StatusPending:   {StatusPaid, StatusCancelled},
	StatusPaid:      {StatusFulfilled},
	StatusFulfilled: {},
	StatusCancelled: {},
}

// IsTerminal 是否终态
func (s Status) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// FulfillmentType 履约方式
type FulfillmentType string

const (
	FulfillmentDigital    FulfillmentType = "DIGITAL"
	FulfillmentBooking    FulfillmentType = "BOOKING"
	FulfillmentConsulting FulfillmentType = "CONSULTING"
)

// Order 订单实体(聚合根)
type Order struct {
	ID                string
	OrderNo           string // 订单号(展示用,全局唯一)
	CustomerID        string
	CartID            string
	Status            Status
	Currency          string
	TotalAmount       int64 // 订单总金额(最小货币单位),冗余字段
	CheckoutSessionID string
	Items             []OrderItem
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// OrderItem 订单明细项
// UnitAmount/TotalAmount是下单时的价格快照,
// StockItemID/HoldID/ReservationID从购物车明细继承,支付结果到达时据此扣减或释放
type OrderItem struct {
	ID              string
	OrderID         string
	ProductID       string
	PriceID         string
	Quantity        int
	UnitAmount      int64
	TotalAmount     int64
	FulfillmentType FulfillmentType
	StockItemID     string
	HoldID          string
	ReservationID   string
}

// HasStockHold 明细是否持有库存占用
func (i *OrderItem) HasStockHold() bool {
	return i.StockItemID != "" && i.HoldID != ""
}

// HasReservation 明细是否持有时段预约
func (i *OrderItem) HasReservation() bool {
	return i.ReservationID != ""
}

// NewOrder 创建草稿订单(工厂方法)
func NewOrder(id, orderNo, customerID, cartID, currency string, items []OrderItem, now time.Time) *Order {
	o := &Order{
		ID:         id,
		OrderNo:    orderNo,
		CustomerID: customerID,
		CartID:     cartID,
		Status:     StatusDraft,
		Currency:   currency,
		Items:      items,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	for i := range o.Items {
		o.Items[i].OrderID = id
	}
	o.TotalAmount = o.CalculateTotal()
	return o
}

// CanTransitionTo 检查是否可以转换到目标状态
func (o *Order) CanTransitionTo(target Status) bool {
	allowedTargets, exists := transitions[o.Status]
	if !exists {
		return false
	}

	for _, allowed := range allowedTargets {
		if allowed == target {
			return true
		}
	}
	return false
}

// TransitionTo 状态转换
func (o *Order) TransitionTo(target Status, now time.Time) error {
	if !o.CanTransitionTo(target) {
		return ErrInvalidStatusTransition
	}
	o.Status = target
	o.UpdatedAt = now
	return nil
}

// MarkPending 发起支付
func (o *Order) MarkPending(now time.Time) error {
	if o.Status != StatusDraft {
		return ErrOrderNotInDraftState
	}
	return o.TransitionTo(StatusPending, now)
}

// MarkPaid 支付成功
func (o *Order) MarkPaid(now time.Time) error {
	return o.TransitionTo(StatusPaid, now)
}

// MarkFulfilled 履约完成
func (o *Order) MarkFulfilled(now time.Time) error {
	return o.TransitionTo(StatusFulfilled, now)
}

// Cancel 取消订单
func (o *Order) Cancel(now time.Time) error {
	return o.TransitionTo(StatusCancelled, now)
}

// CalculateTotal 计算订单总金额
func (o *Order) CalculateTotal() int64 {
	var total int64
	for _, item := range o.Items {
		total += item.TotalAmount
	}
	return total
}

// IsOwnedBy 检查订单是否属于指定客户
func (o *Order) IsOwnedBy(customerID string) bool {
	return o.CustomerID == customerID
}

// FindItem 查找明细
func (o *Order) FindItem(itemID string) (*OrderItem, bool) {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i], true
		}
	}
	return nil, false
}

// HoldIDs 订单持有的全部库存占用ID
func (o *Order) HoldIDs() []string {
	ids := make([]string, 0, len(o.Items))
	for _, item := range o.Items {
		if item.HoldID != "" {
			ids = append(ids, item.HoldID)
		}
	}
	return ids
}
