package mysql

import (
	"time"
)

// =========================================
// GORM数据模型
// =========================================
// 这是infrastructure层的数据模型，包含GORM tag;
// domain层实体不依赖GORM,由Repository负责两者之间的转换

// ProductModel 商品
type ProductModel struct {
	ID         string           `gorm:"primaryKey;size:36"`
	Type       string           `gorm:"size:32;not null;comment:商品类型(DIGITAL/OFFLINE_SERVICE/ONLINE_CONSULTING)"`
	Title      string           `gorm:"size:200;not null;comment:商品名称"`
	Prices     []PriceModel     `gorm:"foreignKey:ProductID"`
	StockItems []StockItemModel `gorm:"foreignKey:ProductID"`
	Resources  []ResourceModel  `gorm:"foreignKey:ProductID"`
	CreatedAt  time.Time        `gorm:"comment:创建时间"`
	UpdatedAt  time.Time        `gorm:"comment:更新时间"`
}

func (ProductModel) TableName() string { return "products" }

// PriceModel 价格(金额为最小货币单位)
type PriceModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ProductID  string    `gorm:"index;size:36;not null;comment:商品ID"`
	UnitAmount int64     `gorm:"not null;comment:单价(分)"`
	Currency   string    `gorm:"size:3;not null;default:usd;comment:币种"`
	Active     bool      `gorm:"not null;comment:是否启用"`
	CreatedAt  time.Time `gorm:"comment:创建时间"`
}

func (PriceModel) TableName() string { return "prices" }

// StockItemModel 库存项
// 不变量: 0 <= hold_quantity <= quantity,由条件UPDATE保证
type StockItemModel struct {
	ID           string    `gorm:"primaryKey;size:36"`
	ProductID    string    `gorm:"index;size:36;not null;comment:商品ID"`
	SKU          string    `gorm:"size:64;comment:SKU"`
	Managed      bool      `gorm:"not null;comment:是否管理库存"`
	Quantity     int       `gorm:"not null;default:0;comment:实际库存"`
	HoldQuantity int       `gorm:"not null;default:0;comment:占用数量"`
	CreatedAt    time.Time `gorm:"comment:创建时间"`
	UpdatedAt    time.Time `gorm:"comment:更新时间"`
}

func (StockItemModel) TableName() string { return "stock_items" }

// ResourceModel 可预约资源
type ResourceModel struct {
	ID        string    `gorm:"primaryKey;size:36"`
	ProductID string    `gorm:"index;size:36;not null;comment:商品ID"`
	Name      string    `gorm:"size:100;not null;comment:资源名称"`
	CreatedAt time.Time `gorm:"comment:创建时间"`
}

func (ResourceModel) TableName() string { return "resources" }

// TimeSlotModel 时段
// 不变量: 0 <= reserved <= capacity
type TimeSlotModel struct {
	ID         string    `gorm:"primaryKey;size:36"`
	ResourceID string    `gorm:"index:idx_slot_range;size:36;not null;comment:资源ID"`
	StartsAt   time.Time `gorm:"index:idx_slot_range;not null;comment:开始时间"`
	EndsAt     time.Time `gorm:"not null;comment:结束时间"`
	Capacity   int       `gorm:"not null;comment:容量"`
	Reserved   int       `gorm:"not null;default:0;comment:已预约数"`
	IsActive   bool      `gorm:"not null;comment:是否可预约"`
	CreatedAt  time.Time `gorm:"comment:创建时间"`
	UpdatedAt  time.Time `gorm:"comment:更新时间"`
}

func (TimeSlotModel) TableName() string { return "time_slots" }

// ReservationModel 预约
type ReservationModel struct {
	ID          string     `gorm:"primaryKey;size:36"`
	SlotID      string     `gorm:"index;size:36;not null;comment:时段ID"`
	CustomerID  string     `gorm:"index;size:64;not null;comment:客户ID"`
	Status      string     `gorm:"index:idx_reservation_expiry,priority:1;size:16;not null;comment:状态(HELD/CONFIRMED/CANCELLED)"`
	ExpiresAt   time.Time  `gorm:"index:idx_reservation_expiry,priority:2;not null;comment:占位过期时间"`
	ConfirmedAt *time.Time `gorm:"comment:确认时间"`
	CancelledAt *time.Time `gorm:"comment:取消时间"`
	CreatedAt   time.Time  `gorm:"comment:创建时间"`
	UpdatedAt   time.Time  `gorm:"comment:更新时间"`
}

func (ReservationModel) TableName() string { return "reservations" }

// LedgerEntryModel 库存流水(只追加)
type LedgerEntryModel struct {
	ID          uint64    `gorm:"primaryKey;autoIncrement"`
	StockItemID string    `gorm:"index;size:36;not null;comment:库存项ID"`
	Change      int       `gorm:"not null;comment:变化量(有符号)"`
	Reason      string    `gorm:"size:16;not null;comment:原因(HOLD/COMMIT/RELEASE/REFUND/RESTOCK)"`
	OrderID     string    `gorm:"index;size:36;comment:订单ID"`
	HoldID      string    `gorm:"index;size:36;comment:占用ID"`
	CreatedAt   time.Time `gorm:"index;not null;comment:创建时间"`
}

func (LedgerEntryModel) TableName() string { return "ledger_entries" }

// CartModel 购物车
type CartModel struct {
	ID         string          `gorm:"primaryKey;size:36"`
	CustomerID string          `gorm:"index;size:64;not null;comment:客户ID"`
	ExpiresAt  time.Time       `gorm:"index;not null;comment:过期时间"`
	Items      []CartItemModel `gorm:"foreignKey:CartID"`
	CreatedAt  time.Time       `gorm:"comment:创建时间"`
	UpdatedAt  time.Time       `gorm:"comment:更新时间"`
}

func (CartModel) TableName() string { return "carts" }

// CartItemModel 购物车明细
type CartItemModel struct {
	ID            string    `gorm:"primaryKey;size:36"`
	CartID        string    `gorm:"index;size:36;not null;comment:购物车ID"`
	ProductID     string    `gorm:"size:36;not null;comment:商品ID"`
	PriceID       string    `gorm:"size:36;not null;comment:价格ID"`
	Quantity      int       `gorm:"not null;comment:数量"`
	SlotID        string    `gorm:"size:36;comment:时段ID"`
	StockItemID   string    `gorm:"size:36;comment:库存项ID"`
	HoldID        string    `gorm:"size:36;comment:库存占用ID"`
	ReservationID string    `gorm:"size:36;comment:预约ID"`
	CreatedAt     time.Time `gorm:"comment:创建时间"`
}

func (CartItemModel) TableName() string { return "cart_items" }

// OrderModel 订单
type OrderModel struct {
	ID                string           `gorm:"primaryKey;size:36"`
	OrderNo           string           `gorm:"uniqueIndex;size:32;not null;comment:订单号"`
	CustomerID        string           `gorm:"index;size:64;not null;comment:客户ID"`
	CartID            string           `gorm:"size:36;comment:来源购物车ID"`
	Status            string           `gorm:"index;size:16;not null;comment:订单状态(DRAFT/PENDING/PAID/FULFILLED/CANCELLED)"`
	Currency          string           `gorm:"size:3;not null;comment:币种"`
	TotalAmount       int64            `gorm:"not null;comment:订单总金额(分)"`
	CheckoutSessionID string           `gorm:"size:128;comment:支付会话ID"`
	Items             []OrderItemModel `gorm:"foreignKey:OrderID"`
	CreatedAt         time.Time        `gorm:"index;comment:创建时间"`
	UpdatedAt         time.Time        `gorm:"comment:更新时间"`
}

func (OrderModel) TableName() string { return "orders" }

// OrderItemModel 订单明细(记录下单时的价格快照)
type OrderItemModel struct {
	ID              string `gorm:"primaryKey;size:36"`
	OrderID         string `gorm:"index;size:36;not null;comment:订单ID"`
	ProductID       string `gorm:"size:36;not null;comment:商品ID"`
	PriceID         string `gorm:"size:36;not null;comment:价格ID"`
	Quantity        int    `gorm:"not null;comment:购买数量"`
	UnitAmount      int64  `gorm:"not null;comment:下单时单价(分)"`
	TotalAmount     int64  `gorm:"not null;comment:小计(分)"`
	FulfillmentType string `gorm:"size:16;not null;comment:履约方式(DIGITAL/BOOKING/CONSULTING)"`
	StockItemID     string `gorm:"size:36;comment:库存项ID"`
	HoldID          string `gorm:"index;size:36;comment:库存占用ID"`
	ReservationID   string `gorm:"index;size:36;comment:预约ID"`
}

func (OrderItemModel) TableName() string { return "order_items" }

// PaymentModel 支付记录
type PaymentModel struct {
	ID                string    `gorm:"primaryKey;size:36"`
	OrderID           string    `gorm:"index;size:36;not null;comment:订单ID"`
	PaymentIntentID   string    `gorm:"uniqueIndex;size:128;not null;comment:网关支付意图ID"`
	CheckoutSessionID string    `gorm:"size:128;comment:支付会话ID"`
	Status            string    `gorm:"size:16;not null;comment:状态(PENDING/SUCCEEDED/FAILED)"`
	Amount            int64     `gorm:"not null;comment:金额(分)"`
	Currency          string    `gorm:"size:3;not null;comment:币种"`
	CreatedAt         time.Time `gorm:"comment:创建时间"`
	UpdatedAt         time.Time `gorm:"comment:更新时间"`
}

func (PaymentModel) TableName() string { return "payments" }

// RefundModel 退款记录
type RefundModel struct {
	ID              string    `gorm:"primaryKey;size:36"`
	PaymentID       string    `gorm:"index;size:36;not null;comment:支付记录ID"`
	OrderID         string    `gorm:"index;size:36;not null;comment:订单ID"`
	Amount          int64     `gorm:"not null;comment:退款金额(分)"`
	Reason          string    `gorm:"size:64;comment:退款原因"`
	Restock         bool      `gorm:"not null;comment:是否回补库存"`
	Status          string    `gorm:"size:16;not null;comment:状态(PENDING/SUCCEEDED/FAILED)"`
	GatewayRefundID string    `gorm:"size:128;comment:网关退款ID"`
	CreatedAt       time.Time `gorm:"comment:创建时间"`
	UpdatedAt       time.Time `gorm:"comment:更新时间"`
}

func (RefundModel) TableName() string { return "refunds" }

// JobModel 持久化任务(支付回调与履约任务)
type JobModel struct {
	ID          string     `gorm:"primaryKey;size:191;comment:幂等键"`
	Type        string     `gorm:"size:64;not null;comment:任务类型"`
	Payload     []byte     `gorm:"not null;comment:任务载荷"`
	Status      string     `gorm:"index:idx_job_due;size:16;not null;comment:状态(PENDING/PROCESSING/SUCCEEDED/FAILED)"`
	Attempts    int        `gorm:"not null;default:0;comment:已尝试次数"`
	MaxAttempts int        `gorm:"not null;comment:最大尝试次数"`
	NextRunAt   time.Time  `gorm:"index:idx_job_due;not null;comment:下次执行时间"`
	LastError   string     `gorm:"type:text;comment:最后一次错误"`
	ClaimedAt   *time.Time `gorm:"comment:领取时间"`
	CreatedAt   time.Time  `gorm:"comment:创建时间"`
	UpdatedAt   time.Time  `gorm:"comment:更新时间"`
}

func (JobModel) TableName() string { return "webhook_jobs" }

// RelayCursorModel 流水中继进度
type RelayCursorModel struct {
	Name      string    `gorm:"primaryKey;size:64"`
	Position  uint64    `gorm:"not null;default:0;comment:已投递的最大流水ID"`
	UpdatedAt time.Time `gorm:"comment:更新时间"`
}

func (RelayCursorModel) TableName() string { return "relay_cursors" }
