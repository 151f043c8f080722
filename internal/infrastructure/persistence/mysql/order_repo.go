package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/order"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// orderRepository 订单仓储实现
// 1. Order和OrderItem是聚合关系,必须一起保存
// 2. 查询时使用Preload预加载明细,避免N+1问题
// 3. 状态变更是条件更新,两个写入者不会同时推进同一订单
type orderRepository struct {
	db *gorm.DB
}

// NewOrderRepository 创建订单仓储
func NewOrderRepository(db *gorm.DB) order.Repository {
	return &orderRepository{db: db}
}

// Create 创建订单
// GORM会自动保存关联的Items(通过foreignKey)
func (r *orderRepository) Create(ctx context.Context, o *order.Order) error {
	model := toOrderModel(o)
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建订单失败")
	}
	return nil
}

// FindByID 根据ID查找订单
// Preload("Items")会执行:
// 1. SELECT * FROM orders WHERE id = ?
// 2. SELECT * FROM order_items WHERE order_id IN (?)
func (r *orderRepository) FindByID(ctx context.Context, id string) (*order.Order, error) {
	var model OrderModel
	err := dbFrom(ctx, r.db).Preload("Items", func(db *gorm.DB) *gorm.DB {
		return db.Order("id ASC")
	}).Where("id = ?", id).First(&model).Error

	if err != nil {
		if isNotFound(err) {
			return nil, order.ErrOrderNotFound
		}
		return nil, apperrors.Wrap(err, "查询订单失败")
	}

	return toOrderEntity(&model), nil
}

// UpdateStatus 条件更新
// UPDATE orders SET status = ? WHERE id = ? AND status = <from>
func (r *orderRepository) UpdateStatus(ctx context.Context, o *order.Order, from order.Status) error {
	result := dbFrom(ctx, r.db).Model(&OrderModel{}).
		Where("id = ? AND status = ?", o.ID, string(from)).
		Updates(map[string]interface{}{
			"status":     string(o.Status),
			"updated_at": o.UpdatedAt,
		})

	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新订单失败")
	}

	if result.RowsAffected == 0 {
		var count int64
		if err := dbFrom(ctx, r.db).Model(&OrderModel{}).Where("id = ?", o.ID).Count(&count).Error; err != nil {
			return apperrors.Wrap(err, "查询订单失败")
		}
		if count == 0 {
			return order.ErrOrderNotFound
		}
		return order.ErrInvalidStatusTransition
	}

	return nil
}

func (r *orderRepository) SetCheckoutSession(ctx context.Context, id, sessionID string) error {
	result := dbFrom(ctx, r.db).Model(&OrderModel{}).Where("id = ?", id).
		Update("checkout_session_id", sessionID)
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "保存支付会话失败")
	}
	if result.RowsAffected == 0 {
		return order.ErrOrderNotFound
	}
	return nil
}

// ListByCustomer 查询客户的订单列表
func (r *orderRepository) ListByCustomer(ctx context.Context, customerID string, page, pageSize int) ([]*order.Order, int64, error) {
	var models []OrderModel
	var total int64

	page, pageSize = normalizePage(page, pageSize)
	query := dbFrom(ctx, r.db).Model(&OrderModel{}).Where("customer_id = ?", customerID)

	// 查询总数
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, apperrors.Wrap(err, "查询订单总数失败")
	}

	// 分页查询(包含明细)
	offset := (page - 1) * pageSize
	err := query.Preload("Items").
		Order("created_at DESC").
		Order("id DESC").
		Limit(pageSize).
		Offset(offset).
		Find(&models).Error

	if err != nil {
		return nil, 0, apperrors.Wrap(err, "查询订单列表失败")
	}

	orders := make([]*order.Order, len(models))
	for i := range models {
		orders[i] = toOrderEntity(&models[i])
	}

	return orders, total, nil
}

func (r *orderRepository) ListStale(ctx context.Context, statuses []order.Status, before time.Time, limit int) ([]string, error) {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	var ids []string
	err := dbFrom(ctx, r.db).Model(&OrderModel{}).
		Where("status IN ? AND created_at < ?", values, before).
		Order("created_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询超时订单失败")
	}
	return ids, nil
}

func (r *orderRepository) FindIDByReservation(ctx context.Context, reservationID string) (string, error) {
	var item OrderItemModel
	err := dbFrom(ctx, r.db).Select("order_id").
		Where("reservation_id = ?", reservationID).
		First(&item).Error
	if err != nil {
		if isNotFound(err) {
			return "", order.ErrOrderNotFound
		}
		return "", apperrors.Wrap(err, "查询预约所属订单失败")
	}
	return item.OrderID, nil
}

func (r *orderRepository) OrderIDsByHolds(ctx context.Context, holdIDs []string) (map[string]string, error) {
	owners := make(map[string]string, len(holdIDs))
	if len(holdIDs) == 0 {
		return owners, nil
	}
	var items []OrderItemModel
	err := dbFrom(ctx, r.db).Select("hold_id", "order_id").
		Where("hold_id IN ?", holdIDs).
		Find(&items).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询占用所属订单失败")
	}
	for _, item := range items {
		owners[item.HoldID] = item.OrderID
	}
	return owners, nil
}

// =========================================
// 辅助函数:模型转换
// =========================================

// toOrderModel 领域实体 → GORM模型
func toOrderModel(o *order.Order) *OrderModel {
	items := make([]OrderItemModel, len(o.Items))
	for i, item := range o.Items {
		items[i] = OrderItemModel{
			ID:              item.ID,
			OrderID:         o.ID,
			ProductID:       item.ProductID,
			PriceID:         item.PriceID,
			Quantity:        item.Quantity,
			UnitAmount:      item.UnitAmount,
			TotalAmount:     item.TotalAmount,
			FulfillmentType: string(item.FulfillmentType),
			StockItemID:     item.StockItemID,
			HoldID:          item.HoldID,
			ReservationID:   item.ReservationID,
		}
	}

	return &OrderModel{
		ID:                o.ID,
		OrderNo:           o.OrderNo,
		CustomerID:        o.CustomerID,
		CartID:            o.CartID,
		Status:            string(o.Status),
		Currency:          o.Currency,
		TotalAmount:       o.TotalAmount,
		CheckoutSessionID: o.CheckoutSessionID,
		Items:             items,
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

// toOrderEntity GORM模型 → 领域实体
func toOrderEntity(model *OrderModel) *order.Order {
	items := make([]order.OrderItem, len(model.Items))
	for i, item := range model.Items {
		items[i] = order.OrderItem{
			ID:              item.ID,
			OrderID:         item.OrderID,
			ProductID:       item.ProductID,
			PriceID:         item.PriceID,
			Quantity:        item.Quantity,
			UnitAmount:      item.UnitAmount,
			TotalAmount:     item.TotalAmount,
			FulfillmentType: order.FulfillmentType(item.FulfillmentType),
			StockItemID:     item.StockItemID,
			HoldID:          item.HoldID,
			ReservationID:   item.ReservationID,
		}
	}

	return &order.Order{
		ID:                model.ID,
		OrderNo:           model.OrderNo,
		CustomerID:        model.CustomerID,
		CartID:            model.CartID,
		Status:            order.Status(model.Status),
		Currency:          model.Currency,
		TotalAmount:       model.TotalAmount,
		CheckoutSessionID: model.CheckoutSessionID,
		Items:             items,
		CreatedAt:         model.CreatedAt,
		UpdatedAt:         model.UpdatedAt,
	}
}
