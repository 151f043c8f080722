package mysql

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/xiebiao/storefront/internal/domain/inventory"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// stockRepository 库存项仓储实现
// 防超卖:所有计数器变更都是一条带条件的UPDATE,
// 条件不满足时RowsAffected为0,再查询一次区分"不存在"与"数量不足"
type stockRepository struct {
	db *gorm.DB
}

// NewStockRepository 创建库存项仓储
func NewStockRepository(db *gorm.DB) inventory.StockRepository {
	return &stockRepository{db: db}
}

func (r *stockRepository) Create(ctx context.Context, item *inventory.StockItem) error {
	model := toStockItemModel(item)
	if err := dbFrom(ctx, r.db).Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建库存项失败")
	}
	return nil
}

func (r *stockRepository) FindByID(ctx context.Context, id string) (*inventory.StockItem, error) {
	var model StockItemModel
	if err := dbFrom(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, inventory.ErrStockItemNotFound
		}
		return nil, apperrors.Wrap(err, "查询库存项失败")
	}
	return toStockItemEntity(&model), nil
}

func (r *stockRepository) Lock(ctx context.Context, id string) (*inventory.StockItem, error) {
	var model StockItemModel
	err := dbFrom(ctx, r.db).Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, inventory.ErrStockItemNotFound
		}
		return nil, apperrors.Wrap(err, "锁定库存项失败")
	}
	return toStockItemEntity(&model), nil
}

// Hold 占用库存
// UPDATE stock_items SET hold_quantity = hold_quantity + ?
// WHERE id = ? AND quantity - hold_quantity >= ?
func (r *stockRepository) Hold(ctx context.Context, id string, qty int) error {
	result := dbFrom(ctx, r.db).Model(&StockItemModel{}).
		Where("id = ? AND quantity - hold_quantity >= ?", id, qty).
		Updates(map[string]interface{}{
			"hold_quantity": gorm.Expr("hold_quantity + ?", qty),
		})
	return r.checkResult(ctx, result, id, inventory.ErrInsufficientStock)
}

// Release 释放占用
func (r *stockRepository) Release(ctx context.Context, id string, qty int) error {
	result := dbFrom(ctx, r.db).Model(&StockItemModel{}).
		Where("id = ? AND hold_quantity >= ?", id, qty).
		Updates(map[string]interface{}{
			"hold_quantity": gorm.Expr("hold_quantity - ?", qty),
		})
	return r.checkResult(ctx, result, id, inventory.ErrHoldUnderflow)
}

// Commit 支付成功后把占用转为实际扣减
func (r *stockRepository) Commit(ctx context.Context, id string, qty int) error {
	result := dbFrom(ctx, r.db).Model(&StockItemModel{}).
		Where("id = ? AND hold_quantity >= ? AND quantity >= ?", id, qty, qty).
		Updates(map[string]interface{}{
			"quantity":      gorm.Expr("quantity - ?", qty),
			"hold_quantity": gorm.Expr("hold_quantity - ?", qty),
		})
	return r.checkResult(ctx, result, id, inventory.ErrHoldUnderflow)
}

// AddQuantity 入库或退款回补
func (r *stockRepository) AddQuantity(ctx context.Context, id string, qty int) error {
	result := dbFrom(ctx, r.db).Model(&StockItemModel{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"quantity": gorm.Expr("quantity + ?", qty),
		})
	return r.checkResult(ctx, result, id, inventory.ErrStockItemNotFound)
}

// checkResult RowsAffected为0时判断是记录不存在还是条件不满足
func (r *stockRepository) checkResult(ctx context.Context, result *gorm.DB, id string, conflict error) error {
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "更新库存失败")
	}
	if result.RowsAffected > 0 {
		return nil
	}
	var count int64
	if err := dbFrom(ctx, r.db).Model(&StockItemModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperrors.Wrap(err, "查询库存项失败")
	}
	if count == 0 {
		return inventory.ErrStockItemNotFound
	}
	return conflict
}

func toStockItemModel(s *inventory.StockItem) *StockItemModel {
	return &StockItemModel{
		ID:           s.ID,
		ProductID:    s.ProductID,
		SKU:          s.SKU,
		Managed:      s.Managed,
		Quantity:     s.Quantity,
		HoldQuantity: s.HoldQuantity,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

func toStockItemEntity(m *StockItemModel) *inventory.StockItem {
	return &inventory.StockItem{
		ID:           m.ID,
		ProductID:    m.ProductID,
		SKU:          m.SKU,
		Managed:      m.Managed,
		Quantity:     m.Quantity,
		HoldQuantity: m.HoldQuantity,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}
