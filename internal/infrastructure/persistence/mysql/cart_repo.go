package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/cart"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// cartRepository 购物车仓储
type cartRepository struct {
	db *gorm.DB
}

// NewCartRepository 创建购物车仓储
func NewCartRepository(db *gorm.DB) cart.Repository {
	return &cartRepository{db: db}
}

func (r *cartRepository) Create(ctx context.Context, c *cart.Cart) error {
	model := &CartModel{
		ID:         c.ID,
		CustomerID: c.CustomerID,
		ExpiresAt:  c.ExpiresAt,
		CreatedAt:  c.CreatedAt,
		UpdatedAt:  c.UpdatedAt,
	}
	if err := dbFrom(ctx, r.db).Omit("Items").Create(model).Error; err != nil {
		return apperrors.Wrap(err, "创建购物车失败")
	}
	return nil
}

// FindByID 查询购物车,Preload明细(按加入顺序)
func (r *cartRepository) FindByID(ctx context.Context, id string) (*cart.Cart, error) {
	var model CartModel
	err := dbFrom(ctx, r.db).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC").Order("id ASC")
		}).
		Where("id = ?", id).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, cart.ErrCartNotFound
		}
		return nil, apperrors.Wrap(err, "查询购物车失败")
	}
	return toCartEntity(&model), nil
}

func (r *cartRepository) AddItem(ctx context.Context, item *cart.CartItem) error {
	if err := dbFrom(ctx, r.db).Create(toCartItemModel(item)).Error; err != nil {
		return apperrors.Wrap(err, "添加购物车明细失败")
	}
	return nil
}

func (r *cartRepository) DeleteItem(ctx context.Context, cartID, itemID string) error {
	result := dbFrom(ctx, r.db).Where("id = ? AND cart_id = ?", itemID, cartID).Delete(&CartItemModel{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除购物车明细失败")
	}
	if result.RowsAffected == 0 {
		return cart.ErrCartItemNotFound
	}
	return nil
}

func (r *cartRepository) DeleteItems(ctx context.Context, cartID string) error {
	if err := dbFrom(ctx, r.db).Where("cart_id = ?", cartID).Delete(&CartItemModel{}).Error; err != nil {
		return apperrors.Wrap(err, "清空购物车明细失败")
	}
	return nil
}

// Delete 先删明细再删购物车
func (r *cartRepository) Delete(ctx context.Context, id string) error {
	db := dbFrom(ctx, r.db)
	if err := db.Where("cart_id = ?", id).Delete(&CartItemModel{}).Error; err != nil {
		return apperrors.Wrap(err, "删除购物车明细失败")
	}
	result := db.Where("id = ?", id).Delete(&CartModel{})
	if result.Error != nil {
		return apperrors.Wrap(result.Error, "删除购物车失败")
	}
	if result.RowsAffected == 0 {
		return cart.ErrCartNotFound
	}
	return nil
}

func (r *cartRepository) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	err := dbFrom(ctx, r.db).Model(&CartModel{}).
		Where("expires_at <= ?", now).
		Order("expires_at ASC").
		Limit(limit).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, "查询过期购物车失败")
	}
	return ids, nil
}

func toCartItemModel(i *cart.CartItem) *CartItemModel {
	return &CartItemModel{
		ID:            i.ID,
		CartID:        i.CartID,
		ProductID:     i.ProductID,
		PriceID:       i.PriceID,
		Quantity:      i.Quantity,
		SlotID:        i.SlotID,
		StockItemID:   i.StockItemID,
		HoldID:        i.HoldID,
		ReservationID: i.ReservationID,
		CreatedAt:     i.CreatedAt,
	}
}

func toCartEntity(m *CartModel) *cart.Cart {
	items := make([]cart.CartItem, len(m.Items))
	for i, item := range m.Items {
		items[i] = cart.CartItem{
			ID:            item.ID,
			CartID:        item.CartID,
			ProductID:     item.ProductID,
			PriceID:       item.PriceID,
			Quantity:      item.Quantity,
			SlotID:        item.SlotID,
			StockItemID:   item.StockItemID,
			HoldID:        item.HoldID,
			ReservationID: item.ReservationID,
			CreatedAt:     item.CreatedAt,
		}
	}
	return &cart.Cart{
		ID:         m.ID,
		CustomerID: m.CustomerID,
		ExpiresAt:  m.ExpiresAt,
		Items:      items,
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}
