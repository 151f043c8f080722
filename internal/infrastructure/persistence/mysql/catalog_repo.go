package mysql

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// catalogReader 商品目录只读实现
type catalogReader struct {
	db    *gorm.DB
	slots booking.SlotRepository
}

// NewCatalogReader 创建商品目录读取器
func NewCatalogReader(db *gorm.DB) catalog.Reader {
	return &catalogReader{db: db, slots: NewSlotRepository(db)}
}

// GetProduct 查询商品,Preload价格、库存项和资源
func (r *catalogReader) GetProduct(ctx context.Context, productID string) (*catalog.Product, error) {
	var model ProductModel
	err := dbFrom(ctx, r.db).
		Preload("Prices").
		Preload("StockItems", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC").Order("id ASC") }).
		Preload("Resources").
		Where("id = ?", productID).
		First(&model).Error
	if err != nil {
		if isNotFound(err) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, apperrors.Wrap(err, "查询商品失败")
	}
	return toProductEntity(&model), nil
}

func (r *catalogReader) GetPrice(ctx context.Context, priceID string) (*catalog.Price, error) {
	var model PriceModel
	if err := dbFrom(ctx, r.db).Where("id = ?", priceID).First(&model).Error; err != nil {
		if isNotFound(err) {
			return nil, catalog.ErrPriceNotFound
		}
		return nil, apperrors.Wrap(err, "查询价格失败")
	}
	p := toPriceEntity(&model)
	return &p, nil
}

func (r *catalogReader) ListAvailableSlots(ctx context.Context, resourceID string, from, to time.Time) ([]*booking.TimeSlot, error) {
	return r.slots.ListAvailable(ctx, resourceID, from, to)
}

func toPriceEntity(m *PriceModel) catalog.Price {
	return catalog.Price{
		ID:         m.ID,
		ProductID:  m.ProductID,
		UnitAmount: m.UnitAmount,
		Currency:   m.Currency,
		Active:     m.Active,
	}
}

func toProductEntity(m *ProductModel) *catalog.Product {
	p := &catalog.Product{
		ID:        m.ID,
		Type:      catalog.ProductType(m.Type),
		Title:     m.Title,
		CreatedAt: m.CreatedAt,
	}
	for i := range m.Prices {
		p.Prices = append(p.Prices, toPriceEntity(&m.Prices[i]))
	}
	for _, s := range m.StockItems {
		p.StockItems = append(p.StockItems, catalog.StockItemRef{ID: s.ID, Managed: s.Managed})
	}
	for _, res := range m.Resources {
		p.Resources = append(p.Resources, catalog.Resource{ID: res.ID, ProductID: res.ProductID, Name: res.Name})
	}
	return p
}
