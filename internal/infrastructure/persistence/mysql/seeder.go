package mysql

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	apperrors "github.com/xiebiao/storefront/pkg/errors"
)

// Seeder 写入商品目录数据(本地开发和测试使用)
// 初始库存以RESTOCK流水写入,保证流水重放与计数器一致
type Seeder struct {
	db     *gorm.DB
	tx     *TxManager
	stocks inventory.StockRepository
	ledger inventory.LedgerRepository
	slots  booking.SlotRepository
	now    func() time.Time
}

// NewSeeder 创建Seeder
func NewSeeder(db *gorm.DB, now func() time.Time) *Seeder {
	return &Seeder{
		db:     db,
		tx:     NewTxManager(db),
		stocks: NewStockRepository(db),
		ledger: NewLedgerRepository(db),
		slots:  NewSlotRepository(db),
		now:    now,
	}
}

// ProductSeed 商品种子数据
type ProductSeed struct {
	Type       catalog.ProductType
	Title      string
	UnitAmount int64
	Currency   string
	Managed    bool // 仅DIGITAL有效
	Quantity   int  // 初始库存,仅DIGITAL有效
}

// SeededProduct 写入结果
type SeededProduct struct {
	ProductID   string
	PriceID     string
	StockItemID string
	ResourceID  string
}

// SeedProduct 写入一个商品及其价格;数字商品创建库存项,预约类商品创建资源
func (s *Seeder) SeedProduct(ctx context.Context, seed ProductSeed) (*SeededProduct, error) {
	now := s.now()
	currency := seed.Currency
	if currency == "" {
		currency = "usd"
	}
	out := &SeededProduct{ProductID: uuid.NewString(), PriceID: uuid.NewString()}

	err := s.tx.Transaction(ctx, func(ctx context.Context) error {
		db := dbFrom(ctx, s.db)
		product := &ProductModel{ID: out.ProductID, Type: string(seed.Type), Title: seed.Title, CreatedAt: now, UpdatedAt: now}
		if err := db.Omit("Prices", "StockItems", "Resources").Create(product).Error; err != nil {
			return apperrors.Wrap(err, "写入商品失败")
		}
		price := &PriceModel{ID: out.PriceID, ProductID: out.ProductID, UnitAmount: seed.UnitAmount, Currency: currency, Active: true, CreatedAt: now}
		if err := db.Create(price).Error; err != nil {
			return apperrors.Wrap(err, "写入价格失败")
		}

		if seed.Type.RequiresSlot() {
			out.ResourceID = uuid.NewString()
			res := &ResourceModel{ID: out.ResourceID, ProductID: out.ProductID, Name: seed.Title, CreatedAt: now}
			if err := db.Create(res).Error; err != nil {
				return apperrors.Wrap(err, "写入资源失败")
			}
			return nil
		}

		out.StockItemID = uuid.NewString()
		item := &inventory.StockItem{
			ID:        out.StockItemID,
			ProductID: out.ProductID,
			Managed:   seed.Managed,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.stocks.Create(ctx, item); err != nil {
			return err
		}
		if seed.Managed && seed.Quantity > 0 {
			if err := s.stocks.AddQuantity(ctx, item.ID, seed.Quantity); err != nil {
				return err
			}
			entry := inventory.NewLedgerEntry(item.ID, seed.Quantity, inventory.ReasonRestock, "", "", now)
			return s.ledger.Record(ctx, entry)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// SlotSeed 时段种子数据
type SlotSeed struct {
	ResourceID string
	StartsAt   time.Time
	Duration   time.Duration
	Capacity   int
}

// SeedSlot 写入一个可预约时段
func (s *Seeder) SeedSlot(ctx context.Context, seed SlotSeed) (string, error) {
	now := s.now()
	id := uuid.NewString()
	err := s.slots.Create(ctx, &booking.TimeSlot{
		ID:         id,
		ResourceID: seed.ResourceID,
		StartsAt:   seed.StartsAt,
		EndsAt:     seed.StartsAt.Add(seed.Duration),
		Capacity:   seed.Capacity,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	})
	return id, err
}

// DeactivatePrice 停用价格
func (s *Seeder) DeactivatePrice(ctx context.Context, priceID string) error {
	return dbFrom(ctx, s.db).Model(&PriceModel{}).Where("id = ?", priceID).Update("active", false).Error
}
