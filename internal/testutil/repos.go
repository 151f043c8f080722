package testutil

import (
	"testing"

	"gorm.io/gorm"

	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/payment"
	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/storefront/pkg/clock"
)

// Repos 基于同一个测试数据库的全部仓储
type Repos struct {
	DB           *gorm.DB
	Clock        *clock.Fixed
	Tx           *mysql.TxManager
	Stocks       inventory.StockRepository
	Ledger       inventory.LedgerRepository
	Cursors      inventory.CursorRepository
	Slots        booking.SlotRepository
	Reservations booking.ReservationRepository
	Carts        cart.Repository
	Orders       order.Repository
	Payments     payment.Repository
	Refunds      payment.RefundRepository
	Jobs         webhook.JobRepository
	Catalog      catalog.Reader
	Seeder       *mysql.Seeder
}

// NewRepos 创建测试数据库和全部仓储
func NewRepos(t *testing.T) *Repos {
	t.Helper()
	db := NewDB(t)
	clk := NewClock()
	return &Repos{
		DB:           db,
		Clock:        clk,
		Tx:           mysql.NewTxManager(db),
		Stocks:       mysql.NewStockRepository(db),
		Ledger:       mysql.NewLedgerRepository(db),
		Cursors:      mysql.NewCursorRepository(db),
		Slots:        mysql.NewSlotRepository(db),
		Reservations: mysql.NewReservationRepository(db),
		Carts:        mysql.NewCartRepository(db),
		Orders:       mysql.NewOrderRepository(db),
		Payments:     mysql.NewPaymentRepository(db),
		Refunds:      mysql.NewRefundRepository(db),
		Jobs:         mysql.NewJobRepository(db),
		Catalog:      mysql.NewCatalogReader(db),
		Seeder:       mysql.NewSeeder(db, clk.Now),
	}
}
