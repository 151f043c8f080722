package catalog

import (
	"time"
)

// ProductType 商品类型,决定履约方式
type ProductType string

const (
	ProductDigital          ProductType = "DIGITAL"           // 数字商品(占用库存)
	ProductOfflineService   ProductType = "OFFLINE_SERVICE"   // 线下服务(占用时段)
	ProductOnlineConsulting ProductType = "ONLINE_CONSULTING" // 线上咨询(占用时段)
)

// RequiresSlot 是否需要选择预约时段
func (t ProductType) RequiresSlot() bool {
	return t == ProductOfflineService || t == ProductOnlineConsulting
}

// Valid 是否为合法类型
func (t ProductType) Valid() bool {
	switch t {
	case ProductDigital, ProductOfflineService, ProductOnlineConsulting:
		return true
	}
	return false
}

// Product 商品(只读视图)
type Product struct {
	ID         string
	Type       ProductType
	Title      string
	Prices     []Price
	StockItems []StockItemRef
	Resources  []Resource
	CreatedAt  time.Time
}

// StockItemRef 商品关联的库存项
type StockItemRef struct {
	ID      string
	Managed bool
}

// PrimaryStockItem 返回商品的第一个库存项
func (p *Product) PrimaryStockItem() (StockItemRef, bool) {
	if len(p.StockItems) == 0 {
		return StockItemRef{}, false
	}
	return p.StockItems[0], true
}

// Price 价格
type Price struct {
	ID         string
	ProductID  string
	UnitAmount int64  // 单价(最小货币单位)
	Currency   string // 小写ISO代码,如usd
	Active     bool
}

// BelongsTo 价格是否属于该商品且可用
func (p *Price) BelongsTo(productID string) bool {
	return p.ProductID == productID && p.Active
}

// Resource 可预约资源(场地、顾问等)
type Resource struct {
	ID        string
	ProductID string
	Name      string
}
