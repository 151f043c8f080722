package order

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/xiebiao/storefront/internal/domain/catalog"
)

// GenerateOrderNo 生成订单号
// 格式:ORD + 时间戳(秒) + 6位随机数
// 示例:ORD1699248000123456
// 订单主键使用UUID,订单号只用于展示和客服查询
func GenerateOrderNo(now time.Time) string {
	random := rand.Intn(1000000) // 6位随机数
	return fmt.Sprintf("ORD%d%06d", now.Unix(), random)
}

// FulfillmentFor 商品类型 → 履约方式
func FulfillmentFor(t catalog.ProductType) (FulfillmentType, error) {
	switch t {
	case catalog.ProductDigital:
		return FulfillmentDigital, nil
	case catalog.ProductOfflineService:
		return FulfillmentBooking, nil
	case catalog.ProductOnlineConsulting:
		return FulfillmentConsulting, nil
	default:
		return "", ErrUnsupportedProductType
	}
}
