// Package router 注册全部HTTP路由
package router

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/xiebiao/storefront/internal/interface/http/handler"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/pkg/response"
)

// Options 路由选项
type Options struct {
	Mode        string // debug | release | test
	MetricsPath string // 为空时不暴露指标端点
	Swagger     bool
}

// Handlers 全部HTTP处理器
type Handlers struct {
	Cart    *handler.CartHandler
	Order   *handler.OrderHandler
	Slot    *handler.SlotHandler
	Webhook *handler.WebhookHandler
	Admin   *handler.AdminHandler
}

// New 创建并配置Gin引擎
func New(opts Options, h Handlers, auth *middleware.AuthMiddleware, logger *zap.Logger) *gin.Engine {
	if opts.Mode != "" {
		gin.SetMode(opts.Mode)
	}

	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.Recovery(logger),
		middleware.Tracing(),
		middleware.Metrics(),
		middleware.Logger(logger),
	)

	// 健康检查
	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{
			"message": "pong",
			"status":  "healthy",
		})
	})

	if opts.MetricsPath != "" {
		r.GET(opts.MetricsPath, gin.WrapH(promhttp.Handler()))
	}

	// 访问 /swagger/index.html 查看API文档,生产环境关闭
	if opts.Swagger {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	v1 := r.Group("/api/v1")
	{
		// 公开接口
		v1.GET("/slots", h.Slot.ListSlots)
		v1.POST("/payments/webhook", h.Webhook.Receive) // 网关签名校验,不走JWT

		authorized := v1.Group("")
		authorized.Use(auth.RequireAuth())

		carts := authorized.Group("/carts")
		{
			carts.POST("", h.Cart.CreateCart)
			carts.GET("/:id", h.Cart.GetCart)
			carts.GET("/:id/total", h.Cart.GetTotal)
			carts.POST("/:id/items", h.Cart.AddItem)
			carts.DELETE("/:id/items/:itemId", h.Cart.RemoveItem)
		}

		orders := authorized.Group("/orders")
		{
			orders.POST("", h.Order.CreateOrder)
			orders.GET("", h.Order.ListOrders)
			orders.GET("/:id", h.Order.GetOrder)
			orders.POST("/:id/checkout", h.Order.Checkout)
			orders.POST("/:id/refunds", h.Order.Refund)
		}

		admin := authorized.Group("/admin")
		admin.Use(auth.RequireAdmin())
		{
			admin.GET("/ledger/export", h.Admin.ExportLedger)
			admin.GET("/ledger/reconcile/:stockItemId", h.Admin.Reconcile)
			admin.GET("/webhook-jobs/failed", h.Admin.ListFailedJobs)
			admin.POST("/webhook-jobs/:id/retry", h.Admin.RetryJob)
		}
	}

	return r
}
