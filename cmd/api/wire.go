//go:build wireinject
// +build wireinject

// Wire依赖注入配置文件
//
// main.go中的newApp是手动组装版本,本文件声明同一依赖图,
// 运行 `wire gen ./cmd/api` 生成wire_gen.go后可以用initializeApp替换newApp。
//
// 核心概念：
// - Provider: 提供依赖的构造函数（如mysql.NewOrderRepository）
// - wire.Bind: 把具体类型绑定到消费方声明的接口
// - 需要从Config提取参数的构造函数由本文件的provideXxx包装

package main

import (
	"github.com/gin-gonic/gin"
	"github.com/google/wire"
	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	cartapp "github.com/xiebiao/storefront/internal/application/cart"
	"github.com/xiebiao/storefront/internal/application/fulfillment"
	"github.com/xiebiao/storefront/internal/application/hold"
	"github.com/xiebiao/storefront/internal/application/ledger"
	orderapp "github.com/xiebiao/storefront/internal/application/order"
	webhookapp "github.com/xiebiao/storefront/internal/application/webhook"
	"github.com/xiebiao/storefront/internal/domain/booking"
	"github.com/xiebiao/storefront/internal/domain/cart"
	"github.com/xiebiao/storefront/internal/domain/catalog"
	"github.com/xiebiao/storefront/internal/domain/inventory"
	"github.com/xiebiao/storefront/internal/domain/order"
	"github.com/xiebiao/storefront/internal/domain/payment"
	"github.com/xiebiao/storefront/internal/domain/uow"
	"github.com/xiebiao/storefront/internal/domain/webhook"
	"github.com/xiebiao/storefront/internal/infrastructure/config"
	"github.com/xiebiao/storefront/internal/infrastructure/eventlog"
	"github.com/xiebiao/storefront/internal/infrastructure/gateway"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/mysql"
	"github.com/xiebiao/storefront/internal/infrastructure/persistence/redis"
	"github.com/xiebiao/storefront/internal/infrastructure/queue"
	"github.com/xiebiao/storefront/internal/interface/http/handler"
	"github.com/xiebiao/storefront/internal/interface/http/middleware"
	"github.com/xiebiao/storefront/internal/interface/http/router"
	"github.com/xiebiao/storefront/pkg/clock"
	"github.com/xiebiao/storefront/pkg/jwt"
	"github.com/xiebiao/storefront/pkg/mq"
)

// infrastructureSet 数据库、Redis、时钟
var infrastructureSet = wire.NewSet(
	provideDB,
	provideRedisClient,
	provideClock,
)

// repositorySet 所有仓储和事务管理器
var repositorySet = wire.NewSet(
	mysql.NewTxManager,
	wire.Bind(new(uow.Transactor), new(*mysql.TxManager)),
	mysql.NewCatalogReader,
	mysql.NewStockRepository,
	mysql.NewLedgerRepository,
	mysql.NewCursorRepository,
	mysql.NewSlotRepository,
	mysql.NewReservationRepository,
	mysql.NewCartRepository,
	mysql.NewOrderRepository,
	mysql.NewPaymentRepository,
	mysql.NewRefundRepository,
	mysql.NewJobRepository,
)

// gatewaySet 支付网关和履约事件发布
var gatewaySet = wire.NewSet(
	provideGateway,
	wire.Bind(new(payment.Gateway), new(*gateway.Mock)),
	providePublisher,
)

// applicationSet 应用服务
var applicationSet = wire.NewSet(
	hold.NewManager,
	provideCartService,
	provideOrderPipeline,
	orderapp.NewCheckoutService,
	provideRefundService,
	provideFulfillmentService,
	wire.Bind(new(webhookapp.Payments), new(*fulfillment.Service)),
	provideReceiver,
	webhookapp.NewProcessor,
	webhookapp.NewJobAdmin,
	provideExporter,
	ledger.NewReconciler,
)

// workerSet 后台协程：任务池、清理器、流水中继
var workerSet = wire.NewSet(
	provideQueuePool,
	provideSweeper,
	provideRelay,
)

// httpSet HTTP处理器、中间件和路由
var httpSet = wire.NewSet(
	provideJWTManager,
	middleware.NewAuthMiddleware,
	handler.NewCartHandler,
	handler.NewOrderHandler,
	handler.NewSlotHandler,
	handler.NewWebhookHandler,
	handler.NewAdminHandler,
	wire.Struct(new(router.Handlers), "*"),
	provideEngine,
)

func provideDB(cfg *config.Config, logger *zap.Logger) (*gorm.DB, func(), error) {
	db, err := mysql.NewDB(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if err := mysql.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	return db, cleanup, nil
}

func provideRedisClient(cfg *config.Config, logger *zap.Logger) (*goredis.Client, func(), error) {
	client, err := redis.NewClient(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return client, func() { _ = client.Close() }, nil
}

func provideClock() clock.Clock {
	return clock.System{}
}

func provideGateway(cfg *config.Config, clk clock.Clock, logger *zap.Logger) *gateway.Mock {
	return gateway.NewMock(gateway.Config{Secret: cfg.Webhook.Secret, CheckoutURL: cfg.Payment.CheckoutURL}, clk, logger)
}

// providePublisher 未配置RabbitMQ时退化为只写日志
func providePublisher(cfg *config.Config, logger *zap.Logger) (webhookapp.Publisher, func(), error) {
	if cfg.RabbitMQ.URL == "" {
		return webhookapp.NewLogPublisher(logger), func() {}, nil
	}
	p, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, logger)
	if err != nil {
		return nil, nil, err
	}
	return p, func() { _ = p.Close() }, nil
}

func provideCartService(
	cfg *config.Config,
	tx uow.Transactor,
	carts cart.Repository,
	catalogReader catalog.Reader,
	holds *hold.Manager,
	clk clock.Clock,
	logger *zap.Logger,
) *cartapp.Service {
	return cartapp.NewService(tx, carts, catalogReader, holds, clk, cfg.Cart.TTL, logger)
}

func provideOrderPipeline(
	cfg *config.Config,
	tx uow.Transactor,
	carts cart.Repository,
	orders order.Repository,
	catalogReader catalog.Reader,
	holds *hold.Manager,
	clk clock.Clock,
	logger *zap.Logger,
) *orderapp.PipelineService {
	return orderapp.NewPipelineService(tx, carts, orders, catalogReader, holds, clk, cfg.Order.HoldTTL, logger)
}

func provideRefundService(
	cfg *config.Config,
	tx uow.Transactor,
	orders order.Repository,
	payments payment.Repository,
	refunds payment.RefundRepository,
	gw payment.Gateway,
	holds *hold.Manager,
	clk clock.Clock,
	logger *zap.Logger,
) *orderapp.RefundService {
	return orderapp.NewRefundService(tx, orders, payments, refunds, gw, holds, clk, cfg.Payment.RefundTimeout, logger)
}

func provideFulfillmentService(
	cfg *config.Config,
	tx uow.Transactor,
	orders order.Repository,
	payments payment.Repository,
	jobs webhook.JobRepository,
	holds *hold.Manager,
	clk clock.Clock,
	logger *zap.Logger,
) *fulfillment.Service {
	return fulfillment.NewService(tx, orders, payments, jobs, holds, clk, cfg.Webhook.MaxAttempts, logger)
}

func provideReceiver(cfg *config.Config, jobs webhook.JobRepository, clk clock.Clock, logger *zap.Logger) *webhookapp.Receiver {
	verifier := gateway.NewSignatureVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance)
	return webhookapp.NewReceiver(verifier, jobs, clk, cfg.Webhook.MaxAttempts, logger)
}

func provideExporter(cfg *config.Config, ledgerRepo inventory.LedgerRepository, orders order.Repository) *ledger.Exporter {
	return ledger.NewExporter(ledgerRepo, orders, cfg.Ledger.ExportPageSize)
}

func provideQueuePool(
	cfg *config.Config,
	jobs webhook.JobRepository,
	processor *webhookapp.Processor,
	clk clock.Clock,
	logger *zap.Logger,
) *queue.Pool {
	return queue.NewPool(jobs, processor, clk, queue.Config{
		Workers:           cfg.Webhook.Workers,
		PollInterval:      cfg.Webhook.PollInterval,
		BatchSize:         cfg.Webhook.BatchSize,
		VisibilityTimeout: cfg.Webhook.VisibilityTimeout,
		BackoffInitial:    cfg.Webhook.BackoffInitial,
		BackoffMax:        cfg.Webhook.BackoffMax,
	}, logger)
}

func provideSweeper(
	cfg *config.Config,
	tx uow.Transactor,
	carts cart.Repository,
	orders order.Repository,
	reservations booking.ReservationRepository,
	holds *hold.Manager,
	canceller *fulfillment.Service,
	client *goredis.Client,
	clk clock.Clock,
	logger *zap.Logger,
) *cartapp.Sweeper {
	return cartapp.NewSweeper(tx, carts, orders, reservations, holds, canceller, redis.NewLocker(client), clk,
		cartapp.SweeperConfig{Interval: cfg.Cart.SweepInterval, BatchSize: cfg.Cart.SweepBatch, OrderTTL: cfg.Order.HoldTTL}, logger)
}

// provideRelay 未启用Kafka时返回nil
func provideRelay(
	cfg *config.Config,
	ledgerRepo inventory.LedgerRepository,
	cursors inventory.CursorRepository,
	clk clock.Clock,
	logger *zap.Logger,
) (*ledger.Relay, func()) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}
	}
	sink := eventlog.NewLedgerSink(eventlog.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, logger)
	relay := ledger.NewRelay(ledgerRepo, cursors, sink, clk, ledger.RelayConfig{
		Interval:     cfg.Kafka.RelayInterval,
		BatchSize:    cfg.Kafka.BatchSize,
		SettleWindow: cfg.Ledger.SettleWindow,
	}, logger)
	return relay, func() { _ = sink.Close() }
}

func provideJWTManager(cfg *config.Config) *jwt.Manager {
	return jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expire)
}

func provideEngine(cfg *config.Config, h router.Handlers, auth *middleware.AuthMiddleware, logger *zap.Logger) *gin.Engine {
	return router.New(router.Options{
		Mode:        cfg.Server.Mode,
		MetricsPath: metricsPath(cfg),
		Swagger:     cfg.Server.Mode != gin.ReleaseMode,
	}, h, auth, logger)
}

// initializeApp 由Wire生成的依赖注入器
// 返回的cleanup按构造的逆序释放数据库、Redis、RabbitMQ和Kafka连接
func initializeApp(cfg *config.Config, logger *zap.Logger) (*app, func(), error) {
	wire.Build(
		infrastructureSet,
		repositorySet,
		gatewaySet,
		applicationSet,
		workerSet,
		httpSet,
		wire.Struct(new(app), "*"),
	)
	return nil, nil, nil
}
