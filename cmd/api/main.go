package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cartapp "github.com/xiebiao/storefront/internal/application/cart"
	"github.com/xiebiao/storefront/internal/application/fulfillment"
	"github.com/xiebiao/storefront/internal/application/hold"
	"github.com/xiebiao/storefront/internal/application/ledger"
	orderapp "github.com/xiebiao/storefront/internal/application/order"
	webhookapp "github.com/xiebiao/storefront/internal/application/webhook"
	"github.com/xiebiao/storefront/internal/domain/catalog"
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
	"github.com/xiebiao/storefront/pkg/logger"
	"github.com/xiebiao/storefront/pkg/mq"
	"github.com/xiebiao/storefront/pkg/response"
	"github.com/xiebiao/storefront/pkg/tracing"
)

var seed = flag.Bool("seed", false, "写入演示商品目录后退出")

// app 进程内所有需要启动的组件
type app struct {
	engine  *gin.Engine
	pool    *queue.Pool
	sweeper *cartapp.Sweeper
	relay   *ledger.Relay // 未启用Kafka时为nil
}

// main 主程序入口
// 启动顺序：配置 → 日志 → 链路追踪 → 组件装配 → HTTP服务和后台协程
// 收到SIGINT/SIGTERM后先停止接收请求,再等待后台协程退出
func main() {
	flag.Parse()

	// 1. 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 2. 初始化日志
	zl, err := logger.New(logger.Config{
		Level:        cfg.Log.Level,
		Format:       cfg.Log.Format,
		Output:       cfg.Log.Output,
		EnableCaller: cfg.Log.EnableCaller,
	})
	if err != nil {
		log.Fatalf("初始化日志失败: %v", err)
	}
	defer func() { _ = zl.Sync() }()
	response.SetLogger(zl)

	zl.Info("配置加载成功",
		zap.Int("port", cfg.Server.Port),
		zap.String("mode", cfg.Server.Mode),
		zap.String("database", fmt.Sprintf("%s:%d/%s", cfg.Database.Host, cfg.Database.Port, cfg.Database.DBName)),
		zap.String("redis", cfg.Redis.Addr()),
	)

	// 3. 链路追踪（可选）
	if cfg.Tracing.Enabled {
		shutdown, err := tracing.InitTracer(tracing.Config{
			ServiceName: cfg.Tracing.ServiceName,
			Endpoint:    cfg.Tracing.Endpoint,
			SampleRatio: cfg.Tracing.SampleRatio,
		})
		if err != nil {
			zl.Fatal("初始化链路追踪失败", zap.Error(err))
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(ctx); err != nil {
				zl.Warn("关闭链路追踪失败", zap.Error(err))
			}
		}()
	}

	if *seed {
		if err := runSeed(cfg, zl); err != nil {
			zl.Fatal("写入演示数据失败", zap.Error(err))
		}
		return
	}

	// 4. 依赖注入（手动组装,与wire.go中的Provider一一对应）
	a, cleanup, err := newApp(cfg, zl)
	if err != nil {
		zl.Fatal("初始化应用失败", zap.Error(err))
	}
	defer cleanup()

	// 5. 启动后台协程和HTTP服务
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	goRun := func(name string, run func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			zl.Info("后台任务启动", zap.String("component", name))
			run(ctx)
			zl.Info("后台任务退出", zap.String("component", name))
		}()
	}
	goRun("webhook-pool", a.pool.Run)
	goRun("cart-sweeper", a.sweeper.Run)
	if a.relay != nil {
		goRun("ledger-relay", a.relay.Run)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      a.engine,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
	go func() {
		zl.Info("服务启动成功", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("HTTP服务异常退出", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	zl.Info("收到退出信号,开始优雅关闭")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error("关闭HTTP服务失败", zap.Error(err))
	}
	wg.Wait()
	zl.Info("服务已停止")
}

// newApp 手动组装全部组件
// 依赖链：Repository ← 领域服务/占用管理 ← 应用服务 ← Handler ← Router
func newApp(cfg *config.Config, zl *zap.Logger) (*app, func(), error) {
	// 基础设施
	db, err := mysql.NewDB(cfg, zl)
	if err != nil {
		return nil, nil, err
	}
	if err := mysql.AutoMigrate(db); err != nil {
		return nil, nil, err
	}
	redisClient, err := redis.NewClient(cfg, zl)
	if err != nil {
		return nil, nil, err
	}
	clk := clock.System{}

	var closers []func() error
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				zl.Warn("释放资源失败", zap.Error(err))
			}
		}
	}
	closers = append(closers, redisClient.Close)
	if sqlDB, err := db.DB(); err == nil {
		closers = append(closers, sqlDB.Close)
	}

	// 仓储
	tx := mysql.NewTxManager(db)
	catalogReader := mysql.NewCatalogReader(db)
	stocks := mysql.NewStockRepository(db)
	ledgerRepo := mysql.NewLedgerRepository(db)
	cursors := mysql.NewCursorRepository(db)
	slots := mysql.NewSlotRepository(db)
	reservations := mysql.NewReservationRepository(db)
	carts := mysql.NewCartRepository(db)
	orders := mysql.NewOrderRepository(db)
	payments := mysql.NewPaymentRepository(db)
	refunds := mysql.NewRefundRepository(db)
	jobs := mysql.NewJobRepository(db)

	// 支付网关与事件发布
	gw := gateway.NewMock(gateway.Config{Secret: cfg.Webhook.Secret, CheckoutURL: cfg.Payment.CheckoutURL}, clk, zl)
	var publisher webhookapp.Publisher = webhookapp.NewLogPublisher(zl)
	if cfg.RabbitMQ.URL != "" {
		p, err := mq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange, zl)
		if err != nil {
			cleanup()
			return nil, nil, err
		}
		closers = append(closers, p.Close)
		publisher = p
	}

	// 应用层
	holds := hold.NewManager(tx, stocks, ledgerRepo, slots, reservations, clk, zl)
	cartService := cartapp.NewService(tx, carts, catalogReader, holds, clk, cfg.Cart.TTL, zl)
	pipeline := orderapp.NewPipelineService(tx, carts, orders, catalogReader, holds, clk, cfg.Order.HoldTTL, zl)
	checkout := orderapp.NewCheckoutService(tx, orders, payments, gw, clk, zl)
	refundService := orderapp.NewRefundService(tx, orders, payments, refunds, gw, holds, clk, cfg.Payment.RefundTimeout, zl)
	fulfillmentService := fulfillment.NewService(tx, orders, payments, jobs, holds, clk, cfg.Webhook.MaxAttempts, zl)

	receiver := webhookapp.NewReceiver(
		gateway.NewSignatureVerifier(cfg.Webhook.Secret, cfg.Webhook.Tolerance), jobs, clk, cfg.Webhook.MaxAttempts, zl)
	processor := webhookapp.NewProcessor(fulfillmentService, publisher, zl)
	jobAdmin := webhookapp.NewJobAdmin(jobs, clk, zl)
	exporter := ledger.NewExporter(ledgerRepo, orders, cfg.Ledger.ExportPageSize)
	reconciler := ledger.NewReconciler(stocks, ledgerRepo)

	// 后台组件
	pool := queue.NewPool(jobs, processor, clk, queue.Config{
		Workers:           cfg.Webhook.Workers,
		PollInterval:      cfg.Webhook.PollInterval,
		BatchSize:         cfg.Webhook.BatchSize,
		VisibilityTimeout: cfg.Webhook.VisibilityTimeout,
		BackoffInitial:    cfg.Webhook.BackoffInitial,
		BackoffMax:        cfg.Webhook.BackoffMax,
	}, zl)
	sweeper := cartapp.NewSweeper(tx, carts, orders, reservations, holds, fulfillmentService, redis.NewLocker(redisClient), clk,
		cartapp.SweeperConfig{Interval: cfg.Cart.SweepInterval, BatchSize: cfg.Cart.SweepBatch, OrderTTL: cfg.Order.HoldTTL}, zl)

	var relay *ledger.Relay
	if cfg.Kafka.Enabled {
		sink := eventlog.NewLedgerSink(eventlog.Config{Brokers: cfg.Kafka.Brokers, Topic: cfg.Kafka.Topic}, zl)
		closers = append(closers, sink.Close)
		relay = ledger.NewRelay(ledgerRepo, cursors, sink, clk, ledger.RelayConfig{
			Interval:     cfg.Kafka.RelayInterval,
			BatchSize:    cfg.Kafka.BatchSize,
			SettleWindow: cfg.Ledger.SettleWindow,
		}, zl)
	}

	// 接口层
	jwtManager := jwt.NewManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.Expire)
	engine := router.New(router.Options{
		Mode:        cfg.Server.Mode,
		MetricsPath: metricsPath(cfg),
		Swagger:     cfg.Server.Mode != gin.ReleaseMode,
	}, router.Handlers{
		Cart:    handler.NewCartHandler(cartService),
		Order:   handler.NewOrderHandler(pipeline, checkout, refundService),
		Slot:    handler.NewSlotHandler(catalogReader, clk),
		Webhook: handler.NewWebhookHandler(receiver),
		Admin:   handler.NewAdminHandler(exporter, reconciler, jobAdmin, zl),
	}, middleware.NewAuthMiddleware(jwtManager), zl)

	return &app{engine: engine, pool: pool, sweeper: sweeper, relay: relay}, cleanup, nil
}

func metricsPath(cfg *config.Config) string {
	if !cfg.Metrics.Enabled {
		return ""
	}
	return cfg.Metrics.Path
}

// runSeed 写入一组演示商品：一个限量电子书、一个不限量电子书、一个带三个时段的线下服务
func runSeed(cfg *config.Config, zl *zap.Logger) error {
	db, err := mysql.NewDB(cfg, zl)
	if err != nil {
		return err
	}
	if err := mysql.AutoMigrate(db); err != nil {
		return err
	}

	ctx := context.Background()
	seeder := mysql.NewSeeder(db, time.Now)
	for _, s := range []mysql.ProductSeed{
		{Type: catalog.ProductDigital, Title: "Go语言实战(电子版)", UnitAmount: 5900, Managed: true, Quantity: 100},
		{Type: catalog.ProductDigital, Title: "分布式系统讲义", UnitAmount: 1900},
	} {
		p, err := seeder.SeedProduct(ctx, s)
		if err != nil {
			return err
		}
		zl.Info("写入商品", zap.String("title", s.Title), zap.String("product_id", p.ProductID), zap.String("price_id", p.PriceID))
	}

	svc, err := seeder.SeedProduct(ctx, mysql.ProductSeed{Type: catalog.ProductOfflineService, Title: "架构咨询(1小时)", UnitAmount: 30000})
	if err != nil {
		return err
	}
	start := time.Now().UTC().Truncate(time.Hour).Add(24 * time.Hour)
	for i := 0; i < 3; i++ {
		slotID, err := seeder.SeedSlot(ctx, mysql.SlotSeed{
			ResourceID: svc.ResourceID, StartsAt: start.Add(time.Duration(i) * 2 * time.Hour), Duration: time.Hour, Capacity: 2,
		})
		if err != nil {
			return err
		}
		zl.Info("写入时段", zap.String("product_id", svc.ProductID), zap.String("slot_id", slotID))
	}
	return nil
}
