// Package metrics 提供基于Prometheus的指标收集
//
// 指标分为三类:
//   - HTTP: 请求数、耗时、处理中请求数
//   - 占用: 库存/时段的占用、释放、扣减结果,过期清理释放数
//   - 任务: 支付回调与履约任务的处理结果、耗时、进入FAILED的任务数
//
// 所有Record*函数在首次调用时自动完成注册,业务代码无需关心初始化顺序。
// main中仍会显式调用InitMetrics,以便/metrics端点在第一个请求之前就暴露全部指标。
//
// # 命名规范
//
//  1. Counter以`_total`结尾
//  2. Histogram以单位结尾（`_seconds`）
//  3. 标签只使用有限取值（kind、op、result、type），不要用订单ID、客户ID作标签
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	once sync.Once

	// HTTP请求相关指标

	// HTTPRequestsTotal HTTP请求总数
	// 标签：method、path（路由模板）、status
	HTTPRequestsTotal *prometheus.CounterVec

	// HTTPRequestDuration HTTP请求耗时
	HTTPRequestDuration *prometheus.HistogramVec

	// HTTPRequestsInProgress 正在处理的HTTP请求数
	HTTPRequestsInProgress prometheus.Gauge

	// 占用指标

	// HoldOperationsTotal 占用操作总数
	// 标签：kind（stock/slot）、op（hold/release/commit/confirm/restock/refund）、result（success/rejected/error）
	HoldOperationsTotal *prometheus.CounterVec

	// SweeperReleasesTotal 过期清理释放的占用数
	// 标签：source（cart/order）
	SweeperReleasesTotal *prometheus.CounterVec

	// OrdersCreatedTotal 由购物车生成的订单总数
	OrdersCreatedTotal prometheus.Counter

	// 任务指标

	// JobsProcessedTotal 任务处理次数
	// 标签：type（任务类型）、result（success/retry/failed）
	JobsProcessedTotal *prometheus.CounterVec

	// JobProcessingDuration 单次任务处理耗时
	JobProcessingDuration *prometheus.HistogramVec

	// JobsFailedTotal 重试耗尽进入FAILED状态的任务数,需要人工介入
	JobsFailedTotal *prometheus.CounterVec

	// WebhookEventsTotal 收到的支付回调
	// 标签：result（accepted/duplicate/invalid_signature/malformed）
	WebhookEventsTotal *prometheus.CounterVec

	// LedgerEntriesExportedTotal 导出的流水条数
	// 标签：sink（http/kafka）
	LedgerEntriesExportedTotal *prometheus.CounterVec

	// 熔断器指标

	// CircuitBreakerState 熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）
	CircuitBreakerState *prometheus.GaugeVec

	// CircuitBreakerRequests 熔断器请求总数
	// 标签：name、result（success/failure/rejected）
	CircuitBreakerRequests *prometheus.CounterVec

	// Saga指标

	// SagaExecutionsTotal Saga执行总数
	// 标签：name、result（success/failure）
	SagaExecutionsTotal *prometheus.CounterVec

	// SagaCompensationsTotal Saga补偿执行总数
	SagaCompensationsTotal prometheus.Counter

	// 消息队列指标

	// MessagesPublishedTotal 消息发布总数
	// 标签：exchange、routing_key、result（success/failure）
	MessagesPublishedTotal *prometheus.CounterVec
)

// InitMetrics 初始化所有Prometheus指标
// 使用promauto.New*自动注册到默认Registry,重复调用安全
func InitMetrics() {
	once.Do(register)
}

func register() {
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP请求总数",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "HTTP请求耗时（秒）",
			// 桶设置：1ms、10ms、100ms、500ms、1s、5s、10s
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 10},
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_progress",
			Help: "正在处理的HTTP请求数",
		},
	)

	HoldOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "hold_operations_total",
			Help: "库存与时段占用操作总数",
		},
		[]string{"kind", "op", "result"},
	)

	SweeperReleasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sweeper_releases_total",
			Help: "过期清理释放的占用数",
		},
		[]string{"source"},
	)

	OrdersCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "订单创建总数",
		},
	)

	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_processed_total",
			Help: "任务处理次数",
		},
		[]string{"type", "result"},
	)

	JobProcessingDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "job_processing_duration_seconds",
			Help:    "任务处理耗时（秒）",
			Buckets: []float64{0.001, 0.01, 0.1, 0.5, 1, 5},
		},
		[]string{"type"},
	)

	JobsFailedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "jobs_failed_total",
			Help: "重试耗尽的任务数",
		},
		[]string{"type"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "收到的支付回调数",
		},
		[]string{"result"},
	)

	LedgerEntriesExportedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_entries_exported_total",
			Help: "导出的库存流水条数",
		},
		[]string{"sink"},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "熔断器状态（0=CLOSED, 1=OPEN, 2=HALF_OPEN）",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_requests_total",
			Help: "熔断器请求总数",
		},
		[]string{"name", "result"},
	)

	SagaExecutionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "saga_executions_total",
			Help: "Saga执行总数",
		},
		[]string{"name", "result"},
	)

	SagaCompensationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "saga_compensations_total",
			Help: "Saga补偿执行总数",
		},
	)

	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "messages_published_total",
			Help: "消息发布总数",
		},
		[]string{"exchange", "routing_key", "result"},
	)
}

// =========================================
// 业务记录函数
// =========================================

// RecordHold 记录一次占用操作
func RecordHold(kind, op, result string) {
	InitMetrics()
	HoldOperationsTotal.WithLabelValues(kind, op, result).Inc()
}

// RecordSweep 记录过期清理释放的占用数
func RecordSweep(source string, released int) {
	if released <= 0 {
		return
	}
	InitMetrics()
	SweeperReleasesTotal.WithLabelValues(source).Add(float64(released))
}

// RecordOrderCreated 记录订单创建
func RecordOrderCreated() {
	InitMetrics()
	OrdersCreatedTotal.Inc()
}

// RecordJob 记录一次任务处理
func RecordJob(jobType, result string, seconds float64) {
	InitMetrics()
	JobsProcessedTotal.WithLabelValues(jobType, result).Inc()
	JobProcessingDuration.WithLabelValues(jobType).Observe(seconds)
	if result == "failed" {
		JobsFailedTotal.WithLabelValues(jobType).Inc()
	}
}

// RecordWebhook 记录收到的回调
func RecordWebhook(result string) {
	InitMetrics()
	WebhookEventsTotal.WithLabelValues(result).Inc()
}

// RecordLedgerExport 记录导出的流水条数
func RecordLedgerExport(sink string, n int) {
	InitMetrics()
	LedgerEntriesExportedTotal.WithLabelValues(sink).Add(float64(n))
}

// RecordCircuitBreaker 记录熔断器请求结果与当前状态
func RecordCircuitBreaker(name, result string, state int) {
	InitMetrics()
	CircuitBreakerRequests.WithLabelValues(name, result).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordSaga 记录Saga执行结果
func RecordSaga(name, result string, compensations int) {
	InitMetrics()
	SagaExecutionsTotal.WithLabelValues(name, result).Inc()
	if compensations > 0 {
		SagaCompensationsTotal.Add(float64(compensations))
	}
}

// RecordPublish 记录消息发布
func RecordPublish(exchange, routingKey, result string) {
	InitMetrics()
	MessagesPublishedTotal.WithLabelValues(exchange, routingKey, result).Inc()
}

// =========================================
// 通用辅助函数
// =========================================

// IncCounterVec 递增CounterVec（带标签）
func IncCounterVec(counter *prometheus.CounterVec, labels map[string]string) {
	counter.With(labels).Inc()
}

// IncGauge 递增Gauge
func IncGauge(gauge prometheus.Gauge) {
	gauge.Inc()
}

// DecGauge 递减Gauge
func DecGauge(gauge prometheus.Gauge) {
	gauge.Dec()
}

// ObserveHistogramVec 记录HistogramVec观测值（带标签）
func ObserveHistogramVec(histogram *prometheus.HistogramVec, labels map[string]string, value float64) {
	histogram.With(labels).Observe(value)
}
