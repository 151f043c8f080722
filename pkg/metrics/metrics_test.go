package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// TestInitMetrics 测试指标初始化
func TestInitMetrics(t *testing.T) {
	InitMetrics()
	InitMetrics() // 重复调用不应panic

	if HTTPRequestsTotal == nil || HoldOperationsTotal == nil || JobsProcessedTotal == nil {
		t.Fatal("指标未初始化")
	}
}

// TestRecordHold 测试占用指标
func TestRecordHold(t *testing.T) {
	labels := map[string]string{"kind": "stock", "op": "hold", "result": "rejected"}
	InitMetrics()
	before := getCounterVecValue(t, HoldOperationsTotal, labels)

	RecordHold("stock", "hold", "rejected")
	RecordHold("stock", "hold", "rejected")

	if got := getCounterVecValue(t, HoldOperationsTotal, labels) - before; got != 2 {
		t.Errorf("占用指标错误: expected=2, got=%f", got)
	}
}

// TestRecordJob 测试任务指标
func TestRecordJob(t *testing.T) {
	InitMetrics()
	failedLabels := map[string]string{"type": "test.job"}
	before := getCounterVecValue(t, JobsFailedTotal, failedLabels)

	RecordJob("test.job", "retry", 0.01)
	RecordJob("test.job", "failed", 0.02)

	if got := getCounterVecValue(t, JobsFailedTotal, failedLabels) - before; got != 1 {
		t.Errorf("FAILED任务数错误: expected=1, got=%f", got)
	}
	if got := getHistogramVecCount(t, JobProcessingDuration, failedLabels); got < 2 {
		t.Errorf("耗时观测次数错误: expected>=2, got=%d", got)
	}
}

// TestRecordSweep 测试清理指标
func TestRecordSweep(t *testing.T) {
	InitMetrics()
	labels := map[string]string{"source": "cart"}
	before := getCounterVecValue(t, SweeperReleasesTotal, labels)

	RecordSweep("cart", 3)
	RecordSweep("cart", 0)

	if got := getCounterVecValue(t, SweeperReleasesTotal, labels) - before; got != 3 {
		t.Errorf("清理指标错误: expected=3, got=%f", got)
	}
}

// TestGauge 测试处理中请求数
func TestGauge(t *testing.T) {
	InitMetrics()
	before := getGaugeValue(t, HTTPRequestsInProgress)

	IncGauge(HTTPRequestsInProgress)
	IncGauge(HTTPRequestsInProgress)
	DecGauge(HTTPRequestsInProgress)

	if got := getGaugeValue(t, HTTPRequestsInProgress) - before; got != 1 {
		t.Errorf("Gauge值错误: expected=1, got=%f", got)
	}
	DecGauge(HTTPRequestsInProgress)
}

// 辅助函数：获取CounterVec值
func getCounterVecValue(t *testing.T, counterVec *prometheus.CounterVec, labels map[string]string) float64 {
	var metric dto.Metric
	counter := counterVec.With(labels)
	if err := counter.(prometheus.Counter).Write(&metric); err != nil {
		t.Fatalf("读取CounterVec值失败: %v", err)
	}
	return metric.Counter.GetValue()
}

// 辅助函数：获取Gauge值
func getGaugeValue(t *testing.T, gauge prometheus.Gauge) float64 {
	var metric dto.Metric
	if err := gauge.Write(&metric); err != nil {
		t.Fatalf("读取Gauge值失败: %v", err)
	}
	return metric.Gauge.GetValue()
}

// 辅助函数：获取HistogramVec观测次数
func getHistogramVecCount(t *testing.T, histogramVec *prometheus.HistogramVec, labels map[string]string) uint64 {
	var metric dto.Metric
	histogram := histogramVec.With(labels)
	if err := histogram.(prometheus.Histogram).Write(&metric); err != nil {
		t.Fatalf("读取HistogramVec值失败: %v", err)
	}
	return metric.Histogram.GetSampleCount()
}
