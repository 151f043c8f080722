package tracing

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func installRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	Install(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return sr
}

// TestInitTracer 测试Tracer初始化
func TestInitTracer(t *testing.T) {
	shutdown, err := InitTracer(Config{ServiceName: "test-service", Endpoint: "localhost:4317"})
	if err != nil {
		t.Fatalf("初始化Tracer失败: %v", err)
	}
	// 没有Collector时shutdown可能返回导出错误,这里只关心不阻塞
	_ = shutdown(context.Background())
}

// TestStartSpan 测试Span创建
func TestStartSpan(t *testing.T) {
	installRecorder(t)

	t.Run("创建根Span", func(t *testing.T) {
		_, span := StartSpan(context.Background(), "test", "Root")
		defer span.End()

		if !span.SpanContext().IsValid() {
			t.Error("Span无效")
		}
	})

	t.Run("子Span继承TraceID", func(t *testing.T) {
		ctx, root := StartSpan(context.Background(), "test", "Root")
		defer root.End()
		_, child := StartSpan(ctx, "test", "Child")
		defer child.End()

		if child.SpanContext().TraceID() != root.SpanContext().TraceID() {
			t.Error("子Span的TraceID不匹配")
		}
		if child.SpanContext().SpanID() == root.SpanContext().SpanID() {
			t.Error("子Span的SpanID不应与根Span相同")
		}
	})
}

// TestEnd 测试按错误设置状态
func TestEnd(t *testing.T) {
	sr := installRecorder(t)

	_, ok := StartSpan(context.Background(), "test", "HoldStock")
	ok.SetAttributes(attribute.String("stock_item_id", "s-1"))
	End(ok, nil)

	_, failed := StartSpan(context.Background(), "test", "HoldStock")
	End(failed, errors.New("库存不足"))

	ended := sr.Ended()
	if len(ended) != 2 {
		t.Fatalf("结束的Span数错误: expected=2, got=%d", len(ended))
	}
	if ended[0].Status().Code != codes.Ok {
		t.Errorf("成功Span状态错误: %v", ended[0].Status().Code)
	}
	if ended[1].Status().Code != codes.Error {
		t.Errorf("失败Span状态错误: %v", ended[1].Status().Code)
	}
	if len(ended[1].Events()) == 0 {
		t.Error("失败Span应记录错误事件")
	}
}

// TestExtractIDs 测试TraceID/SpanID提取
func TestExtractIDs(t *testing.T) {
	installRecorder(t)

	t.Run("有效Context", func(t *testing.T) {
		ctx, span := StartSpan(context.Background(), "test", "Extract")
		defer span.End()

		if got := ExtractTraceID(ctx); len(got) != 32 {
			t.Errorf("TraceID长度错误: expected=32, got=%d", len(got))
		}
		if got := ExtractSpanID(ctx); len(got) != 16 {
			t.Errorf("SpanID长度错误: expected=16, got=%d", len(got))
		}
	})

	t.Run("无Span的Context", func(t *testing.T) {
		if got := ExtractTraceID(context.Background()); got != "" {
			t.Errorf("期望空字符串，实际: %s", got)
		}
		if got := ExtractSpanID(context.Background()); got != "" {
			t.Errorf("期望空字符串，实际: %s", got)
		}
	})
}
