package circuitbreaker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

var errUnavailable = errors.New("gateway unavailable")

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestBreaker(clk *fakeClock, cfg Config) *CircuitBreaker {
	cfg.Now = clk.Now
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return NewCircuitBreaker("test", cfg)
}

func fail() error    { return errUnavailable }
func succeed() error { return nil }

// TestCircuitBreaker_ClosedState 测试关闭状态
func TestCircuitBreaker_ClosedState(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := newTestBreaker(clk, Config{MaxRequests: 3, Interval: 10 * time.Second})

	for i := 0; i < 10; i++ {
		if err := cb.Execute(succeed); err != nil {
			t.Fatalf("期望成功，实际失败: %v", err)
		}
	}

	if cb.State() != StateClosed {
		t.Errorf("期望状态为CLOSED，实际%s", cb.State())
	}
	if counts := cb.Counts(); counts.TotalSuccesses != 10 {
		t.Errorf("期望成功10次，实际%d次", counts.TotalSuccesses)
	}
}

// TestCircuitBreaker_Transitions 测试状态转换
func TestCircuitBreaker_Transitions(t *testing.T) {
	t.Run("连续失败触发熔断", func(t *testing.T) {
		clk := &fakeClock{now: time.Unix(1700000000, 0)}
		cb := newTestBreaker(clk, Config{})

		for i := 0; i < 5; i++ {
			_ = cb.Execute(fail)
		}
		if cb.State() != StateOpen {
			t.Fatalf("期望状态为OPEN，实际%s", cb.State())
		}

		called := false
		err := cb.Execute(func() error { called = true; return nil })
		if !errors.Is(err, ErrOpenState) {
			t.Errorf("期望返回ErrOpenState，实际%v", err)
		}
		if called {
			t.Error("熔断器打开时不应该调用实际函数")
		}
	})

	t.Run("超时后半开,探测成功后关闭", func(t *testing.T) {
		clk := &fakeClock{now: time.Unix(1700000000, 0)}
		cb := newTestBreaker(clk, Config{MaxRequests: 1})
		for i := 0; i < 5; i++ {
			_ = cb.Execute(fail)
		}

		clk.Advance(31 * time.Second)
		if cb.State() != StateHalfOpen {
			t.Fatalf("期望状态为HALF_OPEN，实际%s", cb.State())
		}
		if err := cb.Execute(succeed); err != nil {
			t.Fatalf("探测请求失败: %v", err)
		}
		if cb.State() != StateClosed {
			t.Errorf("期望状态为CLOSED，实际%s", cb.State())
		}
	})

	t.Run("半开状态失败重新打开", func(t *testing.T) {
		clk := &fakeClock{now: time.Unix(1700000000, 0)}
		cb := newTestBreaker(clk, Config{})
		for i := 0; i < 5; i++ {
			_ = cb.Execute(fail)
		}
		clk.Advance(31 * time.Second)

		_ = cb.Execute(fail)
		if cb.State() != StateOpen {
			t.Errorf("期望状态为OPEN，实际%s", cb.State())
		}
	})

	t.Run("统计窗口过期重置计数", func(t *testing.T) {
		clk := &fakeClock{now: time.Unix(1700000000, 0)}
		cb := newTestBreaker(clk, Config{Interval: 10 * time.Second})
		for i := 0; i < 4; i++ {
			_ = cb.Execute(fail)
		}
		clk.Advance(11 * time.Second)
		_ = cb.Execute(fail)

		if cb.State() != StateClosed {
			t.Errorf("期望状态为CLOSED，实际%s", cb.State())
		}
		if got := cb.Counts().ConsecutiveFailures; got != 1 {
			t.Errorf("期望连续失败1次，实际%d次", got)
		}
	})
}

// TestCircuitBreaker_IsSuccessful 测试业务错误不计入失败
func TestCircuitBreaker_IsSuccessful(t *testing.T) {
	errBusiness := errors.New("refund exceeds payment")
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := newTestBreaker(clk, Config{
		IsSuccessful: func(err error) bool { return err == nil || errors.Is(err, errBusiness) },
	})

	for i := 0; i < 10; i++ {
		err := cb.Execute(func() error { return errBusiness })
		if !errors.Is(err, errBusiness) {
			t.Fatalf("业务错误应原样返回: %v", err)
		}
	}
	if cb.State() != StateClosed {
		t.Errorf("业务错误不应触发熔断，实际%s", cb.State())
	}
}

// TestCircuitBreaker_StateChangeCallback 测试状态变化回调
func TestCircuitBreaker_StateChangeCallback(t *testing.T) {
	var changes []string
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := newTestBreaker(clk, Config{
		ReadyToTrip: func(counts Counts) bool { return counts.ConsecutiveFailures >= 2 },
		OnStateChange: func(name string, from, to State) {
			changes = append(changes, from.String()+"->"+to.String())
		},
	})

	_ = cb.Execute(fail)
	_ = cb.Execute(fail)
	clk.Advance(31 * time.Second)
	_ = cb.Execute(succeed)

	want := []string{"CLOSED->OPEN", "OPEN->HALF_OPEN", "HALF_OPEN->CLOSED"}
	if len(changes) != len(want) {
		t.Fatalf("状态变化次数错误: expected=%v, got=%v", want, changes)
	}
	for i := range want {
		if changes[i] != want[i] {
			t.Errorf("第%d次状态变化错误: expected=%s, got=%s", i, want[i], changes[i])
		}
	}
}

// TestCircuitBreaker_ExecuteContext 测试已取消的Context
func TestCircuitBreaker_ExecuteContext(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1700000000, 0)}
	cb := newTestBreaker(clk, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := cb.ExecuteContext(ctx, func(ctx context.Context) error { called = true; return nil })
	if !errors.Is(err, context.Canceled) {
		t.Errorf("期望context.Canceled，实际%v", err)
	}
	if called {
		t.Error("已取消的Context不应调用实际函数")
	}
	if cb.Counts().Requests != 0 {
		t.Error("已取消的请求不应计入统计")
	}
}

// TestCounts_FailureRate 测试失败率
func TestCounts_FailureRate(t *testing.T) {
	tests := []struct {
		name   string
		counts Counts
		want   float64
	}{
		{"无请求", Counts{}, 0},
		{"一半失败", Counts{Requests: 4, TotalFailures: 2}, 0.5},
		{"全部失败", Counts{Requests: 3, TotalFailures: 3}, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.counts.FailureRate(); got != tt.want {
				t.Errorf("FailureRate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func BenchmarkCircuitBreaker(b *testing.B) {
	cb := NewCircuitBreaker("bench", Config{Timeout: time.Second})
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = cb.Execute(succeed)
	}
}
