package clock

import (
	"sync"
	"time"
)

// Clock 时间来源
// 业务代码统一通过Clock取当前时间,测试中可注入固定时钟
type Clock interface {
	Now() time.Time
}

// System 系统时钟(UTC)
type System struct{}

// Now 返回当前UTC时间
func (System) Now() time.Time {
	return time.Now().UTC()
}

// Fixed 可手动推进的时钟
type Fixed struct {
	mu  sync.Mutex
	now time.Time
}

// NewFixed 创建固定时钟
func NewFixed(t time.Time) *Fixed {
	return &Fixed{now: t.UTC()}
}

func (f *Fixed) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

// Advance 推进时钟
func (f *Fixed) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
}

// Set 直接设置时间
func (f *Fixed) Set(t time.Time) {
	f.mu.Lock()
	f.now = t.UTC()
	f.mu.Unlock()
}
