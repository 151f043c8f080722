package logger

import "testing"

func TestNew(t *testing.T) {
	t.Run("json格式", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Format: "json", Output: "stderr"})
		if err != nil {
			t.Fatalf("创建日志器失败: %v", err)
		}
		if !l.Core().Enabled(-1) {
			t.Error("debug级别应启用")
		}
	})

	t.Run("默认info级别", func(t *testing.T) {
		l, err := New(Config{Format: "console"})
		if err != nil {
			t.Fatalf("创建日志器失败: %v", err)
		}
		if l.Core().Enabled(-1) {
			t.Error("info级别下debug不应启用")
		}
	})

	t.Run("非法级别", func(t *testing.T) {
		if _, err := New(Config{Level: "verbose"}); err == nil {
			t.Error("期望返回错误")
		}
	})
}
