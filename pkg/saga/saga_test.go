package saga

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

func recordStep(log *[]string, action string, err error) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		*log = append(*log, action)
		return err
	}
}

// TestSaga_Execute 测试执行与补偿顺序
func TestSaga_Execute(t *testing.T) {
	errGateway := errors.New("gateway down")

	t.Run("全部成功不补偿", func(t *testing.T) {
		var log []string
		s := NewSaga("refund").
			AddStep("record", recordStep(&log, "record", nil), recordStep(&log, "fail-record", nil)).
			AddStep("gateway", recordStep(&log, "gateway", nil), nil)

		if err := s.Execute(context.Background()); err != nil {
			t.Fatalf("Saga执行失败: %v", err)
		}
		if want := []string{"record", "gateway"}; !reflect.DeepEqual(log, want) {
			t.Errorf("执行顺序错误: expected=%v, got=%v", want, log)
		}
	})

	t.Run("失败后逆序补偿", func(t *testing.T) {
		var log []string
		s := NewSaga("refund").
			AddStep("a", recordStep(&log, "a", nil), recordStep(&log, "undo-a", nil)).
			AddStep("b", recordStep(&log, "b", nil), recordStep(&log, "undo-b", nil)).
			AddStep("c", recordStep(&log, "c", errGateway), recordStep(&log, "undo-c", nil))

		err := s.Execute(context.Background())
		if !errors.Is(err, errGateway) {
			t.Fatalf("期望包含原始错误，实际%v", err)
		}
		var stepErr *StepError
		if !errors.As(err, &stepErr) || stepErr.Step != "c" {
			t.Fatalf("期望StepError(c)，实际%v", err)
		}
		if want := []string{"a", "b", "c", "undo-b", "undo-a"}; !reflect.DeepEqual(log, want) {
			t.Errorf("补偿顺序错误: expected=%v, got=%v", want, log)
		}
	})

	t.Run("补偿失败继续执行并汇总", func(t *testing.T) {
		var log []string
		errUndo := errors.New("undo failed")
		s := NewSaga("refund").
			AddStep("a", recordStep(&log, "a", nil), recordStep(&log, "undo-a", nil)).
			AddStep("b", recordStep(&log, "b", nil), recordStep(&log, "undo-b", errUndo)).
			AddStep("c", recordStep(&log, "c", errGateway), nil)

		err := s.Execute(context.Background())
		var stepErr *StepError
		if !errors.As(err, &stepErr) {
			t.Fatalf("期望StepError，实际%v", err)
		}
		if !errors.Is(stepErr.Compensation, errUndo) {
			t.Errorf("补偿错误丢失: %v", stepErr.Compensation)
		}
		if want := []string{"a", "b", "c", "undo-b", "undo-a"}; !reflect.DeepEqual(log, want) {
			t.Errorf("补偿顺序错误: expected=%v, got=%v", want, log)
		}
	})
}

// TestSaga_Timeout 测试超时后补偿
func TestSaga_Timeout(t *testing.T) {
	var log []string
	s := NewSaga("slow", WithTimeout(10*time.Millisecond)).
		AddStep("a", recordStep(&log, "a", nil), recordStep(&log, "undo-a", nil)).
		AddStep("slow", func(ctx context.Context) error {
			<-ctx.Done()
			return ctx.Err()
		}, nil)

	err := s.Execute(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("期望超时错误，实际%v", err)
	}
	if want := []string{"a", "undo-a"}; !reflect.DeepEqual(log, want) {
		t.Errorf("补偿记录错误: expected=%v, got=%v", want, log)
	}
}
