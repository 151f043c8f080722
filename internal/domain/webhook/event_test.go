package webhook

import (
	"errors"
	"testing"
	"time"
)

func TestParseEvent(t *testing.T) {
	t.Run("合法事件", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"id":"evt_1","type":"checkout.session.completed","data":{"object":{"id":"cs_1","client_reference_id":"o1","payment_intent":"pi_1","amount_total":1200,"currency":"usd"}}}`))
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		var obj CheckoutSessionObject
		if err := ev.DecodeObject(&obj); err != nil {
			t.Fatalf("解析对象失败: %v", err)
		}
		if obj.ClientReferenceID != "o1" || obj.PaymentIntent != "pi_1" || obj.AmountTotal != 1200 {
			t.Errorf("对象字段错误: %+v", obj)
		}
	})

	t.Run("缺少ID", func(t *testing.T) {
		if _, err := ParseEvent([]byte(`{"type":"x"}`)); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("期望ErrMalformedEvent, 实际 %v", err)
		}
	})

	t.Run("非JSON", func(t *testing.T) {
		if _, err := ParseEvent([]byte(`not json`)); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("期望ErrMalformedEvent, 实际 %v", err)
		}
	})

	t.Run("缺少对象", func(t *testing.T) {
		ev, err := ParseEvent([]byte(`{"id":"evt_2","type":"payment_intent.payment_failed"}`))
		if err != nil {
			t.Fatalf("解析失败: %v", err)
		}
		var obj PaymentIntentObject
		if err := ev.DecodeObject(&obj); !errors.Is(err, ErrMalformedEvent) {
			t.Errorf("期望ErrMalformedEvent, 实际 %v", err)
		}
	})
}

func TestJobIDs(t *testing.T) {
	if got := FulfillDigitalJobID("item1"); got != "fulfill-digital:item1" {
		t.Errorf("FulfillDigitalJobID = %s", got)
	}
	if got := ConfirmBookingJobID("r1"); got != "confirm-booking:r1" {
		t.Errorf("ConfirmBookingJobID = %s", got)
	}
}

func TestJob_Exhausted(t *testing.T) {
	j := NewJob("evt", "t", nil, 0, time.Now())
	if j.MaxAttempts != DefaultMaxAttempts || j.Status != JobPending {
		t.Fatalf("默认值错误: %+v", j)
	}
	j.Attempts = DefaultMaxAttempts - 1
	if j.Exhausted() {
		t.Error("未达到最大次数")
	}
	j.Attempts++
	if !j.Exhausted() {
		t.Error("应已耗尽")
	}
}
