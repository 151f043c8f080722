package payment

import "testing"

func TestRefundable(t *testing.T) {
	p := &Payment{Amount: 1000}
	tests := []struct {
		refunded int64
		want     int64
	}{
		{0, 1000},
		{400, 600},
		{1000, 0},
		{1200, 0},
	}
	for _, tt := range tests {
		if got := Refundable(p, tt.refunded); got != tt.want {
			t.Errorf("Refundable(refunded=%d) = %d, 期望 %d", tt.refunded, got, tt.want)
		}
	}
}
