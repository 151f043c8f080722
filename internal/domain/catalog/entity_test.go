package catalog

import "testing"

func TestProductType(t *testing.T) {
	tests := []struct {
		typ          ProductType
		requiresSlot bool
		valid        bool
	}{
		{ProductDigital, false, true},
		{ProductOfflineService, true, true},
		{ProductOnlineConsulting, true, true},
		{ProductType("PHYSICAL"), false, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.typ), func(t *testing.T) {
			if got := tt.typ.RequiresSlot(); got != tt.requiresSlot {
				t.Errorf("RequiresSlot() = %v, 期望 %v", got, tt.requiresSlot)
			}
			if got := tt.typ.Valid(); got != tt.valid {
				t.Errorf("Valid() = %v, 期望 %v", got, tt.valid)
			}
		})
	}
}

func TestPrice_BelongsTo(t *testing.T) {
	p := Price{ProductID: "p1", Active: true}
	if !p.BelongsTo("p1") {
		t.Error("价格应属于p1")
	}
	if p.BelongsTo("p2") {
		t.Error("价格不属于p2")
	}
	p.Active = false
	if p.BelongsTo("p1") {
		t.Error("停用价格不可用")
	}
}
