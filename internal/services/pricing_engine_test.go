package services

import (
	"errors"
	"testing"

	"github.com/zainahstore/api/internal/domain"
)

func testPricingRules() PricingRules {
	return PricingRules{
		DepositOMR:             10,
		DomesticShippingOMR:    2,
		GulfShippingOMR:        5,
		UAEShippingOMR:         4,
		PairDiscountOMR:        1,
		PairDiscountCategories: []string{"الشيلات فرنسية", "الشيلات سادة"},
		UnitFloorOMR:           0.1,
	}
}

func newTestEngine(t *testing.T) *PricingEngine {
	t.Helper()
	engine, err := NewPricingEngine(testPricingRules())
	if err != nil {
		t.Fatalf("NewPricingEngine returned error: %v", err)
	}
	return engine
}

func TestQuoteFullOrder(t *testing.T) {
	engine := newTestEngine(t)

	items := []domain.CartItem{
		{Name: "شيلة فرنسية", Price: 10, Quantity: 2, Category: "الشيلات فرنسية"},
		{Name: "مشط", Price: 5, Quantity: 1, Category: "اكسسوارات"},
	}

	breakdown, err := engine.Quote(items, ShippingContext{Country: "عمان"}, false)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}

	if breakdown.Subtotal != 25 {
		t.Errorf("Subtotal = %v, want 25", breakdown.Subtotal)
	}
	if breakdown.PairDiscount != 1 {
		t.Errorf("PairDiscount = %v, want 1", breakdown.PairDiscount)
	}
	if breakdown.SubtotalAfterDiscount != 24 {
		t.Errorf("SubtotalAfterDiscount = %v, want 24", breakdown.SubtotalAfterDiscount)
	}
	if breakdown.ShippingFee != 2 {
		t.Errorf("ShippingFee = %v, want 2", breakdown.ShippingFee)
	}
	if breakdown.AmountToCharge != 26000 {
		t.Errorf("AmountToCharge = %d baisa, want 26000", breakdown.AmountToCharge)
	}
	if breakdown.RemainingAmount != 0 {
		t.Errorf("RemainingAmount = %v, want 0", breakdown.RemainingAmount)
	}

	if len(breakdown.LineItems) != 3 {
		t.Fatalf("expected 3 charge lines, got %d", len(breakdown.LineItems))
	}
	first := breakdown.LineItems[0]
	if first.UnitAmount != 9500 || first.Quantity != 2 {
		t.Errorf("discounted line = %+v, want unit 9500 qty 2", first)
	}
	second := breakdown.LineItems[1]
	if second.UnitAmount != 5000 || second.Quantity != 1 {
		t.Errorf("plain line = %+v, want unit 5000 qty 1", second)
	}
	shipping := breakdown.LineItems[2]
	if shipping.Name != shippingLineName || shipping.UnitAmount != 2000 {
		t.Errorf("shipping line = %+v, want unit 2000", shipping)
	}
}

func TestQuoteDepositMode(t *testing.T) {
	engine := newTestEngine(t)

	items := []domain.CartItem{
		{Name: "شيلة فرنسية", Price: 10, Quantity: 2, Category: "الشيلات فرنسية"},
		{Name: "مشط", Price: 5, Quantity: 1, Category: "اكسسوارات"},
	}

	breakdown, err := engine.Quote(items, ShippingContext{Country: "عمان"}, true)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}

	if len(breakdown.LineItems) != 1 {
		t.Fatalf("deposit quote should charge a single line, got %d", len(breakdown.LineItems))
	}
	if breakdown.LineItems[0].Name != depositLineName {
		t.Errorf("unexpected deposit line name %q", breakdown.LineItems[0].Name)
	}
	if breakdown.AmountToCharge != 10000 {
		t.Errorf("AmountToCharge = %d baisa, want 10000", breakdown.AmountToCharge)
	}
	// 24 after discount plus 2 shipping minus the 10 deposit.
	if breakdown.RemainingAmount != 16 {
		t.Errorf("RemainingAmount = %v, want 16", breakdown.RemainingAmount)
	}
}

func TestQuoteDepositCoversTotal(t *testing.T) {
	engine := newTestEngine(t)

	items := []domain.CartItem{{Name: "مشط", Price: 3, Quantity: 1, Category: "اكسسوارات"}}
	breakdown, err := engine.Quote(items, ShippingContext{Country: "عمان"}, true)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if breakdown.RemainingAmount != 0 {
		t.Errorf("RemainingAmount = %v, want 0 when deposit exceeds total", breakdown.RemainingAmount)
	}
}

func TestQuotePairDiscountOddQuantity(t *testing.T) {
	engine := newTestEngine(t)

	items := []domain.CartItem{
		{Name: "شيلة سادة", Price: 4, Quantity: 5, Category: "الشيلات سادة"},
	}
	breakdown, err := engine.Quote(items, ShippingContext{Country: "عمان"}, false)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	// Two full pairs out of five units.
	if breakdown.PairDiscount != 2 {
		t.Errorf("PairDiscount = %v, want 2", breakdown.PairDiscount)
	}
	// 4 minus 2/5 per unit.
	if got := breakdown.LineItems[0].UnitAmount; got != 3600 {
		t.Errorf("discounted unit = %d baisa, want 3600", got)
	}
}

func TestQuoteUnitFloor(t *testing.T) {
	engine := newTestEngine(t)

	items := []domain.CartItem{
		{Name: "شيلة سادة", Price: 0.3, Quantity: 4, Category: "الشيلات سادة"},
	}
	breakdown, err := engine.Quote(items, ShippingContext{Country: "عمان"}, false)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	// 0.3 minus 2/4 would go negative, so the unit clamps to the floor.
	if got := breakdown.LineItems[0].UnitAmount; got != 100 {
		t.Errorf("floored unit = %d baisa, want 100", got)
	}
}

func TestQuoteIneligibleCategoryKeepsPrice(t *testing.T) {
	engine := newTestEngine(t)

	items := []domain.CartItem{
		{Name: "عباية", Price: 12, Quantity: 4, Category: "العبايات"},
	}
	breakdown, err := engine.Quote(items, ShippingContext{Country: "عمان"}, false)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if breakdown.PairDiscount != 0 {
		t.Errorf("PairDiscount = %v, want 0", breakdown.PairDiscount)
	}
	if got := breakdown.LineItems[0].UnitAmount; got != 12000 {
		t.Errorf("unit = %d baisa, want 12000", got)
	}
}

func TestShippingFee(t *testing.T) {
	engine := newTestEngine(t)

	cases := []struct {
		name     string
		shipping ShippingContext
		want     float64
	}{
		{"domestic", ShippingContext{Country: "عمان"}, 2},
		{"gulf", ShippingContext{Country: domain.GulfRegionSelector, GulfCountry: "الكويت"}, 5},
		{"uae", ShippingContext{Country: domain.GulfRegionSelector, GulfCountry: domain.CountryUAE}, 4},
		{"unrecognised falls back to domestic", ShippingContext{Country: "France"}, 2},
		{"blank falls back to domestic", ShippingContext{}, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := engine.ShippingFee(tc.shipping); got != tc.want {
				t.Fatalf("ShippingFee = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestQuoteRejectsInvalidInput(t *testing.T) {
	engine := newTestEngine(t)

	cases := []struct {
		name  string
		items []domain.CartItem
	}{
		{"empty cart", nil},
		{"missing name", []domain.CartItem{{Price: 1, Quantity: 1}}},
		{"zero quantity", []domain.CartItem{{Name: "x", Price: 1, Quantity: 0}}},
		{"negative price", []domain.CartItem{{Name: "x", Price: -1, Quantity: 1}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := engine.Quote(tc.items, ShippingContext{Country: "عمان"}, false); !errors.Is(err, ErrPricingInvalidInput) {
				t.Fatalf("expected ErrPricingInvalidInput, got %v", err)
			}
		})
	}
}

func TestQuoteMinimumChargeClamp(t *testing.T) {
	engine := newTestEngine(t)

	items := []domain.CartItem{{Name: "شريط", Price: 0.05, Quantity: 1, Category: "اكسسوارات"}}
	breakdown, err := engine.Quote(items, ShippingContext{Country: "عمان"}, false)
	if err != nil {
		t.Fatalf("Quote returned error: %v", err)
	}
	if got := breakdown.LineItems[0].UnitAmount; got != domain.MinChargeBaisa {
		t.Errorf("unit = %d baisa, want minimum %d", got, domain.MinChargeBaisa)
	}
}
