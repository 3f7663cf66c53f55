package domain

import "testing"

func TestNormalizeGiftCardDropsBlankCards(t *testing.T) {
	if got := NormalizeGiftCard(nil); got != nil {
		t.Fatalf("expected nil for nil card, got %+v", got)
	}
	if got := NormalizeGiftCard(&GiftCard{From: "  ", To: "\t", Phone: "", Note: " "}); got != nil {
		t.Fatalf("expected nil for whitespace-only card, got %+v", got)
	}
}

func TestNormalizeGiftCardKeepsPartialCards(t *testing.T) {
	got := NormalizeGiftCard(&GiftCard{From: " سارة ", Note: ""})
	if got == nil {
		t.Fatal("expected card to survive normalisation")
	}
	if got.From != "سارة" {
		t.Fatalf("expected trimmed from field, got %q", got.From)
	}
	if got.To != "" || got.Phone != "" || got.Note != "" {
		t.Fatalf("expected blank siblings to stay empty, got %+v", got)
	}
}

func TestNormalizeCountry(t *testing.T) {
	cases := []struct {
		name        string
		country     string
		gulfCountry string
		want        string
	}{
		{name: "domestic", country: "عمان", gulfCountry: "", want: "عمان"},
		{name: "gulf selector collapses", country: GulfRegionSelector, gulfCountry: "الكويت", want: "الكويت"},
		{name: "gulf selector without choice", country: GulfRegionSelector, gulfCountry: " ", want: GulfRegionSelector},
		{name: "trims input", country: " عمان ", gulfCountry: "", want: "عمان"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := NormalizeCountry(tc.country, tc.gulfCountry); got != tc.want {
				t.Fatalf("NormalizeCountry(%q, %q) = %q, want %q", tc.country, tc.gulfCountry, got, tc.want)
			}
		})
	}
}

func TestToBaisa(t *testing.T) {
	cases := []struct {
		amount float64
		want   int64
	}{
		{amount: 1, want: 1000},
		{amount: 0.1, want: 100},
		{amount: 0.05, want: MinChargeBaisa},
		{amount: 0, want: MinChargeBaisa},
		{amount: 2.5005, want: 2501},
		{amount: 12.345, want: 12345},
	}

	for _, tc := range cases {
		if got := ToBaisa(tc.amount); got != tc.want {
			t.Fatalf("ToBaisa(%v) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func TestFromBaisa(t *testing.T) {
	if got := FromBaisa(12500); got != 12.5 {
		t.Fatalf("FromBaisa(12500) = %v, want 12.5", got)
	}
}

func TestToOrderProductNormalisesGiftCard(t *testing.T) {
	item := CartItem{
		ProductID: " p-1 ",
		Name:      "شيلة",
		Price:     12.5,
		Quantity:  2,
		GiftCard:  &GiftCard{From: "  ", To: "", Phone: "", Note: ""},
	}
	product := item.ToOrderProduct()
	if product.GiftCard != nil {
		t.Fatalf("expected blank gift card to be dropped, got %+v", product.GiftCard)
	}
	if product.ProductID != "p-1" {
		t.Fatalf("expected trimmed product id, got %q", product.ProductID)
	}
}
