package services

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/zainahstore/api/internal/domain"
)

// ErrPricingInvalidInput signals bad cart data such as missing items or
// negative prices.
var ErrPricingInvalidInput = errors.New("pricing: invalid input")

const (
	shippingLineName = "رسوم التوصيل"
	depositLineName  = "عربون الطلب"
)

// PricingRules holds the tunable amounts applied when quoting a cart.
// Monetary values are in OMR.
type PricingRules struct {
	DepositOMR             float64
	DomesticShippingOMR    float64
	GulfShippingOMR        float64
	UAEShippingOMR         float64
	PairDiscountOMR        float64
	PairDiscountCategories []string
	UnitFloorOMR           float64
}

// ShippingContext carries the destination used to resolve the shipping fee.
// GulfCountry holds the concrete choice when Country is the regional selector.
type ShippingContext struct {
	Country     string
	GulfCountry string
}

// PricingEngine deterministically maps a cart and shipping context to a
// price breakdown. It performs no I/O and holds no mutable state.
type PricingEngine struct {
	rules          PricingRules
	pairCategories map[string]struct{}
}

// NewPricingEngine validates the rules and builds the engine.
func NewPricingEngine(rules PricingRules) (*PricingEngine, error) {
	if rules.DepositOMR <= 0 {
		return nil, errors.New("pricing engine: deposit amount must be positive")
	}
	if rules.DomesticShippingOMR < 0 || rules.GulfShippingOMR < 0 || rules.UAEShippingOMR < 0 {
		return nil, errors.New("pricing engine: shipping fees cannot be negative")
	}
	if rules.PairDiscountOMR < 0 {
		return nil, errors.New("pricing engine: pair discount cannot be negative")
	}
	if rules.UnitFloorOMR <= 0 {
		return nil, errors.New("pricing engine: unit floor must be positive")
	}

	categories := make(map[string]struct{}, len(rules.PairDiscountCategories))
	for _, category := range rules.PairDiscountCategories {
		trimmed := strings.TrimSpace(category)
		if trimmed != "" {
			categories[trimmed] = struct{}{}
		}
	}

	return &PricingEngine{rules: rules, pairCategories: categories}, nil
}

// Quote prices the cart. In deposit mode the single charged line is the fixed
// deposit and the rest of the total becomes the remaining amount owed.
func (e *PricingEngine) Quote(items []domain.CartItem, shipping ShippingContext, depositMode bool) (domain.PriceBreakdown, error) {
	if len(items) == 0 {
		return domain.PriceBreakdown{}, fmt.Errorf("%w: cart is empty", ErrPricingInvalidInput)
	}

	var subtotal, pairDiscount float64
	type pricedLine struct {
		name     string
		quantity int
		unit     float64
	}
	lines := make([]pricedLine, 0, len(items)+1)

	for idx, item := range items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return domain.PriceBreakdown{}, fmt.Errorf("%w: item %d name is required", ErrPricingInvalidInput, idx)
		}
		if item.Quantity < 1 {
			return domain.PriceBreakdown{}, fmt.Errorf("%w: item %d quantity must be at least 1", ErrPricingInvalidInput, idx)
		}
		if item.Price < 0 || math.IsNaN(item.Price) || math.IsInf(item.Price, 0) {
			return domain.PriceBreakdown{}, fmt.Errorf("%w: item %d price is invalid", ErrPricingInvalidInput, idx)
		}

		subtotal += item.Price * float64(item.Quantity)

		unit := item.Price
		if e.eligibleForPairDiscount(item.Category) {
			itemDiscount := math.Floor(float64(item.Quantity)/2) * e.rules.PairDiscountOMR
			if itemDiscount > 0 {
				pairDiscount += itemDiscount
				unit = item.Price - itemDiscount/float64(item.Quantity)
				if unit < e.rules.UnitFloorOMR {
					unit = e.rules.UnitFloorOMR
				}
			}
		}

		lines = append(lines, pricedLine{name: name, quantity: item.Quantity, unit: unit})
	}

	shippingFee := e.ShippingFee(shipping)
	subtotalAfterDiscount := subtotal - pairDiscount
	if subtotalAfterDiscount < 0 {
		subtotalAfterDiscount = 0
	}
	fullTotal := subtotalAfterDiscount + shippingFee

	breakdown := domain.PriceBreakdown{
		Subtotal:              subtotal,
		PairDiscount:          pairDiscount,
		SubtotalAfterDiscount: subtotalAfterDiscount,
		ShippingFee:           shippingFee,
		DepositMode:           depositMode,
	}

	if depositMode {
		breakdown.LineItems = []domain.ChargeLine{
			{Name: depositLineName, Quantity: 1, UnitAmount: domain.ToBaisa(e.rules.DepositOMR)},
		}
		breakdown.AmountToCharge = breakdown.Total()
		breakdown.RemainingAmount = fullTotal - e.rules.DepositOMR
		if breakdown.RemainingAmount < 0 {
			breakdown.RemainingAmount = 0
		}
		return breakdown, nil
	}

	chargeLines := make([]domain.ChargeLine, 0, len(lines)+1)
	for _, line := range lines {
		chargeLines = append(chargeLines, domain.ChargeLine{
			Name:       line.name,
			Quantity:   line.quantity,
			UnitAmount: domain.ToBaisa(line.unit),
		})
	}
	if shippingFee > 0 {
		chargeLines = append(chargeLines, domain.ChargeLine{
			Name:       shippingLineName,
			Quantity:   1,
			UnitAmount: domain.ToBaisa(shippingFee),
		})
	}

	breakdown.LineItems = chargeLines
	breakdown.AmountToCharge = breakdown.Total()
	breakdown.RemainingAmount = 0
	return breakdown, nil
}

// ShippingFee resolves the fee for a destination. Unrecognised destinations
// fall back to the domestic rate.
func (e *PricingEngine) ShippingFee(shipping ShippingContext) float64 {
	country := strings.TrimSpace(shipping.Country)
	if country != domain.GulfRegionSelector {
		return e.rules.DomesticShippingOMR
	}
	if strings.TrimSpace(shipping.GulfCountry) == domain.CountryUAE {
		return e.rules.UAEShippingOMR
	}
	return e.rules.GulfShippingOMR
}

func (e *PricingEngine) eligibleForPairDiscount(category string) bool {
	_, ok := e.pairCategories[strings.TrimSpace(category)]
	return ok
}
