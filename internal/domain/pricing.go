package domain

// PriceBreakdown captures the monetary results of pricing a cart. Values are
// in OMR except AmountToCharge and the charge-line unit amounts, which are in
// baisa because they go to the gateway verbatim.
type PriceBreakdown struct {
	Subtotal              float64
	PairDiscount          float64
	SubtotalAfterDiscount float64
	ShippingFee           float64
	DepositMode           bool
	AmountToCharge        int64
	RemainingAmount       float64
	LineItems             []ChargeLine
}

// ChargeLine is a single gateway product line. UnitAmount is in baisa and is
// never below the gateway minimum charge.
type ChargeLine struct {
	Name       string
	Quantity   int
	UnitAmount int64
}

// Total returns the summed baisa amount across all charge lines.
func (b PriceBreakdown) Total() int64 {
	var total int64
	for _, line := range b.LineItems {
		total += line.UnitAmount * int64(line.Quantity)
	}
	return total
}
