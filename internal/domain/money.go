package domain

import "math"

// MinChargeBaisa is the smallest amount the payment gateway accepts for a
// charge line (100 baisa = 0.1 OMR).
const MinChargeBaisa int64 = 100

// BaisaPerRial converts between the major unit (OMR) and the minor unit (baisa).
const BaisaPerRial = 1000

// ToBaisa converts a major-unit amount to baisa, clamping to the gateway
// minimum charge. Inputs are rounded to the nearest baisa before clamping.
func ToBaisa(amount float64) int64 {
	minor := int64(math.Round(amount * BaisaPerRial))
	if minor < MinChargeBaisa {
		return MinChargeBaisa
	}
	return minor
}

// FromBaisa converts a minor-unit amount back to OMR.
func FromBaisa(minor int64) float64 {
	return float64(minor) / BaisaPerRial
}
