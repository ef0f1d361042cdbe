package pos

import "diffpos/backend/internal/domain"

// Pricing runs entirely on int64 minor units with percentages converted to
// basis points, so no float drift can reach a published amount. Each monetary
// figure is rounded half-up exactly once; taxable and total are then derived
// from the already-published figures, which keeps
// total = subtotal - discount + tax an exact identity.

const basisPointScale = 10000

// Compute derives the price breakdown from the cart. It is a pure projection
// of cart state and is re-derived on every call, never cached, so discount
// and tax-rate changes are always reflected.
func Compute(cart *Cart) domain.PriceBreakdown {
	subtotal := int64(0)
	for _, line := range cart.Items() {
		subtotal += line.UnitPriceMinor * int64(line.Quantity)
	}

	discountBP := percentToBasisPoints(cart.DiscountPercent())
	taxBP := percentToBasisPoints(cart.TaxRatePercent())

	discount := roundHalfUp(subtotal*discountBP, basisPointScale)
	taxable := subtotal - discount
	tax := roundHalfUp(taxable*taxBP, basisPointScale)

	return domain.PriceBreakdown{
		SubtotalMinor: subtotal,
		DiscountMinor: discount,
		TaxableMinor:  taxable,
		TaxMinor:      tax,
		TotalMinor:    taxable + tax,
		DiscountPct:   cart.DiscountPercent(),
		TaxRatePct:    cart.TaxRatePercent(),
	}
}

func percentToBasisPoints(percent float64) int64 {
	if percent <= 0 {
		return 0
	}
	// Half-up at the basis-point level; rates finer than 0.01% are not
	// representable in the store configuration.
	return int64(percent*100 + 0.5)
}

func roundHalfUp(numerator int64, denominator int64) int64 {
	if numerator <= 0 {
		return 0
	}
	return (numerator + denominator/2) / denominator
}
