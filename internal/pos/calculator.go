// Package pos holds the money and tax arithmetic for checkout and refunds.
// Everything here is a pure function over centavos; callers decide when to
// persist. Prices are VAT-inclusive at the Philippine 12% rate.
package pos

import "tindapos/backend/internal/domain"

// Line is one cart or transaction line as the calculator sees it.
type Line struct {
	SKU            string
	Qty            int
	UnitPriceCents int64
	VatType        string
}

// Totals is the header-level aggregate for a sale.
type Totals struct {
	TotalQty          int
	GrossCents        int64
	VatableCents      int64
	VatExemptCents    int64
	VatZeroRatedCents int64
	VatCents          int64
	DiscountCents     int64
	TotalCents        int64
	ChangeCents       int64
}

// ComputeTotals aggregates a cart into header totals. Senior/PWD carts take a
// 20% discount off the gross and the whole sale is reclassified VAT-exempt,
// regardless of per-line vat types. Otherwise each line keeps its own tax
// treatment and VAT is extracted from the vatable portion at the inclusive
// rate. Change is clamped at zero; cash sufficiency is validated by callers.
func ComputeTotals(lines []Line, cashCents int64, discountType string) Totals {
	var t Totals
	var vatableGross, exemptGross, zeroRatedGross int64
	for _, ln := range lines {
		lineTotal := ln.UnitPriceCents * int64(ln.Qty)
		t.TotalQty += ln.Qty
		t.GrossCents += lineTotal
		switch ln.VatType {
		case domain.VatTypeExempt:
			exemptGross += lineTotal
		case domain.VatTypeZeroRated:
			zeroRatedGross += lineTotal
		default:
			vatableGross += lineTotal
		}
	}

	if discountType == domain.DiscountSenior || discountType == domain.DiscountPwd {
		t.DiscountCents = roundDiv(t.GrossCents*20, 100)
		t.TotalCents = t.GrossCents - t.DiscountCents
		t.VatExemptCents = t.TotalCents
	} else {
		t.TotalCents = t.GrossCents
		t.VatableCents = extractNet(vatableGross)
		t.VatCents = vatableGross - t.VatableCents
		t.VatExemptCents = exemptGross
		t.VatZeroRatedCents = zeroRatedGross
	}

	if cashCents > t.TotalCents {
		t.ChangeCents = cashCents - t.TotalCents
	}
	return t
}

// AllocateLine distributes the header discount proportionally onto one line
// and derives its VAT portion. netCents is the line's share of the amount
// actually due; vatCents is zero for discounted sales and for non-vatable
// lines.
func AllocateLine(lineTotalCents int64, vatType string, discountType string, grossCents int64, totalCents int64) (netCents int64, vatCents int64) {
	netCents = lineTotalCents
	if grossCents > 0 && totalCents != grossCents {
		netCents = roundDiv(lineTotalCents*totalCents, grossCents)
	}
	if discountType == domain.DiscountNone && vatType == domain.VatTypeVatable {
		vatCents = netCents - extractNet(netCents)
	}
	return netCents, vatCents
}

// RecomputeItem re-derives a line's stored monetary fields from its current
// quantity, against the post-refund header gross and total. A quantity of
// zero degrades every field to zero.
func RecomputeItem(qty int, unitPriceCents int64, vatType string, discountType string, grossCents int64, totalCents int64) (lineTotalCents int64, netCents int64, vatCents int64) {
	lineTotalCents = unitPriceCents * int64(qty)
	netCents, vatCents = AllocateLine(lineTotalCents, vatType, discountType, grossCents, totalCents)
	return lineTotalCents, netCents, vatCents
}

// UnitNet is the per-unit net price of a line at its current state, used to
// price refunds. Rounds half-up to the centavo.
func UnitNet(netCents int64, qty int) int64 {
	if qty <= 0 {
		return 0
	}
	return roundDiv(netCents, int64(qty))
}

// extractNet removes the 12% inclusive VAT: net = round(inclusive / 1.12).
func extractNet(inclusiveCents int64) int64 {
	return roundDiv(inclusiveCents*100, 112)
}

// roundDiv divides non-negative centavo amounts with half-up rounding.
func roundDiv(num int64, den int64) int64 {
	return (num + den/2) / den
}
