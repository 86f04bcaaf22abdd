// Package billing holds the proration and billing-cycle arithmetic. Every
// function is pure and deterministic: integer day counts in, integer minor
// units out, with decimal intermediates rounded exactly once at the end.
package billing

import (
	"time"

	"github.com/shopspring/decimal"
)

// AnnualDiscount is the multiplier applied to twelve monthly payments when
// billed annually (20% off).
var annualDiscount = decimal.NewFromFloat(0.8)

// AnnualPrice derives the annual price from a monthly price in minor units:
// monthly x 12 x 0.8, rounded to the nearest minor unit.
func AnnualPrice(monthlyMinor int64) int64 {
	return decimal.NewFromInt(monthlyMinor).
		Mul(decimal.NewFromInt(12)).
		Mul(annualDiscount).
		Round(0).
		IntPart()
}

// UpgradeProration is the mid-cycle charge when moving to a more expensive
// monthly tier: (new - old) x daysRemaining/daysInPeriod. Never negative.
func UpgradeProration(oldMonthlyMinor, newMonthlyMinor int64, daysRemaining, daysInPeriod int) int64 {
	if daysInPeriod <= 0 || daysRemaining <= 0 {
		return 0
	}
	charge := prorate(newMonthlyMinor-oldMonthlyMinor, daysRemaining, daysInPeriod)
	if charge < 0 {
		return 0
	}
	return charge
}

// DowngradeCredit is the balance credit owed when scheduling a move to a
// cheaper monthly tier, applied to the next invoice rather than refunded:
// (old - new) x daysRemaining/daysInPeriod.
func DowngradeCredit(oldMonthlyMinor, newMonthlyMinor int64, daysRemaining, daysInPeriod int) int64 {
	if daysInPeriod <= 0 || daysRemaining <= 0 {
		return 0
	}
	credit := prorate(oldMonthlyMinor-newMonthlyMinor, daysRemaining, daysInPeriod)
	if credit < 0 {
		return 0
	}
	return credit
}

// SwitchToAnnualCharge is the approximate true-up when switching
// monthly -> annual mid-period: annual price minus the unused monthly value.
func SwitchToAnnualCharge(monthlyMinor int64, daysRemaining, daysInPeriod int) int64 {
	if daysInPeriod <= 0 {
		return AnnualPrice(monthlyMinor)
	}
	unused := decimal.NewFromInt(monthlyMinor).
		Mul(decimal.NewFromInt(int64(daysRemaining))).
		Div(decimal.NewFromInt(int64(daysInPeriod)))
	charge := decimal.NewFromInt(AnnualPrice(monthlyMinor)).Sub(unused).Round(0).IntPart()
	if charge < 0 {
		return 0
	}
	return charge
}

// SwitchToMonthlyCredit is the credit for the unused annual value when
// switching annual -> monthly: unusedAnnualValue x daysRemaining/daysInAnnualPeriod.
func SwitchToMonthlyCredit(unusedAnnualValueMinor int64, daysRemaining, daysInAnnualPeriod int) int64 {
	if daysInAnnualPeriod <= 0 || daysRemaining <= 0 {
		return 0
	}
	credit := prorate(unusedAnnualValueMinor, daysRemaining, daysInAnnualPeriod)
	if credit < 0 {
		return 0
	}
	return credit
}

func prorate(amountMinor int64, daysRemaining, daysInPeriod int) int64 {
	return decimal.NewFromInt(amountMinor).
		Mul(decimal.NewFromInt(int64(daysRemaining))).
		Div(decimal.NewFromInt(int64(daysInPeriod))).
		Round(0).
		IntPart()
}

// PeriodDays counts whole days between two instants. Fractions are truncated
// so results stay reproducible regardless of wall-clock time within the day.
func PeriodDays(start, end time.Time) int {
	if !end.After(start) {
		return 0
	}
	return int(end.Sub(start) / (24 * time.Hour))
}

// DaysRemaining counts whole days from now until the period end, clamped at zero.
func DaysRemaining(now, periodEnd time.Time) int {
	return PeriodDays(now, periodEnd)
}
