package billing

import (
	"fmt"
	"time"

	"github.com/genbaworks/tally/pkg/contracts"
)

// monthsPerAnnualPeriod is the number of monthly fees bundled into one
// annual billing period.
const monthsPerAnnualPeriod = 12

// CalculateMonthlyFee computes the invoice-ready line items for a contract.
// A contract that has never been billed gets its initial fees, the first
// discount, and one period of package fees. Subsequent invoices carry the
// period fee plus any pending prorated charge from a prior plan change.
//
// A snapshot with no active packages yields Total == 0; callers must not
// materialize a document for it.
func CalculateMonthlyFee(s Snapshot, asOf time.Time) FeeCalculation {
	calc := FeeCalculation{IsFirstInvoice: !s.Billed}
	periodFee := periodPackageFee(s)

	if calc.IsFirstInvoice {
		for _, line := range []LineItem{
			{Description: "Initial setup fee", Amount: s.InitialFees.Setup},
			{Description: "Initial data import fee", Amount: s.InitialFees.DataImport},
			{Description: "Onsite support fee", Amount: s.InitialFees.Onsite},
			{Description: "Training fee", Amount: s.InitialFees.Training},
			{Description: "Other initial fees", Amount: s.InitialFees.Other},
		} {
			if line.Amount != 0 {
				calc.Items = append(calc.Items, line)
				calc.Subtotal += line.Amount
			}
		}
		if periodFee > 0 {
			calc.Items = append(calc.Items, LineItem{Description: periodFeeDescription(s, asOf), Amount: periodFee})
			calc.Subtotal += periodFee
		}
		if s.InitialFees.Discount > 0 {
			calc.Items = append(calc.Items, LineItem{Description: "Initial discount", Amount: -s.InitialFees.Discount})
			calc.Discount = s.InitialFees.Discount
		}
		calc.Total = calc.Subtotal - calc.Discount
		return calc
	}

	if periodFee > 0 {
		calc.Items = append(calc.Items, LineItem{Description: periodFeeDescription(s, asOf), Amount: periodFee})
		calc.Subtotal += periodFee
	}
	if s.PendingCharge != 0 {
		desc := s.PendingDesc
		if desc == "" {
			desc = "Plan change prorated adjustment"
		}
		calc.Items = append(calc.Items, LineItem{Description: desc, Amount: s.PendingCharge})
		calc.Subtotal += s.PendingCharge
	}
	calc.Total = calc.Subtotal
	return calc
}

// PreviewPlanChange computes the mid-cycle proration for swapping the active
// package set on changeDate. The old plan's unused remainder is credited,
// the new plan's remainder is charged, both rounded half-up to the yen.
func PreviewPlanChange(s Snapshot, newPackages []*contracts.Package, changeDate time.Time) ProrationPreview {
	oldFee := contracts.MonthlyFeeSum(s.Packages)
	newFee := contracts.MonthlyFeeSum(newPackages)

	changeDate = dateOnly(changeDate)
	start, end := BillingPeriod(changeDate, s.BillingDay)

	periodDays := daysBetweenInclusive(start, end)
	prorationDays := daysBetweenInclusive(changeDate, end)
	if prorationDays < 0 {
		prorationDays = 0
	}

	oldProrated := -RoundHalfUp(oldFee*int64(prorationDays), int64(periodDays))
	newProrated := RoundHalfUp(newFee*int64(prorationDays), int64(periodDays))
	diff := oldProrated + newProrated

	return ProrationPreview{
		OldMonthlyFee:      oldFee,
		NewMonthlyFee:      newFee,
		ChangeDate:         changeDate,
		PeriodStart:        start,
		PeriodEnd:          end,
		PeriodDays:         periodDays,
		ProrationDays:      prorationDays,
		OldPlanProrated:    oldProrated,
		NewPlanProrated:    newProrated,
		ProratedDifference: diff,
		NextInvoiceAmount:  newFee + diff,
		ChangeType:         classifyChange(oldFee, newFee),
	}
}

// BillingPeriod returns the inclusive billing period containing date,
// anchored on billingDay. Day 99 anchors periods at the end of the month.
// Anchor days beyond a short month clamp to that month's last day.
func BillingPeriod(date time.Time, billingDay int) (start, end time.Time) {
	date = dateOnly(date)
	year, month, _ := date.Date()

	anchor := anchorDay(billingDay, year, month)
	if date.Day() >= anchor {
		nextYear, nextMonth := yearMonthAfter(year, month)
		nextAnchor := anchorDay(billingDay, nextYear, nextMonth)
		start = time.Date(year, month, anchor, 0, 0, 0, 0, date.Location())
		end = time.Date(nextYear, nextMonth, nextAnchor, 0, 0, 0, 0, date.Location()).AddDate(0, 0, -1)
	} else {
		prevYear, prevMonth := yearMonthBefore(year, month)
		prevAnchor := anchorDay(billingDay, prevYear, prevMonth)
		start = time.Date(prevYear, prevMonth, prevAnchor, 0, 0, 0, 0, date.Location())
		end = time.Date(year, month, anchor, 0, 0, 0, 0, date.Location()).AddDate(0, 0, -1)
	}
	return start, end
}

func periodPackageFee(s Snapshot) int64 {
	monthly := contracts.MonthlyFeeSum(s.Packages)
	if s.BillingCycle == contracts.CycleAnnual {
		return monthly * monthsPerAnnualPeriod
	}
	return monthly
}

func periodFeeDescription(s Snapshot, asOf time.Time) string {
	if s.BillingCycle == contracts.CycleAnnual {
		return fmt.Sprintf("Annual service fee (%d)", asOf.Year())
	}
	return fmt.Sprintf("Monthly service fee (%s)", asOf.Format("2006-01"))
}

func classifyChange(oldFee, newFee int64) contracts.PlanChangeType {
	switch {
	case newFee > oldFee:
		return contracts.PlanChangeUpgrade
	case newFee < oldFee:
		return contracts.PlanChangeDowngrade
	default:
		return contracts.PlanChangeLateral
	}
}

func anchorDay(billingDay, year int, month time.Month) int {
	last := daysInMonth(year, month)
	if billingDay == contracts.MonthEndBillingDay || billingDay > last {
		return last
	}
	return billingDay
}

func daysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func yearMonthAfter(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 1, 0)
	return t.Year(), t.Month()
}

func yearMonthBefore(year int, month time.Month) (int, time.Month) {
	t := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, -1, 0)
	return t.Year(), t.Month()
}

func daysBetweenInclusive(from, to time.Time) int {
	return int(dateOnly(to).Sub(dateOnly(from)).Hours()/24) + 1
}

func dateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
