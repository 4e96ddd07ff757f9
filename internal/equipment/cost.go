package equipment

import "time"

// BillableDays counts calendar days charged for a stay from start to
// end. Rentals bill per day on location: any partial day counts as a
// full day, and same-day delivery and pickup still bills one day.
func BillableDays(start, end time.Time) int {
	if end.Before(start) {
		return 0
	}
	days := int(end.Sub(start) / (24 * time.Hour))
	if end.Sub(start)%(24*time.Hour) > 0 {
		days++
	}
	if days < 1 {
		days = 1
	}
	return days
}

// Cost returns the accrued charge for the period in cents. Open periods
// accrue up to asOf.
func (p RentalPeriod) Cost(asOf time.Time) int64 {
	end := p.End
	if p.Open() {
		end = asOf
	}
	return int64(BillableDays(p.Start, end)) * p.DailyRateCents
}

// TotalByWell sums accrued rental cost per well across periods.
func TotalByWell(periods []RentalPeriod, asOf time.Time) map[string]int64 {
	totals := make(map[string]int64)
	for _, p := range periods {
		totals[p.WellID] += p.Cost(asOf)
	}
	return totals
}

// TotalByCategory sums accrued rental cost per equipment category.
// categoryOf maps equipment ID to category; unmapped IDs land under "".
func TotalByCategory(periods []RentalPeriod, categoryOf map[string]string, asOf time.Time) map[string]int64 {
	totals := make(map[string]int64)
	for _, p := range periods {
		totals[categoryOf[p.EquipmentID]] += p.Cost(asOf)
	}
	return totals
}
