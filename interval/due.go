/*
due.go - Pure next-due calculation

PURPOSE:
  Computes the predicted next due point from the latest known service
  occurrence and the resolved settings. No I/O, no clock: both functions
  are pure, independent of each other, and order-insensitive, which is
  what makes the grow-only merge in the maintainer safe to recompute from
  merged maxima in any interleaving.

RULES:
  NextDueDate     = maxServiceDate + daysInterval days
                    only when daysInterval > 0 and the type uses days.
  NextDueOdometer = maxOdometerKm + mileageIntervalKm
                    only when the odometer is known, the interval is > 0,
                    and the type uses mileage.
*/
package interval

import "github.com/shopspring/decimal"

// NextDueDate returns the predicted next due date, or nil when the day
// dimension is not tracked.
func NextDueDate(maxServiceDate Date, settings IntervalSettings) *Date {
	if settings.DaysInterval <= 0 || !settings.Type.UsesDays() {
		return nil
	}
	due := maxServiceDate.AddDays(settings.DaysInterval)
	return &due
}

// NextDueOdometer returns the predicted next due odometer reading in
// kilometers, or nil when the mileage dimension is not tracked or no
// odometer reading is known.
func NextDueOdometer(maxOdometerKm *decimal.Decimal, settings IntervalSettings) *decimal.Decimal {
	if maxOdometerKm == nil || !settings.MileageIntervalKm.IsPositive() || !settings.Type.UsesMileage() {
		return nil
	}
	due := maxOdometerKm.Add(settings.MileageIntervalKm)
	return &due
}

// deriveInterval assembles the derived row for a pair from rescan stats and
// resolved settings. Shared by the rescan path and the full rebuild so both
// produce byte-identical rows from the same history.
func deriveInterval(stats ServiceStats, settings IntervalSettings) ServiceInterval {
	rec := ServiceInterval{
		VehicleID:         stats.VehicleID,
		KindID:            stats.KindID,
		Type:              settings.Type,
		MileageIntervalKm: settings.MileageIntervalKm,
		DaysInterval:      settings.DaysInterval,
		MaxServiceDate:    stats.MaxServiceDate,
	}
	if stats.MaxOdometerKm != nil {
		v := *stats.MaxOdometerKm
		rec.MaxOdometerKm = &v
	}
	rec.NextDueDate = NextDueDate(rec.MaxServiceDate, settings)
	rec.NextDueOdometerKm = NextDueOdometer(rec.MaxOdometerKm, settings)
	return rec
}
