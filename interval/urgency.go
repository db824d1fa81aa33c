/*
urgency.go - Urgency classification

PURPOSE:
  Classifies how close a pair is to its next due point. The inputs
  (remaining days until the due date, remaining kilometers until the due
  odometer) change independently of the stored record, so classification
  runs fresh on every read and is never persisted.

ALGORITHM:
  1. No tracking -> ok.
  2. Either remaining value negative -> overdue. Overdue wins over every
     other rule: a single crossed dimension is enough even under an AND
     interval type.
  3. Otherwise due_soon when the type's threshold condition holds:
       mileage_only:      remainingKm within notifyInKm
       days_only:         remainingDays within notifyInDays
       mileage_or_days:   either condition
       mileage_and_days:  both conditions, or one dimension unknown and
                          the other alone within its threshold
  4. Any remaining value known -> upcoming.
  5. Otherwise -> ok.

  The mileage_and_days branch treats an unknown dimension as satisfied
  when the other alone crosses its threshold. That is asymmetric with the
  overdue rule and is preserved deliberately; see DESIGN.md before
  changing it.

  Total function: every input combination maps to exactly one state.
*/
package interval

import "github.com/shopspring/decimal"

// Default notification thresholds for accounts with no configured
// preference.
const DefaultNotifyDays = 14

var DefaultNotifyKm = decimal.NewFromInt(500)

// DefaultThresholds returns the system-default notification thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{Days: DefaultNotifyDays, Km: DefaultNotifyKm}
}

// Classify derives the urgency state for one pair.
//
// remainingDays is nextDueDate minus today in whole days; remainingKm is
// nextDueOdometerKm minus the current odometer. Either may be nil when the
// corresponding dimension is not tracked or not known.
func Classify(remainingDays *int, remainingKm *decimal.Decimal, typ IntervalType, th Thresholds) Urgency {
	if !typ.Valid() || typ == IntervalNone {
		return UrgencyOK
	}

	if (remainingDays != nil && *remainingDays < 0) ||
		(remainingKm != nil && remainingKm.IsNegative()) {
		return UrgencyOverdue
	}

	daysHit := remainingDays != nil && *remainingDays <= th.Days
	kmHit := remainingKm != nil && remainingKm.LessThanOrEqual(th.Km)

	dueSoon := false
	switch typ {
	case IntervalMileageOnly:
		dueSoon = kmHit
	case IntervalDaysOnly:
		dueSoon = daysHit
	case IntervalMileageOrDays:
		dueSoon = daysHit || kmHit
	case IntervalMileageAndDays:
		switch {
		case daysHit && kmHit:
			dueSoon = true
		case remainingDays == nil && kmHit:
			dueSoon = true
		case remainingKm == nil && daysHit:
			dueSoon = true
		}
	}
	if dueSoon {
		return UrgencyDueSoon
	}

	if remainingDays != nil || remainingKm != nil {
		return UrgencyUpcoming
	}
	return UrgencyOK
}
