package interval_test

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/warp/maintenance-engine/interval"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func intPtr(n int) *int { return &n }

func kmPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func defaultTh() interval.Thresholds {
	return interval.DefaultThresholds()
}

// =============================================================================
// CLASSIFICATION TABLE
// =============================================================================

func TestClassify_AllStates(t *testing.T) {
	tests := []struct {
		name string
		days *int
		km   *decimal.Decimal
		typ  interval.IntervalType
		want interval.Urgency
	}{
		// No tracking is always ok, whatever the inputs claim.
		{"none type ignores inputs", intPtr(-5), kmPtr(-100), interval.IntervalNone, interval.UrgencyOK},
		{"invalid type reads as ok", intPtr(-5), nil, interval.IntervalType("bogus"), interval.UrgencyOK},

		// Overdue on either negative dimension.
		{"negative days", intPtr(-1), nil, interval.IntervalDaysOnly, interval.UrgencyOverdue},
		{"negative km", nil, kmPtr(-1), interval.IntervalMileageOnly, interval.UrgencyOverdue},
		{"negative days under and-type", intPtr(-1), kmPtr(9999), interval.IntervalMileageAndDays, interval.UrgencyOverdue},
		{"negative km under and-type", intPtr(9999), kmPtr(-1), interval.IntervalMileageAndDays, interval.UrgencyOverdue},

		// Due soon at or inside the threshold.
		{"days at threshold", intPtr(14), nil, interval.IntervalDaysOnly, interval.UrgencyDueSoon},
		{"days just outside threshold", intPtr(15), nil, interval.IntervalDaysOnly, interval.UrgencyUpcoming},
		{"km at threshold", nil, kmPtr(500), interval.IntervalMileageOnly, interval.UrgencyDueSoon},
		{"km just outside threshold", nil, kmPtr(501), interval.IntervalMileageOnly, interval.UrgencyUpcoming},
		{"zero days is due soon, not overdue", intPtr(0), nil, interval.IntervalDaysOnly, interval.UrgencyDueSoon},

		// OR type fires on either dimension.
		{"or-type days hit", intPtr(3), kmPtr(9999), interval.IntervalMileageOrDays, interval.UrgencyDueSoon},
		{"or-type km hit", intPtr(9999), kmPtr(3), interval.IntervalMileageOrDays, interval.UrgencyDueSoon},
		{"or-type neither hit", intPtr(9999), kmPtr(9999), interval.IntervalMileageOrDays, interval.UrgencyUpcoming},

		// AND type needs both, with the unknown-dimension tie-break.
		{"and-type both hit", intPtr(3), kmPtr(3), interval.IntervalMileageAndDays, interval.UrgencyDueSoon},
		{"and-type both known, neither hit", intPtr(170), kmPtr(7500), interval.IntervalMileageAndDays, interval.UrgencyUpcoming},
		{"and-type only days hit", intPtr(3), kmPtr(9999), interval.IntervalMileageAndDays, interval.UrgencyUpcoming},
		{"and-type only km hit", intPtr(9999), kmPtr(3), interval.IntervalMileageAndDays, interval.UrgencyUpcoming},
		{"and-type unknown days, km hit", nil, kmPtr(3), interval.IntervalMileageAndDays, interval.UrgencyDueSoon},
		{"and-type unknown km, days hit", intPtr(3), nil, interval.IntervalMileageAndDays, interval.UrgencyDueSoon},
		{"and-type unknown days, km miss", nil, kmPtr(9999), interval.IntervalMileageAndDays, interval.UrgencyUpcoming},

		// Days dimension is invisible to a mileage-only type and vice versa.
		{"mileage-only ignores days hit", intPtr(1), kmPtr(9999), interval.IntervalMileageOnly, interval.UrgencyUpcoming},
		{"days-only ignores km hit", intPtr(9999), kmPtr(1), interval.IntervalDaysOnly, interval.UrgencyUpcoming},

		// Nothing known at all.
		{"both unknown", nil, nil, interval.IntervalMileageOrDays, interval.UrgencyOK},
		{"both unknown and-type", nil, nil, interval.IntervalMileageAndDays, interval.UrgencyOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := interval.Classify(tt.days, tt.km, tt.typ, defaultTh())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassify_OverdueWinsOverDueSoon(t *testing.T) {
	// GIVEN: Days overdue but mileage comfortably inside its threshold
	// WHEN: Classifying under the OR type
	// THEN: Overdue wins; a crossed dimension is never softened

	got := interval.Classify(intPtr(-3), kmPtr(100), interval.IntervalMileageOrDays, defaultTh())
	assert.Equal(t, interval.UrgencyOverdue, got)
}

func TestClassify_CustomThresholds(t *testing.T) {
	// GIVEN: An account with a tight 3-day / 50km notification window
	// WHEN: 10 days and 100km remain
	// THEN: Neither threshold is hit

	th := interval.Thresholds{Days: 3, Km: decimal.NewFromInt(50)}
	got := interval.Classify(intPtr(10), kmPtr(100), interval.IntervalMileageOrDays, th)
	assert.Equal(t, interval.UrgencyUpcoming, got)

	// Same distances under the system defaults would be due soon.
	got = interval.Classify(intPtr(10), kmPtr(100), interval.IntervalMileageOrDays, defaultTh())
	assert.Equal(t, interval.UrgencyDueSoon, got)
}
