package interval_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/maintenance-engine/interval"
)

func settings(typ interval.IntervalType, mileageKm int64, days int) interval.IntervalSettings {
	return interval.IntervalSettings{
		Type:              typ,
		MileageIntervalKm: decimal.NewFromInt(mileageKm),
		DaysInterval:      days,
	}
}

// =============================================================================
// NEXT DUE DATE
// =============================================================================

func TestNextDueDate_AddsDaysInterval(t *testing.T) {
	// GIVEN: Last service on 2026-01-15 with a 180-day interval
	// WHEN: Computing the next due date
	// THEN: 2026-07-14, exactly 180 days later

	last := interval.NewDate(2026, time.January, 15)
	due := interval.NextDueDate(last, settings(interval.IntervalDaysOnly, 0, 180))

	require.NotNil(t, due)
	assert.Equal(t, "2026-07-14", due.String())
}

func TestNextDueDate_NilWhenDaysNotTracked(t *testing.T) {
	last := interval.NewDate(2026, time.January, 15)

	// Mileage-only type never yields a due date, even with days configured.
	assert.Nil(t, interval.NextDueDate(last, settings(interval.IntervalMileageOnly, 10000, 180)))

	// A zero or absent days interval yields no due date either.
	assert.Nil(t, interval.NextDueDate(last, settings(interval.IntervalDaysOnly, 0, 0)))
	assert.Nil(t, interval.NextDueDate(last, settings(interval.IntervalMileageOrDays, 10000, 0)))
	assert.Nil(t, interval.NextDueDate(last, interval.NoTracking()))
}

// =============================================================================
// NEXT DUE ODOMETER
// =============================================================================

func TestNextDueOdometer_AddsMileageInterval(t *testing.T) {
	// GIVEN: Last service at 42,300.5 km with a 10,000 km interval
	// WHEN: Computing the next due odometer
	// THEN: 52,300.5 km, decimal-exact

	odo := decimal.RequireFromString("42300.5")
	due := interval.NextDueOdometer(&odo, settings(interval.IntervalMileageOrDays, 10000, 180))

	require.NotNil(t, due)
	assert.True(t, due.Equal(decimal.RequireFromString("52300.5")), "got %s", due)
}

func TestNextDueOdometer_NilCases(t *testing.T) {
	odo := decimal.NewFromInt(42300)

	// Unknown odometer.
	assert.Nil(t, interval.NextDueOdometer(nil, settings(interval.IntervalMileageOnly, 10000, 0)))

	// Days-only type ignores mileage.
	assert.Nil(t, interval.NextDueOdometer(&odo, settings(interval.IntervalDaysOnly, 10000, 180)))

	// Zero mileage interval.
	assert.Nil(t, interval.NextDueOdometer(&odo, settings(interval.IntervalMileageOnly, 0, 0)))
}

// =============================================================================
// SERVICE STATS MERGE
// =============================================================================

func TestServiceStats_Merge_PairwiseMaxima(t *testing.T) {
	// GIVEN: Occurrences where the latest date and highest odometer come
	//        from different expenses
	// WHEN: Folding them in any order
	// THEN: Each dimension keeps its own maximum independently

	stats := interval.ServiceStats{VehicleID: "v1", KindID: "oil"}
	stats.Merge(interval.NewDate(2026, time.March, 1), kmPtr(50000))
	stats.Merge(interval.NewDate(2026, time.June, 1), kmPtr(48000))
	stats.Merge(interval.NewDate(2026, time.January, 1), nil)

	assert.Equal(t, "2026-06-01", stats.MaxServiceDate.String())
	require.NotNil(t, stats.MaxOdometerKm)
	assert.True(t, stats.MaxOdometerKm.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 3, stats.Count)
}

func TestServiceStats_Merge_OrderInsensitive(t *testing.T) {
	dates := []interval.Date{
		interval.NewDate(2026, time.June, 1),
		interval.NewDate(2026, time.March, 1),
		interval.NewDate(2026, time.January, 1),
	}
	odos := []*decimal.Decimal{kmPtr(48000), kmPtr(50000), nil}

	forward := interval.ServiceStats{}
	for i := range dates {
		forward.Merge(dates[i], odos[i])
	}
	backward := interval.ServiceStats{}
	for i := len(dates) - 1; i >= 0; i-- {
		backward.Merge(dates[i], odos[i])
	}

	assert.True(t, forward.MaxServiceDate.Equal(backward.MaxServiceDate))
	require.NotNil(t, forward.MaxOdometerKm)
	require.NotNil(t, backward.MaxOdometerKm)
	assert.True(t, forward.MaxOdometerKm.Equal(*backward.MaxOdometerKm))
}

// =============================================================================
// DATE ARITHMETIC
// =============================================================================

func TestDate_DaysUntil(t *testing.T) {
	a := interval.NewDate(2026, time.August, 26)

	assert.Equal(t, 5, a.DaysUntil(interval.NewDate(2026, time.August, 31)))
	assert.Equal(t, 0, a.DaysUntil(a))
	assert.Equal(t, -26, a.DaysUntil(interval.NewDate(2026, time.July, 31)))
}

func TestDate_ParseRoundTrip(t *testing.T) {
	d, err := interval.ParseDate("2026-02-28")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-28", d.String())

	_, err = interval.ParseDate("28/02/2026")
	assert.Error(t, err)
}
