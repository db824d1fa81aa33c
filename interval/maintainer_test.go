package interval_test

import (
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/maintenance-engine/interval"
	"github.com/warp/maintenance-engine/interval/store"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func quietLog() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newEngine(t *testing.T) (*interval.Maintainer, *interval.Recalculator, *store.Memory) {
	t.Helper()
	mem := store.NewMemory()
	gate := &interval.RebuildGate{}
	resolver := interval.NewSettingsResolver(mem, mem)
	log := quietLog()
	maintainer := interval.NewMaintainer(mem, mem, resolver, mem, gate, log)
	recalc := interval.NewRecalculator(mem, mem, resolver, mem, gate, log)
	return maintainer, recalc, mem
}

func expense(vehicle, kind string, date interval.Date, odometerKm *decimal.Decimal) interval.ExpenseEvent {
	return interval.ExpenseEvent{
		VehicleID:   interval.VehicleID(vehicle),
		KindID:      interval.KindID(kind),
		ServiceDate: date,
		OdometerKm:  odometerKm,
	}
}

// record mirrors the application flow: the expense row is committed to
// history first, then the maintainer is notified.
func record(t *testing.T, m *interval.Maintainer, mem *store.Memory, id string, ev interval.ExpenseEvent) {
	t.Helper()
	mem.AddExpense(id, ev)
	require.NoError(t, m.OnExpenseCreated(context.Background(), ev))
}

func oilKind(mem *store.Memory) {
	def := settings(interval.IntervalMileageOrDays, 10000, 180)
	mem.SetKind("oil", true, &def)
}

// =============================================================================
// EXPENSE CREATED
// =============================================================================

func TestMaintainer_FirstExpenseCreatesInterval(t *testing.T) {
	// GIVEN: A tracked kind and no prior history for the pair
	// WHEN: The first oil change is recorded
	// THEN: A derived row appears with both next-due dimensions computed

	m, _, mem := newEngine(t)
	oilKind(mem)

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(50000)))

	rec, err := mem.Get(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", rec.MaxServiceDate.String())
	require.NotNil(t, rec.NextDueDate)
	assert.Equal(t, "2026-08-28", rec.NextDueDate.String())
	require.NotNil(t, rec.NextDueOdometerKm)
	assert.True(t, rec.NextDueOdometerKm.Equal(decimal.NewFromInt(60000)))
}

func TestMaintainer_BackdatedExpenseNeverRegresses(t *testing.T) {
	// GIVEN: A pair whose latest service is June at 50,000 km
	// WHEN: An older March expense at a lower odometer arrives late
	// THEN: The row keeps the June maxima untouched

	m, _, mem := newEngine(t)
	oilKind(mem)

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.June, 1), kmPtr(50000)))
	record(t, m, mem, "e2", expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(43000)))

	rec, err := mem.Get(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, "2026-06-01", rec.MaxServiceDate.String())
	assert.True(t, rec.MaxOdometerKm.Equal(decimal.NewFromInt(50000)))
}

func TestMaintainer_MaximaTrackDimensionsIndependently(t *testing.T) {
	// A newer date with a lower odometer advances only the date dimension.
	m, _, mem := newEngine(t)
	oilKind(mem)

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(50000)))
	record(t, m, mem, "e2", expense("v1", "oil", interval.NewDate(2026, time.June, 1), kmPtr(48000)))

	rec, err := mem.Get(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, "2026-06-01", rec.MaxServiceDate.String())
	assert.True(t, rec.MaxOdometerKm.Equal(decimal.NewFromInt(50000)))
}

func TestMaintainer_NonSchedulableKindIsIgnored(t *testing.T) {
	m, _, mem := newEngine(t)
	mem.SetKind("fuel", false, nil)

	record(t, m, mem, "e1", expense("v1", "fuel", interval.NewDate(2026, time.March, 1), kmPtr(50000)))

	_, err := mem.Get(context.Background(), "v1", "fuel")
	assert.ErrorIs(t, err, interval.ErrIntervalNotFound)
	assert.Equal(t, 0, mem.IntervalCount())
}

func TestMaintainer_ExpenseWithoutOdometer(t *testing.T) {
	// A missing odometer still advances the date dimension; the mileage
	// dimension stays unknown.
	m, _, mem := newEngine(t)
	oilKind(mem)

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.March, 1), nil))

	rec, err := mem.Get(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.Nil(t, rec.MaxOdometerKm)
	assert.Nil(t, rec.NextDueOdometerKm)
	require.NotNil(t, rec.NextDueDate)
}

func TestMaintainer_ConcurrentCreatesConverge(t *testing.T) {
	// GIVEN: Many expenses for one pair recorded concurrently
	// WHEN: All merges complete
	// THEN: The row holds the true maxima regardless of interleaving

	m, _, mem := newEngine(t)
	oilKind(mem)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		ev := expense("v1", "oil",
			interval.NewDate(2026, time.January, 1).AddDays(i),
			kmPtr(int64(40000+100*i)))
		mem.AddExpense(fmt.Sprintf("e%d", i), ev)
		wg.Add(1)
		go func(ev interval.ExpenseEvent) {
			defer wg.Done()
			assert.NoError(t, m.OnExpenseCreated(ctx, ev))
		}(ev)
	}
	wg.Wait()

	rec, err := mem.Get(ctx, "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-01", rec.MaxServiceDate.String())
	assert.True(t, rec.MaxOdometerKm.Equal(decimal.NewFromInt(43100)), "got %s", rec.MaxOdometerKm)
}

// =============================================================================
// EXPENSE REMOVED
// =============================================================================

func TestMaintainer_RemovingMaxExpenseRecedesInterval(t *testing.T) {
	// GIVEN: Two expenses where the later one holds both maxima
	// WHEN: The later expense is removed
	// THEN: The row recedes to the survivor's values

	m, _, mem := newEngine(t)
	oilKind(mem)
	ctx := context.Background()

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(43000)))
	record(t, m, mem, "e2", expense("v1", "oil", interval.NewDate(2026, time.June, 1), kmPtr(50000)))

	mem.RemoveExpense("e2")
	require.NoError(t, m.OnExpenseRemoved(ctx, "v1", "oil"))

	rec, err := mem.Get(ctx, "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", rec.MaxServiceDate.String())
	assert.True(t, rec.MaxOdometerKm.Equal(decimal.NewFromInt(43000)))
	assert.Equal(t, "2026-08-28", rec.NextDueDate.String())
}

func TestMaintainer_RemovingLastExpenseDeletesInterval(t *testing.T) {
	m, _, mem := newEngine(t)
	oilKind(mem)
	ctx := context.Background()

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(43000)))

	mem.RemoveExpense("e1")
	require.NoError(t, m.OnExpenseRemoved(ctx, "v1", "oil"))

	_, err := mem.Get(ctx, "v1", "oil")
	assert.ErrorIs(t, err, interval.ErrIntervalNotFound)
}

// =============================================================================
// EXPENSE UPDATED
// =============================================================================

func TestMaintainer_UpdateMovesExpenseBetweenKinds(t *testing.T) {
	// GIVEN: An expense misfiled under "oil" that really was a tire change
	// WHEN: The expense is recategorized
	// THEN: The oil row disappears and a tires row appears

	m, _, mem := newEngine(t)
	oilKind(mem)
	tireDef := settings(interval.IntervalMileageOnly, 40000, 0)
	mem.SetKind("tires", true, &tireDef)
	ctx := context.Background()

	prev := expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(43000))
	record(t, m, mem, "e1", prev)

	next := expense("v1", "tires", interval.NewDate(2026, time.March, 1), kmPtr(43000))
	mem.UpdateExpense("e1", next)
	require.NoError(t, m.OnExpenseUpdated(ctx, prev, next))

	_, err := mem.Get(ctx, "v1", "oil")
	assert.ErrorIs(t, err, interval.ErrIntervalNotFound)

	rec, err := mem.Get(ctx, "v1", "tires")
	require.NoError(t, err)
	assert.True(t, rec.NextDueOdometerKm.Equal(decimal.NewFromInt(83000)))
	assert.Nil(t, rec.NextDueDate)
}

func TestMaintainer_UpdateInPlaceRescans(t *testing.T) {
	// Correcting a typo'd odometer downward must recede the row, which a
	// pure maximum merge could never do.
	m, _, mem := newEngine(t)
	oilKind(mem)
	ctx := context.Background()

	prev := expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(500000))
	record(t, m, mem, "e1", prev)

	next := expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(50000))
	mem.UpdateExpense("e1", next)
	require.NoError(t, m.OnExpenseUpdated(ctx, prev, next))

	rec, err := mem.Get(ctx, "v1", "oil")
	require.NoError(t, err)
	assert.True(t, rec.MaxOdometerKm.Equal(decimal.NewFromInt(50000)))
	assert.True(t, rec.NextDueOdometerKm.Equal(decimal.NewFromInt(60000)))
}

// =============================================================================
// SETTINGS CHANGED
// =============================================================================

func TestMaintainer_SettingsChangeRecomputesNextDue(t *testing.T) {
	// GIVEN: A pair maintained under the kind default
	// WHEN: A tighter vehicle override is installed
	// THEN: The next-due values follow the new settings; the maxima do not move

	m, _, mem := newEngine(t)
	oilKind(mem)
	ctx := context.Background()

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(50000)))

	mem.SetVehicleOverride("v1", "oil", settings(interval.IntervalMileageOrDays, 5000, 90))
	require.NoError(t, m.OnSettingsChanged(ctx, "v1", "oil"))

	rec, err := mem.Get(ctx, "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-01", rec.MaxServiceDate.String())
	assert.Equal(t, "2026-05-30", rec.NextDueDate.String())
	assert.True(t, rec.NextDueOdometerKm.Equal(decimal.NewFromInt(55000)))
}

func TestMaintainer_UntrackedSettingsDeleteInterval(t *testing.T) {
	// Switching the pair to no tracking removes the derived row entirely.
	m, _, mem := newEngine(t)
	oilKind(mem)
	ctx := context.Background()

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(50000)))

	mem.SetVehicleOverride("v1", "oil", interval.NoTracking())
	require.NoError(t, m.OnSettingsChanged(ctx, "v1", "oil"))

	_, err := mem.Get(ctx, "v1", "oil")
	assert.ErrorIs(t, err, interval.ErrIntervalNotFound)
}

func TestMaintainer_CreateUnderUntrackedSettingsClearsStaleRow(t *testing.T) {
	// A stale row left behind after tracking was switched off is cleaned up
	// by the next expense event for the pair.
	m, _, mem := newEngine(t)
	oilKind(mem)
	ctx := context.Background()

	record(t, m, mem, "e1", expense("v1", "oil", interval.NewDate(2026, time.March, 1), kmPtr(50000)))
	mem.SetVehicleOverride("v1", "oil", interval.NoTracking())

	ev := expense("v1", "oil", interval.NewDate(2026, time.April, 1), kmPtr(51000))
	mem.AddExpense("e2", ev)
	require.NoError(t, m.OnExpenseCreated(ctx, ev))

	_, err := mem.Get(ctx, "v1", "oil")
	assert.ErrorIs(t, err, interval.ErrIntervalNotFound)
}
