package sqlite_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/maintenance-engine/interval"
	"github.com/warp/maintenance-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func kmPtr(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func oilSettings() interval.IntervalSettings {
	return interval.IntervalSettings{
		Type:              interval.IntervalMileageOrDays,
		MileageIntervalKm: decimal.NewFromInt(10000),
		DaysInterval:      180,
	}
}

func date(y int, m time.Month, d int) interval.Date {
	return interval.NewDate(y, m, d)
}

// seedKind creates a schedulable oil kind and returns its id.
func seedKind(t *testing.T, store *sqlite.Store) interval.KindID {
	t.Helper()
	s := oilSettings()
	kind, err := store.CreateKind(context.Background(), "Oil change", true, &s)
	require.NoError(t, err)
	return kind.ID
}

// =============================================================================
// DERIVED ROW STORAGE
// =============================================================================

func TestStore_MergeMax_CreatesAndMerges(t *testing.T) {
	// GIVEN: An empty store
	// WHEN: Two occurrences merge, the second older and lower
	// THEN: The row holds the first occurrence's maxima with recomputed dues

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.June, 1), kmPtr(50000), oilSettings()))
	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.March, 1), kmPtr(43000), oilSettings()))

	rec, err := store.Get(ctx, "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, "2026-06-01", rec.MaxServiceDate.String())
	require.NotNil(t, rec.MaxOdometerKm)
	assert.True(t, rec.MaxOdometerKm.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, "2026-11-28", rec.NextDueDate.String())
	assert.True(t, rec.NextDueOdometerKm.Equal(decimal.NewFromInt(60000)))
	assert.Equal(t, interval.IntervalMileageOrDays, rec.Type)
}

func TestStore_MergeMax_DecimalComparisonIsNumeric(t *testing.T) {
	// Odometers are stored as text; the merge must still compare them as
	// numbers ("9000" < "50000").
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.March, 1), kmPtr(9000), oilSettings()))
	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.April, 1), kmPtr(50000), oilSettings()))
	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.May, 1), kmPtr(9500), oilSettings()))

	rec, err := store.Get(ctx, "v1", "oil")
	require.NoError(t, err)
	assert.True(t, rec.MaxOdometerKm.Equal(decimal.NewFromInt(50000)), "got %s", rec.MaxOdometerKm)
}

func TestStore_Get_MissingRow(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "v1", "oil")
	assert.ErrorIs(t, err, interval.ErrIntervalNotFound)
}

func TestStore_SetNextDue(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Missing row refuses the override.
	d := date(2026, time.October, 1)
	err := store.SetNextDue(ctx, "v1", "oil", &d, nil)
	assert.ErrorIs(t, err, interval.ErrIntervalNotFound)

	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.June, 1), kmPtr(50000), oilSettings()))
	require.NoError(t, store.SetNextDue(ctx, "v1", "oil", &d, kmPtr(61000)))

	rec, err := store.Get(ctx, "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, "2026-10-01", rec.NextDueDate.String())
	assert.True(t, rec.NextDueOdometerKm.Equal(decimal.NewFromInt(61000)))
}

func TestStore_DeleteIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.June, 1), nil, oilSettings()))
	require.NoError(t, store.Delete(ctx, "v1", "oil"))
	require.NoError(t, store.Delete(ctx, "v1", "oil"))

	_, err := store.Get(ctx, "v1", "oil")
	assert.ErrorIs(t, err, interval.ErrIntervalNotFound)
}

func TestStore_RebuildVehicle_ReplacesOnlyThatVehicle(t *testing.T) {
	// GIVEN: Rows for two vehicles
	// WHEN: v1 is rebuilt with a single replacement row
	// THEN: v1 holds exactly the replacement; v2 is untouched

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.June, 1), kmPtr(50000), oilSettings()))
	require.NoError(t, store.MergeMax(ctx, "v1", "tires", date(2026, time.May, 1), kmPtr(49000), oilSettings()))
	require.NoError(t, store.MergeMax(ctx, "v2", "oil", date(2026, time.July, 1), kmPtr(20000), oilSettings()))

	replacement := interval.ServiceInterval{
		VehicleID:         "v1",
		KindID:            "oil",
		Type:              interval.IntervalDaysOnly,
		MileageIntervalKm: decimal.Zero,
		DaysInterval:      90,
		MaxServiceDate:    date(2026, time.June, 1),
	}
	require.NoError(t, store.RebuildVehicle(ctx, "v1", []interval.ServiceInterval{replacement}))

	rows, err := store.ListByVehicles(ctx, []interval.VehicleID{"v1", "v2"})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, interval.VehicleID("v1"), rows[0].VehicleID)
	assert.Equal(t, interval.IntervalDaysOnly, rows[0].Type)
	assert.Equal(t, interval.VehicleID("v2"), rows[1].VehicleID)
}

func TestStore_RebuildAll_ReplacesEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.June, 1), kmPtr(50000), oilSettings()))
	require.NoError(t, store.MergeMax(ctx, "v2", "oil", date(2026, time.July, 1), kmPtr(20000), oilSettings()))

	require.NoError(t, store.RebuildAll(ctx, nil))

	rows, err := store.ListByVehicles(ctx, []interval.VehicleID{"v1", "v2"})
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestStore_Rebuild_PreservesCreatedAtForSurvivingKeys(t *testing.T) {
	// GIVEN: A row created by the incremental path
	// WHEN: A rebuild re-inserts the same key
	// THEN: The row keeps its original created_at; updated_at moves forward

	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.MergeMax(ctx, "v1", "oil", date(2026, time.June, 1), kmPtr(50000), oilSettings()))
	before, err := store.Get(ctx, "v1", "oil")
	require.NoError(t, err)

	require.NoError(t, store.RebuildVehicle(ctx, "v1", []interval.ServiceInterval{*before}))

	after, err := store.Get(ctx, "v1", "oil")
	require.NoError(t, err)
	assert.True(t, after.CreatedAt.Equal(before.CreatedAt), "created_at %s changed to %s", before.CreatedAt, after.CreatedAt)
	assert.False(t, after.UpdatedAt.Before(before.UpdatedAt))
}

// =============================================================================
// EXPENSE HISTORY
// =============================================================================

func TestStore_ServiceStats_FoldsQualifyingExpenses(t *testing.T) {
	// GIVEN: Three live expenses for one pair, maxima in different rows
	// WHEN: Folding the history
	// THEN: Pairwise maxima and count over all three

	store := newTestStore(t)
	ctx := context.Background()
	kindID := seedKind(t, store)

	_, err := store.InsertExpense(ctx, "v1", kindID, date(2026, time.March, 1), kmPtr(50000), "")
	require.NoError(t, err)
	_, err = store.InsertExpense(ctx, "v1", kindID, date(2026, time.June, 1), kmPtr(48000), "")
	require.NoError(t, err)
	_, err = store.InsertExpense(ctx, "v1", kindID, date(2026, time.January, 1), nil, "no odometer noted")
	require.NoError(t, err)

	stats, err := store.ServiceStats(ctx, "v1", kindID)
	require.NoError(t, err)
	require.NotNil(t, stats)
	assert.Equal(t, "2026-06-01", stats.MaxServiceDate.String())
	assert.True(t, stats.MaxOdometerKm.Equal(decimal.NewFromInt(50000)))
	assert.Equal(t, 3, stats.Count)
}

func TestStore_ServiceStats_NilWithoutQualifyingExpenses(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	kindID := seedKind(t, store)

	// No expenses at all.
	stats, err := store.ServiceStats(ctx, "v1", kindID)
	require.NoError(t, err)
	assert.Nil(t, stats)

	// A soft-deleted expense does not qualify.
	exp, err := store.InsertExpense(ctx, "v1", kindID, date(2026, time.March, 1), kmPtr(50000), "")
	require.NoError(t, err)
	require.NoError(t, store.DeleteExpense(ctx, exp.ID))

	stats, err = store.ServiceStats(ctx, "v1", kindID)
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestStore_ServiceStats_ExcludesNonSchedulableKinds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	fuel, err := store.CreateKind(ctx, "Fuel", false, nil)
	require.NoError(t, err)
	_, err = store.InsertExpense(ctx, "v1", fuel.ID, date(2026, time.March, 1), kmPtr(50000), "")
	require.NoError(t, err)

	stats, err := store.ServiceStats(ctx, "v1", fuel.ID)
	require.NoError(t, err)
	assert.Nil(t, stats)

	all, err := store.AllServiceStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestStore_ServiceStats_DeactivatedKindDropsOut(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	kindID := seedKind(t, store)

	_, err := store.InsertExpense(ctx, "v1", kindID, date(2026, time.March, 1), kmPtr(50000), "")
	require.NoError(t, err)
	require.NoError(t, store.DeactivateKind(ctx, kindID))

	stats, err := store.ServiceStats(ctx, "v1", kindID)
	require.NoError(t, err)
	assert.Nil(t, stats)
}

func TestStore_VehicleServiceStats_GroupsByKind(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	oilID := seedKind(t, store)
	tires, err := store.CreateKind(ctx, "Tires", true, nil)
	require.NoError(t, err)

	_, err = store.InsertExpense(ctx, "v1", oilID, date(2026, time.March, 1), kmPtr(50000), "")
	require.NoError(t, err)
	_, err = store.InsertExpense(ctx, "v1", tires.ID, date(2026, time.April, 1), kmPtr(51000), "")
	require.NoError(t, err)
	_, err = store.InsertExpense(ctx, "v2", oilID, date(2026, time.May, 1), nil, "")
	require.NoError(t, err)

	stats, err := store.VehicleServiceStats(ctx, "v1")
	require.NoError(t, err)
	assert.Len(t, stats, 2)

	all, err := store.AllServiceStats(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

// =============================================================================
// SETTINGS SOURCE / KIND CATALOG
// =============================================================================

func TestStore_VehicleOverrideLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	kindID := seedKind(t, store)

	// No override yet.
	got, err := store.VehicleOverride(ctx, "v1", kindID)
	require.NoError(t, err)
	assert.Nil(t, got)

	override := interval.IntervalSettings{
		Type:              interval.IntervalDaysOnly,
		MileageIntervalKm: decimal.Zero,
		DaysInterval:      90,
	}
	require.NoError(t, store.UpsertVehicleSetting(ctx, "v1", kindID, override))

	got, err = store.VehicleOverride(ctx, "v1", kindID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, interval.IntervalDaysOnly, got.Type)
	assert.Equal(t, 90, got.DaysInterval)

	// Upsert replaces in place.
	override.DaysInterval = 60
	require.NoError(t, store.UpsertVehicleSetting(ctx, "v1", kindID, override))
	got, err = store.VehicleOverride(ctx, "v1", kindID)
	require.NoError(t, err)
	assert.Equal(t, 60, got.DaysInterval)

	// Soft delete reverts to "no override".
	require.NoError(t, store.DeleteVehicleSetting(ctx, "v1", kindID))
	got, err = store.VehicleOverride(ctx, "v1", kindID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_KindDefault(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	kindID := seedKind(t, store)

	def, err := store.KindDefault(ctx, kindID)
	require.NoError(t, err)
	require.NotNil(t, def)
	assert.Equal(t, interval.IntervalMileageOrDays, def.Type)
	assert.True(t, def.MileageIntervalKm.Equal(decimal.NewFromInt(10000)))

	// A kind without configured tracking yields nil, not an error.
	bare, err := store.CreateKind(ctx, "Inspection", true, nil)
	require.NoError(t, err)
	def, err = store.KindDefault(ctx, bare.ID)
	require.NoError(t, err)
	assert.Nil(t, def)
}

func TestStore_SchedulableKinds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	oilID := seedKind(t, store)
	fuel, err := store.CreateKind(ctx, "Fuel", false, nil)
	require.NoError(t, err)

	ok, err := store.IsSchedulable(ctx, oilID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.IsSchedulable(ctx, fuel.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.IsSchedulable(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, ok)

	ids, err := store.SchedulableKindIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []interval.KindID{oilID}, ids)
}

// =============================================================================
// COLLABORATORS
// =============================================================================

func TestStore_OwnershipAndArchiving(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	acc, err := store.CreateAccount(ctx, interval.UnitKilometers, nil, nil)
	require.NoError(t, err)
	v, err := store.CreateVehicle(ctx, acc.ID, "Truck", kmPtr(120000))
	require.NoError(t, err)

	owned, err := store.IsOwnedByAccount(ctx, v.ID, acc.ID)
	require.NoError(t, err)
	assert.True(t, owned)

	owned, err = store.IsOwnedByAccount(ctx, v.ID, "someone-else")
	require.NoError(t, err)
	assert.False(t, owned)

	ids, err := store.ActiveVehicleIDs(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, []interval.VehicleID{v.ID}, ids)

	// Archived vehicles drop out of ownership and listings.
	require.NoError(t, store.ArchiveVehicle(ctx, v.ID))
	owned, err = store.IsOwnedByAccount(ctx, v.ID, acc.ID)
	require.NoError(t, err)
	assert.False(t, owned)
	ids, err = store.ActiveVehicleIDs(ctx, acc.ID)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestStore_MaxKnownOdometer(t *testing.T) {
	// GIVEN: A vehicle reading of 120,000 km and a live expense at 125,000
	// WHEN: Reading the max known odometer
	// THEN: The expense's higher reading wins; deleting it reverts to the
	//       vehicle's own reading

	store := newTestStore(t)
	ctx := context.Background()
	kindID := seedKind(t, store)

	acc, err := store.CreateAccount(ctx, interval.UnitKilometers, nil, nil)
	require.NoError(t, err)
	v, err := store.CreateVehicle(ctx, acc.ID, "Truck", kmPtr(120000))
	require.NoError(t, err)

	exp, err := store.InsertExpense(ctx, v.ID, kindID, date(2026, time.June, 1), kmPtr(125000), "")
	require.NoError(t, err)

	max, err := store.MaxKnownOdometerKm(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, max)
	assert.True(t, max.Equal(decimal.NewFromInt(125000)))

	require.NoError(t, store.DeleteExpense(ctx, exp.ID))
	max, err = store.MaxKnownOdometerKm(ctx, v.ID)
	require.NoError(t, err)
	require.NotNil(t, max)
	assert.True(t, max.Equal(decimal.NewFromInt(120000)))

	// A vehicle with no reading and no expenses reads as unknown.
	bare, err := store.CreateVehicle(ctx, acc.ID, "Van", nil)
	require.NoError(t, err)
	max, err = store.MaxKnownOdometerKm(ctx, bare.ID)
	require.NoError(t, err)
	assert.Nil(t, max)
}

func TestStore_UnitPreferencesAndThresholds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	days := 7
	acc, err := store.CreateAccount(ctx, interval.UnitMiles, &days, kmPtr(800))
	require.NoError(t, err)

	unit, err := store.PreferredDistanceUnit(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, interval.UnitMiles, unit)

	th, err := store.NotifyThresholds(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, 7, th.Days)
	assert.True(t, th.Km.Equal(decimal.NewFromInt(800)))

	// Unknown accounts fall back to system defaults.
	unit, err = store.PreferredDistanceUnit(ctx, "who")
	require.NoError(t, err)
	assert.Equal(t, interval.UnitKilometers, unit)
	th, err = store.NotifyThresholds(ctx, "who")
	require.NoError(t, err)
	assert.Equal(t, interval.DefaultThresholds(), th)

	// Per-field fallback: only the km threshold configured.
	acc2, err := store.CreateAccount(ctx, interval.UnitKilometers, nil, kmPtr(300))
	require.NoError(t, err)
	th, err = store.NotifyThresholds(ctx, acc2.ID)
	require.NoError(t, err)
	assert.Equal(t, interval.DefaultNotifyDays, th.Days)
	assert.True(t, th.Km.Equal(decimal.NewFromInt(300)))
}

// =============================================================================
// EXPENSE CRUD
// =============================================================================

func TestStore_ExpenseLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	kindID := seedKind(t, store)

	exp, err := store.InsertExpense(ctx, "v1", kindID, date(2026, time.March, 1), kmPtr(50000), "dealer service")
	require.NoError(t, err)

	got, err := store.GetExpense(ctx, exp.ID)
	require.NoError(t, err)
	assert.Equal(t, "dealer service", got.Notes)
	assert.Equal(t, "2026-03-01", got.ServiceDate.String())

	updated, err := store.UpdateExpense(ctx, exp.ID, kindID, date(2026, time.March, 2), kmPtr(50100), "corrected")
	require.NoError(t, err)
	assert.Equal(t, "2026-03-02", updated.ServiceDate.String())
	assert.True(t, updated.OdometerKm.Equal(decimal.NewFromInt(50100)))

	require.NoError(t, store.DeleteExpense(ctx, exp.ID))
	_, err = store.GetExpense(ctx, exp.ID)
	assert.ErrorIs(t, err, sqlite.ErrExpenseNotFound)

	// Operations on removed or unknown expenses report not found.
	_, err = store.UpdateExpense(ctx, exp.ID, kindID, date(2026, time.March, 3), nil, "")
	assert.ErrorIs(t, err, sqlite.ErrExpenseNotFound)
	err = store.DeleteExpense(ctx, "missing")
	assert.ErrorIs(t, err, sqlite.ErrExpenseNotFound)
}
