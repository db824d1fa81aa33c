package interval_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/maintenance-engine/interval"
	"github.com/warp/maintenance-engine/interval/store"
)

func newResolver() (*interval.SettingsResolver, *store.Memory) {
	mem := store.NewMemory()
	return interval.NewSettingsResolver(mem, mem), mem
}

func TestResolve_KindDefault(t *testing.T) {
	// GIVEN: A schedulable kind with a default and no vehicle override
	// WHEN: Resolving for any vehicle
	// THEN: The kind default applies

	resolver, mem := newResolver()
	def := settings(interval.IntervalMileageOrDays, 10000, 180)
	mem.SetKind("oil", true, &def)

	got, err := resolver.Resolve(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, def, got)
}

func TestResolve_OverrideWinsOverDefault(t *testing.T) {
	// GIVEN: A kind default and a vehicle-specific override
	// WHEN: Resolving for the overridden vehicle and another vehicle
	// THEN: The override wins only for its own vehicle

	resolver, mem := newResolver()
	def := settings(interval.IntervalMileageOrDays, 10000, 180)
	override := settings(interval.IntervalDaysOnly, 0, 90)
	mem.SetKind("oil", true, &def)
	mem.SetVehicleOverride("v1", "oil", override)

	got, err := resolver.Resolve(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, override, got)

	got, err = resolver.Resolve(context.Background(), "v2", "oil")
	require.NoError(t, err)
	assert.Equal(t, def, got)
}

func TestResolve_MissingConfigurationIsNotTracked(t *testing.T) {
	// Absent configuration is a valid state, never an error.
	resolver, mem := newResolver()
	mem.SetKind("oil", true, nil)

	got, err := resolver.Resolve(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.False(t, got.Tracked())
	assert.Equal(t, interval.NoTracking(), got)

	// Unknown kind resolves the same way.
	got, err = resolver.Resolve(context.Background(), "v1", "missing")
	require.NoError(t, err)
	assert.False(t, got.Tracked())
}

func TestResolve_NonSchedulableKindIgnoresConfiguration(t *testing.T) {
	// GIVEN: A non-schedulable kind that nonetheless carries a default and
	//        an override
	// WHEN: Resolving
	// THEN: No tracking; schedulability gates everything

	resolver, mem := newResolver()
	def := settings(interval.IntervalMileageOrDays, 10000, 180)
	mem.SetKind("fuel", false, &def)
	mem.SetVehicleOverride("v1", "fuel", settings(interval.IntervalDaysOnly, 0, 30))

	got, err := resolver.Resolve(context.Background(), "v1", "fuel")
	require.NoError(t, err)
	assert.Equal(t, interval.NoTracking(), got)
}

func TestResolve_DeactivatedKindStopsTracking(t *testing.T) {
	resolver, mem := newResolver()
	def := settings(interval.IntervalMileageOrDays, 10000, 180)
	mem.SetKind("oil", true, &def)
	mem.DeactivateKind("oil")

	got, err := resolver.Resolve(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, interval.NoTracking(), got)
}

func TestResolve_RemovedOverrideRevertsToDefault(t *testing.T) {
	resolver, mem := newResolver()
	def := settings(interval.IntervalMileageOrDays, 10000, 180)
	mem.SetKind("oil", true, &def)
	mem.SetVehicleOverride("v1", "oil", settings(interval.IntervalDaysOnly, 0, 90))
	mem.RemoveVehicleOverride("v1", "oil")

	got, err := resolver.Resolve(context.Background(), "v1", "oil")
	require.NoError(t, err)
	assert.Equal(t, def, got)
}
