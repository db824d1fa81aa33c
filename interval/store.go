/*
store.go - Persistence interfaces for derived records and expense history

PURPOSE:
  Defines the interface between the engine and the database. The derived
  record store supports exactly two write shapes, matching the two
  maintenance paths:

  MergeMax (monotonic):
    A single atomic grow-only maximum merge plus next-due recompute.
    Commutative and idempotent, so concurrent expense creations for the
    same pair converge to the correct maxima in any interleaving.

  Put / Delete (rescan results):
    Full row replacement after a rescan of the remaining expense history.
    NOT inherently concurrency-safe; callers serialize per (vehicle, kind)
    key (see maintainer.go).

  RebuildVehicle / RebuildAll apply a complete replacement row set in one
  all-or-nothing transaction, so a failed rebuild never leaves the store
  half-wiped.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - interval/store: In-memory store for tests and dev

SEE ALSO:
  - maintainer.go:   Uses MergeMax and the rescan writes
  - recalculator.go: Uses RebuildVehicle / RebuildAll
  - query.go:        Uses the reads plus SetNextDue
*/
package interval

import (
	"context"

	"github.com/shopspring/decimal"
)

// =============================================================================
// STORE - Derived service-interval rows
// =============================================================================

type Store interface {
	// Get returns the derived row for a pair, or ErrIntervalNotFound.
	Get(ctx context.Context, vehicleID VehicleID, kindID KindID) (*ServiceInterval, error)

	// ListByVehicles returns all derived rows for the given vehicles.
	ListByVehicles(ctx context.Context, vehicleIDs []VehicleID) ([]ServiceInterval, error)

	// MergeMax atomically folds one service occurrence into the pair's row:
	// maxima become the pairwise maximum of stored and incoming values, the
	// settings snapshot is refreshed, and next-due values are recomputed
	// from the merged maxima. Creates the row when absent.
	MergeMax(ctx context.Context, vehicleID VehicleID, kindID KindID, serviceDate Date, odometerKm *decimal.Decimal, settings IntervalSettings) error

	// Put replaces the pair's row with the given rescan result, creating it
	// when absent.
	Put(ctx context.Context, rec ServiceInterval) error

	// SetNextDue overrides the stored next-due values (manual override).
	// Returns ErrIntervalNotFound when the row does not exist.
	SetNextDue(ctx context.Context, vehicleID VehicleID, kindID KindID, nextDueDate *Date, nextDueOdometerKm *decimal.Decimal) error

	// Delete removes the pair's row. Deleting an absent row is a no-op.
	Delete(ctx context.Context, vehicleID VehicleID, kindID KindID) error

	// RebuildVehicle atomically replaces every row for one vehicle.
	RebuildVehicle(ctx context.Context, vehicleID VehicleID, rows []ServiceInterval) error

	// RebuildAll atomically replaces every row in the store.
	RebuildAll(ctx context.Context, rows []ServiceInterval) error
}

// =============================================================================
// EXPENSE HISTORY - Read-only rescan source
// =============================================================================

// ExpenseHistory exposes aggregate maxima over qualifying expenses: records
// that are not removed and whose maintenance kind is schedulable and active.
type ExpenseHistory interface {
	// ServiceStats returns the maxima for one pair, or nil when the pair
	// has no qualifying expenses.
	ServiceStats(ctx context.Context, vehicleID VehicleID, kindID KindID) (*ServiceStats, error)

	// VehicleServiceStats returns per-kind maxima for one vehicle.
	VehicleServiceStats(ctx context.Context, vehicleID VehicleID) ([]ServiceStats, error)

	// AllServiceStats returns maxima for every pair system-wide.
	AllServiceStats(ctx context.Context) ([]ServiceStats, error)
}

// =============================================================================
// SETTINGS - Configuration sources for resolution
// =============================================================================

// SettingsSource supplies the two configured tiers of interval settings.
// Implementations return only live configuration: soft-deleted overrides
// and inactive kinds yield (nil, nil).
type SettingsSource interface {
	VehicleOverride(ctx context.Context, vehicleID VehicleID, kindID KindID) (*IntervalSettings, error)
	KindDefault(ctx context.Context, kindID KindID) (*IntervalSettings, error)
}

// KindCatalog answers schedulability questions about maintenance kinds.
type KindCatalog interface {
	IsSchedulable(ctx context.Context, kindID KindID) (bool, error)
	SchedulableKindIDs(ctx context.Context) ([]KindID, error)
}
