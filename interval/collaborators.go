/*
collaborators.go - Interfaces consumed from the surrounding application

PURPOSE:
  The engine does not own accounts, vehicles, unit preferences, or the
  vehicle's live odometer; it consumes them through these interfaces.
  Production wiring implements them against the application's own tables
  (see store/sqlite); tests substitute small fakes.

SEE ALSO:
  - store.go: Interfaces for state this engine owns or scans
  - query.go: The read path that fans these lookups out
*/
package interval

import (
	"context"

	"github.com/shopspring/decimal"
)

// VehicleOwnership answers whether a vehicle belongs to an account.
type VehicleOwnership interface {
	// IsOwnedByAccount reports whether the vehicle exists and belongs to
	// the account. A missing vehicle is simply "not owned".
	IsOwnedByAccount(ctx context.Context, vehicleID VehicleID, accountID AccountID) (bool, error)

	// ActiveVehicleIDs lists the account's active vehicles.
	ActiveVehicleIDs(ctx context.Context, accountID AccountID) ([]VehicleID, error)
}

// CurrentMileage supplies the best-known current odometer reading.
type CurrentMileage interface {
	// MaxKnownOdometerKm returns the highest odometer reading known for the
	// vehicle, or nil when no reading exists.
	MaxKnownOdometerKm(ctx context.Context, vehicleID VehicleID) (*decimal.Decimal, error)
}

// Thresholds are the notification thresholds used by urgency classification.
type Thresholds struct {
	Days int
	Km   decimal.Decimal
}

// UnitPreferences supplies per-account display and notification preferences.
type UnitPreferences interface {
	PreferredDistanceUnit(ctx context.Context, accountID AccountID) (DistanceUnit, error)

	// NotifyThresholds returns the account's urgency thresholds, falling
	// back to the system defaults when the account has none configured.
	NotifyThresholds(ctx context.Context, accountID AccountID) (Thresholds, error)
}

// UnitConverter converts between stored metric distances and caller units.
type UnitConverter interface {
	// ToMetric converts a value in the given unit to kilometers.
	ToMetric(value decimal.Decimal, unit DistanceUnit) decimal.Decimal

	// FromMetric converts kilometers to the given unit, rounded per that
	// unit's display convention.
	FromMetric(km decimal.Decimal, unit DistanceUnit) decimal.Decimal
}
