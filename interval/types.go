/*
Package interval provides the interval-maintenance engine.

PURPOSE:
  This package keeps a derived "next service due" record correct for every
  (vehicle, maintenance kind) pair as maintenance expenses are created,
  edited, and removed. The same logic supports a from-scratch rebuild that
  must land on exactly the state the incremental path maintains.

KEY CONCEPTS IN THIS FILE (types.go):
  - IntervalType: How day-based and mileage-based tracking combine
  - IntervalSettings: The resolved tracking rule (always metric)
  - ServiceInterval: One derived row per (vehicle, kind) pair
  - ServiceStats: Aggregate maxima over qualifying expenses
  - Urgency: The derived, never-persisted closeness label

DESIGN PRINCIPLES:
  1. Two write shapes only: a commutative grow-only maximum merge for
     expense creation, and a rescan-and-recompute for everything that can
     shrink the maximum.
  2. Derived values that depend on "today" or the current odometer are
     computed on every read, never stored.
  3. Precision: distances use decimal.Decimal, always normalized to
     kilometers in storage.

SEE ALSO:
  - settings.go:     Three-tier settings resolution
  - due.go:          Pure next-due calculation
  - urgency.go:      Urgency classification
  - maintainer.go:   Incremental derived-state maintenance
  - recalculator.go: Full rebuild
  - query.go:        Enriched read path
*/
package interval

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// IDENTIFIERS
// =============================================================================

type VehicleID string
type KindID string
type AccountID string

// IntervalKey identifies one derived record.
type IntervalKey struct {
	VehicleID VehicleID
	KindID    KindID
}

// =============================================================================
// INTERVAL TYPE - How the day and mileage dimensions combine
// =============================================================================

type IntervalType string

const (
	IntervalNone           IntervalType = "none"
	IntervalMileageOnly    IntervalType = "mileage_only"
	IntervalDaysOnly       IntervalType = "days_only"
	IntervalMileageOrDays  IntervalType = "mileage_or_days"
	IntervalMileageAndDays IntervalType = "mileage_and_days"
)

// UsesDays reports whether the type tracks the day dimension.
func (t IntervalType) UsesDays() bool {
	return t == IntervalDaysOnly || t == IntervalMileageOrDays || t == IntervalMileageAndDays
}

// UsesMileage reports whether the type tracks the mileage dimension.
func (t IntervalType) UsesMileage() bool {
	return t == IntervalMileageOnly || t == IntervalMileageOrDays || t == IntervalMileageAndDays
}

// Valid reports whether t is one of the known interval types.
func (t IntervalType) Valid() bool {
	switch t {
	case IntervalNone, IntervalMileageOnly, IntervalDaysOnly, IntervalMileageOrDays, IntervalMileageAndDays:
		return true
	}
	return false
}

// =============================================================================
// INTERVAL SETTINGS - Resolved tracking rule, always metric
// =============================================================================

// IntervalSettings is the effective tracking rule for one (vehicle, kind)
// pair. It is resolved per lookup, never persisted as its own entity.
type IntervalSettings struct {
	Type              IntervalType
	MileageIntervalKm decimal.Decimal
	DaysInterval      int
}

// NoTracking is the settings value for pairs with no configuration.
func NoTracking() IntervalSettings {
	return IntervalSettings{Type: IntervalNone}
}

// Tracked reports whether the settings enable any tracking at all.
func (s IntervalSettings) Tracked() bool {
	return s.Type != IntervalNone && s.Type != ""
}

// =============================================================================
// SERVICE INTERVAL - The derived row
// =============================================================================

// ServiceInterval is the derived "next service due" record for one
// (vehicle, kind) pair. A row exists only while the resolved interval type
// is not none and at least one qualifying expense exists for the pair.
//
// The settings fields are a snapshot of what was used to compute the row,
// kept for auditability and idempotent recompute.
type ServiceInterval struct {
	VehicleID VehicleID
	KindID    KindID

	Type              IntervalType
	MileageIntervalKm decimal.Decimal
	DaysInterval      int

	// Maxima over all qualifying expenses for the pair.
	MaxServiceDate Date
	MaxOdometerKm  *decimal.Decimal

	// Predicted next due point. Either side may be absent depending on the
	// interval type and on whether an odometer reading is known.
	NextDueDate       *Date
	NextDueOdometerKm *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Key returns the row's identifying key.
func (si ServiceInterval) Key() IntervalKey {
	return IntervalKey{VehicleID: si.VehicleID, KindID: si.KindID}
}

// =============================================================================
// SERVICE STATS - Aggregate over qualifying expenses
// =============================================================================

// ServiceStats holds the maxima over all qualifying (non-removed, active)
// expenses for one (vehicle, kind) pair.
type ServiceStats struct {
	VehicleID      VehicleID
	KindID         KindID
	MaxServiceDate Date
	MaxOdometerKm  *decimal.Decimal
	Count          int
}

// Merge folds a single occurrence into the stats, taking pairwise maxima.
// Maximum is commutative and idempotent, so fold order never matters.
func (st *ServiceStats) Merge(serviceDate Date, odometerKm *decimal.Decimal) {
	if st.Count == 0 || serviceDate.After(st.MaxServiceDate) {
		st.MaxServiceDate = serviceDate
	}
	if odometerKm != nil && (st.MaxOdometerKm == nil || odometerKm.GreaterThan(*st.MaxOdometerKm)) {
		v := *odometerKm
		st.MaxOdometerKm = &v
	}
	st.Count++
}

// =============================================================================
// URGENCY - Derived closeness label (never persisted)
// =============================================================================

type Urgency string

const (
	UrgencyOverdue  Urgency = "overdue"
	UrgencyDueSoon  Urgency = "due_soon"
	UrgencyUpcoming Urgency = "upcoming"
	UrgencyOK       Urgency = "ok"
)

// Valid reports whether u is one of the known urgency states.
func (u Urgency) Valid() bool {
	switch u {
	case UrgencyOverdue, UrgencyDueSoon, UrgencyUpcoming, UrgencyOK:
		return true
	}
	return false
}

// =============================================================================
// DISTANCE UNITS
// =============================================================================

// DistanceUnit is a caller-facing distance unit. Storage is always metric;
// conversion happens on the read path only.
type DistanceUnit string

const (
	UnitKilometers DistanceUnit = "km"
	UnitMiles      DistanceUnit = "mi"
)
