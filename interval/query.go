/*
query.go - Enriched read path and manual override

PURPOSE:
  Serves derived service-interval rows to callers: ownership-filtered,
  converted to the caller's preferred distance unit, enriched with
  remaining time/distance and a freshly computed urgency state, and
  sortable/filterable by that computed urgency.

ENRICHMENT IS NEVER PERSISTED:
  Urgency and the remaining values depend on "today" and on the vehicle's
  current odometer, both of which move independently of the stored row.
  They are derived on every read. Filtering by urgency therefore happens
  in memory after enrichment, never as a store-level predicate.

SECURITY:
  A row that does not exist and a row on a vehicle owned by someone else
  produce the same ErrIntervalNotFound, so the read path never reveals
  whether another account's data exists.

SEE ALSO:
  - urgency.go:       The classification re-derived per read
  - collaborators.go: The external lookups fanned out here
*/
package interval

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// EnrichedInterval is a derived row augmented with caller-unit conversions
// and the computed, non-persisted urgency values.
type EnrichedInterval struct {
	ServiceInterval

	// Caller's preferred unit and the stored distances converted into it.
	DistanceUnit    DistanceUnit
	MileageInterval decimal.Decimal
	MaxOdometer     *decimal.Decimal
	NextDueOdometer *decimal.Decimal

	// Distance left to the due point, metric and converted.
	RemainingKm       *decimal.Decimal
	RemainingDistance *decimal.Decimal

	// Days left to the due date (signed; negative means overdue).
	RemainingDays *int

	Urgency Urgency
}

// ListOptions narrow a List call.
type ListOptions struct {
	// VehicleID restricts results to one vehicle.
	VehicleID *VehicleID

	// Urgency keeps only rows whose computed urgency matches. Applied
	// after enrichment.
	Urgency *Urgency
}

// NextDuePatch is the manual override input. The odometer value arrives in
// the caller's preferred unit and is converted to metric before persistence.
type NextDuePatch struct {
	NextDueDate     *Date
	NextDueOdometer *decimal.Decimal
}

// QueryService is the engine's read path.
type QueryService struct {
	store     Store
	ownership VehicleOwnership
	mileage   CurrentMileage
	prefs     UnitPreferences
	converter UnitConverter
	log       *logrus.Entry

	// Now is the clock used for remaining-days computation. Overridable
	// in tests.
	Now func() Date
}

func NewQueryService(store Store, ownership VehicleOwnership, mileage CurrentMileage, prefs UnitPreferences, converter UnitConverter, log *logrus.Logger) *QueryService {
	return &QueryService{
		store:     store,
		ownership: ownership,
		mileage:   mileage,
		prefs:     prefs,
		converter: converter,
		log:       log.WithField("component", "query"),
		Now:       Today,
	}
}

// List returns the account's enriched rows, ordered by vehicle id, then by
// next due date ascending with absent dates last.
func (q *QueryService) List(ctx context.Context, accountID AccountID, opts ListOptions) ([]EnrichedInterval, error) {
	vehicleIDs, err := q.ownership.ActiveVehicleIDs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}
	if opts.VehicleID != nil {
		vehicleIDs = intersectVehicle(vehicleIDs, *opts.VehicleID)
	}
	if len(vehicleIDs) == 0 {
		return []EnrichedInterval{}, nil
	}

	rows, err := q.store.ListByVehicles(ctx, vehicleIDs)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}

	unit, th, err := q.accountPrefs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}

	odometers, err := q.currentOdometers(ctx, rows)
	if err != nil {
		return nil, fmt.Errorf("list intervals: %w", err)
	}

	today := q.Now()
	out := make([]EnrichedInterval, 0, len(rows))
	for _, rec := range rows {
		enriched := q.enrich(rec, unit, th, odometers[rec.VehicleID], today)
		if opts.Urgency != nil && enriched.Urgency != *opts.Urgency {
			continue
		}
		out = append(out, enriched)
	}

	sortEnriched(out)
	return out, nil
}

// Get returns one enriched row, or ErrIntervalNotFound when the row is
// absent or the vehicle is not owned by the account.
func (q *QueryService) Get(ctx context.Context, accountID AccountID, vehicleID VehicleID, kindID KindID) (*EnrichedInterval, error) {
	owned, err := q.ownership.IsOwnedByAccount(ctx, vehicleID, accountID)
	if err != nil {
		return nil, fmt.Errorf("get interval: %w", err)
	}
	if !owned {
		return nil, ErrIntervalNotFound
	}

	rec, err := q.store.Get(ctx, vehicleID, kindID)
	if err != nil {
		return nil, err
	}

	unit, th, err := q.accountPrefs(ctx, accountID)
	if err != nil {
		return nil, fmt.Errorf("get interval: %w", err)
	}
	odo, err := q.mileage.MaxKnownOdometerKm(ctx, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("get interval: current mileage: %w", err)
	}

	enriched := q.enrich(*rec, unit, th, odo, q.Now())
	return &enriched, nil
}

// GetMany returns the enriched rows for the given keys, skipping keys that
// are absent or not owned by the account. Ordering matches List.
func (q *QueryService) GetMany(ctx context.Context, accountID AccountID, keys []IntervalKey) ([]EnrichedInterval, error) {
	out := make([]EnrichedInterval, 0, len(keys))
	for _, key := range keys {
		enriched, err := q.Get(ctx, accountID, key.VehicleID, key.KindID)
		if err != nil {
			if err == ErrIntervalNotFound {
				continue
			}
			return nil, err
		}
		out = append(out, *enriched)
	}
	sortEnriched(out)
	return out, nil
}

// UpdateNextDue manually overrides the computed next-due values for one
// row. Only the next-due date and odometer are writable; everything else
// stays derived. The row must exist and the vehicle must belong to the
// account, otherwise ErrIntervalNotFound.
func (q *QueryService) UpdateNextDue(ctx context.Context, accountID AccountID, vehicleID VehicleID, kindID KindID, patch NextDuePatch) (*EnrichedInterval, error) {
	if patch.NextDueDate == nil && patch.NextDueOdometer == nil {
		return nil, newValidationError("", "at least one of next due date or next due odometer is required")
	}
	if patch.NextDueOdometer != nil && patch.NextDueOdometer.IsNegative() {
		return nil, newValidationError("nextDueOdometer", "must not be negative")
	}

	owned, err := q.ownership.IsOwnedByAccount(ctx, vehicleID, accountID)
	if err != nil {
		return nil, fmt.Errorf("update next due: %w", err)
	}
	if !owned {
		return nil, ErrIntervalNotFound
	}

	current, err := q.store.Get(ctx, vehicleID, kindID)
	if err != nil {
		return nil, err
	}

	nextDueDate := current.NextDueDate
	if patch.NextDueDate != nil {
		nextDueDate = patch.NextDueDate
	}
	nextDueOdometerKm := current.NextDueOdometerKm
	if patch.NextDueOdometer != nil {
		unit, err := q.prefs.PreferredDistanceUnit(ctx, accountID)
		if err != nil {
			return nil, fmt.Errorf("update next due: %w", err)
		}
		km := q.converter.ToMetric(*patch.NextDueOdometer, unit)
		nextDueOdometerKm = &km
	}

	if err := q.store.SetNextDue(ctx, vehicleID, kindID, nextDueDate, nextDueOdometerKm); err != nil {
		return nil, err
	}
	q.log.WithFields(logrus.Fields{"vehicle": vehicleID, "kind": kindID}).
		Info("next due manually overridden")

	return q.Get(ctx, accountID, vehicleID, kindID)
}

// =============================================================================
// ENRICHMENT
// =============================================================================

func (q *QueryService) enrich(rec ServiceInterval, unit DistanceUnit, th Thresholds, currentOdoKm *decimal.Decimal, today Date) EnrichedInterval {
	e := EnrichedInterval{
		ServiceInterval: rec,
		DistanceUnit:    unit,
		MileageInterval: q.converter.FromMetric(rec.MileageIntervalKm, unit),
	}
	if rec.MaxOdometerKm != nil {
		v := q.converter.FromMetric(*rec.MaxOdometerKm, unit)
		e.MaxOdometer = &v
	}
	if rec.NextDueOdometerKm != nil {
		v := q.converter.FromMetric(*rec.NextDueOdometerKm, unit)
		e.NextDueOdometer = &v
	}

	if rec.NextDueDate != nil {
		days := today.DaysUntil(*rec.NextDueDate)
		e.RemainingDays = &days
	}
	if rec.NextDueOdometerKm != nil && currentOdoKm != nil {
		km := rec.NextDueOdometerKm.Sub(*currentOdoKm)
		e.RemainingKm = &km
		dist := q.converter.FromMetric(km, unit)
		e.RemainingDistance = &dist
	}

	e.Urgency = Classify(e.RemainingDays, e.RemainingKm, rec.Type, th)
	return e
}

func (q *QueryService) accountPrefs(ctx context.Context, accountID AccountID) (DistanceUnit, Thresholds, error) {
	unit, err := q.prefs.PreferredDistanceUnit(ctx, accountID)
	if err != nil {
		return "", Thresholds{}, fmt.Errorf("unit preference: %w", err)
	}
	th, err := q.prefs.NotifyThresholds(ctx, accountID)
	if err != nil {
		return "", Thresholds{}, fmt.Errorf("notify thresholds: %w", err)
	}
	return unit, th, nil
}

// currentOdometers fans the per-vehicle mileage lookups out concurrently;
// they are read-only and mutually independent.
func (q *QueryService) currentOdometers(ctx context.Context, rows []ServiceInterval) (map[VehicleID]*decimal.Decimal, error) {
	distinct := make(map[VehicleID]struct{})
	for _, rec := range rows {
		distinct[rec.VehicleID] = struct{}{}
	}

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		firstErr error
	)
	out := make(map[VehicleID]*decimal.Decimal, len(distinct))
	for vehicleID := range distinct {
		wg.Add(1)
		go func(id VehicleID) {
			defer wg.Done()
			odo, err := q.mileage.MaxKnownOdometerKm(ctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				if firstErr == nil {
					firstErr = fmt.Errorf("current mileage for %s: %w", id, err)
				}
				return
			}
			out[id] = odo
		}(vehicleID)
	}
	wg.Wait()
	if firstErr != nil {
		return nil, firstErr
	}
	return out, nil
}

// =============================================================================
// ORDERING
// =============================================================================

// sortEnriched orders by vehicle id, then next due date ascending with
// absent dates last, then kind id for determinism.
func sortEnriched(rows []EnrichedInterval) {
	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.VehicleID != b.VehicleID {
			return a.VehicleID < b.VehicleID
		}
		switch {
		case a.NextDueDate == nil && b.NextDueDate == nil:
			return a.KindID < b.KindID
		case a.NextDueDate == nil:
			return false
		case b.NextDueDate == nil:
			return true
		case !a.NextDueDate.Equal(*b.NextDueDate):
			return a.NextDueDate.Before(*b.NextDueDate)
		}
		return a.KindID < b.KindID
	})
}

func intersectVehicle(ids []VehicleID, want VehicleID) []VehicleID {
	for _, id := range ids {
		if id == want {
			return []VehicleID{want}
		}
	}
	return nil
}
