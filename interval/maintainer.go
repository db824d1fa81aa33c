/*
maintainer.go - Incremental derived-state maintenance

PURPOSE:
  Keeps the derived service-interval rows consistent with the expense
  history as individual expenses are created, edited, and removed, without
  rescanning all history where that is safe.

TWO PATHS:
  Creation (monotonic):
    A new expense can only grow the pair's maxima. One atomic
    merge-max-and-recompute store call suffices; taking a maximum twice or
    out of order yields the same result, so unlimited concurrent creates
    converge without locking.

  Removal / update / settings change (rescan):
    The maximum may have decreased, which is not monotonic. Correctness
    requires recomputing the maxima from the remaining qualifying
    expenses, then replacing (or deleting) the row. These sequences are
    serialized per (vehicle, kind) key.

  Every operation holds the rebuild gate shared so a full rebuild never
  interleaves with incremental writes.

SEE ALSO:
  - recalculator.go: The batch path using the same derivation
  - store.go:        The two write shapes this component relies on
*/
package interval

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ExpenseEvent carries the fields of an expense lifecycle event that matter
// to interval tracking.
type ExpenseEvent struct {
	VehicleID   VehicleID
	KindID      KindID
	ServiceDate Date
	OdometerKm  *decimal.Decimal
}

// Maintainer is the event-driven incremental maintenance component.
type Maintainer struct {
	store    Store
	history  ExpenseHistory
	resolver *SettingsResolver
	kinds    KindCatalog
	locks    *keyLocks
	gate     *RebuildGate
	log      *logrus.Entry
}

func NewMaintainer(store Store, history ExpenseHistory, resolver *SettingsResolver, kinds KindCatalog, gate *RebuildGate, log *logrus.Logger) *Maintainer {
	return &Maintainer{
		store:    store,
		history:  history,
		resolver: resolver,
		kinds:    kinds,
		locks:    newKeyLocks(),
		gate:     gate,
		log:      log.WithField("component", "maintainer"),
	}
}

// OnExpenseCreated folds a newly created expense into the pair's derived
// row via the monotonic merge. Non-schedulable kinds are a no-op; a pair
// resolving to no tracking has any stale row deleted instead.
func (m *Maintainer) OnExpenseCreated(ctx context.Context, ev ExpenseEvent) error {
	done := m.gate.incremental()
	defer done()

	schedulable, err := m.kinds.IsSchedulable(ctx, ev.KindID)
	if err != nil {
		return fmt.Errorf("on expense created: %w", err)
	}
	if !schedulable {
		return nil
	}

	settings, err := m.resolver.Resolve(ctx, ev.VehicleID, ev.KindID)
	if err != nil {
		return fmt.Errorf("on expense created: %w", err)
	}
	if !settings.Tracked() {
		if err := m.store.Delete(ctx, ev.VehicleID, ev.KindID); err != nil {
			return fmt.Errorf("on expense created: drop untracked row: %w", err)
		}
		return nil
	}

	if err := m.store.MergeMax(ctx, ev.VehicleID, ev.KindID, ev.ServiceDate, ev.OdometerKm, settings); err != nil {
		return fmt.Errorf("on expense created: merge: %w", err)
	}
	m.log.WithFields(logrus.Fields{
		"vehicle": ev.VehicleID,
		"kind":    ev.KindID,
		"date":    ev.ServiceDate.String(),
	}).Debug("merged expense into service interval")
	return nil
}

// OnExpenseRemoved reacts to an expense removal. The removed record might
// have been the maximum, so the pair is rescanned.
func (m *Maintainer) OnExpenseRemoved(ctx context.Context, vehicleID VehicleID, kindID KindID) error {
	done := m.gate.incremental()
	defer done()
	return m.rescan(ctx, vehicleID, kindID)
}

// OnExpenseUpdated reacts to an expense edit. A kind or vehicle change is
// a removal from the old pair plus a creation on the new one; otherwise
// the pair is rescanned, since the old value may or may not have been the
// maximum.
func (m *Maintainer) OnExpenseUpdated(ctx context.Context, prev, next ExpenseEvent) error {
	if prev.VehicleID != next.VehicleID || prev.KindID != next.KindID {
		if err := m.OnExpenseRemoved(ctx, prev.VehicleID, prev.KindID); err != nil {
			return err
		}
		return m.OnExpenseCreated(ctx, next)
	}

	done := m.gate.incremental()
	defer done()
	return m.rescan(ctx, next.VehicleID, next.KindID)
}

// OnSettingsChanged recomputes a pair after its resolved settings changed.
// The maxima are unchanged but every next-due value depends on the
// settings, so this is the same rescan path.
func (m *Maintainer) OnSettingsChanged(ctx context.Context, vehicleID VehicleID, kindID KindID) error {
	done := m.gate.incremental()
	defer done()
	return m.rescan(ctx, vehicleID, kindID)
}

// rescan recomputes one pair's row from the remaining qualifying expenses.
// Serialized per key: two concurrent rescans for the same pair would race
// read-modify-write and could persist a stale maximum.
func (m *Maintainer) rescan(ctx context.Context, vehicleID VehicleID, kindID KindID) error {
	unlock := m.locks.lock(IntervalKey{VehicleID: vehicleID, KindID: kindID})
	defer unlock()

	settings, err := m.resolver.Resolve(ctx, vehicleID, kindID)
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	if !settings.Tracked() {
		if err := m.store.Delete(ctx, vehicleID, kindID); err != nil {
			return fmt.Errorf("rescan: drop untracked row: %w", err)
		}
		return nil
	}

	stats, err := m.history.ServiceStats(ctx, vehicleID, kindID)
	if err != nil {
		return fmt.Errorf("rescan: %w", err)
	}
	if stats == nil || stats.Count == 0 {
		if err := m.store.Delete(ctx, vehicleID, kindID); err != nil {
			return fmt.Errorf("rescan: drop empty row: %w", err)
		}
		m.log.WithFields(logrus.Fields{"vehicle": vehicleID, "kind": kindID}).
			Debug("no qualifying expenses remain, row removed")
		return nil
	}

	rec := deriveInterval(*stats, settings)
	if err := m.store.Put(ctx, rec); err != nil {
		return fmt.Errorf("rescan: put: %w", err)
	}
	return nil
}
