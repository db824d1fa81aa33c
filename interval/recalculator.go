/*
recalculator.go - Full derived-state rebuild

PURPOSE:
  Wipes and rebuilds the derived rows for one vehicle or for the whole
  system in a single idempotent pass. This is the bootstrap and
  drift-repair mechanism: run against any expense history it must land on
  exactly the state the incremental path maintains, and running it twice
  in a row changes nothing.

EXECUTION MODEL:
  The complete replacement row set is computed first, then applied through
  one all-or-nothing store call, so a failed rebuild never leaves the
  store half-wiped. A rebuild holds the rebuild gate exclusively: nothing
  incremental runs while it does, and a second rebuild blocks rather than
  interleaving.

SEE ALSO:
  - maintainer.go: The incremental paths this must stay equivalent to
  - due.go:        deriveInterval, shared with the rescan path
*/
package interval

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Recalculator is the administrative batch component.
type Recalculator struct {
	store    Store
	history  ExpenseHistory
	resolver *SettingsResolver
	kinds    KindCatalog
	gate     *RebuildGate
	log      *logrus.Entry
}

func NewRecalculator(store Store, history ExpenseHistory, resolver *SettingsResolver, kinds KindCatalog, gate *RebuildGate, log *logrus.Logger) *Recalculator {
	return &Recalculator{
		store:    store,
		history:  history,
		resolver: resolver,
		kinds:    kinds,
		gate:     gate,
		log:      log.WithField("component", "recalculator"),
	}
}

// RecalculateForVehicle rebuilds every derived row for one vehicle.
// Returns the number of rows in the rebuilt state.
func (r *Recalculator) RecalculateForVehicle(ctx context.Context, vehicleID VehicleID) (int, error) {
	done := r.gate.exclusive()
	defer done()

	kindIDs, err := r.kinds.SchedulableKindIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("recalculate vehicle %s: %w", vehicleID, err)
	}

	var rows []ServiceInterval
	for _, kindID := range kindIDs {
		settings, err := r.resolver.Resolve(ctx, vehicleID, kindID)
		if err != nil {
			return 0, fmt.Errorf("recalculate vehicle %s: %w", vehicleID, err)
		}
		if !settings.Tracked() {
			continue
		}
		stats, err := r.history.ServiceStats(ctx, vehicleID, kindID)
		if err != nil {
			return 0, fmt.Errorf("recalculate vehicle %s: %w", vehicleID, err)
		}
		if stats == nil || stats.Count == 0 {
			continue
		}
		rows = append(rows, deriveInterval(*stats, settings))
	}

	if err := r.store.RebuildVehicle(ctx, vehicleID, rows); err != nil {
		return 0, fmt.Errorf("recalculate vehicle %s: rebuild: %w", vehicleID, err)
	}
	r.log.WithFields(logrus.Fields{"vehicle": vehicleID, "rows": len(rows)}).
		Info("vehicle service intervals rebuilt")
	return len(rows), nil
}

// RecalculateAll rebuilds every derived row system-wide in one pass.
// Returns the number of rows in the rebuilt state.
func (r *Recalculator) RecalculateAll(ctx context.Context) (int, error) {
	done := r.gate.exclusive()
	defer done()

	stats, err := r.history.AllServiceStats(ctx)
	if err != nil {
		return 0, fmt.Errorf("recalculate all: %w", err)
	}

	var rows []ServiceInterval
	for _, st := range stats {
		if st.Count == 0 {
			continue
		}
		settings, err := r.resolver.Resolve(ctx, st.VehicleID, st.KindID)
		if err != nil {
			return 0, fmt.Errorf("recalculate all: %w", err)
		}
		if !settings.Tracked() {
			continue
		}
		rows = append(rows, deriveInterval(st, settings))
	}

	if err := r.store.RebuildAll(ctx, rows); err != nil {
		return 0, fmt.Errorf("recalculate all: rebuild: %w", err)
	}
	r.log.WithField("rows", len(rows)).Info("all service intervals rebuilt")
	return len(rows), nil
}
