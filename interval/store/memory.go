// Package store provides an in-memory implementation of the engine's
// storage interfaces (for testing/dev).
package store

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/warp/maintenance-engine/interval"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

// Memory implements interval.Store, interval.ExpenseHistory,
// interval.SettingsSource, and interval.KindCatalog against maps. Fixture
// mutators (SetKind, SetVehicleOverride, AddExpense, ...) stand in for the
// surrounding application's CRUD.
type Memory struct {
	mu        sync.RWMutex
	intervals map[interval.IntervalKey]interval.ServiceInterval
	expenses  map[string]expenseRecord
	kinds     map[interval.KindID]kindRecord
	overrides map[interval.IntervalKey]interval.IntervalSettings
}

type expenseRecord struct {
	VehicleID   interval.VehicleID
	KindID      interval.KindID
	ServiceDate interval.Date
	OdometerKm  *decimal.Decimal
}

type kindRecord struct {
	Schedulable bool
	Active      bool
	Default     *interval.IntervalSettings
}

func NewMemory() *Memory {
	return &Memory{
		intervals: make(map[interval.IntervalKey]interval.ServiceInterval),
		expenses:  make(map[string]expenseRecord),
		kinds:     make(map[interval.KindID]kindRecord),
		overrides: make(map[interval.IntervalKey]interval.IntervalSettings),
	}
}

// =============================================================================
// interval.Store
// =============================================================================

func (m *Memory) Get(_ context.Context, vehicleID interval.VehicleID, kindID interval.KindID) (*interval.ServiceInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.intervals[interval.IntervalKey{VehicleID: vehicleID, KindID: kindID}]
	if !ok {
		return nil, interval.ErrIntervalNotFound
	}
	out := cloneInterval(rec)
	return &out, nil
}

func (m *Memory) ListByVehicles(_ context.Context, vehicleIDs []interval.VehicleID) ([]interval.ServiceInterval, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	want := make(map[interval.VehicleID]struct{}, len(vehicleIDs))
	for _, id := range vehicleIDs {
		want[id] = struct{}{}
	}
	var out []interval.ServiceInterval
	for key, rec := range m.intervals {
		if _, ok := want[key.VehicleID]; ok {
			out = append(out, cloneInterval(rec))
		}
	}
	return out, nil
}

func (m *Memory) MergeMax(_ context.Context, vehicleID interval.VehicleID, kindID interval.KindID, serviceDate interval.Date, odometerKm *decimal.Decimal, settings interval.IntervalSettings) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := interval.IntervalKey{VehicleID: vehicleID, KindID: kindID}
	now := time.Now().UTC()

	rec, ok := m.intervals[key]
	if !ok {
		rec = interval.ServiceInterval{
			VehicleID:      vehicleID,
			KindID:         kindID,
			MaxServiceDate: serviceDate,
			CreatedAt:      now,
		}
		if odometerKm != nil {
			v := *odometerKm
			rec.MaxOdometerKm = &v
		}
	} else {
		// Grow-only maximum merge.
		if serviceDate.After(rec.MaxServiceDate) {
			rec.MaxServiceDate = serviceDate
		}
		if odometerKm != nil && (rec.MaxOdometerKm == nil || odometerKm.GreaterThan(*rec.MaxOdometerKm)) {
			v := *odometerKm
			rec.MaxOdometerKm = &v
		}
	}

	rec.Type = settings.Type
	rec.MileageIntervalKm = settings.MileageIntervalKm
	rec.DaysInterval = settings.DaysInterval
	rec.NextDueDate = interval.NextDueDate(rec.MaxServiceDate, settings)
	rec.NextDueOdometerKm = interval.NextDueOdometer(rec.MaxOdometerKm, settings)
	rec.UpdatedAt = now

	m.intervals[key] = rec
	return nil
}

func (m *Memory) Put(_ context.Context, rec interval.ServiceInterval) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := rec.Key()
	now := time.Now().UTC()
	if existing, ok := m.intervals[key]; ok {
		rec.CreatedAt = existing.CreatedAt
	} else {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	m.intervals[key] = cloneInterval(rec)
	return nil
}

func (m *Memory) SetNextDue(_ context.Context, vehicleID interval.VehicleID, kindID interval.KindID, nextDueDate *interval.Date, nextDueOdometerKm *decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := interval.IntervalKey{VehicleID: vehicleID, KindID: kindID}
	rec, ok := m.intervals[key]
	if !ok {
		return interval.ErrIntervalNotFound
	}
	rec.NextDueDate = cloneDate(nextDueDate)
	rec.NextDueOdometerKm = cloneDecimal(nextDueOdometerKm)
	rec.UpdatedAt = time.Now().UTC()
	m.intervals[key] = rec
	return nil
}

func (m *Memory) Delete(_ context.Context, vehicleID interval.VehicleID, kindID interval.KindID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.intervals, interval.IntervalKey{VehicleID: vehicleID, KindID: kindID})
	return nil
}

func (m *Memory) RebuildVehicle(_ context.Context, vehicleID interval.VehicleID, rows []interval.ServiceInterval) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Keys that survive the rebuild keep their original created_at.
	created := make(map[interval.IntervalKey]time.Time)
	for key, rec := range m.intervals {
		if key.VehicleID == vehicleID {
			created[key] = rec.CreatedAt
			delete(m.intervals, key)
		}
	}
	m.insertRebuiltLocked(rows, created)
	return nil
}

func (m *Memory) RebuildAll(_ context.Context, rows []interval.ServiceInterval) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	created := make(map[interval.IntervalKey]time.Time, len(m.intervals))
	for key, rec := range m.intervals {
		created[key] = rec.CreatedAt
	}
	m.intervals = make(map[interval.IntervalKey]interval.ServiceInterval, len(rows))
	m.insertRebuiltLocked(rows, created)
	return nil
}

func (m *Memory) insertRebuiltLocked(rows []interval.ServiceInterval, created map[interval.IntervalKey]time.Time) {
	now := time.Now().UTC()
	for _, rec := range rows {
		rec.CreatedAt = now
		if prev, ok := created[rec.Key()]; ok {
			rec.CreatedAt = prev
		}
		rec.UpdatedAt = now
		m.intervals[rec.Key()] = cloneInterval(rec)
	}
}

// =============================================================================
// interval.ExpenseHistory
// =============================================================================

func (m *Memory) ServiceStats(_ context.Context, vehicleID interval.VehicleID, kindID interval.KindID) (*interval.ServiceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := interval.ServiceStats{VehicleID: vehicleID, KindID: kindID}
	for _, ex := range m.expenses {
		if ex.VehicleID != vehicleID || ex.KindID != kindID || !m.qualifiesLocked(ex) {
			continue
		}
		stats.Merge(ex.ServiceDate, ex.OdometerKm)
	}
	if stats.Count == 0 {
		return nil, nil
	}
	return &stats, nil
}

func (m *Memory) VehicleServiceStats(_ context.Context, vehicleID interval.VehicleID) ([]interval.ServiceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectStatsLocked(func(ex expenseRecord) bool { return ex.VehicleID == vehicleID }), nil
}

func (m *Memory) AllServiceStats(_ context.Context) ([]interval.ServiceStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.collectStatsLocked(func(expenseRecord) bool { return true }), nil
}

func (m *Memory) collectStatsLocked(match func(expenseRecord) bool) []interval.ServiceStats {
	byKey := make(map[interval.IntervalKey]*interval.ServiceStats)
	for _, ex := range m.expenses {
		if !match(ex) || !m.qualifiesLocked(ex) {
			continue
		}
		key := interval.IntervalKey{VehicleID: ex.VehicleID, KindID: ex.KindID}
		stats, ok := byKey[key]
		if !ok {
			stats = &interval.ServiceStats{VehicleID: ex.VehicleID, KindID: ex.KindID}
			byKey[key] = stats
		}
		stats.Merge(ex.ServiceDate, ex.OdometerKm)
	}
	out := make([]interval.ServiceStats, 0, len(byKey))
	for _, stats := range byKey {
		out = append(out, *stats)
	}
	return out
}

func (m *Memory) qualifiesLocked(ex expenseRecord) bool {
	kind, ok := m.kinds[ex.KindID]
	return ok && kind.Schedulable && kind.Active
}

// =============================================================================
// interval.SettingsSource / interval.KindCatalog
// =============================================================================

func (m *Memory) VehicleOverride(_ context.Context, vehicleID interval.VehicleID, kindID interval.KindID) (*interval.IntervalSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.overrides[interval.IntervalKey{VehicleID: vehicleID, KindID: kindID}]
	if !ok {
		return nil, nil
	}
	out := s
	return &out, nil
}

func (m *Memory) KindDefault(_ context.Context, kindID interval.KindID) (*interval.IntervalSettings, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kind, ok := m.kinds[kindID]
	if !ok || !kind.Active || kind.Default == nil {
		return nil, nil
	}
	out := *kind.Default
	return &out, nil
}

func (m *Memory) IsSchedulable(_ context.Context, kindID interval.KindID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	kind, ok := m.kinds[kindID]
	return ok && kind.Schedulable && kind.Active, nil
}

func (m *Memory) SchedulableKindIDs(_ context.Context) ([]interval.KindID, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []interval.KindID
	for id, kind := range m.kinds {
		if kind.Schedulable && kind.Active {
			out = append(out, id)
		}
	}
	return out, nil
}

// =============================================================================
// FIXTURE MUTATORS - Stand-ins for the surrounding application's CRUD
// =============================================================================

// SetKind registers a maintenance kind. A nil defaults value means the
// kind has no kind-level default settings.
func (m *Memory) SetKind(kindID interval.KindID, schedulable bool, defaults *interval.IntervalSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.kinds[kindID] = kindRecord{Schedulable: schedulable, Active: true, Default: defaults}
}

// DeactivateKind marks a kind inactive; its expenses stop qualifying and
// its default settings stop applying.
func (m *Memory) DeactivateKind(kindID interval.KindID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if kind, ok := m.kinds[kindID]; ok {
		kind.Active = false
		m.kinds[kindID] = kind
	}
}

// SetVehicleOverride installs a vehicle-specific settings override.
func (m *Memory) SetVehicleOverride(vehicleID interval.VehicleID, kindID interval.KindID, s interval.IntervalSettings) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.overrides[interval.IntervalKey{VehicleID: vehicleID, KindID: kindID}] = s
}

// RemoveVehicleOverride soft-deletes a vehicle override.
func (m *Memory) RemoveVehicleOverride(vehicleID interval.VehicleID, kindID interval.KindID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.overrides, interval.IntervalKey{VehicleID: vehicleID, KindID: kindID})
}

// AddExpense records a qualifying-candidate expense in the history.
func (m *Memory) AddExpense(id string, ev interval.ExpenseEvent) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.expenses[id] = expenseRecord{
		VehicleID:   ev.VehicleID,
		KindID:      ev.KindID,
		ServiceDate: ev.ServiceDate,
		OdometerKm:  cloneDecimal(ev.OdometerKm),
	}
}

// UpdateExpense replaces an expense's fields.
func (m *Memory) UpdateExpense(id string, ev interval.ExpenseEvent) {
	m.AddExpense(id, ev)
}

// RemoveExpense drops an expense from the history.
func (m *Memory) RemoveExpense(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.expenses, id)
}

// IntervalCount reports the number of stored derived rows.
func (m *Memory) IntervalCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.intervals)
}

// =============================================================================
// HELPERS
// =============================================================================

func cloneInterval(rec interval.ServiceInterval) interval.ServiceInterval {
	rec.MaxOdometerKm = cloneDecimal(rec.MaxOdometerKm)
	rec.NextDueDate = cloneDate(rec.NextDueDate)
	rec.NextDueOdometerKm = cloneDecimal(rec.NextDueOdometerKm)
	return rec
}

func cloneDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func cloneDate(d *interval.Date) *interval.Date {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}
