/*
Package sqlite provides the SQLite-backed implementation of the engine's
storage and collaborator interfaces.

PURPOSE:
  Implements interval.Store, interval.ExpenseHistory,
  interval.SettingsSource, and interval.KindCatalog, plus the collaborator
  interfaces (interval.VehicleOwnership, interval.CurrentMileage,
  interval.UnitPreferences) against the application's own tables. In
  production the same patterns apply to PostgreSQL - only minor SQL
  dialect differences.

KEY TABLES:
  accounts:                  Unit preferences and notify thresholds
  vehicles:                  Ownership and the last known odometer
  maintenance_kinds:         Schedulability flag and kind-level defaults
  vehicle_interval_settings: Per-vehicle overrides (soft-deleted)
  expenses:                  Maintenance expense records (soft-deleted)
  service_intervals:         The derived rows, unique per (vehicle, kind)

WRITE SHAPES:
  MergeMax runs read-merge-write inside one transaction while holding the
  store mutex, so the grow-only maximum merge and the next-due recompute
  land atomically. RebuildVehicle/RebuildAll delete and re-insert inside
  one transaction - a failed rebuild never leaves the table half-wiped,
  and keys that survive the rebuild keep their created_at.

REPRESENTATION:
  Dates as TEXT "2006-01-02" (ISO text orders correctly), distances as
  decimal TEXT for exactness, timestamps as RFC3339 TEXT.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. With PostgreSQL, row-level locks
  inside the transactions would replace the mutex.

WAL MODE:
  SQLite is opened with WAL so readers never block on the single writer.

SEE ALSO:
  - interval/store.go: Interface definitions
  - interval/store/memory.go: In-memory implementation for testing
  - expenses.go: Shell CRUD for expenses, vehicles, kinds, accounts
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/maintenance-engine/interval"
)

// Sentinel errors for shell records owned by this package.
var (
	ErrExpenseNotFound = fmt.Errorf("expense not found")
	ErrAccountNotFound = fmt.Errorf("account not found")
)

// Store implements the engine's storage and collaborator interfaces.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// One pooled connection: SQLite allows a single writer anyway, and
	// ":memory:" databases exist per-connection.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS accounts (
		id TEXT PRIMARY KEY,
		distance_unit TEXT NOT NULL DEFAULT 'km',
		notify_in_days INTEGER,
		notify_in_km TEXT,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vehicles (
		id TEXT PRIMARY KEY,
		account_id TEXT NOT NULL,
		name TEXT NOT NULL,
		current_odometer_km TEXT,
		archived_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_vehicles_account
		ON vehicles(account_id);

	CREATE TABLE IF NOT EXISTS maintenance_kinds (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		schedulable BOOLEAN NOT NULL DEFAULT FALSE,
		active BOOLEAN NOT NULL DEFAULT TRUE,
		interval_type TEXT,
		mileage_interval_km TEXT,
		days_interval INTEGER,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS vehicle_interval_settings (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		kind_id TEXT NOT NULL,
		interval_type TEXT NOT NULL,
		mileage_interval_km TEXT NOT NULL,
		days_interval INTEGER NOT NULL,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- One live override per pair; soft-deleted rows keep history.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_vehicle_settings_live
		ON vehicle_interval_settings(vehicle_id, kind_id)
		WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS expenses (
		id TEXT PRIMARY KEY,
		vehicle_id TEXT NOT NULL,
		kind_id TEXT NOT NULL,
		service_date TEXT NOT NULL,
		odometer_km TEXT,
		notes TEXT,
		deleted_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Rescan hot path: all live expenses for one (vehicle, kind) pair.
	CREATE INDEX IF NOT EXISTS idx_expenses_vehicle_kind
		ON expenses(vehicle_id, kind_id) WHERE deleted_at IS NULL;

	CREATE TABLE IF NOT EXISTS service_intervals (
		vehicle_id TEXT NOT NULL,
		kind_id TEXT NOT NULL,
		interval_type TEXT NOT NULL,
		mileage_interval_km TEXT NOT NULL,
		days_interval INTEGER NOT NULL,
		max_service_date TEXT NOT NULL,
		max_odometer_km TEXT,
		next_due_date TEXT,
		next_due_odometer_km TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (vehicle_id, kind_id)
	);

	CREATE INDEX IF NOT EXISTS idx_service_intervals_vehicle
		ON service_intervals(vehicle_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// interval.Store
// =============================================================================

const intervalColumns = `vehicle_id, kind_id, interval_type, mileage_interval_km, days_interval,
	max_service_date, max_odometer_km, next_due_date, next_due_odometer_km, created_at, updated_at`

// Get returns the derived row for a pair, or interval.ErrIntervalNotFound.
func (s *Store) Get(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID) (*interval.ServiceInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getInterval(ctx, s.db, vehicleID, kindID)
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getInterval(ctx context.Context, db querier, vehicleID interval.VehicleID, kindID interval.KindID) (*interval.ServiceInterval, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+intervalColumns+` FROM service_intervals WHERE vehicle_id = ? AND kind_id = ?`,
		vehicleID, kindID)
	rec, err := scanInterval(row)
	if err == sql.ErrNoRows {
		return nil, interval.ErrIntervalNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load service interval: %w", err)
	}
	return rec, nil
}

// ListByVehicles returns all derived rows for the given vehicles.
func (s *Store) ListByVehicles(ctx context.Context, vehicleIDs []interval.VehicleID) ([]interval.ServiceInterval, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(vehicleIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vehicleIDs)), ",")
	args := make([]any, len(vehicleIDs))
	for i, id := range vehicleIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+intervalColumns+` FROM service_intervals
		 WHERE vehicle_id IN (`+placeholders+`)
		 ORDER BY vehicle_id, kind_id`, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list service intervals: %w", err)
	}
	defer rows.Close()

	var out []interval.ServiceInterval
	for rows.Next() {
		rec, err := scanInterval(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan service interval: %w", err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// MergeMax atomically folds one service occurrence into the pair's row.
// The read, the pairwise-maximum merge, and the next-due recompute run in
// one transaction under the store mutex.
func (s *Store) MergeMax(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID, serviceDate interval.Date, odometerKm *decimal.Decimal, settings interval.IntervalSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer tx.Rollback()

	existing, err := s.getInterval(ctx, tx, vehicleID, kindID)
	if err != nil && err != interval.ErrIntervalNotFound {
		return err
	}

	merged := interval.ServiceStats{VehicleID: vehicleID, KindID: kindID}
	if existing != nil {
		merged.Merge(existing.MaxServiceDate, existing.MaxOdometerKm)
	}
	merged.Merge(serviceDate, odometerKm)

	now := time.Now().UTC().Format(time.RFC3339)
	created := now
	if existing != nil {
		created = existing.CreatedAt.Format(time.RFC3339)
	}

	nextDueDate := interval.NextDueDate(merged.MaxServiceDate, settings)
	nextDueOdo := interval.NextDueOdometer(merged.MaxOdometerKm, settings)

	_, err = tx.ExecContext(ctx, `
		INSERT INTO service_intervals
		(vehicle_id, kind_id, interval_type, mileage_interval_km, days_interval,
		 max_service_date, max_odometer_km, next_due_date, next_due_odometer_km, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vehicle_id, kind_id) DO UPDATE SET
			interval_type = excluded.interval_type,
			mileage_interval_km = excluded.mileage_interval_km,
			days_interval = excluded.days_interval,
			max_service_date = excluded.max_service_date,
			max_odometer_km = excluded.max_odometer_km,
			next_due_date = excluded.next_due_date,
			next_due_odometer_km = excluded.next_due_odometer_km,
			updated_at = excluded.updated_at`,
		vehicleID, kindID, settings.Type, settings.MileageIntervalKm.String(), settings.DaysInterval,
		merged.MaxServiceDate.String(), nullDecimal(merged.MaxOdometerKm),
		nullDate(nextDueDate), nullDecimal(nextDueOdo), created, now)
	if err != nil {
		return fmt.Errorf("failed to merge service interval: %w", err)
	}
	return tx.Commit()
}

// Put replaces the pair's row with a rescan result.
func (s *Store) Put(ctx context.Context, rec interval.ServiceInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO service_intervals
		(vehicle_id, kind_id, interval_type, mileage_interval_km, days_interval,
		 max_service_date, max_odometer_km, next_due_date, next_due_odometer_km, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(vehicle_id, kind_id) DO UPDATE SET
			interval_type = excluded.interval_type,
			mileage_interval_km = excluded.mileage_interval_km,
			days_interval = excluded.days_interval,
			max_service_date = excluded.max_service_date,
			max_odometer_km = excluded.max_odometer_km,
			next_due_date = excluded.next_due_date,
			next_due_odometer_km = excluded.next_due_odometer_km,
			updated_at = excluded.updated_at`,
		rec.VehicleID, rec.KindID, rec.Type, rec.MileageIntervalKm.String(), rec.DaysInterval,
		rec.MaxServiceDate.String(), nullDecimal(rec.MaxOdometerKm),
		nullDate(rec.NextDueDate), nullDecimal(rec.NextDueOdometerKm), now, now)
	if err != nil {
		return fmt.Errorf("failed to put service interval: %w", err)
	}
	return nil
}

// SetNextDue overrides the stored next-due values.
func (s *Store) SetNextDue(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID, nextDueDate *interval.Date, nextDueOdometerKm *decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE service_intervals
		SET next_due_date = ?, next_due_odometer_km = ?, updated_at = ?
		WHERE vehicle_id = ? AND kind_id = ?`,
		nullDate(nextDueDate), nullDecimal(nextDueOdometerKm),
		time.Now().UTC().Format(time.RFC3339), vehicleID, kindID)
	if err != nil {
		return fmt.Errorf("failed to override next due: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return interval.ErrIntervalNotFound
	}
	return nil
}

// Delete removes the pair's row; deleting an absent row is a no-op.
func (s *Store) Delete(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM service_intervals WHERE vehicle_id = ? AND kind_id = ?`, vehicleID, kindID)
	if err != nil {
		return fmt.Errorf("failed to delete service interval: %w", err)
	}
	return nil
}

// RebuildVehicle atomically replaces every row for one vehicle.
func (s *Store) RebuildVehicle(ctx context.Context, vehicleID interval.VehicleID, rows []interval.ServiceInterval) error {
	return s.rebuild(ctx, ` WHERE vehicle_id = ?`, []any{vehicleID}, rows)
}

// RebuildAll atomically replaces every row in the store.
func (s *Store) RebuildAll(ctx context.Context, rows []interval.ServiceInterval) error {
	return s.rebuild(ctx, ``, nil, rows)
}

func (s *Store) rebuild(ctx context.Context, scope string, scopeArgs []any, rows []interval.ServiceInterval) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin rebuild transaction: %w", err)
	}
	defer tx.Rollback()

	// Keys that survive the rebuild keep their original created_at.
	created, err := createdAtByKey(ctx, tx, scope, scopeArgs)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM service_intervals`+scope, scopeArgs...); err != nil {
		return fmt.Errorf("failed to wipe service intervals: %w", err)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	for _, rec := range rows {
		createdAt := now
		if prev, ok := created[rec.Key()]; ok {
			createdAt = prev
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO service_intervals
			(vehicle_id, kind_id, interval_type, mileage_interval_km, days_interval,
			 max_service_date, max_odometer_km, next_due_date, next_due_odometer_km, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			rec.VehicleID, rec.KindID, rec.Type, rec.MileageIntervalKm.String(), rec.DaysInterval,
			rec.MaxServiceDate.String(), nullDecimal(rec.MaxOdometerKm),
			nullDate(rec.NextDueDate), nullDecimal(rec.NextDueOdometerKm), createdAt, now)
		if err != nil {
			return fmt.Errorf("failed to insert rebuilt row: %w", err)
		}
	}
	return tx.Commit()
}

func createdAtByKey(ctx context.Context, tx *sql.Tx, scope string, scopeArgs []any) (map[interval.IntervalKey]string, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT vehicle_id, kind_id, created_at FROM service_intervals`+scope, scopeArgs...)
	if err != nil {
		return nil, fmt.Errorf("failed to read existing intervals: %w", err)
	}
	defer rows.Close()

	out := make(map[interval.IntervalKey]string)
	for rows.Next() {
		var vehicleID, kindID, createdAt string
		if err := rows.Scan(&vehicleID, &kindID, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan existing interval: %w", err)
		}
		key := interval.IntervalKey{
			VehicleID: interval.VehicleID(vehicleID),
			KindID:    interval.KindID(kindID),
		}
		out[key] = createdAt
	}
	return out, rows.Err()
}

// =============================================================================
// interval.ExpenseHistory
// =============================================================================

// qualifyingExpenses selects live expenses whose kind is schedulable and
// active. The maxima are folded in Go so decimal odometers keep exact
// comparison semantics.
const qualifyingExpenses = `
	SELECT e.vehicle_id, e.kind_id, e.service_date, e.odometer_km
	FROM expenses e
	JOIN maintenance_kinds k ON k.id = e.kind_id
	WHERE e.deleted_at IS NULL AND k.schedulable AND k.active`

// ServiceStats returns maxima for one pair, or nil with no qualifying rows.
func (s *Store) ServiceStats(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID) (*interval.ServiceStats, error) {
	stats, err := s.foldStats(ctx, qualifyingExpenses+` AND e.vehicle_id = ? AND e.kind_id = ?`, vehicleID, kindID)
	if err != nil {
		return nil, err
	}
	if len(stats) == 0 {
		return nil, nil
	}
	return &stats[0], nil
}

// VehicleServiceStats returns per-kind maxima for one vehicle.
func (s *Store) VehicleServiceStats(ctx context.Context, vehicleID interval.VehicleID) ([]interval.ServiceStats, error) {
	return s.foldStats(ctx, qualifyingExpenses+` AND e.vehicle_id = ?`, vehicleID)
}

// AllServiceStats returns maxima for every pair system-wide.
func (s *Store) AllServiceStats(ctx context.Context) ([]interval.ServiceStats, error) {
	return s.foldStats(ctx, qualifyingExpenses)
}

func (s *Store) foldStats(ctx context.Context, query string, args ...any) ([]interval.ServiceStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query expense history: %w", err)
	}
	defer rows.Close()

	byKey := make(map[interval.IntervalKey]*interval.ServiceStats)
	var order []interval.IntervalKey
	for rows.Next() {
		var (
			vehicleID, kindID, dateStr string
			odoStr                     sql.NullString
		)
		if err := rows.Scan(&vehicleID, &kindID, &dateStr, &odoStr); err != nil {
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		date, err := interval.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt service date: %w", err)
		}
		odo, err := parseNullDecimal(odoStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt odometer: %w", err)
		}

		key := interval.IntervalKey{VehicleID: interval.VehicleID(vehicleID), KindID: interval.KindID(kindID)}
		stats, ok := byKey[key]
		if !ok {
			stats = &interval.ServiceStats{VehicleID: key.VehicleID, KindID: key.KindID}
			byKey[key] = stats
			order = append(order, key)
		}
		stats.Merge(date, odo)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]interval.ServiceStats, 0, len(order))
	for _, key := range order {
		out = append(out, *byKey[key])
	}
	return out, nil
}

// =============================================================================
// interval.SettingsSource / interval.KindCatalog
// =============================================================================

// VehicleOverride returns the live per-vehicle override, or nil.
func (s *Store) VehicleOverride(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID) (*interval.IntervalSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		typ     string
		mileage string
		days    int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT interval_type, mileage_interval_km, days_interval
		FROM vehicle_interval_settings
		WHERE vehicle_id = ? AND kind_id = ? AND deleted_at IS NULL`,
		vehicleID, kindID).Scan(&typ, &mileage, &days)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load vehicle override: %w", err)
	}
	return parseSettings(typ, mileage, days)
}

// KindDefault returns the kind-level default settings for an active kind
// with tracking configured, or nil.
func (s *Store) KindDefault(ctx context.Context, kindID interval.KindID) (*interval.IntervalSettings, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		typ     sql.NullString
		mileage sql.NullString
		days    sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT interval_type, mileage_interval_km, days_interval
		FROM maintenance_kinds
		WHERE id = ? AND active`, kindID).Scan(&typ, &mileage, &days)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load kind default: %w", err)
	}
	if !typ.Valid {
		return nil, nil
	}
	mileageStr := "0"
	if mileage.Valid {
		mileageStr = mileage.String
	}
	return parseSettings(typ.String, mileageStr, int(days.Int64))
}

// IsSchedulable reports whether the kind exists, is active, and is
// flagged schedulable.
func (s *Store) IsSchedulable(ctx context.Context, kindID interval.KindID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var schedulable bool
	err := s.db.QueryRowContext(ctx,
		`SELECT schedulable FROM maintenance_kinds WHERE id = ? AND active`, kindID).Scan(&schedulable)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check schedulability: %w", err)
	}
	return schedulable, nil
}

// SchedulableKindIDs lists all active schedulable kinds.
func (s *Store) SchedulableKindIDs(ctx context.Context) ([]interval.KindID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM maintenance_kinds WHERE schedulable AND active ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedulable kinds: %w", err)
	}
	defer rows.Close()

	var out []interval.KindID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, interval.KindID(id))
	}
	return out, rows.Err()
}

// =============================================================================
// COLLABORATORS - Ownership, current mileage, unit preferences
// =============================================================================

// IsOwnedByAccount reports whether the vehicle exists, is not archived,
// and belongs to the account.
func (s *Store) IsOwnedByAccount(ctx context.Context, vehicleID interval.VehicleID, accountID interval.AccountID) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var one int
	err := s.db.QueryRowContext(ctx, `
		SELECT 1 FROM vehicles
		WHERE id = ? AND account_id = ? AND archived_at IS NULL`,
		vehicleID, accountID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check ownership: %w", err)
	}
	return true, nil
}

// ActiveVehicleIDs lists the account's non-archived vehicles.
func (s *Store) ActiveVehicleIDs(ctx context.Context, accountID interval.AccountID) ([]interval.VehicleID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM vehicles
		WHERE account_id = ? AND archived_at IS NULL
		ORDER BY id`, accountID)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	defer rows.Close()

	var out []interval.VehicleID
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, interval.VehicleID(id))
	}
	return out, rows.Err()
}

// MaxKnownOdometerKm returns the highest odometer reading known for the
// vehicle: the greater of the vehicle record's own reading and any live
// expense's reading. Nil when nothing is known.
func (s *Store) MaxKnownOdometerKm(ctx context.Context, vehicleID interval.VehicleID) (*decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var vehicleOdo sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT current_odometer_km FROM vehicles WHERE id = ?`, vehicleID).Scan(&vehicleOdo)
	if err != nil && err != sql.ErrNoRows {
		return nil, fmt.Errorf("failed to load vehicle odometer: %w", err)
	}
	max, err := parseNullDecimal(vehicleOdo)
	if err != nil {
		return nil, fmt.Errorf("corrupt vehicle odometer: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT odometer_km FROM expenses
		WHERE vehicle_id = ? AND deleted_at IS NULL AND odometer_km IS NOT NULL`, vehicleID)
	if err != nil {
		return nil, fmt.Errorf("failed to scan expense odometers: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var odoStr string
		if err := rows.Scan(&odoStr); err != nil {
			return nil, err
		}
		odo, err := decimal.NewFromString(odoStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt odometer: %w", err)
		}
		if max == nil || odo.GreaterThan(*max) {
			max = &odo
		}
	}
	return max, rows.Err()
}

// PreferredDistanceUnit returns the account's unit, defaulting to km.
func (s *Store) PreferredDistanceUnit(ctx context.Context, accountID interval.AccountID) (interval.DistanceUnit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var unit string
	err := s.db.QueryRowContext(ctx,
		`SELECT distance_unit FROM accounts WHERE id = ?`, accountID).Scan(&unit)
	if err == sql.ErrNoRows {
		return interval.UnitKilometers, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load unit preference: %w", err)
	}
	return interval.DistanceUnit(unit), nil
}

// NotifyThresholds returns the account's thresholds, falling back to the
// system defaults per field.
func (s *Store) NotifyThresholds(ctx context.Context, accountID interval.AccountID) (interval.Thresholds, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	th := interval.DefaultThresholds()
	var (
		days sql.NullInt64
		km   sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT notify_in_days, notify_in_km FROM accounts WHERE id = ?`, accountID).Scan(&days, &km)
	if err == sql.ErrNoRows {
		return th, nil
	}
	if err != nil {
		return th, fmt.Errorf("failed to load notify thresholds: %w", err)
	}
	if days.Valid {
		th.Days = int(days.Int64)
	}
	if km.Valid {
		v, err := decimal.NewFromString(km.String)
		if err != nil {
			return th, fmt.Errorf("corrupt notify threshold: %w", err)
		}
		th.Km = v
	}
	return th, nil
}

// =============================================================================
// HELPERS
// =============================================================================

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInterval(row rowScanner) (*interval.ServiceInterval, error) {
	var (
		vehicleID, kindID, typ, mileage string
		days                            int
		maxDateStr                      string
		maxOdo, nextDate, nextOdo       sql.NullString
		createdAt, updatedAt            string
	)
	if err := row.Scan(&vehicleID, &kindID, &typ, &mileage, &days,
		&maxDateStr, &maxOdo, &nextDate, &nextOdo, &createdAt, &updatedAt); err != nil {
		return nil, err
	}

	settings, err := parseSettings(typ, mileage, days)
	if err != nil {
		return nil, err
	}
	maxDate, err := interval.ParseDate(maxDateStr)
	if err != nil {
		return nil, fmt.Errorf("corrupt max service date: %w", err)
	}

	rec := interval.ServiceInterval{
		VehicleID:         interval.VehicleID(vehicleID),
		KindID:            interval.KindID(kindID),
		Type:              settings.Type,
		MileageIntervalKm: settings.MileageIntervalKm,
		DaysInterval:      settings.DaysInterval,
		MaxServiceDate:    maxDate,
	}
	if rec.MaxOdometerKm, err = parseNullDecimal(maxOdo); err != nil {
		return nil, fmt.Errorf("corrupt max odometer: %w", err)
	}
	if nextDate.Valid {
		d, err := interval.ParseDate(nextDate.String)
		if err != nil {
			return nil, fmt.Errorf("corrupt next due date: %w", err)
		}
		rec.NextDueDate = &d
	}
	if rec.NextDueOdometerKm, err = parseNullDecimal(nextOdo); err != nil {
		return nil, fmt.Errorf("corrupt next due odometer: %w", err)
	}
	if rec.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at: %w", err)
	}
	if rec.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at: %w", err)
	}
	return &rec, nil
}

func parseSettings(typ, mileage string, days int) (*interval.IntervalSettings, error) {
	t := interval.IntervalType(typ)
	if !t.Valid() {
		return nil, fmt.Errorf("unknown interval type %q", typ)
	}
	km, err := decimal.NewFromString(mileage)
	if err != nil {
		return nil, fmt.Errorf("corrupt mileage interval: %w", err)
	}
	return &interval.IntervalSettings{Type: t, MileageIntervalKm: km, DaysInterval: days}, nil
}

func parseNullDecimal(v sql.NullString) (*decimal.Decimal, error) {
	if !v.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(v.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func nullDecimal(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func nullDate(d *interval.Date) any {
	if d == nil {
		return nil
	}
	return d.String()
}
