/*
PURPOSE:
  Shell CRUD for the records the engine derives from: accounts, vehicles,
  maintenance kinds, per-vehicle interval settings, and expenses. The API
  layer calls these, then feeds the resulting events to the maintainer.

SOFT DELETES:
  Expenses and vehicle settings are soft-deleted (deleted_at). A removed
  expense must stop qualifying for the derived rows while keeping its
  record for audit, so deletion here is always an UPDATE.

SEE ALSO:
  - sqlite.go: Derived-row storage and collaborator queries
  - api/handlers.go: Expense lifecycle endpoints
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/warp/maintenance-engine/interval"
)

// Account holds unit preferences and notify thresholds.
type Account struct {
	ID           interval.AccountID
	DistanceUnit interval.DistanceUnit
	NotifyInDays *int
	NotifyInKm   *decimal.Decimal
	CreatedAt    time.Time
}

// Vehicle is an owned vehicle record. CurrentOdometerKm is the owner's
// self-reported reading, always nil or metric.
type Vehicle struct {
	ID                interval.VehicleID
	AccountID         interval.AccountID
	Name              string
	CurrentOdometerKm *decimal.Decimal
	ArchivedAt        *time.Time
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Kind is a maintenance category. Default is nil for kinds with no
// kind-level tracking configured.
type Kind struct {
	ID          interval.KindID
	Name        string
	Schedulable bool
	Active      bool
	Default     *interval.IntervalSettings
	CreatedAt   time.Time
}

// Expense is one maintenance expense record.
type Expense struct {
	ID          string
	VehicleID   interval.VehicleID
	KindID      interval.KindID
	ServiceDate interval.Date
	OdometerKm  *decimal.Decimal
	Notes       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Event projects the expense onto the fields the maintainer consumes.
func (e *Expense) Event() interval.ExpenseEvent {
	return interval.ExpenseEvent{
		VehicleID:   e.VehicleID,
		KindID:      e.KindID,
		ServiceDate: e.ServiceDate,
		OdometerKm:  e.OdometerKm,
	}
}

// =============================================================================
// ACCOUNTS
// =============================================================================

// CreateAccount creates an account with the given unit preference. Nil
// thresholds mean the system defaults apply.
func (s *Store) CreateAccount(ctx context.Context, unit interval.DistanceUnit, notifyInDays *int, notifyInKm *decimal.Decimal) (*Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acc := Account{
		ID:           interval.AccountID(newID()),
		DistanceUnit: unit,
		NotifyInDays: notifyInDays,
		NotifyInKm:   notifyInKm,
		CreatedAt:    time.Now().UTC(),
	}
	var days any
	if notifyInDays != nil {
		days = *notifyInDays
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (id, distance_unit, notify_in_days, notify_in_km, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		acc.ID, acc.DistanceUnit, days, nullDecimal(notifyInKm), acc.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return &acc, nil
}

// GetAccount returns the account, or ErrAccountNotFound.
func (s *Store) GetAccount(ctx context.Context, accountID interval.AccountID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		unit, createdAt string
		days            sql.NullInt64
		km              sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT distance_unit, notify_in_days, notify_in_km, created_at
		FROM accounts WHERE id = ?`, accountID).Scan(&unit, &days, &km, &createdAt)
	if err == sql.ErrNoRows {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account: %w", err)
	}

	acc := Account{ID: accountID, DistanceUnit: interval.DistanceUnit(unit)}
	if days.Valid {
		d := int(days.Int64)
		acc.NotifyInDays = &d
	}
	if acc.NotifyInKm, err = parseNullDecimal(km); err != nil {
		return nil, fmt.Errorf("corrupt notify threshold: %w", err)
	}
	if acc.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at: %w", err)
	}
	return &acc, nil
}

// =============================================================================
// VEHICLES
// =============================================================================

// CreateVehicle registers a vehicle under the account.
func (s *Store) CreateVehicle(ctx context.Context, accountID interval.AccountID, name string, odometerKm *decimal.Decimal) (*Vehicle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	v := Vehicle{
		ID:                interval.VehicleID(newID()),
		AccountID:         accountID,
		Name:              name,
		CurrentOdometerKm: odometerKm,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO vehicles (id, account_id, name, current_odometer_km, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		v.ID, v.AccountID, v.Name, nullDecimal(odometerKm),
		now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create vehicle: %w", err)
	}
	return &v, nil
}

// SetVehicleOdometer updates the self-reported odometer reading.
func (s *Store) SetVehicleOdometer(ctx context.Context, vehicleID interval.VehicleID, odometerKm decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE vehicles SET current_odometer_km = ?, updated_at = ?
		WHERE id = ? AND archived_at IS NULL`,
		odometerKm.String(), time.Now().UTC().Format(time.RFC3339), vehicleID)
	if err != nil {
		return fmt.Errorf("failed to update odometer: %w", err)
	}
	return nil
}

// ArchiveVehicle soft-archives the vehicle. Archived vehicles drop out of
// listings and ownership checks but keep their history.
func (s *Store) ArchiveVehicle(ctx context.Context, vehicleID interval.VehicleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE vehicles SET archived_at = ?, updated_at = ?
		WHERE id = ? AND archived_at IS NULL`, now, now, vehicleID)
	if err != nil {
		return fmt.Errorf("failed to archive vehicle: %w", err)
	}
	return nil
}

// =============================================================================
// MAINTENANCE KINDS
// =============================================================================

// CreateKind registers a maintenance category. A nil defaults leaves the
// kind without kind-level tracking.
func (s *Store) CreateKind(ctx context.Context, name string, schedulable bool, defaults *interval.IntervalSettings) (*Kind, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	k := Kind{
		ID:          interval.KindID(newID()),
		Name:        name,
		Schedulable: schedulable,
		Active:      true,
		Default:     defaults,
		CreatedAt:   time.Now().UTC(),
	}
	var typ, mileage, days any
	if defaults != nil {
		typ = string(defaults.Type)
		mileage = defaults.MileageIntervalKm.String()
		days = defaults.DaysInterval
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO maintenance_kinds
		(id, name, schedulable, active, interval_type, mileage_interval_km, days_interval, created_at)
		VALUES (?, ?, ?, TRUE, ?, ?, ?, ?)`,
		k.ID, k.Name, k.Schedulable, typ, mileage, days, k.CreatedAt.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to create kind: %w", err)
	}
	return &k, nil
}

// DeactivateKind retires a kind. Its expenses stop qualifying and its
// derived rows disappear on the next rescan or rebuild.
func (s *Store) DeactivateKind(ctx context.Context, kindID interval.KindID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`UPDATE maintenance_kinds SET active = FALSE WHERE id = ?`, kindID)
	if err != nil {
		return fmt.Errorf("failed to deactivate kind: %w", err)
	}
	return nil
}

// =============================================================================
// VEHICLE INTERVAL SETTINGS
// =============================================================================

// UpsertVehicleSetting replaces the live override for the pair. The old
// override, if any, is soft-deleted so the unique live index stays clean.
func (s *Store) UpsertVehicleSetting(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID, settings interval.IntervalSettings) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin settings transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err = tx.ExecContext(ctx, `
		UPDATE vehicle_interval_settings SET deleted_at = ?, updated_at = ?
		WHERE vehicle_id = ? AND kind_id = ? AND deleted_at IS NULL`,
		now, now, vehicleID, kindID)
	if err != nil {
		return fmt.Errorf("failed to retire previous override: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO vehicle_interval_settings
		(id, vehicle_id, kind_id, interval_type, mileage_interval_km, days_interval, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		newID(), vehicleID, kindID, settings.Type, settings.MileageIntervalKm.String(),
		settings.DaysInterval, now, now)
	if err != nil {
		return fmt.Errorf("failed to insert override: %w", err)
	}
	return tx.Commit()
}

// DeleteVehicleSetting soft-deletes the live override, reverting the pair
// to the kind default.
func (s *Store) DeleteVehicleSetting(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, `
		UPDATE vehicle_interval_settings SET deleted_at = ?, updated_at = ?
		WHERE vehicle_id = ? AND kind_id = ? AND deleted_at IS NULL`,
		now, now, vehicleID, kindID)
	if err != nil {
		return fmt.Errorf("failed to delete override: %w", err)
	}
	return nil
}

// =============================================================================
// EXPENSES
// =============================================================================

// InsertExpense records a new expense.
func (s *Store) InsertExpense(ctx context.Context, vehicleID interval.VehicleID, kindID interval.KindID, serviceDate interval.Date, odometerKm *decimal.Decimal, notes string) (*Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	exp := Expense{
		ID:          newID(),
		VehicleID:   vehicleID,
		KindID:      kindID,
		ServiceDate: serviceDate,
		OdometerKm:  odometerKm,
		Notes:       notes,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, vehicle_id, kind_id, service_date, odometer_km, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		exp.ID, exp.VehicleID, exp.KindID, exp.ServiceDate.String(), nullDecimal(odometerKm),
		exp.Notes, now.Format(time.RFC3339), now.Format(time.RFC3339))
	if err != nil {
		return nil, fmt.Errorf("failed to insert expense: %w", err)
	}
	return &exp, nil
}

// GetExpense returns the live expense, or ErrExpenseNotFound.
func (s *Store) GetExpense(ctx context.Context, id string) (*Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getExpense(ctx, id)
}

func (s *Store) getExpense(ctx context.Context, id string) (*Expense, error) {
	var (
		vehicleID, kindID, dateStr string
		odo, notes                 sql.NullString
		createdAt, updatedAt       string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT vehicle_id, kind_id, service_date, odometer_km, notes, created_at, updated_at
		FROM expenses WHERE id = ? AND deleted_at IS NULL`, id).
		Scan(&vehicleID, &kindID, &dateStr, &odo, &notes, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrExpenseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load expense: %w", err)
	}

	exp := Expense{
		ID:        id,
		VehicleID: interval.VehicleID(vehicleID),
		KindID:    interval.KindID(kindID),
		Notes:     notes.String,
	}
	if exp.ServiceDate, err = interval.ParseDate(dateStr); err != nil {
		return nil, fmt.Errorf("corrupt service date: %w", err)
	}
	if exp.OdometerKm, err = parseNullDecimal(odo); err != nil {
		return nil, fmt.Errorf("corrupt odometer: %w", err)
	}
	if exp.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("corrupt created_at: %w", err)
	}
	if exp.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("corrupt updated_at: %w", err)
	}
	return &exp, nil
}

// UpdateExpense rewrites a live expense's maintained fields and returns
// the updated record.
func (s *Store) UpdateExpense(ctx context.Context, id string, kindID interval.KindID, serviceDate interval.Date, odometerKm *decimal.Decimal, notes string) (*Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET kind_id = ?, service_date = ?, odometer_km = ?, notes = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		kindID, serviceDate.String(), nullDecimal(odometerKm), notes,
		time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return nil, fmt.Errorf("failed to update expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrExpenseNotFound
	}
	return s.getExpense(ctx, id)
}

// DeleteExpense soft-deletes the expense, or ErrExpenseNotFound.
func (s *Store) DeleteExpense(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE expenses SET deleted_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL`,
		time.Now().UTC().Format(time.RFC3339), time.Now().UTC().Format(time.RFC3339), id)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrExpenseNotFound
	}
	return nil
}

func newID() string {
	return uuid.NewString()
}
