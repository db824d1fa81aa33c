/*
handlers.go - HTTP API handlers for the maintenance interval engine

PURPOSE:
  Exposes the interval engine via REST API. Handles HTTP request/response,
  JSON serialization, unit conversion at the boundary, and delegates to
  the engine's maintainer, recalculator, and query service.

ENDPOINTS:
  Intervals:
    GET    /api/intervals                            List account's intervals
    POST   /api/intervals/batch                      Get several pairs at once
    GET    /api/vehicles/{id}/intervals/{kind}       Get one interval
    PATCH  /api/vehicles/{id}/intervals/{kind}       Manual next-due override

  Expenses:
    POST   /api/vehicles/{id}/expenses               Record expense
    PUT    /api/expenses/{id}                        Rewrite expense
    DELETE /api/expenses/{id}                        Remove expense

  Settings:
    PUT    /api/vehicles/{id}/settings/{kind}        Set vehicle override
    DELETE /api/vehicles/{id}/settings/{kind}        Remove vehicle override

  Admin:
    POST   /api/admin/recalculate                    Full rebuild
    POST   /api/admin/vehicles/{id}/recalculate      Per-vehicle rebuild

  Setup:
    POST   /api/accounts                             Create account
    POST   /api/vehicles                             Register vehicle
    PUT    /api/vehicles/{id}/odometer               Update odometer
    POST   /api/kinds                                Register kind

AUTHENTICATION:
  The calling account arrives in the X-Account-ID header. There is no
  credential check here; an upstream gateway owns authentication. A
  vehicle outside the caller's account reads as not found, never as
  forbidden, so the API does not leak which vehicle ids exist.

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input, convert distances to metric
  3. Call engine logic (maintainer, recalculator, query)
  4. Serialize response, converting distances back to the account's unit
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Interval, expense, or vehicle not found (or not owned)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - interval/maintainer.go: The write path these handlers drive
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/warp/maintenance-engine/interval"
	"github.com/warp/maintenance-engine/store/sqlite"
	"github.com/warp/maintenance-engine/units"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store        *sqlite.Store
	Maintainer   *interval.Maintainer
	Recalculator *interval.Recalculator
	Query        *interval.QueryService
	Converter    units.Converter
	Log          *logrus.Logger
}

// NewHandler creates a new handler with the given dependencies.
func NewHandler(store *sqlite.Store, maintainer *interval.Maintainer, recalc *interval.Recalculator, query *interval.QueryService, log *logrus.Logger) *Handler {
	return &Handler{
		Store:        store,
		Maintainer:   maintainer,
		Recalculator: recalc,
		Query:        query,
		Converter:    units.NewConverter(),
		Log:          log,
	}
}

// accountID extracts the calling account from the request header.
func accountID(r *http.Request) interval.AccountID {
	return interval.AccountID(r.Header.Get("X-Account-ID"))
}

// =============================================================================
// INTERVAL HANDLERS
// =============================================================================

// ListIntervals returns the account's maintained intervals, optionally
// filtered by vehicle_id and urgency query parameters.
func (h *Handler) ListIntervals(w http.ResponseWriter, r *http.Request) {
	opts := interval.ListOptions{}
	if v := r.URL.Query().Get("vehicle_id"); v != "" {
		id := interval.VehicleID(v)
		opts.VehicleID = &id
	}
	if u := r.URL.Query().Get("urgency"); u != "" {
		urgency := interval.Urgency(u)
		if !urgency.Valid() {
			writeError(w, http.StatusBadRequest, "Invalid urgency filter", nil)
			return
		}
		opts.Urgency = &urgency
	}

	rows, err := h.Query.List(r.Context(), accountID(r), opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list intervals", err)
		return
	}

	dtos := make([]IntervalDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toIntervalDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// BatchGetIntervals returns the intervals for the requested pairs. Pairs
// that are absent or belong to another account are silently skipped, so a
// partial result never reveals which of the missing keys exist.
func (h *Handler) BatchGetIntervals(w http.ResponseWriter, r *http.Request) {
	var req BatchGetIntervalsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	keys := make([]interval.IntervalKey, len(req.Keys))
	for i, k := range req.Keys {
		keys[i] = interval.IntervalKey{
			VehicleID: interval.VehicleID(k.VehicleID),
			KindID:    interval.KindID(k.KindID),
		}
	}

	rows, err := h.Query.GetMany(r.Context(), accountID(r), keys)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get intervals", err)
		return
	}

	dtos := make([]IntervalDTO, len(rows))
	for i, row := range rows {
		dtos[i] = toIntervalDTO(row)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetInterval returns one maintained interval.
func (h *Handler) GetInterval(w http.ResponseWriter, r *http.Request) {
	vehicleID := interval.VehicleID(chi.URLParam(r, "id"))
	kindID := interval.KindID(chi.URLParam(r, "kind"))

	row, err := h.Query.Get(r.Context(), accountID(r), vehicleID, kindID)
	if err != nil {
		h.writeEngineError(w, "Failed to get interval", err)
		return
	}
	writeJSON(w, http.StatusOK, toIntervalDTO(*row))
}

// OverrideNextDue applies a manual next-due override and returns the
// updated interval.
func (h *Handler) OverrideNextDue(w http.ResponseWriter, r *http.Request) {
	vehicleID := interval.VehicleID(chi.URLParam(r, "id"))
	kindID := interval.KindID(chi.URLParam(r, "kind"))

	var req OverrideNextDueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	patch := interval.NextDuePatch{NextDueDate: req.NextDueDate}
	if req.NextDueOdometer != nil {
		odo := decimal.NewFromFloat(*req.NextDueOdometer)
		patch.NextDueOdometer = &odo
	}

	row, err := h.Query.UpdateNextDue(r.Context(), accountID(r), vehicleID, kindID, patch)
	if err != nil {
		h.writeEngineError(w, "Failed to override next due", err)
		return
	}
	writeJSON(w, http.StatusOK, toIntervalDTO(*row))
}

// =============================================================================
// EXPENSE HANDLERS
// =============================================================================

// CreateExpense records a maintenance expense and updates the derived
// interval for its (vehicle, kind) pair.
func (h *Handler) CreateExpense(w http.ResponseWriter, r *http.Request) {
	vehicleID := interval.VehicleID(chi.URLParam(r, "id"))

	_, unit, ok := h.requireVehicle(w, r, vehicleID)
	if !ok {
		return
	}

	var req CreateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.KindID == "" {
		writeError(w, http.StatusBadRequest, "kind_id is required", nil)
		return
	}
	if req.ServiceDate.IsZero() {
		writeError(w, http.StatusBadRequest, "service_date is required", nil)
		return
	}
	odometerKm, err := h.odometerToMetric(req.Odometer, unit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid odometer", err)
		return
	}

	exp, err := h.Store.InsertExpense(r.Context(), vehicleID, interval.KindID(req.KindID), req.ServiceDate, odometerKm, req.Notes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to record expense", err)
		return
	}

	if err := h.Maintainer.OnExpenseCreated(r.Context(), exp.Event()); err != nil {
		// The expense row is committed; the derived row catches up on the
		// next rescan or scheduled rebuild.
		h.Log.WithError(err).WithField("expense_id", exp.ID).Warn("interval update failed after expense create")
	}

	writeJSON(w, http.StatusCreated, h.toExpenseDTO(exp, unit))
}

// UpdateExpense rewrites an expense's fields and rescans the affected
// interval pairs.
func (h *Handler) UpdateExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	prev, err := h.Store.GetExpense(r.Context(), id)
	if err != nil {
		h.writeExpenseError(w, err)
		return
	}
	_, unit, ok := h.requireVehicle(w, r, prev.VehicleID)
	if !ok {
		return
	}

	var req UpdateExpenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.KindID == "" {
		writeError(w, http.StatusBadRequest, "kind_id is required", nil)
		return
	}
	if req.ServiceDate.IsZero() {
		writeError(w, http.StatusBadRequest, "service_date is required", nil)
		return
	}
	odometerKm, err := h.odometerToMetric(req.Odometer, unit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid odometer", err)
		return
	}

	next, err := h.Store.UpdateExpense(r.Context(), id, interval.KindID(req.KindID), req.ServiceDate, odometerKm, req.Notes)
	if err != nil {
		h.writeExpenseError(w, err)
		return
	}

	if err := h.Maintainer.OnExpenseUpdated(r.Context(), prev.Event(), next.Event()); err != nil {
		h.Log.WithError(err).WithField("expense_id", id).Warn("interval update failed after expense update")
	}

	writeJSON(w, http.StatusOK, h.toExpenseDTO(next, unit))
}

// DeleteExpense removes an expense and rescans its interval pair.
func (h *Handler) DeleteExpense(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	exp, err := h.Store.GetExpense(r.Context(), id)
	if err != nil {
		h.writeExpenseError(w, err)
		return
	}
	if _, _, ok := h.requireVehicle(w, r, exp.VehicleID); !ok {
		return
	}

	if err := h.Store.DeleteExpense(r.Context(), id); err != nil {
		h.writeExpenseError(w, err)
		return
	}

	if err := h.Maintainer.OnExpenseRemoved(r.Context(), exp.VehicleID, exp.KindID); err != nil {
		h.Log.WithError(err).WithField("expense_id", id).Warn("interval rescan failed after expense delete")
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// SETTINGS HANDLERS
// =============================================================================

// UpsertVehicleSetting sets the per-vehicle tracking override and rescans
// the pair under the new settings.
func (h *Handler) UpsertVehicleSetting(w http.ResponseWriter, r *http.Request) {
	vehicleID := interval.VehicleID(chi.URLParam(r, "id"))
	kindID := interval.KindID(chi.URLParam(r, "kind"))

	_, unit, ok := h.requireVehicle(w, r, vehicleID)
	if !ok {
		return
	}

	var req IntervalSettingsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	settings, err := h.settingsToMetric(req, unit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid settings", err)
		return
	}

	if err := h.Store.UpsertVehicleSetting(r.Context(), vehicleID, kindID, settings); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}
	if err := h.Maintainer.OnSettingsChanged(r.Context(), vehicleID, kindID); err != nil {
		h.Log.WithError(err).Warn("interval rescan failed after settings change")
	}

	w.WriteHeader(http.StatusNoContent)
}

// DeleteVehicleSetting removes the override, reverting the pair to the
// kind default, and rescans.
func (h *Handler) DeleteVehicleSetting(w http.ResponseWriter, r *http.Request) {
	vehicleID := interval.VehicleID(chi.URLParam(r, "id"))
	kindID := interval.KindID(chi.URLParam(r, "kind"))

	if _, _, ok := h.requireVehicle(w, r, vehicleID); !ok {
		return
	}

	if err := h.Store.DeleteVehicleSetting(r.Context(), vehicleID, kindID); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete settings", err)
		return
	}
	if err := h.Maintainer.OnSettingsChanged(r.Context(), vehicleID, kindID); err != nil {
		h.Log.WithError(err).Warn("interval rescan failed after settings delete")
	}

	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// RecalculateAll rebuilds every derived row from expense history.
func (h *Handler) RecalculateAll(w http.ResponseWriter, r *http.Request) {
	n, err := h.Recalculator.RecalculateAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RecalculateResponse{Rebuilt: n})
}

// RecalculateVehicle rebuilds the derived rows for one vehicle.
func (h *Handler) RecalculateVehicle(w http.ResponseWriter, r *http.Request) {
	vehicleID := interval.VehicleID(chi.URLParam(r, "id"))

	n, err := h.Recalculator.RecalculateForVehicle(r.Context(), vehicleID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Recalculation failed", err)
		return
	}
	writeJSON(w, http.StatusOK, RecalculateResponse{Rebuilt: n})
}

// =============================================================================
// SETUP HANDLERS
// =============================================================================

// CreateAccount creates an account with unit preferences.
func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	unit := interval.DistanceUnit(req.DistanceUnit)
	if req.DistanceUnit == "" {
		unit = interval.UnitKilometers
	}
	if !units.Valid(unit) {
		writeError(w, http.StatusBadRequest, "Invalid distance_unit (use km or mi)", nil)
		return
	}

	var notifyKm *decimal.Decimal
	if req.NotifyInDist != nil {
		km := h.Converter.ToMetric(decimal.NewFromFloat(*req.NotifyInDist), unit)
		notifyKm = &km
	}

	acc, err := h.Store.CreateAccount(r.Context(), unit, req.NotifyInDays, notifyKm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create account", err)
		return
	}

	dto := AccountDTO{
		ID:           string(acc.ID),
		DistanceUnit: string(acc.DistanceUnit),
		NotifyInDays: acc.NotifyInDays,
		NotifyInDist: req.NotifyInDist,
	}
	writeJSON(w, http.StatusCreated, dto)
}

// CreateVehicle registers a vehicle under the calling account.
func (h *Handler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	acc := accountID(r)
	if acc == "" {
		writeError(w, http.StatusBadRequest, "X-Account-ID header is required", nil)
		return
	}

	var req CreateVehicleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	unit, err := h.Store.PreferredDistanceUnit(r.Context(), acc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return
	}
	odometerKm, err := h.odometerToMetric(req.Odometer, unit)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid odometer", err)
		return
	}

	v, err := h.Store.CreateVehicle(r.Context(), acc, req.Name, odometerKm)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create vehicle", err)
		return
	}

	writeJSON(w, http.StatusCreated, VehicleDTO{
		ID:        string(v.ID),
		AccountID: string(v.AccountID),
		Name:      v.Name,
		Odometer:  req.Odometer,
		CreatedAt: v.CreatedAt.Format(time.RFC3339),
	})
}

// SetVehicleOdometer updates a vehicle's self-reported odometer reading.
func (h *Handler) SetVehicleOdometer(w http.ResponseWriter, r *http.Request) {
	vehicleID := interval.VehicleID(chi.URLParam(r, "id"))

	_, unit, ok := h.requireVehicle(w, r, vehicleID)
	if !ok {
		return
	}

	var req struct {
		Odometer float64 `json:"odometer"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Odometer < 0 {
		writeError(w, http.StatusBadRequest, "odometer must not be negative", nil)
		return
	}

	km := h.Converter.ToMetric(decimal.NewFromFloat(req.Odometer), unit)
	if err := h.Store.SetVehicleOdometer(r.Context(), vehicleID, km); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update odometer", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateKind registers a maintenance category. Kind defaults arrive in
// metric; kinds are system-wide, not per-account.
func (h *Handler) CreateKind(w http.ResponseWriter, r *http.Request) {
	var req CreateKindRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	var defaults *interval.IntervalSettings
	if req.Default != nil {
		s, err := h.settingsToMetric(*req.Default, interval.UnitKilometers)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid default settings", err)
			return
		}
		defaults = &s
	}

	k, err := h.Store.CreateKind(r.Context(), req.Name, req.Schedulable, defaults)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create kind", err)
		return
	}

	writeJSON(w, http.StatusCreated, KindDTO{
		ID:          string(k.ID),
		Name:        k.Name,
		Schedulable: k.Schedulable,
		Default:     req.Default,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// requireVehicle checks the caller owns the vehicle and loads the
// account's unit. Writes the error response on failure.
func (h *Handler) requireVehicle(w http.ResponseWriter, r *http.Request, vehicleID interval.VehicleID) (interval.AccountID, interval.DistanceUnit, bool) {
	acc := accountID(r)
	owned, err := h.Store.IsOwnedByAccount(r.Context(), vehicleID, acc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to check vehicle", err)
		return "", "", false
	}
	if !owned {
		writeError(w, http.StatusNotFound, "Vehicle not found", nil)
		return "", "", false
	}
	unit, err := h.Store.PreferredDistanceUnit(r.Context(), acc)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load account", err)
		return "", "", false
	}
	return acc, unit, true
}

// odometerToMetric converts an optional caller-unit odometer to metric,
// rejecting negatives.
func (h *Handler) odometerToMetric(value *float64, unit interval.DistanceUnit) (*decimal.Decimal, error) {
	if value == nil {
		return nil, nil
	}
	if *value < 0 {
		return nil, errors.New("odometer must not be negative")
	}
	km := h.Converter.ToMetric(decimal.NewFromFloat(*value), unit)
	return &km, nil
}

func (h *Handler) settingsToMetric(dto IntervalSettingsDTO, unit interval.DistanceUnit) (interval.IntervalSettings, error) {
	typ := interval.IntervalType(dto.IntervalType)
	if !typ.Valid() {
		return interval.IntervalSettings{}, errors.New("unknown interval_type")
	}
	if dto.MileageInterval < 0 {
		return interval.IntervalSettings{}, errors.New("mileage_interval must not be negative")
	}
	if dto.DaysInterval < 0 {
		return interval.IntervalSettings{}, errors.New("days_interval must not be negative")
	}
	return interval.IntervalSettings{
		Type:              typ,
		MileageIntervalKm: h.Converter.ToMetric(decimal.NewFromFloat(dto.MileageInterval), unit),
		DaysInterval:      dto.DaysInterval,
	}, nil
}

func toIntervalDTO(row interval.EnrichedInterval) IntervalDTO {
	return IntervalDTO{
		VehicleID:       string(row.VehicleID),
		KindID:          string(row.KindID),
		IntervalType:    string(row.Type),
		MileageInterval: row.MileageInterval.InexactFloat64(),
		DaysInterval:    row.DaysInterval,
		DistanceUnit:    string(row.DistanceUnit),
		LastServiceDate: row.MaxServiceDate,
		LastOdometer:    floatPtr(row.MaxOdometer),
		NextDueDate:     row.NextDueDate,
		NextDueOdometer: floatPtr(row.NextDueOdometer),
		RemainingDays:   row.RemainingDays,
		RemainingDist:   floatPtr(row.RemainingDistance),
		Urgency:         string(row.Urgency),
		UpdatedAt:       row.UpdatedAt.Format(time.RFC3339),
	}
}

func (h *Handler) toExpenseDTO(exp *sqlite.Expense, unit interval.DistanceUnit) ExpenseDTO {
	dto := ExpenseDTO{
		ID:          exp.ID,
		VehicleID:   string(exp.VehicleID),
		KindID:      string(exp.KindID),
		ServiceDate: exp.ServiceDate,
		Notes:       exp.Notes,
		CreatedAt:   exp.CreatedAt.Format(time.RFC3339),
	}
	if exp.OdometerKm != nil {
		v := h.Converter.FromMetric(*exp.OdometerKm, unit).InexactFloat64()
		dto.Odometer = &v
	}
	return dto
}

func floatPtr(d *decimal.Decimal) *float64 {
	if d == nil {
		return nil
	}
	v := d.InexactFloat64()
	return &v
}

// writeEngineError maps engine errors onto HTTP statuses.
func (h *Handler) writeEngineError(w http.ResponseWriter, message string, err error) {
	var validation *interval.ValidationError
	switch {
	case errors.Is(err, interval.ErrIntervalNotFound):
		writeError(w, http.StatusNotFound, "Interval not found", nil)
	case errors.As(err, &validation):
		writeError(w, http.StatusBadRequest, validation.Error(), nil)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func (h *Handler) writeExpenseError(w http.ResponseWriter, err error) {
	if errors.Is(err, sqlite.ErrExpenseNotFound) {
		writeError(w, http.StatusNotFound, "Expense not found", nil)
		return
	}
	writeError(w, http.StatusInternalServerError, "Expense operation failed", err)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
