/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

UNITS:
  Every distance field in a request or response is in the account's
  preferred unit. Conversion to and from metric happens in the handlers;
  DTOs never carry kilometers for a miles account.

DATES:
  Date fields are interval.Date values, which ride the wire as
  "YYYY-MM-DD" strings; a malformed date fails JSON decoding.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
  - interval/query.go: EnrichedInterval, the source of IntervalDTO
*/
package api

import "github.com/warp/maintenance-engine/interval"

// =============================================================================
// INTERVAL TYPES
// =============================================================================

// IntervalDTO represents one maintained service interval in API responses.
// All distances are in the account's preferred unit.
type IntervalDTO struct {
	VehicleID       string         `json:"vehicle_id"`
	KindID          string         `json:"kind_id"`
	IntervalType    string         `json:"interval_type"`
	MileageInterval float64        `json:"mileage_interval"`
	DaysInterval    int            `json:"days_interval"`
	DistanceUnit    string         `json:"distance_unit"`
	LastServiceDate interval.Date  `json:"last_service_date"`
	LastOdometer    *float64       `json:"last_odometer,omitempty"`
	NextDueDate     *interval.Date `json:"next_due_date,omitempty"`
	NextDueOdometer *float64       `json:"next_due_odometer,omitempty"`
	RemainingDays   *int           `json:"remaining_days,omitempty"`
	RemainingDist   *float64       `json:"remaining_distance,omitempty"`
	Urgency         string         `json:"urgency"`
	UpdatedAt       string         `json:"updated_at,omitempty"`
}

// OverrideNextDueRequest is the PATCH body for a manual next-due override.
// At least one field must be present. The odometer is in the account's
// preferred unit.
type OverrideNextDueRequest struct {
	NextDueDate     *interval.Date `json:"next_due_date,omitempty"`
	NextDueOdometer *float64       `json:"next_due_odometer,omitempty"`
}

// IntervalKeyDTO identifies one (vehicle, kind) pair.
type IntervalKeyDTO struct {
	VehicleID string `json:"vehicle_id"`
	KindID    string `json:"kind_id"`
}

// BatchGetIntervalsRequest asks for several pairs at once. Keys that are
// absent or belong to another account are skipped, not errors.
type BatchGetIntervalsRequest struct {
	Keys []IntervalKeyDTO `json:"keys"`
}

// RecalculateResponse reports how many rows a rebuild produced.
type RecalculateResponse struct {
	Rebuilt int `json:"rebuilt"`
}

// =============================================================================
// EXPENSE TYPES
// =============================================================================

// ExpenseDTO represents a maintenance expense in API responses.
type ExpenseDTO struct {
	ID          string        `json:"id"`
	VehicleID   string        `json:"vehicle_id"`
	KindID      string        `json:"kind_id"`
	ServiceDate interval.Date `json:"service_date"`
	Odometer    *float64      `json:"odometer,omitempty"`
	Notes       string        `json:"notes,omitempty"`
	CreatedAt   string        `json:"created_at,omitempty"`
}

// CreateExpenseRequest is the request to record an expense. The odometer
// is in the account's preferred unit.
type CreateExpenseRequest struct {
	KindID      string        `json:"kind_id"`
	ServiceDate interval.Date `json:"service_date"`
	Odometer    *float64      `json:"odometer,omitempty"`
	Notes       string        `json:"notes,omitempty"`
}

// UpdateExpenseRequest is the request to rewrite an expense's fields.
type UpdateExpenseRequest struct {
	KindID      string        `json:"kind_id"`
	ServiceDate interval.Date `json:"service_date"`
	Odometer    *float64      `json:"odometer,omitempty"`
	Notes       string        `json:"notes,omitempty"`
}

// =============================================================================
// VEHICLE / KIND / ACCOUNT TYPES
// =============================================================================

// VehicleDTO represents a vehicle in API responses.
type VehicleDTO struct {
	ID        string   `json:"id"`
	AccountID string   `json:"account_id"`
	Name      string   `json:"name"`
	Odometer  *float64 `json:"odometer,omitempty"`
	CreatedAt string   `json:"created_at,omitempty"`
}

// CreateVehicleRequest is the request to register a vehicle.
type CreateVehicleRequest struct {
	Name     string   `json:"name"`
	Odometer *float64 `json:"odometer,omitempty"`
}

// KindDTO represents a maintenance category in API responses.
type KindDTO struct {
	ID          string               `json:"id"`
	Name        string               `json:"name"`
	Schedulable bool                 `json:"schedulable"`
	Default     *IntervalSettingsDTO `json:"default,omitempty"`
}

// IntervalSettingsDTO carries tracking settings over the wire. The mileage
// interval is in the account's preferred unit.
type IntervalSettingsDTO struct {
	IntervalType    string  `json:"interval_type"`
	MileageInterval float64 `json:"mileage_interval"`
	DaysInterval    int     `json:"days_interval"`
}

// CreateKindRequest is the request to register a maintenance category.
type CreateKindRequest struct {
	Name        string               `json:"name"`
	Schedulable bool                 `json:"schedulable"`
	Default     *IntervalSettingsDTO `json:"default,omitempty"`
}

// AccountDTO represents an account in API responses.
type AccountDTO struct {
	ID           string   `json:"id"`
	DistanceUnit string   `json:"distance_unit"`
	NotifyInDays *int     `json:"notify_in_days,omitempty"`
	NotifyInDist *float64 `json:"notify_in_distance,omitempty"`
}

// CreateAccountRequest is the request to create an account.
type CreateAccountRequest struct {
	DistanceUnit string   `json:"distance_unit"`
	NotifyInDays *int     `json:"notify_in_days,omitempty"`
	NotifyInDist *float64 `json:"notify_in_distance,omitempty"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
