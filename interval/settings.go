/*
settings.go - Three-tier interval settings resolution

PURPOSE:
  Resolves the effective tracking rule for a (vehicle, kind) pair:

    1. Vehicle-specific override (if present and not soft-deleted)
    2. Kind-level default (if the kind is active)
    3. No tracking

  Resolution never fails on absent configuration: no override and no
  default is a valid state meaning "not tracked", not an error. A kind
  that is not schedulable resolves to no tracking regardless of any
  configuration attached to it.
*/
package interval

import (
	"context"
	"fmt"
)

// SettingsResolver resolves effective interval settings per lookup.
type SettingsResolver struct {
	Source SettingsSource
	Kinds  KindCatalog
}

func NewSettingsResolver(source SettingsSource, kinds KindCatalog) *SettingsResolver {
	return &SettingsResolver{Source: source, Kinds: kinds}
}

// Resolve returns the effective settings for the pair. The only error
// condition is a storage failure; missing configuration yields NoTracking.
func (r *SettingsResolver) Resolve(ctx context.Context, vehicleID VehicleID, kindID KindID) (IntervalSettings, error) {
	schedulable, err := r.Kinds.IsSchedulable(ctx, kindID)
	if err != nil {
		return NoTracking(), fmt.Errorf("resolve settings: schedulability check: %w", err)
	}
	if !schedulable {
		return NoTracking(), nil
	}

	override, err := r.Source.VehicleOverride(ctx, vehicleID, kindID)
	if err != nil {
		return NoTracking(), fmt.Errorf("resolve settings: vehicle override: %w", err)
	}
	if override != nil {
		return *override, nil
	}

	def, err := r.Source.KindDefault(ctx, kindID)
	if err != nil {
		return NoTracking(), fmt.Errorf("resolve settings: kind default: %w", err)
	}
	if def != nil {
		return *def, nil
	}

	return NoTracking(), nil
}
