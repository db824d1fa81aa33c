/*
Package units converts distances between stored metric values and
caller-facing display units.

PURPOSE:
  The engine stores every distance in kilometers; callers see their
  preferred unit. Conversion uses decimal arithmetic to avoid
  floating-point drift, and rounds per the target unit's display
  convention:

    km -> whole kilometers
    mi -> one decimal place

  Values converted TO metric keep three decimal places so round-trips
  through a display unit stay stable.
*/
package units

import (
	"github.com/shopspring/decimal"

	"github.com/warp/maintenance-engine/interval"
)

var kmPerMile = decimal.RequireFromString("1.609344")

const metricPrecision = 3

// Converter implements interval.UnitConverter.
type Converter struct{}

func NewConverter() Converter {
	return Converter{}
}

// ToMetric converts a value in the given unit to kilometers.
func (Converter) ToMetric(value decimal.Decimal, unit interval.DistanceUnit) decimal.Decimal {
	switch unit {
	case interval.UnitMiles:
		return value.Mul(kmPerMile).Round(metricPrecision)
	default:
		return value
	}
}

// FromMetric converts kilometers into the given unit, rounded per that
// unit's display convention.
func (Converter) FromMetric(km decimal.Decimal, unit interval.DistanceUnit) decimal.Decimal {
	switch unit {
	case interval.UnitMiles:
		return km.Div(kmPerMile).Round(1)
	default:
		return km.Round(0)
	}
}

// Valid reports whether the unit is supported.
func Valid(unit interval.DistanceUnit) bool {
	return unit == interval.UnitKilometers || unit == interval.UnitMiles
}
