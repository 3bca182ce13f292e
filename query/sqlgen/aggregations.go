// Package sqlgen provides aggregate and date expression helpers.
package sqlgen

import (
	"fmt"
)

// Grain is the bucket size of a time period.
type Grain string

const (
	// Day buckets periods by calendar day.
	Day Grain = "day"
	// Month buckets periods by calendar month.
	Month Grain = "month"
	// Year buckets periods by calendar year.
	Year Grain = "year"
)

// ParseGrain maps a grain name to a Grain.
func ParseGrain(s string) (Grain, error) {
	switch Grain(s) {
	case Day, Month, Year:
		return Grain(s), nil
	default:
		return "", fmt.Errorf("unsupported period grain: %s", s)
	}
}

// Sum returns SUM(expr).
func Sum(expr string) string {
	return fmt.Sprintf("SUM(%s)", expr)
}

// Count returns COUNT(expr), or COUNT(*) for an empty expr.
func Count(expr string) string {
	if expr == "" {
		expr = "*"
	}
	return fmt.Sprintf("COUNT(%s)", expr)
}

// Round returns expr rounded to places decimal digits. PostgreSQL only
// rounds numerics to a scale, so floats are cast first.
func (d Dialect) Round(expr string, places int) string {
	if d == PostgreSQL {
		return fmt.Sprintf("ROUND(CAST(%s AS NUMERIC), %d)", expr, places)
	}
	return fmt.Sprintf("ROUND(%s, %d)", expr, places)
}

// As returns "expr AS alias".
func As(expr, alias string) string {
	return fmt.Sprintf("%s AS %s", expr, alias)
}

// Period returns an expression truncating column to grain as sortable text
// (YYYY, YYYY-MM or YYYY-MM-DD).
func (d Dialect) Period(column string, grain Grain) string {
	switch d {
	case PostgreSQL:
		return fmt.Sprintf("to_char(%s, '%s')", column, postgresPeriodFormat(grain))
	case MySQL:
		return fmt.Sprintf("DATE_FORMAT(%s, '%s')", column, strftimePeriodFormat(grain))
	default:
		return fmt.Sprintf("strftime('%s', %s)", strftimePeriodFormat(grain), column)
	}
}

func strftimePeriodFormat(grain Grain) string {
	switch grain {
	case Year:
		return "%Y"
	case Day:
		return "%Y-%m-%d"
	default:
		return "%Y-%m"
	}
}

func postgresPeriodFormat(grain Grain) string {
	switch grain {
	case Year:
		return "YYYY"
	case Day:
		return "YYYY-MM-DD"
	default:
		return "YYYY-MM"
	}
}
