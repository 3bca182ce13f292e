// Package sqlgen provides window function rendering.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/salesreport/query"
)

// Window function names.
const (
	FnRowNumber = "ROW_NUMBER"
	FnRank      = "RANK"
	FnDenseRank = "DENSE_RANK"
	FnNtile     = "NTILE"
	FnLag       = "LAG"
	FnLead      = "LEAD"
	FnSum       = "SUM"
	FnAvg       = "AVG"
	FnCount     = "COUNT"
	FnMin       = "MIN"
	FnMax       = "MAX"
)

// WindowFunction represents a window function (e.g., DENSE_RANK, NTILE, LAG).
// It renders as FN(...) OVER w_<alias> in the select list and as a named
// window in the WINDOW clause.
type WindowFunction struct {
	Function    string
	Field       string // Argument expression (empty for ROW_NUMBER, RANK, DENSE_RANK, NTILE)
	N           int    // Bucket count for NTILE, offset for LAG/LEAD
	Alias       string
	PartitionBy []string
	OrderBy     []OrderBy
}

func (w WindowFunction) clone() WindowFunction {
	cp := w
	cp.PartitionBy = append([]string(nil), w.PartitionBy...)
	cp.OrderBy = append([]OrderBy(nil), w.OrderBy...)
	return cp
}

// WindowName returns the name of the window this function is evaluated over.
func (w WindowFunction) WindowName() string {
	return "w_" + w.Alias
}

// Validate checks function arity.
func (w WindowFunction) Validate() error {
	switch w.Function {
	case FnRowNumber, FnRank, FnDenseRank:
		if w.Field != "" {
			return query.NewBuildError("%s takes no argument", w.Function)
		}
		if len(w.OrderBy) == 0 {
			return query.NewBuildError("%s %s requires a window ordering", w.Function, w.Alias)
		}
	case FnNtile:
		if w.N <= 0 {
			return query.NewBuildError("NTILE %s requires a positive bucket count", w.Alias)
		}
		if len(w.OrderBy) == 0 {
			return query.NewBuildError("NTILE %s requires a window ordering", w.Alias)
		}
	case FnLag, FnLead:
		if w.Field == "" {
			return query.NewBuildError("%s %s requires an argument", w.Function, w.Alias)
		}
		if w.N <= 0 {
			return query.NewBuildError("%s %s requires a positive offset", w.Function, w.Alias)
		}
		if len(w.OrderBy) == 0 {
			return query.NewBuildError("%s %s requires a window ordering", w.Function, w.Alias)
		}
	case FnSum, FnAvg, FnCount, FnMin, FnMax:
		if w.Field == "" {
			return query.NewBuildError("%s %s requires an argument", w.Function, w.Alias)
		}
	default:
		return query.NewBuildError("unsupported window function: %s", w.Function)
	}
	if w.Alias == "" {
		return query.NewBuildError("window function %s requires an alias", w.Function)
	}
	return nil
}

// selectItem renders the function call for the select list. Bucket counts and
// offsets are structural integers, not predicate values.
func (w WindowFunction) selectItem() (string, error) {
	if err := w.Validate(); err != nil {
		return "", err
	}

	var call string
	switch w.Function {
	case FnRowNumber, FnRank, FnDenseRank:
		call = w.Function + "()"
	case FnNtile:
		call = fmt.Sprintf("NTILE(%d)", w.N)
	case FnLag, FnLead:
		call = fmt.Sprintf("%s(%s, %d)", w.Function, w.Field, w.N)
	default:
		call = fmt.Sprintf("%s(%s)", w.Function, w.Field)
	}
	return fmt.Sprintf("%s OVER %s AS %s", call, w.WindowName(), w.Alias), nil
}

// definition renders the named window for the WINDOW clause.
func (w WindowFunction) definition() string {
	var spec []string
	if len(w.PartitionBy) > 0 {
		spec = append(spec, "PARTITION BY "+strings.Join(w.PartitionBy, ", "))
	}
	if len(w.OrderBy) > 0 {
		spec = append(spec, "ORDER BY "+renderOrderBy(w.OrderBy))
	}
	return fmt.Sprintf("%s AS (%s)", w.WindowName(), strings.Join(spec, " "))
}
