// Package builder provides window function building functionality
package builder

import (
	"strings"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// WindowFunction is a window function under construction. Its methods return
// modified copies.
type WindowFunction struct {
	fn  sqlgen.WindowFunction
	err error
}

// RowNumber creates ROW_NUMBER() OVER (...) AS alias.
func RowNumber(alias string) WindowFunction {
	return WindowFunction{fn: sqlgen.WindowFunction{Function: sqlgen.FnRowNumber, Alias: alias}}
}

// Rank creates RANK() OVER (...) AS alias. Ties leave gaps.
func Rank(alias string) WindowFunction {
	return WindowFunction{fn: sqlgen.WindowFunction{Function: sqlgen.FnRank, Alias: alias}}
}

// DenseRank creates DENSE_RANK() OVER (...) AS alias. Ties share a rank and
// the next distinct value gets the following rank.
func DenseRank(alias string) WindowFunction {
	return WindowFunction{fn: sqlgen.WindowFunction{Function: sqlgen.FnDenseRank, Alias: alias}}
}

// Ntile creates NTILE(buckets) OVER (...) AS alias.
func Ntile(buckets int, alias string) WindowFunction {
	return WindowFunction{fn: sqlgen.WindowFunction{Function: sqlgen.FnNtile, N: buckets, Alias: alias}}
}

// Lag creates LAG(expr, offset) OVER (...) AS alias. The first row of each
// partition yields NULL.
func Lag(expr string, offset int, alias string) WindowFunction {
	return WindowFunction{fn: sqlgen.WindowFunction{Function: sqlgen.FnLag, Field: expr, N: offset, Alias: alias}}
}

// Lead creates LEAD(expr, offset) OVER (...) AS alias.
func Lead(expr string, offset int, alias string) WindowFunction {
	return WindowFunction{fn: sqlgen.WindowFunction{Function: sqlgen.FnLead, Field: expr, N: offset, Alias: alias}}
}

// Aggregate creates an aggregate (SUM, AVG, COUNT, MIN, MAX) evaluated over a window.
func Aggregate(function, expr, alias string) WindowFunction {
	return WindowFunction{fn: sqlgen.WindowFunction{Function: strings.ToUpper(function), Field: expr, Alias: alias}}
}

// PartitionBy appends partition columns.
func (w WindowFunction) PartitionBy(columns ...string) WindowFunction {
	if w.err != nil {
		return w
	}
	for _, col := range columns {
		if err := checkIdentifier("partition by", col); err != nil {
			w.err = err
			return w
		}
	}
	w.fn.PartitionBy = append(append([]string(nil), w.fn.PartitionBy...), columns...)
	return w
}

// OrderBy appends a window sort key.
func (w WindowFunction) OrderBy(field, direction string) WindowFunction {
	if w.err != nil {
		return w
	}
	ob, err := orderBy(field, direction)
	if err != nil {
		w.err = err
		return w
	}
	w.fn.OrderBy = append(append([]sqlgen.OrderBy(nil), w.fn.OrderBy...), ob)
	return w
}

// Window adds a window function column.
func (b *Builder) Window(w WindowFunction) *Builder {
	return b.derive(func(nb *Builder) error {
		if w.err != nil {
			return w.err
		}
		if err := checkIdentifier("window alias", w.fn.Alias); err != nil {
			return err
		}
		if w.fn.Field != "" {
			if err := checkExpression("window argument", w.fn.Field); err != nil {
				return err
			}
		}
		if err := w.fn.Validate(); err != nil {
			return err
		}
		for _, existing := range nb.stmt.Windows {
			if existing.Alias == w.fn.Alias {
				return query.NewBuildError("duplicate window alias %s", w.fn.Alias)
			}
		}
		nb.stmt.Windows = append(nb.stmt.Windows, w.fn)
		return nil
	})
}
