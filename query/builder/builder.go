// Package builder provides an immutable fluent API that assembles analytical
// SELECT statements into dialect SQL, positional arguments and a fingerprint.
package builder

import (
	"regexp"
	"strings"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// Sort directions.
const (
	Asc  = "ASC"
	Desc = "DESC"
)

// ErrBuilderSealed is carried by builders derived from a built or invalid builder.
var ErrBuilderSealed = &query.BuildError{Reason: "clause added to a finalized builder"}

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)
	aggregatePattern  = regexp.MustCompile(`^[A-Z_]+\([A-Za-z0-9_.*+\-/ ,()]*\)$`)
)

type state int

const (
	collecting state = iota
	built
	invalid
)

type namedCTE struct {
	name string
	body *Builder
}

// Builder collects the clauses of one SELECT statement. Clause methods never
// modify the receiver; each returns a new Builder. A Builder belongs to a
// single goroutine.
type Builder struct {
	dialect sqlgen.Dialect
	stmt    *sqlgen.Statement
	ctes    []namedCTE
	state   state
	err     error
	result  *query.Query
}

// New creates an empty builder for dialect.
func New(dialect sqlgen.Dialect) *Builder {
	return &Builder{
		dialect: dialect,
		stmt:    &sqlgen.Statement{},
	}
}

// Dialect returns the dialect the builder renders for.
func (b *Builder) Dialect() sqlgen.Dialect {
	return b.dialect
}

// Err returns the first clause error recorded on the builder, if any.
func (b *Builder) Err() error {
	return b.err
}

// derive applies fn to a copy of b. A clause error is kept on the copy and
// reported by Build.
func (b *Builder) derive(fn func(nb *Builder) error) *Builder {
	if b.state != collecting {
		return &Builder{dialect: b.dialect, stmt: &sqlgen.Statement{}, err: ErrBuilderSealed}
	}
	if b.err != nil {
		return b
	}
	nb := &Builder{
		dialect: b.dialect,
		stmt:    b.stmt.Clone(),
		ctes:    append([]namedCTE(nil), b.ctes...),
	}
	if err := fn(nb); err != nil {
		nb.err = err
	}
	return nb
}

// Select appends projection expressions.
func (b *Builder) Select(columns ...string) *Builder {
	return b.derive(func(nb *Builder) error {
		for _, col := range columns {
			if err := checkExpression("select", col); err != nil {
				return err
			}
		}
		nb.stmt.Columns = append(nb.stmt.Columns, columns...)
		return nil
	})
}

// From sets the source table.
func (b *Builder) From(table string) *Builder {
	return b.FromAs(table, "")
}

// FromAs sets the source table with an alias.
func (b *Builder) FromAs(table, alias string) *Builder {
	return b.derive(func(nb *Builder) error {
		if err := checkIdentifier("table", table); err != nil {
			return err
		}
		if alias != "" {
			if err := checkIdentifier("alias", alias); err != nil {
				return err
			}
		}
		nb.stmt.Table = table
		nb.stmt.Alias = alias
		return nil
	})
}

// On returns a column equality join predicate.
func On(left, right string) sqlgen.JoinOn {
	return sqlgen.JoinOn{Left: left, Right: right}
}

// Join adds an INNER JOIN.
func (b *Builder) Join(table, alias string, on ...sqlgen.JoinOn) *Builder {
	return b.join(sqlgen.InnerJoin, table, alias, on)
}

// LeftJoin adds a LEFT JOIN.
func (b *Builder) LeftJoin(table, alias string, on ...sqlgen.JoinOn) *Builder {
	return b.join(sqlgen.LeftJoin, table, alias, on)
}

func (b *Builder) join(kind, table, alias string, on []sqlgen.JoinOn) *Builder {
	return b.derive(func(nb *Builder) error {
		if err := checkIdentifier("join table", table); err != nil {
			return err
		}
		if alias != "" {
			if err := checkIdentifier("join alias", alias); err != nil {
				return err
			}
		}
		if len(on) == 0 {
			return query.NewBuildError("join on %s has no predicate", table)
		}
		for _, pred := range on {
			if err := checkIdentifier("join column", pred.Left); err != nil {
				return err
			}
			if err := checkIdentifier("join column", pred.Right); err != nil {
				return err
			}
		}
		nb.stmt.Joins = append(nb.stmt.Joins, sqlgen.Join{
			Type:  kind,
			Table: table,
			Alias: alias,
			On:    append([]sqlgen.JoinOn(nil), on...),
		})
		return nil
	})
}

// Where adds a predicate on field. The value is always bound.
func (b *Builder) Where(field, operator string, value interface{}) *Builder {
	return b.derive(func(nb *Builder) error {
		if err := checkIdentifier("where field", field); err != nil {
			return err
		}
		cond := sqlgen.Condition{Field: field, Operator: strings.ToUpper(operator), Value: value}
		if err := cond.Validate(); err != nil {
			return err
		}
		nb.stmt.Where = append(nb.stmt.Where, cond)
		return nil
	})
}

// WhereIn adds field IN (values...).
func (b *Builder) WhereIn(field string, values ...interface{}) *Builder {
	return b.Where(field, sqlgen.OpIn, values)
}

// WhereBetween adds field BETWEEN lo AND hi.
func (b *Builder) WhereBetween(field string, lo, hi interface{}) *Builder {
	return b.Where(field, sqlgen.OpBetween, []interface{}{lo, hi})
}

// WhereNull adds field IS NULL.
func (b *Builder) WhereNull(field string) *Builder {
	return b.Where(field, sqlgen.OpIsNull, nil)
}

// WhereNotNull adds field IS NOT NULL.
func (b *Builder) WhereNotNull(field string) *Builder {
	return b.Where(field, sqlgen.OpIsNotNull, nil)
}

// GroupBy appends grouping expressions.
func (b *Builder) GroupBy(exprs ...string) *Builder {
	return b.derive(func(nb *Builder) error {
		for _, expr := range exprs {
			if err := checkExpression("group by", expr); err != nil {
				return err
			}
		}
		nb.stmt.GroupBy = append(nb.stmt.GroupBy, exprs...)
		return nil
	})
}

// Having adds a predicate on a grouped column or an aggregate call such as
// SUM(s.quantity).
func (b *Builder) Having(expr, operator string, value interface{}) *Builder {
	return b.derive(func(nb *Builder) error {
		if !identifierPattern.MatchString(expr) && !aggregatePattern.MatchString(expr) {
			return query.NewBuildError("invalid having expression %q", expr)
		}
		cond := sqlgen.Condition{Field: expr, Operator: strings.ToUpper(operator), Value: value}
		if err := cond.Validate(); err != nil {
			return err
		}
		nb.stmt.Having = append(nb.stmt.Having, cond)
		return nil
	})
}

// OrderBy appends a sort key. An empty direction sorts ascending.
func (b *Builder) OrderBy(field, direction string) *Builder {
	return b.derive(func(nb *Builder) error {
		ob, err := orderBy(field, direction)
		if err != nil {
			return err
		}
		nb.stmt.OrderBy = append(nb.stmt.OrderBy, ob)
		return nil
	})
}

// Limit sets the row limit. The value is bound.
func (b *Builder) Limit(n int) *Builder {
	return b.derive(func(nb *Builder) error {
		if n < 0 {
			return query.NewBuildError("negative limit %d", n)
		}
		nb.stmt.Limit = &n
		return nil
	})
}

// Offset sets the row offset. The value is bound.
func (b *Builder) Offset(n int) *Builder {
	return b.derive(func(nb *Builder) error {
		if n < 0 {
			return query.NewBuildError("negative offset %d", n)
		}
		nb.stmt.Offset = &n
		return nil
	})
}

// Build finalizes the builder. On success the builder is sealed and later
// calls return the same query; on failure it is invalid and later calls
// return the same error.
func (b *Builder) Build() (*query.Query, error) {
	switch b.state {
	case built:
		return copyQuery(b.result), nil
	case invalid:
		return nil, b.err
	}

	q, err := b.compile()
	if err != nil {
		b.state = invalid
		b.err = err
		return nil, err
	}
	b.state = built
	b.result = q
	return copyQuery(q), nil
}

func (b *Builder) compile() (*query.Query, error) {
	if b.err != nil {
		return nil, b.err
	}
	if b.stmt.Table == "" {
		return nil, query.NewBuildError("no source table")
	}
	if len(b.stmt.Columns) == 0 && len(b.stmt.Windows) == 0 {
		return nil, query.NewBuildError("no columns selected")
	}

	defs, err := b.hoist()
	if err != nil {
		return nil, err
	}
	order, err := orderCTEs(defs)
	if err != nil {
		return nil, err
	}

	stmt := canonical(b.stmt)
	stmt.CTEs = make([]sqlgen.CTE, len(order))
	for i, name := range order {
		stmt.CTEs[i] = sqlgen.CTE{Name: name, Statement: canonical(defs[name])}
	}

	sqlText, args, err := sqlgen.Render(b.dialect, stmt)
	if err != nil {
		return nil, err
	}

	return &query.Query{
		SQL:         sqlText,
		Args:        args,
		Fingerprint: Fingerprint(b.dialect, sqlText, args),
		Tables:      baseTables(stmt, defs),
	}, nil
}

func copyQuery(q *query.Query) *query.Query {
	cp := *q
	cp.Args = append([]interface{}(nil), q.Args...)
	cp.Tables = append([]string(nil), q.Tables...)
	return &cp
}

func orderBy(field, direction string) (sqlgen.OrderBy, error) {
	if err := checkIdentifier("order by", field); err != nil {
		return sqlgen.OrderBy{}, err
	}
	switch dir := strings.ToUpper(direction); dir {
	case "", Asc:
		return sqlgen.OrderBy{Field: field, Direction: Asc}, nil
	case Desc:
		return sqlgen.OrderBy{Field: field, Direction: Desc}, nil
	default:
		return sqlgen.OrderBy{}, query.NewBuildError("invalid sort direction %q", direction)
	}
}

func checkIdentifier(kind, name string) error {
	if !identifierPattern.MatchString(name) {
		return query.NewBuildError("invalid %s identifier %q", kind, name)
	}
	return nil
}

// checkExpression rejects statement terminators and comments in projection
// and grouping expressions.
func checkExpression(kind, expr string) error {
	if strings.TrimSpace(expr) == "" {
		return query.NewBuildError("empty %s expression", kind)
	}
	if strings.Contains(expr, ";") || strings.Contains(expr, "--") || strings.Contains(expr, "/*") {
		return query.NewBuildError("invalid %s expression %q", kind, expr)
	}
	return nil
}
