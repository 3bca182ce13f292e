// Package sqlgen renders analytical SELECT statements for different database providers.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/salesreport/query"
)

// Dialect identifies the SQL flavour a statement is rendered for.
type Dialect string

const (
	// SQLite dialect.
	SQLite Dialect = "sqlite"
	// PostgreSQL dialect.
	PostgreSQL Dialect = "postgres"
	// MySQL dialect.
	MySQL Dialect = "mysql"
)

// ParseDialect maps a provider name to a Dialect.
func ParseDialect(provider string) (Dialect, error) {
	switch strings.ToLower(provider) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgresql", "postgres", "pg":
		return PostgreSQL, nil
	case "mysql", "mariadb":
		return MySQL, nil
	default:
		return "", fmt.Errorf("unsupported provider: %s", provider)
	}
}

// DriverName returns the database/sql driver name registered for the dialect.
func (d Dialect) DriverName() string {
	switch d {
	case PostgreSQL:
		return "postgres"
	case MySQL:
		return "mysql"
	default:
		return "sqlite3"
	}
}

// OrderBy represents an ORDER BY item
type OrderBy struct {
	Field     string
	Direction string // "ASC" or "DESC"
}

// CTE represents a named common table expression
type CTE struct {
	Name      string
	Statement *Statement
}

// Statement is the structured form of a SELECT with its clauses.
type Statement struct {
	CTEs    []CTE
	Columns []string
	Windows []WindowFunction
	Table   string
	Alias   string
	Joins   []Join
	Where   []Condition
	GroupBy []string
	Having  []Condition
	OrderBy []OrderBy
	Limit   *int
	Offset  *int
}

// Clone returns a deep copy of the statement.
func (s *Statement) Clone() *Statement {
	if s == nil {
		return nil
	}
	cp := *s
	cp.CTEs = nil
	for _, cte := range s.CTEs {
		cp.CTEs = append(cp.CTEs, CTE{Name: cte.Name, Statement: cte.Statement.Clone()})
	}
	cp.Columns = append([]string(nil), s.Columns...)
	cp.Windows = nil
	for _, w := range s.Windows {
		cp.Windows = append(cp.Windows, w.clone())
	}
	cp.Joins = nil
	for _, j := range s.Joins {
		j.On = append([]JoinOn(nil), j.On...)
		cp.Joins = append(cp.Joins, j)
	}
	cp.Where = append([]Condition(nil), s.Where...)
	cp.GroupBy = append([]string(nil), s.GroupBy...)
	cp.Having = append([]Condition(nil), s.Having...)
	cp.OrderBy = append([]OrderBy(nil), s.OrderBy...)
	if s.Limit != nil {
		v := *s.Limit
		cp.Limit = &v
	}
	if s.Offset != nil {
		v := *s.Offset
		cp.Offset = &v
	}
	return &cp
}

// References returns the table names read by the statement body (FROM and JOIN),
// excluding the statement's own CTEs.
func (s *Statement) References() []string {
	refs := []string{s.Table}
	for _, j := range s.Joins {
		refs = append(refs, j.Table)
	}
	return refs
}

// Render renders stmt for dialect d. Every value-bearing predicate is emitted as a
// positional placeholder and its value appended to the returned args.
func Render(d Dialect, stmt *Statement) (string, []interface{}, error) {
	r := &renderer{dialect: d}
	sql, err := r.statement(stmt, true)
	if err != nil {
		return "", nil, err
	}
	return sql, r.args, nil
}

// renderer accumulates bound arguments while walking a statement.
type renderer struct {
	dialect Dialect
	args    []interface{}
}

// bind records v and returns the placeholder for it.
func (r *renderer) bind(v interface{}) string {
	r.args = append(r.args, v)
	if r.dialect == PostgreSQL {
		return fmt.Sprintf("$%d", len(r.args))
	}
	return "?"
}

func (r *renderer) statement(stmt *Statement, top bool) (string, error) {
	var parts []string

	// WITH
	if len(stmt.CTEs) > 0 {
		if !top {
			return "", query.NewBuildError("nested WITH inside CTE body")
		}
		defs := make([]string, len(stmt.CTEs))
		for i, cte := range stmt.CTEs {
			body, err := r.statement(cte.Statement, false)
			if err != nil {
				return "", err
			}
			defs[i] = fmt.Sprintf("%s AS (%s)", cte.Name, body)
		}
		parts = append(parts, "WITH "+strings.Join(defs, ", "))
	}

	// SELECT columns, then window function columns
	items := append([]string(nil), stmt.Columns...)
	for _, w := range stmt.Windows {
		item, err := w.selectItem()
		if err != nil {
			return "", err
		}
		items = append(items, item)
	}
	if len(items) == 0 {
		return "", query.NewBuildError("no columns selected")
	}
	parts = append(parts, "SELECT "+strings.Join(items, ", "))

	// FROM
	if stmt.Table == "" {
		return "", query.NewBuildError("no source table")
	}
	from := "FROM " + stmt.Table
	if stmt.Alias != "" {
		from += " AS " + stmt.Alias
	}
	parts = append(parts, from)

	// JOIN
	for _, j := range stmt.Joins {
		joinSQL, err := j.render()
		if err != nil {
			return "", err
		}
		parts = append(parts, joinSQL)
	}

	// WHERE
	if len(stmt.Where) > 0 {
		whereSQL, err := r.conditions(stmt.Where)
		if err != nil {
			return "", err
		}
		parts = append(parts, "WHERE "+whereSQL)
	}

	// GROUP BY
	if len(stmt.GroupBy) > 0 {
		parts = append(parts, "GROUP BY "+strings.Join(stmt.GroupBy, ", "))
	}

	// HAVING
	if len(stmt.Having) > 0 {
		havingSQL, err := r.conditions(stmt.Having)
		if err != nil {
			return "", err
		}
		parts = append(parts, "HAVING "+havingSQL)
	}

	// WINDOW
	if len(stmt.Windows) > 0 {
		defs := make([]string, len(stmt.Windows))
		for i, w := range stmt.Windows {
			defs[i] = w.definition()
		}
		parts = append(parts, "WINDOW "+strings.Join(defs, ", "))
	}

	// ORDER BY
	if len(stmt.OrderBy) > 0 {
		parts = append(parts, "ORDER BY "+renderOrderBy(stmt.OrderBy))
	}

	// LIMIT
	if stmt.Limit != nil {
		parts = append(parts, "LIMIT "+r.bind(*stmt.Limit))
	}

	// OFFSET
	if stmt.Offset != nil {
		if stmt.Limit == nil && r.dialect == MySQL {
			// MySQL requires LIMIT when using OFFSET
			parts = append(parts, "LIMIT 18446744073709551615")
		}
		parts = append(parts, "OFFSET "+r.bind(*stmt.Offset))
	}

	return strings.Join(parts, " "), nil
}

func renderOrderBy(orderBy []OrderBy) string {
	items := make([]string, len(orderBy))
	for i, ob := range orderBy {
		direction := "ASC"
		if strings.EqualFold(ob.Direction, "DESC") {
			direction = "DESC"
		}
		items[i] = fmt.Sprintf("%s %s", ob.Field, direction)
	}
	return strings.Join(items, ", ")
}
