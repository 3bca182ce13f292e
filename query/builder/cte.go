// Package builder provides CTE (Common Table Expression) composition.
package builder

import (
	"reflect"
	"sort"

	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

// With adds a named CTE whose body is sub. CTEs declared on sub are hoisted
// into the outer WITH clause at build time.
func (b *Builder) With(name string, sub *Builder) *Builder {
	return b.derive(func(nb *Builder) error {
		if err := checkIdentifier("cte", name); err != nil {
			return err
		}
		if sub == nil {
			return query.NewBuildError("cte %s has no body", name)
		}
		if sub.dialect != nb.dialect {
			return query.NewBuildError("cte %s built for %s, outer query for %s", name, sub.dialect, nb.dialect)
		}
		for _, cte := range nb.ctes {
			if cte.name == name {
				return query.NewBuildError("duplicate cte %s", name)
			}
		}
		nb.ctes = append(nb.ctes, namedCTE{name: name, body: sub})
		return nil
	})
}

// hoist flattens the CTE tree into a single name -> body map.
func (b *Builder) hoist() (map[string]*sqlgen.Statement, error) {
	defs := make(map[string]*sqlgen.Statement)
	var walk func(ctes []namedCTE) error
	walk = func(ctes []namedCTE) error {
		for _, cte := range ctes {
			body := cte.body
			if body.err != nil {
				return body.err
			}
			if body.stmt.Table == "" {
				return query.NewBuildError("cte %s has no source table", cte.name)
			}
			if len(body.stmt.Columns) == 0 && len(body.stmt.Windows) == 0 {
				return query.NewBuildError("cte %s has no columns selected", cte.name)
			}
			if existing, ok := defs[cte.name]; ok {
				if !reflect.DeepEqual(existing, body.stmt) {
					return query.NewBuildError("conflicting definitions for cte %s", cte.name)
				}
				continue
			}
			defs[cte.name] = body.stmt
			if err := walk(body.ctes); err != nil {
				return err
			}
		}
		return nil
	}
	if err := walk(b.ctes); err != nil {
		return nil, err
	}
	return defs, nil
}

// dependencies returns the CTE names referenced by each CTE body.
func dependencies(defs map[string]*sqlgen.Statement) map[string][]string {
	deps := make(map[string][]string, len(defs))
	for name, stmt := range defs {
		seen := make(map[string]bool)
		for _, ref := range stmt.References() {
			if _, ok := defs[ref]; ok && !seen[ref] {
				seen[ref] = true
				deps[name] = append(deps[name], ref)
			}
		}
		sort.Strings(deps[name])
	}
	return deps
}

// orderCTEs returns the CTE names with every dependency before its dependents,
// ties broken by name. A cycle is reported with its reference path.
func orderCTEs(defs map[string]*sqlgen.Statement) ([]string, error) {
	deps := dependencies(defs)
	names := make([]string, 0, len(defs))
	for name := range defs {
		names = append(names, name)
	}
	sort.Strings(names)

	const (
		white = iota
		grey
		black
	)
	color := make(map[string]int, len(names))
	var path []string
	var visit func(name string) error
	visit = func(name string) error {
		color[name] = grey
		path = append(path, name)
		for _, dep := range deps[name] {
			switch color[dep] {
			case grey:
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				cycle := append(append([]string(nil), path[start:]...), dep)
				return &query.CyclicCTEError{Cycle: cycle}
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			}
		}
		path = path[:len(path)-1]
		color[name] = black
		return nil
	}
	for _, name := range names {
		if color[name] == white {
			if err := visit(name); err != nil {
				return nil, err
			}
		}
	}

	// Kahn's algorithm over the now acyclic graph, always taking the
	// smallest ready name.
	remaining := make(map[string]int, len(names))
	dependents := make(map[string][]string)
	for _, name := range names {
		remaining[name] = len(deps[name])
		for _, dep := range deps[name] {
			dependents[dep] = append(dependents[dep], name)
		}
	}
	var ready []string
	for _, name := range names {
		if remaining[name] == 0 {
			ready = append(ready, name)
		}
	}
	order := make([]string, 0, len(names))
	for len(ready) > 0 {
		sort.Strings(ready)
		name := ready[0]
		ready = ready[1:]
		order = append(order, name)
		for _, next := range dependents[name] {
			remaining[next]--
			if remaining[next] == 0 {
				ready = append(ready, next)
			}
		}
	}
	return order, nil
}

// baseTables returns the sorted physical tables read by stmt and its CTEs.
func baseTables(stmt *sqlgen.Statement, defs map[string]*sqlgen.Statement) []string {
	seen := make(map[string]bool)
	collect := func(s *sqlgen.Statement) {
		for _, ref := range s.References() {
			if _, isCTE := defs[ref]; !isCTE {
				seen[ref] = true
			}
		}
	}
	collect(stmt)
	for _, def := range defs {
		collect(def)
	}
	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}
