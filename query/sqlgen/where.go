// Package sqlgen provides WHERE and HAVING predicate structures.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/salesreport/query"
)

// Predicate operators.
const (
	OpEq        = "="
	OpNotEq     = "!="
	OpLt        = "<"
	OpLte       = "<="
	OpGt        = ">"
	OpGte       = ">="
	OpLike      = "LIKE"
	OpIn        = "IN"
	OpNotIn     = "NOT IN"
	OpBetween   = "BETWEEN"
	OpIsNull    = "IS NULL"
	OpIsNotNull = "IS NOT NULL"
)

// Condition represents a single filter condition. Conditions of one clause are
// joined with AND.
type Condition struct {
	Field    string
	Operator string // "=", "!=", ">", "<", ">=", "<=", "LIKE", "IN", "NOT IN", "BETWEEN", "IS NULL", "IS NOT NULL"
	Value    interface{}
}

// ValidOperator reports whether op is a supported predicate operator.
func ValidOperator(op string) bool {
	switch op {
	case OpEq, OpNotEq, OpLt, OpLte, OpGt, OpGte, OpLike, OpIn, OpNotIn, OpBetween, OpIsNull, OpIsNotNull:
		return true
	}
	return false
}

// Validate checks that the condition's value matches its operator.
func (c Condition) Validate() error {
	switch c.Operator {
	case OpIn, OpNotIn:
		values, ok := c.Value.([]interface{})
		if !ok || len(values) == 0 {
			return query.NewBuildError("%s on %s requires a non-empty value list", c.Operator, c.Field)
		}
	case OpBetween:
		values, ok := c.Value.([]interface{})
		if !ok || len(values) != 2 {
			return query.NewBuildError("BETWEEN on %s requires exactly two bounds", c.Field)
		}
	case OpIsNull, OpIsNotNull:
		if c.Value != nil {
			return query.NewBuildError("%s on %s takes no value", c.Operator, c.Field)
		}
	default:
		if !ValidOperator(c.Operator) {
			return query.NewBuildError("unsupported operator: %s", c.Operator)
		}
		if c.Value == nil {
			return query.NewBuildError("%s on %s requires a value", c.Operator, c.Field)
		}
	}
	return nil
}

func (r *renderer) conditions(conds []Condition) (string, error) {
	clauses := make([]string, 0, len(conds))
	for _, cond := range conds {
		clause, err := r.condition(cond)
		if err != nil {
			return "", err
		}
		clauses = append(clauses, clause)
	}
	return strings.Join(clauses, " AND "), nil
}

func (r *renderer) condition(cond Condition) (string, error) {
	if err := cond.Validate(); err != nil {
		return "", err
	}

	switch cond.Operator {
	case OpIn, OpNotIn:
		values := cond.Value.([]interface{})
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = r.bind(v)
		}
		return fmt.Sprintf("%s %s (%s)", cond.Field, cond.Operator, strings.Join(placeholders, ", ")), nil
	case OpBetween:
		bounds := cond.Value.([]interface{})
		lo := r.bind(bounds[0])
		hi := r.bind(bounds[1])
		return fmt.Sprintf("%s BETWEEN %s AND %s", cond.Field, lo, hi), nil
	case OpIsNull, OpIsNotNull:
		return fmt.Sprintf("%s %s", cond.Field, cond.Operator), nil
	default:
		return fmt.Sprintf("%s %s %s", cond.Field, cond.Operator, r.bind(cond.Value)), nil
	}
}
