// Package sqlgen provides JOIN clause generation.
package sqlgen

import (
	"fmt"
	"strings"

	"github.com/satishbabariya/salesreport/query"
)

// Join kinds.
const (
	InnerJoin = "INNER"
	LeftJoin  = "LEFT"
)

// JoinOn is a column equality used as a join predicate.
type JoinOn struct {
	Left  string
	Right string
}

// Join represents a JOIN clause
type Join struct {
	Type  string // "INNER" or "LEFT"
	Table string // Table to join
	Alias string // Table alias
	On    []JoinOn
}

func (j Join) render() (string, error) {
	joinType := strings.ToUpper(j.Type)
	if joinType == "" {
		joinType = InnerJoin
	}
	if joinType != InnerJoin && joinType != LeftJoin {
		return "", query.NewBuildError("unsupported join type: %s", j.Type)
	}
	if len(j.On) == 0 {
		return "", query.NewBuildError("join on %s has no predicate", j.Table)
	}

	joinSQL := fmt.Sprintf("%s JOIN %s", joinType, j.Table)
	if j.Alias != "" {
		joinSQL += " AS " + j.Alias
	}

	preds := make([]string, len(j.On))
	for i, on := range j.On {
		preds[i] = fmt.Sprintf("%s = %s", on.Left, on.Right)
	}
	return joinSQL + " ON " + strings.Join(preds, " AND "), nil
}
