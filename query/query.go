// Package query provides the shared types of the reporting query layer:
// rows, fingerprints and the storage gateway contract.
package query

import (
	"context"
)

// Row is a single result row keyed by column name.
type Row map[string]interface{}

// Rows is an ordered, materialized result set.
type Rows []Row

// Clone returns a copy of the result set whose rows can be modified without
// affecting the receiver.
func (r Rows) Clone() Rows {
	if r == nil {
		return nil
	}
	out := make(Rows, len(r))
	for i, row := range r {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out[i] = cp
	}
	return out
}

// Fingerprint identifies a built query together with its bound parameters.
type Fingerprint string

// String returns the fingerprint as a hex string.
func (f Fingerprint) String() string {
	return string(f)
}

// Short returns an abbreviated fingerprint for logs.
func (f Fingerprint) Short() string {
	if len(f) > 12 {
		return string(f[:12])
	}
	return string(f)
}

// Gateway executes bound SQL against the relational store.
type Gateway interface {
	// Execute runs sqlText with positional args and returns the materialized rows.
	// Failures are reported as *ExecutionError.
	Execute(ctx context.Context, sqlText string, args []interface{}) (Rows, error)
}

// GatewayFunc adapts a function to the Gateway interface.
type GatewayFunc func(ctx context.Context, sqlText string, args []interface{}) (Rows, error)

// Execute calls f.
func (f GatewayFunc) Execute(ctx context.Context, sqlText string, args []interface{}) (Rows, error) {
	return f(ctx, sqlText, args)
}

// Query represents a built query ready for execution.
type Query struct {
	SQL         string
	Args        []interface{}
	Fingerprint Fingerprint
	// Tables lists the base tables the query reads, used as cache tags.
	Tables []string
}
