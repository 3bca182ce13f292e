package executor

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/satishbabariya/salesreport/internal/debug"
	"github.com/satishbabariya/salesreport/query"
	"github.com/satishbabariya/salesreport/query/sqlgen"
)

func openMemory(t *testing.T) *SQLGateway {
	t.Helper()
	cfg := PoolConfig{MaxOpenConns: 1, MaxIdleConns: 1}
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	pool, err := OpenPool(context.Background(), sqlgen.SQLite, dsn, cfg, debug.Discard())
	require.NoError(t, err)

	gw := NewSQLGateway(pool, nil)
	t.Cleanup(func() { _ = gw.Close() })

	_, err = pool.Exec(context.Background(), `CREATE TABLE categories (
		category_id INTEGER PRIMARY KEY,
		category_name TEXT NOT NULL UNIQUE
	)`)
	require.NoError(t, err)
	return gw
}

func TestSQLGateway_Execute(t *testing.T) {
	gw := openMemory(t)
	ctx := context.Background()

	_, err := gw.Pool().Exec(ctx, "INSERT INTO categories (category_id, category_name) VALUES (?, ?), (?, ?)", 1, "Produce", 2, "Dairy")
	require.NoError(t, err)

	rows, err := gw.Execute(ctx, "SELECT category_id, category_name FROM categories WHERE category_id > ? ORDER BY category_id", []interface{}{0})
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(1), rows[0]["category_id"])
	assert.Equal(t, "Produce", rows[0]["category_name"])
	assert.Equal(t, "Dairy", rows[1]["category_name"])

	// Second call reuses the prepared statement.
	rows, err = gw.Execute(ctx, "SELECT category_id, category_name FROM categories WHERE category_id > ? ORDER BY category_id", []interface{}{1})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
	assert.Len(t, gw.stmtCache, 1)
}

func TestSQLGateway_EmptyResult(t *testing.T) {
	gw := openMemory(t)

	rows, err := gw.Execute(context.Background(), "SELECT category_id FROM categories", nil)
	require.NoError(t, err)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestSQLGateway_DialectError(t *testing.T) {
	gw := openMemory(t)

	_, err := gw.Execute(context.Background(), "SELECT missing_column FROM categories", nil)
	require.Error(t, err)

	var execErr *query.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, query.KindDialect, execErr.Kind)
	assert.ErrorIs(t, err, query.ErrExecution)
}

func TestSQLGateway_ConstraintError(t *testing.T) {
	gw := openMemory(t)
	ctx := context.Background()

	_, err := gw.Pool().Exec(ctx, "INSERT INTO categories (category_id, category_name) VALUES (?, ?)", 1, "Produce")
	require.NoError(t, err)
	_, err = gw.Pool().Exec(ctx, "INSERT INTO categories (category_id, category_name) VALUES (?, ?)", 2, "Produce")
	require.Error(t, err)

	var execErr *query.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, query.KindConstraint, execErr.Kind)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want query.ExecutionKind
	}{
		{"postgres unique violation", &pq.Error{Code: "23505"}, query.KindConstraint},
		{"postgres connection failure", &pq.Error{Code: "08006"}, query.KindConnectivity},
		{"postgres syntax error", &pq.Error{Code: "42601"}, query.KindDialect},
		{"postgres other", &pq.Error{Code: "53100"}, query.KindUnknown},
		{"mysql duplicate entry", &mysql.MySQLError{Number: 1062}, query.KindConstraint},
		{"mysql gone away", &mysql.MySQLError{Number: 2006}, query.KindConnectivity},
		{"mysql unknown column", &mysql.MySQLError{Number: 1054}, query.KindDialect},
		{"wrapped bad conn", fmt.Errorf("run query: %w", driver.ErrBadConn), query.KindConnectivity},
		{"invalid mysql conn", mysql.ErrInvalidConn, query.KindConnectivity},
		{"anything else", errors.New("boom"), query.KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Classify(tt.err)
			var execErr *query.ExecutionError
			require.ErrorAs(t, err, &execErr)
			assert.Equal(t, tt.want, execErr.Kind)
			assert.ErrorIs(t, err, tt.err)
		})
	}
}

func TestClassify_KeepsExecutionError(t *testing.T) {
	original := query.NewExecutionError(query.KindDialect, errors.New("bad"))
	assert.Same(t, original, Classify(original))
	assert.NoError(t, Classify(nil))
}

func TestDefaultPoolConfig(t *testing.T) {
	cfg := DefaultPoolConfig()
	assert.Equal(t, 10, cfg.MaxOpenConns)
	assert.Equal(t, 5, cfg.MaxIdleConns)
}
