package executor

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/satishbabariya/salesreport/query"
)

// SQLGateway executes bound SQL over a Pool. It implements query.Gateway.
type SQLGateway struct {
	pool      *Pool
	logger    *slog.Logger
	stmtCache map[string]*sql.Stmt
	cacheMu   sync.RWMutex
}

var _ query.Gateway = (*SQLGateway)(nil)

// NewSQLGateway creates a gateway over pool.
func NewSQLGateway(pool *Pool, logger *slog.Logger) *SQLGateway {
	if logger == nil {
		logger = pool.logger
	}
	return &SQLGateway{
		pool:      pool,
		logger:    logger.With("component", "gateway"),
		stmtCache: make(map[string]*sql.Stmt),
	}
}

// Pool returns the pool the gateway runs on.
func (g *SQLGateway) Pool() *Pool {
	return g.pool
}

// getCachedStmt gets a cached prepared statement or creates a new one
func (g *SQLGateway) getCachedStmt(ctx context.Context, sqlText string) (*sql.Stmt, error) {
	g.cacheMu.RLock()
	stmt, ok := g.stmtCache[sqlText]
	g.cacheMu.RUnlock()
	if ok {
		return stmt, nil
	}

	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()
	if stmt, ok := g.stmtCache[sqlText]; ok {
		return stmt, nil
	}
	stmt, err := g.pool.db.PrepareContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("prepare statement: %w", err)
	}
	g.stmtCache[sqlText] = stmt
	return stmt, nil
}

// Execute runs sqlText with args and materializes every row.
func (g *SQLGateway) Execute(ctx context.Context, sqlText string, args []interface{}) (query.Rows, error) {
	start := time.Now()

	stmt, err := g.getCachedStmt(ctx, sqlText)
	if err != nil {
		return nil, Classify(err)
	}

	rows, err := stmt.QueryContext(ctx, args...)
	if err != nil {
		return nil, Classify(fmt.Errorf("run query: %w", err))
	}
	defer rows.Close()

	result, err := scanRows(rows)
	if err != nil {
		return nil, Classify(err)
	}

	g.logger.Debug("query executed", "rows", len(result), "args", len(args), "duration", time.Since(start))
	return result, nil
}

// ClearStmtCache closes and forgets every prepared statement.
func (g *SQLGateway) ClearStmtCache() {
	g.cacheMu.Lock()
	defer g.cacheMu.Unlock()

	for _, stmt := range g.stmtCache {
		_ = stmt.Close()
	}
	g.stmtCache = make(map[string]*sql.Stmt)
}

// Close releases prepared statements and the pool.
func (g *SQLGateway) Close() error {
	g.ClearStmtCache()
	return g.pool.Close()
}

// scanRows reads every row into a map keyed by column name. []byte values
// become strings.
func scanRows(rows *sql.Rows) (query.Rows, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("read columns: %w", err)
	}

	result := query.Rows{}
	for rows.Next() {
		values := make([]interface{}, len(columns))
		valuePtrs := make([]interface{}, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}

		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		row := make(query.Row, len(columns))
		for i, col := range columns {
			if b, ok := values[i].([]byte); ok {
				row[col] = string(b)
			} else {
				row[col] = values[i]
			}
		}
		result = append(result, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return result, nil
}
