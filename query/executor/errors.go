package executor

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"syscall"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"

	"github.com/satishbabariya/salesreport/query"
)

// Classify wraps a driver error in a *query.ExecutionError with its kind.
// nil stays nil and an ExecutionError is returned unchanged.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	var execErr *query.ExecutionError
	if errors.As(err, &execErr) {
		return err
	}
	return query.NewExecutionError(kindOf(err), err)
}

func kindOf(err error) query.ExecutionKind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return postgresKind(pqErr)
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return mysqlKind(myErr)
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return sqliteKind(liteErr)
	}

	var netErr net.Error
	switch {
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.As(err, &netErr):
		return query.KindConnectivity
	}
	return query.KindUnknown
}

// postgresKind maps SQLSTATE classes.
func postgresKind(err *pq.Error) query.ExecutionKind {
	switch err.Code.Class() {
	case "23":
		return query.KindConstraint
	case "08", "57":
		return query.KindConnectivity
	case "42", "22":
		return query.KindDialect
	}
	return query.KindUnknown
}

func mysqlKind(err *mysql.MySQLError) query.ExecutionKind {
	switch err.Number {
	case 1048, 1062, 1216, 1217, 1364, 1451, 1452, 3819:
		return query.KindConstraint
	case 1040, 1045, 1053, 1152, 1158, 1159, 1160, 1161, 2002, 2003, 2006, 2013:
		return query.KindConnectivity
	case 1054, 1064, 1146, 1305, 1582, 1630:
		return query.KindDialect
	}
	return query.KindUnknown
}

func sqliteKind(err sqlite3.Error) query.ExecutionKind {
	switch err.Code {
	case sqlite3.ErrConstraint:
		return query.KindConstraint
	case sqlite3.ErrCantOpen, sqlite3.ErrNotADB, sqlite3.ErrIoErr:
		return query.KindConnectivity
	case sqlite3.ErrError, sqlite3.ErrRange, sqlite3.ErrMismatch:
		return query.KindDialect
	}
	return query.KindUnknown
}
