package state

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
)

// DefaultTable : audit table expected on the destination
const DefaultTable = "migration_logs"

// Executor : *sql.DB and *sql.Tx both implement it
type Executor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLLogger : writes entries into table (optionally schema qualified)
// through exec
func NewSQLLogger(exec Executor, table string) *SQLLogger {
	if table == "" {
		table = DefaultTable
	}
	ident := pgx.Identifier(strings.Split(table, ".")).Sanitize()
	return &SQLLogger{
		exec:  exec,
		query: fmt.Sprintf("INSERT INTO %s (table_name, status, message) VALUES ($1, $2, $3)", ident),
	}
}

type SQLLogger struct {
	exec  Executor
	query string
}

func (l *SQLLogger) Record(ctx context.Context, tableName string, status Status, message string) error {
	_, err := l.exec.ExecContext(ctx, l.query, tableName, string(status), message)
	return err
}

// Split : sends success entries to onSuccess and failure entries to onFailure
func Split(onSuccess Logger, onFailure Logger) Logger {
	return splitLogger{success: onSuccess, failure: onFailure}
}

type splitLogger struct {
	success Logger
	failure Logger
}

func (s splitLogger) Record(ctx context.Context, tableName string, status Status, message string) error {
	if status == Failure {
		return s.failure.Record(ctx, tableName, status, message)
	}
	return s.success.Record(ctx, tableName, status, message)
}

// ForRun : builds the audit logger for one run. tx is the run transaction,
// pool the destination pool the independent connection is taken from.
func ForRun(mode AuditMode, tx Executor, pool Executor, table string) Logger {
	inRun := NewSQLLogger(tx, table)
	if m, err := ParseAuditMode(string(mode)); err == nil && m == Shared {
		return inRun
	}
	return Split(inRun, NewSQLLogger(pool, table))
}
