package target

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/baderkha/ora2pg/pkg/migrate/internal/fakesql"
	"github.com/baderkha/ora2pg/pkg/migrate/table"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var employees = table.Descriptor{
	TableName: "employees",
	Columns:   []string{"emp_id", "first_name", "dept_id"},
}.WithDefaults()

func batchOf(n int) table.Batch {
	b := make(table.Batch, n)
	for i := range b {
		b[i] = table.Row{int64(i + 1), fmt.Sprintf("emp-%d", i+1), int64(1)}
	}
	return b
}

func TestWriteBatchInsertsEveryRowInTx(t *testing.T) {
	srv := fakesql.New()
	db := srv.DB()
	tx, err := db.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	n, err := NewSQLWriter(tx).WriteBatch(context.Background(), employees, batchOf(3))
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Empty(t, srv.Rows("employees"), "rows stay invisible until commit")

	require.NoError(t, tx.Commit())
	rows := srv.Rows("employees")
	require.Len(t, rows, 3)
	assert.Equal(t, []driver.Value{int64(2), "emp-2", int64(1)}, rows[1])
}

func TestWriteBatchEmptyIsNoop(t *testing.T) {
	srv := fakesql.New()
	n, err := NewSQLWriter(srv.DB()).WriteBatch(context.Background(), employees, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, srv.Executed())
}

func TestWriteBatchStopsOnFirstError(t *testing.T) {
	dup := &pgconn.PgError{Code: "23505", Message: `duplicate key value violates unique constraint "employees_pkey"`}
	srv := fakesql.New()
	srv.SetExecHook(func(query string, args []driver.Value) error {
		if args[0] == int64(2) {
			return dup
		}
		return nil
	})

	n, err := NewSQLWriter(srv.DB()).WriteBatch(context.Background(), employees, batchOf(3))
	assert.Equal(t, 1, n)
	assert.True(t, errors.Is(err, dup))
	assert.Len(t, srv.Executed(), 1)
}

func TestWriteBatchRejectsShortRow(t *testing.T) {
	srv := fakesql.New()
	_, err := NewSQLWriter(srv.DB()).WriteBatch(context.Background(), employees, table.Batch{{int64(1)}})
	assert.ErrorIs(t, err, ErrRowWidth)
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(&pgconn.PgError{Code: "23505"}))
	assert.True(t, IsUniqueViolation(fmt.Errorf("employees : %w", &pq.Error{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("connection reset by peer")))
	assert.False(t, IsUniqueViolation(nil))
}

func TestNewWriterFallsBackOffPgx(t *testing.T) {
	srv := fakesql.New()
	conn, err := srv.DB().Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()
	tx, err := conn.BeginTx(context.Background(), nil)
	require.NoError(t, err)

	w := NewWriter(conn, tx)
	require.IsType(t, &SQLWriter{}, w)

	n, err := w.WriteBatch(context.Background(), employees, batchOf(2))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, tx.Commit())
	assert.Len(t, srv.Rows("employees"), 2)
}

func TestPgxBatchWriterRejectsOtherDrivers(t *testing.T) {
	srv := fakesql.New()
	conn, err := srv.DB().Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	n, err := (&PgxBatchWriter{conn: conn}).WriteBatch(context.Background(), employees, batchOf(2))
	assert.Zero(t, n)
	assert.ErrorIs(t, err, errNotPgx)
	assert.Empty(t, srv.Executed())
}

func TestPgxBatchWriterChecksRowWidth(t *testing.T) {
	srv := fakesql.New()
	conn, err := srv.DB().Conn(context.Background())
	require.NoError(t, err)
	defer conn.Close()

	batch := batchOf(2)
	batch[1] = batch[1][:2]
	_, err = (&PgxBatchWriter{conn: conn}).WriteBatch(context.Background(), employees, batch)
	assert.ErrorIs(t, err, ErrRowWidth)
}
