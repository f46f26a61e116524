// package target
//
// batch inserts into the destination inside the run's transaction
package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/baderkha/ora2pg/pkg/migrate/table"
)

// ErrRowWidth : a row does not have one value per descriptor column
var ErrRowWidth = errors.New("row width does not match descriptor columns")

// Preparer : *sql.Tx, or *sql.DB / *sql.Conn when no transaction is wanted
type Preparer interface {
	PrepareContext(ctx context.Context, query string) (*sql.Stmt, error)
}

// Writer : writes one batch, returning how many rows went in
type Writer interface {
	WriteBatch(ctx context.Context, d table.Descriptor, batch table.Batch) (int, error)
}

func NewSQLWriter(tx Preparer) *SQLWriter {
	return &SQLWriter{tx: tx}
}

// SQLWriter : prepares the descriptor's insert template once per batch and
// executes it for every row, binding values positionally
type SQLWriter struct {
	tx Preparer
}

func (w *SQLWriter) WriteBatch(ctx context.Context, d table.Descriptor, batch table.Batch) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	stmt, err := w.tx.PrepareContext(ctx, d.InsertTemplate)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, row := range batch {
		if len(row) != len(d.Columns) {
			return i, fmt.Errorf("%w : %s row %d has %d values, expected %d", ErrRowWidth, d.TableName, i, len(row), len(d.Columns))
		}
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return i, err
		}
	}
	return len(batch), nil
}
