package target

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/baderkha/ora2pg/pkg/migrate/table"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
)

var errNotPgx = errors.New("destination connection is not a pgx connection")

// NewWriter : when conn sits on the pgx driver every batch is sent as one
// pgx.Batch, a single round trip. Any other driver (lib/pq, or pgx wrapped
// for query logging) falls back to the prepared statement writer on tx.
// tx must have been begun on conn.
func NewWriter(conn *sql.Conn, tx *sql.Tx) Writer {
	var isPgx bool
	_ = conn.Raw(func(dc any) error {
		_, isPgx = dc.(*stdlib.Conn)
		return nil
	})
	if isPgx {
		return &PgxBatchWriter{conn: conn}
	}
	return NewSQLWriter(tx)
}

// PgxBatchWriter : queues the insert template once per row and sends the
// whole batch in one go. The statements run inside whatever transaction is
// open on conn.
type PgxBatchWriter struct {
	conn *sql.Conn
}

func (w *PgxBatchWriter) WriteBatch(ctx context.Context, d table.Descriptor, batch table.Batch) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	b := &pgx.Batch{}
	for i, row := range batch {
		if len(row) != len(d.Columns) {
			return 0, fmt.Errorf("%w : %s row %d has %d values, expected %d", ErrRowWidth, d.TableName, i, len(row), len(d.Columns))
		}
		b.Queue(d.InsertTemplate, row...)
	}

	var written int
	err := w.conn.Raw(func(dc any) error {
		pc, ok := dc.(*stdlib.Conn)
		if !ok {
			return errNotPgx
		}
		br := pc.Conn().SendBatch(ctx, b)
		for range batch {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return err
			}
			written++
		}
		return br.Close()
	})
	return written, err
}
