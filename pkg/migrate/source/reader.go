// package source
//
// forward-only batched reads from the source database
package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/baderkha/ora2pg/pkg/migrate/table"
)

// ErrColumnMismatch : the source query returned a different number of
// columns than the descriptor lists
var ErrColumnMismatch = errors.New("source column count does not match descriptor")

// Reader : opens one cursor per table
type Reader interface {
	Open(ctx context.Context, d table.Descriptor) (Cursor, error)
}

// Cursor : hands out the rows of one query a batch at a time. Once
// exhausted every call returns an empty batch.
type Cursor interface {
	NextBatch(ctx context.Context) (table.Batch, error)
	Close() error
}

// NewSQLReader : reader over any database/sql query capable handle. Pass a
// *sql.Conn to keep every cursor on the same session.
func NewSQLReader(db table.Queryer, batchSize int) *SQLReader {
	return &SQLReader{source: db, batchSize: batchSize}
}

type SQLReader struct {
	source    table.Queryer
	batchSize int
}

func (r *SQLReader) Open(ctx context.Context, d table.Descriptor) (Cursor, error) {
	if r.batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", r.batchSize)
	}
	rows, err := r.source.QueryContext(ctx, d.SourceQuery)
	if err != nil {
		return nil, err
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, err
	}
	if len(columns) != len(d.Columns) {
		rows.Close()
		return nil, fmt.Errorf("%w : %s selects %d columns, descriptor has %d", ErrColumnMismatch, d.TableName, len(columns), len(d.Columns))
	}
	binary := make([]bool, len(columns))
	if types, err := rows.ColumnTypes(); err == nil {
		for i, ct := range types {
			binary[i] = isBinaryType(ct.DatabaseTypeName())
		}
	}
	scanArgs := make([]any, len(columns))
	for i := range scanArgs {
		scanArgs[i] = new(any)
	}
	return &sqlCursor{
		rows:      rows,
		batchSize: r.batchSize,
		scanArgs:  scanArgs,
		binary:    binary,
	}, nil
}

type sqlCursor struct {
	rows      *sql.Rows
	batchSize int
	scanArgs  []any
	binary    []bool
	done      bool
}

func (c *sqlCursor) NextBatch(ctx context.Context) (table.Batch, error) {
	if c.done {
		return nil, nil
	}
	batch := make(table.Batch, 0, c.batchSize)
	for len(batch) < c.batchSize {
		if !c.rows.Next() {
			c.done = true
			if err := c.rows.Err(); err != nil {
				return nil, err
			}
			break
		}
		if err := c.rows.Scan(c.scanArgs...); err != nil {
			return nil, err
		}
		// scanArgs is reused, so copy the values out
		row := make(table.Row, len(c.scanArgs))
		for i, ptr := range c.scanArgs {
			row[i] = normalize(*(ptr.(*any)), c.binary[i])
		}
		batch = append(batch, row)
	}
	if c.done {
		c.rows.Close()
	}
	return batch, nil
}

func (c *sqlCursor) Close() error {
	c.done = true
	return c.rows.Close()
}

// normalize : text drivers (mysql) hand strings back as []byte, which the
// destination would otherwise bind as bytea
func normalize(v any, binary bool) any {
	if b, ok := v.([]byte); ok && !binary {
		return string(b)
	}
	return v
}

func isBinaryType(name string) bool {
	name = strings.ToUpper(name)
	switch {
	case strings.Contains(name, "BLOB"),
		strings.Contains(name, "BINARY"),
		strings.Contains(name, "RAW"),
		name == "BYTEA",
		name == "BIT",
		name == "GEOMETRY":
		return true
	}
	return false
}
