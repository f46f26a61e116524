package source

import (
	"context"
	"database/sql/driver"
	"errors"
	"testing"

	"github.com/baderkha/ora2pg/pkg/migrate/internal/fakesql"
	"github.com/baderkha/ora2pg/pkg/migrate/table"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var departments = table.Descriptor{
	TableName: "departments",
	Columns:   []string{"dept_id", "dept_name"},
}.WithDefaults()

func seed(srv *fakesql.Server, d table.Descriptor, n int) {
	res := &fakesql.Result{Columns: d.Columns}
	for i := 0; i < n; i++ {
		res.Rows = append(res.Rows, []driver.Value{int64(i + 1), "dept"})
	}
	srv.SetResult(d.SourceQuery, res)
}

func drain(t *testing.T, c Cursor) []int {
	t.Helper()
	var sizes []int
	for {
		b, err := c.NextBatch(context.Background())
		require.NoError(t, err)
		if len(b) == 0 {
			return sizes
		}
		sizes = append(sizes, len(b))
	}
}

func TestNextBatchPartitions(t *testing.T) {
	cases := []struct {
		name  string
		rows  int
		batch int
		want  []int
	}{
		{"remainder", 25000, 10000, []int{10000, 10000, 5000}},
		{"exact multiple", 20000, 10000, []int{10000, 10000}},
		{"smaller than batch", 3, 10000, []int{3}},
		{"empty table", 0, 10000, nil},
		{"batch of one", 3, 1, []int{1, 1, 1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := fakesql.New()
			seed(srv, departments, tc.rows)

			c, err := NewSQLReader(srv.DB(), tc.batch).Open(context.Background(), departments)
			require.NoError(t, err)
			defer c.Close()

			assert.Equal(t, tc.want, drain(t, c))
		})
	}
}

func TestNextBatchKeepsReturningEmptyWhenExhausted(t *testing.T) {
	srv := fakesql.New()
	seed(srv, departments, 2)

	c, err := NewSQLReader(srv.DB(), 10).Open(context.Background(), departments)
	require.NoError(t, err)
	assert.Equal(t, []int{2}, drain(t, c))

	b, err := c.NextBatch(context.Background())
	require.NoError(t, err)
	assert.Empty(t, b)
}

func TestNextBatchPreservesFetchOrderAndValues(t *testing.T) {
	srv := fakesql.New()
	seed(srv, departments, 5)

	c, err := NewSQLReader(srv.DB(), 2).Open(context.Background(), departments)
	require.NoError(t, err)

	var ids []any
	for {
		b, err := c.NextBatch(context.Background())
		require.NoError(t, err)
		if len(b) == 0 {
			break
		}
		for _, row := range b {
			require.Len(t, row, 2)
			ids = append(ids, row[0])
		}
	}
	assert.Equal(t, []any{int64(1), int64(2), int64(3), int64(4), int64(5)}, ids)
}

func TestOpenRejectsColumnMismatch(t *testing.T) {
	srv := fakesql.New()
	srv.SetResult(departments.SourceQuery, &fakesql.Result{Columns: []string{"dept_id"}})

	_, err := NewSQLReader(srv.DB(), 10).Open(context.Background(), departments)
	assert.ErrorIs(t, err, ErrColumnMismatch)
}

func TestOpenPropagatesQueryError(t *testing.T) {
	srv := fakesql.New()

	_, err := NewSQLReader(srv.DB(), 10).Open(context.Background(), departments)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no result for query")
}

func TestNextBatchReturnsReadErrorUndecorated(t *testing.T) {
	lost := errors.New("ORA-03113: end-of-file on communication channel")
	srv := fakesql.New()
	res := &fakesql.Result{Columns: departments.Columns, FailAfter: 3, Err: lost}
	for i := 0; i < 10; i++ {
		res.Rows = append(res.Rows, []driver.Value{int64(i), "dept"})
	}
	srv.SetResult(departments.SourceQuery, res)

	c, err := NewSQLReader(srv.DB(), 2).Open(context.Background(), departments)
	require.NoError(t, err)

	b, err := c.NextBatch(context.Background())
	require.NoError(t, err)
	assert.Len(t, b, 2)

	_, err = c.NextBatch(context.Background())
	assert.Equal(t, lost, err)
}

func TestNormalizeTextBytes(t *testing.T) {
	srv := fakesql.New()
	srv.SetResult(departments.SourceQuery, &fakesql.Result{
		Columns: departments.Columns,
		Types:   []string{"BLOB", "VARCHAR"},
		Rows:    [][]driver.Value{{[]byte{0x01, 0x02}, []byte("Sales")}},
	})

	c, err := NewSQLReader(srv.DB(), 10).Open(context.Background(), departments)
	require.NoError(t, err)
	b, err := c.NextBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, b, 1)

	assert.Equal(t, []byte{0x01, 0x02}, b[0][0])
	assert.Equal(t, "Sales", b[0][1])
}

func TestOpenRejectsNonPositiveBatchSize(t *testing.T) {
	_, err := NewSQLReader(fakesql.New().DB(), 0).Open(context.Background(), departments)
	assert.Error(t, err)
}
