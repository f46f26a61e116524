package table

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Queryer : anything that can run a read query, *sql.DB and *sql.Conn both do
type Queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// ColumnFetcher : reads destination column lists to check descriptors
// against the real tables before a run starts
type ColumnFetcher interface {
	Columns(ctx context.Context, tableName string) ([]string, error)
	Verify(ctx context.Context, ds Descriptors) error
}

// NewColumnFetcherPostgres : information_schema backed fetcher
func NewColumnFetcherPostgres(db Queryer) ColumnFetcher {
	return &ColumnFetcherPostgres{target: db}
}

type ColumnFetcherPostgres struct {
	target Queryer
}

// Columns : column names of tableName ("schema.table" or just "table",
// the latter resolved against current_schema()), in ordinal order
func (m *ColumnFetcherPostgres) Columns(ctx context.Context, tableName string) ([]string, error) {
	schema, name := splitQualified(tableName)
	rows, err := m.target.QueryContext(ctx, `
	SELECT column_name
	FROM information_schema.columns
	WHERE table_schema = COALESCE(NULLIF($1, ''), current_schema())
		AND table_name = $2
	ORDER BY ordinal_position`, schema, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var res []string
	for rows.Next() {
		var col string
		if err := rows.Scan(&col); err != nil {
			return nil, err
		}
		res = append(res, col)
	}
	return res, rows.Err()
}

// Verify : every descriptor's table must exist with every configured column.
// Tables are checked concurrently and all problems are reported together.
func (m *ColumnFetcherPostgres) Verify(ctx context.Context, ds Descriptors) error {
	var (
		wg       errgroup.Group
		mu       sync.Mutex
		finalErr error
	)
	for _, d := range ds {
		d := d
		wg.Go(func() error {
			cols, err := m.Columns(ctx, d.TableName)
			if err != nil {
				return fmt.Errorf("%s : could not read columns : %w", d.TableName, err)
			}
			problems := missingColumns(d, cols)
			if problems != nil {
				mu.Lock()
				finalErr = multierror.Append(finalErr, problems)
				mu.Unlock()
			}
			return nil
		})
	}
	if err := wg.Wait(); err != nil {
		return err
	}
	return finalErr
}

func missingColumns(d Descriptor, have []string) error {
	if len(have) == 0 {
		return fmt.Errorf("%s : table does not exist on the destination", d.TableName)
	}
	known := make(map[string]struct{}, len(have))
	for _, c := range have {
		known[strings.ToLower(c)] = struct{}{}
	}
	var missing []string
	for _, c := range d.Columns {
		if _, ok := known[strings.ToLower(c)]; !ok {
			missing = append(missing, c)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s : destination is missing columns %s", d.TableName, strings.Join(missing, ", "))
	}
	return nil
}

func splitQualified(tableName string) (schema string, name string) {
	if i := strings.LastIndex(tableName, "."); i >= 0 {
		return tableName[:i], tableName[i+1:]
	}
	return "", tableName
}
