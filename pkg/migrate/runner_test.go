package migrate

import (
	"context"
	"database/sql/driver"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/baderkha/ora2pg/pkg/migrate/config"
	"github.com/baderkha/ora2pg/pkg/migrate/internal/fakesql"
	"github.com/baderkha/ora2pg/pkg/migrate/report"
	"github.com/baderkha/ora2pg/pkg/migrate/state"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// destination whose information_schema knows every column of job
func withSchema(srv *fakesql.Server, job config.Job, skip string) {
	cols := map[string][]string{}
	for _, d := range job.Tables {
		if d.TableName != skip {
			cols[d.TableName] = d.Columns
		}
	}
	srv.SetQueryFunc(func(query string, args []driver.Value) (*fakesql.Result, error) {
		res := &fakesql.Result{Columns: []string{"column_name"}}
		for _, c := range cols[args[1].(string)] {
			res.Rows = append(res.Rows, []driver.Value{c})
		}
		return res, nil
	})
}

func TestExecuteWritesReport(t *testing.T) {
	job := hrJob(state.Separate, summaryView)
	job.Preflight = true
	job.Report = report.Options{Dir: "reports"}
	f := newFixture(t, job, 3, 3, 3, 3)
	withSchema(f.dst, job, "")

	fs := afero.NewMemMapFs()
	b := newBase(WithFs(fs), WithLogger(zerolog.Nop()), WithProgress(f.progress))
	res, err := b.execute(context.Background(), f.src.DB(), f.dst.DB(), job)
	require.NoError(t, err)
	assert.Equal(t, state.Committed, res.State)
	assert.Equal(t, b.RunID(), res.RunID)

	raw, err := afero.ReadFile(fs, filepath.Join("reports", report.Key(b.RunID())))
	require.NoError(t, err)
	var s report.Summary
	require.NoError(t, json.Unmarshal(raw, &s))
	assert.Equal(t, "COMMITTED", s.State)
	assert.Len(t, s.Tables, 4)
}

func TestExecuteReportsRolledBackRun(t *testing.T) {
	job := hrJob(state.Separate, summaryView)
	job.Report = report.Options{Dir: "reports"}
	f := newFixture(t, job, 3, 3, 3, 3)
	f.dst.SetExecHook(failOn("projects", 2, assert.AnError))

	fs := afero.NewMemMapFs()
	b := newBase(WithFs(fs), WithLogger(zerolog.Nop()))
	res, err := b.execute(context.Background(), f.src.DB(), f.dst.DB(), job)
	assert.Equal(t, assert.AnError, err)
	assert.Equal(t, state.RolledBack, res.State)

	exists, err := afero.Exists(fs, filepath.Join("reports", report.Key(b.RunID())))
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestExecuteReportFailureKeepsOutcome(t *testing.T) {
	job := hrJob(state.Separate, "")
	job.Report = report.Options{Dir: "reports"}
	f := newFixture(t, job, 1, 1, 1, 1)

	b := newBase(WithFs(afero.NewReadOnlyFs(afero.NewMemMapFs())), WithLogger(zerolog.Nop()))
	res, err := b.execute(context.Background(), f.src.DB(), f.dst.DB(), job)
	require.NoError(t, err)
	assert.Equal(t, state.Committed, res.State)
}

func TestExecutePreflightStopsBeforeTransaction(t *testing.T) {
	job := hrJob(state.Separate, summaryView)
	job.Preflight = true
	f := newFixture(t, job, 3, 3, 3, 3)
	withSchema(f.dst, job, "projects")

	b := newBase(WithLogger(zerolog.Nop()))
	res, err := b.execute(context.Background(), f.src.DB(), f.dst.DB(), job)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "projects : table does not exist on the destination")

	assert.Zero(t, f.dst.Commits())
	assert.Zero(t, f.dst.Rollbacks())
	assert.Empty(t, f.dst.Executed())
	assert.Empty(t, f.src.Queries())
}

func TestNewRunnersGetDistinctRunIDs(t *testing.T) {
	a := NewOracleToPostgres(WithLogger(zerolog.Nop()))
	b := NewMysqlToPostgres(WithLogger(zerolog.Nop()))
	assert.NotEmpty(t, a.RunID())
	assert.NotEqual(t, a.RunID(), b.RunID())
}
