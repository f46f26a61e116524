package migrate

import (
	"time"

	"github.com/baderkha/ora2pg/pkg/migrate/report"
	"github.com/baderkha/ora2pg/pkg/migrate/state"
	"github.com/baderkha/ora2pg/pkg/migrate/table"
)

// TableResult : what happened to one table during a run
type TableResult struct {
	TableName string
	State     state.TableState
	// Fetched and Rows only differ when a write failed part way through
	Fetched   int
	Rows      int
	Batches   int
	StartedAt time.Time
	Duration  time.Duration
	Err       error
}

// Result : outcome of one run, returned whether it committed or not
type Result struct {
	RunID         string
	State         state.RunState
	StartedAt     time.Time
	FinishedAt    time.Time
	Tables        []*TableResult
	ViewRefreshed bool
	Err           error
}

func newResult(runID string, ds table.Descriptors, now time.Time) *Result {
	res := &Result{
		RunID:     runID,
		State:     state.Running,
		StartedAt: now,
		Tables:    make([]*TableResult, len(ds)),
	}
	for i, d := range ds {
		res.Tables[i] = &TableResult{TableName: d.TableName, State: state.Pending}
	}
	return res
}

// Table : nil when name was not part of the run
func (r *Result) Table(name string) *TableResult {
	for _, t := range r.Tables {
		if t.TableName == name {
			return t
		}
	}
	return nil
}

// TotalRows : rows written across every table
func (r *Result) TotalRows() int {
	var n int
	for _, t := range r.Tables {
		n += t.Rows
	}
	return n
}

func (r *Result) Summary() report.Summary {
	s := report.Summary{
		RunID:      r.RunID,
		State:      string(r.State),
		StartedAt:  r.StartedAt,
		FinishedAt: r.FinishedAt,
		Tables:     make([]report.TableSummary, 0, len(r.Tables)),
	}
	if r.Err != nil {
		s.Error = r.Err.Error()
	}
	for _, t := range r.Tables {
		ts := report.TableSummary{
			TableName: t.TableName,
			State:     string(t.State),
			Rows:      t.Rows,
			Batches:   t.Batches,
			Duration:  t.Duration,
		}
		if t.Err != nil {
			ts.Error = t.Err.Error()
		}
		s.Tables = append(s.Tables, ts)
	}
	return s
}
