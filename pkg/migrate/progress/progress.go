// package progress
//
// per batch progress reporting
package progress

import (
	"fmt"
	"io"
	"sync"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Reporter : told after every written batch and once a table is done
type Reporter interface {
	Batch(tableName string, batchRows int, total int)
	Done(tableName string, total int)
}

// NewLogReporter : logs "Migrated <total> rows for <table>" after each batch
func NewLogReporter(log zerolog.Logger) Reporter {
	return logReporter{log: log}
}

type logReporter struct {
	log zerolog.Logger
}

func (r logReporter) Batch(tableName string, batchRows int, total int) {
	r.log.Info().
		Str("table", tableName).
		Int("batch_rows", batchRows).
		Int("total_rows", total).
		Msgf("Migrated %d rows for %s", total, tableName)
}

func (r logReporter) Done(tableName string, total int) {
	r.log.Info().Str("table", tableName).Int("total_rows", total).Msg("table migrated")
}

// NewBarReporter : one spinner style bar per table, row totals are not
// known ahead of time
func NewBarReporter(out io.Writer) Reporter {
	return &barReporter{out: out}
}

type barReporter struct {
	mu    sync.Mutex
	out   io.Writer
	table string
	bar   *progressbar.ProgressBar
}

func (r *barReporter) Batch(tableName string, batchRows int, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar == nil || r.table != tableName {
		r.table = tableName
		r.bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(r.out),
			progressbar.OptionSetDescription(tableName),
			progressbar.OptionShowCount(),
			progressbar.OptionSetItsString("rows"),
			progressbar.OptionShowIts(),
		)
	}
	_ = r.bar.Add(batchRows)
}

func (r *barReporter) Done(tableName string, total int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bar != nil && r.table == tableName {
		_ = r.bar.Finish()
		fmt.Fprintln(r.out)
	}
	r.bar = nil
	r.table = ""
}

// Multi : fans every call out to all reporters
func Multi(reporters ...Reporter) Reporter {
	return multi(reporters)
}

type multi []Reporter

func (m multi) Batch(tableName string, batchRows int, total int) {
	for _, r := range m {
		r.Batch(tableName, batchRows, total)
	}
}

func (m multi) Done(tableName string, total int) {
	for _, r := range m {
		r.Done(tableName, total)
	}
}
