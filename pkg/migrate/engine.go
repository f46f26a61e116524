package migrate

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/baderkha/ora2pg/pkg/migrate/config"
	"github.com/baderkha/ora2pg/pkg/migrate/progress"
	"github.com/baderkha/ora2pg/pkg/migrate/source"
	"github.com/baderkha/ora2pg/pkg/migrate/state"
	"github.com/baderkha/ora2pg/pkg/migrate/table"
	"github.com/baderkha/ora2pg/pkg/migrate/target"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
)

// ErrShortWrite : the writer reported fewer rows than it was given
var ErrShortWrite = errors.New("batch partially written")

// Engine : copies the job's tables in order inside one destination
// transaction. Either every table, every in-run audit entry and the view
// refresh commit together, or the whole transaction is rolled back.
type Engine struct {
	reader   source.Reader
	target   *sql.DB
	job      config.Job
	log      zerolog.Logger
	progress progress.Reporter
	runID    string
	now      func() time.Time
}

type EngineOption func(*Engine)

func WithEngineLogger(log zerolog.Logger) EngineOption {
	return func(e *Engine) { e.log = log }
}

func WithEngineProgress(r progress.Reporter) EngineOption {
	return func(e *Engine) { e.progress = r }
}

func WithEngineRunID(id string) EngineOption {
	return func(e *Engine) { e.runID = id }
}

func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// NewEngine : job is expected to be defaulted and validated already
func NewEngine(reader source.Reader, target *sql.DB, job config.Job, opts ...EngineOption) *Engine {
	e := &Engine{
		reader: reader,
		target: target,
		job:    job,
		log:    zerolog.Nop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.progress == nil {
		e.progress = progress.NewLogReporter(e.log)
	}
	return e
}

// Run : the returned Result is never nil
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	res := newResult(e.runID, e.job.Tables, e.now())
	log := e.log.With().Str("run_id", e.runID).Logger()

	err := e.run(ctx, res, log)

	res.FinishedAt = e.now()
	res.Err = err
	log.Info().
		Str("state", string(res.State)).
		Int("rows", res.TotalRows()).
		Dur("took", res.FinishedAt.Sub(res.StartedAt)).
		Msg("run finished")
	return res, err
}

func (e *Engine) run(ctx context.Context, res *Result, log zerolog.Logger) error {
	// the transaction is begun on a dedicated conn so the writer can reach
	// the driver connection underneath it
	conn, err := e.target.Conn(ctx)
	if err != nil {
		res.State = state.RolledBack
		return fmt.Errorf("could not get destination connection : %w", err)
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		res.State = state.RolledBack
		return fmt.Errorf("could not begin destination transaction : %w", err)
	}
	audit := state.ForRun(e.job.Audit.Mode, tx, e.target, e.job.Audit.Table)
	writer := target.NewWriter(conn, tx)

	for i, d := range e.job.Tables {
		if err := e.migrateTable(ctx, d, res.Tables[i], writer, audit, log); err != nil {
			return e.rollback(tx, res, log, err)
		}
	}

	if err := e.refreshView(ctx, tx, audit, log); err != nil {
		return e.rollback(tx, res, log, err)
	}
	res.ViewRefreshed = e.job.View.RefreshStatement() != ""

	if err := tx.Commit(); err != nil {
		res.State = state.RolledBack
		return e.commitFailed(ctx, res, audit, fmt.Errorf("commit : %w", err), log)
	}
	res.State = state.Committed
	log.Info().Msg("Migration completed successfully!")
	return nil
}

func (e *Engine) migrateTable(
	ctx context.Context,
	d table.Descriptor,
	tr *TableResult,
	w target.Writer,
	audit state.Logger,
	log zerolog.Logger,
) error {
	log = log.With().Str("table", d.TableName).Logger()
	log.Info().Msgf("Migrating %s...", d.TableName)
	tr.State = state.Migrating
	tr.StartedAt = e.now()
	defer func() { tr.Duration = e.now().Sub(tr.StartedAt) }()

	err := e.copyTable(ctx, d, tr, w)
	if err == nil {
		err = audit.Record(ctx, d.TableName, state.Success, fmt.Sprintf("%d rows migrated", tr.Rows))
	}
	if err != nil {
		tr.State = state.Failed
		tr.Err = err
		if target.IsUniqueViolation(err) {
			log.Warn().Msg("destination already holds these keys, a full copy needs an empty destination")
		}
		return e.fail(ctx, audit, d.TableName, err, log)
	}

	tr.State = state.Succeeded
	e.progress.Done(d.TableName, tr.Rows)
	return nil
}

func (e *Engine) copyTable(ctx context.Context, d table.Descriptor, tr *TableResult, w target.Writer) error {
	cursor, err := e.reader.Open(ctx, d)
	if err != nil {
		return err
	}
	defer cursor.Close()

	for {
		batch, err := cursor.NextBatch(ctx)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			return nil
		}
		tr.Fetched += len(batch)

		n, err := w.WriteBatch(ctx, d, batch)
		tr.Rows += n
		if err != nil {
			return err
		}
		if n != len(batch) {
			return fmt.Errorf("%w : %s wrote %d of %d rows", ErrShortWrite, d.TableName, n, len(batch))
		}
		tr.Batches++
		e.progress.Batch(d.TableName, n, tr.Rows)
	}
}

func (e *Engine) refreshView(ctx context.Context, tx *sql.Tx, audit state.Logger, log zerolog.Logger) error {
	stmt := e.job.View.RefreshStatement()
	if stmt == "" {
		log.Info().Msg("no view configured, skipping refresh")
		return nil
	}
	log = log.With().Str("view", e.job.View.Name).Logger()

	err := func() error {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return err
		}
		return audit.Record(ctx, e.job.View.Name, state.Success, "Materialized view refreshed")
	}()
	if err != nil {
		return e.fail(ctx, audit, e.job.View.Name, err, log)
	}
	log.Info().Msg("view refreshed")
	return nil
}

// fail : records the failure entry and hands back cause, joined with the
// audit error if even that could not be written. The entry is written
// even when ctx was cancelled, that is usually why we are failing.
func (e *Engine) fail(ctx context.Context, audit state.Logger, name string, cause error, log zerolog.Logger) error {
	log.Error().Err(cause).Msg("migration failed")
	if err := audit.Record(context.WithoutCancel(ctx), name, state.Failure, cause.Error()); err != nil {
		log.Error().Err(err).Msg("could not record failure in audit log")
		return multierror.Append(cause, fmt.Errorf("audit : %w", err))
	}
	return cause
}

// commitFailed : the in-run SUCCESS entries went down with the transaction,
// so every step that had succeeded gets a FAILURE entry in their place.
// In shared mode there is nothing left to write them through.
func (e *Engine) commitFailed(ctx context.Context, res *Result, audit state.Logger, cause error, log zerolog.Logger) error {
	log.Error().Err(cause).Msg("Migration failed, destination transaction rolled back at commit")

	var names []string
	for _, tr := range res.Tables {
		if tr.State == state.Succeeded {
			tr.State = state.Failed
			tr.Err = cause
			names = append(names, tr.TableName)
		}
	}
	if res.ViewRefreshed {
		res.ViewRefreshed = false
		names = append(names, e.job.View.Name)
	}

	if mode, _ := state.ParseAuditMode(string(e.job.Audit.Mode)); mode == state.Shared {
		log.Warn().Msg("audit entries were part of the failed transaction and are lost")
		return cause
	}
	finalErr := cause
	for _, name := range names {
		if err := audit.Record(context.WithoutCancel(ctx), name, state.Failure, cause.Error()); err != nil {
			log.Error().Err(err).Str("table", name).Msg("could not record failure in audit log")
			finalErr = multierror.Append(finalErr, fmt.Errorf("audit : %w", err))
		}
	}
	return finalErr
}

func (e *Engine) rollback(tx *sql.Tx, res *Result, log zerolog.Logger, cause error) error {
	res.State = state.RolledBack
	if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		log.Error().Err(err).Msg("rollback failed")
		return multierror.Append(cause, fmt.Errorf("rollback : %w", err))
	}
	log.Error().Err(cause).Msg("Migration failed, destination transaction rolled back")
	return cause
}
