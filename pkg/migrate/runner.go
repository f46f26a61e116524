package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/baderkha/ora2pg/pkg/migrate/config"
	"github.com/baderkha/ora2pg/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/ora2pg/pkg/migrate/config/targetcfg"
	"github.com/baderkha/ora2pg/pkg/migrate/connection"
	"github.com/baderkha/ora2pg/pkg/migrate/progress"
	"github.com/baderkha/ora2pg/pkg/migrate/report"
	"github.com/baderkha/ora2pg/pkg/migrate/source"
	"github.com/baderkha/ora2pg/pkg/migrate/table"
	"github.com/davecgh/go-spew/spew"
	"github.com/gofrs/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

type Option func(*base)

func WithLogger(log zerolog.Logger) Option {
	return func(b *base) { b.log = log }
}

func WithProgress(r progress.Reporter) Option {
	return func(b *base) { b.progress = r }
}

// WithFs : filesystem run reports are written to
func WithFs(fs afero.Fs) Option {
	return func(b *base) { b.fs = fs }
}

// WithS3 : client run reports are uploaded with, built from the default
// aws config on first use otherwise
func WithS3(client s3iface.S3API) Option {
	return func(b *base) { b.s3 = client }
}

// base : what every source -> postgres runner shares
type base struct {
	runId    string
	log      zerolog.Logger
	progress progress.Reporter
	fs       afero.Fs
	s3       s3iface.S3API
}

func newBase(opts ...Option) base {
	b := base{
		runId: uuid.Must(uuid.NewV4()).String(),
		log:   zerolog.New(os.Stderr).With().Timestamp().Logger(),
		fs:    afero.NewOsFs(),
	}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (b *base) RunID() string { return b.runId }

func (b *base) run(ctx context.Context, src connection.SessionSettings, dst *targetcfg.Postgres, job config.Job) (*Result, error) {
	log := b.log.With().Str("run_id", b.runId).Logger()
	log.Debug().Msg(spew.Sdump(job.Tables))

	srcDB, srcConn, err := connection.DialSource(ctx, src, log)
	if err != nil {
		return nil, err
	}
	defer srcDB.Close()
	defer srcConn.Close()

	dstDB, err := connection.DialTarget(dst, log)
	if err != nil {
		return nil, err
	}
	defer dstDB.Close()

	if err := connection.Ping(ctx, map[string]connection.Pinger{"source": srcConn, "target": dstDB}); err != nil {
		return nil, err
	}
	return b.execute(ctx, srcConn, dstDB, job)
}

// execute : everything after the connections exist
func (b *base) execute(ctx context.Context, src table.Queryer, dst *sql.DB, job config.Job) (*Result, error) {
	log := b.log.With().Str("run_id", b.runId).Logger()

	if job.Preflight {
		if err := table.NewColumnFetcherPostgres(dst).Verify(ctx, job.Tables); err != nil {
			return nil, fmt.Errorf("preflight : %w", err)
		}
		log.Info().Int("tables", len(job.Tables)).Msg("preflight passed")
	}

	opts := []EngineOption{WithEngineRunID(b.runId), WithEngineLogger(b.log)}
	if b.progress != nil {
		opts = append(opts, WithEngineProgress(b.progress))
	}
	engine := NewEngine(source.NewSQLReader(src, job.BatchRecordSize), dst, job, opts...)

	res, err := engine.Run(ctx)
	b.publish(ctx, res, job.Report, log)
	return res, err
}

// publish : report problems are logged, they never change the run outcome
func (b *base) publish(ctx context.Context, res *Result, opts report.Options, log zerolog.Logger) {
	if !opts.Enabled() {
		return
	}
	if opts.S3Bucket != "" && b.s3 == nil {
		sess, err := session.NewSession(aws.NewConfig())
		if err != nil {
			log.Warn().Err(err).Msg("could not create aws session, skipping report upload")
			opts.S3Bucket = ""
		} else {
			b.s3 = s3.New(sess)
		}
	}
	localPath, key, err := report.NewPublisher(b.fs, b.s3, opts).Publish(context.WithoutCancel(ctx), res.Summary())
	if err != nil {
		log.Warn().Err(err).Msg("could not publish run report")
		return
	}
	log.Info().Str("path", localPath).Str("s3_key", key).Msg("run report published")
}

// OracleToPostgres : copies tables out of oracle into postgres
type OracleToPostgres struct {
	base
}

func NewOracleToPostgres(opts ...Option) *OracleToPostgres {
	return &OracleToPostgres{base: newBase(opts...)}
}

func (m *OracleToPostgres) Run(ctx context.Context, cfg config.Config[sourcecfg.Oracle, targetcfg.Postgres]) (*Result, error) {
	return m.run(ctx, &cfg.SourceConfig, &cfg.Target, cfg.Job)
}

// MysqlToPostgres : copies tables out of mysql into postgres
type MysqlToPostgres struct {
	base
}

func NewMysqlToPostgres(opts ...Option) *MysqlToPostgres {
	return &MysqlToPostgres{base: newBase(opts...)}
}

func (m *MysqlToPostgres) Run(ctx context.Context, cfg config.Config[sourcecfg.MYSQL, targetcfg.Postgres]) (*Result, error) {
	return m.run(ctx, &cfg.SourceConfig, &cfg.Target, cfg.Job)
}

var (
	_ Runner[sourcecfg.Oracle, targetcfg.Postgres] = (*OracleToPostgres)(nil)
	_ Runner[sourcecfg.MYSQL, targetcfg.Postgres]  = (*MysqlToPostgres)(nil)
)
