package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/baderkha/ora2pg/pkg/logx"
	"github.com/baderkha/ora2pg/pkg/migrate"
	"github.com/baderkha/ora2pg/pkg/migrate/config"
	"github.com/baderkha/ora2pg/pkg/migrate/config/sourcecfg"
	"github.com/baderkha/ora2pg/pkg/migrate/config/targetcfg"
	"github.com/baderkha/ora2pg/pkg/migrate/connection"
	"github.com/baderkha/ora2pg/pkg/migrate/progress"
	"github.com/baderkha/ora2pg/pkg/migrate/table"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

type flags struct {
	configPath string
	source     string
	logLevel   string
	pretty     bool
	progress   bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCommand().ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func rootCommand() *cobra.Command {
	var f flags
	root := &cobra.Command{
		Use:   "ora2pg",
		Short: "copy a fixed list of tables into postgres in one transaction",
		// errors are already logged
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&f.configPath, "config", "job.json", "path to the job file")
	root.PersistentFlags().StringVar(&f.source, "source", "oracle", "source database kind (oracle|mysql)")
	root.PersistentFlags().StringVar(&f.logLevel, "log-level", "info", "log level")
	root.PersistentFlags().BoolVar(&f.pretty, "pretty", false, "human readable logs")

	run := &cobra.Command{
		Use:   "run",
		Short: "migrate every configured table, then refresh the view and commit",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return runJob(cmd.Context(), f)
		},
	}
	run.Flags().BoolVar(&f.progress, "progress", false, "draw a progress bar per table on stderr")

	validate := &cobra.Command{
		Use:   "validate",
		Short: "check the job file and the destination tables without migrating",
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			return validateJob(cmd.Context(), f)
		},
	}

	root.AddCommand(run, validate)
	return root
}

func runJob(ctx context.Context, f flags) error {
	startTime := time.Now()
	log := logx.New(f.logLevel, f.pretty)

	opts := []migrate.Option{migrate.WithLogger(log)}
	if f.progress {
		opts = append(opts, migrate.WithProgress(progress.Multi(
			progress.NewLogReporter(log),
			progress.NewBarReporter(os.Stderr),
		)))
	}

	var (
		res *migrate.Result
		err error
	)
	switch f.source {
	case "oracle":
		res, err = runWith[sourcecfg.Oracle](ctx, migrate.NewOracleToPostgres(opts...), f.configPath)
	case "mysql":
		res, err = runWith[sourcecfg.MYSQL](ctx, migrate.NewMysqlToPostgres(opts...), f.configPath)
	default:
		err = fmt.Errorf("unknown source %q (want oracle or mysql)", f.source)
	}
	if err != nil {
		log.Error().Err(err).Msg("run failed")
	}
	if res != nil {
		log.Info().Str("run_id", res.RunID).Int("rows", res.TotalRows()).Str("state", string(res.State)).Msg("done")
	}

	fmt.Printf("Time taken: %s\n", time.Since(startTime))
	return err
}

func runWith[S any](ctx context.Context, m migrate.Runner[S, targetcfg.Postgres], path string) (*migrate.Result, error) {
	cfg, err := config.Load[S, targetcfg.Postgres](afero.NewOsFs(), path)
	if err != nil {
		return nil, err
	}
	return m.Run(ctx, cfg)
}

func validateJob(ctx context.Context, f flags) error {
	log := logx.New(f.logLevel, f.pretty)

	var (
		job    config.Job
		target targetcfg.Postgres
	)
	switch f.source {
	case "oracle":
		cfg, err := config.Load[sourcecfg.Oracle, targetcfg.Postgres](afero.NewOsFs(), f.configPath)
		if err != nil {
			return report(log, err)
		}
		job, target = cfg.Job, cfg.Target
	case "mysql":
		cfg, err := config.Load[sourcecfg.MYSQL, targetcfg.Postgres](afero.NewOsFs(), f.configPath)
		if err != nil {
			return report(log, err)
		}
		job, target = cfg.Job, cfg.Target
	default:
		return report(log, fmt.Errorf("unknown source %q (want oracle or mysql)", f.source))
	}

	db, err := connection.DialTarget(&target, log)
	if err != nil {
		return report(log, err)
	}
	defer db.Close()

	if err := connection.Ping(ctx, map[string]connection.Pinger{"target": db}); err != nil {
		return report(log, err)
	}
	if err := table.NewColumnFetcherPostgres(db).Verify(ctx, job.Tables); err != nil {
		return report(log, err)
	}
	log.Info().Strs("tables", job.Tables.Names()).Msg("job is valid")
	return nil
}

func report(log zerolog.Logger, err error) error {
	log.Error().Err(err).Msg("validation failed")
	return err
}
