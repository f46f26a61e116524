package connection

import (
	"database/sql"

	"github.com/rs/zerolog"
	sqldblogger "github.com/simukti/sqldb-logger"
	"github.com/simukti/sqldb-logger/logadapter/zerologadapter"
)

// AddLogger : returns a pool over db's driver that logs every query through
// log. db itself is closed, only the returned pool should be used.
func AddLogger(db *sql.DB, dsn string, driverName string, log zerolog.Logger) *sql.DB {
	loggerAdapter := zerologadapter.New(log.With().Str("driver", driverName).Logger())
	drv := db.Driver()
	_ = db.Close()
	logged := sqldblogger.OpenDriver(dsn, drv, loggerAdapter,
		sqldblogger.WithWrapResult(false),
		sqldblogger.WithDurationFieldname("dur_ms"),
		sqldblogger.WithDurationUnit(sqldblogger.DurationMillisecond),
		sqldblogger.WithSQLQueryAsMessage(true),
		sqldblogger.WithSQLQueryFieldname("sql_query"),
		sqldblogger.WithMinimumLevel(sqldblogger.LevelDebug),
	)
	return logged
}
