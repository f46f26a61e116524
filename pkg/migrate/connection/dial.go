// package connection
//
// opens the source and destination pools
package connection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	_ "github.com/sijms/go-ora/v2"
)

// Settings : what a source or target config exposes to get dialed
type Settings interface {
	GetDSN() string
	DriverName() string
	LogQueries() bool
}

// SessionSettings : sources that need statements run on their session first
type SessionSettings interface {
	Settings
	SessionStatements() []string
}

// DialSource : the source is read through exactly one connection, so the
// pool is capped at one and the pinned *sql.Conn is returned alongside it.
// Session statements run on that connection before it is handed out.
func DialSource(ctx context.Context, s SessionSettings, log zerolog.Logger) (*sql.DB, *sql.Conn, error) {
	db, err := open(s, log)
	if err != nil {
		return nil, nil, fmt.Errorf("SOURCE : Could not dial connection to %s due to : %w", s.DriverName(), err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	conn, err := db.Conn(ctx)
	if err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("SOURCE : Could not get connection to %s due to : %w", s.DriverName(), err)
	}
	for _, stmt := range s.SessionStatements() {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			db.Close()
			return nil, nil, fmt.Errorf("SOURCE : session statement %q failed : %w", stmt, err)
		}
	}
	log.Debug().Str("driver", s.DriverName()).Msg("got source connection")
	return db, conn, nil
}

// DialTarget : two connections, one for the run transaction and one for
// audit entries that have to outlive it
func DialTarget(s Settings, log zerolog.Logger) (*sql.DB, error) {
	db, err := open(s, log)
	if err != nil {
		return nil, fmt.Errorf("TARGET : Could not dial connection to %s due to : %w", s.DriverName(), err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)
	db.SetConnMaxIdleTime(5 * time.Minute)
	log.Debug().Str("driver", s.DriverName()).Msg("got target connection")
	return db, nil
}

// Pinger : *sql.DB and *sql.Conn
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Ping : pings every handle concurrently, first error wins
func Ping(ctx context.Context, handles map[string]Pinger) error {
	var wg errgroup.Group
	for name, h := range handles {
		name, h := name, h
		wg.Go(func() error {
			if err := h.PingContext(ctx); err != nil {
				return fmt.Errorf("can't ping %s : %w", name, err)
			}
			return nil
		})
	}
	return wg.Wait()
}

func open(s Settings, log zerolog.Logger) (*sql.DB, error) {
	dsn := s.GetDSN()
	db, err := sql.Open(s.DriverName(), dsn)
	if err != nil {
		return nil, err
	}
	if s.LogQueries() {
		db = AddLogger(db, dsn, s.DriverName(), log)
	}
	return db, nil
}
