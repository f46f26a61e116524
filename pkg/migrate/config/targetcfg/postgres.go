package targetcfg

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"strconv"

	"github.com/baderkha/ora2pg/pkg/conditional"
)

const (
	DriverPgx = "pgx"
	DriverPq  = "postgres"
)

type Postgres struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	DB       string `json:"db"`
	UserName string `json:"user_name"`
	Password string `json:"password"`
	SSLMode  string `json:"ssl_mode"`
	// Driver : pgx (default) or postgres (lib/pq)
	Driver       string `json:"driver"`
	QueryLogging bool   `json:"query_log"`
}

func (p *Postgres) GetDSN() string {
	if p.DSN != "" {
		return p.DSN
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(p.UserName, p.Password),
		Host:     net.JoinHostPort(p.Host, strconv.Itoa(conditional.Default(p.Port, 5432))),
		Path:     "/" + p.DB,
		RawQuery: url.Values{"sslmode": {conditional.Default(p.SSLMode, "disable")}}.Encode(),
	}
	return u.String()
}

func (p *Postgres) DriverName() string {
	return conditional.Default(p.Driver, DriverPgx)
}

func (p *Postgres) LogQueries() bool { return p.QueryLogging }

func (p *Postgres) Validate() error {
	switch p.DriverName() {
	case DriverPgx, DriverPq:
	default:
		return fmt.Errorf("target : unsupported driver %q (want %s or %s)", p.Driver, DriverPgx, DriverPq)
	}
	if p.DSN == "" && (p.Host == "" || p.DB == "" || p.UserName == "") {
		return errors.New("target : postgres needs dsn or host, db and user_name")
	}
	return nil
}
