package sourcecfg

import (
	"errors"

	go_ora "github.com/sijms/go-ora/v2"
)

// Oracle : source connection settings, served by the pure go go-ora driver
type Oracle struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Service  string `json:"service"`
	UserName string `json:"user_name"`
	Password string `json:"password"`
	// URLOptions : go-ora url options, e.g. {"DBA PRIVILEGE": "SYSDBA"}
	URLOptions map[string]string `json:"url_options"`
	// Session : run once on the source connection before any table is read,
	// e.g. ALTER SESSION SET CONTAINER = FREEPDB1
	Session      []string `json:"session_statements"`
	QueryLogging bool     `json:"query_log"`
}

func (o *Oracle) GetDSN() string {
	if o.DSN != "" {
		return o.DSN
	}
	return go_ora.BuildUrl(o.Host, o.Port, o.Service, o.UserName, o.Password, o.URLOptions)
}

func (o *Oracle) DriverName() string { return "oracle" }

func (o *Oracle) LogQueries() bool { return o.QueryLogging }

func (o *Oracle) SessionStatements() []string { return o.Session }

func (o *Oracle) Validate() error {
	if o.DSN != "" {
		return nil
	}
	if o.Host == "" || o.Port == 0 || o.Service == "" || o.UserName == "" {
		return errors.New("source : oracle needs dsn or host, port, service and user_name")
	}
	return nil
}
