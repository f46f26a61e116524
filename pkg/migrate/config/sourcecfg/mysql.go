package sourcecfg

import (
	"errors"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

type MYSQL struct {
	SessionVariableValues map[string]string `json:"session_vars"`
	DSN                   string            `json:"dsn"`
	Host                  string            `json:"host"`
	UserName              string            `json:"user_name"`
	Password              string            `json:"password"`
	Port                  int               `json:"port"`
	DB                    string            `json:"db"`
	QueryLogging          bool              `json:"query_log"`
}

func (m *MYSQL) GetDSN() string {
	if m.DSN != "" {
		return m.DSN
	}
	params := map[string]string{"collation": "utf8mb4_general_ci"}
	for k, v := range m.SessionVariableValues {
		params[k] = v
	}
	cfg := mysql.Config{
		User:                 m.UserName,
		Passwd:               m.Password,
		Net:                  "tcp",
		Addr:                 net.JoinHostPort(m.Host, strconv.Itoa(m.Port)),
		DBName:               m.DB,
		ParseTime:            true,
		AllowNativePasswords: true,
		Params:               params,
	}
	return cfg.FormatDSN()
}

func (m *MYSQL) DriverName() string { return "mysql" }

func (m *MYSQL) LogQueries() bool { return m.QueryLogging }

// SessionStatements : mysql session settings travel in the dsn
func (m *MYSQL) SessionStatements() []string { return nil }

func (m *MYSQL) Validate() error {
	if m.DSN != "" {
		if _, err := mysql.ParseDSN(m.DSN); err != nil {
			return fmt.Errorf("source : invalid mysql dsn : %w", err)
		}
		return nil
	}
	if m.Host == "" || m.Port == 0 || m.DB == "" || m.UserName == "" {
		return errors.New("source : mysql needs dsn or host, port, db and user_name")
	}
	return nil
}
