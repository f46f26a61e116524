// package fakesql
//
// in-memory database/sql driver for tests. Each connection keeps its own
// pending statements while a transaction is open; commit publishes them,
// rollback throws them away. Queries answer from canned results.
package fakesql

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"regexp"
	"strings"
	"sync"
)

var insertInto = regexp.MustCompile(`(?i)^\s*INSERT\s+INTO\s+([^\s(]+)`)

// Statement : one successfully executed statement
type Statement struct {
	Query string
	Args  []driver.Value
}

// Table : target of an INSERT statement, empty otherwise
func (s Statement) Table() string {
	m := insertInto.FindStringSubmatch(s.Query)
	if m == nil {
		return ""
	}
	return m[1]
}

// Result : canned answer to a query
type Result struct {
	Columns []string
	// Types : optional database type names, one per column
	Types []string
	Rows  [][]driver.Value
	// FailAfter : when > 0, Next returns Err once this many rows were read
	FailAfter int
	Err       error
}

// Server : shared state behind every connection opened from it
type Server struct {
	mu        sync.Mutex
	results   map[string]*Result
	queryFunc func(query string, args []driver.Value) (*Result, error)
	execHook  func(query string, args []driver.Value) error
	commitErr error
	committed []Statement
	executed  []Statement
	queries   []string
	commits   int
	rollbacks int
	opened    int
}

func New() *Server {
	return &Server{results: map[string]*Result{}}
}

// DB : a pool backed by this server
func (s *Server) DB() *sql.DB {
	return sql.OpenDB(connector{s})
}

// SetResult : rows returned for exactly this query text (whitespace trimmed)
func (s *Server) SetResult(query string, res *Result) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[strings.TrimSpace(query)] = res
}

// SetQueryFunc : fallback for queries without a canned result
func (s *Server) SetQueryFunc(fn func(query string, args []driver.Value) (*Result, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queryFunc = fn
}

// SetExecHook : called before every exec, a non nil error fails the statement
func (s *Server) SetExecHook(fn func(query string, args []driver.Value) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execHook = fn
}

// SetCommitErr : every following commit fails with err and discards its
// pending statements, like a deferred constraint failing at COMMIT
func (s *Server) SetCommitErr(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commitErr = err
}

// Committed : statements that are durable (autocommitted or committed)
func (s *Server) Committed() []Statement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Statement(nil), s.committed...)
}

// Executed : every statement that ran, including ones later rolled back
func (s *Server) Executed() []Statement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Statement(nil), s.executed...)
}

// Rows : committed INSERT argument lists for table
func (s *Server) Rows(table string) [][]driver.Value {
	var out [][]driver.Value
	for _, st := range s.Committed() {
		if strings.EqualFold(st.Table(), table) {
			out = append(out, st.Args)
		}
	}
	return out
}

// Queries : query texts in the order they were issued
func (s *Server) Queries() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func (s *Server) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

func (s *Server) Rollbacks() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rollbacks
}

// Opened : number of physical connections opened so far
func (s *Server) Opened() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opened
}

type connector struct{ s *Server }

func (c connector) Connect(context.Context) (driver.Conn, error) {
	c.s.mu.Lock()
	c.s.opened++
	c.s.mu.Unlock()
	return &conn{s: c.s}, nil
}

func (c connector) Driver() driver.Driver { return drv{c.s} }

type drv struct{ s *Server }

func (d drv) Open(string) (driver.Conn, error) { return &conn{s: d.s}, nil }

type conn struct {
	s       *Server
	inTx    bool
	pending []Statement
}

func (c *conn) Prepare(query string) (driver.Stmt, error) {
	return &stmt{c: c, query: query}, nil
}

func (c *conn) Close() error { return nil }

func (c *conn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	if c.inTx {
		return nil, errors.New("fakesql: transaction already open")
	}
	c.inTx = true
	c.pending = nil
	return &tx{c: c}, nil
}

func (c *conn) ExecContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	return c.exec(ctx, query, values(args))
}

func (c *conn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return c.query(ctx, query, values(args))
}

func (c *conn) exec(ctx context.Context, query string, args []driver.Value) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	hook := c.s.execHook
	c.s.mu.Unlock()
	if hook != nil {
		if err := hook(query, args); err != nil {
			return nil, err
		}
	}
	st := Statement{Query: query, Args: args}
	c.s.mu.Lock()
	defer c.s.mu.Unlock()
	c.s.executed = append(c.s.executed, st)
	if c.inTx {
		c.pending = append(c.pending, st)
	} else {
		c.s.committed = append(c.s.committed, st)
	}
	return driver.RowsAffected(1), nil
}

func (c *conn) query(ctx context.Context, query string, args []driver.Value) (driver.Rows, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.s.mu.Lock()
	c.s.queries = append(c.s.queries, strings.TrimSpace(query))
	res, ok := c.s.results[strings.TrimSpace(query)]
	fn := c.s.queryFunc
	c.s.mu.Unlock()
	if !ok {
		if fn == nil {
			return nil, errors.New("fakesql: no result for query " + query)
		}
		var err error
		if res, err = fn(query, args); err != nil {
			return nil, err
		}
	}
	return &rows{res: res}, nil
}

type tx struct{ c *conn }

func (t *tx) Commit() error {
	t.c.s.mu.Lock()
	defer t.c.s.mu.Unlock()
	if err := t.c.s.commitErr; err != nil {
		t.c.pending = nil
		t.c.inTx = false
		return err
	}
	t.c.s.committed = append(t.c.s.committed, t.c.pending...)
	t.c.s.commits++
	t.c.pending = nil
	t.c.inTx = false
	return nil
}

func (t *tx) Rollback() error {
	t.c.s.mu.Lock()
	defer t.c.s.mu.Unlock()
	t.c.s.rollbacks++
	t.c.pending = nil
	t.c.inTx = false
	return nil
}

type stmt struct {
	c     *conn
	query string
}

func (s *stmt) Close() error  { return nil }
func (s *stmt) NumInput() int { return -1 }

func (s *stmt) Exec(args []driver.Value) (driver.Result, error) {
	return s.c.exec(context.Background(), s.query, args)
}

func (s *stmt) Query(args []driver.Value) (driver.Rows, error) {
	return s.c.query(context.Background(), s.query, args)
}

func (s *stmt) ExecContext(ctx context.Context, args []driver.NamedValue) (driver.Result, error) {
	return s.c.exec(ctx, s.query, values(args))
}

func (s *stmt) QueryContext(ctx context.Context, args []driver.NamedValue) (driver.Rows, error) {
	return s.c.query(ctx, s.query, values(args))
}

type rows struct {
	res *Result
	pos int
}

func (r *rows) Columns() []string { return r.res.Columns }
func (r *rows) Close() error      { return nil }

func (r *rows) ColumnTypeDatabaseTypeName(i int) string {
	if i < len(r.res.Types) {
		return r.res.Types[i]
	}
	return ""
}

func (r *rows) Next(dest []driver.Value) error {
	if r.res.FailAfter > 0 && r.pos >= r.res.FailAfter {
		return r.res.Err
	}
	if r.pos >= len(r.res.Rows) {
		return io.EOF
	}
	copy(dest, r.res.Rows[r.pos])
	r.pos++
	return nil
}

func values(named []driver.NamedValue) []driver.Value {
	out := make([]driver.Value, len(named))
	for i, nv := range named {
		out[i] = nv.Value
	}
	return out
}
