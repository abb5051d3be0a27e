// Package dbtest provides a scripted database/sql driver for repository
// tests. It records every statement with its bound arguments and answers
// queries from a queue of canned result sets.
package dbtest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"
)

// Call is one statement as the repository sent it.
type Call struct {
	Query string
	Args  []any
}

// Result is a canned answer to the next query.
type Result struct {
	Columns []string
	Rows    [][]driver.Value
	Err     error
}

// Recorder is a driver.Connector. Open it through Open.
type Recorder struct {
	mu      sync.Mutex
	execs   []Call
	queries []Call
	results []Result

	// PingErr is returned by PingContext.
	PingErr error
}

// Open returns a *sql.DB backed by a fresh Recorder, closed at test end.
func Open(t *testing.T) (*sql.DB, *Recorder) {
	t.Helper()
	r := &Recorder{}
	db := sql.OpenDB(r)
	t.Cleanup(func() { db.Close() })
	return db, r
}

// Queue appends a result set for a later query, in call order.
func (r *Recorder) Queue(columns []string, rows ...[]driver.Value) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, Result{Columns: columns, Rows: rows})
}

// Fail makes the next query return err.
func (r *Recorder) Fail(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, Result{Err: err})
}

func (r *Recorder) Execs() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.execs...)
}

func (r *Recorder) Queries() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.queries...)
}

func (r *Recorder) Connect(context.Context) (driver.Conn, error) { return &conn{r: r}, nil }
func (r *Recorder) Driver() driver.Driver                        { return recorderDriver{r} }

type recorderDriver struct{ r *Recorder }

func (d recorderDriver) Open(string) (driver.Conn, error) { return &conn{r: d.r}, nil }

type conn struct{ r *Recorder }

var errUnsupported = errors.New("dbtest: prepared statements and transactions are not supported")

func (c *conn) Prepare(string) (driver.Stmt, error) { return nil, errUnsupported }
func (c *conn) Close() error                        { return nil }
func (c *conn) Begin() (driver.Tx, error)           { return nil, errUnsupported }

func (c *conn) Ping(context.Context) error {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	return c.r.PingErr
}

func (c *conn) ExecContext(_ context.Context, query string, args []driver.NamedValue) (driver.Result, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.execs = append(c.r.execs, Call{Query: query, Args: values(args)})
	return driver.RowsAffected(1), nil
}

func (c *conn) QueryContext(_ context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	c.r.mu.Lock()
	defer c.r.mu.Unlock()
	c.r.queries = append(c.r.queries, Call{Query: query, Args: values(args)})
	if len(c.r.results) == 0 {
		return nil, errors.New("dbtest: no result queued for " + query)
	}
	res := c.r.results[0]
	c.r.results = c.r.results[1:]
	if res.Err != nil {
		return nil, res.Err
	}
	return &rows{columns: res.Columns, data: res.Rows}, nil
}

func values(named []driver.NamedValue) []any {
	out := make([]any, len(named))
	for i, nv := range named {
		out[i] = nv.Value
	}
	return out
}

type rows struct {
	columns []string
	data    [][]driver.Value
	next    int
}

func (r *rows) Columns() []string { return r.columns }
func (r *rows) Close() error      { return nil }

func (r *rows) Next(dest []driver.Value) error {
	if r.next >= len(r.data) {
		return io.EOF
	}
	copy(dest, r.data[r.next])
	r.next++
	return nil
}
