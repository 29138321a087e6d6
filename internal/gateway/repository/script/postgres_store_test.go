package script

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ddlDriver accepts Exec calls only, counting them. failNext makes the next
// Exec fail once.
type ddlDriver struct {
	mu       sync.Mutex
	execs    int
	failNext bool
}

func (d *ddlDriver) Open(string) (driver.Conn, error)             { return &ddlConn{d: d}, nil }
func (d *ddlDriver) Connect(context.Context) (driver.Conn, error) { return &ddlConn{d: d}, nil }
func (d *ddlDriver) Driver() driver.Driver                        { return d }

func (d *ddlDriver) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.execs
}

type ddlConn struct{ d *ddlDriver }

func (c *ddlConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not supported") }
func (c *ddlConn) Close() error                        { return nil }
func (c *ddlConn) Begin() (driver.Tx, error)           { return nil, errors.New("not supported") }

func (c *ddlConn) ExecContext(ctx context.Context, _ string, _ []driver.NamedValue) (driver.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.d.mu.Lock()
	defer c.d.mu.Unlock()
	c.d.execs++
	if c.d.failNext {
		c.d.failNext = false
		return nil, errors.New("ddl failed")
	}
	return driver.RowsAffected(0), nil
}

func newDDLStore(t *testing.T, d *ddlDriver) *PostgresStore {
	t.Helper()
	db := sql.OpenDB(d)
	t.Cleanup(func() { _ = db.Close() })
	s, err := newPostgresStore(db)
	require.NoError(t, err)
	return s
}

func TestEnsureSchemaIgnoresCallerCancel(t *testing.T) {
	d := &ddlDriver{}
	s := newDDLStore(t, d)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.NoError(t, s.ensureSchema(ctx))
	require.NoError(t, s.ensureSchema(context.Background()))
	assert.Equal(t, 1, d.count())
}

func TestEnsureSchemaRetriesAfterFailure(t *testing.T) {
	d := &ddlDriver{failNext: true}
	s := newDDLStore(t, d)

	assert.Error(t, s.ensureSchema(context.Background()))
	require.NoError(t, s.ensureSchema(context.Background()))
	require.NoError(t, s.ensureSchema(context.Background()))
	assert.Equal(t, 2, d.count())
}
