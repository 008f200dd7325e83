package registry

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"strings"
	"sync"
)

const fakeDriverName = "unitboot-fake"

var fakeDB = &fakeDriver{}

func init() {
	sql.Register(fakeDriverName, fakeDB)
}

// fakeDriver counts live connections; DSNs containing "fail" refuse to open.
type fakeDriver struct {
	mu     sync.Mutex
	open   int
	opened int
	dsns   []string
}

func (d *fakeDriver) Open(name string) (driver.Conn, error) {
	if strings.Contains(name, "fail") {
		return nil, errors.New("fake: connection refused")
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.dsns = append(d.dsns, name)
	d.open++
	d.opened++
	return &fakeConn{driver: d}, nil
}

func (d *fakeDriver) lastDSN() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.dsns) == 0 {
		return ""
	}
	return d.dsns[len(d.dsns)-1]
}

func (d *fakeDriver) live() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

type fakeConn struct {
	driver *fakeDriver
	closed bool
}

func (c *fakeConn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("fake: statements not supported")
}

func (c *fakeConn) Close() error {
	if c.closed {
		return nil
	}
	c.closed = true
	c.driver.mu.Lock()
	c.driver.open--
	c.driver.mu.Unlock()
	return nil
}

func (c *fakeConn) Begin() (driver.Tx, error) {
	return nil, errors.New("fake: transactions not supported")
}

func (c *fakeConn) Ping(context.Context) error { return nil }
