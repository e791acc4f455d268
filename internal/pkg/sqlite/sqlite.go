// Package sqlite registers the CGO-free modernc sqlite driver under the
// name "sqlite3" and switches foreign key enforcement on for every
// connection. Import for side effects.
package sqlite

import (
	"database/sql"
	"database/sql/driver"

	"modernc.org/sqlite"
)

type sqlite3Driver struct {
	*sqlite.Driver
}

type execerConn interface {
	Exec(query string, args []driver.Value) (driver.Result, error)
}

func (d sqlite3Driver) Open(name string) (driver.Conn, error) {
	conn, err := d.Driver.Open(name)
	if err != nil {
		return nil, err
	}

	if c, ok := conn.(execerConn); ok {
		if _, err := c.Exec("PRAGMA foreign_keys = ON;", nil); err != nil {
			_ = conn.Close()
			return nil, err
		}
	}

	return conn, nil
}

func init() {
	sql.Register("sqlite3", sqlite3Driver{Driver: &sqlite.Driver{}})
}
