/* Copyright 2025 Dnote Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

const driverName = "sqlite3"

// connParams are appended to every data source name
var connParams = []string{
	"_busy_timeout=5000",
	"_journal_mode=WAL",
	"_foreign_keys=off",
}

// SQLCommon is the minimal interface required by a db connection
type SQLCommon interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Prepare(query string) (*sql.Stmt, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// DB is a handle to the mirror database. It wraps either the connection pool
// or a transaction started from it, so that the same queries run in both.
type DB struct {
	Conn SQLCommon
	pool *sql.DB
	tx   *sql.Tx
}

func dataSourceName(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}

	return path + sep + strings.Join(connParams, "&")
}

// Open opens the database at the given path. The pool holds a single
// connection because SQLite serialises writers anyway, and a single
// connection keeps shared-cache in-memory databases alive.
func Open(path string) (*DB, error) {
	pool, err := sql.Open(driverName, dataSourceName(path))
	if err != nil {
		return nil, errors.Wrap(err, "opening db connection")
	}

	pool.SetMaxOpenConns(1)
	pool.SetMaxIdleConns(1)

	if err := pool.Ping(); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "connecting to the database")
	}

	return &DB{Conn: pool, pool: pool}, nil
}

// Begin starts a transaction. It must be called on a pool handle.
func (d *DB) Begin() (*DB, error) {
	if d.pool == nil {
		return nil, errors.New("cannot begin a transaction inside a transaction")
	}

	tx, err := d.pool.Begin()
	if err != nil {
		return nil, errors.Wrap(err, "beginning a transaction")
	}

	return &DB{Conn: tx, tx: tx}, nil
}

// Commit commits the transaction
func (d *DB) Commit() error {
	if d.tx == nil {
		return errors.New("not a transaction")
	}

	return d.tx.Commit()
}

// Rollback rolls back the transaction. Rolling back a finished transaction
// is a no-op so that it can be deferred.
func (d *DB) Rollback() error {
	if d.tx == nil {
		return errors.New("not a transaction")
	}

	if err := d.tx.Rollback(); err != nil && err != sql.ErrTxDone {
		return err
	}

	return nil
}

// Close closes the connection pool
func (d *DB) Close() error {
	if d.pool == nil {
		return errors.New("cannot close a transaction")
	}

	return d.pool.Close()
}

// Exec executes a query without returning any rows
func (d *DB) Exec(query string, args ...interface{}) (sql.Result, error) {
	return d.Conn.Exec(query, args...)
}

// Prepare creates a prepared statement
func (d *DB) Prepare(query string) (*sql.Stmt, error) {
	return d.Conn.Prepare(query)
}

// Query executes a query that returns rows
func (d *DB) Query(query string, args ...interface{}) (*sql.Rows, error) {
	return d.Conn.Query(query, args...)
}

// QueryRow executes a query that is expected to return at most one row
func (d *DB) QueryRow(query string, args ...interface{}) *sql.Row {
	return d.Conn.QueryRow(query, args...)
}
