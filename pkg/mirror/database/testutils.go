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
	"fmt"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// MustScan scans the given row and fails a test in case of any errors
func MustScan(t *testing.T, message string, row *sql.Row, args ...interface{}) {
	t.Helper()

	err := row.Scan(args...)
	if err != nil {
		t.Fatal(errors.Wrap(errors.Wrap(err, "scanning a row"), message))
	}
}

// MustExec executes the given SQL query and fails a test if an error occurs
func MustExec(t *testing.T, message string, db *DB, query string, args ...interface{}) sql.Result {
	t.Helper()

	result, err := db.Exec(query, args...)
	if err != nil {
		t.Fatal(errors.Wrap(errors.Wrap(err, "executing sql"), message))
	}

	return result
}

// InitTestMemoryDB initializes an in-memory test database with the schema migrated
func InitTestMemoryDB(t *testing.T) *DB {
	t.Helper()

	dbName := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	return initTestDB(t, dbName)
}

// InitTestFileDB initializes a file-based test database with the schema migrated
func InitTestFileDB(t *testing.T) (*DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), fmt.Sprintf("mirror-%s.db", uuid.NewString()))
	return initTestDB(t, dbPath), dbPath
}

func initTestDB(t *testing.T, dsn string) *DB {
	db, err := Open(dsn)
	if err != nil {
		t.Fatal(errors.Wrap(err, "opening test database"))
	}
	t.Cleanup(func() { db.Close() })

	if err := Migrate(db); err != nil {
		t.Fatal(errors.Wrap(err, "migrating test database"))
	}

	return db
}

// CountRows returns the number of rows in a table and fails the test on error
func CountRows(t *testing.T, db *DB, table string) int {
	t.Helper()

	var count int
	MustScan(t, fmt.Sprintf("counting %s", table), db.QueryRow(fmt.Sprintf("SELECT count(*) FROM %s", table)), &count)

	return count
}
