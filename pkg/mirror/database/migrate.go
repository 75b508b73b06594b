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
	"embed"
	"io/fs"
	"net/http"
	"strings"

	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/pkg/errors"
	migrate "github.com/rubenv/sql-migrate"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

const (
	migrationDialect = "sqlite3"
	migrationTable   = "schema_migrations"
)

// validateMigrationFilename checks if filename follows format: NNN-description.sql
func validateMigrationFilename(name string) error {
	if !strings.HasSuffix(name, ".sql") {
		return errors.Errorf("invalid migration filename %s: must end with .sql", name)
	}

	name = strings.TrimSuffix(name, ".sql")
	parts := strings.SplitN(name, "-", 2)
	if len(parts) != 2 {
		return errors.Errorf("invalid migration filename %s: must be NNN-description.sql", name)
	}

	version, description := parts[0], parts[1]
	if len(version) != 3 {
		return errors.Errorf("invalid migration filename: version must be 3 digits, got %s", version)
	}
	for _, c := range version {
		if c < '0' || c > '9' {
			return errors.Errorf("invalid migration filename: version must be numeric, got %s", version)
		}
	}
	if description == "" {
		return errors.Errorf("invalid migration filename: description is required")
	}

	return nil
}

func validateMigrationFiles(fsys fs.FS) error {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return errors.Wrap(err, "reading migration directory")
	}

	seen := map[string]string{}
	for _, e := range entries {
		name := e.Name()
		if err := validateMigrationFilename(name); err != nil {
			return err
		}

		version := name[:3]
		if existing, ok := seen[version]; ok {
			return errors.Errorf("duplicate migration version %s: %s and %s", version, existing, name)
		}
		seen[version] = name
	}

	return nil
}

// Migrate applies the pending embedded migrations
func Migrate(db *DB) error {
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		return errors.Wrap(err, "opening embedded migrations")
	}

	return migrateFS(db, sub)
}

func migrateFS(db *DB, fsys fs.FS) error {
	if db.pool == nil {
		return errors.New("cannot migrate inside a transaction")
	}

	if err := validateMigrationFiles(fsys); err != nil {
		return err
	}

	set := migrate.MigrationSet{TableName: migrationTable}
	source := &migrate.HttpFileSystemMigrationSource{FileSystem: http.FS(fsys)}

	n, err := set.Exec(db.pool, migrationDialect, source, migrate.Up)
	if err != nil {
		return errors.Wrap(err, "applying migrations")
	}

	records, err := set.GetMigrationRecords(db.pool, migrationDialect)
	if err != nil {
		return errors.Wrap(err, "reading migration records")
	}

	version := ""
	if len(records) > 0 {
		version = records[len(records)-1].Id
	}

	log.WithFields(log.Fields{
		"applied": n,
		"version": version,
	}).Debug("database schema migrated")

	return nil
}
