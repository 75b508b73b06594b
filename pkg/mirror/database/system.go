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
	"strconv"

	"github.com/pkg/errors"
)

// GetSystemInt reads an integer value from the system table. A missing key
// reads as zero.
func GetSystemInt(db *DB, key string) (int64, error) {
	var value string
	err := db.QueryRow("SELECT value FROM system WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	} else if err != nil {
		return 0, errors.Wrapf(err, "querying system configuration %s", key)
	}

	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "parsing system configuration %s", key)
	}

	return n, nil
}

// UpsertSystemInt writes an integer value to the system table
func UpsertSystemInt(db *DB, key string, value int64) error {
	_, err := db.Exec(`INSERT INTO system (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, strconv.FormatInt(value, 10))
	if err != nil {
		return errors.Wrapf(err, "updating system configuration %s", key)
	}

	return nil
}

// SystemKey joins a system key prefix with a scope such as a project key
func SystemKey(prefix, scope string) string {
	return prefix + ":" + scope
}
