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

// Package reconcile computes the difference between a remote snapshot and the
// local snapshot of one entity kind and applies it to the mirror.
package reconcile

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/pkg/errors"
)

// Row is a value that can be reconciled. Equality is on the full value, and
// RowKey identifies the remote entity the row mirrors.
type Row[K comparable] interface {
	comparable
	RowKey() K
}

// Changes is the result of a diff
type Changes[T any] struct {
	// Upserts are rows that are new or whose value changed
	Upserts []T
	// Deletes are local rows the remote no longer reports
	Deletes []T
}

// Empty returns true if there is nothing to write
func (c Changes[T]) Empty() bool {
	return len(c.Upserts) == 0 && len(c.Deletes) == 0
}

// Diff computes the rows to write and the rows to delete. Upserts are the
// remote rows absent from the local snapshot on full value equality. Deletes
// are the local rows whose key the remote does not report. Duplicate remote
// rows are written once.
func Diff[K comparable, T Row[K]](remote, local []T) Changes[T] {
	localSet := make(map[T]struct{}, len(local))
	for _, r := range local {
		localSet[r] = struct{}{}
	}

	var ret Changes[T]

	remoteKeys := make(map[K]struct{}, len(remote))
	seen := make(map[T]struct{}, len(remote))
	for _, r := range remote {
		remoteKeys[r.RowKey()] = struct{}{}

		if _, ok := seen[r]; ok {
			continue
		}
		seen[r] = struct{}{}

		if _, ok := localSet[r]; !ok {
			ret.Upserts = append(ret.Upserts, r)
		}
	}

	for _, r := range local {
		if _, ok := remoteKeys[r.RowKey()]; !ok {
			ret.Deletes = append(ret.Deletes, r)
		}
	}

	return ret
}

// Report summarises the writes of one batch
type Report struct {
	Kind     string
	Upserted int
	Deleted  int
	Failed   int
}

// Writes returns the number of rows written
func (r Report) Writes() int {
	return r.Upserted + r.Deleted
}

// Err returns an aggregate error if any row failed
func (r Report) Err() error {
	if r.Failed == 0 {
		return nil
	}

	return errors.Errorf("%d %s rows failed to be written", r.Failed, r.Kind)
}

// Add accumulates another report of the same kind
func (r *Report) Add(o Report) {
	r.Upserted += o.Upserted
	r.Deleted += o.Deleted
	r.Failed += o.Failed
}

func (r Report) String() string {
	return fmt.Sprintf("%s: %d upserted, %d deleted, %d failed", r.Kind, r.Upserted, r.Deleted, r.Failed)
}

// execAll runs the statement for every row, logging and counting failures
// instead of aborting.
func execAll[T any](tx *database.DB, kind, op, query string, rows []T, args func(T) []interface{}) (int, int, error) {
	if len(rows) == 0 {
		return 0, 0, nil
	}

	stmt, err := tx.Prepare(query)
	if err != nil {
		return 0, 0, errors.Wrapf(err, "preparing %s %s statement", kind, op)
	}
	defer stmt.Close()

	var ok, failed int
	for _, row := range rows {
		if _, err := stmt.Exec(args(row)...); err != nil {
			failed++
			log.WithFields(log.Fields{
				"kind": kind,
				"op":   op,
				"row":  fmt.Sprintf("%+v", row),
			}).ErrorWrap(err, "writing row")
			continue
		}

		ok++
	}

	return ok, failed, nil
}

// Apply writes the changes to the table in one transaction. Deletes run
// before upserts. A row that fails is logged and skipped; the rest of the
// batch is committed. The returned error is non-nil only when the batch as a
// whole could not be written; row failures are reported through
// Report.Failed and Report.Err.
func Apply[T any](db *database.DB, table database.Table[T], changes Changes[T]) (Report, error) {
	report := Report{Kind: table.Kind}
	if changes.Empty() {
		return report, nil
	}

	tx, err := db.Begin()
	if err != nil {
		return report, errors.Wrapf(err, "beginning %s transaction", table.Kind)
	}
	defer tx.Rollback()

	if table.Deletes() {
		n, failed, err := execAll(tx, table.Kind, "delete", table.Delete, changes.Deletes, table.DeleteArgs)
		if err != nil {
			return report, err
		}
		report.Deleted = n
		report.Failed += failed
	}

	n, failed, err := execAll(tx, table.Kind, "upsert", table.Upsert, changes.Upserts, table.UpsertArgs)
	if err != nil {
		return report, err
	}
	report.Upserted = n
	report.Failed += failed

	if err := tx.Commit(); err != nil {
		return Report{Kind: table.Kind}, errors.Wrapf(err, "committing %s transaction", table.Kind)
	}

	entry := log.WithFields(log.Fields{
		"kind":     report.Kind,
		"upserted": report.Upserted,
		"deleted":  report.Deleted,
		"failed":   report.Failed,
	})
	if report.Failed > 0 {
		entry.Warn("reconciled with failures")
	} else {
		entry.Debug("reconciled")
	}

	return report, nil
}

// Sync diffs the snapshots and applies the result. Deletes are dropped for
// tables without a delete path.
func Sync[K comparable, T Row[K]](db *database.DB, table database.Table[T], remote, local []T) (Report, error) {
	changes := Diff[K, T](remote, local)
	if !table.Deletes() {
		changes.Deletes = nil
	}

	return Apply(db, table, changes)
}

// CanonicalJSON returns the compact form of a JSON document with object keys
// sorted, so that semantically equal documents compare equal as text.
// Numbers keep their original representation.
func CanonicalJSON(raw []byte) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", errors.New("empty JSON document")
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))
	dec.UseNumber()

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return "", errors.Wrap(err, "decoding JSON")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", errors.Wrap(err, "encoding JSON")
	}

	return string(bytes.TrimRight(buf.Bytes(), "\n")), nil
}
