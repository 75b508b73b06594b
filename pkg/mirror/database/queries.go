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
	"slices"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

// ErrNotFound is returned by point queries that match no row
var ErrNotFound = errors.New("not found")

// queryRows runs the query and scans every row. The rows are always closed
// before returning, which matters because the pool holds one connection.
func queryRows[T any](db *DB, scan func(*sql.Rows) (T, error), query string, args ...interface{}) ([]T, error) {
	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "querying rows")
	}
	defer rows.Close()

	var ret []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning a row")
		}

		ret = append(ret, item)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "iterating rows")
	}

	return ret, nil
}

func placeholders(n int) string {
	if n == 0 {
		return ""
	}

	return strings.Repeat("?, ", n-1) + "?"
}

// maxQueryIDs bounds the ids bound by one IN list. SQLite limits the number
// of host parameters in a statement.
const maxQueryIDs = 500

// queryIn runs the query once per chunk of ids and concatenates the rows.
// query receives the placeholders of a chunk, which it may use binds times.
func queryIn[T any](db *DB, scan func(*sql.Rows) (T, error), ids []interface{}, binds int, query func(ph string) string) ([]T, error) {
	var ret []T
	for start := 0; start < len(ids); start += maxQueryIDs {
		chunk := ids[start:min(start+maxQueryIDs, len(ids))]

		args := make([]interface{}, 0, len(chunk)*binds)
		for i := 0; i < binds; i++ {
			args = append(args, chunk...)
		}

		rows, err := queryRows(db, scan, query(placeholders(len(chunk))), args...)
		if err != nil {
			return nil, err
		}
		ret = append(ret, rows...)
	}

	return ret, nil
}

// int64Args returns the distinct ids in ascending order, so that rows of
// consecutive chunks stay ordered by id
func int64Args(ids []int64) []interface{} {
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	ret := make([]interface{}, len(sorted))
	for i, id := range sorted {
		ret[i] = id
	}

	return ret
}

func scanProject(rows *sql.Rows) (Project, error) {
	var p Project
	err := rows.Scan(&p.ID, &p.Key, &p.Name, &p.Description, &p.Archived)
	return p, err
}

func scanIssueType(rows *sql.Rows) (IssueType, error) {
	var t IssueType
	err := rows.Scan(&t.ID, &t.Name, &t.Description)
	return t, err
}

func scanLinkType(rows *sql.Rows) (LinkType, error) {
	var t LinkType
	err := rows.Scan(&t.ID, &t.Name, &t.OutwardName, &t.InwardName)
	return t, err
}

func scanField(rows *sql.Rows) (Field, error) {
	var f Field
	err := rows.Scan(&f.ID, &f.Key, &f.HumanName, &f.Schema, &f.IsCustom)
	return f, err
}

func scanIssue(rows *sql.Rows) (Issue, error) {
	var i Issue
	err := rows.Scan(&i.ID, &i.Key, &i.ProjectKey)
	return i, err
}

func scanIssueField(rows *sql.Rows) (IssueField, error) {
	var f IssueField
	err := rows.Scan(&f.IssueID, &f.FieldID, &f.Value)
	return f, err
}

func scanIssueLink(rows *sql.Rows) (IssueLink, error) {
	var l IssueLink
	err := rows.Scan(&l.ID, &l.LinkTypeID, &l.OutwardIssueID, &l.InwardIssueID)
	return l, err
}

func scanAttachment(rows *sql.Rows) (Attachment, error) {
	var a Attachment
	err := rows.Scan(&a.ID, &a.UUID, &a.IssueID, &a.Filename, &a.MimeType, &a.FileSize)
	return a, err
}

func scanComment(rows *sql.Rows) (Comment, error) {
	var c Comment
	err := rows.Scan(&c.ID, &c.IssueID, &c.Position, &c.Content, &c.AuthorID, &c.Created, &c.Modified)
	return c, err
}

func scanPerson(rows *sql.Rows) (Person, error) {
	var p Person
	err := rows.Scan(&p.AccountID, &p.DisplayName)
	return p, err
}

func scanString(rows *sql.Rows) (string, error) {
	var s string
	err := rows.Scan(&s)
	return s, err
}

// LoadProjects returns every project
func LoadProjects(db *DB) ([]Project, error) {
	return queryRows(db, scanProject, "SELECT id, key, name, description, archived FROM projects ORDER BY key")
}

// ActiveProjectKeys returns the keys of the projects that are not archived
func ActiveProjectKeys(db *DB) ([]string, error) {
	return queryRows(db, scanString, "SELECT key FROM projects WHERE NOT archived ORDER BY key")
}

// LoadIssueTypes returns every issue type
func LoadIssueTypes(db *DB) ([]IssueType, error) {
	return queryRows(db, scanIssueType, "SELECT id, name, description FROM issue_types ORDER BY id")
}

// LoadLinkTypes returns every link type
func LoadLinkTypes(db *DB) ([]LinkType, error) {
	return queryRows(db, scanLinkType, "SELECT id, name, outward_name, inward_name FROM link_types ORDER BY id")
}

// LoadFields returns every field definition
func LoadFields(db *DB) ([]Field, error) {
	return queryRows(db, scanField, "SELECT id, key, human_name, schema, is_custom FROM fields ORDER BY id")
}

// LoadIssues returns the issues with the given ids
func LoadIssues(db *DB, ids []int64) ([]Issue, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return queryIn(db, scanIssue, int64Args(ids), 1, func(ph string) string {
		return "SELECT id, key, project_key FROM issues WHERE id IN (" + ph + ") ORDER BY id"
	})
}

// LoadProjectIssues returns the issues of a project
func LoadProjectIssues(db *DB, projectKey string) ([]Issue, error) {
	return queryRows(db, scanIssue, "SELECT id, key, project_key FROM issues WHERE project_key = ? ORDER BY id", projectKey)
}

// GetIssueByKey returns the issue with the given key
func GetIssueByKey(db *DB, key string) (Issue, error) {
	var i Issue
	err := db.QueryRow("SELECT id, key, project_key FROM issues WHERE key = ?", key).Scan(&i.ID, &i.Key, &i.ProjectKey)
	if err == sql.ErrNoRows {
		return i, errors.Wrapf(ErrNotFound, "issue %s", key)
	} else if err != nil {
		return i, errors.Wrapf(err, "getting issue %s", key)
	}

	return i, nil
}

// ListIssueKeys returns the keys of every issue, ordered by project and number
func ListIssueKeys(db *DB) ([]string, error) {
	return queryRows(db, scanString, "SELECT key FROM issues ORDER BY project_key, id")
}

// LoadIssueFields returns the field values of the given issues
func LoadIssueFields(db *DB, issueIDs ...int64) ([]IssueField, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	return queryIn(db, scanIssueField, int64Args(issueIDs), 1, func(ph string) string {
		return "SELECT issue_id, field_id, value FROM issue_fields WHERE issue_id IN (" + ph + ") ORDER BY issue_id, field_id"
	})
}

// LoadFieldValues returns the value of one field for every issue of a
// project, keyed by issue id
func LoadFieldValues(db *DB, projectKey, fieldID string) (map[int64]string, error) {
	values, err := queryRows(db, scanIssueField, `SELECT f.issue_id, f.field_id, f.value
		FROM issue_fields AS f
		INNER JOIN issues AS i ON i.id = f.issue_id
		WHERE i.project_key = ? AND f.field_id = ?`, projectKey, fieldID)
	if err != nil {
		return nil, err
	}

	ret := make(map[int64]string, len(values))
	for _, v := range values {
		ret[v.IssueID] = v.Value
	}

	return ret, nil
}

// LoadIssueLinks returns the links touching any of the given issues
func LoadIssueLinks(db *DB, issueIDs ...int64) ([]IssueLink, error) {
	if len(issueIDs) == 0 {
		return nil, nil
	}

	links, err := queryIn(db, scanIssueLink, int64Args(issueIDs), 2, func(ph string) string {
		return "SELECT id, link_type_id, outward_issue_id, inward_issue_id FROM issue_links WHERE outward_issue_id IN (" + ph + ") OR inward_issue_id IN (" + ph + ") ORDER BY id"
	})
	if err != nil {
		return nil, err
	}

	// a link between issues of different chunks is returned by both
	sort.Slice(links, func(i, j int) bool { return links[i].ID < links[j].ID })
	return slices.CompactFunc(links, func(a, b IssueLink) bool { return a.ID == b.ID }), nil
}

// LoadIssueLinksByID returns the links with the given ids
func LoadIssueLinksByID(db *DB, ids []int64) ([]IssueLink, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	return queryIn(db, scanIssueLink, int64Args(ids), 1, func(ph string) string {
		return "SELECT id, link_type_id, outward_issue_id, inward_issue_id FROM issue_links WHERE id IN (" + ph + ") ORDER BY id"
	})
}

// LoadAttachments returns the attachment metadata of an issue
func LoadAttachments(db *DB, issueID int64) ([]Attachment, error) {
	return queryRows(db, scanAttachment, "SELECT id, uuid, issue_id, filename, mime_type, file_size FROM attachments WHERE issue_id = ? ORDER BY id", issueID)
}

// LoadAttachmentsMissingContent returns the attachments of an issue whose
// content has not been downloaded
func LoadAttachmentsMissingContent(db *DB, issueID int64) ([]Attachment, error) {
	return queryRows(db, scanAttachment, "SELECT id, uuid, issue_id, filename, mime_type, file_size FROM attachments WHERE issue_id = ? AND content IS NULL ORDER BY id", issueID)
}

// GetAttachmentByUUID returns the attachment with the given uuid
func GetAttachmentByUUID(db *DB, uuid string) (Attachment, error) {
	var a Attachment
	err := db.QueryRow("SELECT id, uuid, issue_id, filename, mime_type, file_size FROM attachments WHERE uuid = ?", uuid).
		Scan(&a.ID, &a.UUID, &a.IssueID, &a.Filename, &a.MimeType, &a.FileSize)
	if err == sql.ErrNoRows {
		return a, errors.Wrapf(ErrNotFound, "attachment %s", uuid)
	} else if err != nil {
		return a, errors.Wrapf(err, "getting attachment %s", uuid)
	}

	return a, nil
}

// GetAttachmentContent returns the stored content of an attachment. The
// boolean is false when the content has not been downloaded.
func GetAttachmentContent(db *DB, id int64) ([]byte, bool, error) {
	var content []byte
	err := db.QueryRow("SELECT content FROM attachments WHERE id = ?", id).Scan(&content)
	if err == sql.ErrNoRows {
		return nil, false, errors.Wrapf(ErrNotFound, "attachment %d", id)
	} else if err != nil {
		return nil, false, errors.Wrapf(err, "getting content of attachment %d", id)
	}

	return content, content != nil, nil
}

// SaveAttachmentContent stores the downloaded content of an attachment
func SaveAttachmentContent(db *DB, id int64, content []byte) error {
	if content == nil {
		content = []byte{}
	}

	if _, err := db.Exec("UPDATE attachments SET content = ? WHERE id = ?", content, id); err != nil {
		return errors.Wrapf(err, "saving content of attachment %d", id)
	}

	return nil
}

// SaveAttachmentUUID stores the resolved uuid of an attachment
func SaveAttachmentUUID(db *DB, id int64, uuid string) error {
	if _, err := db.Exec("UPDATE attachments SET uuid = ? WHERE id = ?", uuid, id); err != nil {
		return errors.Wrapf(err, "saving uuid of attachment %d", id)
	}

	return nil
}

// LoadComments returns the comments of an issue in their remote order
func LoadComments(db *DB, issueID int64) ([]Comment, error) {
	return queryRows(db, scanComment, "SELECT id, issue_id, position_in_sequence, content, author_id, created, modified FROM comments WHERE issue_id = ? ORDER BY position_in_sequence", issueID)
}

// LoadPeople returns the people with the given account ids
func LoadPeople(db *DB, accountIDs []string) ([]Person, error) {
	if len(accountIDs) == 0 {
		return nil, nil
	}

	sorted := slices.Clone(accountIDs)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)

	args := make([]interface{}, len(sorted))
	for i, id := range sorted {
		args[i] = id
	}

	return queryIn(db, scanPerson, args, 1, func(ph string) string {
		return "SELECT account_id, display_name FROM people WHERE account_id IN (" + ph + ") ORDER BY account_id"
	})
}
