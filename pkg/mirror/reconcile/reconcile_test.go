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

package reconcile

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/dnote/jiramirror/pkg/assert"
	"github.com/dnote/jiramirror/pkg/mirror/database"
)

func TestDiff(t *testing.T) {
	c1 := database.Comment{ID: 1, IssueID: 10, Position: 0, Content: "a", AuthorID: "u1", Created: "c", Modified: "m"}
	c2 := database.Comment{ID: 2, IssueID: 10, Position: 1, Content: "b", AuthorID: "u1", Created: "c", Modified: "m"}
	c2Edited := c2
	c2Edited.Content = "b2"
	c3 := database.Comment{ID: 3, IssueID: 10, Position: 2, Content: "c", AuthorID: "u2", Created: "c", Modified: "m"}

	testCases := []struct {
		remote          []database.Comment
		local           []database.Comment
		expectedUpserts []database.Comment
		expectedDeletes []database.Comment
	}{
		{
			remote:          []database.Comment{c1, c2},
			local:           nil,
			expectedUpserts: []database.Comment{c1, c2},
			expectedDeletes: nil,
		},
		{
			remote:          []database.Comment{c1, c2},
			local:           []database.Comment{c1, c2},
			expectedUpserts: nil,
			expectedDeletes: nil,
		},
		{
			remote:          []database.Comment{c1, c2Edited},
			local:           []database.Comment{c1, c2},
			expectedUpserts: []database.Comment{c2Edited},
			expectedDeletes: nil,
		},
		{
			remote:          []database.Comment{c1},
			local:           []database.Comment{c1, c2, c3},
			expectedUpserts: nil,
			expectedDeletes: []database.Comment{c2, c3},
		},
		{
			remote:          []database.Comment{c3, c3},
			local:           []database.Comment{c1},
			expectedUpserts: []database.Comment{c3},
			expectedDeletes: []database.Comment{c1},
		},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			got := Diff[int64](tc.remote, tc.local)

			assert.DeepEqual(t, got.Upserts, tc.expectedUpserts, "upserts mismatch")
			assert.DeepEqual(t, got.Deletes, tc.expectedDeletes, "deletes mismatch")
		})
	}
}

func TestSyncIdempotent(t *testing.T) {
	db := database.InitTestMemoryDB(t)

	remote := []database.Project{
		{ID: 1, Key: "OPS", Name: "Operations"},
		{ID: 2, Key: "DEV", Name: "Development", Description: "code", Archived: true},
	}

	local, err := database.LoadProjects(db)
	assert.NilError(t, err, "loading projects")

	report, err := Sync[int64](db, database.Projects, remote, local)
	assert.NilError(t, err, "first sync")
	assert.Equal(t, report.Upserted, 2, "first sync upserts")

	local, err = database.LoadProjects(db)
	assert.NilError(t, err, "loading projects")

	report, err = Sync[int64](db, database.Projects, remote, local)
	assert.NilError(t, err, "second sync")
	assert.Equal(t, report.Writes(), 0, "second sync should not write")
}

func TestSyncNeverDeletesWithoutDeletePath(t *testing.T) {
	db := database.InitTestMemoryDB(t)
	database.MustExec(t, "inserting issue type", db, "INSERT INTO issue_types (id, name, description) VALUES (1, 'Bug', '')")

	local, err := database.LoadIssueTypes(db)
	assert.NilError(t, err, "loading issue types")

	report, err := Sync[int64](db, database.IssueTypes, []database.IssueType{{ID: 2, Name: "Task"}}, local)
	assert.NilError(t, err, "syncing")

	assert.Equal(t, report.Deleted, 0, "deleted count")
	assert.Equal(t, database.CountRows(t, db, "issue_types"), 2, "row count")
}

func TestApplyContinuesPastRowFailure(t *testing.T) {
	db := database.InitTestMemoryDB(t)

	uuid := sql.NullString{String: "3b241101-e2bb-4255-8caf-4136c566a962", Valid: true}
	changes := Changes[database.Attachment]{
		Upserts: []database.Attachment{
			{ID: 1, UUID: uuid, IssueID: 10, Filename: "a.txt", MimeType: "text/plain", FileSize: 1},
			// same uuid violates the unique index
			{ID: 2, UUID: uuid, IssueID: 10, Filename: "b.txt", MimeType: "text/plain", FileSize: 1},
			{ID: 3, IssueID: 10, Filename: "c.txt", MimeType: "text/plain", FileSize: 1},
		},
	}

	report, err := Apply(db, database.Attachments, changes)
	assert.NilError(t, err, "applying")

	assert.Equal(t, report.Upserted, 2, "upserted count")
	assert.Equal(t, report.Failed, 1, "failed count")
	assert.NotEqual(t, report.Err(), nil, "aggregate error")
	assert.Equal(t, database.CountRows(t, db, "attachments"), 2, "committed rows")
}

func TestApplyDeletes(t *testing.T) {
	db := database.InitTestMemoryDB(t)
	database.MustExec(t, "inserting link", db, "INSERT INTO issue_links (id, link_type_id, outward_issue_id, inward_issue_id) VALUES (1, 1, 5, 9)")

	local, err := database.LoadIssueLinks(db, 5)
	assert.NilError(t, err, "loading links")

	report, err := Sync[int64](db, database.IssueLinks, nil, local)
	assert.NilError(t, err, "syncing")

	assert.Equal(t, report.Deleted, 1, "deleted count")
	assert.Equal(t, database.CountRows(t, db, "issue_links"), 0, "row count")
}

func TestAttachmentUpsertKeepsResolvedUUIDAndDropsStaleContent(t *testing.T) {
	db := database.InitTestMemoryDB(t)
	database.MustExec(t, "inserting attachment", db, `INSERT INTO attachments (id, uuid, issue_id, filename, mime_type, file_size, content)
		VALUES (1, '3b241101-e2bb-4255-8caf-4136c566a962', 10, 'a.txt', 'text/plain', 3, X'616263')`)

	_, err := Apply(db, database.Attachments, Changes[database.Attachment]{
		Upserts: []database.Attachment{{ID: 1, IssueID: 10, Filename: "a.txt", MimeType: "text/markdown", FileSize: 3}},
	})
	assert.NilError(t, err, "applying mime change")

	var uuid sql.NullString
	var content []byte
	database.MustScan(t, "reading attachment", db.QueryRow("SELECT uuid, content FROM attachments WHERE id = 1"), &uuid, &content)
	assert.Equal(t, uuid.String, "3b241101-e2bb-4255-8caf-4136c566a962", "uuid should be kept")
	assert.Equal(t, string(content), "abc", "content should be kept")

	_, err = Apply(db, database.Attachments, Changes[database.Attachment]{
		Upserts: []database.Attachment{{ID: 1, IssueID: 10, Filename: "a.txt", MimeType: "text/markdown", FileSize: 4}},
	})
	assert.NilError(t, err, "applying size change")

	database.MustScan(t, "reading attachment", db.QueryRow("SELECT content FROM attachments WHERE id = 1"), &content)
	assert.Equal(t, content == nil, true, "content should be cleared")
}

func TestCanonicalJSON(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
		err      bool
	}{
		{input: `{"b": 1, "a": [1, 2]}`, expected: `{"a":[1,2],"b":1}`},
		{input: `{"a":[1,2],"b":1}`, expected: `{"a":[1,2],"b":1}`},
		{input: `"2024-01-01T10:00:00.000+0000"`, expected: `"2024-01-01T10:00:00.000+0000"`},
		{input: `12345678901234567890`, expected: `12345678901234567890`},
		{input: `{"html": "<b>&</b>"}`, expected: `{"html":"<b>&</b>"}`},
		{input: `null`, expected: `null`},
		{input: ``, err: true},
		{input: `{"a":`, err: true},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			got, err := CanonicalJSON([]byte(tc.input))

			assert.Equal(t, err != nil, tc.err, "error mismatch")
			assert.Equal(t, got, tc.expected, "result mismatch")
		})
	}
}
