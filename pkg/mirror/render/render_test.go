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

package render

import (
	"database/sql"
	"fmt"
	"testing"

	"github.com/dnote/jiramirror/pkg/assert"
	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/pkg/errors"
)

func TestText(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: ``, expected: ``},
		{input: `null`, expected: ``},
		{input: `"h1. Title\nsome *wiki* text"`, expected: "h1. Title\nsome *wiki* text"},
		{
			input:    `{"type":"doc","version":1,"content":[{"type":"paragraph","content":[{"type":"text","text":"hello "},{"type":"text","text":"world","marks":[{"type":"strong"}]}]}]}`,
			expected: "hello **world**",
		},
		{
			input:    `{"type":"doc","content":[{"type":"heading","attrs":{"level":2},"content":[{"type":"text","text":"Steps"}]},{"type":"orderedList","content":[{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"open"}]}]},{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"close"}]}]}]}]}`,
			expected: "## Steps\n\n1. open\n2. close",
		},
		{
			input:    `{"type":"doc","content":[{"type":"codeBlock","attrs":{"language":"go"},"content":[{"type":"text","text":"x := 1"}]}]}`,
			expected: "```go\nx := 1\n```",
		},
		{
			input:    `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"mention","attrs":{"id":"abc","text":"@Ann"}},{"type":"text","text":" see "},{"type":"text","text":"docs","marks":[{"type":"link","attrs":{"href":"https://example.com"}}]}]}]}`,
			expected: "@Ann see [docs](https://example.com)",
		},
		{
			input:    `{"type":"doc","content":[{"type":"blockquote","content":[{"type":"paragraph","content":[{"type":"text","text":"quoted"}]}]},{"type":"rule"},{"type":"bulletList","content":[{"type":"listItem","content":[{"type":"paragraph","content":[{"type":"text","text":"a"},{"type":"hardBreak"},{"type":"text","text":"b","marks":[{"type":"code"}]}]}]}]}]}`,
			expected: "> quoted\n\n---\n\n- a  \n`b`",
		},
		{input: `42`, expected: `42`},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			assert.Equal(t, Text(tc.input), tc.expected, "result mismatch")
		})
	}
}

func TestDisplayValue(t *testing.T) {
	testCases := []struct {
		input    string
		expected string
	}{
		{input: `"plain"`, expected: "plain"},
		{input: `{"name":"In Progress","id":"3"}`, expected: "In Progress"},
		{input: `{"accountId":"a1","displayName":"Ann"}`, expected: "Ann"},
		{input: `[{"name":"backend"},{"name":"db"}]`, expected: "backend, db"},
		{input: `null`, expected: ""},
		{input: `7`, expected: "7"},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			assert.Equal(t, displayValue(tc.input), tc.expected, "result mismatch")
		})
	}
}

func TestRender(t *testing.T) {
	ticket := Ticket{
		Issue: database.Issue{ID: 10001, Key: "ABC-1", ProjectKey: "ABC"},
		Fields: map[string]string{
			"summary":     `"Crash on start"`,
			"issuetype":   `{"name":"Bug"}`,
			"status":      `{"name":"Open"}`,
			"assignee":    `null`,
			"reporter":    `{"displayName":"Ann"}`,
			"description": `"It crashes."`,
		},
		Attachments: []database.Attachment{
			{ID: 1, IssueID: 10001, Filename: "log.txt", MimeType: "text/plain", FileSize: 12},
		},
		Comments: []database.Comment{
			{ID: 5, IssueID: 10001, Position: 0, Content: `"first"`, AuthorID: "a1", Created: "2024-01-01T00:00:00.000+0000"},
			{ID: 6, IssueID: 10001, Position: 1, Content: `"second"`, AuthorID: "unknown", Created: "2024-01-02T00:00:00.000+0000"},
		},
		People: map[string]string{"a1": "Ann"},
	}

	expected := `# ABC-1: Crash on start

- Type: Bug
- Status: Open
- Reporter: Ann

## Description

It crashes.

## Attachments

- log.txt (text/plain, 12 bytes)

## Comments

### Ann, 2024-01-01T00:00:00.000+0000

first

### unknown, 2024-01-02T00:00:00.000+0000

second
`

	assert.Equal(t, Render(ticket), expected, "markdown mismatch")
}

func TestLoadTicket(t *testing.T) {
	db := database.InitTestMemoryDB(t)

	database.MustExec(t, "inserting issue", db, "INSERT INTO issues (id, key, project_key) VALUES (?, ?, ?)", 10001, "ABC-1", "ABC")
	database.MustExec(t, "inserting field", db, "INSERT INTO issue_fields (issue_id, field_id, value) VALUES (?, ?, ?)", 10001, "summary", `"Crash"`)
	database.MustExec(t, "inserting attachment", db, "INSERT INTO attachments (id, uuid, issue_id, filename, mime_type, file_size) VALUES (?, ?, ?, ?, ?, ?)", 1, nil, 10001, "a.txt", "text/plain", 3)
	database.MustExec(t, "inserting comment 2", db, "INSERT INTO comments (id, issue_id, position_in_sequence, content, author_id, created, modified) VALUES (?, ?, ?, ?, ?, ?, ?)", 8, 10001, 1, `"later"`, "a1", "c2", "m2")
	database.MustExec(t, "inserting comment 1", db, "INSERT INTO comments (id, issue_id, position_in_sequence, content, author_id, created, modified) VALUES (?, ?, ?, ?, ?, ?, ?)", 9, 10001, 0, `"earlier"`, "a1", "c1", "m1")
	database.MustExec(t, "inserting person", db, "INSERT INTO people (account_id, display_name) VALUES (?, ?)", "a1", "Ann")

	ticket, err := LoadTicket(db, "ABC-1")
	assert.NilError(t, err, "loading ticket")

	assert.Equal(t, ticket.Issue.ID, int64(10001), "issue id mismatch")
	assert.DeepEqual(t, ticket.Fields, map[string]string{"summary": `"Crash"`}, "fields mismatch")
	assert.DeepEqual(t, ticket.Attachments, []database.Attachment{
		{ID: 1, UUID: sql.NullString{}, IssueID: 10001, Filename: "a.txt", MimeType: "text/plain", FileSize: 3},
	}, "attachments mismatch")
	assert.Equal(t, len(ticket.Comments), 2, "comment count mismatch")
	assert.Equal(t, ticket.Comments[0].ID, int64(9), "comment order mismatch")
	assert.Equal(t, ticket.People["a1"], "Ann", "people mismatch")
}

func TestLoadTicketNotFound(t *testing.T) {
	db := database.InitTestMemoryDB(t)

	_, err := LoadTicket(db, "ABC-404")
	assert.Equal(t, errors.Cause(err), database.ErrNotFound, "error mismatch")
}
