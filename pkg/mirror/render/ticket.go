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

// Package render turns mirrored issues into markdown documents
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/pkg/errors"
)

// Ticket is everything the mirror knows about one issue
type Ticket struct {
	Issue       database.Issue
	Fields      map[string]string
	Attachments []database.Attachment
	Comments    []database.Comment
	People      map[string]string
}

var metadataFields = []struct {
	label string
	id    string
}{
	{"Type", "issuetype"},
	{"Status", "status"},
	{"Priority", "priority"},
	{"Assignee", "assignee"},
	{"Reporter", "reporter"},
	{"Created", "created"},
	{"Updated", "updated"},
}

// LoadTicket reads an issue and everything attached to it
func LoadTicket(db *database.DB, key string) (Ticket, error) {
	var ret Ticket

	issue, err := database.GetIssueByKey(db, key)
	if err != nil {
		return ret, errors.Wrapf(err, "getting issue %s", key)
	}
	ret.Issue = issue

	fields, err := database.LoadIssueFields(db, issue.ID)
	if err != nil {
		return ret, errors.Wrap(err, "loading fields")
	}
	ret.Fields = make(map[string]string, len(fields))
	for _, f := range fields {
		ret.Fields[f.FieldID] = f.Value
	}

	ret.Attachments, err = database.LoadAttachments(db, issue.ID)
	if err != nil {
		return ret, errors.Wrap(err, "loading attachments")
	}

	ret.Comments, err = database.LoadComments(db, issue.ID)
	if err != nil {
		return ret, errors.Wrap(err, "loading comments")
	}

	var authorIDs []string
	for _, c := range ret.Comments {
		authorIDs = append(authorIDs, c.AuthorID)
	}
	people, err := database.LoadPeople(db, authorIDs)
	if err != nil {
		return ret, errors.Wrap(err, "loading people")
	}
	ret.People = make(map[string]string, len(people))
	for _, p := range people {
		ret.People[p.AccountID] = p.DisplayName
	}

	return ret, nil
}

// displayValue returns a short human readable form of a stored field value
func displayValue(value string) string {
	var v interface{}
	if err := json.Unmarshal([]byte(value), &v); err != nil {
		return value
	}

	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case map[string]interface{}:
		for _, k := range []string{"displayName", "name", "value", "key"} {
			if s, ok := t[k].(string); ok {
				return s
			}
		}
	case []interface{}:
		var parts []string
		for _, item := range t {
			b, err := json.Marshal(item)
			if err != nil {
				continue
			}
			if s := displayValue(string(b)); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	}

	return value
}

// Render returns the markdown document of a ticket
func Render(t Ticket) string {
	var b strings.Builder

	summary := displayValue(t.Fields["summary"])
	if summary != "" {
		fmt.Fprintf(&b, "# %s: %s\n", t.Issue.Key, summary)
	} else {
		fmt.Fprintf(&b, "# %s\n", t.Issue.Key)
	}

	var meta []string
	for _, m := range metadataFields {
		value, ok := t.Fields[m.id]
		if !ok {
			continue
		}
		if s := displayValue(value); s != "" {
			meta = append(meta, fmt.Sprintf("- %s: %s", m.label, s))
		}
	}
	if len(meta) > 0 {
		b.WriteString("\n")
		b.WriteString(strings.Join(meta, "\n"))
		b.WriteString("\n")
	}

	if description := Text(t.Fields["description"]); description != "" {
		b.WriteString("\n## Description\n\n")
		b.WriteString(description)
		b.WriteString("\n")
	}

	if len(t.Attachments) > 0 {
		b.WriteString("\n## Attachments\n\n")
		for _, a := range t.Attachments {
			fmt.Fprintf(&b, "- %s (%s, %d bytes)\n", a.Filename, a.MimeType, a.FileSize)
		}
	}

	if len(t.Comments) > 0 {
		b.WriteString("\n## Comments\n")
		for _, c := range t.Comments {
			author := t.People[c.AuthorID]
			if author == "" {
				author = c.AuthorID
			}

			fmt.Fprintf(&b, "\n### %s, %s\n\n", author, c.Created)
			b.WriteString(Text(c.Content))
			b.WriteString("\n")
		}
	}

	return b.String()
}
