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
)

// Project is a remote project
type Project struct {
	ID          int64
	Key         string
	Name        string
	Description string
	Archived    bool
}

// RowKey returns the identity of the row
func (p Project) RowKey() int64 { return p.ID }

// IssueType is a global issue type
type IssueType struct {
	ID          int64
	Name        string
	Description string
}

// RowKey returns the identity of the row
func (t IssueType) RowKey() int64 { return t.ID }

// LinkType is a directional issue link type
type LinkType struct {
	ID          int64
	Name        string
	OutwardName string
	InwardName  string
}

// RowKey returns the identity of the row
func (t LinkType) RowKey() int64 { return t.ID }

// Field is a system or custom issue field definition. Schema is JSON text.
type Field struct {
	ID        string
	Key       string
	HumanName string
	Schema    string
	IsCustom  bool
}

// RowKey returns the identity of the row
func (f Field) RowKey() string { return f.ID }

// Issue is a remote issue
type Issue struct {
	ID         int64
	Key        string
	ProjectKey string
}

// RowKey returns the identity of the row
func (i Issue) RowKey() int64 { return i.ID }

// IssueFieldKey identifies the value of one field on one issue
type IssueFieldKey struct {
	IssueID int64
	FieldID string
}

// IssueField is the JSON text value of a populated field of an issue
type IssueField struct {
	IssueID int64
	FieldID string
	Value   string
}

// RowKey returns the identity of the row
func (f IssueField) RowKey() IssueFieldKey {
	return IssueFieldKey{IssueID: f.IssueID, FieldID: f.FieldID}
}

// IssueLink links two issues. Only the orientation with
// InwardIssueID > OutwardIssueID is stored.
type IssueLink struct {
	ID             int64
	LinkTypeID     int64
	OutwardIssueID int64
	InwardIssueID  int64
}

// RowKey returns the identity of the row
func (l IssueLink) RowKey() int64 { return l.ID }

// NewIssueLink returns a link between the two issues in its stored orientation
func NewIssueLink(id, linkTypeID, a, b int64) IssueLink {
	if a > b {
		a, b = b, a
	}

	return IssueLink{
		ID:             id,
		LinkTypeID:     linkTypeID,
		OutwardIssueID: a,
		InwardIssueID:  b,
	}
}

// Attachment is the metadata of a file attached to an issue. The content is
// stored in the same table but read and written separately.
type Attachment struct {
	ID       int64
	UUID     sql.NullString
	IssueID  int64
	Filename string
	MimeType string
	FileSize int64
}

// RowKey returns the identity of the row
func (a Attachment) RowKey() int64 { return a.ID }

// Comment is a comment on an issue
type Comment struct {
	ID       int64
	IssueID  int64
	Position int
	Content  string
	AuthorID string
	Created  string
	Modified string
}

// RowKey returns the identity of the row
func (c Comment) RowKey() int64 { return c.ID }

// Person is a remote user referenced by comments
type Person struct {
	AccountID   string
	DisplayName string
}

// RowKey returns the identity of the row
func (p Person) RowKey() string { return p.AccountID }
