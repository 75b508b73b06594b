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

// Table describes how rows of one entity kind are written. Delete is empty
// for kinds that are never deleted.
type Table[T any] struct {
	Kind       string
	Upsert     string
	UpsertArgs func(T) []interface{}
	Delete     string
	DeleteArgs func(T) []interface{}
}

// Deletes returns true if rows of the kind can be deleted
func (t Table[T]) Deletes() bool {
	return t.Delete != ""
}

// Projects is the projects table
var Projects = Table[Project]{
	Kind: "project",
	Upsert: `INSERT INTO projects (id, key, name, description, archived) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			key = excluded.key,
			name = excluded.name,
			description = excluded.description,
			archived = excluded.archived`,
	UpsertArgs: func(p Project) []interface{} {
		return []interface{}{p.ID, p.Key, p.Name, p.Description, p.Archived}
	},
}

// IssueTypes is the issue_types table
var IssueTypes = Table[IssueType]{
	Kind: "issue type",
	Upsert: `INSERT INTO issue_types (id, name, description) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			description = excluded.description`,
	UpsertArgs: func(t IssueType) []interface{} {
		return []interface{}{t.ID, t.Name, t.Description}
	},
}

// LinkTypes is the link_types table
var LinkTypes = Table[LinkType]{
	Kind: "link type",
	Upsert: `INSERT INTO link_types (id, name, outward_name, inward_name) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			outward_name = excluded.outward_name,
			inward_name = excluded.inward_name`,
	UpsertArgs: func(t LinkType) []interface{} {
		return []interface{}{t.ID, t.Name, t.OutwardName, t.InwardName}
	},
}

// Fields is the fields table
var Fields = Table[Field]{
	Kind: "field",
	Upsert: `INSERT INTO fields (id, key, human_name, schema, is_custom) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			key = excluded.key,
			human_name = excluded.human_name,
			schema = excluded.schema,
			is_custom = excluded.is_custom`,
	UpsertArgs: func(f Field) []interface{} {
		return []interface{}{f.ID, f.Key, f.HumanName, f.Schema, f.IsCustom}
	},
}

// Issues is the issues table
var Issues = Table[Issue]{
	Kind: "issue",
	Upsert: `INSERT INTO issues (id, key, project_key) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			key = excluded.key,
			project_key = excluded.project_key`,
	UpsertArgs: func(i Issue) []interface{} {
		return []interface{}{i.ID, i.Key, i.ProjectKey}
	},
}

// IssueFields is the issue_fields table
var IssueFields = Table[IssueField]{
	Kind: "issue field",
	Upsert: `INSERT INTO issue_fields (issue_id, field_id, value) VALUES (?, ?, ?)
		ON CONFLICT(issue_id, field_id) DO UPDATE SET
			value = excluded.value`,
	UpsertArgs: func(f IssueField) []interface{} {
		return []interface{}{f.IssueID, f.FieldID, f.Value}
	},
	Delete: "DELETE FROM issue_fields WHERE issue_id = ? AND field_id = ?",
	DeleteArgs: func(f IssueField) []interface{} {
		return []interface{}{f.IssueID, f.FieldID}
	},
}

// IssueLinks is the issue_links table
var IssueLinks = Table[IssueLink]{
	Kind: "issue link",
	Upsert: `INSERT INTO issue_links (id, link_type_id, outward_issue_id, inward_issue_id) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			link_type_id = excluded.link_type_id,
			outward_issue_id = excluded.outward_issue_id,
			inward_issue_id = excluded.inward_issue_id`,
	UpsertArgs: func(l IssueLink) []interface{} {
		return []interface{}{l.ID, l.LinkTypeID, l.OutwardIssueID, l.InwardIssueID}
	},
	Delete: "DELETE FROM issue_links WHERE id = ?",
	DeleteArgs: func(l IssueLink) []interface{} {
		return []interface{}{l.ID}
	},
}

// Attachments is the attachments table. A resolved uuid is never replaced by
// a null guess, and stored content is dropped when the file changes.
var Attachments = Table[Attachment]{
	Kind: "attachment",
	Upsert: `INSERT INTO attachments (id, uuid, issue_id, filename, mime_type, file_size) VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			uuid = COALESCE(excluded.uuid, attachments.uuid),
			issue_id = excluded.issue_id,
			filename = excluded.filename,
			mime_type = excluded.mime_type,
			content = CASE
				WHEN attachments.file_size = excluded.file_size AND attachments.filename = excluded.filename
				THEN attachments.content
				ELSE NULL
			END,
			file_size = excluded.file_size`,
	UpsertArgs: func(a Attachment) []interface{} {
		return []interface{}{a.ID, a.UUID, a.IssueID, a.Filename, a.MimeType, a.FileSize}
	},
	Delete: "DELETE FROM attachments WHERE id = ?",
	DeleteArgs: func(a Attachment) []interface{} {
		return []interface{}{a.ID}
	},
}

// Comments is the comments table
var Comments = Table[Comment]{
	Kind: "comment",
	Upsert: `INSERT INTO comments (id, issue_id, position_in_sequence, content, author_id, created, modified) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			issue_id = excluded.issue_id,
			position_in_sequence = excluded.position_in_sequence,
			content = excluded.content,
			author_id = excluded.author_id,
			created = excluded.created,
			modified = excluded.modified`,
	UpsertArgs: func(c Comment) []interface{} {
		return []interface{}{c.ID, c.IssueID, c.Position, c.Content, c.AuthorID, c.Created, c.Modified}
	},
	Delete: "DELETE FROM comments WHERE id = ?",
	DeleteArgs: func(c Comment) []interface{} {
		return []interface{}{c.ID}
	},
}

// People is the people table
var People = Table[Person]{
	Kind: "person",
	Upsert: `INSERT INTO people (account_id, display_name) VALUES (?, ?)
		ON CONFLICT(account_id) DO UPDATE SET
			display_name = excluded.display_name`,
	UpsertArgs: func(p Person) []interface{} {
		return []interface{}{p.AccountID, p.DisplayName}
	},
}
