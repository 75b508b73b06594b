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

package syncer

import (
	"database/sql"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/reconcile"
	"github.com/pkg/errors"
)

const (
	fieldUpdated     = "updated"
	fieldIssueLinks  = "issuelinks"
	fieldAttachments = "attachment"
	fieldProject     = "project"
)

// parseAll parses every record, logging and skipping the malformed ones
func parseAll[S, T any](kind string, records []S, parse func(S) (T, error)) []T {
	ret := make([]T, 0, len(records))

	for i, r := range records {
		row, err := parse(r)
		if err != nil {
			log.WithFields(log.Fields{
				"kind":  kind,
				"index": i,
			}).ErrorWrap(err, "skipping malformed record")
			continue
		}

		ret = append(ret, row)
	}

	return ret
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid id %q", s)
	}

	return id, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	return trimmed == "" || trimmed == "null"
}

func parseProject(p jira.Project) (database.Project, error) {
	id, err := parseID(p.ID)
	if err != nil {
		return database.Project{}, err
	}
	if p.Key == "" {
		return database.Project{}, errors.Errorf("project %d has no key", id)
	}

	return database.Project{
		ID:          id,
		Key:         p.Key,
		Name:        p.Name,
		Description: p.Description,
		Archived:    p.Archived,
	}, nil
}

func parseIssueType(t jira.IssueType) (database.IssueType, error) {
	id, err := parseID(t.ID)
	if err != nil {
		return database.IssueType{}, err
	}

	return database.IssueType{ID: id, Name: t.Name, Description: t.Description}, nil
}

func parseLinkType(t jira.IssueLinkType) (database.LinkType, error) {
	id, err := parseID(t.ID)
	if err != nil {
		return database.LinkType{}, err
	}

	return database.LinkType{
		ID:          id,
		Name:        t.Name,
		OutwardName: t.Outward,
		InwardName:  t.Inward,
	}, nil
}

func parseField(f jira.Field) (database.Field, error) {
	if f.ID == "" {
		return database.Field{}, errors.New("field has no id")
	}

	key := f.Key
	if key == "" {
		key = f.ID
	}

	var schema string
	if !isNull(f.Schema) {
		s, err := reconcile.CanonicalJSON(f.Schema)
		if err != nil {
			return database.Field{}, errors.Wrapf(err, "normalising schema of field %s", f.ID)
		}
		schema = s
	}

	return database.Field{
		ID:        f.ID,
		Key:       key,
		HumanName: f.Name,
		Schema:    schema,
		IsCustom:  f.Custom,
	}, nil
}

// parsedIssue is an issue with its populated fields
type parsedIssue struct {
	issue  database.Issue
	fields []database.IssueField
	raw    jira.Issue
}

// projectKeyOf returns the project of an issue from its project field, or
// from its key
func projectKeyOf(issue jira.Issue) string {
	if raw, ok := issue.Fields[fieldProject]; ok && !isNull(raw) {
		var p jira.Project
		if err := json.Unmarshal(raw, &p); err == nil && p.Key != "" {
			return p.Key
		}
	}

	if i := strings.LastIndex(issue.Key, "-"); i > 0 {
		return issue.Key[:i]
	}

	return ""
}

// parseIssue turns a remote issue into its row and one field row per
// populated field. A field whose value cannot be normalised is skipped.
func parseIssue(issue jira.Issue, projectKey string) (parsedIssue, error) {
	id, err := parseID(issue.ID)
	if err != nil {
		return parsedIssue{}, err
	}
	if issue.Key == "" {
		return parsedIssue{}, errors.Errorf("issue %d has no key", id)
	}
	if projectKey == "" {
		projectKey = projectKeyOf(issue)
	}

	ret := parsedIssue{
		issue: database.Issue{ID: id, Key: issue.Key, ProjectKey: projectKey},
		raw:   issue,
	}

	for fieldID, raw := range issue.Fields {
		if isNull(raw) {
			continue
		}

		value, err := reconcile.CanonicalJSON(raw)
		if err != nil {
			log.WithFields(log.Fields{
				"issue": issue.Key,
				"field": fieldID,
			}).ErrorWrap(err, "skipping malformed field value")
			continue
		}

		ret.fields = append(ret.fields, database.IssueField{IssueID: id, FieldID: fieldID, Value: value})
	}

	return ret, nil
}

// rawList decodes a field holding a JSON array
func rawList(issue jira.Issue, fieldID string) ([]json.RawMessage, error) {
	raw, ok := issue.Fields[fieldID]
	if !ok || isNull(raw) {
		return nil, nil
	}

	var ret []json.RawMessage
	if err := json.Unmarshal(raw, &ret); err != nil {
		return nil, errors.Wrapf(err, "decoding %s of %s", fieldID, issue.Key)
	}

	return ret, nil
}

// parseLinks returns the links of an issue in their stored orientation
func parseLinks(issueID int64, issue jira.Issue) ([]database.IssueLink, error) {
	records, err := rawList(issue, fieldIssueLinks)
	if err != nil {
		return nil, err
	}

	return parseAll("issue link", records, func(raw json.RawMessage) (database.IssueLink, error) {
		var l jira.IssueLink
		if err := json.Unmarshal(raw, &l); err != nil {
			return database.IssueLink{}, errors.Wrap(err, "decoding link")
		}

		id, err := parseID(l.ID)
		if err != nil {
			return database.IssueLink{}, err
		}
		typeID, err := parseID(l.Type.ID)
		if err != nil {
			return database.IssueLink{}, errors.Wrapf(err, "link %d type", id)
		}

		other := l.InwardIssue
		if other == nil {
			other = l.OutwardIssue
		}
		if other == nil {
			return database.IssueLink{}, errors.Errorf("link %d has no linked issue", id)
		}
		otherID, err := parseID(other.ID)
		if err != nil {
			return database.IssueLink{}, errors.Wrapf(err, "link %d issue", id)
		}
		if otherID == issueID {
			return database.IssueLink{}, errors.Errorf("link %d links issue %d to itself", id, issueID)
		}

		return database.NewIssueLink(id, typeID, issueID, otherID), nil
	}), nil
}

// parseAttachments returns the attachment metadata of an issue, with a uuid
// guessed from the file name where possible
func parseAttachments(issueID int64, issue jira.Issue) ([]database.Attachment, error) {
	records, err := rawList(issue, fieldAttachments)
	if err != nil {
		return nil, err
	}

	return parseAll("attachment", records, func(raw json.RawMessage) (database.Attachment, error) {
		var a jira.Attachment
		if err := json.Unmarshal(raw, &a); err != nil {
			return database.Attachment{}, errors.Wrap(err, "decoding attachment")
		}

		id, err := parseID(a.ID)
		if err != nil {
			return database.Attachment{}, err
		}
		if a.Filename == "" {
			return database.Attachment{}, errors.Errorf("attachment %d has no file name", id)
		}
		if a.Size == nil || *a.Size < 0 {
			return database.Attachment{}, errors.Errorf("attachment %d has no size", id)
		}

		ret := database.Attachment{
			ID:       id,
			IssueID:  issueID,
			Filename: a.Filename,
			MimeType: a.MimeType,
			FileSize: *a.Size,
		}
		if guess, ok := GuessUUID(a.Filename); ok {
			ret.UUID = sql.NullString{String: guess, Valid: true}
		}

		return ret, nil
	}), nil
}

// parseComment returns a comment and its author
func parseComment(issueID int64, position int, c jira.Comment) (database.Comment, database.Person, error) {
	id, err := parseID(c.ID)
	if err != nil {
		return database.Comment{}, database.Person{}, err
	}
	if c.Author == nil || c.Author.AccountID == "" || c.Author.DisplayName == "" {
		return database.Comment{}, database.Person{}, errors.Errorf("comment %d has no author", id)
	}
	if c.Created == "" || c.Updated == "" {
		return database.Comment{}, database.Person{}, errors.Errorf("comment %d has no timestamps", id)
	}

	content := `""`
	if !isNull(c.Body) {
		content, err = reconcile.CanonicalJSON(c.Body)
		if err != nil {
			return database.Comment{}, database.Person{}, errors.Wrapf(err, "normalising body of comment %d", id)
		}
	}

	comment := database.Comment{
		ID:       id,
		IssueID:  issueID,
		Position: position,
		Content:  content,
		AuthorID: c.Author.AccountID,
		Created:  c.Created,
		Modified: c.Updated,
	}
	person := database.Person{AccountID: c.Author.AccountID, DisplayName: c.Author.DisplayName}

	return comment, person, nil
}
