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

package jira

import (
	"encoding/json"
)

// Project is a project in the project search response
type Project struct {
	ID          string `json:"id"`
	Key         string `json:"key"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Archived    bool   `json:"archived,omitempty"`
}

// ProjectPage is a page of the project search response
type ProjectPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	IsLast     bool      `json:"isLast"`
	Values     []Project `json:"values"`
}

// IssueType is an issue type
type IssueType struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Field is a field definition
type Field struct {
	ID     string          `json:"id"`
	Key    string          `json:"key"`
	Name   string          `json:"name"`
	Custom bool            `json:"custom"`
	Schema json.RawMessage `json:"schema,omitempty"`
}

// IssueLinkType is a link type
type IssueLinkType struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Inward  string `json:"inward"`
	Outward string `json:"outward"`
}

// IssueLinkTypesResp is the response of the link type listing
type IssueLinkTypesResp struct {
	IssueLinkTypes []IssueLinkType `json:"issueLinkTypes"`
}

// Issue is an issue with its fields left undecoded, since their shape
// depends on the field definitions.
type Issue struct {
	ID     string                     `json:"id"`
	Key    string                     `json:"key"`
	Fields map[string]json.RawMessage `json:"fields"`
}

// SearchResult is a page of the issue search response
type SearchResult struct {
	StartAt    int     `json:"startAt"`
	MaxResults int     `json:"maxResults"`
	Total      int     `json:"total"`
	Issues     []Issue `json:"issues"`
}

// LinkedIssue is the other side of an issue link
type LinkedIssue struct {
	ID  string `json:"id"`
	Key string `json:"key"`
}

// IssueLink is an element of the issuelinks field
type IssueLink struct {
	ID           string        `json:"id"`
	Type         IssueLinkType `json:"type"`
	InwardIssue  *LinkedIssue  `json:"inwardIssue,omitempty"`
	OutwardIssue *LinkedIssue  `json:"outwardIssue,omitempty"`
}

// Attachment is an element of the attachment field
type Attachment struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	MimeType string `json:"mimeType"`
	Size     *int64 `json:"size"`
	Content  string `json:"content,omitempty"`
}

// User is a user reference
type User struct {
	AccountID   string `json:"accountId"`
	DisplayName string `json:"displayName"`
}

// Comment is a comment. Body is a string for API v2 and a document for v3.
type Comment struct {
	ID      string          `json:"id"`
	Author  *User           `json:"author,omitempty"`
	Body    json.RawMessage `json:"body"`
	Created string          `json:"created"`
	Updated string          `json:"updated"`
}

// CommentPage is a page of the comment listing
type CommentPage struct {
	StartAt    int       `json:"startAt"`
	MaxResults int       `json:"maxResults"`
	Total      int       `json:"total"`
	Comments   []Comment `json:"comments"`
}
