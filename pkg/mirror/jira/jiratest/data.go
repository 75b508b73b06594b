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

package jiratest

import (
	"encoding/json"
	"strings"

	"github.com/dnote/jiramirror/pkg/mirror/jira"
)

// SetPageLimit sets the largest page the server returns
func (s *Server) SetPageLimit(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pageLimit = n
}

// SetProjects replaces the projects
func (s *Server) SetProjects(projects ...jira.Project) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.projects = projects
}

// SetIssueTypes replaces the issue types
func (s *Server) SetIssueTypes(types ...jira.IssueType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issueTypes = types
}

// SetFields replaces the field definitions
func (s *Server) SetFields(fields ...jira.Field) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.fields = fields
}

// SetLinkTypes replaces the link types
func (s *Server) SetLinkTypes(types ...jira.IssueLinkType) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.linkTypes = types
}

// SetIssues replaces the issues of a project. Search returns them in the
// given order, which tests keep sorted by last update, newest first.
func (s *Server) SetIssues(projectKey string, issues ...jira.Issue) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.issues[strings.ToUpper(projectKey)] = issues
}

// SetComments replaces the comments of an issue
func (s *Server) SetComments(issueKey string, comments ...jira.Comment) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.comments[issueKey] = comments
}

// SetFile sets the content served for an attachment. The download redirects
// to a URL whose path contains the uuid.
func (s *Server) SetFile(attachmentID int64, uuid string, body []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.files[attachmentID] = File{UUID: uuid, Body: body}
}

// RequireCookie makes attachment downloads require the given session cookie
func (s *Server) RequireCookie(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cookieName = name
	s.cookieVal = value
}

// FailPath makes every request to the path fail with the status
func (s *Server) FailPath(path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[path] = failure{status: status}
}

// FailPathAfter lets the first n requests to the path succeed and makes
// every later one fail with the status
func (s *Server) FailPathAfter(path string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.failures[path] = failure{status: status, after: n}
}

// Requests returns every request received so far as path?query
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]string{}, s.requests...)
}

// CountRequests returns the number of requests whose path?query starts with prefix
func (s *Server) CountRequests(prefix string) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for _, r := range s.requests {
		if strings.HasPrefix(r, prefix) {
			n++
		}
	}

	return n
}

// ResetRequests forgets the recorded requests
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.requests = nil
}

// RawJSON marshals v, panicking on failure. It is meant for fixtures.
func RawJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}

	return b
}

// NewIssue builds an issue whose fields are marshalled from the given values
func NewIssue(id, key string, fields map[string]interface{}) jira.Issue {
	raw := make(map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		raw[k] = RawJSON(v)
	}

	return jira.Issue{ID: id, Key: key, Fields: raw}
}
