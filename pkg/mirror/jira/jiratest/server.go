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

// Package jiratest provides an in-process Jira site for tests
package jiratest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/gorilla/mux"
	"github.com/gorilla/schema"
)

// DefaultPageLimit is the maximum page size the server honours by default
const DefaultPageLimit = 50

var projectClause = regexp.MustCompile(`project\s*=\s*"?([A-Za-z0-9_]+)"?`)

type pageQuery struct {
	StartAt    int    `schema:"startAt"`
	MaxResults int    `schema:"maxResults"`
	JQL        string `schema:"jql"`
	Fields     string `schema:"fields"`
	Expand     string `schema:"expand"`
}

// File is the content served for an attachment
type File struct {
	UUID string
	Body []byte
}

// Server is a fake Jira site. The zero state has no data; tests fill it with
// the setters.
type Server struct {
	*httptest.Server

	decoder *schema.Decoder

	mu         sync.Mutex
	requests   []string
	pageLimit  int
	projects   []jira.Project
	issueTypes []jira.IssueType
	fields     []jira.Field
	linkTypes  []jira.IssueLinkType
	issues     map[string][]jira.Issue
	comments   map[string][]jira.Comment
	files      map[int64]File
	cookieName string
	cookieVal  string
	failures   map[string]failure
}

// failure makes requests to a path fail once it has served after requests
type failure struct {
	status int
	after  int
	served int
}

// New starts a fake Jira site
func New() *Server {
	s := &Server{
		decoder:   schema.NewDecoder(),
		pageLimit: DefaultPageLimit,
		issues:    map[string][]jira.Issue{},
		comments:  map[string][]jira.Comment{},
		files:     map[int64]File{},
		failures:  map[string]failure{},
	}
	s.decoder.IgnoreUnknownKeys(true)

	r := mux.NewRouter()
	r.Use(s.record)

	api := r.PathPrefix("/rest/api/2").Subrouter()
	api.HandleFunc("/attachment/content/{id:[0-9]+}", s.getAttachmentContent).Methods(http.MethodGet)

	authed := api.NewRoute().Subrouter()
	authed.Use(s.requireAuth)
	authed.HandleFunc("/issuetype", s.getIssueTypes).Methods(http.MethodGet)
	authed.HandleFunc("/field", s.getFields).Methods(http.MethodGet)
	authed.HandleFunc("/issueLinkType", s.getLinkTypes).Methods(http.MethodGet)
	authed.HandleFunc("/project/search", s.searchProjects).Methods(http.MethodGet)
	authed.HandleFunc("/search", s.searchIssues).Methods(http.MethodGet)
	authed.HandleFunc("/issue/{key}", s.getIssue).Methods(http.MethodGet)
	authed.HandleFunc("/issue/{key}/comment", s.getComments).Methods(http.MethodGet)

	r.HandleFunc("/media/file/{uuid}/binary", s.getFile).Methods(http.MethodGet)

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		entry := r.URL.Path
		if r.URL.RawQuery != "" {
			entry = entry + "?" + r.URL.RawQuery
		}
		s.requests = append(s.requests, entry)
		f, ok := s.failures[r.URL.Path]
		fail := ok && f.served >= f.after
		if ok && !fail {
			f.served++
			s.failures[r.URL.Path] = f
		}
		s.mu.Unlock()

		if fail {
			http.Error(w, "injected failure", f.status)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (s *Server) decodePage(w http.ResponseWriter, r *http.Request) (pageQuery, bool) {
	var q pageQuery
	if err := s.decoder.Decode(&q, r.URL.Query()); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return q, false
	}

	if q.MaxResults <= 0 || q.MaxResults > s.pageLimit {
		q.MaxResults = s.pageLimit
	}

	return q, true
}

func window(total, startAt, size int) (int, int) {
	if startAt > total {
		startAt = total
	}
	end := startAt + size
	if end > total {
		end = total
	}

	return startAt, end
}

func (s *Server) getIssueTypes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, append([]jira.IssueType{}, s.issueTypes...))
}

func (s *Server) getFields(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, append([]jira.Field{}, s.fields...))
}

func (s *Server) getLinkTypes(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	writeJSON(w, jira.IssueLinkTypesResp{IssueLinkTypes: append([]jira.IssueLinkType{}, s.linkTypes...)})
}

func (s *Server) searchProjects(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.decodePage(w, r)
	if !ok {
		return
	}

	start, end := window(len(s.projects), q.StartAt, q.MaxResults)
	writeJSON(w, jira.ProjectPage{
		StartAt:    start,
		MaxResults: q.MaxResults,
		Total:      len(s.projects),
		IsLast:     end == len(s.projects),
		Values:     append([]jira.Project{}, s.projects[start:end]...),
	})
}

func (s *Server) searchIssues(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q, ok := s.decodePage(w, r)
	if !ok {
		return
	}

	m := projectClause.FindStringSubmatch(q.JQL)
	if m == nil {
		http.Error(w, "unsupported jql", http.StatusBadRequest)
		return
	}

	issues := s.issues[strings.ToUpper(m[1])]
	start, end := window(len(issues), q.StartAt, q.MaxResults)
	writeJSON(w, jira.SearchResult{
		StartAt:    start,
		MaxResults: q.MaxResults,
		Total:      len(issues),
		Issues:     append([]jira.Issue{}, issues[start:end]...),
	})
}

func (s *Server) findIssue(key string) (jira.Issue, bool) {
	for _, issues := range s.issues {
		for _, issue := range issues {
			if issue.Key == key || issue.ID == key {
				return issue, true
			}
		}
	}

	return jira.Issue{}, false
}

func (s *Server) getIssue(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	issue, ok := s.findIssue(mux.Vars(r)["key"])
	if !ok {
		http.Error(w, `{"errorMessages":["Issue does not exist or you do not have permission to see it."]}`, http.StatusNotFound)
		return
	}

	writeJSON(w, issue)
}

func (s *Server) getComments(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := mux.Vars(r)["key"]
	if _, ok := s.findIssue(key); !ok {
		http.Error(w, "issue not found", http.StatusNotFound)
		return
	}

	q, ok := s.decodePage(w, r)
	if !ok {
		return
	}

	comments := s.comments[key]
	start, end := window(len(comments), q.StartAt, q.MaxResults)
	writeJSON(w, jira.CommentPage{
		StartAt:    start,
		MaxResults: q.MaxResults,
		Total:      len(comments),
		Comments:   append([]jira.Comment{}, comments[start:end]...),
	})
}

func (s *Server) getAttachmentContent(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cookieName != "" {
		c, err := r.Cookie(s.cookieName)
		if err != nil || c.Value != s.cookieVal {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
	}

	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	f, ok := s.files[id]
	if !ok {
		http.Error(w, "attachment not found", http.StatusNotFound)
		return
	}

	http.Redirect(w, r, fmt.Sprintf("/media/file/%s/binary", f.UUID), http.StatusFound)
}

func (s *Server) getFile(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	uuid := mux.Vars(r)["uuid"]
	for _, f := range s.files {
		if f.UUID == uuid {
			w.Header().Set("Content-Type", "application/octet-stream")
			w.Write(f.Body)
			return
		}
	}

	http.Error(w, "file not found", http.StatusNotFound)
}
