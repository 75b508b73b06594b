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
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/dnote/jiramirror/pkg/assert"
	"github.com/pkg/errors"
)

func writeJSON(t *testing.T, w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Fatal(errors.Wrap(err, "encoding response"))
	}
}

func TestBasicAuth(t *testing.T) {
	var gotUser, gotPass string
	var gotOK bool
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, gotPass, gotOK = r.BasicAuth()
		writeJSON(t, w, []IssueType{{ID: "1", Name: "Bug"}})
	}))
	defer ts.Close()

	c := New(Options{Endpoint: ts.URL + "/", Email: "me@example.com", APIToken: "secret"})

	types, err := c.GetIssueTypes(context.Background())
	assert.NilError(t, err, "getting issue types")

	assert.Equal(t, gotOK, true, "basic auth missing")
	assert.Equal(t, gotUser, "me@example.com", "user mismatch")
	assert.Equal(t, gotPass, "secret", "password mismatch")
	assert.DeepEqual(t, types, []IssueType{{ID: "1", Name: "Bug"}}, "types mismatch")
}

func TestBearerAuth(t *testing.T) {
	var got string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		writeJSON(t, w, IssueLinkTypesResp{IssueLinkTypes: []IssueLinkType{{ID: "10", Name: "Blocks", Inward: "is blocked by", Outward: "blocks"}}})
	}))
	defer ts.Close()

	c := New(Options{Endpoint: ts.URL, BearerToken: "pat"})

	types, err := c.GetLinkTypes(context.Background())
	assert.NilError(t, err, "getting link types")

	assert.Equal(t, got, "Bearer pat", "authorization mismatch")
	assert.Equal(t, len(types), 1, "type count")
	assert.Equal(t, types[0].Outward, "blocks", "outward mismatch")
}

func TestNoCredentials(t *testing.T) {
	c := New(Options{Endpoint: "http://127.0.0.1:1"})

	_, err := c.GetFields(context.Background())
	assert.Equal(t, errors.Cause(err), ErrNoCredentials, "error mismatch")
}

func TestHTTPError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Issue does not exist", http.StatusNotFound)
	}))
	defer ts.Close()

	c := New(Options{Endpoint: ts.URL, APIToken: "t"})

	_, err := c.GetIssue(context.Background(), "PROJ-1")
	assert.Equal(t, IsNotFound(err), true, "expected a not found error")

	httpErr, ok := errors.Cause(err).(*HTTPError)
	assert.Equal(t, ok, true, "expected an HTTPError")
	assert.Equal(t, httpErr.Message, "Issue does not exist", "message mismatch")
}

func TestContentTypeMismatch(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>login</html>"))
	}))
	defer ts.Close()

	c := New(Options{Endpoint: ts.URL, APIToken: "t"})

	_, err := c.GetFields(context.Background())
	assert.Equal(t, errors.Cause(err), ErrContentTypeMismatch, "error mismatch")
}

func TestGetProjectsPaginates(t *testing.T) {
	var calls []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startAt := r.URL.Query().Get("startAt")
		calls = append(calls, startAt)

		switch startAt {
		case "0":
			writeJSON(t, w, ProjectPage{Total: 3, Values: []Project{{ID: "1", Key: "A"}, {ID: "2", Key: "B"}}})
		case "2":
			writeJSON(t, w, ProjectPage{Total: 3, IsLast: true, Values: []Project{{ID: "3", Key: "C"}}})
		default:
			t.Errorf("unexpected startAt %s", startAt)
		}
	}))
	defer ts.Close()

	c := New(Options{Endpoint: ts.URL, APIToken: "t"})

	projects, err := c.GetProjects(context.Background())
	assert.NilError(t, err, "getting projects")

	assert.DeepEqual(t, calls, []string{"0", "2"}, "calls mismatch")
	assert.Equal(t, len(projects), 3, "project count")
}

func TestGetComments(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, r.URL.Path, "/rest/api/2/issue/PROJ-1/comment", "path mismatch")

		startAt, _ := strconv.Atoi(r.URL.Query().Get("startAt"))
		var comments []Comment
		if startAt < 2 {
			comments = []Comment{{ID: fmt.Sprint(100 + startAt), Body: json.RawMessage(`"hi"`)}}
		}
		writeJSON(t, w, CommentPage{StartAt: startAt, Total: 2, Comments: comments})
	}))
	defer ts.Close()

	c := New(Options{Endpoint: ts.URL, APIToken: "t"})

	comments, err := c.GetComments(context.Background(), "PROJ-1")
	assert.NilError(t, err, "getting comments")

	assert.Equal(t, len(comments), 2, "comment count")
	assert.Equal(t, comments[0].ID, "100", "first id")
	assert.Equal(t, comments[1].ID, "101", "second id")
}

func TestSearchIssues(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, q.Get("jql"), "project = PROJ ORDER BY updated DESC", "jql mismatch")
		assert.Equal(t, q.Get("startAt"), "50", "startAt mismatch")
		assert.Equal(t, q.Get("maxResults"), "100", "maxResults mismatch")
		assert.Equal(t, q.Get("fields"), "updated,issuelinks", "fields mismatch")

		writeJSON(t, w, SearchResult{StartAt: 50, MaxResults: 50, Total: 51, Issues: []Issue{
			{ID: "1", Key: "PROJ-1", Fields: map[string]json.RawMessage{"updated": json.RawMessage(`"t"`)}},
		}})
	}))
	defer ts.Close()

	c := New(Options{Endpoint: ts.URL, APIToken: "t"})

	res, err := c.SearchIssues(context.Background(), "project = PROJ ORDER BY updated DESC", 50, 100, []string{"updated", "issuelinks"})
	assert.NilError(t, err, "searching")

	assert.Equal(t, res.MaxResults, 50, "server limit")
	assert.Equal(t, res.Total, 51, "total")
	assert.Equal(t, string(res.Issues[0].Fields["updated"]), `"t"`, "field")
}

func TestDownloadAttachmentFollowsRedirect(t *testing.T) {
	var gotCookie string
	var gotAuth string

	mux := http.NewServeMux()
	mux.HandleFunc("/rest/api/2/attachment/content/42", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("tenant.session.token"); err == nil {
			gotCookie = c.Value
		}
		gotAuth = r.Header.Get("Authorization")
		http.Redirect(w, r, "/file/3b241101-e2bb-4255-8caf-4136c566a962/binary", http.StatusFound)
	})
	mux.HandleFunc("/file/3b241101-e2bb-4255-8caf-4136c566a962/binary", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write([]byte("hello"))
	})
	ts := httptest.NewServer(mux)
	defer ts.Close()

	c := New(Options{Endpoint: ts.URL, APIToken: "t", HTTPClient: NewRateLimitedHTTPClient(100, 10)})

	d, err := c.DownloadAttachment(context.Background(), 42, &http.Cookie{Name: "tenant.session.token", Value: "cookie-value"})
	assert.NilError(t, err, "downloading")

	assert.Equal(t, gotCookie, "cookie-value", "cookie mismatch")
	assert.Equal(t, gotAuth, "", "api credentials should not be sent")
	assert.Equal(t, string(d.Body), "hello", "body mismatch")
	assert.Equal(t, d.FinalURL.Path, "/file/3b241101-e2bb-4255-8caf-4136c566a962/binary", "final url mismatch")
}

func TestDownloadAttachmentWithoutCookie(t *testing.T) {
	c := New(Options{Endpoint: "http://127.0.0.1:1", APIToken: "t"})

	_, err := c.DownloadAttachment(context.Background(), 42, nil)
	assert.NotEqual(t, err, nil, "expected an error")
}
