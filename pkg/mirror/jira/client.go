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

// Package jira is a read-only client for the Jira REST API
package jira

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// ErrContentTypeMismatch is an error for a response that is not JSON
var ErrContentTypeMismatch = errors.New("content type mismatch")

// ErrNoCredentials is an error for a client without any credential
var ErrNoCredentials = errors.New("no credentials configured")

// HTTPError represents an HTTP error response from the server
type HTTPError struct {
	StatusCode int
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf(`response %d "%s"`, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404 Not Found error
func (e *HTTPError) IsNotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound returns true if err is caused by a 404 response
func IsNotFound(err error) bool {
	httpErr, ok := errors.Cause(err).(*HTTPError)
	return ok && httpErr.IsNotFound()
}

const (
	apiPrefix = "/rest/api/2"

	contentTypeApplicationJSON = "application/json"

	projectPageSize = 50
	commentPageSize = 100

	// maxErrorBody caps how much of an error response is kept in the error
	maxErrorBody = 1024
)

// rateLimitedTransport wraps an http.RoundTripper with rate limiting
type rateLimitedTransport struct {
	transport http.RoundTripper
	limiter   *rate.Limiter
}

func (t *rateLimitedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if err := t.limiter.Wait(req.Context()); err != nil {
		return nil, err
	}
	return t.transport.RoundTrip(req)
}

// NewRateLimitedHTTPClient creates an HTTP client making at most perSecond
// requests per second with the given burst capacity
func NewRateLimitedHTTPClient(perSecond float64, burst int) *http.Client {
	transport := &rateLimitedTransport{
		transport: http.DefaultTransport,
		limiter:   rate.NewLimiter(rate.Limit(perSecond), burst),
	}
	return &http.Client{
		Transport: transport,
	}
}

// Options configure a Client
type Options struct {
	Endpoint    string
	Email       string
	APIToken    string
	BearerToken string
	UserAgent   string
	HTTPClient  *http.Client
}

// Client issues authenticated GET requests against one Jira site
type Client struct {
	endpoint    string
	email       string
	apiToken    string
	bearerToken string
	userAgent   string
	httpClient  *http.Client
}

// New returns a new client
func New(o Options) *Client {
	hc := o.HTTPClient
	if hc == nil {
		hc = &http.Client{}
	}

	return &Client{
		endpoint:    strings.TrimRight(o.Endpoint, "/"),
		email:       o.Email,
		apiToken:    o.APIToken,
		bearerToken: o.BearerToken,
		userAgent:   o.UserAgent,
		httpClient:  hc,
	}
}

// Endpoint returns the base URL of the Jira site
func (c *Client) Endpoint() string {
	return c.endpoint
}

// requestOptions contains options for requests
type requestOptions struct {
	// Cookie authenticates the request instead of the API credentials
	Cookie *http.Cookie
	// RawBody skips the JSON content type check
	RawBody bool
}

func (c *Client) getReq(ctx context.Context, path string, query url.Values, opts *requestOptions) (*http.Request, error) {
	endpoint := c.endpoint + path
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, errors.Wrap(err, "constructing http request")
	}

	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	if opts != nil && opts.Cookie != nil {
		req.AddCookie(opts.Cookie)
		return req, nil
	}

	req.Header.Set("Accept", contentTypeApplicationJSON)

	switch {
	case c.bearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	case c.apiToken != "":
		req.SetBasicAuth(c.email, c.apiToken)
	default:
		return nil, ErrNoCredentials
	}

	return req, nil
}

// checkRespErr returns an HTTPError if the response indicates an error
func checkRespErr(res *http.Response) error {
	if res.StatusCode < 400 {
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxErrorBody))
	if err != nil {
		return errors.Wrapf(err, "server responded with %d but client could not read the response body", res.StatusCode)
	}

	return &HTTPError{
		StatusCode: res.StatusCode,
		Message:    strings.TrimSpace(string(body)),
	}
}

func checkContentType(res *http.Response) error {
	got := res.Header.Get("Content-Type")

	mediaType, _, err := mime.ParseMediaType(got)
	if err != nil || mediaType != contentTypeApplicationJSON {
		return errors.Wrapf(ErrContentTypeMismatch, "got: '%s' want: '%s'. Did you configure your endpoint correctly?", got, contentTypeApplicationJSON)
	}

	return nil
}

// doReq does a GET request to the given path of the Jira site. The caller
// must close the body of a successful response.
func (c *Client) doReq(ctx context.Context, path string, query url.Values, opts *requestOptions) (*http.Response, error) {
	req, err := c.getReq(ctx, path, query, opts)
	if err != nil {
		return nil, errors.Wrap(err, "getting request")
	}

	start := time.Now()
	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "making http request")
	}

	log.WithFields(log.Fields{
		"path":     path,
		"status":   res.StatusCode,
		"duration": time.Since(start),
	}).Debug("HTTP GET")

	if err = checkRespErr(res); err != nil {
		res.Body.Close()
		return nil, errors.Wrap(err, "server responded with an error")
	}

	if opts == nil || !opts.RawBody {
		if err = checkContentType(res); err != nil {
			res.Body.Close()
			return nil, errors.Wrap(err, "unexpected Content-Type")
		}
	}

	return res, nil
}

// getJSON does a GET request and decodes the JSON response into v
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, v interface{}) error {
	res, err := c.doReq(ctx, path, query, nil)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if err := json.NewDecoder(res.Body).Decode(v); err != nil {
		return errors.Wrap(err, "decoding the response payload")
	}

	return nil
}

// GetIssueTypes returns every issue type
func (c *Client) GetIssueTypes(ctx context.Context) ([]IssueType, error) {
	var ret []IssueType
	if err := c.getJSON(ctx, apiPrefix+"/issuetype", nil, &ret); err != nil {
		return nil, errors.Wrap(err, "getting issue types")
	}

	return ret, nil
}

// GetFields returns every field definition
func (c *Client) GetFields(ctx context.Context) ([]Field, error) {
	var ret []Field
	if err := c.getJSON(ctx, apiPrefix+"/field", nil, &ret); err != nil {
		return nil, errors.Wrap(err, "getting fields")
	}

	return ret, nil
}

// GetLinkTypes returns every issue link type
func (c *Client) GetLinkTypes(ctx context.Context) ([]IssueLinkType, error) {
	var resp IssueLinkTypesResp
	if err := c.getJSON(ctx, apiPrefix+"/issueLinkType", nil, &resp); err != nil {
		return nil, errors.Wrap(err, "getting link types")
	}

	return resp.IssueLinkTypes, nil
}

// GetProjects returns every project visible to the user, walking all pages
func (c *Client) GetProjects(ctx context.Context) ([]Project, error) {
	var ret []Project

	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(projectPageSize))
		q.Set("expand", "description")

		var page ProjectPage
		if err := c.getJSON(ctx, apiPrefix+"/project/search", q, &page); err != nil {
			return ret, errors.Wrapf(err, "getting projects at %d", startAt)
		}

		ret = append(ret, page.Values...)
		startAt += len(page.Values)

		if page.IsLast || len(page.Values) == 0 || startAt >= page.Total {
			break
		}
	}

	return ret, nil
}

// SearchIssues returns one page of the issues matching the JQL query
func (c *Client) SearchIssues(ctx context.Context, jql string, startAt, maxResults int, fields []string) (SearchResult, error) {
	q := url.Values{}
	q.Set("jql", jql)
	q.Set("startAt", strconv.Itoa(startAt))
	q.Set("maxResults", strconv.Itoa(maxResults))
	if len(fields) > 0 {
		q.Set("fields", strings.Join(fields, ","))
	}

	var ret SearchResult
	if err := c.getJSON(ctx, apiPrefix+"/search", q, &ret); err != nil {
		return ret, errors.Wrapf(err, "searching issues at %d", startAt)
	}

	return ret, nil
}

// GetIssue returns an issue with all of its fields
func (c *Client) GetIssue(ctx context.Context, key string) (Issue, error) {
	q := url.Values{}
	q.Set("fields", "*all")

	var ret Issue
	path := fmt.Sprintf("%s/issue/%s", apiPrefix, url.PathEscape(key))
	if err := c.getJSON(ctx, path, q, &ret); err != nil {
		return ret, errors.Wrapf(err, "getting issue %s", key)
	}

	return ret, nil
}

// GetComments returns every comment of an issue in the remote order
func (c *Client) GetComments(ctx context.Context, key string) ([]Comment, error) {
	var ret []Comment
	path := fmt.Sprintf("%s/issue/%s/comment", apiPrefix, url.PathEscape(key))

	startAt := 0
	for {
		q := url.Values{}
		q.Set("startAt", strconv.Itoa(startAt))
		q.Set("maxResults", strconv.Itoa(commentPageSize))

		var page CommentPage
		if err := c.getJSON(ctx, path, q, &page); err != nil {
			return ret, errors.Wrapf(err, "getting comments of %s at %d", key, startAt)
		}

		ret = append(ret, page.Comments...)
		startAt += len(page.Comments)

		if len(page.Comments) == 0 || startAt >= page.Total {
			break
		}
	}

	return ret, nil
}

// Download is the body of a downloaded attachment
type Download struct {
	Body []byte
	// FinalURL is the URL the body was served from, after redirects
	FinalURL *url.URL
}

// DownloadAttachment downloads the content of an attachment, authenticated
// with a browser session cookie
func (c *Client) DownloadAttachment(ctx context.Context, id int64, cookie *http.Cookie) (Download, error) {
	if cookie == nil {
		return Download{}, errors.New("no session cookie")
	}

	path := fmt.Sprintf("%s/attachment/content/%d", apiPrefix, id)
	res, err := c.doReq(ctx, path, nil, &requestOptions{Cookie: cookie, RawBody: true})
	if err != nil {
		return Download{}, errors.Wrapf(err, "downloading attachment %d", id)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return Download{}, errors.Wrapf(err, "reading attachment %d", id)
	}

	return Download{
		Body:     body,
		FinalURL: res.Request.URL,
	}, nil
}
