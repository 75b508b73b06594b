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
	"context"
	"fmt"

	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/reconcile"
	"github.com/pkg/errors"
)

var searchFields = []string{"*all"}

// projectJQL returns the search of a project's issues, most recently updated first
func projectJQL(projectKey string) string {
	return fmt.Sprintf("project = %s ORDER BY updated DESC", projectKey)
}

// walkResult is what a walk over a project's issues found
type walkResult struct {
	// Stale are the issues that changed since they were last stored
	Stale []parsedIssue
	// Links are the links of every issue on the fetched pages
	Links         []database.IssueLink
	FoundBoundary bool
	Pages         int
}

// walk pages through the issues of a project, newest first, and stops at the
// first issue whose stored update time matches the remote one. When full is
// true every issue is treated as stale.
//
// On a failed page fetch the result accumulated so far is returned with the
// error.
func (s *Syncer) walk(ctx context.Context, projectKey string, full bool) (walkResult, error) {
	var ret walkResult

	local := map[int64]string{}
	if !full {
		var err error
		local, err = database.LoadFieldValues(s.db, projectKey, fieldUpdated)
		if err != nil {
			return ret, errors.Wrap(err, "loading local update times")
		}
	}

	jql := projectJQL(projectKey)
	fetched := 0
	pageSize := s.pageSize
	for {
		page, err := s.remote.SearchIssues(ctx, jql, fetched, pageSize, searchFields)
		if err != nil {
			return ret, errors.Wrapf(err, "fetching issues of %s", projectKey)
		}
		ret.Pages++

		// the server may cap the page size below the requested one
		if page.MaxResults > 0 {
			pageSize = page.MaxResults
		}

		if len(page.Issues) == 0 {
			break
		}
		fetched += len(page.Issues)

		for _, issue := range parseAll("issue", page.Issues, func(i jira.Issue) (parsedIssue, error) {
			return parseIssue(i, projectKey)
		}) {
			links, err := parseLinks(issue.issue.ID, issue.raw)
			if err != nil {
				log.WithFields(log.Fields{"issue": issue.issue.Key}).ErrorWrap(err, "skipping links")
			}
			ret.Links = append(ret.Links, links...)

			if ret.FoundBoundary {
				continue
			}
			if !full && s.isCurrent(issue, local) {
				ret.FoundBoundary = true
				continue
			}

			ret.Stale = append(ret.Stale, issue)
		}

		if ret.FoundBoundary || fetched >= page.Total {
			break
		}
	}

	log.WithFields(log.Fields{
		"project":  projectKey,
		"full":     full,
		"pages":    ret.Pages,
		"stale":    len(ret.Stale),
		"boundary": ret.FoundBoundary,
	}).Debug("walked issues")

	return ret, nil
}

// isCurrent returns true if the stored update time of the issue equals the
// remote one
func (s *Syncer) isCurrent(issue parsedIssue, local map[int64]string) bool {
	stored, ok := local[issue.issue.ID]
	if !ok {
		return false
	}

	raw, ok := issue.raw.Fields[fieldUpdated]
	if !ok || isNull(raw) {
		return false
	}

	remote, err := reconcile.CanonicalJSON(raw)
	if err != nil {
		return false
	}

	return remote == stored
}
