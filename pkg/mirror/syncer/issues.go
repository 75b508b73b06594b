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

	"github.com/dnote/jiramirror/pkg/mirror/consts"
	"github.com/dnote/jiramirror/pkg/mirror/cookie"
	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/reconcile"
	"github.com/pkg/errors"
)

// SyncProject brings the issues of a project up to date. An incremental sync
// stops at the first issue that has not changed; a full sync revisits every
// issue.
func (s *Syncer) SyncProject(ctx context.Context, projectKey string, full bool) (*Stats, error) {
	stats := &Stats{}

	res, err := s.walk(ctx, projectKey, full)
	if err != nil {
		return stats, err
	}

	if err := s.applyWalk(res, stats); err != nil {
		return stats, errors.Wrapf(err, "storing issues of %s", projectKey)
	}

	var errs firstError
	var cookieErr error
	for _, issue := range res.Stale {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		detail, err := s.fetchDetail(ctx, issue.issue.Key, projectKey)
		if err != nil {
			errs.add(err)
			continue
		}
		errs.add(s.storeDetail(detail, stats))

		if cookieErr != nil {
			continue
		}
		err = s.downloadAttachments(ctx, issue.issue.ID)
		if errors.Cause(err) == cookie.ErrCookieInvalid {
			log.WithFields(log.Fields{"project": projectKey}).ErrorWrap(err, "skipping attachment downloads")
			cookieErr = err
		}
		errs.add(err)
	}

	if err := errs.result("syncing issue details"); err != nil {
		return stats, err
	}
	if err := stats.Err(); err != nil {
		return stats, err
	}

	key := consts.SystemLastIncrementalSync
	if full {
		key = consts.SystemLastFullSync
	}
	if err := database.UpsertSystemInt(s.db, database.SystemKey(key, projectKey), s.clock.Now().Unix()); err != nil {
		return stats, err
	}

	log.WithFields(log.Fields{
		"project": projectKey,
		"full":    full,
		"issues":  len(res.Stale),
		"writes":  stats.Writes(),
	}).Info("synced project")

	return stats, nil
}

// applyWalk stores the stale issues, then their field values, then the links
// seen during the walk. Nothing is deleted here because a walk sees only
// part of the project.
func (s *Syncer) applyWalk(res walkResult, stats *Stats) error {
	if len(res.Stale) == 0 && len(res.Links) == 0 {
		return nil
	}

	var issues []database.Issue
	var fields []database.IssueField
	var ids []int64
	for _, p := range res.Stale {
		issues = append(issues, p.issue)
		fields = append(fields, p.fields...)
		ids = append(ids, p.issue.ID)
	}

	localIssues, err := database.LoadIssues(s.db, ids)
	if err != nil {
		return errors.Wrap(err, "loading local issues")
	}
	report, err := upsertOnly[int64](s.db, database.Issues, issues, localIssues)
	stats.add(report)
	if err != nil {
		return err
	}

	localFields, err := database.LoadIssueFields(s.db, ids...)
	if err != nil {
		return errors.Wrap(err, "loading local fields")
	}
	report, err = upsertOnly[database.IssueFieldKey](s.db, database.IssueFields, fields, localFields)
	stats.add(report)
	if err != nil {
		return err
	}

	var linkIDs []int64
	for _, l := range res.Links {
		linkIDs = append(linkIDs, l.ID)
	}
	localLinks, err := database.LoadIssueLinksByID(s.db, linkIDs)
	if err != nil {
		return errors.Wrap(err, "loading local links")
	}
	report, err = upsertOnly[int64](s.db, database.IssueLinks, res.Links, localLinks)
	stats.add(report)
	if err != nil {
		return err
	}

	return nil
}

// SyncIssue fetches one issue with everything attached to it and stores it,
// downloading attachment content that is missing
func (s *Syncer) SyncIssue(ctx context.Context, key string) (*Stats, error) {
	stats := &Stats{}

	detail, err := s.fetchDetail(ctx, key, "")
	if err != nil {
		return stats, err
	}

	if err := s.storeDetail(detail, stats); err != nil {
		return stats, err
	}
	if err := stats.Err(); err != nil {
		return stats, err
	}

	if err := s.downloadAttachments(ctx, detail.issue.issue.ID); err != nil {
		return stats, err
	}

	return stats, nil
}

// issueDetail is an issue as returned by the single issue endpoint, with
// its comments
type issueDetail struct {
	issue    parsedIssue
	comments []jira.Comment
}

func (s *Syncer) fetchDetail(ctx context.Context, key, projectKey string) (issueDetail, error) {
	var ret issueDetail

	raw, err := s.remote.GetIssue(ctx, key)
	if err != nil {
		return ret, err
	}

	ret.issue, err = parseIssue(raw, projectKey)
	if err != nil {
		return ret, errors.Wrapf(err, "parsing issue %s", key)
	}

	ret.comments, err = s.remote.GetComments(ctx, key)
	if err != nil {
		return ret, err
	}

	return ret, nil
}

// storeDetail writes an issue and replaces its fields, links, attachment
// metadata and comments with the remote ones
func (s *Syncer) storeDetail(d issueDetail, stats *Stats) error {
	issue := d.issue.issue

	local, err := database.LoadIssues(s.db, []int64{issue.ID})
	if err != nil {
		return errors.Wrap(err, "loading local issue")
	}
	report, err := upsertOnly[int64](s.db, database.Issues, []database.Issue{issue}, local)
	stats.add(report)
	if err != nil {
		return err
	}

	localFields, err := database.LoadIssueFields(s.db, issue.ID)
	if err != nil {
		return errors.Wrap(err, "loading local fields")
	}
	report, err = reconcile.Sync[database.IssueFieldKey](s.db, database.IssueFields, d.issue.fields, localFields)
	stats.add(report)
	if err != nil {
		return err
	}

	links, err := parseLinks(issue.ID, d.issue.raw)
	if err != nil {
		return errors.Wrapf(err, "parsing links of %s", issue.Key)
	}
	localLinks, err := database.LoadIssueLinks(s.db, issue.ID)
	if err != nil {
		return errors.Wrap(err, "loading local links")
	}
	report, err = reconcile.Sync[int64](s.db, database.IssueLinks, links, localLinks)
	stats.add(report)
	if err != nil {
		return err
	}

	if err := s.syncAttachmentMetadata(issue.ID, d.issue.raw, stats); err != nil {
		return errors.Wrapf(err, "syncing attachments of %s", issue.Key)
	}

	if err := s.syncComments(issue.ID, d.comments, stats); err != nil {
		return errors.Wrapf(err, "syncing comments of %s", issue.Key)
	}

	return nil
}
