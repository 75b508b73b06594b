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

	"github.com/dnote/jiramirror/pkg/mirror/cookie"
	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/reconcile"
	"github.com/pkg/errors"
)

var (
	// ErrSizeMismatch is returned when a downloaded attachment does not have the advertised size
	ErrSizeMismatch = errors.New("downloaded size does not match the attachment size")
)

// syncAttachmentMetadata replaces the attachment rows of an issue with the
// remote ones. A uuid already resolved locally is kept over the guess.
func (s *Syncer) syncAttachmentMetadata(issueID int64, issue jira.Issue, stats *Stats) error {
	remote, err := parseAttachments(issueID, issue)
	if err != nil {
		return err
	}

	local, err := database.LoadAttachments(s.db, issueID)
	if err != nil {
		return errors.Wrap(err, "loading local attachments")
	}

	resolved := make(map[int64]database.Attachment, len(local))
	for _, a := range local {
		if a.UUID.Valid {
			resolved[a.ID] = a
		}
	}
	for i, a := range remote {
		if l, ok := resolved[a.ID]; ok {
			remote[i].UUID = l.UUID
		}
	}

	report, err := reconcile.Sync[int64](s.db, database.Attachments, remote, local)
	stats.add(report)
	if err != nil {
		return err
	}

	return nil
}

// downloadAttachments downloads the content of every attachment of the issue
// that has none. It fails with ErrCookieInvalid before downloading anything
// if the session cookie cannot be used.
func (s *Syncer) downloadAttachments(ctx context.Context, issueID int64) error {
	missing, err := database.LoadAttachmentsMissingContent(s.db, issueID)
	if err != nil {
		return errors.Wrap(err, "loading attachments without content")
	}
	if len(missing) == 0 {
		return nil
	}

	var errs firstError
	for _, a := range missing {
		if err := ctx.Err(); err != nil {
			return err
		}

		if _, err := s.download(ctx, a); err != nil {
			if errors.Cause(err) == cookie.ErrCookieInvalid {
				return err
			}

			errs.add(err)
		}
	}

	return errs.result("downloading attachments")
}

// FetchAttachmentContent returns the content of the attachment with the given
// uuid, downloading it first if it has not been stored yet
func (s *Syncer) FetchAttachmentContent(ctx context.Context, uuid string) ([]byte, error) {
	a, err := database.GetAttachmentByUUID(s.db, uuid)
	if err != nil {
		return nil, err
	}

	content, ok, err := database.GetAttachmentContent(s.db, a.ID)
	if err != nil {
		return nil, err
	}
	if ok {
		return content, nil
	}

	return s.download(ctx, a)
}

// download fetches and stores the content of one attachment. The uuid the
// content is served under is stored separately from the content.
func (s *Syncer) download(ctx context.Context, a database.Attachment) ([]byte, error) {
	c, err := s.cookies.Get()
	if err != nil {
		return nil, err
	}
	if err := c.Valid(s.clock.Now()); err != nil {
		return nil, err
	}

	dl, err := s.remote.DownloadAttachment(ctx, a.ID, c.HTTPCookie())
	if err != nil {
		return nil, err
	}

	if int64(len(dl.Body)) != a.FileSize {
		log.WithFields(log.Fields{
			"attachment": a.ID,
			"expected":   a.FileSize,
			"actual":     len(dl.Body),
		}).Warn("rejecting attachment download")
		return nil, errors.Wrapf(ErrSizeMismatch, "attachment %d", a.ID)
	}

	if id, ok := UUIDFromURL(dl.FinalURL); ok {
		if err := database.SaveAttachmentUUID(s.db, a.ID, id); err != nil {
			log.WithFields(log.Fields{"attachment": a.ID, "uuid": id}).ErrorWrap(err, "storing attachment uuid")
		}
	} else {
		log.WithFields(log.Fields{"attachment": a.ID, "url": fmt.Sprint(dl.FinalURL)}).Warn("no uuid in attachment url")
	}

	if err := database.SaveAttachmentContent(s.db, a.ID, dl.Body); err != nil {
		return nil, err
	}

	log.WithFields(log.Fields{"attachment": a.ID, "size": len(dl.Body)}).Debug("downloaded attachment")
	return dl.Body, nil
}
