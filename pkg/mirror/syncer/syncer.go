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

// Package syncer mirrors the remote issue tracker into the local store
package syncer

import (
	"context"
	"net/http"
	"sync"

	"github.com/dnote/jiramirror/pkg/clock"
	"github.com/dnote/jiramirror/pkg/mirror/cookie"
	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/reconcile"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// DefaultPageSize is the page size requested from the issue search
const DefaultPageSize = 100

// Remote is the remote issue tracker
type Remote interface {
	GetProjects(ctx context.Context) ([]jira.Project, error)
	GetIssueTypes(ctx context.Context) ([]jira.IssueType, error)
	GetFields(ctx context.Context) ([]jira.Field, error)
	GetLinkTypes(ctx context.Context) ([]jira.IssueLinkType, error)
	SearchIssues(ctx context.Context, jql string, startAt, maxResults int, fields []string) (jira.SearchResult, error)
	GetIssue(ctx context.Context, key string) (jira.Issue, error)
	GetComments(ctx context.Context, key string) ([]jira.Comment, error)
	DownloadAttachment(ctx context.Context, id int64, cookie *http.Cookie) (jira.Download, error)
}

// Options configures a Syncer
type Options struct {
	// Projects are the keys to mirror. When empty, every non-archived
	// project in the local store is mirrored.
	Projects              []string
	PageSize              int
	MaxConcurrentProjects int
	Cookies               cookie.Source
	Clock                 clock.Clock
}

// Syncer reconciles the local store against the remote
type Syncer struct {
	db          *database.DB
	remote      Remote
	cookies     cookie.Source
	clock       clock.Clock
	projects    []string
	pageSize    int
	concurrency int
}

// New returns a Syncer writing to db
func New(db *database.DB, remote Remote, o Options) *Syncer {
	s := &Syncer{
		db:          db,
		remote:      remote,
		cookies:     o.Cookies,
		clock:       o.Clock,
		projects:    o.Projects,
		pageSize:    o.PageSize,
		concurrency: o.MaxConcurrentProjects,
	}

	if s.cookies == nil {
		s.cookies = cookie.Static{}
	}
	if s.clock == nil {
		s.clock = clock.New()
	}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.concurrency <= 0 {
		s.concurrency = 1
	}

	return s
}

// ProjectKeys returns the keys of the projects to mirror
func (s *Syncer) ProjectKeys() ([]string, error) {
	if len(s.projects) > 0 {
		return s.projects, nil
	}

	keys, err := database.ActiveProjectKeys(s.db)
	if err != nil {
		return nil, errors.Wrap(err, "listing active projects")
	}

	return keys, nil
}

// SyncProjects syncs every project, at most MaxConcurrentProjects at a time.
// A failing project does not stop the others; the first error is returned.
func (s *Syncer) SyncProjects(ctx context.Context, full bool) (*Stats, error) {
	stats := &Stats{}

	keys, err := s.ProjectKeys()
	if err != nil {
		return stats, err
	}

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for _, key := range keys {
		key := key
		g.Go(func() error {
			projectStats, err := s.SyncProject(ctx, key, full)
			stats.merge(projectStats)
			if err != nil {
				log.WithFields(log.Fields{"project": key, "full": full}).ErrorWrap(err, "syncing project")
				return errors.Wrapf(err, "syncing project %s", key)
			}

			return nil
		})
	}

	return stats, g.Wait()
}

// upsertOnly writes the rows that differ from local, never deleting
func upsertOnly[K comparable, T reconcile.Row[K]](db *database.DB, table database.Table[T], remote, local []T) (reconcile.Report, error) {
	changes := reconcile.Diff[K, T](remote, local)
	changes.Deletes = nil

	return reconcile.Apply(db, table, changes)
}

// firstError keeps the first of a series of errors and counts them
type firstError struct {
	mu    sync.Mutex
	err   error
	count int
}

func (f *firstError) add(err error) {
	if err == nil {
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err == nil {
		f.err = err
	}
	f.count++
}

func (f *firstError) result(msg string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.err == nil {
		return nil
	}
	if f.count == 1 {
		return errors.Wrap(f.err, msg)
	}

	return errors.Wrapf(f.err, "%s (%d errors, first shown)", msg, f.count)
}
