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
	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/reconcile"
	"github.com/pkg/errors"
)

// SyncMetadata refreshes projects, issue types, link types and fields
func (s *Syncer) SyncMetadata(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	steps := []struct {
		name string
		run  func(context.Context) (reconcile.Report, error)
	}{
		{"projects", s.syncProjectList},
		{"issue types", s.syncIssueTypes},
		{"link types", s.syncLinkTypes},
		{"fields", s.syncFields},
	}

	for _, step := range steps {
		report, err := step.run(ctx)
		stats.add(report)
		if err != nil {
			return stats, errors.Wrapf(err, "syncing %s", step.name)
		}
	}

	if err := stats.Err(); err != nil {
		return stats, err
	}

	if err := database.UpsertSystemInt(s.db, consts.SystemLastMetadataSync, s.clock.Now().Unix()); err != nil {
		return stats, err
	}

	log.WithFields(log.Fields{"stats": stats.String()}).Info("synced metadata")
	return stats, nil
}

func (s *Syncer) syncProjectList(ctx context.Context) (reconcile.Report, error) {
	remote, err := s.remote.GetProjects(ctx)
	if err != nil {
		return reconcile.Report{Kind: database.Projects.Kind}, err
	}
	rows := parseAll("project", remote, parseProject)

	local, err := database.LoadProjects(s.db)
	if err != nil {
		return reconcile.Report{Kind: database.Projects.Kind}, errors.Wrap(err, "loading local projects")
	}

	return reconcile.Sync[int64](s.db, database.Projects, rows, local)
}

func (s *Syncer) syncIssueTypes(ctx context.Context) (reconcile.Report, error) {
	remote, err := s.remote.GetIssueTypes(ctx)
	if err != nil {
		return reconcile.Report{Kind: database.IssueTypes.Kind}, err
	}
	rows := parseAll("issue type", remote, parseIssueType)

	local, err := database.LoadIssueTypes(s.db)
	if err != nil {
		return reconcile.Report{Kind: database.IssueTypes.Kind}, errors.Wrap(err, "loading local issue types")
	}

	return reconcile.Sync[int64](s.db, database.IssueTypes, rows, local)
}

func (s *Syncer) syncLinkTypes(ctx context.Context) (reconcile.Report, error) {
	remote, err := s.remote.GetLinkTypes(ctx)
	if err != nil {
		return reconcile.Report{Kind: database.LinkTypes.Kind}, err
	}
	rows := parseAll("link type", remote, parseLinkType)

	local, err := database.LoadLinkTypes(s.db)
	if err != nil {
		return reconcile.Report{Kind: database.LinkTypes.Kind}, errors.Wrap(err, "loading local link types")
	}

	return reconcile.Sync[int64](s.db, database.LinkTypes, rows, local)
}

func (s *Syncer) syncFields(ctx context.Context) (reconcile.Report, error) {
	remote, err := s.remote.GetFields(ctx)
	if err != nil {
		return reconcile.Report{Kind: database.Fields.Kind}, err
	}
	rows := parseAll("field", remote, parseField)

	local, err := database.LoadFields(s.db)
	if err != nil {
		return reconcile.Report{Kind: database.Fields.Kind}, errors.Wrap(err, "loading local fields")
	}

	return reconcile.Sync[string](s.db, database.Fields, rows, local)
}
