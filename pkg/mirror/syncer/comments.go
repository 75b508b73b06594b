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
	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/reconcile"
	"github.com/pkg/errors"
)

// syncComments replaces the comments of an issue with the remote ones. The
// authors are stored first. A malformed comment is skipped, and its stored
// copy, if any, is kept.
func (s *Syncer) syncComments(issueID int64, remote []jira.Comment, stats *Stats) error {
	var comments []database.Comment
	var people []database.Person
	seen := map[string]int{}
	skipped := map[int64]bool{}

	for i, c := range remote {
		comment, person, err := parseComment(issueID, i, c)
		if err != nil {
			log.WithFields(log.Fields{"issue": issueID, "index": i}).ErrorWrap(err, "skipping malformed comment")
			if id, err := parseID(c.ID); err == nil {
				skipped[id] = true
			}
			continue
		}

		comments = append(comments, comment)
		if idx, ok := seen[person.AccountID]; ok {
			people[idx] = person
		} else {
			seen[person.AccountID] = len(people)
			people = append(people, person)
		}
	}

	accountIDs := make([]string, 0, len(people))
	for _, p := range people {
		accountIDs = append(accountIDs, p.AccountID)
	}
	localPeople, err := database.LoadPeople(s.db, accountIDs)
	if err != nil {
		return errors.Wrap(err, "loading local people")
	}
	report, err := upsertOnly[string](s.db, database.People, people, localPeople)
	stats.add(report)
	if err != nil {
		return err
	}

	local, err := database.LoadComments(s.db, issueID)
	if err != nil {
		return errors.Wrap(err, "loading local comments")
	}

	changes := reconcile.Diff[int64](comments, local)
	deletes := changes.Deletes[:0]
	for _, c := range changes.Deletes {
		if !skipped[c.ID] {
			deletes = append(deletes, c)
		}
	}
	changes.Deletes = deletes

	report, err = reconcile.Apply(s.db, database.Comments, changes)
	stats.add(report)
	if err != nil {
		return err
	}

	return nil
}
