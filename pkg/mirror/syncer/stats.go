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
	"strings"
	"sync"

	"github.com/dnote/jiramirror/pkg/mirror/reconcile"
	"github.com/pkg/errors"
)

// Stats accumulates the reconciliation reports of a sync pass by kind. It is
// safe for concurrent use.
type Stats struct {
	mu      sync.Mutex
	kinds   []string
	reports map[string]reconcile.Report
}

func (s *Stats) add(r reconcile.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.reports == nil {
		s.reports = map[string]reconcile.Report{}
	}

	cur, ok := s.reports[r.Kind]
	if !ok {
		s.kinds = append(s.kinds, r.Kind)
		cur = reconcile.Report{Kind: r.Kind}
	}
	cur.Add(r)
	s.reports[r.Kind] = cur
}

func (s *Stats) merge(o *Stats) {
	for _, r := range o.Reports() {
		s.add(r)
	}
}

// Get returns the report of a kind
func (s *Stats) Get(kind string) reconcile.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r, ok := s.reports[kind]; ok {
		return r
	}

	return reconcile.Report{Kind: kind}
}

// Reports returns the reports in the order their kinds were first seen
func (s *Stats) Reports() []reconcile.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	ret := make([]reconcile.Report, 0, len(s.kinds))
	for _, k := range s.kinds {
		ret = append(ret, s.reports[k])
	}

	return ret
}

// Writes returns the number of rows written
func (s *Stats) Writes() int {
	n := 0
	for _, r := range s.Reports() {
		n += r.Writes()
	}

	return n
}

// Err returns an error describing every kind with failed rows
func (s *Stats) Err() error {
	var msgs []string
	for _, r := range s.Reports() {
		if err := r.Err(); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	if len(msgs) == 0 {
		return nil
	}

	return errors.New(strings.Join(msgs, "; "))
}

func (s *Stats) String() string {
	var parts []string
	for _, r := range s.Reports() {
		parts = append(parts, r.String())
	}

	return strings.Join(parts, ", ")
}
