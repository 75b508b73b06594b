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

package sync

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/dnote/jiramirror/pkg/assert"
	"github.com/dnote/jiramirror/pkg/mirror/syncer"
	"github.com/pkg/errors"
)

type fakeSyncer struct {
	calls []string
	fail  map[string]error
}

func (f *fakeSyncer) record(call string) (*syncer.Stats, error) {
	f.calls = append(f.calls, call)

	return &syncer.Stats{}, f.fail[call]
}

func (f *fakeSyncer) SyncMetadata(ctx context.Context) (*syncer.Stats, error) {
	return f.record("metadata")
}

func (f *fakeSyncer) SyncProjects(ctx context.Context, full bool) (*syncer.Stats, error) {
	return f.record(fmt.Sprintf("projects full=%t", full))
}

func (f *fakeSyncer) SyncProject(ctx context.Context, key string, full bool) (*syncer.Stats, error) {
	return f.record(fmt.Sprintf("project %s full=%t", key, full))
}

func (f *fakeSyncer) SyncIssue(ctx context.Context, key string) (*syncer.Stats, error) {
	return f.record(fmt.Sprintf("issue %s", key))
}

func TestRun(t *testing.T) {
	testCases := []struct {
		options  options
		expected []string
	}{
		{
			options:  options{},
			expected: []string{"metadata", "projects full=false"},
		},
		{
			options:  options{full: true},
			expected: []string{"metadata", "projects full=true"},
		},
		{
			options:  options{projects: []string{"abc", "OPS"}},
			expected: []string{"metadata", "project ABC full=false", "project OPS full=false"},
		},
		{
			options:  options{full: true, projects: []string{"abc"}},
			expected: []string{"metadata", "project ABC full=true"},
		},
		{
			options:  options{tickets: []string{"abc-1", "ABC-2"}, projects: []string{"OPS"}},
			expected: []string{"issue ABC-1", "issue ABC-2"},
		},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			sy := &fakeSyncer{}
			var out bytes.Buffer

			err := run(context.Background(), sy, &out, tc.options)
			assert.NilError(t, err, "running sync")
			assert.DeepEqual(t, sy.calls, tc.expected, "calls mismatch")
			assert.Equal(t, out.String(), "", "output mismatch")
		})
	}
}

func TestRunContinuesAfterFailure(t *testing.T) {
	sy := &fakeSyncer{fail: map[string]error{
		"project ABC full=false": errors.New("boom"),
	}}
	var out bytes.Buffer

	err := run(context.Background(), sy, &out, options{projects: []string{"ABC", "OPS"}})
	assert.NotEqual(t, err, nil, "expected an error")
	assert.Equal(t, err.Error(), "syncing ABC: boom", "error mismatch")
	assert.DeepEqual(t, sy.calls, []string{"metadata", "project ABC full=false", "project OPS full=false"}, "calls mismatch")
	assert.Equal(t, out.String(), "ABC: failed: boom\n", "output mismatch")
}

func TestRunCountsFailures(t *testing.T) {
	sy := &fakeSyncer{fail: map[string]error{
		"issue ABC-1": errors.New("not found"),
		"issue ABC-2": errors.New("timeout"),
	}}
	var out bytes.Buffer

	err := run(context.Background(), sy, &out, options{tickets: []string{"ABC-1", "ABC-2"}})
	assert.Equal(t, err.Error(), "2 steps failed: syncing ABC-1: not found", "error mismatch")
}
