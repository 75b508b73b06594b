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

package scheduler

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dnote/jiramirror/pkg/assert"
	"github.com/dnote/jiramirror/pkg/clock"
	"github.com/dnote/jiramirror/pkg/mirror/config"
	"github.com/dnote/jiramirror/pkg/mirror/syncer"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
)

func mustParse(t *testing.T, spec string) cron.Schedule {
	s, err := cron.Parse(spec)
	assert.NilError(t, err, "parsing schedule")

	return s
}

func waitFor(t *testing.T, cond func() bool, message string) {
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting: %s", message)
		}
		time.Sleep(time.Millisecond)
	}
}

func expectRun(t *testing.T, runs <-chan struct{}, message string) {
	select {
	case <-runs:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for a run: %s", message)
	}
}

func expectNoRun(t *testing.T, runs <-chan struct{}, message string) {
	select {
	case <-runs:
		t.Fatalf("unexpected run: %s", message)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestFixedPolicy(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	p := &Fixed{Schedule: mustParse(t, "@every 90s")}

	assert.Equal(t, p.Next(now, nil), now.Add(90*time.Second), "next after success")
	assert.Equal(t, p.Next(now, errors.New("boom")), now.Add(90*time.Second), "next after failure")
}

func TestExponentialPolicy(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	scheduled := now.Add(90 * time.Second)
	p := NewExponential(mustParse(t, "@every 90s"))
	failure := errors.New("boom")

	first := p.Next(now, failure)
	if !first.After(now) || first.After(now.Add(InitialRetryInterval*2)) {
		t.Fatalf("first retry out of range: %s", first.Sub(now))
	}

	for i := 0; i < 30; i++ {
		next := p.Next(now, failure)
		if next.After(scheduled) {
			t.Fatalf("retry %d later than the schedule: %s", i, next.Sub(now))
		}
	}
	assert.Equal(t, p.Next(now, failure), scheduled, "retry should be capped at the schedule")

	assert.Equal(t, p.Next(now, nil), scheduled, "next after success")

	again := p.Next(now, failure)
	if again.After(now.Add(InitialRetryInterval * 2)) {
		t.Fatalf("backoff was not reset: %s", again.Sub(now))
	}
}

func TestNewPolicy(t *testing.T) {
	testCases := []struct {
		name     string
		spec     string
		ok       bool
		expected interface{}
	}{
		{name: config.RetryPolicyFixed, spec: "@every 90s", ok: true, expected: &Fixed{}},
		{name: "", spec: "@every 90s", ok: true, expected: &Fixed{}},
		{name: config.RetryPolicyExponential, spec: "0 */5 * * * *", ok: true, expected: &Exponential{}},
		{name: config.RetryPolicyFixed, spec: "every 90s", ok: false},
		{name: "linear", spec: "@every 90s", ok: false},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			p, err := NewPolicy(tc.name, tc.spec)
			if !tc.ok {
				assert.NotEqual(t, err, nil, "expected an error")
				return
			}

			assert.NilError(t, err, "creating policy")
			assert.Equal(t, fmt.Sprintf("%T", p), fmt.Sprintf("%T", tc.expected), "policy type mismatch")
		})
	}
}

func TestSchedulerRunsOnStartAndOnSchedule(t *testing.T) {
	clk := clock.NewMock()
	runs := make(chan struct{}, 10)

	s := New(clk, Job{
		Name:   "test",
		Policy: &Fixed{Schedule: mustParse(t, "@every 90s")},
		Run: func(ctx context.Context) error {
			runs <- struct{}{}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	expectRun(t, runs, "initial run")
	waitFor(t, func() bool { return clk.Waiters() == 1 }, "loop to wait")

	clk.Advance(89 * time.Second)
	expectNoRun(t, runs, "before the interval")

	clk.Advance(time.Second)
	expectRun(t, runs, "after the interval")

	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

func TestSchedulerRetriesFailures(t *testing.T) {
	clk := clock.NewMock()
	runs := make(chan struct{}, 10)
	var count int32

	s := New(clk, Job{
		Name:   "flaky",
		Policy: NewExponential(mustParse(t, "@every 1h")),
		Run: func(ctx context.Context) error {
			runs <- struct{}{}
			if atomic.AddInt32(&count, 1) == 1 {
				return errors.New("boom")
			}
			return nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	expectRun(t, runs, "initial run")
	waitFor(t, func() bool { return clk.Waiters() == 1 }, "loop to wait")

	clk.Advance(InitialRetryInterval * 2)
	expectRun(t, runs, "retry well before the schedule")
}

func TestSchedulerStopsBlockedJob(t *testing.T) {
	clk := clock.NewMock()
	started := make(chan struct{})

	s := New(clk,
		Job{
			Name:   "blocked",
			Policy: &Fixed{Schedule: mustParse(t, "@every 90s")},
			Run: func(ctx context.Context) error {
				close(started)
				<-ctx.Done()
				return ctx.Err()
			},
		},
		Job{
			Name:   "quick",
			Policy: &Fixed{Schedule: mustParse(t, "@every 90s")},
			Run:    func(ctx context.Context) error { return nil },
		},
	)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	<-started
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("scheduler did not stop")
	}
}

type fakeSyncer struct {
	metadata    int32
	incremental int32
	full        int32
}

func (f *fakeSyncer) SyncMetadata(ctx context.Context) (*syncer.Stats, error) {
	atomic.AddInt32(&f.metadata, 1)
	return &syncer.Stats{}, nil
}

func (f *fakeSyncer) SyncProjects(ctx context.Context, full bool) (*syncer.Stats, error) {
	if full {
		atomic.AddInt32(&f.full, 1)
	} else {
		atomic.AddInt32(&f.incremental, 1)
	}
	return &syncer.Stats{}, nil
}

func TestMirrorJobs(t *testing.T) {
	cfg := config.Config{
		MetadataSchedule:    "@every 300s",
		IncrementalSchedule: "@every 90s",
		FullSchedule:        "@every 7200s",
		RetryPolicy:         config.RetryPolicyFixed,
	}
	sy := &fakeSyncer{}

	jobs, err := MirrorJobs(sy, cfg)
	assert.NilError(t, err, "creating jobs")
	assert.Equal(t, len(jobs), 3, "job count")

	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	expected := []struct {
		name     string
		interval time.Duration
	}{
		{"metadata", 300 * time.Second},
		{"incremental", 90 * time.Second},
		{"full", 7200 * time.Second},
	}
	for i, e := range expected {
		assert.Equal(t, jobs[i].Name, e.name, "job name mismatch")
		assert.Equal(t, jobs[i].Policy.Next(now, nil), now.Add(e.interval), "interval mismatch")
		assert.NilError(t, jobs[i].Run(context.Background()), "running job")
	}

	assert.Equal(t, atomic.LoadInt32(&sy.metadata), int32(1), "metadata runs")
	assert.Equal(t, atomic.LoadInt32(&sy.incremental), int32(1), "incremental runs")
	assert.Equal(t, atomic.LoadInt32(&sy.full), int32(1), "full runs")

	cfg.FullSchedule = "every two hours"
	_, err = MirrorJobs(sy, cfg)
	assert.NotEqual(t, err, nil, "expected an error")
}
