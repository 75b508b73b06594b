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

// Package scheduler runs the periodic sync jobs
package scheduler

import (
	"context"
	"sync"

	"github.com/dnote/jiramirror/pkg/clock"
	"github.com/dnote/jiramirror/pkg/mirror/config"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/syncer"
	"github.com/pkg/errors"
)

// Job is a unit of periodic work
type Job struct {
	Name   string
	Policy Policy
	Run    func(ctx context.Context) error
}

// Scheduler runs each job in its own loop
type Scheduler struct {
	clock clock.Clock
	jobs  []Job
}

// New returns a scheduler for the jobs
func New(c clock.Clock, jobs ...Job) *Scheduler {
	return &Scheduler{clock: c, jobs: jobs}
}

// Run runs every job once, then again whenever its policy says so, until ctx
// is done. It returns once every loop has stopped.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup

	for _, j := range s.jobs {
		wg.Add(1)
		go func(j Job) {
			defer wg.Done()
			s.loop(ctx, j)
		}(j)
	}

	wg.Wait()
}

func (s *Scheduler) loop(ctx context.Context, j Job) {
	for {
		start := s.clock.Now()
		err := j.Run(ctx)
		if ctx.Err() != nil {
			log.WithFields(log.Fields{"job": j.Name}).Debug("job stopped")
			return
		}

		now := s.clock.Now()
		entry := log.WithFields(log.Fields{
			"job":      j.Name,
			"duration": now.Sub(start),
		})
		if err != nil {
			entry.ErrorWrap(err, "job failed")
		} else {
			entry.Debug("job finished")
		}

		wait := j.Policy.Next(now, err).Sub(now)
		select {
		case <-ctx.Done():
			return
		case <-s.clock.After(wait):
		}
	}
}

// Syncer is the work the mirror schedules
type Syncer interface {
	SyncMetadata(ctx context.Context) (*syncer.Stats, error)
	SyncProjects(ctx context.Context, full bool) (*syncer.Stats, error)
}

// MirrorJobs returns the metadata, incremental and full sync jobs
func MirrorJobs(sy Syncer, cfg config.Config) ([]Job, error) {
	specs := []struct {
		name string
		spec string
		run  func(ctx context.Context) error
	}{
		{"metadata", cfg.MetadataSchedule, func(ctx context.Context) error {
			_, err := sy.SyncMetadata(ctx)
			return err
		}},
		{"incremental", cfg.IncrementalSchedule, func(ctx context.Context) error {
			_, err := sy.SyncProjects(ctx, false)
			return err
		}},
		{"full", cfg.FullSchedule, func(ctx context.Context) error {
			_, err := sy.SyncProjects(ctx, true)
			return err
		}},
	}

	var ret []Job
	for _, s := range specs {
		p, err := NewPolicy(cfg.RetryPolicy, s.spec)
		if err != nil {
			return nil, errors.Wrapf(err, "%s job", s.name)
		}

		ret = append(ret, Job{Name: s.name, Policy: p, Run: s.run})
	}

	return ret, nil
}
