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
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/dnote/jiramirror/pkg/mirror/config"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
)

// InitialRetryInterval is the first delay of the exponential policy
const InitialRetryInterval = 5 * time.Second

// Policy decides when a job runs next
type Policy interface {
	// Next returns the next run time given the time the last run finished
	// and its result
	Next(now time.Time, err error) time.Time
}

// Fixed runs the job on its schedule whatever the outcome
type Fixed struct {
	Schedule cron.Schedule
}

// Next returns the next scheduled time
func (p *Fixed) Next(now time.Time, err error) time.Time {
	return p.Schedule.Next(now)
}

// Exponential retries a failed job with an exponential backoff, never
// waiting longer than the schedule would. A success resets the backoff.
type Exponential struct {
	Schedule cron.Schedule
	backoff  *backoff.ExponentialBackOff
}

// NewExponential returns an exponential policy over the schedule
func NewExponential(schedule cron.Schedule) *Exponential {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = InitialRetryInterval
	b.MaxInterval = 24 * time.Hour
	b.MaxElapsedTime = 0
	b.Reset()

	return &Exponential{Schedule: schedule, backoff: b}
}

// Next returns the scheduled time after a success and the backoff time,
// capped at the scheduled time, after a failure
func (p *Exponential) Next(now time.Time, err error) time.Time {
	scheduled := p.Schedule.Next(now)
	if err == nil {
		p.backoff.Reset()
		return scheduled
	}

	d := p.backoff.NextBackOff()
	retry := now.Add(d)
	if d == backoff.Stop || retry.After(scheduled) {
		return scheduled
	}

	return retry
}

// NewPolicy returns the named policy over a cron schedule spec
func NewPolicy(name, spec string) (Policy, error) {
	schedule, err := cron.Parse(spec)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing schedule '%s'", spec)
	}

	switch name {
	case config.RetryPolicyFixed, "":
		return &Fixed{Schedule: schedule}, nil
	case config.RetryPolicyExponential:
		return NewExponential(schedule), nil
	}

	return nil, errors.Errorf("unknown retry policy '%s'", name)
}
