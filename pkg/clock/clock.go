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

// Package clock provides an abstract layer over the standard time package
package clock

import (
	"sort"
	"sync"
	"time"
)

// Clock is an interface to the standard library time.
// It is used to implement a real or a mock clock. The latter is used in tests.
type Clock interface {
	Now() time.Time
	// After waits for the duration to elapse and then sends the current time
	// on the returned channel.
	After(d time.Duration) <-chan time.Time
}

type clock struct{}

func (c *clock) Now() time.Time {
	return time.Now()
}

func (c *clock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// New returns an instance of a real clock
func New() Clock {
	return &clock{}
}

type waiter struct {
	deadline time.Time
	ch       chan time.Time
}

// Mock is a mock instance of clock. Timers created by After fire only when
// the mock time is moved past their deadline.
type Mock struct {
	mu          sync.Mutex
	currentTime time.Time
	waiters     []waiter
}

// NewMock returns an instance of a mock clock
func NewMock() *Mock {
	return &Mock{
		currentTime: time.Date(2009, time.November, 10, 23, 0, 0, 0, time.UTC),
	}
}

// Now returns the current time
func (c *Mock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.currentTime
}

// After returns a channel that receives the mock time once it reaches now+d
func (c *Mock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	ch := make(chan time.Time, 1)
	deadline := c.currentTime.Add(d)
	if d <= 0 {
		ch <- c.currentTime
		return ch
	}

	c.waiters = append(c.waiters, waiter{deadline: deadline, ch: ch})
	return ch
}

// SetNow sets the current time for the mock clock and fires due timers
func (c *Mock) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentTime = t
	c.fire()
}

// Advance moves the mock time forward by d and fires due timers
func (c *Mock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.currentTime = c.currentTime.Add(d)
	c.fire()
}

// Waiters returns the number of timers that have not fired yet
func (c *Mock) Waiters() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.waiters)
}

func (c *Mock) fire() {
	sort.Slice(c.waiters, func(i, j int) bool {
		return c.waiters[i].deadline.Before(c.waiters[j].deadline)
	})

	var pending []waiter
	for _, w := range c.waiters {
		if w.deadline.After(c.currentTime) {
			pending = append(pending, w)
			continue
		}

		w.ch <- c.currentTime
	}

	c.waiters = pending
}
