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

package clock

import (
	"testing"
	"time"

	"github.com/dnote/jiramirror/pkg/assert"
)

func TestMockAfter(t *testing.T) {
	c := NewMock()
	start := c.Now()

	ch := c.After(10 * time.Second)
	assert.Equal(t, c.Waiters(), 1, "waiter count mismatch")

	c.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("timer fired early")
	default:
	}

	c.Advance(5 * time.Second)
	select {
	case got := <-ch:
		assert.Equal(t, got, start.Add(10*time.Second), "fired time mismatch")
	default:
		t.Fatal("timer did not fire")
	}

	assert.Equal(t, c.Waiters(), 0, "waiter count mismatch after firing")
}

func TestMockAfterNonPositive(t *testing.T) {
	c := NewMock()

	select {
	case <-c.After(0):
	default:
		t.Fatal("zero duration timer did not fire immediately")
	}
}

func TestMockSetNow(t *testing.T) {
	c := NewMock()
	ch1 := c.After(time.Minute)
	ch2 := c.After(time.Hour)

	c.SetNow(c.Now().Add(2 * time.Minute))

	select {
	case <-ch1:
	default:
		t.Fatal("first timer did not fire")
	}
	select {
	case <-ch2:
		t.Fatal("second timer fired early")
	default:
	}
	assert.Equal(t, c.Waiters(), 1, "waiter count mismatch")
}
