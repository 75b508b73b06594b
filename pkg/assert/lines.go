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

package assert

import (
	"bufio"
	"io"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// LineReader reads newline terminated output of a process under test. Lines
// are pumped in the background so that a timed out wait does not lose data.
type LineReader struct {
	lines chan string
	err   error
}

// NewLineReader starts reading lines from r
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{
		lines: make(chan string, 1024),
	}

	go func() {
		scanner := bufio.NewScanner(r)
		for scanner.Scan() {
			lr.lines <- scanner.Text()
		}

		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		lr.err = err
		close(lr.lines)
	}()

	return lr
}

// Next returns the next line, waiting at most timeout for it.
func (lr *LineReader) Next(timeout time.Duration) (string, error) {
	select {
	case line, ok := <-lr.lines:
		if !ok {
			return "", lr.err
		}
		return line, nil
	case <-time.After(timeout):
		return "", errors.New("timeout waiting for a line")
	}
}

// WaitForLine reads lines until one equal to expected appears, and returns
// every line read before it.
func (lr *LineReader) WaitForLine(expected string, timeout time.Duration) ([]string, error) {
	var before []string
	deadline := time.Now().Add(timeout)

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return before, errors.Errorf("timeout waiting for line '%s'", expected)
		}

		line, err := lr.Next(remaining)
		if err != nil {
			return before, errors.Wrapf(err, "waiting for line '%s'", expected)
		}
		if strings.TrimSpace(line) == expected {
			return before, nil
		}

		before = append(before, line)
	}
}
