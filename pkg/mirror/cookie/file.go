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

package cookie

import (
	"bufio"
	"context"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/pkg/errors"
	"github.com/radovskyb/watcher"
)

const httpOnlyPrefix = "#HttpOnly_"

// Parse reads a Netscape cookies.txt file and returns the last cookie with
// the given name
func Parse(r io.Reader, name string) (Cookie, error) {
	var ret Cookie
	found := false

	scanner := bufio.NewScanner(r)
	lineNum := 0
	for scanner.Scan() {
		lineNum++

		line := strings.TrimRight(scanner.Text(), "\r")
		line = strings.TrimPrefix(line, httpOnlyPrefix)
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.Split(line, "\t")
		if len(parts) != 7 {
			log.WithFields(log.Fields{"line": lineNum}).Debug("skipping malformed cookie line")
			continue
		}
		if parts[5] != name {
			continue
		}

		expiry, err := strconv.ParseInt(parts[4], 10, 64)
		if err != nil {
			return ret, errors.Wrapf(err, "parsing expiry on line %d", lineNum)
		}

		ret = Cookie{Name: name, Value: parts[6]}
		if expiry > 0 {
			t := time.Unix(expiry, 0).UTC()
			ret.Expiry = &t
		}
		found = true
	}
	if err := scanner.Err(); err != nil {
		return ret, errors.Wrap(err, "reading cookies")
	}

	if !found {
		return Cookie{Name: name}, errors.Wrapf(ErrCookieInvalid, "cookie %s not found", name)
	}

	return ret, nil
}

// FileSource reads the cookie from a cookies.txt file. The parsed cookie is
// cached until the file changes.
type FileSource struct {
	path string
	name string

	mu     sync.Mutex
	cached *Cookie
}

// NewFileSource returns a source reading the named cookie from path
func NewFileSource(path, name string) *FileSource {
	return &FileSource{path: path, name: name}
}

// Get returns the cookie, reading the file if nothing is cached
func (s *FileSource) Get() (Cookie, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cached != nil {
		return *s.cached, nil
	}

	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return Cookie{Name: s.name}, errors.Wrapf(ErrCookieInvalid, "cookie file %s does not exist", s.path)
		}
		return Cookie{}, errors.Wrap(err, "opening cookie file")
	}
	defer f.Close()

	c, err := Parse(f, s.name)
	if err != nil {
		return c, errors.Wrapf(err, "parsing %s", s.path)
	}

	s.cached = &c
	return c, nil
}

// Invalidate drops the cached cookie so that the next Get reads the file
func (s *FileSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cached = nil
}

// Watch invalidates the cache whenever the file changes, until ctx is done.
// It blocks, and returns an error if the file cannot be watched.
func (s *FileSource) Watch(ctx context.Context, interval time.Duration) error {
	if interval < time.Millisecond {
		return errors.Errorf("invalid poll interval %s", interval)
	}

	w := watcher.New()
	w.SetMaxEvents(1)
	w.FilterOps(watcher.Write, watcher.Create, watcher.Remove, watcher.Rename)

	if err := w.Add(s.path); err != nil {
		return errors.Wrapf(err, "watching %s", s.path)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- w.Start(interval)
	}()
	w.Wait()

	// the watcher stops tracking a deleted file, so it is added back once
	// the file exists again
	dropped := false
	retry := time.NewTicker(interval)
	defer retry.Stop()

	done := ctx.Done()
	for {
		select {
		case event := <-w.Event:
			log.WithFields(log.Fields{"path": s.path, "op": event.Op.String()}).Debug("cookie file changed")
			if event.Op == watcher.Remove || event.Op == watcher.Rename {
				dropped = true
			}
			s.Invalidate()
		case err := <-w.Error:
			if errors.Is(err, watcher.ErrWatchedFileDeleted) {
				dropped = true
				s.Invalidate()
				continue
			}
			log.ErrorWrap(err, "watching cookie file")
		case <-retry.C:
			if !dropped || done == nil {
				continue
			}
			if _, err := os.Stat(s.path); err != nil {
				continue
			}
			if err := w.Add(s.path); err != nil {
				continue
			}
			log.WithFields(log.Fields{"path": s.path}).Debug("cookie file recreated")
			dropped = false
			s.Invalidate()
		case err := <-errCh:
			return errors.Wrap(err, "running cookie watcher")
		case <-w.Closed:
			return nil
		case <-done:
			// keep draining events until the watcher has stopped
			done = nil
			go w.Close()
		}
	}
}
