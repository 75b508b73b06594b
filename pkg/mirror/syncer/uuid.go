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
	"net/url"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

var trailingToken = regexp.MustCompile(`\(([^()]*)\)(\.[^.()]*)?$`)

// ValidUUID returns true if s is a UUID in the 8-4-4-4-12 hex form
func ValidUUID(s string) bool {
	if len(s) != 36 {
		return false
	}

	for i, r := range s {
		switch i {
		case 8, 13, 18, 23:
			if r != '-' {
				return false
			}
		default:
			isHex := (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
			if !isHex {
				return false
			}
		}
	}

	_, err := uuid.Parse(s)
	return err == nil
}

// GuessUUID extracts a uuid from a trailing parenthesized token of a file
// name, such as "screenshot (3b241101-e2bb-4255-8caf-4136c566a962).png"
func GuessUUID(filename string) (string, bool) {
	m := trailingToken.FindStringSubmatch(filename)
	if m == nil || !ValidUUID(m[1]) {
		return "", false
	}

	return strings.ToLower(m[1]), true
}

// UUIDFromURL returns the last path segment of u that is a valid uuid
func UUIDFromURL(u *url.URL) (string, bool) {
	if u == nil {
		return "", false
	}

	segments := strings.Split(u.Path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if ValidUUID(segments[i]) {
			return strings.ToLower(segments[i]), true
		}
	}

	return "", false
}
