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

// Package cookie provides the session cookie used to download attachments
package cookie

import (
	"net/http"
	"time"

	"github.com/pkg/errors"
)

// ExpiryMargin is how long a cookie must remain valid for it to be used
const ExpiryMargin = 5 * time.Second

var (
	// ErrCookieInvalid is returned when the session cookie is missing, empty or about to expire
	ErrCookieInvalid = errors.New("session cookie is invalid")
)

// Cookie is a session cookie. A nil Expiry means the cookie lives for the session.
type Cookie struct {
	Name   string
	Value  string
	Expiry *time.Time
}

// Valid returns ErrCookieInvalid unless the cookie has a value and does not
// expire within ExpiryMargin of now
func (c Cookie) Valid(now time.Time) error {
	if c.Value == "" {
		return errors.Wrapf(ErrCookieInvalid, "cookie %s has no value", c.Name)
	}
	if c.Expiry != nil && !c.Expiry.After(now.Add(ExpiryMargin)) {
		return errors.Wrapf(ErrCookieInvalid, "cookie %s expires at %s", c.Name, c.Expiry.UTC().Format(time.RFC3339))
	}

	return nil
}

// HTTPCookie returns the cookie to attach to a request
func (c Cookie) HTTPCookie() *http.Cookie {
	return &http.Cookie{Name: c.Name, Value: c.Value}
}

// Source supplies the current session cookie
type Source interface {
	Get() (Cookie, error)
}

// Static is a Source that always returns the same cookie
type Static Cookie

// Get returns the cookie
func (s Static) Get() (Cookie, error) {
	return Cookie(s), nil
}
