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
	"fmt"
	"net/url"
	"testing"

	"github.com/dnote/jiramirror/pkg/assert"
)

func TestValidUUID(t *testing.T) {
	testCases := []struct {
		input    string
		expected bool
	}{
		{input: "3b241101-e2bb-4255-8caf-4136c566a962", expected: true},
		{input: "3B241101-E2BB-4255-8CAF-4136C566A962", expected: true},
		{input: "3b241101-e2bb-4255-8caf-4136c566a96", expected: false},
		{input: "3b241101_e2bb_4255_8caf_4136c566a962", expected: false},
		{input: "3b241101-e2bb-4255-8caf-4136c566a96g", expected: false},
		{input: "{3b241101-e2bb-4255-8caf-4136c566a96}", expected: false},
		{input: "urn:uuid:3b241101-e2bb-4255-8caf-4136", expected: false},
		{input: "", expected: false},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			assert.Equal(t, ValidUUID(tc.input), tc.expected, "result mismatch")
		})
	}
}

func TestGuessUUID(t *testing.T) {
	testCases := []struct {
		filename string
		uuid     string
		ok       bool
	}{
		{filename: "screenshot (3b241101-e2bb-4255-8caf-4136c566a962).png", uuid: "3b241101-e2bb-4255-8caf-4136c566a962", ok: true},
		{filename: "notes (3B241101-E2BB-4255-8CAF-4136C566A962)", uuid: "3b241101-e2bb-4255-8caf-4136c566a962", ok: true},
		{filename: "notes (3b241101-e2bb-4255-8caf-4136c566a96).txt", ok: false},
		{filename: "(3b241101-e2bb-4255-8caf-4136c566a962) notes.txt", ok: false},
		{filename: "report (final).pdf", ok: false},
		{filename: "report.pdf", ok: false},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			uuid, ok := GuessUUID(tc.filename)
			assert.Equal(t, ok, tc.ok, "ok mismatch")
			assert.Equal(t, uuid, tc.uuid, "uuid mismatch")
		})
	}
}

func TestUUIDFromURL(t *testing.T) {
	testCases := []struct {
		url  string
		uuid string
		ok   bool
	}{
		{url: "https://api.media.atlassian.com/file/3b241101-e2bb-4255-8caf-4136c566a962/binary?token=x", uuid: "3b241101-e2bb-4255-8caf-4136c566a962", ok: true},
		{
			url:  "https://example.com/11111111-2222-3333-4444-555555555555/file/3b241101-e2bb-4255-8caf-4136c566a962/binary",
			uuid: "3b241101-e2bb-4255-8caf-4136c566a962",
			ok:   true,
		},
		{url: "https://example.com/rest/api/2/attachment/content/10001", ok: false},
		{url: "https://example.com/file/3b241101_e2bb_4255_8caf_4136c566a962/binary", ok: false},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			u, err := url.Parse(tc.url)
			assert.NilError(t, err, "parsing url")

			uuid, ok := UUIDFromURL(u)
			assert.Equal(t, ok, tc.ok, "ok mismatch")
			assert.Equal(t, uuid, tc.uuid, "uuid mismatch")
		})
	}

	_, ok := UUIDFromURL(nil)
	assert.Equal(t, ok, false, "nil url")
}
