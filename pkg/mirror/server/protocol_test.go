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

package server

import (
	"fmt"
	"testing"

	"github.com/dnote/jiramirror/pkg/assert"
)

func TestParse(t *testing.T) {
	testCases := []struct {
		line     string
		expected Request
	}{
		{line: "req1 FETCH_TICKET_LIST", expected: Request{ID: "req1", Command: FetchTicketList}},
		{line: "req-2 FETCH_TICKET PROJ-1,MARKDOWN", expected: Request{ID: "req-2", Command: FetchTicket, Params: []string{"PROJ-1", "MARKDOWN"}}},
		{line: "3 SYNCHRONISE_TICKET ABC-10\r\n", expected: Request{ID: "3", Command: SynchroniseTicket, Params: []string{"ABC-10"}}},
		{line: "x EXIT_SERVER_NOW", expected: Request{ID: "x", Command: ExitServerNow}},
		{line: "a FETCH_ATTACHMENT_CONTENT 3b241101-e2bb-4255-8caf-4136c566a962", expected: Request{ID: "a", Command: FetchAttachmentContent, Params: []string{"3b241101-e2bb-4255-8caf-4136c566a962"}}},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			req, err := Parse(tc.line)
			assert.NilError(t, err, "parsing")
			assert.DeepEqual(t, req, tc.expected, "request mismatch")
		})
	}
}

func TestParseErrors(t *testing.T) {
	testCases := []struct {
		line string
		id   string
	}{
		{line: "req1 FETCH_TICKET_LIST extra", id: "req1"},
		{line: "req1 FETCH_TICKET PROJ-1", id: "req1"},
		{line: "req1 FETCH_TICKET PROJ-1,MARKDOWN,EXTRA", id: "req1"},
		{line: "req1 FETCH_TICKET PROJ-1,", id: "req1"},
		{line: "req1 SYNCHRONISE_TICKET", id: "req1"},
		{line: "req1 SYNCHRONISE_TICKET ABC-1 extra", id: "req1"},
		{line: "req1 FETCH_EVERYTHING", id: "req1"},
		{line: "req1", id: "req1"},
		{line: "req1 ", id: "req1"},
		{line: "req_1 FETCH_TICKET_LIST", id: "-"},
		{line: " FETCH_TICKET_LIST", id: "-"},
		{line: "réq FETCH_TICKET_LIST", id: "-"},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			_, err := Parse(tc.line)
			perr, ok := err.(*ParseError)
			if !ok {
				t.Fatalf("expected a ParseError, got %v", err)
			}

			assert.Equal(t, perr.ID, tc.id, "id mismatch")
		})
	}
}

func TestFlatten(t *testing.T) {
	assert.Equal(t, flatten("a\nb\r\nc\rd "), "a b c d", "result mismatch")
}

func TestFormatReply(t *testing.T) {
	assert.Equal(t, formatReply("r", KindAck, ""), "r ACK", "ack mismatch")
	assert.Equal(t, formatReply("r", KindResult, "YQ=="), "r RESULT YQ==", "result mismatch")
}
