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
	"strings"
)

// Command is a request command
type Command string

// Commands
const (
	FetchTicket                  Command = "FETCH_TICKET"
	FetchTicketList              Command = "FETCH_TICKET_LIST"
	FetchTicketKeyValueFields    Command = "FETCH_TICKET_KEY_VALUE_FIELDS"
	FetchAttachmentListForTicket Command = "FETCH_ATTACHMENT_LIST_FOR_TICKET"
	FetchAttachmentContent       Command = "FETCH_ATTACHMENT_CONTENT"
	SynchroniseTicket            Command = "SYNCHRONISE_TICKET"
	SynchroniseUpdated           Command = "SYNCHRONISE_UPDATED"
	SynchroniseAll               Command = "SYNCHRONISE_ALL"
	ExitServerAfterRequests      Command = "EXIT_SERVER_AFTER_REQUESTS"
	ExitServerNow                Command = "EXIT_SERVER_NOW"
)

// arity is the number of comma separated parameters of each command
var arity = map[Command]int{
	FetchTicket:                  2,
	FetchTicketList:              0,
	FetchTicketKeyValueFields:    1,
	FetchAttachmentListForTicket: 1,
	FetchAttachmentContent:       1,
	SynchroniseTicket:            1,
	SynchroniseUpdated:           0,
	SynchroniseAll:               0,
	ExitServerAfterRequests:      0,
	ExitServerNow:                0,
}

// Reply kinds
const (
	KindAck      = "ACK"
	KindResult   = "RESULT"
	KindError    = "ERROR"
	KindFinished = "FINISHED"
)

// missingID is echoed when a request has no usable id
const missingID = "-"

// Request is a parsed request line
type Request struct {
	ID      string
	Command Command
	Params  []string
}

// ParseError is a malformed request. ID is the id to echo in the reply.
type ParseError struct {
	ID      string
	Message string
}

func (e *ParseError) Error() string {
	return e.Message
}

func validID(id string) bool {
	if id == "" {
		return false
	}

	for _, r := range id {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		if !isAlnum && r != '-' {
			return false
		}
	}

	return true
}

// Parse parses a request line of the form "<id> <COMMAND>[ <p1,p2,...>]"
func Parse(line string) (Request, error) {
	line = strings.TrimRight(line, "\r\n")
	parts := strings.Split(line, " ")

	id := parts[0]
	if !validID(id) {
		return Request{}, &ParseError{ID: missingID, Message: fmt.Sprintf("invalid request id '%s'", id)}
	}

	if len(parts) < 2 || parts[1] == "" {
		return Request{}, &ParseError{ID: id, Message: "missing command"}
	}
	if len(parts) > 3 {
		return Request{}, &ParseError{ID: id, Message: "too many arguments"}
	}

	cmd := Command(parts[1])
	n, ok := arity[cmd]
	if !ok {
		return Request{}, &ParseError{ID: id, Message: fmt.Sprintf("unknown command '%s'", parts[1])}
	}

	req := Request{ID: id, Command: cmd}
	if n == 0 {
		if len(parts) == 3 {
			return Request{}, &ParseError{ID: id, Message: fmt.Sprintf("%s takes no parameters", cmd)}
		}
		return req, nil
	}

	if len(parts) != 3 {
		return Request{}, &ParseError{ID: id, Message: fmt.Sprintf("%s takes %d parameters", cmd, n)}
	}

	params := strings.Split(parts[2], ",")
	if len(params) != n {
		return Request{}, &ParseError{ID: id, Message: fmt.Sprintf("%s takes %d parameters, got %d", cmd, n, len(params))}
	}
	for i, p := range params {
		if p == "" {
			return Request{}, &ParseError{ID: id, Message: fmt.Sprintf("parameter %d of %s is empty", i+1, cmd)}
		}
	}
	req.Params = params

	return req, nil
}

// flatten puts a message on a single line
func flatten(msg string) string {
	msg = strings.ReplaceAll(msg, "\r\n", " ")
	msg = strings.ReplaceAll(msg, "\n", " ")
	msg = strings.ReplaceAll(msg, "\r", " ")

	return strings.TrimSpace(msg)
}

// formatReply returns a reply line without the trailing newline
func formatReply(id, kind, payload string) string {
	if payload == "" {
		return id + " " + kind
	}

	return id + " " + kind + " " + payload
}
