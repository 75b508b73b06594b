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
	"context"
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/render"
	"github.com/dnote/jiramirror/pkg/mirror/syncer"
	"github.com/pkg/errors"
)

// FormatMarkdown is the only ticket format
const FormatMarkdown = "MARKDOWN"

var issueKeyPattern = regexp.MustCompile(`^[A-Z]+-[0-9]+$`)

// Syncer is the on demand sync work requests may trigger
type Syncer interface {
	SyncMetadata(ctx context.Context) (*syncer.Stats, error)
	SyncProjects(ctx context.Context, full bool) (*syncer.Stats, error)
	SyncIssue(ctx context.Context, key string) (*syncer.Stats, error)
	FetchAttachmentContent(ctx context.Context, uuid string) ([]byte, error)
}

// Mirror answers requests from the local store, syncing on demand
type Mirror struct {
	db     *database.DB
	syncer Syncer
	routes map[Command]func(context.Context, []string) (string, bool, error)
}

// NewMirror returns the handler of every mirror command
func NewMirror(db *database.DB, sy Syncer) *Mirror {
	m := &Mirror{db: db, syncer: sy}
	m.routes = map[Command]func(context.Context, []string) (string, bool, error){
		FetchTicket:                  m.fetchTicket,
		FetchTicketList:              m.fetchTicketList,
		FetchTicketKeyValueFields:    m.fetchTicketFields,
		FetchAttachmentListForTicket: m.fetchAttachmentList,
		FetchAttachmentContent:       m.fetchAttachmentContent,
		SynchroniseTicket:            m.synchroniseTicket,
		SynchroniseUpdated:           m.synchroniseUpdated,
		SynchroniseAll:               m.synchroniseAll,
	}

	return m
}

// Handle runs the request and sends its result or error
func (m *Mirror) Handle(ctx context.Context, req Request, r *Responder) {
	route, ok := m.routes[req.Command]
	if !ok {
		r.Error(fmt.Sprintf("unsupported command %s", req.Command))
		return
	}

	payload, hasResult, err := route(ctx, req.Params)
	if err != nil {
		log.WithFields(log.Fields{
			"id":      req.ID,
			"command": string(req.Command),
		}).ErrorWrap(err, "request failed")
		r.Error(err.Error())
		return
	}

	if hasResult {
		r.Result(payload)
	}
}

func encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func checkIssueKey(key string) error {
	if !issueKeyPattern.MatchString(key) {
		return errors.Errorf("invalid issue key '%s'", key)
	}

	return nil
}

func (m *Mirror) fetchTicket(ctx context.Context, params []string) (string, bool, error) {
	key, format := params[0], params[1]
	if err := checkIssueKey(key); err != nil {
		return "", false, err
	}
	if format != FormatMarkdown {
		return "", false, errors.Errorf("unsupported format '%s'", format)
	}

	ticket, err := render.LoadTicket(m.db, key)
	if errors.Cause(err) == database.ErrNotFound {
		if _, err := m.syncer.SyncIssue(ctx, key); err != nil {
			return "", false, errors.Wrapf(err, "syncing %s", key)
		}
		ticket, err = render.LoadTicket(m.db, key)
	}
	if err != nil {
		return "", false, err
	}

	return encode([]byte(render.Render(ticket))), true, nil
}

func (m *Mirror) fetchTicketList(ctx context.Context, params []string) (string, bool, error) {
	keys, err := database.ListIssueKeys(m.db)
	if err != nil {
		return "", false, err
	}

	return strings.Join(keys, ","), true, nil
}

func (m *Mirror) fetchTicketFields(ctx context.Context, params []string) (string, bool, error) {
	key := params[0]
	if err := checkIssueKey(key); err != nil {
		return "", false, err
	}

	issue, err := database.GetIssueByKey(m.db, key)
	if err != nil {
		return "", false, err
	}

	values, err := database.LoadIssueFields(m.db, issue.ID)
	if err != nil {
		return "", false, err
	}

	defs, err := database.LoadFields(m.db)
	if err != nil {
		return "", false, err
	}
	fieldKeys := make(map[string]string, len(defs))
	for _, d := range defs {
		fieldKeys[d.ID] = d.Key
	}

	pairs := make([]string, 0, len(values))
	for _, v := range values {
		fieldKey, ok := fieldKeys[v.FieldID]
		if !ok || fieldKey == "" {
			fieldKey = v.FieldID
		}

		pairs = append(pairs, fieldKey+":"+encode([]byte(v.Value)))
	}

	return strings.Join(pairs, ","), true, nil
}

func (m *Mirror) fetchAttachmentList(ctx context.Context, params []string) (string, bool, error) {
	key := params[0]
	if err := checkIssueKey(key); err != nil {
		return "", false, err
	}

	issue, err := database.GetIssueByKey(m.db, key)
	if err != nil {
		return "", false, err
	}

	attachments, err := database.LoadAttachments(m.db, issue.ID)
	if err != nil {
		return "", false, err
	}

	var pairs []string
	for _, a := range attachments {
		if !a.UUID.Valid {
			continue
		}

		pairs = append(pairs, a.UUID.String+":"+encode([]byte(a.Filename)))
	}

	return strings.Join(pairs, ","), true, nil
}

func (m *Mirror) fetchAttachmentContent(ctx context.Context, params []string) (string, bool, error) {
	id := params[0]
	if !syncer.ValidUUID(id) {
		return "", false, errors.Errorf("invalid attachment uuid '%s'", id)
	}

	content, err := m.syncer.FetchAttachmentContent(ctx, strings.ToLower(id))
	if err != nil {
		return "", false, err
	}

	return encode(content), true, nil
}

func (m *Mirror) synchroniseTicket(ctx context.Context, params []string) (string, bool, error) {
	key := params[0]
	if err := checkIssueKey(key); err != nil {
		return "", false, err
	}

	if _, err := m.syncer.SyncIssue(ctx, key); err != nil {
		return "", false, err
	}

	return "", false, nil
}

func (m *Mirror) synchroniseUpdated(ctx context.Context, params []string) (string, bool, error) {
	if _, err := m.syncer.SyncProjects(ctx, false); err != nil {
		return "", false, err
	}

	return "", false, nil
}

func (m *Mirror) synchroniseAll(ctx context.Context, params []string) (string, bool, error) {
	if _, err := m.syncer.SyncMetadata(ctx); err != nil {
		return "", false, err
	}
	if _, err := m.syncer.SyncProjects(ctx, true); err != nil {
		return "", false, err
	}

	return "", false, nil
}
