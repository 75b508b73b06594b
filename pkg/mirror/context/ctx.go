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

// Package context defines the mirror context
package context

import (
	"github.com/dnote/jiramirror/pkg/clock"
	"github.com/dnote/jiramirror/pkg/mirror/config"
	"github.com/dnote/jiramirror/pkg/mirror/cookie"
	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/dnote/jiramirror/pkg/mirror/syncer"
)

// MirrorCtx is a context holding the information of the current runtime
type MirrorCtx struct {
	Version string
	Config  config.Config
	DB      *database.DB
	Clock   clock.Clock
	Client  *jira.Client
	Cookies *cookie.FileSource
	Syncer  *syncer.Syncer
}

// Redact replaces private information from the context with a set of
// placeholder values.
func Redact(ctx MirrorCtx) MirrorCtx {
	ctx.Config = ctx.Config.Redact()

	return ctx
}

// Close releases the resources held by the context
func (ctx *MirrorCtx) Close() error {
	if ctx.DB == nil {
		return nil
	}

	return ctx.DB.Close()
}
