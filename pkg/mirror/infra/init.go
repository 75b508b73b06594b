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

// Package infra wires the configuration, the local store and the remote
// client into a mirror context
package infra

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dnote/jiramirror/pkg/clock"
	"github.com/dnote/jiramirror/pkg/mirror/config"
	"github.com/dnote/jiramirror/pkg/mirror/consts"
	"github.com/dnote/jiramirror/pkg/mirror/context"
	"github.com/dnote/jiramirror/pkg/mirror/cookie"
	"github.com/dnote/jiramirror/pkg/mirror/database"
	"github.com/dnote/jiramirror/pkg/mirror/jira"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/syncer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// RunEFunc is a function type of jiramirror commands
type RunEFunc func(*cobra.Command, []string) error

// InitFunc builds the context a command runs with
type InitFunc func() (*context.MirrorCtx, error)

func openDB(path string) (*database.DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.Wrapf(err, "creating the directory of %s", path)
	}

	db, err := database.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "connecting to db")
	}

	if err := database.Migrate(db); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "running migrations")
	}

	return db, nil
}

func userAgent(versionTag string) string {
	return fmt.Sprintf("%s/%s", consts.AppName, versionTag)
}

// Init loads the configuration and returns a new mirror context
func Init(versionTag string, p config.Params) (*context.MirrorCtx, error) {
	cfg, err := config.Load(p)
	if err != nil {
		return nil, errors.Wrap(err, "loading config")
	}

	log.SetLevel(cfg.LogLevel)
	log.SetFormat(cfg.LogFormat)

	db, err := openDB(cfg.DBPath)
	if err != nil {
		return nil, errors.Wrap(err, "initializing database")
	}

	c := clock.New()
	client := jira.New(jira.Options{
		Endpoint:    cfg.Endpoint,
		Email:       cfg.Email,
		APIToken:    cfg.APIToken,
		BearerToken: cfg.BearerToken,
		UserAgent:   userAgent(versionTag),
		HTTPClient:  jira.NewRateLimitedHTTPClient(cfg.RateLimit, cfg.RateBurst),
	})
	cookies := cookie.NewFileSource(cfg.CookieFile, cfg.CookieName)

	ctx := context.MirrorCtx{
		Version: versionTag,
		Config:  cfg,
		DB:      db,
		Clock:   c,
		Client:  client,
		Cookies: cookies,
		Syncer: syncer.New(db, client, syncer.Options{
			Projects:              cfg.Projects,
			PageSize:              cfg.PageSize,
			MaxConcurrentProjects: cfg.MaxConcurrentProjects,
			Cookies:               cookies,
			Clock:                 c,
		}),
	}

	redacted := context.Redact(ctx)
	log.WithFields(log.Fields{
		"version":  versionTag,
		"endpoint": redacted.Config.Endpoint,
		"dbPath":   redacted.Config.DBPath,
		"projects": redacted.Config.Projects,
		"apiToken": redacted.Config.APIToken,
		"bearer":   redacted.Config.BearerToken,
	}).Debug("initialized context")

	return &ctx, nil
}
