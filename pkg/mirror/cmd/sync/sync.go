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

package sync

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dnote/jiramirror/pkg/mirror/infra"
	"github.com/dnote/jiramirror/pkg/mirror/syncer"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var example = `
  # incrementally sync every configured project
  jiramirror sync

  # reinitialize two projects
  jiramirror sync --full --project ABC --project OPS

  # refresh a single ticket
  jiramirror sync --ticket ABC-12`

var (
	isFullSync   bool
	projectsFlag []string
	ticketsFlag  []string
)

// NewCmd returns a new sync command
func NewCmd(initCtx infra.InitFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sync",
		Aliases: []string{"s"},
		Short:   "Sync the mirror with Jira once",
		Example: example,
		Args:    cobra.NoArgs,
		RunE:    newRun(initCtx),
	}

	f := cmd.Flags()
	f.BoolVarP(&isFullSync, "full", "f", false, "reinitialize the projects instead of stopping at the first unchanged issue.")
	f.StringArrayVarP(&projectsFlag, "project", "p", nil, "project key to sync (defaults to the configured projects)")
	f.StringArrayVarP(&ticketsFlag, "ticket", "t", nil, "issue key to sync on its own")

	return cmd
}

// Syncer runs the sync passes
type Syncer interface {
	SyncMetadata(ctx context.Context) (*syncer.Stats, error)
	SyncProjects(ctx context.Context, full bool) (*syncer.Stats, error)
	SyncProject(ctx context.Context, key string, full bool) (*syncer.Stats, error)
	SyncIssue(ctx context.Context, key string) (*syncer.Stats, error)
}

type options struct {
	full     bool
	projects []string
	tickets  []string
}

type step struct {
	label string
	run   func(ctx context.Context) (*syncer.Stats, error)
}

func steps(sy Syncer, o options) []step {
	var ret []step

	if len(o.tickets) > 0 {
		for _, key := range o.tickets {
			key := strings.ToUpper(key)
			ret = append(ret, step{key, func(ctx context.Context) (*syncer.Stats, error) {
				return sy.SyncIssue(ctx, key)
			}})
		}

		return ret
	}

	ret = append(ret, step{"metadata", sy.SyncMetadata})

	if len(o.projects) == 0 {
		ret = append(ret, step{"projects", func(ctx context.Context) (*syncer.Stats, error) {
			return sy.SyncProjects(ctx, o.full)
		}})

		return ret
	}

	for _, key := range o.projects {
		key := strings.ToUpper(key)
		ret = append(ret, step{key, func(ctx context.Context) (*syncer.Stats, error) {
			return sy.SyncProject(ctx, key, o.full)
		}})
	}

	return ret
}

// run runs every step even if one fails, and returns the first error
func run(ctx context.Context, sy Syncer, w io.Writer, o options) error {
	var firstErr error
	failed := 0

	for _, s := range steps(sy, o) {
		stats, err := s.run(ctx)
		if stats != nil {
			if summary := stats.String(); summary != "" {
				fmt.Fprintf(w, "%s: %s\n", s.label, summary)
			}
		}
		if err != nil {
			fmt.Fprintf(w, "%s: failed: %s\n", s.label, err.Error())
			failed++
			if firstErr == nil {
				firstErr = errors.Wrapf(err, "syncing %s", s.label)
			}
			if ctx.Err() != nil {
				break
			}
		}
	}

	if failed > 1 {
		return errors.Wrapf(firstErr, "%d steps failed", failed)
	}

	return firstErr
}

func newRun(initCtx infra.InitFunc) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		mc, err := initCtx()
		if err != nil {
			return errors.Wrap(err, "initializing context")
		}
		defer mc.Close()

		o := options{
			full:     isFullSync,
			projects: projectsFlag,
			tickets:  ticketsFlag,
		}

		return run(cmd.Context(), mc.Syncer, cmd.OutOrStdout(), o)
	}
}
