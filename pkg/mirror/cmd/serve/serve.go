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

package serve

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/dnote/jiramirror/pkg/mirror/infra"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/dnote/jiramirror/pkg/mirror/scheduler"
	"github.com/dnote/jiramirror/pkg/mirror/server"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// cookiePollInterval is how often the cookie file is checked for changes
const cookiePollInterval = 2 * time.Second

var example = `
  # answer requests on stdin and keep the mirror in sync
  jiramirror serve

  # with a custom config file
  jiramirror serve --config ./jiramirror.yml`

// NewCmd returns a new serve command
func NewCmd(initCtx infra.InitFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Answer requests on stdin while syncing in the background",
		Long:    "Read requests from stdin, one per line, and write replies to stdout. The mirror is kept in sync on the configured schedules until the server exits.",
		Example: example,
		Args:    cobra.NoArgs,
		RunE:    newRun(initCtx),
	}

	return cmd
}

// background is a task running alongside the server
type background func(ctx context.Context)

// serve runs the tasks until the server returns, then cancels them and
// waits for them to stop
func serve(ctx context.Context, srv *server.Server, in io.Reader, out io.Writer, tasks ...background) error {
	taskCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		wg.Add(1)
		go func() {
			defer wg.Done()
			task(taskCtx)
		}()
	}

	err := srv.Serve(ctx, in, out)

	cancel()
	wg.Wait()

	return err
}

func newRun(initCtx infra.InitFunc) infra.RunEFunc {
	return func(cmd *cobra.Command, args []string) error {
		mc, err := initCtx()
		if err != nil {
			return errors.Wrap(err, "initializing context")
		}
		defer mc.Close()

		jobs, err := scheduler.MirrorJobs(mc.Syncer, mc.Config)
		if err != nil {
			return errors.Wrap(err, "building sync jobs")
		}

		sched := scheduler.New(mc.Clock, jobs...)
		watchCookies := func(ctx context.Context) {
			if err := mc.Cookies.Watch(ctx, cookiePollInterval); err != nil {
				log.WithFields(log.Fields{
					"path": mc.Config.CookieFile,
				}).Warn(errors.Wrap(err, "cookie file is not watched").Error())
			}
		}

		srv := server.New(server.NewMirror(mc.DB, mc.Syncer), server.Options{
			ReplyQueueSize: mc.Config.ReplyQueueSize,
		})

		log.WithFields(log.Fields{
			"version":  mc.Version,
			"endpoint": mc.Config.Endpoint,
		}).Info("starting server")

		if err := serve(cmd.Context(), srv, os.Stdin, os.Stdout, sched.Run, watchCookies); err != nil {
			return errors.Wrap(err, "serving requests")
		}

		log.Info("server stopped")

		return nil
	}
}
