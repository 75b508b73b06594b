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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	mirrorctx "github.com/dnote/jiramirror/pkg/mirror/context"
	"github.com/dnote/jiramirror/pkg/mirror/infra"
	"github.com/dnote/jiramirror/pkg/mirror/log"

	// commands
	"github.com/dnote/jiramirror/pkg/mirror/cmd/root"
	"github.com/dnote/jiramirror/pkg/mirror/cmd/serve"
	"github.com/dnote/jiramirror/pkg/mirror/cmd/sync"
	"github.com/dnote/jiramirror/pkg/mirror/cmd/version"
)

// versionTag is populated during link time
var versionTag = "master"

func initCtx() (*mirrorctx.MirrorCtx, error) {
	return infra.Init(versionTag, root.Params())
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root.Register(serve.NewCmd(initCtx))
	root.Register(sync.NewCmd(initCtx))
	root.Register(version.NewCmd(versionTag))

	if err := root.Execute(ctx); err != nil {
		log.Error(err.Error())
		stop()
		os.Exit(1)
	}
}
