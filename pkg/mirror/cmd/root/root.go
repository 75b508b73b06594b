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

package root

import (
	"context"

	"github.com/dnote/jiramirror/pkg/mirror/config"
	"github.com/spf13/cobra"
)

var (
	configPathFlag string
	dbPathFlag     string
	logLevelFlag   string
	envFilesFlag   []string
)

var root = &cobra.Command{
	Use:           "jiramirror",
	Short:         "jiramirror - a local mirror of Jira projects",
	SilenceErrors: true,
	SilenceUsage:  true,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

func init() {
	f := root.PersistentFlags()
	f.StringVar(&configPathFlag, "config", "", "the path to the config file (defaults to standard location)")
	f.StringVar(&dbPathFlag, "dbPath", "", "the path to the database file (defaults to standard location)")
	f.StringVar(&logLevelFlag, "logLevel", "", "the log level: debug, info, warn or error")
	f.StringSliceVar(&envFilesFlag, "env", nil, "dotenv files to load (defaults to .env in the working directory)")
}

// GetRoot returns the root command
func GetRoot() *cobra.Command {
	return root
}

// Params returns the configuration parameters given as persistent flags
func Params() config.Params {
	return config.Params{
		ConfigPath: configPathFlag,
		EnvFiles:   envFilesFlag,
		DBPath:     dbPathFlag,
		LogLevel:   logLevelFlag,
	}
}

// Register adds a new command
func Register(cmd *cobra.Command) {
	root.AddCommand(cmd)
}

// Execute runs the main command
func Execute(ctx context.Context) error {
	return root.ExecuteContext(ctx)
}
