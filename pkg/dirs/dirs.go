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

// Package dirs provides base directory definitions for the system
package dirs

import (
	"os"
	"os/user"
	"path/filepath"

	"github.com/pkg/errors"
)

// Base holds the XDG base directories of the current user
type Base struct {
	Home string
	// ConfigHome is the directory in which user-specific configurations are
	// written.
	ConfigHome string
	// DataHome is the directory in which user-specific data files are written.
	DataHome string
	// CacheHome is the directory for user-specific non-essential data.
	CacheHome string
	// StateHome is the directory for state that should persist between
	// restarts but is not important enough for DataHome.
	StateHome string
}

// Resolve reads the base directories from the environment, falling back to
// the defaults relative to the home directory.
func Resolve() (Base, error) {
	home, err := getHomeDir()
	if err != nil {
		return Base{}, err
	}

	return resolve(home), nil
}

// App returns the application specific directories under the base directories
func (b Base) App(name string) Base {
	return Base{
		Home:       b.Home,
		ConfigHome: filepath.Join(b.ConfigHome, name),
		DataHome:   filepath.Join(b.DataHome, name),
		CacheHome:  filepath.Join(b.CacheHome, name),
		StateHome:  filepath.Join(b.StateHome, name),
	}
}

func getHomeDir() (string, error) {
	if home := os.Getenv("HOME"); home != "" {
		return home, nil
	}

	usr, err := user.Current()
	if err != nil {
		return "", errors.Wrap(err, "getting home dir")
	}

	return usr.HomeDir, nil
}

func readPath(envName, defaultPath string) string {
	if dir := os.Getenv(envName); dir != "" {
		return dir
	}

	return defaultPath
}
