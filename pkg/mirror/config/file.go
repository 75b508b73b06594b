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

package config

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Schedules holds the cadences of the background loops as cron specs
type Schedules struct {
	Metadata    string `yaml:"metadata"`
	Incremental string `yaml:"incremental"`
	Full        string `yaml:"full"`
}

// File is the content of the YAML config file
type File struct {
	Endpoint              string    `yaml:"endpoint"`
	Email                 string    `yaml:"email"`
	APIToken              string    `yaml:"apiToken"`
	BearerToken           string    `yaml:"bearerToken"`
	Projects              []string  `yaml:"projects"`
	DBPath                string    `yaml:"dbPath"`
	CookieFile            string    `yaml:"cookieFile"`
	CookieName            string    `yaml:"cookieName"`
	Schedules             Schedules `yaml:"schedules"`
	RetryPolicy           string    `yaml:"retryPolicy"`
	PageSize              int       `yaml:"pageSize"`
	MaxConcurrentProjects int       `yaml:"maxConcurrentProjects"`
	ReplyQueueSize        int       `yaml:"replyQueueSize"`
	RateLimit             float64   `yaml:"rateLimit"`
	RateBurst             int       `yaml:"rateBurst"`
	LogLevel              string    `yaml:"logLevel"`
	LogFormat             string    `yaml:"logFormat"`
}

// Read reads the config file at the given path
func Read(path string) (File, error) {
	var ret File

	b, err := os.ReadFile(path)
	if err != nil {
		return ret, errors.Wrap(err, "reading config file")
	}

	if err := yaml.Unmarshal(b, &ret); err != nil {
		return ret, errors.Wrap(err, "unmarshalling config")
	}

	return ret, nil
}

// Write writes the config to the given path
func Write(path string, f File) error {
	b, err := yaml.Marshal(f)
	if err != nil {
		return errors.Wrap(err, "marshalling config into YAML")
	}

	if err := os.WriteFile(path, b, 0600); err != nil {
		return errors.Wrap(err, "writing the config file")
	}

	return nil
}
