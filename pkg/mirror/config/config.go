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

// Package config builds the immutable application configuration from flags,
// the YAML config file, dotenv files and the environment.
package config

import (
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/dnote/jiramirror/pkg/dirs"
	"github.com/dnote/jiramirror/pkg/mirror/consts"
	"github.com/dnote/jiramirror/pkg/mirror/log"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/robfig/cron"
)

const (
	// RetryPolicyFixed waits for the next scheduled run after a failure
	RetryPolicyFixed = "fixed"
	// RetryPolicyExponential retries failed runs with an exponential backoff
	RetryPolicyExponential = "exponential"

	defaultMetadataSchedule    = "@every 300s"
	defaultIncrementalSchedule = "@every 90s"
	defaultFullSchedule        = "@every 7200s"
	defaultPageSize            = 100
	defaultMaxConcurrency      = 4
	defaultReplyQueueSize      = 256
	defaultRateLimit           = 10
	defaultRateBurst           = 20
)

var (
	// ErrEndpointInvalid is an error for a missing or malformed Jira endpoint
	ErrEndpointInvalid = errors.New("Invalid endpoint")
	// ErrCredentialsMissing is an error for a config without any credential
	ErrCredentialsMissing = errors.New("Neither an API token nor a bearer token is configured")
	// ErrDBPathMissing is an error for an incomplete configuration missing the database path
	ErrDBPathMissing = errors.New("DB Path is empty")
	// ErrScheduleInvalid is an error for a schedule that is not a valid cron spec
	ErrScheduleInvalid = errors.New("Invalid schedule")
	// ErrRetryPolicyInvalid is an error for an unknown retry policy
	ErrRetryPolicyInvalid = errors.New("Invalid retry policy")
	// ErrLogLevelInvalid is an error for an unknown log level
	ErrLogLevelInvalid = errors.New("Invalid log level")
	// ErrLimitInvalid is an error for a non-positive size or rate setting
	ErrLimitInvalid = errors.New("Invalid limit")
)

// Config is an application configuration. It is built once at startup and
// passed around by value.
type Config struct {
	Endpoint              string
	Email                 string
	APIToken              string
	BearerToken           string
	Projects              []string
	DBPath                string
	CookieFile            string
	CookieName            string
	MetadataSchedule      string
	IncrementalSchedule   string
	FullSchedule          string
	RetryPolicy           string
	PageSize              int
	MaxConcurrentProjects int
	ReplyQueueSize        int
	RateLimit             float64
	RateBurst             int
	LogLevel              string
	LogFormat             string
}

// Params are the configuration parameters given on the command line.
// Empty values fall back to the config file, the environment and defaults.
type Params struct {
	ConfigPath string
	EnvFiles   []string
	Endpoint   string
	DBPath     string
	Projects   []string
	LogLevel   string
}

// Redact returns a copy of the config with the credentials masked, for logging
func (c Config) Redact() Config {
	ret := c
	if ret.APIToken != "" {
		ret.APIToken = "***"
	}
	if ret.BearerToken != "" {
		ret.BearerToken = "***"
	}

	return ret
}

// getOrEnv returns the first non-empty value, otherwise env var, otherwise default
func getOrEnv(envKey, defaultVal string, values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	if env := os.Getenv(envKey); env != "" {
		return env
	}
	return defaultVal
}

func getIntOrEnv(envKey string, defaultVal int, values ...int) (int, error) {
	for _, v := range values {
		if v != 0 {
			return v, nil
		}
	}
	if env := os.Getenv(envKey); env != "" {
		n, err := strconv.Atoi(env)
		if err != nil {
			return 0, errors.Wrapf(err, "parsing %s", envKey)
		}
		return n, nil
	}
	return defaultVal, nil
}

func getFloatOrEnv(envKey string, defaultVal float64, values ...float64) (float64, error) {
	for _, v := range values {
		if v != 0 {
			return v, nil
		}
	}
	if env := os.Getenv(envKey); env != "" {
		n, err := strconv.ParseFloat(env, 64)
		if err != nil {
			return 0, errors.Wrapf(err, "parsing %s", envKey)
		}
		return n, nil
	}
	return defaultVal, nil
}

func splitList(s string) []string {
	var ret []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			ret = append(ret, p)
		}
	}

	return ret
}

func getListOrEnv(envKey string, values ...[]string) []string {
	for _, v := range values {
		if len(v) > 0 {
			return v
		}
	}

	return splitList(os.Getenv(envKey))
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadEnvFiles loads the given dotenv files into the process environment
// without overriding variables that are already set. When no file is given,
// a .env in the working directory is loaded if present.
func loadEnvFiles(files []string) error {
	if len(files) == 0 {
		if !fileExists(consts.EnvFilename) {
			return nil
		}
		files = []string{consts.EnvFilename}
	}

	if err := godotenv.Load(files...); err != nil {
		return errors.Wrap(err, "loading dotenv files")
	}

	log.WithFields(log.Fields{
		"files": files,
	}).Debug("loaded dotenv files")

	return nil
}

// DefaultPaths returns the default config file, database and cookie file paths
func DefaultPaths() (configPath, dbPath, cookiePath string, err error) {
	base, err := dirs.Resolve()
	if err != nil {
		return "", "", "", errors.Wrap(err, "resolving base directories")
	}

	app := base.App(consts.AppName)
	configPath = filepath.Join(app.ConfigHome, consts.ConfigFilename)
	dbPath = filepath.Join(app.DataHome, consts.DBFileName)
	cookiePath = filepath.Join(app.ConfigHome, consts.CookieFilename)

	return configPath, dbPath, cookiePath, nil
}

// Load constructs and returns a new validated config.
func Load(p Params) (Config, error) {
	if err := loadEnvFiles(p.EnvFiles); err != nil {
		return Config{}, err
	}

	defaultConfigPath, defaultDBPath, defaultCookiePath, err := DefaultPaths()
	if err != nil {
		return Config{}, err
	}

	configPath := getOrEnv("JIRAMIRROR_CONFIG", defaultConfigPath, p.ConfigPath)

	var f File
	if fileExists(configPath) {
		f, err = Read(configPath)
		if err != nil {
			return Config{}, errors.Wrapf(err, "reading %s", configPath)
		}
	} else if p.ConfigPath != "" {
		return Config{}, errors.Errorf("config file %s does not exist", p.ConfigPath)
	}

	return build(p, f, defaultDBPath, defaultCookiePath)
}

func build(p Params, f File, defaultDBPath, defaultCookiePath string) (Config, error) {
	c := Config{
		Endpoint:            strings.TrimRight(getOrEnv("JIRAMIRROR_ENDPOINT", "", p.Endpoint, f.Endpoint), "/"),
		Email:               getOrEnv("JIRAMIRROR_EMAIL", "", f.Email),
		APIToken:            getOrEnv("JIRAMIRROR_API_TOKEN", "", f.APIToken),
		BearerToken:         getOrEnv("JIRAMIRROR_BEARER_TOKEN", "", f.BearerToken),
		Projects:            getListOrEnv("JIRAMIRROR_PROJECTS", p.Projects, f.Projects),
		DBPath:              getOrEnv("JIRAMIRROR_DB_PATH", defaultDBPath, p.DBPath, f.DBPath),
		CookieFile:          getOrEnv("JIRAMIRROR_COOKIE_FILE", defaultCookiePath, f.CookieFile),
		CookieName:          getOrEnv("JIRAMIRROR_COOKIE_NAME", consts.DefaultCookieName, f.CookieName),
		MetadataSchedule:    getOrEnv("JIRAMIRROR_METADATA_SCHEDULE", defaultMetadataSchedule, f.Schedules.Metadata),
		IncrementalSchedule: getOrEnv("JIRAMIRROR_INCREMENTAL_SCHEDULE", defaultIncrementalSchedule, f.Schedules.Incremental),
		FullSchedule:        getOrEnv("JIRAMIRROR_FULL_SCHEDULE", defaultFullSchedule, f.Schedules.Full),
		RetryPolicy:         getOrEnv("JIRAMIRROR_RETRY_POLICY", RetryPolicyFixed, f.RetryPolicy),
		LogLevel:            getOrEnv("JIRAMIRROR_LOG_LEVEL", log.LevelInfo, p.LogLevel, f.LogLevel),
		LogFormat:           getOrEnv("JIRAMIRROR_LOG_FORMAT", log.FormatJSON, f.LogFormat),
	}

	var err error
	if c.PageSize, err = getIntOrEnv("JIRAMIRROR_PAGE_SIZE", defaultPageSize, f.PageSize); err != nil {
		return Config{}, err
	}
	if c.MaxConcurrentProjects, err = getIntOrEnv("JIRAMIRROR_MAX_CONCURRENT_PROJECTS", defaultMaxConcurrency, f.MaxConcurrentProjects); err != nil {
		return Config{}, err
	}
	if c.ReplyQueueSize, err = getIntOrEnv("JIRAMIRROR_REPLY_QUEUE_SIZE", defaultReplyQueueSize, f.ReplyQueueSize); err != nil {
		return Config{}, err
	}
	if c.RateLimit, err = getFloatOrEnv("JIRAMIRROR_RATE_LIMIT", defaultRateLimit, f.RateLimit); err != nil {
		return Config{}, err
	}
	if c.RateBurst, err = getIntOrEnv("JIRAMIRROR_RATE_BURST", defaultRateBurst, f.RateBurst); err != nil {
		return Config{}, err
	}

	projects := make([]string, 0, len(c.Projects))
	for _, key := range c.Projects {
		projects = append(projects, strings.ToUpper(key))
	}
	c.Projects = projects

	if err := validate(c); err != nil {
		return Config{}, err
	}

	return c, nil
}

func validate(c Config) error {
	u, err := url.ParseRequestURI(c.Endpoint)
	if err != nil || u.Host == "" {
		return errors.Wrapf(ErrEndpointInvalid, "'%s'", c.Endpoint)
	}
	if c.APIToken == "" && c.BearerToken == "" {
		return ErrCredentialsMissing
	}
	if c.DBPath == "" {
		return ErrDBPathMissing
	}

	for _, spec := range []string{c.MetadataSchedule, c.IncrementalSchedule, c.FullSchedule} {
		if _, err := cron.Parse(spec); err != nil {
			return errors.Wrapf(ErrScheduleInvalid, "'%s': %v", spec, err)
		}
	}

	if c.RetryPolicy != RetryPolicyFixed && c.RetryPolicy != RetryPolicyExponential {
		return errors.Wrapf(ErrRetryPolicyInvalid, "'%s'", c.RetryPolicy)
	}
	if !log.ValidLevel(c.LogLevel) {
		return errors.Wrapf(ErrLogLevelInvalid, "'%s'", c.LogLevel)
	}
	if c.PageSize <= 0 || c.MaxConcurrentProjects <= 0 || c.ReplyQueueSize <= 0 || c.RateLimit <= 0 || c.RateBurst <= 0 {
		return ErrLimitInvalid
	}

	return nil
}
