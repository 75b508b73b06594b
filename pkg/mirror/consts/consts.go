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

// Package consts provides definitions of constants
package consts

var (
	// AppName is the name of the application and of its directories
	AppName = "jiramirror"
	// DBFileName is a filename for the SQLite mirror
	DBFileName = "mirror.db"
	// ConfigFilename is the name of the config file
	ConfigFilename = "config.yml"
	// CookieFilename is the name of the exported browser cookie file
	CookieFilename = "cookies.txt"
	// EnvFilename is the dotenv file loaded from the working directory
	EnvFilename = ".env"
	// DefaultCookieName is the Jira Cloud session cookie
	DefaultCookieName = "tenant.session.token"

	// SystemLastMetadataSync is the unix timestamp of the last metadata refresh
	SystemLastMetadataSync = "last_metadata_sync"
	// SystemLastIncrementalSync prefixes the unix timestamp of the last
	// incremental sync of a project
	SystemLastIncrementalSync = "last_incremental_sync"
	// SystemLastFullSync prefixes the unix timestamp of the last full
	// reinitialization of a project
	SystemLastFullSync = "last_full_sync"
)
