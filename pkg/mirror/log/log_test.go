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

package log

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/dnote/jiramirror/pkg/assert"
	"github.com/fatih/color"
	"github.com/pkg/errors"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	var buf bytes.Buffer
	prev := SetOutput(&buf)

	t.Cleanup(func() {
		SetOutput(prev)
		SetLevel(LevelInfo)
		SetFormat(FormatJSON)
	})

	return &buf
}

func TestShouldLog(t *testing.T) {
	defer SetLevel(LevelInfo)

	testCases := []struct {
		currentLevel string
		logLevel     string
		expected     bool
	}{
		{LevelDebug, LevelDebug, true},
		{LevelDebug, LevelError, true},
		{LevelInfo, LevelDebug, false},
		{LevelInfo, LevelInfo, true},
		{LevelInfo, LevelWarn, true},
		{LevelWarn, LevelInfo, false},
		{LevelWarn, LevelError, true},
		{LevelError, LevelWarn, false},
		{LevelError, LevelError, true},
		{"bogus", LevelInfo, true},
		{"bogus", LevelDebug, false},
	}

	for idx, tc := range testCases {
		t.Run(fmt.Sprintf("test case %d", idx), func(t *testing.T) {
			SetLevel(tc.currentLevel)

			assert.Equal(t, shouldLog(tc.logLevel), tc.expected, "result mismatch")
		})
	}
}

func TestWriteJSON(t *testing.T) {
	buf := captureOutput(t)

	WithFields(Fields{
		"project": "PROJ",
		"error":   errors.New("boom"),
	}).Warn("sync failed")

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatal(errors.Wrap(err, "decoding log line"))
	}

	assert.Equal(t, got["level"], LevelWarn, "level mismatch")
	assert.Equal(t, got["msg"], "sync failed", "msg mismatch")
	assert.Equal(t, got["project"], "PROJ", "field mismatch")
	assert.Equal(t, got["error"], "boom", "error field mismatch")
}

func TestWriteBelowLevel(t *testing.T) {
	buf := captureOutput(t)
	SetLevel(LevelWarn)

	Info("hidden")
	Debug("hidden")
	Error("shown")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, len(lines), 1, "line count mismatch")
	assert.Equal(t, strings.Contains(lines[0], "shown"), true, "wrong line written")
}

func TestWriteText(t *testing.T) {
	color.NoColor = true
	buf := captureOutput(t)
	SetFormat(FormatText)

	WithFields(Fields{"b": 2, "a": "x"}).ErrorWrap(errors.New("boom"), "fetching page")

	line := strings.TrimSpace(buf.String())
	assert.Equal(t, strings.Contains(line, "ERROR fetching page: boom a=x b=2"), true, fmt.Sprintf("unexpected line %q", line))
}

func TestValidLevel(t *testing.T) {
	assert.Equal(t, ValidLevel(LevelDebug), true, "debug")
	assert.Equal(t, ValidLevel("verbose"), false, "verbose")
}
