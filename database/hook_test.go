/*
 * Copyright 2025 tomoncle.
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

package database

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/tomoncle/bookstore/utils"
	"github.com/uptrace/bun"
)

type recordedLog struct {
	level  string
	msg    string
	fields []interface{}
}

type recordingLogger struct {
	mu   sync.Mutex
	logs []recordedLog
}

func (l *recordingLogger) record(level, msg string, fields []interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.logs = append(l.logs, recordedLog{level: level, msg: msg, fields: fields})
}

func (l *recordingLogger) SetLevel(LogLevel) {}
func (l *recordingLogger) Debug(msg string, fields ...interface{}) { l.record("debug", msg, fields) }
func (l *recordingLogger) Info(msg string, fields ...interface{}) { l.record("info", msg, fields) }
func (l *recordingLogger) Warn(msg string, fields ...interface{}) { l.record("warn", msg, fields) }
func (l *recordingLogger) Error(msg string, fields ...interface{}) { l.record("error", msg, fields) }

func TestQueryHookLogsOutcome(t *testing.T) {
	t.Setenv("BUN_AUDIT", "1")
	logger := &recordingLogger{}
	hook := newQueryHook(logger)
	ctx := context.Background()

	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "CREATE DATABASE IF NOT EXISTS `x`", StartTime: time.Now()})
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "CREATE DATABASE `x`", StartTime: time.Now(), Err: errors.New("denied")})

	if assert.Len(t, logger.logs, 2) {
		assert.Equal(t, "debug", logger.logs[0].level)
		assert.Equal(t, "error", logger.logs[1].level)
		assert.Contains(t, logger.logs[1].fields, "CREATE DATABASE `x`")
	}
}

func TestQueryHookDisabledByEnv(t *testing.T) {
	t.Setenv("BUN_AUDIT", "0")
	logger := &recordingLogger{}
	newQueryHook(logger).AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	assert.Empty(t, logger.logs)
}

func TestSlowQueryHook(t *testing.T) {
	logger := &recordingLogger{}
	hook := newSlowQueryHook(10*time.Millisecond, logger)
	ctx := context.Background()

	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "fast", StartTime: time.Now()})
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "slow", StartTime: time.Now().Add(-time.Second)})
	hook.AfterQuery(ctx, &bun.QueryEvent{Query: "failed", StartTime: time.Now().Add(-time.Second), Err: errors.New("x")})

	if assert.Len(t, logger.logs, 1) {
		assert.Equal(t, "warn", logger.logs[0].level)
		assert.Contains(t, logger.logs[0].fields, "slow")
	}
}

func TestSilentModeSuppressesHooks(t *testing.T) {
	EnableBunSqlSilent(true)
	defer EnableBunSqlSilent(false)

	logger := &recordingLogger{}
	newQueryHook(logger).AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now()})
	newSlowQueryHook(0, logger).AfterQuery(context.Background(), &bun.QueryEvent{Query: "SELECT 1", StartTime: time.Now().Add(-time.Second)})
	assert.Empty(t, logger.logs)
}

func TestQueryHookColorsOnlyTextConsole(t *testing.T) {
	t.Setenv("BUN_AUDIT", "1")
	noColor := color.NoColor
	color.NoColor = false
	defer func() { color.NoColor = noColor }()
	defer utils.ConfigureConsoleLogFormat("text")

	failed := &bun.QueryEvent{Query: "CREATE DATABASE `x`", StartTime: time.Now(), Err: errors.New("denied")}
	errorField := func(l recordedLog) string {
		for i := 0; i+1 < len(l.fields); i += 2 {
			if l.fields[i] == "error" {
				return l.fields[i+1].(string)
			}
		}
		return ""
	}

	utils.ConfigureConsoleLogFormat("json")
	logger := &recordingLogger{}
	newQueryHook(logger).AfterQuery(context.Background(), failed)
	newSlowQueryHook(time.Millisecond, logger).AfterQuery(context.Background(),
		&bun.QueryEvent{Query: "slow", StartTime: time.Now().Add(-time.Second)})
	if assert.Len(t, logger.logs, 2) {
		assert.Equal(t, "*errors.errorString: denied", errorField(logger.logs[0]))
		assert.Equal(t, "Database slow query detected", logger.logs[1].msg)
	}

	utils.ConfigureConsoleLogFormat("text")
	if !utils.ConsoleColorEnabled() {
		t.Skip("console colors disabled by CONSOLE_LOG_COLOR")
	}
	logger = &recordingLogger{}
	newQueryHook(logger).AfterQuery(context.Background(), failed)
	if assert.Len(t, logger.logs, 1) {
		field := errorField(logger.logs[0])
		assert.True(t, strings.HasPrefix(field, "\x1b["), field)
		assert.Contains(t, field, "*errors.errorString: denied")
	}
}
