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
	"database/sql"
	"errors"
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/tomoncle/bookstore/utils"
	"github.com/uptrace/bun"
)

var bunSqlSilentMode bool

// EnableBunSqlSilent suppresses every audit and slow query log line.
func EnableBunSqlSilent(b bool) {
	bunSqlSilentMode = b
}

// QueryHook logs each statement run on a server session. Failures are
// logged at error level with the driver error type highlighted; successes
// are logged at debug level. The environment variable named by envName
// overrides enabled ("0" or empty disables).
type QueryHook struct {
	envName string
	enabled bool
	logger  Logger
}

var _ bun.QueryHook = (*QueryHook)(nil)

func newQueryHook(logger Logger) *QueryHook {
	return &QueryHook{envName: "BUN_AUDIT", enabled: true, logger: logger}
}

func (h *QueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *QueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode || h.logger == nil {
		return
	}
	enabled := h.enabled
	if env, ok := os.LookupEnv(h.envName); ok {
		enabled = env != "" && env != "0"
	}
	if !enabled {
		return
	}

	dur := time.Since(event.StartTime).Round(time.Microsecond)
	switch {
	case event.Err == nil, errors.Is(event.Err, sql.ErrNoRows):
		h.logger.Debug("Statement executed", "operation", event.Operation(), "duration", dur, "query", event.Query)
	default:
		typ := reflect.TypeOf(event.Err).String()
		h.logger.Error("Statement failed",
			"operation", event.Operation(),
			"duration", dur,
			"query", event.Query,
			"error", highlight(fmt.Sprintf("%s: %s", typ, event.Err.Error()), color.BgRed, color.FgWhite),
		)
	}
}

// SlowQueryHook warns about statements that exceed slowTime.
type SlowQueryHook struct {
	fromEnv  string
	enabled  bool
	slowTime time.Duration
	logger   Logger
}

var _ bun.QueryHook = (*SlowQueryHook)(nil)

func newSlowQueryHook(slowTime time.Duration, logger Logger) *SlowQueryHook {
	return &SlowQueryHook{fromEnv: "BUN_SLOW", enabled: true, slowTime: slowTime, logger: logger}
}

func (h *SlowQueryHook) BeforeQuery(ctx context.Context, event *bun.QueryEvent) context.Context {
	return ctx
}

func (h *SlowQueryHook) AfterQuery(ctx context.Context, event *bun.QueryEvent) {
	if bunSqlSilentMode || h.logger == nil || event.Err != nil {
		return
	}
	enabled := h.enabled
	if env, ok := os.LookupEnv(h.fromEnv); ok {
		enabled = strings.TrimSpace(env) == "1"
	}
	if !enabled {
		return
	}

	duration := time.Since(event.StartTime)
	if duration > h.slowTime {
		h.logger.Warn(highlight("Database slow query detected", color.FgYellow),
			"duration", duration.Round(time.Microsecond),
			"slow_threshold", h.slowTime,
			"query", event.Query,
		)
	}
}

// highlight colors s for the text console only; json logs keep plain values.
func highlight(s string, attrs ...color.Attribute) string {
	if !utils.ConsoleColorEnabled() {
		return s
	}
	return color.New(attrs...).Sprint(s)
}
