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
	"io"
)

// EnsureDatabaseExists creates name on the server described by cfg when it
// does not exist yet, reporting progress to out. A configuration that
// cannot describe a reachable server is a ConnectionError.
func EnsureDatabaseExists(ctx context.Context, cfg *ConnectionConfig, name string, out io.Writer, opts ...ManagerOption) error {
	if out == nil {
		out = io.Discard
	}
	manager, err := NewDatabaseFactory().CreateFromConfig(cfg, opts...)
	if err != nil {
		ie := newInitError(ConnectionError, "configure", err)
		server := "database"
		if cfg != nil {
			server = cfg.ServerName()
		}
		report(out, server, ie)
		GetLogger().Error("Database initialization failed", "database", name, "error", ie)
		return ie
	}
	return NewInitializer(manager, out).EnsureDatabaseExists(ctx, name)
}
