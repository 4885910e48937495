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
	"io"
	"path/filepath"
	"strings"

	"github.com/uptrace/bun"
)

// Initializer ensures that a database exists on the server reached by its
// manager and reports each step to out.
type Initializer struct {
	manager AbstractDatabaseManager
	out     io.Writer
	logger  Logger
}

// NewInitializer writes its report to out; a nil out discards it.
func NewInitializer(manager AbstractDatabaseManager, out io.Writer) *Initializer {
	if out == nil {
		out = io.Discard
	}
	return &Initializer{manager: manager, out: out, logger: GetLogger()}
}

// SetLogger replaces the logger used for diagnostics.
func (i *Initializer) SetLogger(logger Logger) {
	if logger != nil {
		i.logger = logger
	}
}

// EnsureDatabaseExists opens a session, creates name when it is missing and
// releases the session. The session is released exactly once when it was
// opened and never otherwise. Failures are reported to out and returned as
// *InitError.
func (i *Initializer) EnsureDatabaseExists(ctx context.Context, name string) (err error) {
	server := i.manager.Dialect().Desc()
	defer func() {
		if err != nil {
			i.logger.Error("Database initialization failed", "database", name, "error", err)
		}
	}()

	if verr := ValidateIdentifier("database", name); verr != nil {
		err = newInitError(StatementError, "validate", verr)
		report(i.out, server, err)
		return err
	}

	if cerr := i.manager.Connect(ctx); cerr != nil {
		err = newInitError(ConnectionError, "connect", cerr)
		report(i.out, server, err)
		return err
	}
	defer func() {
		if derr := i.manager.Disconnect(); derr != nil {
			closeErr := newInitError(StatementError, "close", derr)
			report(i.out, server, closeErr)
			if err == nil {
				err = closeErr
			}
			return
		}
		_, _ = fmt.Fprintf(i.out, "%s connection closed.\n", server)
	}()

	created, cerr := i.create(ctx, name)
	if cerr != nil {
		err = classifyStatementError("create", cerr)
		report(i.out, server, err)
		return err
	}

	i.logger.Info("Database ensured", "database", name, "created", created, "type", i.manager.Dialect().Name())
	_, _ = fmt.Fprintf(i.out, "Database '%s' created successfully!\n", name)
	return nil
}

// create runs the dialect's idempotent create. created is false when the
// server reported that the database was already present, which only
// Postgres does.
func (i *Initializer) create(ctx context.Context, name string) (created bool, err error) {
	db := i.manager.GetDB()
	if db == nil {
		return false, fmt.Errorf("database not connected")
	}
	cfg := i.manager.Config()

	switch i.manager.Dialect() {
	case DialectMySQL:
		query, args := mysqlCreateStatement(cfg, name)
		_, err = db.ExecContext(ctx, query, args...)
		return err == nil, err
	case DialectPostgres:
		return createPostgresDatabase(ctx, db, cfg, name)
	case DialectSQLite:
		return true, attachSQLiteDatabase(ctx, db, cfg, name)
	default:
		return false, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

func mysqlCreateStatement(cfg *ConnectionConfig, name string) (string, []interface{}) {
	var b strings.Builder
	args := []interface{}{bun.Ident(name)}
	b.WriteString("CREATE DATABASE IF NOT EXISTS ?")
	if cfg.Charset != "" {
		b.WriteString(" CHARACTER SET ?")
		args = append(args, bun.Safe(cfg.Charset))
	}
	if cfg.Collation != "" {
		b.WriteString(" COLLATE ?")
		args = append(args, bun.Safe(cfg.Collation))
	}
	return b.String(), args
}

// Postgres has no CREATE DATABASE IF NOT EXISTS and refuses CREATE DATABASE
// inside a transaction block, so existence is checked first and a lost race
// (duplicate_database) counts as success.
func createPostgresDatabase(ctx context.Context, db *bun.DB, cfg *ConnectionConfig, name string) (bool, error) {
	var one int
	err := db.QueryRowContext(ctx, "SELECT 1 FROM pg_database WHERE datname = ?", name).Scan(&one)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, sql.ErrNoRows):
		return false, fmt.Errorf("failed to look up database: %w", err)
	}

	var b strings.Builder
	args := []interface{}{bun.Ident(name)}
	b.WriteString("CREATE DATABASE ?")
	if cfg.Template != "" {
		b.WriteString(" TEMPLATE ?")
		args = append(args, bun.Ident(cfg.Template))
	}
	if cfg.Charset != "" {
		b.WriteString(" ENCODING ?")
		args = append(args, cfg.Charset)
	}
	if cfg.Collation != "" {
		b.WriteString(" LC_COLLATE ?")
		args = append(args, cfg.Collation)
	}
	if _, err := db.ExecContext(ctx, b.String(), args...); err != nil {
		if is, code := IsSqlError(err); is && code == DatabaseExistsErr {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// SQLite databases are files under the configured host directory; attaching one creates the file
// when it does not exist yet.
func attachSQLiteDatabase(ctx context.Context, db *bun.DB, cfg *ConnectionConfig, name string) error {
	path := SQLiteDatabasePath(cfg, name)
	if _, err := db.ExecContext(ctx, "ATTACH DATABASE ? AS ?", path, bun.Ident(name)); err != nil {
		return err
	}
	_, err := db.ExecContext(ctx, "DETACH DATABASE ?", bun.Ident(name))
	return err
}

// SQLiteDatabasePath is the file backing database name.
func SQLiteDatabasePath(cfg *ConnectionConfig, name string) string {
	return filepath.Join(cfg.EffectiveHost(), name+".db")
}

// report writes the console line describing a failure.
func report(out io.Writer, server string, err error) {
	cause := err
	var ie *InitError
	if errors.As(err, &ie) {
		cause = ie.Err
	}
	if kind, _ := KindOf(err); kind == ConnectionError {
		_, _ = fmt.Fprintf(out, "Error connecting to %s: %v\n", server, cause)
		_, _ = fmt.Fprintf(out, "Please check your %s server connection and credentials.\n", server)
		return
	}
	_, _ = fmt.Fprintf(out, "An unexpected error occurred: %v\n", cause)
}
