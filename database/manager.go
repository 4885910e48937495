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
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
)

// AbstractDatabaseManager owns a single server-level session: no database is
// selected, so statements such as CREATE DATABASE can run before the target
// exists.
type AbstractDatabaseManager interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Ping(ctx context.Context) error
	GetDB() *bun.DB
	GetStats() *DBStats
	Config() *ConnectionConfig
	Dialect() Dialect
	SetLogger(logger Logger)
}

// SQLOpener opens the driver-level handle for a dialect. It must not block
// on the network; the manager pings afterwards.
type SQLOpener func(cfg *ConnectionConfig, dialect Dialect) (*sql.DB, error)

// ManagerOption customizes a manager built by NewDatabaseManager.
type ManagerOption func(*defaultDatabaseManager)

// WithSQLOpener replaces the driver-level opener.
func WithSQLOpener(opener SQLOpener) ManagerOption {
	return func(dm *defaultDatabaseManager) {
		if opener != nil {
			dm.opener = opener
		}
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger Logger) ManagerOption {
	return func(dm *defaultDatabaseManager) {
		if logger != nil {
			dm.logger = logger
		}
	}
}

type defaultDatabaseManager struct {
	config  *ConnectionConfig
	dialect Dialect
	opener  SQLOpener
	db      *bun.DB
	logger  Logger
	mu      sync.RWMutex
}

// NewDatabaseManager returns an AbstractDatabaseManager backed by Bun. If
// config is nil, DefaultConnectionConfig is used.
func NewDatabaseManager(config *ConnectionConfig, opts ...ManagerOption) (AbstractDatabaseManager, error) {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	dialect, err := config.Dialect()
	if err != nil {
		return nil, err
	}
	dm := &defaultDatabaseManager{
		config:  config,
		dialect: dialect,
		opener:  openSQL,
		logger:  nopLogger{},
	}
	for _, opt := range opts {
		opt(dm)
	}
	return dm, nil
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.db != nil {
		return nil
	}

	sqlDB, err := dm.opener(dm.config, dm.dialect)
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}
	// One session is all an initialization needs; it also pins SQLite's
	// in-memory connection so ATTACH and DETACH see the same schema list.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	timeout := dm.config.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	ctxTimeout, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	// Ping before handing the handle to Bun: dialects may query the server
	// while initializing and must only do so on a live session.
	if err := sqlDB.PingContext(ctxTimeout); err != nil {
		_ = sqlDB.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	db := bun.NewDB(sqlDB, dm.dialect.bunDialect())
	dm.addQueryHooks(db)
	dm.db = db
	dm.logger.Info("Database connected successfully", "type", dm.dialect.Name(), "host", dm.config.EffectiveHost(), "port", dm.config.EffectivePort())
	return nil
}

func (dm *defaultDatabaseManager) addQueryHooks(db *bun.DB) {
	if dm.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(
			bundebug.WithVerbose(true),
			bundebug.WithWriter(os.Stderr),
			bundebug.FromEnv("BUNDEBUG"),
		))
	}
	db.AddQueryHook(newQueryHook(dm.logger))
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(newSlowQueryHook(dm.config.SlowQueryTime, dm.logger))
	}
}

func openSQL(cfg *ConnectionConfig, dialect Dialect) (*sql.DB, error) {
	switch dialect {
	case DialectMySQL:
		return sql.Open("mysql", mysqlDSN(cfg))
	case DialectPostgres:
		return sql.Open("postgres", postgresDSN(cfg))
	case DialectSQLite:
		return sql.Open(sqliteshim.ShimName, sqliteDSN)
	default:
		return nil, fmt.Errorf("unsupported database type: %s", cfg.Type)
	}
}

// mysqlDSN selects no schema so the session can create one.
func mysqlDSN(cfg *ConnectionConfig) string {
	mc := mysql.NewConfig()
	mc.User = cfg.Username
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.EffectiveHost(), strconv.Itoa(cfg.EffectivePort()))
	mc.DBName = ""
	mc.ParseTime = true
	mc.Timeout = cfg.ConnectTimeout
	mc.ReadTimeout = cfg.ReadTimeout
	mc.WriteTimeout = cfg.WriteTimeout
	if cfg.Charset != "" {
		mc.Params = map[string]string{"charset": cfg.Charset}
	}
	return mc.FormatDSN()
}

func postgresDSN(cfg *ConnectionConfig) string {
	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	dbName := cfg.DBName
	if dbName == "" {
		dbName = "postgres"
	}
	q := url.Values{}
	q.Set("sslmode", sslMode)
	if cfg.ConnectTimeout > 0 {
		q.Set("connect_timeout", strconv.Itoa(int(cfg.ConnectTimeout.Seconds())))
	}
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(cfg.Username, cfg.Password),
		Host:     net.JoinHostPort(cfg.EffectiveHost(), strconv.Itoa(cfg.EffectivePort())),
		Path:     "/" + dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// sqliteDSN is a private in-memory session; database files are attached to
// it on demand.
const sqliteDSN = ":memory:"

func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()

	if dm.db == nil {
		return nil
	}

	err := dm.db.Close()
	dm.db = nil
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	dm.logger.Info("Database connection closed", "type", dm.dialect.Name())
	return nil
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()

	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	dm.mu.RLock()
	db := dm.db
	dm.mu.RUnlock()

	if db == nil {
		return &DBStats{}
	}
	return newDBStats(db.DB.Stats())
}

func (dm *defaultDatabaseManager) Config() *ConnectionConfig { return dm.config }

func (dm *defaultDatabaseManager) Dialect() Dialect { return dm.dialect }

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		return
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
