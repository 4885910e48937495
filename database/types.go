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
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"github.com/tomoncle/bookstore/types"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

// DefaultDatabaseName is the database created when no name is configured.
const DefaultDatabaseName = "alx_book_store"

// Dialect identifies the kind of database server being initialized.
type Dialect int

const (
	DialectMySQL Dialect = iota
	DialectPostgres
	DialectSQLite
	dialectEnd
)

var _ types.BaseEnum = DialectMySQL

var dialectAliases = map[string]string{
	"mariadb":    "mysql",
	"postgresql": "postgres",
	"pg":         "postgres",
	"sqlite3":    "sqlite",
}

// Dialects lists every supported dialect.
func Dialects() []Dialect {
	return []Dialect{DialectMySQL, DialectPostgres, DialectSQLite}
}

// ParseDialect resolves a configured type name. The empty string selects
// MySQL.
func ParseDialect(s string) (Dialect, error) {
	if s == "" {
		return DialectMySQL, nil
	}
	d, ok := types.ParseEnum(Dialects(), s, dialectAliases)
	if !ok {
		return Dialect(types.IllegalValue), fmt.Errorf("unsupported database type: %s, supported types: %v", s, Dialects())
	}
	return d, nil
}

func (d Dialect) IsValid() bool { return d >= DialectMySQL && d < dialectEnd }

func (d Dialect) Number() int {
	if !d.IsValid() {
		return types.IllegalValue
	}
	return int(d)
}

func (d Dialect) String() string { return d.Name() }

func (d Dialect) Name() string {
	switch d {
	case DialectMySQL:
		return "mysql"
	case DialectPostgres:
		return "postgres"
	case DialectSQLite:
		return "sqlite"
	default:
		return types.IllegalName
	}
}

// Desc returns the human-readable server name used in console output.
func (d Dialect) Desc() string {
	switch d {
	case DialectMySQL:
		return "MySQL"
	case DialectPostgres:
		return "PostgreSQL"
	case DialectSQLite:
		return "SQLite"
	default:
		return types.IllegalDesc
	}
}

// DefaultPort is the standard listening port, zero for file-based dialects.
func (d Dialect) DefaultPort() int {
	switch d {
	case DialectMySQL:
		return 3306
	case DialectPostgres:
		return 5432
	default:
		return 0
	}
}

// DefaultHost is localhost for network servers and the working directory
// for SQLite, whose databases are files.
func (d Dialect) DefaultHost() string {
	switch d {
	case DialectMySQL, DialectPostgres:
		return "localhost"
	case DialectSQLite:
		return "."
	default:
		return ""
	}
}

func (d Dialect) networked() bool { return d == DialectMySQL || d == DialectPostgres }

func (d Dialect) bunDialect() schema.Dialect {
	switch d {
	case DialectPostgres:
		return pgdialect.New()
	case DialectSQLite:
		return sqlitedialect.New()
	default:
		return mysqldialect.New()
	}
}

// DBStats mirrors database/sql stats returned by the manager.
type DBStats struct {
	MaxOpenConns int           `json:"max_open_conns"`
	OpenConns    int           `json:"open_conns"`
	InUse        int           `json:"in_use"`
	Idle         int           `json:"idle"`
	WaitCount    int64         `json:"wait_count"`
	WaitDuration time.Duration `json:"wait_duration"`
}

func newDBStats(s sql.DBStats) *DBStats {
	return &DBStats{
		MaxOpenConns: s.MaxOpenConnections,
		OpenConns:    s.OpenConnections,
		InUse:        s.InUse,
		Idle:         s.Idle,
		WaitCount:    s.WaitCount,
		WaitDuration: s.WaitDuration,
	}
}

// ConnectionConfig describes how to reach a database server. No database is
// selected by the session; DBName only names the maintenance database some
// servers require (Postgres connects to "postgres" when it is empty).
type ConnectionConfig struct {
	Type           string        `json:"type" yaml:"type" toml:"type"` // mysql, postgres, sqlite
	Host           string        `json:"host" yaml:"host" toml:"host"` // directory for sqlite
	Port           int           `json:"port" yaml:"port" toml:"port"`
	Username       string        `json:"username" yaml:"username" toml:"username"`
	Password       string        `json:"password" yaml:"password" toml:"password"`
	DBName         string        `json:"dbname" yaml:"dbname" toml:"dbname"`
	SSLMode        string        `json:"sslmode" yaml:"sslmode" toml:"sslmode"`
	Charset        string        `json:"charset" yaml:"charset" toml:"charset"` // MySQL: utf8mb4, Postgres: UTF8
	Collation      string        `json:"collation" yaml:"collation" toml:"collation"`
	Template       string        `json:"template" yaml:"template" toml:"template"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout" toml:"connect_timeout"`
	ReadTimeout    time.Duration `json:"read_timeout" yaml:"read_timeout" toml:"read_timeout"`
	WriteTimeout   time.Duration `json:"write_timeout" yaml:"write_timeout" toml:"write_timeout"`
	EnableQueryLog bool          `json:"enable_query_log" yaml:"enable_query_log" toml:"enable_query_log"`
	SlowQueryTime  time.Duration `json:"slow_query_time" yaml:"slow_query_time" toml:"slow_query_time"`
}

// Config aggregates the server coordinates and the database to ensure.
type Config struct {
	ConnectionConfig ConnectionConfig `json:"connection" yaml:"connection" toml:"connection"`
	Database         string           `json:"database" yaml:"database" toml:"database"`
}

// DefaultConnectionConfig returns the coordinates of a local MySQL server
// reached as root without a password. Host and Port are left empty so they
// follow whichever type is finally selected; see EffectiveHost and
// EffectivePort.
func DefaultConnectionConfig() *ConnectionConfig {
	return &ConnectionConfig{
		Type:           DialectMySQL.Name(),
		Username:       "root",
		Password:       "",
		ConnectTimeout: time.Second * 10,
		ReadTimeout:    time.Second * 30,
		WriteTimeout:   time.Second * 30,
		SlowQueryTime:  time.Second * 2,
	}
}

// DefaultConfig returns DefaultConnectionConfig targeting DefaultDatabaseName.
func DefaultConfig() *Config {
	return &Config{
		ConnectionConfig: *DefaultConnectionConfig(),
		Database:         DefaultDatabaseName,
	}
}

// Dialect parses Type.
func (c *ConnectionConfig) Dialect() (Dialect, error) {
	return ParseDialect(c.Type)
}

// ServerName is the display name of the configured server, "database" when
// the type is not recognised.
func (c *ConnectionConfig) ServerName() string {
	d, err := c.Dialect()
	if err != nil {
		return "database"
	}
	return d.Desc()
}

// EffectiveHost returns Host, or the dialect default when unset: localhost
// for network servers and the working directory for SQLite.
func (c *ConnectionConfig) EffectiveHost() string {
	if c.Host != "" {
		return c.Host
	}
	d, err := c.Dialect()
	if err != nil {
		return ""
	}
	return d.DefaultHost()
}

// EffectivePort returns Port, or the dialect default when unset.
func (c *ConnectionConfig) EffectivePort() int {
	if c.Port > 0 {
		return c.Port
	}
	d, err := c.Dialect()
	if err != nil {
		return 0
	}
	return d.DefaultPort()
}

var (
	identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_$]{1,64}$`)
	// locale names such as en_US.UTF-8 or C.utf8@euro
	literalPattern = regexp.MustCompile(`^[A-Za-z0-9_$.@-]{1,64}$`)
)

// ValidateIdentifier reports whether s is usable as an unquoted database,
// charset or template name.
func ValidateIdentifier(kind, s string) error {
	if !identifierPattern.MatchString(s) {
		return fmt.Errorf("invalid %s name %q: must be 1-64 characters of [A-Za-z0-9_$]", kind, s)
	}
	return nil
}

// Validate checks that the configuration can describe a reachable server.
func (c *ConnectionConfig) Validate() error {
	d, err := c.Dialect()
	if err != nil {
		return err
	}
	if d.networked() {
		if c.EffectiveHost() == "" {
			return fmt.Errorf("database host cannot be empty")
		}
		if p := c.EffectivePort(); p <= 0 || p > 65535 {
			return fmt.Errorf("database port out of range: %d", p)
		}
	}
	optional := []struct{ kind, value string }{
		{"charset", c.Charset},
		{"template", c.Template},
		{"maintenance database", c.DBName},
	}
	for _, o := range optional {
		if o.value == "" {
			continue
		}
		if err := ValidateIdentifier(o.kind, o.value); err != nil {
			return err
		}
	}
	if c.Collation != "" && !literalPattern.MatchString(c.Collation) {
		return fmt.Errorf("invalid collation %q: must be 1-64 characters of [A-Za-z0-9_$.@-]", c.Collation)
	}
	return nil
}

// Validate checks the connection settings and the target database name.
func (c *Config) Validate() error {
	if err := c.ConnectionConfig.Validate(); err != nil {
		return err
	}
	return ValidateIdentifier("database", c.Database)
}
