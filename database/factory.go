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
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// BaseDatabaseFactory validates configurations and builds managers that
// share its logger.
type BaseDatabaseFactory struct {
	logger Logger
}

// NewDatabaseFactory returns a new database factory using the global logger.
func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{
		logger: GetLogger(),
	}
}

// CreateFromConfig validates cfg and constructs a manager for it.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig, opts ...ManagerOption) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid database configuration: %w", err)
	}

	manager, err := NewDatabaseManager(cfg, append([]ManagerOption{WithLogger(f.logger)}, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create database manager: %w", err)
	}
	return manager, nil
}

// SetLogger sets the logger handed to managers created afterwards.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	if logger != nil {
		f.logger = logger
	}
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file on top of
// DefaultConfig. Keys absent from the file keep their defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file extension %q (want .yaml, .yml or .toml)", ext)
	}
	return cfg, nil
}

// OverrideFromEnv overrides configuration values from environment variables.
func OverrideFromEnv(cfg *Config) {
	conn := &cfg.ConnectionConfig
	if typ := os.Getenv("DB_TYPE"); typ != "" {
		conn.Type = typ
	}
	if host := os.Getenv("DB_HOST"); host != "" {
		conn.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			conn.Port = p
		}
	}
	if username := firstEnv("DB_USERNAME", "DB_USER"); username != "" {
		conn.Username = username
	}
	if password, ok := os.LookupEnv("DB_PASSWORD"); ok {
		conn.Password = password
	}
	if sslmode := os.Getenv("DB_SSLMODE"); sslmode != "" {
		conn.SSLMode = sslmode
	}
	if charset := os.Getenv("DB_CHARSET"); charset != "" {
		conn.Charset = charset
	}
	if timeout := os.Getenv("DB_CONNECT_TIMEOUT"); timeout != "" {
		if val, err := strconv.Atoi(timeout); err == nil {
			conn.ConnectTimeout = time.Duration(val) * time.Second
		}
	}
	if enableQueryLog := os.Getenv("DB_ENABLE_QUERY_LOG"); enableQueryLog != "" {
		conn.EnableQueryLog = enableQueryLog == "true"
	}
	if dbname := os.Getenv("DB_NAME"); dbname != "" {
		cfg.Database = dbname
	}
}

func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}
