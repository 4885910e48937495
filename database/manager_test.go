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
	"net/url"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMySQLDSNSelectsNoSchema(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.Password = "p@ss:word/"
	cfg.Charset = "utf8mb4"

	parsed, err := mysql.ParseDSN(mysqlDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "root", parsed.User)
	assert.Equal(t, "p@ss:word/", parsed.Passwd)
	assert.Equal(t, "tcp", parsed.Net)
	assert.Equal(t, "localhost:3306", parsed.Addr)
	assert.Equal(t, "", parsed.DBName)
	assert.Equal(t, 10*time.Second, parsed.Timeout)
	assert.Equal(t, "utf8mb4", parsed.Params["charset"])
}

func TestPostgresDSN(t *testing.T) {
	cfg := &ConnectionConfig{Type: "postgres", Host: "db", Username: "admin", Password: "a b", ConnectTimeout: 5 * time.Second}

	u, err := url.Parse(postgresDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "db:5432", u.Host)
	assert.Equal(t, "/postgres", u.Path)
	pw, _ := u.User.Password()
	assert.Equal(t, "a b", pw)
	assert.Equal(t, "disable", u.Query().Get("sslmode"))
	assert.Equal(t, "5", u.Query().Get("connect_timeout"))

	cfg.DBName = "template1"
	cfg.SSLMode = "require"
	u, err = url.Parse(postgresDSN(cfg))
	require.NoError(t, err)
	assert.Equal(t, "/template1", u.Path)
	assert.Equal(t, "require", u.Query().Get("sslmode"))
}

func TestManagerDisconnectReleasesOnce(t *testing.T) {
	manager, mock := newMockManager(t, mysqlConfig())
	mock.ExpectPing()
	mock.ExpectClose()

	ctx := context.Background()
	require.NoError(t, manager.Connect(ctx))
	require.NotNil(t, manager.GetDB())
	require.NoError(t, manager.Connect(ctx), "connecting twice reuses the session")
	assert.Equal(t, 1, manager.GetStats().MaxOpenConns)

	require.NoError(t, manager.Disconnect())
	require.NoError(t, manager.Disconnect(), "a released session is not closed again")
	assert.Nil(t, manager.GetDB())
	assert.Equal(t, &DBStats{}, manager.GetStats())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerPing(t *testing.T) {
	manager, mock := newMockManager(t, mysqlConfig())
	assert.EqualError(t, manager.Ping(context.Background()), "database not connected")

	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(errors.New("gone away"))
	mock.ExpectClose()

	require.NoError(t, manager.Connect(context.Background()))
	assert.EqualError(t, manager.Ping(context.Background()), "gone away")
	require.NoError(t, manager.Disconnect())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestManagerConnectOpenerFailure(t *testing.T) {
	manager, err := NewDatabaseManager(mysqlConfig(), WithSQLOpener(func(*ConnectionConfig, Dialect) (*sql.DB, error) {
		return nil, errors.New("no driver")
	}))
	require.NoError(t, err)

	err = manager.Connect(context.Background())
	assert.ErrorContains(t, err, "failed to create database connection: no driver")
	assert.Nil(t, manager.GetDB())
}

func TestManagerConnectHonorsTimeout(t *testing.T) {
	cfg := mysqlConfig()
	cfg.ConnectTimeout = 50 * time.Millisecond
	manager, mock := newMockManager(t, cfg)
	mock.ExpectPing().WillDelayFor(time.Second)

	err := manager.Connect(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "database connection test failed")
	assert.Nil(t, manager.GetDB())
}

func TestNewDatabaseManagerRejectsUnknownType(t *testing.T) {
	_, err := NewDatabaseManager(&ConnectionConfig{Type: "oracle"})
	assert.Error(t, err)

	m, err := NewDatabaseManager(nil)
	require.NoError(t, err)
	assert.Equal(t, DialectMySQL, m.Dialect())
	assert.Equal(t, "localhost", m.Config().EffectiveHost())
}
