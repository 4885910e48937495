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
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
)

func TestIsSqlError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		is   bool
		want SQLError
	}{
		{"mysql auth", &mysql.MySQLError{Number: 1045}, true, AuthFailedErr},
		{"mysql db access", &mysql.MySQLError{Number: 1044}, true, AccessDeniedErr},
		{"mysql exists", &mysql.MySQLError{Number: 1007}, true, DatabaseExistsErr},
		{"mysql too many", &mysql.MySQLError{Number: 1040}, true, TooManyConnectionsErr},
		{"mysql other", &mysql.MySQLError{Number: 1213}, true, UnknownErr},
		{"pq auth", &pq.Error{Code: "28P01"}, true, AuthFailedErr},
		{"pq privilege", &pq.Error{Code: "42501"}, true, AccessDeniedErr},
		{"pq exists", &pq.Error{Code: "42P04"}, true, DatabaseExistsErr},
		{"pq connection class", &pq.Error{Code: "08006"}, true, ConnectionFailureErr},
		{"wrapped", fmt.Errorf("create: %w", &mysql.MySQLError{Number: 1064}), true, SyntaxErr},
		{"sqlite open", errors.New("unable to open database file: out of memory (14)"), true, CannotOpenErr},
		{"plain", errors.New("boom"), false, UnknownErr},
		{"nil", nil, false, UnknownErr},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			is, code := IsSqlError(tc.err)
			assert.Equal(t, tc.is, is)
			assert.Equal(t, tc.want, code)
		})
	}
}

func TestClassifyStatementError(t *testing.T) {
	lost := []error{
		driver.ErrBadConn,
		mysql.ErrInvalidConn,
		context.DeadlineExceeded,
		&net.OpError{Op: "read", Net: "tcp", Err: errors.New("connection reset by peer")},
		&pq.Error{Code: "08006"},
		&mysql.MySQLError{Number: 1045},
	}
	for _, err := range lost {
		assert.Equal(t, ConnectionError, classifyStatementError("create", err).Kind, "%v", err)
	}

	rejected := []error{
		&mysql.MySQLError{Number: 1044},
		&pq.Error{Code: "42501"},
		errors.New("unable to open database file"),
	}
	for _, err := range rejected {
		assert.Equal(t, StatementError, classifyStatementError("create", err).Kind, "%v", err)
	}
}

func TestInitErrorContract(t *testing.T) {
	cause := errors.New("refused")
	err := error(newInitError(ConnectionError, "connect", cause))

	assert.EqualError(t, err, "connection error: connect: refused")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrConnection)
	assert.NotErrorIs(t, err, ErrStatement)

	wrapped := fmt.Errorf("run: %w", err)
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ConnectionError, kind)

	_, ok = KindOf(cause)
	assert.False(t, ok)
}

func TestErrorKindEnum(t *testing.T) {
	assert.True(t, StatementError.IsValid())
	assert.Equal(t, 1, StatementError.Number())
	assert.Equal(t, "statement", StatementError.Name())
	assert.Equal(t, "statement error", StatementError.Desc())

	bogus := ErrorKind(7)
	assert.False(t, bogus.IsValid())
	assert.Equal(t, -1, bogus.Number())
	assert.Equal(t, "unknown", bogus.String())
}
