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
	"database/sql/driver"
	"errors"
	"fmt"
	"net"
	"strings"

	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/tomoncle/bookstore/types"
)

// ErrorKind tells callers which phase of an initialization failed.
type ErrorKind int

const (
	// ConnectionError: the server could not be reached, rejected the
	// credentials, or dropped the session.
	ConnectionError ErrorKind = iota
	// StatementError: the session worked but the statement, or the release
	// of the session, failed.
	StatementError
	errorKindEnd
)

var _ types.BaseEnum = ConnectionError

// Sentinels matched by errors.Is against an *InitError of the same kind.
var (
	ErrConnection = errors.New("connection error")
	ErrStatement  = errors.New("statement error")
)

func (k ErrorKind) IsValid() bool { return k >= ConnectionError && k < errorKindEnd }

func (k ErrorKind) Number() int {
	if !k.IsValid() {
		return types.IllegalValue
	}
	return int(k)
}

func (k ErrorKind) String() string { return k.Name() }

func (k ErrorKind) Name() string {
	switch k {
	case ConnectionError:
		return "connection"
	case StatementError:
		return "statement"
	default:
		return types.IllegalName
	}
}

func (k ErrorKind) Desc() string {
	switch k {
	case ConnectionError:
		return ErrConnection.Error()
	case StatementError:
		return ErrStatement.Error()
	default:
		return types.IllegalDesc
	}
}

func (k ErrorKind) sentinel() error {
	switch k {
	case ConnectionError:
		return ErrConnection
	case StatementError:
		return ErrStatement
	default:
		return nil
	}
}

// InitError is returned by every failed initialization.
type InitError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func newInitError(kind ErrorKind, op string, err error) *InitError {
	return &InitError{Kind: kind, Op: op, Err: err}
}

func (e *InitError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind.Desc(), e.Op, e.Err)
}

func (e *InitError) Unwrap() error { return e.Err }

func (e *InitError) Is(target error) bool {
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// KindOf extracts the ErrorKind of err, reporting false when err is not an
// initialization error.
func KindOf(err error) (ErrorKind, bool) {
	var ie *InitError
	if errors.As(err, &ie) {
		return ie.Kind, true
	}
	return ErrorKind(types.IllegalValue), false
}

type SQLError int

const (
	UnknownErr SQLError = iota
	AuthFailedErr
	AccessDeniedErr
	ConnectionFailureErr
	TooManyConnectionsErr
	DatabaseExistsErr
	UnknownDatabaseErr
	SyntaxErr
	CannotOpenErr
)

// IsSqlError maps MySQL error numbers, Postgres SQLSTATE codes and SQLite
// messages to an SQLError.
func IsSqlError(err error) (is bool, sqlErr SQLError) {
	if err == nil {
		return false, UnknownErr
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		switch mysqlErr.Number {
		case 1045, 1698:
			return true, AuthFailedErr
		case 1044, 1227, 1142:
			return true, AccessDeniedErr
		case 1040, 1203:
			return true, TooManyConnectionsErr
		case 1129, 1130:
			return true, ConnectionFailureErr
		case 1007:
			return true, DatabaseExistsErr
		case 1049:
			return true, UnknownDatabaseErr
		case 1064, 1102:
			return true, SyntaxErr
		default:
			return true, UnknownErr
		}
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch {
		case pqErr.Code == "28000" || pqErr.Code == "28P01":
			return true, AuthFailedErr
		case pqErr.Code == "42501":
			return true, AccessDeniedErr
		case pqErr.Code == "53300":
			return true, TooManyConnectionsErr
		case pqErr.Code.Class() == "08":
			return true, ConnectionFailureErr
		case pqErr.Code == "42P04":
			return true, DatabaseExistsErr
		case pqErr.Code == "3D000":
			return true, UnknownDatabaseErr
		case pqErr.Code == "42601" || pqErr.Code == "42602":
			return true, SyntaxErr
		default:
			return true, UnknownErr
		}
	}
	s := strings.ToLower(err.Error())
	if strings.Contains(s, "unable to open database") ||
		strings.Contains(s, "cannot open") {
		return true, CannotOpenErr
	}
	if strings.Contains(s, "syntax error") {
		return true, SyntaxErr
	}
	if strings.Contains(s, "not authorized") ||
		strings.Contains(s, "permission denied") {
		return true, AccessDeniedErr
	}
	return false, UnknownErr
}

// isConnectionLost reports whether err means the session itself is unusable
// rather than the statement being rejected.
func isConnectionLost(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, mysql.ErrInvalidConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	if is, code := IsSqlError(err); is {
		switch code {
		case AuthFailedErr, ConnectionFailureErr, TooManyConnectionsErr:
			return true
		}
	}
	return false
}

// classifyStatementError wraps a failure that happened after the session
// was established.
func classifyStatementError(op string, err error) *InitError {
	if isConnectionLost(err) {
		return newInitError(ConnectionError, op, err)
	}
	return newInitError(StatementError, op, err)
}
