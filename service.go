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

// Package bookstore prepares the database server for the book store: it makes
// sure the store's database exists and reports the outcome on the console.
package bookstore

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/tomoncle/bookstore/database"
)

var separator = strings.Repeat("-", 50)

// Service runs database initializations against one configuration.
type Service interface {
	// Run ensures the configured database exists, bracketing the report
	// with the console banner and footer. The returned error is the
	// classified failure (see database.KindOf), already reported to out.
	Run(ctx context.Context, out io.Writer) error

	// Config returns the configuration the service was built with.
	Config() *database.Config
}

type baseServiceImpl struct {
	cfg  *database.Config
	opts []database.ManagerOption
}

// NewService returns a Service for cfg. Options are passed to the database
// manager.
func NewService(cfg *database.Config, opts ...database.ManagerOption) Service {
	if cfg == nil {
		cfg = database.DefaultConfig()
	}
	return &baseServiceImpl{cfg: cfg, opts: opts}
}

func (s *baseServiceImpl) Config() *database.Config { return s.cfg }

func (s *baseServiceImpl) Run(ctx context.Context, out io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	server := s.cfg.ConnectionConfig.ServerName()
	_, _ = fmt.Fprintf(out, "Connecting to %s server...\n", server)
	_, _ = fmt.Fprintf(out, "Attempting to create database '%s'...\n", s.cfg.Database)
	_, _ = fmt.Fprintln(out, separator)

	err := database.EnsureDatabaseExists(ctx, &s.cfg.ConnectionConfig, s.cfg.Database, out, s.opts...)

	_, _ = fmt.Fprintln(out, separator)
	_, _ = fmt.Fprintln(out, "Script execution completed.")
	return err
}

// Run is shorthand for NewService(cfg).Run(ctx, out).
func Run(ctx context.Context, cfg *database.Config, out io.Writer) error {
	return NewService(cfg).Run(ctx, out)
}
