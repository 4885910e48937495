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

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tomoncle/bookstore"
	"github.com/tomoncle/bookstore/database"
	"github.com/tomoncle/bookstore/utils"
)

var errInitFailed = errors.New("database initialization failed")

type options struct {
	configFile string
	dbType     string
	host       string
	port       int
	user       string
	password   string
	database   string
	logLevel   string
	logFormat  string
	queryLog   bool
	strict     bool
}

// NewRootCommand builds the bookstore-init command writing its report to out.
func NewRootCommand(out io.Writer) *cobra.Command {
	cmd, _ := newRootCommand(out)
	return cmd
}

func newRootCommand(out io.Writer) (*cobra.Command, *options) {
	opts := &options{}
	cmd := &cobra.Command{
		Use:   "bookstore-init",
		Short: "Create the book store database if it does not exist",
		Long: `bookstore-init connects to a database server, issues an idempotent
"create database if not exists" for the book store database and reports
the outcome.

Settings come from defaults, then the --config file, then DB_* environment
variables, then flags. The exit status is 0 even when the database step
fails unless --strict is given.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PreRun: func(cmd *cobra.Command, args []string) {
			if opts.logFormat != "" {
				utils.ConfigureConsoleLogFormat(opts.logFormat)
			}
			if cmd.Flags().Changed("log-level") {
				utils.ConfigureLogLevel(opts.logLevel)
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			logger := utils.NewLogger("CLI")
			logger.WithField("type", cfg.ConnectionConfig.Type).
				WithField("host", cfg.ConnectionConfig.EffectiveHost()).
				WithField("database", cfg.Database).
				Debug("configuration loaded")

			if err := bookstore.NewService(cfg).Run(cmd.Context(), out); err != nil && opts.strict {
				return fmt.Errorf("%w: %v", errInitFailed, err)
			}
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.CompletionOptions.DisableDefaultCmd = true

	flags := cmd.Flags()
	flags.StringVar(&opts.configFile, "config", "", "YAML or TOML configuration file")
	flags.StringVar(&opts.dbType, "type", "", "database server type: mysql, postgres or sqlite")
	flags.StringVar(&opts.host, "host", "", "server host (directory for sqlite)")
	flags.IntVar(&opts.port, "port", 0, "server port (default depends on --type)")
	flags.StringVarP(&opts.user, "user", "u", "", "user name")
	flags.StringVarP(&opts.password, "password", "p", "", "password")
	flags.StringVar(&opts.database, "database", "", "database to create (default "+database.DefaultDatabaseName+")")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: trace, debug, info, warn, error")
	flags.StringVar(&opts.logFormat, "log-format", "", "log format: text or json")
	flags.BoolVar(&opts.queryLog, "query-log", false, "log every statement sent to the server")
	flags.BoolVar(&opts.strict, "strict", false, "exit with status 1 when the database step fails")
	return cmd, opts
}

// loadConfig layers defaults, the config file, the environment and the flags
// that were set explicitly.
func loadConfig(cmd *cobra.Command, opts *options) (*database.Config, error) {
	cfg := database.DefaultConfig()
	if opts.configFile != "" {
		loaded, err := database.LoadConfig(opts.configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		cfg = loaded
	}
	database.OverrideFromEnv(cfg)

	flags := cmd.Flags()
	conn := &cfg.ConnectionConfig
	if flags.Changed("type") {
		conn.Type = opts.dbType
	}
	if flags.Changed("host") {
		conn.Host = opts.host
	}
	if flags.Changed("port") {
		conn.Port = opts.port
	}
	if flags.Changed("user") {
		conn.Username = opts.user
	}
	if flags.Changed("password") {
		conn.Password = opts.password
	}
	if flags.Changed("query-log") {
		conn.EnableQueryLog = opts.queryLog
	}
	if flags.Changed("database") {
		cfg.Database = opts.database
	}
	return cfg, nil
}

// Execute runs the command line and returns the process exit status.
func Execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	cmd := NewRootCommand(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	if err := cmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(errOut, "%s: *** %v\n", cmd.Name(), err)
		return 1
	}
	return 0
}

// Main is the process entry point.
func Main() {
	os.Exit(Execute(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
