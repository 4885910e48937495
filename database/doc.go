// Package database provides server-level connection management, configuration
// loading, error classification, query hooks, and the initializer that makes
// sure a named database exists, built on top of Bun.
package database
