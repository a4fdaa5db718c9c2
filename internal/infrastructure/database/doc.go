// Package database manages the SQLite connection for LockerHub Core.
//
// It wraps database/sql with WAL-mode pragmas tuned for SQLite's
// single-writer model, restrictive file permissions, health checks,
// and an embedded-FS migration runner. All persistent state (lockers,
// members, groups, activity log) lives in this one database file.
package database
