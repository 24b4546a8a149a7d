//go:build !cgo_sqlite

package main

import (
	"database/sql"
	"strings"

	_ "modernc.org/sqlite"
)

// dbDSN appends modernc.org/sqlite's connection parameters to the database
// path. This driver only understands pragmas in _pragma=name(value) form.
func dbDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
}

func initDB(path string) (*sql.DB, error) {
	return sql.Open("sqlite", dbDSN(path))
}
