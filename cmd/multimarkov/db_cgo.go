//go:build cgo_sqlite

package main

import (
	"database/sql"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// dbDSN appends mattn/go-sqlite3's connection parameters to the database path.
func dbDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_journal_mode=WAL&_busy_timeout=5000"
}

func initDB(path string) (*sql.DB, error) {
	return sql.Open("sqlite3", dbDSN(path))
}
