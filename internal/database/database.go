// Package database owns the SQL connection and the driver-portability
// helpers shared by every repository.
package database

import (
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// DB wraps the sqlx handle together with the driver name so repositories
// can convert placeholders without reaching for globals.
type DB struct {
	*sqlx.DB
	driver string
}

// Open connects using the given driver ("sqlite3", "postgres", "mysql")
// and ensures the schema exists.
func Open(driver, dsn string) (*DB, error) {
	sqlxDB, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	if strings.EqualFold(driver, "sqlite3") {
		// sqlite is single-writer, and an in-memory database exists
		// per connection. One connection serves both cases.
		sqlxDB.SetMaxOpenConns(1)
	} else {
		sqlxDB.SetMaxOpenConns(16)
		sqlxDB.SetMaxIdleConns(4)
		sqlxDB.SetConnMaxLifetime(30 * time.Minute)
	}

	db := &DB{DB: sqlxDB, driver: strings.ToLower(driver)}
	if err := db.ensureSchema(); err != nil {
		sqlxDB.Close()
		return nil, err
	}
	db.registerPoolMetrics()
	return db, nil
}

// Driver returns the lowercase driver name.
func (db *DB) Driver() string {
	return db.driver
}

// Convert rewrites ? placeholders for the active driver. Only ?
// placeholders are allowed in repository queries; $N placeholders will
// panic so the mistake is caught in tests rather than silently running
// on one backend only.
func (db *DB) Convert(query string) string {
	if strings.ContainsRune(query, '$') {
		panic(fmt.Sprintf("database.Convert: $N placeholders are not allowed, use ?: %s", query))
	}
	if db.driver == "postgres" {
		var b strings.Builder
		n := 1
		for _, c := range query {
			if c == '?' {
				fmt.Fprintf(&b, "$%d", n)
				n++
			} else {
				b.WriteRune(c)
			}
		}
		return b.String()
	}
	return query
}
