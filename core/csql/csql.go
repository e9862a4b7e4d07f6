// Package csql wraps a postgres sql.DB together with the schema all promptlib relations live in.
package csql

import (
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/lib/pq" // load database driver for postgres

	"github.com/relabs-tech/promptlib/core/logger"
)

// DB encapsulates a standard sql.DB with a schema
type DB struct {
	*sql.DB
	Schema string
}

// ErrNoRows is returned by Scan when QueryRow doesn't return a
// row. In such a case, QueryRow returns a placeholder *Row value that
// defers this error until a Scan.
var ErrNoRows = sql.ErrNoRows

// New wraps an already opened database. An empty schema selects "public".
func New(db *sql.DB, schema string) *DB {
	if len(schema) == 0 {
		schema = "public"
	}
	return &DB{DB: db, Schema: schema}
}

// Open opens a postgres database and makes sure the schema exists.
// The password is optional and is appended to the data source name when given.
func Open(dataSourceName, password, schema string) (*DB, error) {
	dsn := dataSourceName
	if len(password) > 0 {
		dsn = strings.TrimSpace(dsn) + " password=" + password
	}
	logger.Default().Infoln("connecting to postgres database:", dataSourceName)
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("cannot reach database: %w", err)
	}
	if len(schema) == 0 {
		schema = "public"
	} else {
		logger.Default().Infoln("selected database schema:", schema)
		_, err = db.Exec(`CREATE schema IF NOT EXISTS "` + schema + `";`)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("cannot create schema %s: %w", schema, err)
		}
	}
	return &DB{DB: db, Schema: schema}, nil
}

// OpenWithSchema is like Open but panics on error. Use it in main functions.
func OpenWithSchema(dataSourceName, password, schema string) *DB {
	db, err := Open(dataSourceName, password, schema)
	if err != nil {
		panic(err)
	}
	return db
}

// Table returns the schema qualified, quoted name of a relation.
func (db *DB) Table(name string) string {
	return `"` + db.Schema + `"."` + name + `"`
}

// ClearSchema clears all the data contained in the database's schema
// Technically this is done by dropping the schema and then recreating it
func (db *DB) ClearSchema() {
	if db.Schema == "public" {
		panic("refuse to drop public schema")
	}
	_, err := db.Exec(`DROP SCHEMA IF EXISTS "` + db.Schema + `" CASCADE;
	CREATE schema IF NOT EXISTS "` + db.Schema + `";`)
	if err != nil {
		logger.Default().WithError(err).Errorln("clear schema error:", db.Schema)
	}
}
