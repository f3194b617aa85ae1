package main

import (
	"context"
	"database/sql"
	"sort"
)

// DBAdapter defines the contract for driver-specific behavior.
// Each supported driver (mysql, postgres, pgx, sqlite) has one.
type DBAdapter interface {
	// Name is the driver name used in ConnectionConfig.Driver.
	Name() string

	// DriverName returns the database/sql driver name to open.
	DriverName() string

	// NeedsHost reports whether the endpoint is reached over the network.
	NeedsHost() bool

	// BuildDSN constructs a DSN from a connection config.
	BuildDSN(cfg ConnectionConfig) (string, error)

	// EnforceReadOnly configures one session for read-only access.
	EnforceReadOnly(ctx context.Context, conn *sql.Conn) error

	// ValidateQuery validates that a SQL query is safe and read-only.
	ValidateQuery(sql string) error

	// RemoveStringsAndComments strips string literals and comments from SQL
	// for safe keyword detection.
	RemoveStringsAndComments(sql string) string
}

var adapters = map[string]DBAdapter{
	"mysql":    &MySQLAdapter{},
	"postgres": &PostgresAdapter{driver: "postgres"},
	"pgx":      &PostgresAdapter{driver: "pgx"},
	"sqlite":   &SQLiteAdapter{},
}

func adapterFor(driver string) (DBAdapter, bool) {
	a, ok := adapters[driver]
	return a, ok
}

// adapterNames returns the supported driver names, sorted.
func adapterNames() []string {
	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
