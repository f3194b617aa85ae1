package main

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
)

const defaultPostgresPort = 5432

var postgresDialect = sqlDialect{dollarQuotes: true}

var postgresRules = concatRules(
	[]queryRule{
		patternRule(`\bCOPY\s+.*\bTO\b`, "COPY ... TO"),
		patternRule(`\bCOPY\s+.*\bFROM\b`, "COPY ... FROM"),
	},
	functionRules(
		"pg_read_file", "pg_read_binary_file", "pg_ls_dir", "lo_import", "lo_export",
		"pg_sleep", "pg_sleep_for", "pg_sleep_until",
		"pg_advisory_lock", "pg_advisory_xact_lock", "pg_try_advisory_lock",
	),
	keywordRules(
		"CALL", "EXECUTE", "COPY", "LISTEN", "NOTIFY", "PREPARE", "DEALLOCATE",
		"VACUUM", "REINDEX", "CLUSTER",
	),
)

// PostgresAdapter implements DBAdapter for PostgreSQL. The same adapter backs
// both lib/pq ("postgres") and pgx ("pgx"); they accept the same URL DSN.
type PostgresAdapter struct {
	driver string
}

func (a *PostgresAdapter) Name() string { return a.DriverName() }

func (a *PostgresAdapter) DriverName() string {
	if a.driver == "" {
		return "postgres"
	}
	return a.driver
}

func (a *PostgresAdapter) NeedsHost() bool { return true }

// BuildDSN returns a postgres:// URL. Only pgx gets a default sslmode.
func (a *PostgresAdapter) BuildDSN(cfg ConnectionConfig) (string, error) {
	port := cfg.Port
	if port == 0 {
		port = defaultPostgresPort
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(cfg.Host, strconv.Itoa(port)),
		Path:   "/" + cfg.Database,
	}
	if cfg.Credentials != nil {
		if cfg.Credentials.Password != "" {
			u.User = url.UserPassword(cfg.Credentials.User, cfg.Credentials.Password)
		} else {
			u.User = url.User(cfg.Credentials.User)
		}
	}

	q := url.Values{}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	// lib/pq has no prefer mode and defaults to require on its own.
	if q.Get("sslmode") == "" && a.DriverName() == "pgx" {
		q.Set("sslmode", "prefer")
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (a *PostgresAdapter) EnforceReadOnly(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
	return err
}

func (a *PostgresAdapter) ValidateQuery(sqlQuery string) error {
	return validateCommon(sqlQuery, a.RemoveStringsAndComments(sqlQuery), postgresRules)
}

// RemoveStringsAndComments handles $$ dollar-quoted strings; no # comments,
// no backtick identifiers, no backslash escaping by default.
func (a *PostgresAdapter) RemoveStringsAndComments(sql string) string {
	return postgresDialect.strip(sql)
}
