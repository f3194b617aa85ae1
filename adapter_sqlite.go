package main

import (
	"context"
	"database/sql"
	"net/url"
	"regexp"
	"strings"

	_ "modernc.org/sqlite"
)

var sqliteDialect = sqlDialect{backticks: true, brackets: true}

var sqliteRules = concatRules(
	functionRules("load_extension", "writefile", "edit", "fts3_tokenizer"),
	keywordRules("REPLACE", "ATTACH", "DETACH", "REINDEX", "VACUUM"),
	[]queryRule{{
		re:      regexp.MustCompile(`(?i)\bPRAGMA\s+\w+\s*=`),
		desc:    "PRAGMA write",
		kind:    "statement",
		cleaned: true,
	}},
)

// SQLiteAdapter implements DBAdapter for SQLite database files.
type SQLiteAdapter struct{}

func (a *SQLiteAdapter) Name() string       { return "sqlite" }
func (a *SQLiteAdapter) DriverName() string { return "sqlite" }
func (a *SQLiteAdapter) NeedsHost() bool    { return false }

// BuildDSN uses the Database field as the file path. Read-only configs open
// the file with mode=ro. A path with parameters becomes a file: URI.
func (a *SQLiteAdapter) BuildDSN(cfg ConnectionConfig) (string, error) {
	path := cfg.Database
	q := url.Values{}
	if i := strings.Index(path, "?"); i >= 0 {
		parsed, err := url.ParseQuery(path[i+1:])
		if err != nil {
			return "", err
		}
		q = parsed
		path = path[:i]
	}
	for k, v := range cfg.Params {
		q.Set(k, v)
	}
	if cfg.ReadOnly && q.Get("mode") == "" {
		q.Set("mode", "ro")
	}
	if len(q) == 0 {
		return path, nil
	}
	// The driver only hands URI parameters such as mode to sqlite for file: names.
	if !strings.HasPrefix(path, "file:") {
		path = "file:" + path
	}
	return path + "?" + q.Encode(), nil
}

// EnforceReadOnly adds PRAGMA query_only on top of mode=ro.
func (a *SQLiteAdapter) EnforceReadOnly(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "PRAGMA query_only = ON")
	return err
}

func (a *SQLiteAdapter) ValidateQuery(sqlQuery string) error {
	return validateCommon(sqlQuery, a.RemoveStringsAndComments(sqlQuery), sqliteRules)
}

// RemoveStringsAndComments: no # comments, no backslash escaping, supports
// backtick and [bracket] identifiers.
func (a *SQLiteAdapter) RemoveStringsAndComments(sql string) string {
	return sqliteDialect.strip(sql)
}
