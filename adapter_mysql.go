package main

import (
	"context"
	"database/sql"
	"fmt"
	"net"
	"strconv"

	"github.com/go-sql-driver/mysql"
)

const defaultMySQLPort = 3306

var mysqlDialect = sqlDialect{hashComments: true, backslashEscapes: true, doubleQuoteIsStr: true, backticks: true}

var mysqlRules = concatRules(
	[]queryRule{
		patternRule(`\bINTO\s+OUTFILE\b`, "INTO OUTFILE"),
		patternRule(`\bINTO\s+DUMPFILE\b`, "INTO DUMPFILE"),
		patternRule(`\bINTO\s+@`, "INTO @variable"),
	},
	functionRules(
		"LOAD_FILE", "SLEEP", "BENCHMARK", "GET_LOCK", "RELEASE_LOCK", "IS_FREE_LOCK",
		"IS_USED_LOCK", "WAIT_FOR_EXECUTED_GTID_SET", "WAIT_UNTIL_SQL_THREAD_AFTER_GTIDS",
		"MASTER_POS_WAIT", "SOURCE_POS_WAIT",
	),
	keywordRules("CALL", "EXEC", "EXECUTE", "REPLACE", "LOAD", "HANDLER", "RENAME"),
)

// MySQLAdapter implements DBAdapter for MySQL and MariaDB endpoints.
type MySQLAdapter struct{}

func (a *MySQLAdapter) Name() string       { return "mysql" }
func (a *MySQLAdapter) DriverName() string { return "mysql" }
func (a *MySQLAdapter) NeedsHost() bool    { return true }

func (a *MySQLAdapter) BuildDSN(cfg ConnectionConfig) (string, error) {
	port := cfg.Port
	if port == 0 {
		port = defaultMySQLPort
	}

	mc := mysql.NewConfig()
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(port))
	mc.DBName = cfg.Database
	if cfg.Credentials != nil {
		mc.User = cfg.Credentials.User
		mc.Passwd = cfg.Credentials.Password
	}
	if len(cfg.Params) > 0 {
		mc.Params = make(map[string]string, len(cfg.Params))
		for k, v := range cfg.Params {
			mc.Params[k] = v
		}
	}
	dsn := mc.FormatDSN()
	if _, err := mysql.ParseDSN(dsn); err != nil {
		return "", fmt.Errorf("invalid mysql dsn for %s: %w", cfg.Label, err)
	}
	return dsn, nil
}

func (a *MySQLAdapter) EnforceReadOnly(ctx context.Context, conn *sql.Conn) error {
	_, err := conn.ExecContext(ctx, "SET SESSION TRANSACTION READ ONLY")
	return err
}

func (a *MySQLAdapter) ValidateQuery(sqlQuery string) error {
	return validateCommon(sqlQuery, a.RemoveStringsAndComments(sqlQuery), mysqlRules)
}

// RemoveStringsAndComments supports # comments, backtick identifiers, and
// backslash escaping in strings.
func (a *MySQLAdapter) RemoveStringsAndComments(sql string) string {
	return mysqlDialect.strip(sql)
}

func concatRules(groups ...[]queryRule) []queryRule {
	var out []queryRule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}
