package jdbc

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
)

func init() {
	registerDialect(mssqlDialect{}, "sqlserver")
}

// mssqlDialect targets SQL Server through go-mssqldb.
type mssqlDialect struct{}

func (mssqlDialect) Name() string       { return "mssql" }
func (mssqlDialect) DriverName() string { return "sqlserver" }

func (mssqlDialect) DSN(cfg *Config) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	q := url.Values{}
	q.Set("database", cfg.Database)
	u := url.URL{
		Scheme:   "sqlserver",
		User:     url.UserPassword(cfg.User, cfg.Password),
		Host:     cfg.Host + ":" + strconv.Itoa(cfg.Port),
		RawQuery: q.Encode(),
	}
	return u.String()
}

func (mssqlDialect) QuoteIdent(ident string) string {
	return "[" + strings.ReplaceAll(ident, "]", "]]") + "]"
}

func (mssqlDialect) DefaultSchema(*Config) string { return "dbo" }

func (mssqlDialect) ColumnsQuery() string {
	return `
		SELECT COLUMN_NAME, DATA_TYPE, IS_NULLABLE, ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS
		WHERE TABLE_SCHEMA = @p1 AND TABLE_NAME = @p2
		ORDER BY ORDINAL_POSITION
	`
}

// PageQuery needs an ORDER BY for OFFSET/FETCH; (SELECT NULL) keeps natural
// order when there is no sort column.
func (mssqlDialect) PageQuery(table, orderBy string, limit, offset int64) string {
	if orderBy == "" {
		orderBy = "(SELECT NULL)"
	}
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s OFFSET %d ROWS FETCH NEXT %d ROWS ONLY", table, orderBy, offset, limit)
}

func (mssqlDialect) KeyColumnsQuery() string {
	return keyColumnsQuery(func(n int) string { return fmt.Sprintf("@p%d", n) })
}

func (mssqlDialect) VersionQuery() string { return "SELECT @@VERSION" }
