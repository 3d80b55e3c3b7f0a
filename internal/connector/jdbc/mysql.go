package jdbc

import (
	"net"
	"strconv"
	"strings"

	"github.com/go-sql-driver/mysql"
)

func init() {
	registerDialect(mysqlDialect{}, "mariadb")
}

// mysqlDialect targets MySQL and MariaDB through go-sql-driver/mysql.
type mysqlDialect struct{}

func (mysqlDialect) Name() string       { return "mysql" }
func (mysqlDialect) DriverName() string { return "mysql" }

func (mysqlDialect) DSN(cfg *Config) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	mc := mysql.NewConfig()
	mc.User = cfg.User
	mc.Passwd = cfg.Password
	mc.Net = "tcp"
	mc.Addr = net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
	mc.DBName = cfg.Database
	mc.ParseTime = true
	return mc.FormatDSN()
}

func (mysqlDialect) QuoteIdent(ident string) string {
	return "`" + strings.ReplaceAll(ident, "`", "``") + "`"
}

// DefaultSchema is the connected database; MySQL has no schema layer.
func (mysqlDialect) DefaultSchema(cfg *Config) string { return cfg.Database }

func (mysqlDialect) ColumnsQuery() string {
	return `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = ? AND table_name = ?
		ORDER BY ordinal_position
	`
}

func (mysqlDialect) PageQuery(table, orderBy string, limit, offset int64) string {
	return limitOffset(table, orderBy, limit, offset)
}

func (mysqlDialect) KeyColumnsQuery() string {
	return keyColumnsQuery(func(int) string { return "?" })
}

func (mysqlDialect) VersionQuery() string { return "SELECT VERSION()" }
