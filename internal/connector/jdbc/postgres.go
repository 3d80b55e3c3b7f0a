package jdbc

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func init() {
	registerDialect(postgresDialect{}, "postgres", "pg")
}

// postgresDialect targets PostgreSQL through lib/pq.
type postgresDialect struct{}

func (postgresDialect) Name() string       { return "postgresql" }
func (postgresDialect) DriverName() string { return "postgres" }

func (postgresDialect) DSN(cfg *Config) string {
	if cfg.ConnectionString != "" {
		return cfg.ConnectionString
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.Database,
	}
	q := url.Values{}
	q.Set("sslmode", cfg.SSLMode)
	u.RawQuery = q.Encode()
	return u.String()
}

func (postgresDialect) QuoteIdent(ident string) string {
	return `"` + strings.ReplaceAll(ident, `"`, `""`) + `"`
}

func (postgresDialect) DefaultSchema(*Config) string { return "public" }

func (postgresDialect) ColumnsQuery() string {
	return `
		SELECT column_name, data_type, is_nullable, ordinal_position
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position
	`
}

func (postgresDialect) PageQuery(table, orderBy string, limit, offset int64) string {
	return limitOffset(table, orderBy, limit, offset)
}

func (postgresDialect) KeyColumnsQuery() string {
	return keyColumnsQuery(func(n int) string { return fmt.Sprintf("$%d", n) })
}

func (postgresDialect) VersionQuery() string { return "SELECT version()" }
