package jdbc

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/nucleus/datapuur/internal/core"
)

// Dialect captures the vendor-specific SQL a connector needs.
type Dialect interface {
	// Name is the canonical database type, e.g. "postgresql".
	Name() string
	DriverName() string
	DSN(cfg *Config) string
	QuoteIdent(ident string) string
	DefaultSchema(cfg *Config) string
	// ColumnsQuery selects name, type and nullability for (schema, table).
	ColumnsQuery() string
	// KeyColumnsQuery selects the primary key columns of (schema, table)
	// in key order.
	KeyColumnsQuery() string
	// PageQuery reads one window of table sorted by orderBy, a quoted
	// column list that may be empty.
	PageQuery(table, orderBy string, limit, offset int64) string
	VersionQuery() string
}

var (
	dialectsMu sync.RWMutex
	dialects   = map[string]Dialect{}
)

func registerDialect(d Dialect, aliases ...string) {
	dialectsMu.Lock()
	defer dialectsMu.Unlock()
	dialects[d.Name()] = d
	for _, a := range aliases {
		dialects[a] = d
	}
}

// DialectFor resolves a database type name.
func DialectFor(dbType string) (Dialect, error) {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	if d, ok := dialects[strings.ToLower(dbType)]; ok {
		return d, nil
	}
	return nil, core.UnsupportedSourceError("Unsupported database type: %s", dbType)
}

// SupportedTypes lists the canonical database types.
func SupportedTypes() []string {
	dialectsMu.RLock()
	defer dialectsMu.RUnlock()
	seen := map[string]bool{}
	var out []string
	for _, d := range dialects {
		if !seen[d.Name()] {
			seen[d.Name()] = true
			out = append(out, d.Name())
		}
	}
	sort.Strings(out)
	return out
}

// qualifiedName quotes a validated schema-qualified table name.
func qualifiedName(d Dialect, table string) (string, error) {
	schema, name, err := SplitTable(table)
	if err != nil {
		return "", err
	}
	if schema == "" {
		return d.QuoteIdent(name), nil
	}
	return fmt.Sprintf("%s.%s", d.QuoteIdent(schema), d.QuoteIdent(name)), nil
}

// limitOffset is the LIMIT/OFFSET paging shared by postgres and mysql.
func limitOffset(table, orderBy string, limit, offset int64) string {
	if orderBy == "" {
		return fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", table, limit, offset)
	}
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s LIMIT %d OFFSET %d", table, orderBy, limit, offset)
}

// keyColumnsQuery joins the standard constraint views; ph renders the
// dialect's placeholder for argument n.
func keyColumnsQuery(ph func(n int) string) string {
	return fmt.Sprintf(`
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		 AND tc.table_name = kcu.table_name
		WHERE tc.constraint_type = 'PRIMARY KEY'
		  AND tc.table_schema = %s AND tc.table_name = %s
		ORDER BY kcu.ordinal_position
	`, ph(1), ph(2))
}
