// Package jdbc implements the relational connectors used for database
// sources.
//
// Architecture:
//
//	Base      - database/sql connector shared by every vendor
//	Dialect   - vendor SQL: DSN, quoting, column metadata, paging
//	postgres  - PostgreSQL via lib/pq
//	mysql     - MySQL/MariaDB via go-sql-driver/mysql
//	mssql     - SQL Server via go-mssqldb
package jdbc

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nucleus/datapuur/internal/core"
)

// Base is a relational connector bound to one dialect.
type Base struct {
	Config  *Config
	Dialect Dialect
	DB      *sql.DB

	orderMu sync.Mutex
	order   map[string]string
}

// ConnectionResult is returned by a successful connection test.
type ConnectionResult struct {
	Message string `json:"message"`
	Version string `json:"version,omitempty"`
}

// Page is one window of table rows.
type Page struct {
	Columns []string
	Rows    [][]any
}

// Connect parses, validates and opens a connector from loose parameters.
func Connect(params map[string]any, requireTable bool) (*Base, error) {
	cfg := ParseConfig(params)
	if err := cfg.Validate(requireTable); err != nil {
		return nil, err
	}
	return Open(cfg)
}

// Open creates a connector for a validated config. No connection is made
// until the first query.
func Open(cfg *Config) (*Base, error) {
	d, err := DialectFor(cfg.Type)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(d.DriverName(), d.DSN(cfg))
	if err != nil {
		return nil, core.ConnectionError(err, "Connection failed")
	}

	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Base{Config: cfg, Dialect: d, DB: db}, nil
}

// Close releases database resources.
func (b *Base) Close() error {
	if b.DB != nil {
		return b.DB.Close()
	}
	return nil
}

// ID returns the connector identifier.
func (b *Base) ID() string {
	return "jdbc." + b.Dialect.Name()
}

// TestConnection pings the database and probes its version.
func (b *Base) TestConnection(ctx context.Context) (*ConnectionResult, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := b.DB.PingContext(ctx); err != nil {
		return nil, core.ConnectionError(err, "Connection failed")
	}

	var version string
	if err := b.DB.QueryRowContext(ctx, b.Dialect.VersionQuery()).Scan(&version); err != nil {
		return nil, core.ConnectionError(err, "Connection failed")
	}
	return &ConnectionResult{Message: "Connection successful", Version: version}, nil
}

// Columns returns the declared columns of table in ordinal order. A missing
// table yields no columns.
func (b *Base) Columns(ctx context.Context, table string) ([]core.ColumnMeta, error) {
	schema, name, err := SplitTable(table)
	if err != nil {
		return nil, err
	}
	if schema == "" {
		schema = b.Dialect.DefaultSchema(b.Config)
	}

	rows, err := b.DB.QueryContext(ctx, b.Dialect.ColumnsQuery(), schema, name)
	if err != nil {
		return nil, core.ConnectionError(err, "failed to get schema for %s", table)
	}
	defer rows.Close()

	var cols []core.ColumnMeta
	for rows.Next() {
		var c core.ColumnMeta
		var nullable string
		if err := rows.Scan(&c.Name, &c.DataType, &nullable, &c.Position); err != nil {
			return nil, fmt.Errorf("scan column metadata: %w", err)
		}
		c.Nullable = strings.EqualFold(nullable, "YES")
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, core.ConnectionError(err, "failed to get schema for %s", table)
	}
	return cols, nil
}

// Count returns the number of rows in table.
func (b *Base) Count(ctx context.Context, table string) (int64, error) {
	qn, err := qualifiedName(b.Dialect, table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := b.DB.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qn).Scan(&n); err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

// PrimaryKey returns the primary key columns of table in key order.
func (b *Base) PrimaryKey(ctx context.Context, table string) ([]string, error) {
	schema, name, err := SplitTable(table)
	if err != nil {
		return nil, err
	}
	if schema == "" {
		schema = b.Dialect.DefaultSchema(b.Config)
	}
	rows, err := b.DB.QueryContext(ctx, b.Dialect.KeyColumnsQuery(), schema, name)
	if err != nil {
		return nil, core.ConnectionError(err, "failed to get primary key of %s", table)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, fmt.Errorf("scan key column: %w", err)
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// pageOrder is the ORDER BY list for paging table: its primary key, else
// its first column. The result is cached per table.
func (b *Base) pageOrder(ctx context.Context, table string) (string, error) {
	b.orderMu.Lock()
	order, ok := b.order[table]
	b.orderMu.Unlock()
	if ok {
		return order, nil
	}

	keys, err := b.PrimaryKey(ctx, table)
	if err != nil {
		return "", err
	}
	if len(keys) == 0 {
		cols, err := b.Columns(ctx, table)
		if err != nil {
			return "", err
		}
		if len(cols) > 0 {
			keys = []string{cols[0].Name}
		}
	}
	quoted := make([]string, len(keys))
	for i, k := range keys {
		quoted[i] = b.Dialect.QuoteIdent(k)
	}
	order = strings.Join(quoted, ", ")

	b.orderMu.Lock()
	if b.order == nil {
		b.order = make(map[string]string)
	}
	b.order[table] = order
	b.orderMu.Unlock()
	return order, nil
}

// ReadPage reads up to limit rows starting at offset, sorted by the primary
// key or the first column so consecutive pages do not overlap.
func (b *Base) ReadPage(ctx context.Context, table string, limit, offset int64) (*Page, error) {
	qn, err := qualifiedName(b.Dialect, table)
	if err != nil {
		return nil, err
	}
	order, err := b.pageOrder(ctx, table)
	if err != nil {
		return nil, err
	}
	rows, err := b.DB.QueryContext(ctx, b.Dialect.PageQuery(qn, order, limit, offset))
	if err != nil {
		return nil, fmt.Errorf("read query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("failed to get columns: %w", err)
	}
	page := &Page{Columns: cols}
	for rows.Next() {
		values := make([]any, len(cols))
		valuePtrs := make([]any, len(cols))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		for i, v := range values {
			if raw, ok := v.([]byte); ok {
				values[i] = string(raw)
			}
		}
		page.Rows = append(page.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read query failed: %w", err)
	}
	return page, nil
}

// SampleRow returns the first row of table, or nil for an empty table.
func (b *Base) SampleRow(ctx context.Context, table string) (map[string]any, error) {
	page, err := b.ReadPage(ctx, table, 1, 0)
	if err != nil {
		return nil, core.ConnectionError(err, "failed to sample %s", table)
	}
	if len(page.Rows) == 0 {
		return nil, nil
	}
	row := make(map[string]any, len(page.Columns))
	for i, c := range page.Columns {
		row[c] = page.Rows[0][i]
	}
	return row, nil
}
