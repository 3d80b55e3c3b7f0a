package jdbc

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/nucleus/datapuur/internal/core"
)

// Config holds relational connection configuration.
type Config struct {
	Type             string
	Host             string
	Port             int
	Database         string
	User             string
	Password         string
	Table            string
	SSLMode          string
	ConnectionString string
}

// ParseConfig extracts configuration from a loose map.
func ParseConfig(m map[string]any) *Config {
	return &Config{
		Type:             strings.ToLower(getString(m, "", "type", "db_type", "driver")),
		Host:             getString(m, "", "host"),
		Port:             getInt(m, 0, "port"),
		Database:         getString(m, "", "database", "dbname"),
		User:             getString(m, "", "username", "user"),
		Password:         getString(m, "", "password"),
		Table:            getString(m, "", "table"),
		SSLMode:          getString(m, "disable", "ssl_mode", "sslmode"),
		ConnectionString: getString(m, "", "connection_string"),
	}
}

// Validate reports missing required fields. The table is only required for
// schema and ingestion requests.
func (c *Config) Validate(requireTable bool) error {
	if c.Type == "" {
		return core.ValidationError("Missing required field: type")
	}
	if _, err := DialectFor(c.Type); err != nil {
		return err
	}
	var missing []string
	if c.ConnectionString == "" {
		if c.Host == "" {
			missing = append(missing, "host")
		}
		if c.Port <= 0 {
			missing = append(missing, "port")
		}
		if c.Database == "" {
			missing = append(missing, "database")
		}
		if c.User == "" {
			missing = append(missing, "username")
		}
	}
	if requireTable && c.Table == "" {
		missing = append(missing, "table")
	}
	if len(missing) > 0 {
		return core.ValidationError("Missing required fields: %s", strings.Join(missing, ", "))
	}
	if c.Table != "" {
		if _, _, err := SplitTable(c.Table); err != nil {
			return err
		}
	}
	return nil
}

// Details renders the job details line for a table ingestion.
func (c *Config) Details() string {
	return fmt.Sprintf("DB: %s.%s", c.Database, c.Table)
}

// Redacted returns the configuration as a map without the password.
func (c *Config) Redacted() map[string]any {
	return map[string]any{
		"type":     c.Type,
		"host":     c.Host,
		"port":     c.Port,
		"database": c.Database,
		"username": c.User,
		"table":    c.Table,
	}
}

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_$]*$`)

// SplitTable splits "schema.table" or "table" and validates both parts.
func SplitTable(table string) (string, string, error) {
	parts := strings.Split(strings.TrimSpace(table), ".")
	if len(parts) > 2 {
		return "", "", core.ValidationError("invalid table name %q", table)
	}
	for _, p := range parts {
		if !identPattern.MatchString(p) {
			return "", "", core.ValidationError("invalid table name %q", table)
		}
	}
	if len(parts) == 1 {
		return "", parts[0], nil
	}
	return parts[0], parts[1], nil
}

func getString(m map[string]any, defaultVal string, keys ...string) string {
	for _, key := range keys {
		if v, ok := m[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return defaultVal
}

func getInt(m map[string]any, defaultVal int, keys ...string) int {
	for _, key := range keys {
		switch v := m[key].(type) {
		case float64:
			return int(v)
		case int:
			return v
		case int64:
			return int(v)
		case string:
			if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				return i
			}
		}
	}
	return defaultVal
}
