package main

import (
	"context"
	"encoding/json"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/nucleus/datapuur/internal/auth"
)

// dbFlags are the connection parameters shared by the database commands.
type dbFlags struct {
	Type     string
	Host     string
	Port     int
	Database string
	User     string
	Password string
	Table    string
	SSLMode  string
	DSN      string
}

func (f *dbFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.Type, "db-type", "", "Database type: postgresql, mysql or mssql.")
	flags.StringVar(&f.Host, "db-host", "localhost", "Database host.")
	flags.IntVar(&f.Port, "db-port", 0, "Database port. Zero uses the driver default.")
	flags.StringVar(&f.Database, "db-name", "", "Database name.")
	flags.StringVar(&f.User, "db-user", "", "Database user.")
	flags.StringVar(&f.Password, "db-password", os.Getenv("DATAPUUR_DB_PASSWORD"), "Database password. Defaults to $DATAPUUR_DB_PASSWORD.")
	flags.StringVar(&f.Table, "db-table", "", "Table to read.")
	flags.StringVar(&f.SSLMode, "db-sslmode", "disable", "SSL mode for PostgreSQL.")
	flags.StringVar(&f.DSN, "db-dsn", "", "Full connection string; overrides host, port and credentials.")
}

func (f *dbFlags) set() bool { return f.Type != "" }

func (f *dbFlags) params() map[string]any {
	p := map[string]any{
		"type":     f.Type,
		"host":     f.Host,
		"database": f.Database,
		"username": f.User,
		"password": f.Password,
		"table":    f.Table,
		"ssl_mode": f.SSLMode,
	}
	if f.Port > 0 {
		p["port"] = f.Port
	}
	if f.DSN != "" {
		p["connection_string"] = f.DSN
	}
	return p
}

// operatorContext runs in-process commands as the local user.
func operatorContext(ctx context.Context) context.Context {
	user := os.Getenv("USER")
	if user == "" {
		user = "cli"
	}
	return auth.WithPrincipal(ctx, &auth.Principal{Subject: user, Roles: []string{"admin"}})
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
