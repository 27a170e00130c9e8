package db

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/JayJamieson/db-cli/pkg/models"
	_ "github.com/lib/pq"
)

type postgresEngine struct {
	*base
}

func openPostgres(params models.ConnectionParams) (Engine, error) {
	conn, err := sql.Open("postgres", postgresDSN(params))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &postgresEngine{
		base: newBase(models.EnginePostgreSQL, conn, params.Database,
			"SELECT", "SHOW", "EXPLAIN", "WITH", "VALUES", "TABLE"),
	}, nil
}

func postgresDSN(params models.ConnectionParams) string {
	sslmode := "require"
	switch {
	case params.SSLDisabled:
		sslmode = "disable"
	case params.Host == "localhost", params.Host == "127.0.0.1", params.Host == "::1":
		sslmode = "disable"
	}

	pairs := []string{
		"host=" + dsnQuote(params.Host),
		"port=" + strconv.Itoa(params.Port),
		"user=" + dsnQuote(params.User),
		"dbname=" + dsnQuote(params.Database),
		"sslmode=" + sslmode,
		"connect_timeout=" + strconv.Itoa(int(params.Timeout.Seconds())),
	}
	if params.Password != "" {
		pairs = append(pairs, "password="+dsnQuote(params.Password))
	}
	return strings.Join(pairs, " ")
}

func dsnQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func (p *postgresEngine) Placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}

func (p *postgresEngine) Databases(ctx context.Context) (*models.ResultSet, error) {
	return p.query(ctx, `
		SELECT datname AS "Database",
		       pg_size_pretty(pg_database_size(datname)) AS "Size"
		FROM pg_database
		WHERE datistemplate = false
		ORDER BY datname`)
}

func (p *postgresEngine) Tables(ctx context.Context) (*models.ResultSet, error) {
	return p.query(ctx, `
		SELECT table_name AS "Table", table_type AS "Type", 'postgresql' AS "Engine"
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		ORDER BY table_name`)
}

func (p *postgresEngine) Describe(ctx context.Context, table string) (*models.ResultSet, error) {
	rs, err := p.query(ctx, `
		SELECT column_name AS "Column", data_type AS "Type",
		       is_nullable AS "Null", column_default AS "Default"
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	if len(rs.Rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return rs, nil
}

func (p *postgresEngine) Columns(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	rows, err := p.conn.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get table columns: %w", err)
	}
	return scanColumnInfo(rows)
}

func (p *postgresEngine) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := p.count(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_name = $1`, table)
	return n > 0, err
}

// UseDatabase cannot switch in place; PostgreSQL binds a connection to one
// database, so the session reconnects instead.
func (p *postgresEngine) UseDatabase(context.Context, string) error {
	return ErrReconnectRequired
}

func (p *postgresEngine) ColumnType(spec models.ColumnSpec) string {
	switch spec.Type {
	case models.ColumnTypeInteger:
		if spec.MaxAbsInt > 2147483647 {
			return "BIGINT"
		}
		return "INTEGER"
	case models.ColumnTypeFloat:
		return "DOUBLE PRECISION"
	case models.ColumnTypeDate:
		if spec.HasTime {
			return "TIMESTAMP"
		}
		return "DATE"
	}
	return "TEXT"
}

func (p *postgresEngine) Version(ctx context.Context) (string, error) {
	return p.version(ctx, "SELECT version()")
}
