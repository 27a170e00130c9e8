package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/go-sql-driver/mysql"
)

type mysqlEngine struct {
	*base
}

func openMySQL(params models.ConnectionParams) (Engine, error) {
	cfg := mysql.NewConfig()
	cfg.User = params.User
	cfg.Passwd = params.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(params.Host, strconv.Itoa(params.Port))
	cfg.DBName = params.Database
	cfg.Timeout = params.Timeout
	cfg.ParseTime = true
	cfg.Params = map[string]string{"charset": params.Charset}
	if params.SSLDisabled {
		cfg.TLSConfig = "false"
	} else {
		cfg.TLSConfig = "preferred"
	}

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build mysql connector: %w", err)
	}

	conn := sql.OpenDB(connector)
	return &mysqlEngine{
		base: newBase(models.EngineMySQL, conn, params.Database,
			"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "HELP", "WITH", "VALUES", "TABLE"),
	}, nil
}

func (m *mysqlEngine) Execute(ctx context.Context, query string) (*models.ResultSet, error) {
	if FirstKeyword(query) == "USE" {
		fields := strings.Fields(TrimStatement(query))
		if len(fields) != 2 {
			return nil, fmt.Errorf("usage: USE <database>")
		}
		name := strings.Trim(fields[1], "`")
		if err := m.UseDatabase(ctx, name); err != nil {
			return nil, err
		}
		return &models.ResultSet{Message: fmt.Sprintf("Database changed to '%s'", name)}, nil
	}
	return m.base.Execute(ctx, query)
}

func (m *mysqlEngine) QuoteIdent(name string) string {
	return "`" + strings.ReplaceAll(name, "`", "``") + "`"
}

func (m *mysqlEngine) Databases(ctx context.Context) (*models.ResultSet, error) {
	rs, err := m.query(ctx, `
		SELECT s.schema_name AS `+"`Database`"+`,
		       ROUND(COALESCE(SUM(t.data_length + t.index_length), 0) / 1024 / 1024, 2) AS `+"`Size (MB)`"+`
		FROM information_schema.schemata s
		LEFT JOIN information_schema.tables t ON t.table_schema = s.schema_name
		GROUP BY s.schema_name
		ORDER BY s.schema_name`)
	if err != nil {
		return m.query(ctx, "SHOW DATABASES")
	}
	return rs, nil
}

func (m *mysqlEngine) Tables(ctx context.Context) (*models.ResultSet, error) {
	if m.schema == "" {
		return nil, ErrNoDatabase
	}
	rs, err := m.query(ctx, `
		SELECT table_name AS `+"`Table`"+`, table_type AS `+"`Type`"+`,
		       engine AS `+"`Engine`"+`, table_rows AS `+"`Rows`"+`
		FROM information_schema.tables
		WHERE table_schema = DATABASE()
		ORDER BY table_name`)
	if err != nil {
		return m.query(ctx, "SHOW TABLES")
	}
	return rs, nil
}

func (m *mysqlEngine) Describe(ctx context.Context, table string) (*models.ResultSet, error) {
	rs, err := m.query(ctx, "SHOW COLUMNS FROM "+m.QuoteIdent(table))
	return rs, tableNotFound(err, table)
}

// tableNotFound maps MySQL's "table doesn't exist" to ErrTableNotFound.
func tableNotFound(err error, table string) error {
	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) && myErr.Number == 1146 {
		return fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return err
}

func (m *mysqlEngine) Columns(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	rows, err := m.conn.QueryContext(ctx, `
		SELECT column_name, column_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = DATABASE() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get table columns: %w", err)
	}
	return scanColumnInfo(rows)
}

func (m *mysqlEngine) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := m.count(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = DATABASE() AND table_name = ?`, table)
	return n > 0, err
}

func (m *mysqlEngine) UseDatabase(ctx context.Context, name string) error {
	if _, err := m.conn.ExecContext(ctx, "USE "+m.QuoteIdent(name)); err != nil {
		return fmt.Errorf("failed to switch database: %w", err)
	}
	m.schema = name
	return nil
}

func (m *mysqlEngine) ColumnType(spec models.ColumnSpec) string {
	switch spec.Type {
	case models.ColumnTypeInteger:
		if spec.MaxAbsInt > 2147483647 {
			return "BIGINT"
		}
		return "INT"
	case models.ColumnTypeFloat:
		return "DOUBLE"
	case models.ColumnTypeDate:
		if spec.HasTime {
			return "DATETIME"
		}
		return "DATE"
	}
	if spec.MaxLength <= 255 {
		return "VARCHAR(255)"
	}
	return "TEXT"
}

func (m *mysqlEngine) Version(ctx context.Context) (string, error) {
	return m.version(ctx, "SELECT VERSION()")
}

// scanColumnInfo reads (name, type, nullable) triples where nullable is a
// YES/NO string as in information_schema.
func scanColumnInfo(rows *sql.Rows) ([]models.ColumnInfo, error) {
	defer rows.Close()

	var columns []models.ColumnInfo
	for rows.Next() {
		var (
			col      models.ColumnInfo
			nullable string
		)
		if err := rows.Scan(&col.Name, &col.Type, &nullable); err != nil {
			return nil, fmt.Errorf("failed to scan column info: %w", err)
		}
		col.Nullable = strings.EqualFold(nullable, "YES")
		columns = append(columns, col)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating column rows: %w", err)
	}
	return columns, nil
}
