package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/JayJamieson/db-cli/pkg/models"
	_ "github.com/marcboeker/go-duckdb/v2"
)

type duckdbEngine struct {
	*base
}

func openDuckDB(params models.ConnectionParams) (Engine, error) {
	if err := checkDatabaseFile(params); err != nil {
		return nil, err
	}

	dsn := params.File
	if dsn == models.MemoryDatabase {
		dsn = ""
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open DuckDB connection: %w", err)
	}

	return &duckdbEngine{
		base: newBase(models.EngineDuckDB, conn, fileSchemaName(params.File),
			"SELECT", "SHOW", "DESCRIBE", "DESC", "EXPLAIN", "WITH", "PRAGMA", "VALUES", "TABLE", "FROM", "SUMMARIZE"),
	}, nil
}

func (d *duckdbEngine) Databases(ctx context.Context) (*models.ResultSet, error) {
	return d.query(ctx, "SHOW DATABASES")
}

func (d *duckdbEngine) Tables(ctx context.Context) (*models.ResultSet, error) {
	return d.query(ctx, `
		SELECT table_name AS "Table", table_type AS "Type", 'duckdb' AS "Engine"
		FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_catalog = current_database()
		ORDER BY table_name`)
}

func (d *duckdbEngine) Describe(ctx context.Context, table string) (*models.ResultSet, error) {
	exists, err := d.TableExists(ctx, table)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return d.query(ctx, "DESCRIBE "+d.QuoteIdent(table))
}

func (d *duckdbEngine) Columns(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	rows, err := d.conn.QueryContext(ctx, `
		SELECT column_name, data_type, is_nullable
		FROM information_schema.columns
		WHERE table_schema = current_schema() AND table_catalog = current_database() AND table_name = ?
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get table columns: %w", err)
	}
	return scanColumnInfo(rows)
}

func (d *duckdbEngine) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := d.count(ctx, `
		SELECT COUNT(*) FROM information_schema.tables
		WHERE table_schema = current_schema() AND table_catalog = current_database() AND table_name = ?`, table)
	return n > 0, err
}

// UseDatabase switches between attached databases.
func (d *duckdbEngine) UseDatabase(ctx context.Context, name string) error {
	if _, err := d.conn.ExecContext(ctx, "USE "+d.QuoteIdent(name)); err != nil {
		return fmt.Errorf("failed to switch database: %w", err)
	}
	d.schema = name
	return nil
}

func (d *duckdbEngine) ColumnType(spec models.ColumnSpec) string {
	switch spec.Type {
	case models.ColumnTypeInteger:
		if spec.MaxAbsInt > 2147483647 {
			return "BIGINT"
		}
		return "INTEGER"
	case models.ColumnTypeFloat:
		return "DOUBLE"
	case models.ColumnTypeDate:
		if spec.HasTime {
			return "TIMESTAMP"
		}
		return "DATE"
	}
	return "VARCHAR"
}

func (d *duckdbEngine) Version(ctx context.Context) (string, error) {
	return d.version(ctx, "SELECT version()")
}
