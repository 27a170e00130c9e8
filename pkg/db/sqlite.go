package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/JayJamieson/db-cli/pkg/models"
	_ "github.com/tursodatabase/libsql-client-go/libsql"
	_ "modernc.org/sqlite"
)

type sqliteEngine struct {
	*base
	path string
}

var remoteSchemes = []string{"libsql://", "https://", "http://", "wss://", "ws://"}

// IsRemoteSQLite reports whether target names a libsql server rather than a
// local file.
func IsRemoteSQLite(target string) bool {
	for _, scheme := range remoteSchemes {
		if strings.HasPrefix(target, scheme) {
			return true
		}
	}
	return false
}

func openSQLite(params models.ConnectionParams) (Engine, error) {
	var (
		conn *sql.DB
		err  error
	)

	if IsRemoteSQLite(params.File) {
		conn, err = sql.Open("libsql", libsqlURL(params))
	} else {
		if err := checkDatabaseFile(params); err != nil {
			return nil, err
		}
		conn, err = sql.Open("sqlite", params.File)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &sqliteEngine{
		base: newBase(models.EngineSQLite, conn, fileSchemaName(params.File),
			"SELECT", "PRAGMA", "WITH", "VALUES", "EXPLAIN"),
		path: params.File,
	}, nil
}

// libsqlURL attaches the password as the libsql auth token.
func libsqlURL(params models.ConnectionParams) string {
	if params.Password == "" {
		return params.File
	}
	u, err := url.Parse(params.File)
	if err != nil {
		return params.File
	}
	q := u.Query()
	q.Set("authToken", params.Password)
	u.RawQuery = q.Encode()
	return u.String()
}

func checkDatabaseFile(params models.ConnectionParams) error {
	if params.File == models.MemoryDatabase || params.Create {
		return nil
	}
	if _, err := os.Stat(params.File); err != nil {
		return &ConnectionError{
			Kind:   ErrKindMissingFile,
			Engine: params.Kind,
			Target: params.File,
			Err:    err,
		}
	}
	return nil
}

func fileSchemaName(path string) string {
	if path == models.MemoryDatabase || path == "" {
		return "memory"
	}
	if IsRemoteSQLite(path) {
		if u, err := url.Parse(path); err == nil {
			return u.Host
		}
		return path
	}
	return filepath.Base(path)
}

func (s *sqliteEngine) Databases(ctx context.Context) (*models.ResultSet, error) {
	return s.query(ctx, `SELECT name AS "Database", file AS "File" FROM pragma_database_list ORDER BY seq`)
}

func (s *sqliteEngine) Tables(ctx context.Context) (*models.ResultSet, error) {
	return s.query(ctx, `
		SELECT name AS "Table", type AS "Type", 'sqlite' AS "Engine"
		FROM sqlite_master
		WHERE type IN ('table', 'view') AND name NOT LIKE 'sqlite_%'
		ORDER BY name`)
}

func (s *sqliteEngine) Describe(ctx context.Context, table string) (*models.ResultSet, error) {
	rs, err := s.query(ctx, `
		SELECT name AS "Column", type AS "Type",
		       CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END AS "Null",
		       dflt_value AS "Default", pk AS "Key"
		FROM pragma_table_info(?)
		ORDER BY cid`, table)
	if err != nil {
		return nil, err
	}
	if len(rs.Rows) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}
	return rs, nil
}

func (s *sqliteEngine) Columns(ctx context.Context, table string) ([]models.ColumnInfo, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT name, type, CASE WHEN "notnull" = 1 THEN 'NO' ELSE 'YES' END
		FROM pragma_table_info(?)
		ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to get table columns: %w", err)
	}
	return scanColumnInfo(rows)
}

func (s *sqliteEngine) TableExists(ctx context.Context, table string) (bool, error) {
	n, err := s.count(ctx, `
		SELECT COUNT(*) FROM sqlite_master
		WHERE type IN ('table', 'view') AND name = ?`, table)
	return n > 0, err
}

func (s *sqliteEngine) UseDatabase(context.Context, string) error {
	return fmt.Errorf("%w: a sqlite session is bound to %s; reconnect with -f to open another file",
		ErrUnsupported, fileSchemaName(s.path))
}

func (s *sqliteEngine) ColumnType(spec models.ColumnSpec) string {
	switch spec.Type {
	case models.ColumnTypeInteger:
		return "INTEGER"
	case models.ColumnTypeFloat:
		return "REAL"
	case models.ColumnTypeDate:
		if spec.HasTime {
			return "DATETIME"
		}
		return "DATE"
	}
	return "TEXT"
}

func (s *sqliteEngine) Version(ctx context.Context) (string, error) {
	return s.version(ctx, "SELECT sqlite_version()")
}
