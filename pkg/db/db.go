package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/JayJamieson/db-cli/pkg/models"
)

var (
	ErrEmptyStatement    = errors.New("empty statement")
	ErrTableNotFound     = errors.New("table not found")
	ErrNoDatabase        = errors.New("no database selected")
	ErrUnsupported       = errors.New("not supported by this engine")
	ErrReconnectRequired = errors.New("switching database requires a new connection")
)

// Engine is one open connection to a backing database. Implementations wrap
// the official driver for each engine kind behind the same shape.
type Engine interface {
	Kind() models.EngineKind

	// Execute runs a raw statement. Row-returning statements produce a
	// ResultSet with Columns set; everything else reports rows affected.
	Execute(ctx context.Context, query string) (*models.ResultSet, error)

	Databases(ctx context.Context) (*models.ResultSet, error)
	Tables(ctx context.Context) (*models.ResultSet, error)
	Describe(ctx context.Context, table string) (*models.ResultSet, error)
	Columns(ctx context.Context, table string) ([]models.ColumnInfo, error)
	TableExists(ctx context.Context, table string) (bool, error)

	CurrentSchema() string
	UseDatabase(ctx context.Context, name string) error

	// ColumnType maps an inferred column to this engine's DDL type.
	ColumnType(spec models.ColumnSpec) string
	QuoteIdent(name string) string
	// Placeholder returns the bind marker for the n-th (1-based) parameter.
	Placeholder(n int) string

	Version(ctx context.Context) (string, error)
	Ping(ctx context.Context) error
	DB() *sql.DB
	Close() error
}

// Open connects to the engine described by params. Connection failures are
// returned as *ConnectionError.
func Open(ctx context.Context, params models.ConnectionParams) (Engine, error) {
	params = params.WithDefaults()

	var (
		e   Engine
		err error
	)
	switch params.Kind {
	case models.EngineMySQL:
		e, err = openMySQL(params)
	case models.EnginePostgreSQL:
		e, err = openPostgres(params)
	case models.EngineSQLite:
		e, err = openSQLite(params)
	case models.EngineDuckDB:
		e, err = openDuckDB(params)
	default:
		return nil, &ConnectionError{
			Kind:   ErrKindDriver,
			Engine: params.Kind,
			Err:    fmt.Errorf("unsupported database type %q", params.Kind),
		}
	}
	if err != nil {
		return nil, classify(params, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, params.Timeout)
	defer cancel()

	if err := e.Ping(pingCtx); err != nil {
		e.Close()
		return nil, classify(params, err)
	}

	return e, nil
}

// base carries the database/sql plumbing shared by every engine.
type base struct {
	kind   models.EngineKind
	conn   *sql.DB
	schema string

	// rowKeywords are the leading keywords of statements that return rows.
	rowKeywords []string
}

func newBase(kind models.EngineKind, conn *sql.DB, schema string, rowKeywords ...string) *base {
	// One connection per session keeps USE, temp tables and :memory:
	// databases bound to the statements that follow them.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	return &base{
		kind:        kind,
		conn:        conn,
		schema:      schema,
		rowKeywords: rowKeywords,
	}
}

func (b *base) Kind() models.EngineKind { return b.kind }

func (b *base) DB() *sql.DB { return b.conn }

func (b *base) CurrentSchema() string { return b.schema }

func (b *base) Ping(ctx context.Context) error { return b.conn.PingContext(ctx) }

func (b *base) Close() error { return b.conn.Close() }

func (b *base) QuoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (b *base) Placeholder(int) string { return "?" }

func (b *base) Execute(ctx context.Context, query string) (*models.ResultSet, error) {
	query = TrimStatement(query)
	if query == "" {
		return nil, ErrEmptyStatement
	}

	if b.returnsRows(query) {
		return b.query(ctx, query)
	}
	return b.exec(ctx, query)
}

func (b *base) returnsRows(query string) bool {
	kw := FirstKeyword(query)
	for _, k := range b.rowKeywords {
		if kw == k {
			return true
		}
	}
	return false
}

func (b *base) exec(ctx context.Context, query string, args ...any) (*models.ResultSet, error) {
	startTime := time.Now()

	res, err := b.conn.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		affected = 0
	}

	return &models.ResultSet{
		RowsAffected: affected,
		Message:      fmt.Sprintf("Query OK, %d row(s) affected", affected),
		Elapsed:      time.Since(startTime),
	}, nil
}

func (b *base) query(ctx context.Context, query string, args ...any) (*models.ResultSet, error) {
	startTime := time.Now()

	rows, err := b.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, data, err := scanRows(rows)
	if err != nil {
		return nil, err
	}

	return &models.ResultSet{
		Columns: columns,
		Rows:    data,
		Elapsed: time.Since(startTime),
	}, nil
}

func (b *base) scalar(ctx context.Context, query string, args ...any) (any, error) {
	var v any
	if err := b.conn.QueryRowContext(ctx, query, args...).Scan(&v); err != nil {
		return nil, err
	}
	if bs, ok := v.([]byte); ok {
		v = string(bs)
	}
	return v, nil
}

func (b *base) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := b.conn.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

func (b *base) version(ctx context.Context, query string) (string, error) {
	v, err := b.scalar(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to query server version: %w", err)
	}
	return fmt.Sprint(v), nil
}

// scanRows drains rows into a column list and a row matrix. Driver []byte
// values become strings; NULL stays nil.
func scanRows(rows *sql.Rows) ([]string, [][]any, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get columns: %w", err)
	}

	data := [][]any{}
	for rows.Next() {
		values := make([]any, len(columns))

		scanArgs := make([]any, len(columns))
		for i := range values {
			scanArgs[i] = &values[i]
		}

		if err := rows.Scan(scanArgs...); err != nil {
			return nil, nil, fmt.Errorf("failed to scan row: %w", err)
		}

		for i, val := range values {
			if b, ok := val.([]byte); ok {
				values[i] = string(b)
			}
		}
		data = append(data, values)
	}

	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return columns, data, nil
}

// TrimStatement strips surrounding whitespace and trailing semicolons.
func TrimStatement(query string) string {
	query = strings.TrimSpace(query)
	for strings.HasSuffix(query, ";") {
		query = strings.TrimSpace(strings.TrimSuffix(query, ";"))
	}
	return query
}

// FirstKeyword returns the upper-cased first word of a statement, skipping
// leading parentheses.
func FirstKeyword(query string) string {
	query = strings.TrimLeft(strings.TrimSpace(query), "(")
	end := strings.IndexFunc(query, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == '\r' || r == '(' || r == ';'
	})
	if end < 0 {
		end = len(query)
	}
	return strings.ToUpper(query[:end])
}
