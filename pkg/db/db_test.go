package db

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/go-sql-driver/mysql"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestSQLite(t *testing.T) Engine {
	t.Helper()

	e, err := Open(context.Background(), models.ConnectionParams{
		Kind:   models.EngineSQLite,
		File:   filepath.Join(t.TempDir(), "test.db"),
		Create: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func openTestDuckDB(t *testing.T) Engine {
	t.Helper()

	e, err := Open(context.Background(), models.ConnectionParams{
		Kind: models.EngineDuckDB,
		File: models.MemoryDatabase,
	})
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func TestFirstKeyword(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query string
		want  string
	}{
		{"select 1", "SELECT"},
		{"  WITH x AS (SELECT 1) SELECT * FROM x", "WITH"},
		{"(SELECT 1) UNION (SELECT 2)", "SELECT"},
		{"insert into t values (1)", "INSERT"},
		{"pragma table_info(t)", "PRAGMA"},
		{"use;", "USE"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, FirstKeyword(tt.query))
		})
	}
}

func TestTrimStatement(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "SELECT 1", TrimStatement("  SELECT 1;;  "))
	assert.Equal(t, "", TrimStatement(" ; "))
}

func TestSQLiteExecute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := openTestSQLite(t)

	rs, err := e.Execute(ctx, "CREATE TABLE people (id INTEGER, name TEXT);")
	require.NoError(t, err)
	assert.False(t, rs.HasRows())

	rs, err = e.Execute(ctx, "INSERT INTO people VALUES (1, 'ada'), (2, NULL)")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rs.RowsAffected)
	assert.Equal(t, "Query OK, 2 row(s) affected", rs.Message)

	rs, err = e.Execute(ctx, "SELECT id, name FROM people ORDER BY id")
	require.NoError(t, err)
	require.True(t, rs.HasRows())
	assert.Equal(t, []string{"id", "name"}, rs.Columns)
	require.Len(t, rs.Rows, 2)
	assert.Equal(t, "ada", rs.Rows[0][1])
	assert.Nil(t, rs.Rows[1][1])

	_, err = e.Execute(ctx, "  ;")
	assert.ErrorIs(t, err, ErrEmptyStatement)
}

func TestSQLiteMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := openTestSQLite(t)

	_, err := e.Execute(ctx, `CREATE TABLE "Orders" (id INTEGER NOT NULL, total REAL, placed DATE)`)
	require.NoError(t, err)

	exists, err := e.TableExists(ctx, "Orders")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = e.TableExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	cols, err := e.Columns(ctx, "Orders")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, models.ColumnInfo{Name: "id", Type: "INTEGER", Nullable: false}, cols[0])
	assert.Equal(t, "REAL", cols[1].Type)
	assert.True(t, cols[2].Nullable)

	tables, err := e.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables.Rows, 1)
	assert.Equal(t, "Orders", tables.Rows[0][0])

	desc, err := e.Describe(ctx, "Orders")
	require.NoError(t, err)
	assert.Len(t, desc.Rows, 3)

	_, err = e.Describe(ctx, "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)

	assert.Equal(t, "test.db", e.CurrentSchema())

	version, err := e.Version(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestSQLiteUseDatabaseUnsupported(t *testing.T) {
	t.Parallel()
	e := openTestSQLite(t)

	err := e.UseDatabase(context.Background(), "other")
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestDuckDBExecute(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := openTestDuckDB(t)

	rs, err := e.Execute(ctx, "CREATE TABLE people (id INTEGER, name VARCHAR);")
	require.NoError(t, err)
	assert.False(t, rs.HasRows())

	rs, err = e.Execute(ctx, "INSERT INTO people VALUES (1, 'ada'), (2, NULL)")
	require.NoError(t, err)
	assert.Equal(t, int64(2), rs.RowsAffected)
	assert.Equal(t, "Query OK, 2 row(s) affected", rs.Message)

	for _, query := range []string{"SELECT id, name FROM people ORDER BY id", "FROM people ORDER BY id"} {
		rs, err = e.Execute(ctx, query)
		require.NoError(t, err, query)
		require.True(t, rs.HasRows(), query)
		assert.Equal(t, []string{"id", "name"}, rs.Columns, query)
		require.Len(t, rs.Rows, 2, query)
		assert.EqualValues(t, 1, rs.Rows[0][0], query)
		assert.Equal(t, "ada", rs.Rows[0][1], query)
		assert.Nil(t, rs.Rows[1][1], query)
	}

	rs, err = e.Execute(ctx, "SUMMARIZE people")
	require.NoError(t, err)
	assert.True(t, rs.HasRows())

	_, err = e.Execute(ctx, "SELECT * FROM missing")
	assert.Error(t, err)
}

func TestDuckDBMetadata(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := openTestDuckDB(t)

	_, err := e.Execute(ctx, `CREATE TABLE "Orders" (id INTEGER NOT NULL, total DOUBLE, placed DATE)`)
	require.NoError(t, err)

	exists, err := e.TableExists(ctx, "Orders")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = e.TableExists(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, exists)

	cols, err := e.Columns(ctx, "Orders")
	require.NoError(t, err)
	require.Len(t, cols, 3)
	assert.Equal(t, models.ColumnInfo{Name: "id", Type: "INTEGER", Nullable: false}, cols[0])
	assert.Equal(t, "DOUBLE", cols[1].Type)
	assert.True(t, cols[2].Nullable)

	tables, err := e.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables.Rows, 1)
	assert.Equal(t, "Orders", tables.Rows[0][0])

	desc, err := e.Describe(ctx, "Orders")
	require.NoError(t, err)
	assert.Len(t, desc.Rows, 3)

	_, err = e.Describe(ctx, "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)

	assert.Equal(t, "memory", e.CurrentSchema())

	version, err := e.Version(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, version)
}

func TestDuckDBUseDatabase(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := openTestDuckDB(t)

	other := filepath.Join(t.TempDir(), "other.duckdb")
	_, err := e.Execute(ctx, "ATTACH '"+other+"' AS other")
	require.NoError(t, err)

	require.NoError(t, e.UseDatabase(ctx, "other"))
	assert.Equal(t, "other", e.CurrentSchema())

	_, err = e.Execute(ctx, "CREATE TABLE attached_only (id INTEGER)")
	require.NoError(t, err)
	exists, err := e.TableExists(ctx, "attached_only")
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, e.UseDatabase(ctx, "memory"))
	exists, err = e.TableExists(ctx, "attached_only")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.Error(t, e.UseDatabase(ctx, "nope"))
	assert.Equal(t, "memory", e.CurrentSchema())
}

func TestDuckDBAnalyze(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := openTestDuckDB(t)

	_, err := e.Execute(ctx, "CREATE TABLE scores (name VARCHAR, score INTEGER)")
	require.NoError(t, err)
	_, err = e.Execute(ctx, "INSERT INTO scores VALUES ('a', 3), ('b', NULL), ('a', 7)")
	require.NoError(t, err)

	rs, err := Analyze(ctx, e, "scores")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)

	score := rs.Rows[1]
	assert.Equal(t, "score", score[0])
	assert.Equal(t, int64(2), score[2])
	assert.Equal(t, int64(1), score[3])
	assert.EqualValues(t, 3, score[5])
	assert.EqualValues(t, 7, score[6])
	assert.Equal(t, "3 row(s) in scores", rs.Message)
}

func TestMySQLTableNotFound(t *testing.T) {
	t.Parallel()

	err := tableNotFound(&mysql.MySQLError{Number: 1146, Message: "Table 'shop.nope' doesn't exist"}, "nope")
	assert.ErrorIs(t, err, ErrTableNotFound)
	assert.Contains(t, err.Error(), "nope")

	other := &mysql.MySQLError{Number: 1064, Message: "syntax"}
	assert.Same(t, other, tableNotFound(other, "t"))
	assert.NoError(t, tableNotFound(nil, "t"))
}

func TestOpenMissingFile(t *testing.T) {
	t.Parallel()

	for _, kind := range []models.EngineKind{models.EngineSQLite, models.EngineDuckDB} {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "nope.db")
			_, err := Open(context.Background(), models.ConnectionParams{Kind: kind, File: path})

			var connErr *ConnectionError
			require.ErrorAs(t, err, &connErr)
			assert.Equal(t, ErrKindMissingFile, connErr.Kind)
			assert.Contains(t, connErr.Hint(), "--create")
			assert.ErrorIs(t, err, os.ErrNotExist)
		})
	}
}

func TestOpenUnsupportedEngine(t *testing.T) {
	t.Parallel()

	_, err := Open(context.Background(), models.ConnectionParams{Kind: "oracle"})
	var connErr *ConnectionError
	require.ErrorAs(t, err, &connErr)
	assert.Equal(t, ErrKindDriver, connErr.Kind)
}

func TestClassify(t *testing.T) {
	t.Parallel()

	params := models.ConnectionParams{Kind: models.EngineMySQL, Host: "db", Port: 3306}

	tests := []struct {
		name string
		err  error
		want ErrKind
	}{
		{"mysql access denied", &mysql.MySQLError{Number: 1045, Message: "Access denied"}, ErrKindAuth},
		{"mysql unknown database", &mysql.MySQLError{Number: 1049, Message: "Unknown database"}, ErrKindUnknownDatabase},
		{"pq password", &pq.Error{Code: "28P01"}, ErrKindAuth},
		{"pq missing database", &pq.Error{Code: "3D000"}, ErrKindUnknownDatabase},
		{"missing file", os.ErrNotExist, ErrKindMissingFile},
		{"other", errors.New("boom"), ErrKindDriver},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var connErr *ConnectionError
			require.ErrorAs(t, classify(params, tt.err), &connErr)
			assert.Equal(t, tt.want, connErr.Kind)
			assert.Equal(t, "db:3306", connErr.Target)
			assert.NotEmpty(t, connErr.Hint())
		})
	}
}

func TestColumnTypes(t *testing.T) {
	t.Parallel()

	bigInt := models.ColumnSpec{Type: models.ColumnTypeInteger, MaxAbsInt: 1 << 40}
	stamp := models.ColumnSpec{Type: models.ColumnTypeDate, HasTime: true}
	longText := models.ColumnSpec{Type: models.ColumnTypeText, MaxLength: 4000}

	my := &mysqlEngine{}
	assert.Equal(t, "BIGINT", my.ColumnType(bigInt))
	assert.Equal(t, "DATETIME", my.ColumnType(stamp))
	assert.Equal(t, "TEXT", my.ColumnType(longText))
	assert.Equal(t, "VARCHAR(255)", my.ColumnType(models.ColumnSpec{Type: models.ColumnTypeText, MaxLength: 10}))

	pg := &postgresEngine{}
	assert.Equal(t, "TIMESTAMP", pg.ColumnType(stamp))
	assert.Equal(t, "DOUBLE PRECISION", pg.ColumnType(models.ColumnSpec{Type: models.ColumnTypeFloat}))
	assert.Equal(t, "$3", pg.Placeholder(3))

	duck := &duckdbEngine{}
	assert.Equal(t, "VARCHAR", duck.ColumnType(longText))
}

func TestQuoteIdent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "`we``ird`", (&mysqlEngine{}).QuoteIdent("we`ird"))
	assert.Equal(t, `"we""ird"`, (&sqliteEngine{base: &base{}}).QuoteIdent(`we"ird`))
}

func TestPostgresDSN(t *testing.T) {
	t.Parallel()

	dsn := postgresDSN(models.ConnectionParams{
		Kind:     models.EnginePostgreSQL,
		Host:     "db.internal",
		Port:     5432,
		User:     "app",
		Password: "it's",
		Database: "shop",
	}.WithDefaults())

	assert.Contains(t, dsn, "host='db.internal'")
	assert.Contains(t, dsn, `password='it\'s'`)
	assert.Contains(t, dsn, "sslmode=require")

	local := postgresDSN(models.ConnectionParams{Kind: models.EnginePostgreSQL}.WithDefaults())
	assert.Contains(t, local, "sslmode=disable")
	assert.Contains(t, local, "dbname='postgres'")
}

func TestAnalyze(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := openTestSQLite(t)

	_, err := e.Execute(ctx, "CREATE TABLE scores (name TEXT, score INTEGER)")
	require.NoError(t, err)
	_, err = e.Execute(ctx, "INSERT INTO scores VALUES ('a', 3), ('b', NULL), ('a', 7)")
	require.NoError(t, err)

	rs, err := Analyze(ctx, e, "scores")
	require.NoError(t, err)
	require.Len(t, rs.Rows, 2)

	score := rs.Rows[1]
	assert.Equal(t, "score", score[0])
	assert.Equal(t, int64(2), score[2])
	assert.Equal(t, int64(1), score[3])
	assert.Equal(t, int64(2), score[4])
	assert.Equal(t, int64(3), score[5])
	assert.Equal(t, int64(7), score[6])

	name := rs.Rows[0]
	assert.Equal(t, int64(2), name[4])

	_, err = Analyze(ctx, e, "missing")
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestSessionUseOnSQLite(t *testing.T) {
	t.Parallel()

	s, err := NewSession(context.Background(), models.ConnectionParams{Kind: models.EngineSQLite})
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, "memory", s.Engine.CurrentSchema())
	assert.ErrorIs(t, s.Use(context.Background(), "x"), ErrUnsupported)
}
