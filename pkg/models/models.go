package models

import (
	"fmt"
	"strings"
	"time"
)

type EngineKind string

const (
	EngineMySQL      EngineKind = "mysql"
	EnginePostgreSQL EngineKind = "postgresql"
	EngineSQLite     EngineKind = "sqlite"
	EngineDuckDB     EngineKind = "duckdb"
)

// EngineKinds lists the supported engines in the order they are shown to users.
var EngineKinds = []EngineKind{EngineMySQL, EnginePostgreSQL, EngineSQLite, EngineDuckDB}

// ParseEngineKind accepts the canonical engine names plus a few common aliases.
func ParseEngineKind(s string) (EngineKind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "mysql", "mariadb":
		return EngineMySQL, nil
	case "postgresql", "postgres", "pg":
		return EnginePostgreSQL, nil
	case "sqlite", "sqlite3":
		return EngineSQLite, nil
	case "duckdb", "duck":
		return EngineDuckDB, nil
	}
	return "", fmt.Errorf("unsupported database type %q (expected mysql, postgresql, sqlite or duckdb)", s)
}

// FileBased reports whether the engine is opened from a local file rather than a server.
func (k EngineKind) FileBased() bool {
	return k == EngineSQLite || k == EngineDuckDB
}

const MemoryDatabase = ":memory:"

type ConnectionParams struct {
	Kind        EngineKind
	Host        string
	Port        int
	User        string
	Password    string
	Database    string
	File        string
	Create      bool
	SSLDisabled bool
	Charset     string
	Timeout     time.Duration
}

// WithDefaults fills in the per-engine defaults for unset fields.
func (p ConnectionParams) WithDefaults() ConnectionParams {
	switch p.Kind {
	case EngineMySQL:
		if p.Host == "" {
			p.Host = "localhost"
		}
		if p.Port == 0 {
			p.Port = 3306
		}
		if p.User == "" {
			p.User = "root"
		}
		if p.Charset == "" {
			p.Charset = "utf8mb4"
		}
	case EnginePostgreSQL:
		if p.Host == "" {
			p.Host = "localhost"
		}
		if p.Port == 0 {
			p.Port = 5432
		}
		if p.User == "" {
			p.User = "postgres"
		}
		if p.Database == "" {
			p.Database = "postgres"
		}
	case EngineSQLite, EngineDuckDB:
		if p.File == "" {
			p.File = MemoryDatabase
		}
	}
	if p.Timeout == 0 {
		p.Timeout = 30 * time.Second
	}
	return p
}

// Target describes where the connection points, without credentials.
func (p ConnectionParams) Target() string {
	if p.Kind.FileBased() {
		if p.File == MemoryDatabase || p.File == "" {
			return "in-memory"
		}
		return p.File
	}
	return fmt.Sprintf("%s:%d", p.Host, p.Port)
}

// ResultSet is the normalized outcome of one statement. Columns is nil for
// statements that do not return rows.
type ResultSet struct {
	Columns      []string
	Rows         [][]any
	RowsAffected int64
	Message      string
	Elapsed      time.Duration
}

func (rs *ResultSet) HasRows() bool {
	return rs != nil && rs.Columns != nil
}

type ColumnInfo struct {
	Name     string
	Type     string
	Nullable bool
}

type ColumnType string

const (
	ColumnTypeInteger ColumnType = "integer"
	ColumnTypeFloat   ColumnType = "float"
	ColumnTypeDate    ColumnType = "date"
	ColumnTypeText    ColumnType = "text"
)

type ColumnSpec struct {
	Name      string
	Type      ColumnType
	Nullable  bool
	HasTime   bool
	MaxLength int
	MaxAbsInt int64
}

type ImportJob struct {
	Source      string
	Table       string
	CreateTable bool
	ChunkSize   int
	SampleSize  int
	Delimiter   rune
	Mapping     map[string]string
}

type ImportResult struct {
	Table        string
	TableCreated bool
	RowsImported int64
	Chunks       int
	Elapsed      time.Duration
	RowsPerSec   float64
	Mapping      map[string]string
}

type FetchResult struct {
	Path        string
	Bytes       int64
	Elapsed     time.Duration
	BytesPerSec float64
	Method      string
}

type ChartKind string

const (
	ChartLine    ChartKind = "line"
	ChartBar     ChartKind = "bar"
	ChartScatter ChartKind = "scatter"
	ChartHist    ChartKind = "hist"
)

func ParseChartKind(s string) (ChartKind, error) {
	switch strings.ToLower(s) {
	case "line":
		return ChartLine, nil
	case "bar":
		return ChartBar, nil
	case "scatter":
		return ChartScatter, nil
	case "hist", "histogram":
		return ChartHist, nil
	}
	return "", fmt.Errorf("unknown chart kind %q (expected line, bar, scatter or hist)", s)
}

type ChartRequest struct {
	Kind   ChartKind
	SQL    string
	Output string
	Title  string
	XLabel string
	YLabel string
	Bins   int
	Width  float64
	Height float64
}

type ChartResult struct {
	Points int
	Series int
	Output string
}
