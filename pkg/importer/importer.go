package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/JayJamieson/db-cli/pkg/db"
	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/labstack/gommon/log"
)

const (
	DefaultChunkSize  = 1000
	DefaultSampleSize = 100
)

// Progress is reported after every committed chunk.
type Progress struct {
	Chunk      int
	Rows       int64
	Elapsed    time.Duration
	RowsPerSec float64
}

type Importer struct {
	logger   *log.Logger
	progress func(Progress)
}

func New(logger *log.Logger, progress func(Progress)) *Importer {
	if progress == nil {
		progress = func(Progress) {}
	}
	return &Importer{logger: logger, progress: progress}
}

// target is one mapped column: where to read it in the source record and how
// to convert it for the table.
type target struct {
	index  int
	column string
	family family
}

// Import streams job.Source into job.Table in chunks of job.ChunkSize rows,
// each chunk in its own transaction. A failing chunk aborts the import; the
// chunks committed before it are kept and reported in the ImportError.
func (im *Importer) Import(ctx context.Context, e db.Engine, job models.ImportJob) (*models.ImportResult, error) {
	if job.ChunkSize <= 0 {
		job.ChunkSize = DefaultChunkSize
	}
	if job.SampleSize <= 0 {
		job.SampleSize = DefaultSampleSize
	}

	result := &models.ImportResult{Table: job.Table}
	fail := func(stage string, err error) (*models.ImportResult, error) {
		return result, &ImportError{
			Stage:  stage,
			Source: job.Source,
			Table:  job.Table,
			Result: result,
			Err:    err,
		}
	}

	src, err := OpenSource(job.Source, job.Delimiter)
	if err != nil {
		return fail("read", err)
	}
	defer src.Close()

	header, err := normalizeHeader(src.Header())
	if err != nil {
		return fail("read", err)
	}

	exists, err := e.TableExists(ctx, job.Table)
	if err != nil {
		return fail("inspect", fmt.Errorf("failed to check table: %w", err))
	}

	var sample [][]string
	if !exists {
		if !job.CreateTable {
			return fail("inspect", fmt.Errorf("%w: %s", ErrTableMissing, job.Table))
		}

		sample, err = readSample(src, job.SampleSize)
		if err != nil {
			return fail("read", err)
		}

		specs := InferColumns(header, sample)
		ddl := CreateTableSQL(e, job.Table, specs)
		im.logger.Debugf("creating table: %s", ddl)

		if _, err := e.DB().ExecContext(ctx, ddl); err != nil {
			return fail("create", fmt.Errorf("failed to create table: %w", err))
		}
		result.TableCreated = true
	}

	columns, err := e.Columns(ctx, job.Table)
	if err != nil {
		return fail("inspect", err)
	}

	targets, mapping, err := im.resolveTargets(header, columns, job.Mapping)
	if err != nil {
		return fail("mapping", err)
	}
	result.Mapping = mapping

	insertSQL := buildInsert(e, job.Table, targets)
	im.logger.Debugf("insert statement: %s", insertSQL)

	startTime := time.Now()
	batch := make([][]any, 0, job.ChunkSize)
	record := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := insertChunk(ctx, e, insertSQL, batch); err != nil {
			return err
		}

		result.RowsImported += int64(len(batch))
		result.Chunks++
		result.Elapsed = time.Since(startTime)
		result.RowsPerSec = rate(result.RowsImported, result.Elapsed)
		batch = batch[:0]

		im.progress(Progress{
			Chunk:      result.Chunks,
			Rows:       result.RowsImported,
			Elapsed:    result.Elapsed,
			RowsPerSec: result.RowsPerSec,
		})
		return nil
	}

	add := func(fields []string) error {
		record++
		row, err := convertRecord(fields, targets)
		if err != nil {
			return fmt.Errorf("record %d: %w", record, err)
		}
		batch = append(batch, row)
		if len(batch) >= job.ChunkSize {
			return flush()
		}
		return nil
	}

	for _, fields := range sample {
		if err := add(fields); err != nil {
			return fail("insert", err)
		}
	}

	for {
		fields, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fail("read", fmt.Errorf("failed to read line %d: %w", src.Line(), err))
		}
		if err := add(fields); err != nil {
			return fail("insert", err)
		}
	}

	if err := flush(); err != nil {
		return fail("insert", err)
	}

	result.Elapsed = time.Since(startTime)
	result.RowsPerSec = rate(result.RowsImported, result.Elapsed)
	return result, nil
}

func (im *Importer) resolveTargets(header []string, columns []models.ColumnInfo, explicit map[string]string) ([]target, map[string]string, error) {
	byName := make(map[string]models.ColumnInfo, len(columns))
	byFolded := make(map[string]models.ColumnInfo, len(columns))
	for _, col := range columns {
		byName[col.Name] = col
		byFolded[strings.ToLower(col.Name)] = col
	}
	lookup := func(name string) (models.ColumnInfo, bool) {
		if col, ok := byName[name]; ok {
			return col, true
		}
		col, ok := byFolded[strings.ToLower(name)]
		return col, ok
	}

	mapping := explicit
	if mapping == nil {
		var unmapped []string
		mapping, unmapped = AutoMap(header, columns)
		if len(unmapped) > 0 {
			im.logger.Warnf("skipping source columns with no matching table column: %s", strings.Join(unmapped, ", "))
		}
	}

	var targets []target
	resolved := make(map[string]string, len(mapping))
	for i, name := range header {
		tableCol, ok := mapping[name]
		if !ok {
			continue
		}
		col, ok := lookup(tableCol)
		if !ok {
			im.logger.Warnf("mapping %s -> %s ignored: no such table column", name, tableCol)
			continue
		}
		targets = append(targets, target{index: i, column: col.Name, family: familyOf(col.Type)})
		resolved[name] = col.Name
	}

	if len(targets) == 0 {
		return nil, nil, ErrNoOverlap
	}
	return targets, resolved, nil
}

func readSample(src RecordReader, n int) ([][]string, error) {
	sample := make([][]string, 0, n)
	for len(sample) < n {
		record, err := src.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read line %d: %w", src.Line(), err)
		}
		sample = append(sample, record)
	}
	return sample, nil
}

func insertChunk(ctx context.Context, e db.Engine, insertSQL string, rows [][]any) (err error) {
	tx, err := e.DB().BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	stmt, err := tx.PrepareContext(ctx, insertSQL)
	if err != nil {
		return fmt.Errorf("failed to prepare insert statement: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		if _, err = stmt.ExecContext(ctx, row...); err != nil {
			return fmt.Errorf("failed to insert data: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit chunk: %w", err)
	}
	return nil
}

// CreateTableSQL builds the DDL for specs using the engine's type mapping.
func CreateTableSQL(e db.Engine, table string, specs []models.ColumnSpec) string {
	defs := make([]string, len(specs))
	for i, spec := range specs {
		defs[i] = e.QuoteIdent(spec.Name) + " " + e.ColumnType(spec)
	}
	return fmt.Sprintf("CREATE TABLE %s (\n  %s\n)", e.QuoteIdent(table), strings.Join(defs, ",\n  "))
}

func buildInsert(e db.Engine, table string, targets []target) string {
	cols := make([]string, len(targets))
	marks := make([]string, len(targets))
	for i, t := range targets {
		cols[i] = e.QuoteIdent(t.column)
		marks[i] = e.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		e.QuoteIdent(table), strings.Join(cols, ", "), strings.Join(marks, ", "))
}

func rate(rows int64, elapsed time.Duration) float64 {
	if elapsed <= 0 {
		return 0
	}
	return float64(rows) / elapsed.Seconds()
}

type family int

const (
	familyText family = iota
	familyInteger
	familyFloat
	familyBool
	familyDate
)

// familyOf buckets a declared column type by what values it accepts.
func familyOf(declared string) family {
	t := strings.ToUpper(declared)
	switch {
	case strings.Contains(t, "CHAR"), strings.Contains(t, "TEXT"), strings.Contains(t, "CLOB"),
		strings.Contains(t, "POINT"), strings.Contains(t, "INTERVAL"):
		return familyText
	case strings.Contains(t, "INT"):
		return familyInteger
	case strings.Contains(t, "REAL"), strings.Contains(t, "FLOA"), strings.Contains(t, "DOUB"),
		strings.Contains(t, "DEC"), strings.Contains(t, "NUMERIC"):
		return familyFloat
	case strings.Contains(t, "BOOL"):
		return familyBool
	case strings.Contains(t, "DATE"), strings.Contains(t, "TIME"):
		return familyDate
	}
	return familyText
}

func convertRecord(record []string, targets []target) ([]any, error) {
	row := make([]any, len(targets))
	for i, t := range targets {
		var raw string
		if t.index < len(record) {
			raw = record[t.index]
		}
		v, err := convertValue(raw, t.family)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", t.column, err)
		}
		row[i] = v
	}
	return row, nil
}

func convertValue(raw string, f family) (any, error) {
	value := strings.TrimSpace(raw)
	if isNull(value) {
		return nil, nil
	}

	switch f {
	case familyInteger:
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			return n, nil
		}
		if x, err := strconv.ParseFloat(value, 64); err == nil && x == math.Trunc(x) {
			return int64(x), nil
		}
		return nil, fmt.Errorf("%w: %q is not an integer", ErrTypeMismatch, value)

	case familyFloat:
		x, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return nil, fmt.Errorf("%w: %q is not a number", ErrTypeMismatch, value)
		}
		return x, nil

	case familyBool:
		switch strings.ToLower(value) {
		case "1", "t", "true", "y", "yes":
			return true, nil
		case "0", "f", "false", "n", "no":
			return false, nil
		}
		return nil, fmt.Errorf("%w: %q is not a boolean", ErrTypeMismatch, value)

	case familyDate:
		t, hasTime, ok := parseDate(value)
		if !ok {
			return value, nil
		}
		if hasTime {
			return t.Format("2006-01-02 15:04:05"), nil
		}
		return t.Format("2006-01-02"), nil
	}

	return value, nil
}
