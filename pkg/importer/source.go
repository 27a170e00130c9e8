package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// RecordReader streams the data rows of a tabular source after its header.
type RecordReader interface {
	Header() []string
	// Read returns the next record or io.EOF.
	Read() ([]string, error)
	// Line is the 1-based source line (or sheet row) of the last record read.
	Line() int
	Close() error
}

// OpenSource opens path as a record stream. XLSX files read their first
// sheet; everything else is delimited text, optionally compressed. A zero
// delimiter means comma, or tab for .tsv files.
func OpenSource(path string, delimiter rune) (RecordReader, error) {
	compression, inner := DetectCompression(path)

	switch strings.ToLower(filepath.Ext(inner)) {
	case ".xlsx", ".xlsm":
		if compression != CompressionNone {
			return nil, fmt.Errorf("%w: compressed spreadsheets are not supported", ErrInvalidSource)
		}
		return openXLSX(path)
	case ".tsv":
		if delimiter == 0 {
			delimiter = '\t'
		}
	}

	if delimiter == 0 {
		delimiter = ','
	}
	return openCSV(path, compression, delimiter)
}

type csvSource struct {
	file       *os.File
	closeInner func() error
	reader     *csv.Reader
	header     []string
	line       int
}

func openCSV(path string, compression Compression, delimiter rune) (*csvSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open source: %w", err)
	}

	r, closeInner, err := decompress(f, compression)
	if err != nil {
		f.Close()
		return nil, err
	}

	reader := csv.NewReader(r)
	reader.Comma = delimiter
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	src := &csvSource{file: f, closeInner: closeInner, reader: reader}

	header, err := reader.Read()
	if err != nil {
		src.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: %s has no header row", ErrInvalidSource, path)
		}
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	if len(header) > 0 {
		header[0] = strings.TrimPrefix(header[0], "\ufeff")
	}
	src.header = header
	src.line = 1

	return src, nil
}

func (s *csvSource) Header() []string { return s.header }

func (s *csvSource) Read() ([]string, error) {
	record, err := s.reader.Read()
	if err != nil {
		return nil, err
	}
	s.line, _ = s.reader.FieldPos(0)
	return record, nil
}

func (s *csvSource) Line() int { return s.line }

func (s *csvSource) Close() error {
	innerErr := s.closeInner()
	if err := s.file.Close(); err != nil {
		return err
	}
	return innerErr
}

type xlsxSource struct {
	file   *excelize.File
	rows   *excelize.Rows
	header []string
	line   int
}

func openXLSX(path string) (*xlsxSource, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet: %w", err)
	}

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		f.Close()
		return nil, fmt.Errorf("%w: %s has no sheets", ErrInvalidSource, path)
	}

	rows, err := f.Rows(sheets[0])
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to read sheet %s: %w", sheets[0], err)
	}

	src := &xlsxSource{file: f, rows: rows}

	if !rows.Next() {
		src.Close()
		return nil, fmt.Errorf("%w: sheet %s has no header row", ErrInvalidSource, sheets[0])
	}
	header, err := rows.Columns()
	if err != nil {
		src.Close()
		return nil, fmt.Errorf("failed to read header: %w", err)
	}
	src.header = header
	src.line = 1

	return src, nil
}

func (s *xlsxSource) Header() []string { return s.header }

func (s *xlsxSource) Read() ([]string, error) {
	if !s.rows.Next() {
		if err := s.rows.Error(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}
	s.line++
	return s.rows.Columns()
}

func (s *xlsxSource) Line() int { return s.line }

func (s *xlsxSource) Close() error {
	rowsErr := s.rows.Close()
	if err := s.file.Close(); err != nil {
		return err
	}
	return rowsErr
}
