package render

import (
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"time"

	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/marcboeker/go-duckdb/v2"
	"github.com/mattn/go-runewidth"
)

// NullText is shown for SQL NULL.
const NullText = "NULL"

const timeLayout = "2006-01-02 15:04:05"

// Format turns a scanned value into its display text.
func Format(v any) string {
	switch val := v.(type) {
	case nil:
		return NullText
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		if val.Hour() == 0 && val.Minute() == 0 && val.Second() == 0 && val.Nanosecond() == 0 {
			return val.Format("2006-01-02")
		}
		return val.Format(timeLayout)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		if val {
			return "1"
		}
		return "0"
	case duckdb.Decimal:
		if val.Value == nil {
			return NullText
		}
		return val.String()
	case fmt.Stringer:
		return val.String()
	}
	return fmt.Sprint(v)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64,
		*big.Int, duckdb.Decimal:
		return true
	}
	return false
}

// Table renders rows as a grid:
//
//	+----+-------+
//	| id | name  |
//	+----+-------+
//	|  1 | ada   |
//	+----+-------+
func Table(columns []string, rows [][]any) string {
	widths := make([]int, len(columns))
	for i, col := range columns {
		widths[i] = runewidth.StringWidth(col)
	}

	cells := make([][]string, len(rows))
	for r, row := range rows {
		cells[r] = make([]string, len(columns))
		for i := range columns {
			var v any
			if i < len(row) {
				v = row[i]
			}
			text := cleanCell(Format(v))
			cells[r][i] = text
			if w := runewidth.StringWidth(text); w > widths[i] {
				widths[i] = w
			}
		}
	}

	var b strings.Builder
	border := separator(widths)

	b.WriteString(border)
	writeRow(&b, columns, widths, nil)
	b.WriteString(border)
	for r, row := range cells {
		writeRow(&b, row, widths, rows[r])
	}
	if len(rows) > 0 {
		b.WriteString(border)
	}
	return b.String()
}

func separator(widths []int) string {
	var b strings.Builder
	b.WriteByte('+')
	for _, w := range widths {
		b.WriteString(strings.Repeat("-", w+2))
		b.WriteByte('+')
	}
	b.WriteByte('\n')
	return b.String()
}

// writeRow right-aligns cells whose source value is numeric.
func writeRow(b *strings.Builder, cells []string, widths []int, values []any) {
	b.WriteByte('|')
	for i, text := range cells {
		pad := strings.Repeat(" ", widths[i]-runewidth.StringWidth(text))
		b.WriteByte(' ')
		if i < len(values) && isNumber(values[i]) {
			b.WriteString(pad + text)
		} else {
			b.WriteString(text + pad)
		}
		b.WriteString(" |")
	}
	b.WriteByte('\n')
}

// cleanCell keeps multi-line values on one grid line.
func cleanCell(s string) string {
	if !strings.ContainsAny(s, "\r\n\t") {
		return s
	}
	return strings.NewReplacer("\r\n", `\n`, "\n", `\n`, "\r", `\r`, "\t", `\t`).Replace(s)
}

// Raw renders a header line and one tab-separated line per row.
func Raw(columns []string, rows [][]any) string {
	var b strings.Builder
	b.WriteString(strings.Join(columns, "\t"))
	b.WriteByte('\n')
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(cleanCell(Format(v)))
		}
		b.WriteByte('\n')
	}
	return b.String()
}

// Summary is the status line printed after a statement.
func Summary(rs *models.ResultSet) string {
	if rs == nil {
		return ""
	}
	secs := rs.Elapsed.Seconds()

	if !rs.HasRows() {
		msg := rs.Message
		if msg == "" {
			msg = fmt.Sprintf("Query OK, %d row(s) affected", rs.RowsAffected)
		}
		return fmt.Sprintf("%s (%.2f sec)", msg, secs)
	}

	if len(rs.Rows) == 0 {
		return fmt.Sprintf("Empty set (%.2f sec)", secs)
	}
	msg := fmt.Sprintf("%d row(s) in set", len(rs.Rows))
	if rs.Message != "" {
		msg = rs.Message
	}
	return fmt.Sprintf("%s (%.2f sec)", msg, secs)
}

// Result renders a full statement result: the table (or raw lines) followed
// by the summary line. Raw mode omits the summary.
func Result(rs *models.ResultSet, raw bool) string {
	if rs == nil {
		return ""
	}
	if raw {
		if rs.HasRows() {
			return Raw(rs.Columns, rs.Rows)
		}
		return ""
	}

	var b strings.Builder
	if rs.HasRows() && len(rs.Rows) > 0 {
		b.WriteString(Table(rs.Columns, rs.Rows))
	}
	b.WriteString(Summary(rs))
	b.WriteByte('\n')
	return b.String()
}
