package db

import (
	"context"
	"fmt"
	"time"

	"github.com/JayJamieson/db-cli/pkg/models"
)

// Analyze profiles every column of table with SQL aggregates: non-null,
// null and distinct counts plus min and max.
func Analyze(ctx context.Context, e Engine, table string) (*models.ResultSet, error) {
	startTime := time.Now()

	columns, err := e.Columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrTableNotFound, table)
	}

	qTable := e.QuoteIdent(table)

	var total int64
	if err := e.DB().QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qTable).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}

	rs := &models.ResultSet{
		Columns: []string{"Column", "Type", "Non-null", "Nulls", "Distinct", "Min", "Max"},
		Rows:    make([][]any, 0, len(columns)),
	}

	for _, col := range columns {
		qCol := e.QuoteIdent(col.Name)
		query := fmt.Sprintf("SELECT COUNT(%s), COUNT(DISTINCT %s), MIN(%s), MAX(%s) FROM %s",
			qCol, qCol, qCol, qCol, qTable)

		var (
			nonNull, distinct int64
			minVal, maxVal    any
		)
		if err := e.DB().QueryRowContext(ctx, query).Scan(&nonNull, &distinct, &minVal, &maxVal); err != nil {
			return nil, fmt.Errorf("failed to analyze column %s: %w", col.Name, err)
		}

		rs.Rows = append(rs.Rows, []any{
			col.Name, col.Type, nonNull, total - nonNull, distinct, bytesToString(minVal), bytesToString(maxVal),
		})
	}

	rs.Message = fmt.Sprintf("%d row(s) in %s", total, table)
	rs.Elapsed = time.Since(startTime)
	return rs, nil
}

func bytesToString(v any) any {
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return v
}
