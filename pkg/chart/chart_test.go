package chart

import (
	"context"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JayJamieson/db-cli/pkg/db"
	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/marcboeker/go-duckdb/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var engines = []models.EngineKind{models.EngineSQLite, models.EngineDuckDB}

func openEngine(t *testing.T, kind models.EngineKind) db.Engine {
	t.Helper()

	params := models.ConnectionParams{Kind: kind, File: models.MemoryDatabase}
	if kind == models.EngineSQLite {
		params.File = filepath.Join(t.TempDir(), "chart.db")
		params.Create = true
	}
	e, err := db.Open(context.Background(), params)
	require.NoError(t, err)
	t.Cleanup(func() { e.Close() })
	return e
}

func openSeeded(t *testing.T, kind models.EngineKind) db.Engine {
	t.Helper()
	ctx := context.Background()
	e := openEngine(t, kind)

	var b strings.Builder
	b.WriteString("INSERT INTO samples (day, region, amount, cost) VALUES ")
	for i := 0; i < 100; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		amount := fmt.Sprintf("%d.5", i)
		if i%20 == 0 {
			amount = "NULL"
		}
		fmt.Fprintf(&b, "('2024-01-%02d', 'r%d', %s, %d)", i%28+1, i%4, amount, i*2)
	}

	_, err := e.Execute(ctx, "CREATE TABLE samples (day TEXT, region TEXT, amount REAL, cost INTEGER)")
	require.NoError(t, err)
	_, err = e.Execute(ctx, b.String())
	require.NoError(t, err)
	return e
}

// forEachEngine runs fn against a seeded database of every file engine.
func forEachEngine(t *testing.T, fn func(t *testing.T, e db.Engine)) {
	t.Helper()
	for _, kind := range engines {
		t.Run(string(kind), func(t *testing.T) {
			t.Parallel()
			fn(t, openSeeded(t, kind))
		})
	}
}

func output(t *testing.T, name string) string {
	return filepath.Join(t.TempDir(), name)
}

func requireChartFile(t *testing.T, path string) {
	t.Helper()
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Positive(t, info.Size())
}

func TestMakeHistogramSkipsNulls(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, e db.Engine) {
		out := output(t, "hist.png")
		res, err := Make(context.Background(), e, models.ChartRequest{
			Kind:   models.ChartHist,
			SQL:    "SELECT amount FROM samples",
			Output: out,
		})
		require.NoError(t, err)

		assert.Equal(t, 95, res.Points)
		assert.Equal(t, 1, res.Series)
		assert.Equal(t, out, res.Output)
		requireChartFile(t, out)
	})
}

func TestMakeLineSeries(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, e db.Engine) {
		out := output(t, "line.svg")
		res, err := Make(context.Background(), e, models.ChartRequest{
			Kind:   models.ChartLine,
			SQL:    "SELECT cost, amount, cost * 2 FROM samples ORDER BY cost",
			Output: out,
			Title:  "cost",
		})
		require.NoError(t, err)

		assert.Equal(t, 2, res.Series)
		assert.Equal(t, 95+100, res.Points)
		requireChartFile(t, out)
	})
}

func TestMakeScatterWithDates(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, e db.Engine) {
		out := output(t, "scatter.png")
		res, err := Make(context.Background(), e, models.ChartRequest{
			Kind:   models.ChartScatter,
			SQL:    "SELECT day, cost FROM samples",
			Output: out,
		})
		require.NoError(t, err)
		assert.Equal(t, 100, res.Points)
		requireChartFile(t, out)
	})
}

func TestMakeBar(t *testing.T) {
	t.Parallel()
	forEachEngine(t, func(t *testing.T, e db.Engine) {
		out := output(t, "bar.pdf")
		res, err := Make(context.Background(), e, models.ChartRequest{
			Kind:   models.ChartBar,
			SQL:    "SELECT region, SUM(cost) FROM samples GROUP BY region ORDER BY region",
			Output: out,
		})
		require.NoError(t, err)
		assert.Equal(t, 4, res.Points)
		requireChartFile(t, out)
	})
}

func TestMakeBarDuckDBTypes(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	e := openEngine(t, models.EngineDuckDB)

	_, err := e.Execute(ctx, "CREATE TABLE sales (cat VARCHAR, amount INTEGER, qty SMALLINT, tiny TINYINT, units UINTEGER, price DECIMAL(10, 2))")
	require.NoError(t, err)
	_, err = e.Execute(ctx, "INSERT INTO sales VALUES ('a', 1, 2, 3, 4, 1.25), ('a', 5, 1, 1, 1, 2.50), ('b', 7, 3, 2, 9, 3.75)")
	require.NoError(t, err)

	tests := []struct {
		name string
		sql  string
	}{
		{"hugeint sum", "SELECT cat, SUM(amount) FROM sales GROUP BY cat ORDER BY cat"},
		{"smallint", "SELECT cat, qty FROM sales"},
		{"tinyint", "SELECT cat, tiny FROM sales"},
		{"unsigned", "SELECT cat, units FROM sales"},
		{"decimal", "SELECT cat, price FROM sales"},
		{"decimal sum", "SELECT cat, SUM(price) FROM sales GROUP BY cat"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := output(t, "bar.png")
			res, err := Make(ctx, e, models.ChartRequest{Kind: models.ChartBar, SQL: tt.sql, Output: out})
			require.NoError(t, err)
			assert.Positive(t, res.Points)
			requireChartFile(t, out)
		})
	}
}

func TestMakeDefaultOutput(t *testing.T) {
	t.Parallel()
	e := openSeeded(t, models.EngineSQLite)

	res, err := Make(context.Background(), e, models.ChartRequest{
		Kind: models.ChartHist,
		SQL:  "SELECT cost FROM samples",
	})
	require.NoError(t, err)
	t.Cleanup(func() { os.Remove(res.Output) })

	assert.Equal(t, os.TempDir(), filepath.Dir(res.Output))
	assert.True(t, strings.HasPrefix(filepath.Base(res.Output), "dbcli-chart-"))
	requireChartFile(t, res.Output)
}

func TestMakeErrors(t *testing.T) {
	t.Parallel()
	e := openSeeded(t, models.EngineSQLite)

	tests := []struct {
		name    string
		req     models.ChartRequest
		wantErr error
	}{
		{
			name:    "empty result",
			req:     models.ChartRequest{Kind: models.ChartHist, SQL: "SELECT amount FROM samples WHERE 1 = 0"},
			wantErr: ErrEmptyResult,
		},
		{
			name:    "bar needs two columns",
			req:     models.ChartRequest{Kind: models.ChartBar, SQL: "SELECT region FROM samples"},
			wantErr: ErrTooFewColumns,
		},
		{
			name:    "line needs two columns",
			req:     models.ChartRequest{Kind: models.ChartLine, SQL: "SELECT cost FROM samples"},
			wantErr: ErrTooFewColumns,
		},
		{
			name:    "non numeric",
			req:     models.ChartRequest{Kind: models.ChartHist, SQL: "SELECT region FROM samples"},
			wantErr: ErrNotNumeric,
		},
		{
			name:    "only nulls",
			req:     models.ChartRequest{Kind: models.ChartHist, SQL: "SELECT amount FROM samples WHERE amount IS NULL"},
			wantErr: ErrNoPoints,
		},
		{
			name:    "not a query",
			req:     models.ChartRequest{Kind: models.ChartHist, SQL: "UPDATE samples SET cost = cost"},
			wantErr: ErrNotQuery,
		},
		{
			name:    "unsupported format",
			req:     models.ChartRequest{Kind: models.ChartHist, SQL: "SELECT cost FROM samples", Output: "chart.gif"},
			wantErr: ErrUnsupportedFormat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			if req.Output == "" {
				req.Output = output(t, "out.png")
			}

			res, err := Make(context.Background(), e, req)
			assert.Nil(t, res)
			assert.ErrorIs(t, err, tt.wantErr)

			var ce *ChartError
			require.ErrorAs(t, err, &ce)
			assert.NotEmpty(t, ce.Hint())
			assert.NoFileExists(t, req.Output)
		})
	}
}

func TestToFloat(t *testing.T) {
	t.Parallel()

	f, isTime, err := toFloat("3.5")
	require.NoError(t, err)
	assert.Equal(t, 3.5, f)
	assert.False(t, isTime)

	_, isTime, err = toFloat("2024-01-02")
	require.NoError(t, err)
	assert.True(t, isTime)

	_, _, err = toFloat("abc")
	assert.ErrorIs(t, err, ErrNotNumeric)

	tests := []struct {
		name string
		in   any
		want float64
	}{
		{"int8", int8(-4), -4},
		{"int16", int16(300), 300},
		{"uint", uint(7), 7},
		{"uint8", uint8(200), 200},
		{"uint16", uint16(60000), 60000},
		{"uint32", uint32(70000), 70000},
		{"big int", big.NewInt(123456789), 123456789},
		{"decimal", duckdb.Decimal{Width: 10, Scale: 2, Value: big.NewInt(1234)}, 12.34},
		{"stringer", big.NewFloat(2.5), 2.5},
	}
	for _, tt := range tests {
		f, isTime, err := toFloat(tt.in)
		require.NoError(t, err, tt.name)
		assert.InDelta(t, tt.want, f, 1e-9, tt.name)
		assert.False(t, isTime, tt.name)
	}

	_, _, err = toFloat((*big.Int)(nil))
	assert.ErrorIs(t, err, ErrNotNumeric)
}
