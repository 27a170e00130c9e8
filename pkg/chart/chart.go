package chart

import (
	"context"
	"fmt"
	"math/big"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/JayJamieson/db-cli/pkg/db"
	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/JayJamieson/db-cli/pkg/render"
	"github.com/JayJamieson/db-cli/pkg/utils"
	"github.com/marcboeker/go-duckdb/v2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

const (
	DefaultBins   = 10
	DefaultWidth  = 16.0
	DefaultHeight = 10.0
)

var formats = map[string]bool{
	".png":  true,
	".svg":  true,
	".pdf":  true,
	".jpg":  true,
	".jpeg": true,
}

// Make runs req.SQL on e and writes the chart to req.Output, or to a
// timestamped PNG in the temp directory when no output is given.
func Make(ctx context.Context, e db.Engine, req models.ChartRequest) (*models.ChartResult, error) {
	req = withDefaults(req)
	fail := func(err error) (*models.ChartResult, error) {
		return nil, &ChartError{Kind: req.Kind, Err: err}
	}

	if ext := strings.ToLower(filepath.Ext(req.Output)); !formats[ext] {
		return fail(fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext))
	}

	rs, err := e.Execute(ctx, req.SQL)
	if err != nil {
		return fail(fmt.Errorf("failed to run chart query: %w", err))
	}
	if !rs.HasRows() {
		return fail(ErrNotQuery)
	}

	p, result, err := Build(rs, req)
	if err != nil {
		return fail(err)
	}

	if err := p.Save(vg.Length(req.Width)*vg.Centimeter, vg.Length(req.Height)*vg.Centimeter, req.Output); err != nil {
		return fail(fmt.Errorf("failed to write %s: %w", req.Output, err))
	}

	result.Output = req.Output
	return result, nil
}

func withDefaults(req models.ChartRequest) models.ChartRequest {
	if req.Bins <= 0 {
		req.Bins = DefaultBins
	}
	if req.Width <= 0 {
		req.Width = DefaultWidth
	}
	if req.Height <= 0 {
		req.Height = DefaultHeight
	}
	if req.Output == "" {
		req.Output = utils.TempPath("dbcli-chart", ".png")
	}
	return req
}

// Build lays out rs as a plot of the requested kind.
func Build(rs *models.ResultSet, req models.ChartRequest) (*plot.Plot, *models.ChartResult, error) {
	if len(rs.Rows) == 0 {
		return nil, nil, ErrEmptyResult
	}

	minColumns := 2
	if req.Kind == models.ChartHist {
		minColumns = 1
	}
	if len(rs.Columns) < minColumns {
		return nil, nil, fmt.Errorf("%w: need %d, got %d", ErrTooFewColumns, minColumns, len(rs.Columns))
	}

	p := plot.New()
	p.Title.Text = req.Title
	p.X.Label.Text = label(req.XLabel, rs.Columns[0])
	if len(rs.Columns) == 2 {
		p.Y.Label.Text = label(req.YLabel, rs.Columns[1])
	} else {
		p.Y.Label.Text = req.YLabel
	}
	p.Add(plotter.NewGrid())

	var (
		result *models.ChartResult
		err    error
	)
	switch req.Kind {
	case models.ChartLine, models.ChartScatter:
		result, err = addSeries(p, rs, req.Kind)
	case models.ChartBar:
		result, err = addBars(p, rs)
	case models.ChartHist:
		if req.YLabel == "" {
			p.Y.Label.Text = "count"
		}
		result, err = addHistogram(p, rs, req.Bins)
	default:
		err = fmt.Errorf("unknown chart kind %q", req.Kind)
	}
	if err != nil {
		return nil, nil, err
	}
	return p, result, nil
}

func label(explicit, fallback string) string {
	if explicit != "" {
		return explicit
	}
	return fallback
}

// addSeries plots column 0 against every further column. Rows with a NULL
// in either coordinate are skipped.
func addSeries(p *plot.Plot, rs *models.ResultSet, kind models.ChartKind) (*models.ChartResult, error) {
	result := &models.ChartResult{}
	timeAxis := false

	for col := 1; col < len(rs.Columns); col++ {
		xys := make(plotter.XYs, 0, len(rs.Rows))
		for r, row := range rs.Rows {
			if row[0] == nil || row[col] == nil {
				continue
			}
			x, isTime, err := toFloat(row[0])
			if err != nil {
				return nil, valueError(rs.Columns[0], r, err)
			}
			timeAxis = timeAxis || isTime
			y, _, err := toFloat(row[col])
			if err != nil {
				return nil, valueError(rs.Columns[col], r, err)
			}
			xys = append(xys, plotter.XY{X: x, Y: y})
		}
		if len(xys) == 0 {
			continue
		}

		color := plotutil.Color(col - 1)
		if kind == models.ChartScatter {
			s, err := plotter.NewScatter(xys)
			if err != nil {
				return nil, fmt.Errorf("failed to build scatter: %w", err)
			}
			s.GlyphStyle.Color = color
			s.GlyphStyle.Shape = plotutil.Shape(col - 1)
			p.Add(s)
			p.Legend.Add(rs.Columns[col], s)
		} else {
			l, err := plotter.NewLine(xys)
			if err != nil {
				return nil, fmt.Errorf("failed to build line: %w", err)
			}
			l.LineStyle.Color = color
			l.LineStyle.Width = vg.Points(1.5)
			p.Add(l)
			p.Legend.Add(rs.Columns[col], l)
		}

		result.Series++
		result.Points += len(xys)
	}

	if result.Points == 0 {
		return nil, ErrNoPoints
	}
	if timeAxis {
		p.X.Tick.Marker = plot.TimeTicks{Format: "2006-01-02"}
	}
	if result.Series == 1 {
		p.Legend = plot.NewLegend()
	}
	return result, nil
}

// addBars plots column 1 per category label in column 0.
func addBars(p *plot.Plot, rs *models.ResultSet) (*models.ChartResult, error) {
	values := make(plotter.Values, 0, len(rs.Rows))
	labels := make([]string, 0, len(rs.Rows))

	for r, row := range rs.Rows {
		if row[1] == nil {
			continue
		}
		v, _, err := toFloat(row[1])
		if err != nil {
			return nil, valueError(rs.Columns[1], r, err)
		}
		values = append(values, v)
		labels = append(labels, render.Format(row[0]))
	}
	if len(values) == 0 {
		return nil, ErrNoPoints
	}

	bars, err := plotter.NewBarChart(values, vg.Points(20))
	if err != nil {
		return nil, fmt.Errorf("failed to build bar chart: %w", err)
	}
	bars.Color = plotutil.Color(0)
	bars.LineStyle.Width = vg.Length(0)
	p.Add(bars)
	p.NominalX(labels...)

	return &models.ChartResult{Points: len(values), Series: 1}, nil
}

// addHistogram bins column 0, skipping NULLs.
func addHistogram(p *plot.Plot, rs *models.ResultSet, bins int) (*models.ChartResult, error) {
	values := make(plotter.Values, 0, len(rs.Rows))
	for r, row := range rs.Rows {
		if row[0] == nil {
			continue
		}
		v, _, err := toFloat(row[0])
		if err != nil {
			return nil, valueError(rs.Columns[0], r, err)
		}
		values = append(values, v)
	}
	if len(values) == 0 {
		return nil, ErrNoPoints
	}

	h, err := plotter.NewHist(values, bins)
	if err != nil {
		return nil, fmt.Errorf("failed to build histogram: %w", err)
	}
	h.FillColor = plotutil.Color(0)
	p.Add(h)

	return &models.ChartResult{Points: len(values), Series: 1}, nil
}

func valueError(column string, row int, err error) error {
	return fmt.Errorf("column %s, row %d: %w", column, row+1, err)
}

// toFloat converts a scanned value to a coordinate. Times become Unix
// seconds and report isTime.
func toFloat(v any) (f float64, isTime bool, err error) {
	switch val := v.(type) {
	case int:
		return float64(val), false, nil
	case int8:
		return float64(val), false, nil
	case int16:
		return float64(val), false, nil
	case int32:
		return float64(val), false, nil
	case int64:
		return float64(val), false, nil
	case uint:
		return float64(val), false, nil
	case uint8:
		return float64(val), false, nil
	case uint16:
		return float64(val), false, nil
	case uint32:
		return float64(val), false, nil
	case uint64:
		return float64(val), false, nil
	case *big.Int:
		if val == nil {
			break
		}
		f, _ := new(big.Float).SetInt(val).Float64()
		return f, false, nil
	case duckdb.Decimal:
		if val.Value == nil {
			break
		}
		return val.Float64(), false, nil
	case float32:
		return float64(val), false, nil
	case float64:
		return val, false, nil
	case bool:
		if val {
			return 1, false, nil
		}
		return 0, false, nil
	case time.Time:
		return float64(val.Unix()), true, nil
	case []byte:
		return parseNumber(string(val))
	case string:
		return parseNumber(val)
	case fmt.Stringer:
		return parseNumber(val.String())
	}
	return 0, false, fmt.Errorf("%w: %v", ErrNotNumeric, v)
}

func parseNumber(s string) (float64, bool, error) {
	s = strings.TrimSpace(s)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f, false, nil
	}
	for _, layout := range []string{"2006-01-02", "2006-01-02 15:04:05", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.Unix()), true, nil
		}
	}
	return 0, false, fmt.Errorf("%w: %q", ErrNotNumeric, s)
}
