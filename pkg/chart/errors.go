package chart

import (
	"errors"
	"fmt"

	"github.com/JayJamieson/db-cli/pkg/models"
)

var (
	ErrNotQuery          = errors.New("statement does not return rows")
	ErrEmptyResult       = errors.New("query returned no rows")
	ErrTooFewColumns     = errors.New("query returned too few columns")
	ErrNotNumeric        = errors.New("value is not numeric")
	ErrNoPoints          = errors.New("no plottable points")
	ErrUnsupportedFormat = errors.New("unsupported output format")
)

// ChartError reports a chart that could not be built or written.
type ChartError struct {
	Kind models.ChartKind
	Err  error
}

func (e *ChartError) Error() string {
	return fmt.Sprintf("%s chart failed: %v", e.Kind, e.Err)
}

func (e *ChartError) Unwrap() error { return e.Err }

func (e *ChartError) Hint() string {
	switch {
	case errors.Is(e.Err, ErrNotQuery):
		return "chart needs a SELECT (or another row-returning statement)"
	case errors.Is(e.Err, ErrEmptyResult), errors.Is(e.Err, ErrNoPoints):
		return "the query has nothing to plot; check its WHERE clause"
	case errors.Is(e.Err, ErrTooFewColumns):
		return columnHint(e.Kind)
	case errors.Is(e.Err, ErrNotNumeric):
		return "cast the column to a number in the query, e.g. CAST(col AS REAL)"
	case errors.Is(e.Err, ErrUnsupportedFormat):
		return "use an output file ending in .png, .svg, .pdf or .jpg"
	}
	return ""
}

func columnHint(kind models.ChartKind) string {
	switch kind {
	case models.ChartBar:
		return "bar charts need a label column followed by a value column"
	case models.ChartHist:
		return "histograms need one numeric column"
	}
	return "line and scatter charts need an x column followed by one or more y columns"
}
