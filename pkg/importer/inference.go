package importer

import (
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JayJamieson/db-cli/pkg/models"
)

// nullTokens are the cell values treated as SQL NULL.
var nullTokens = map[string]bool{
	"":     true,
	"NULL": true,
	"null": true,
	"NA":   true,
	"N/A":  true,
	"nan":  true,
	"NaN":  true,
}

func isNull(value string) bool {
	return nullTokens[strings.TrimSpace(value)]
}

// Date patterns checked before numbers. Time-only values are not dates.
var datePatterns = []struct {
	pattern *regexp.Regexp
	formats []string
	hasTime bool
}{
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(\.\d+)?(Z|[+-]\d{2}:\d{2})$`),
		[]string{time.RFC3339, time.RFC3339Nano},
		true,
	},
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}(\.\d+)?$`),
		[]string{"2006-01-02T15:04:05", "2006-01-02T15:04:05.999999999", "2006-01-02 15:04:05", "2006-01-02 15:04:05.999999999"},
		true,
	},
	{
		regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`),
		[]string{"2006-01-02"},
		false,
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4} \d{1,2}:\d{2}:\d{2}( (AM|PM))?$`),
		[]string{"1/2/2006 15:04:05", "1/2/2006 3:04:05 PM"},
		true,
	},
	{
		regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`),
		[]string{"1/2/2006"},
		false,
	},
	{
		regexp.MustCompile(`^\d{1,2}\.\d{1,2}\.\d{4}$`),
		[]string{"2.1.2006"},
		false,
	},
}

// parseDate returns the parsed time and whether the value carried a time of
// day. ok is false for anything that is not a recognizable calendar date.
func parseDate(value string) (t time.Time, hasTime bool, ok bool) {
	for _, dp := range datePatterns {
		if !dp.pattern.MatchString(value) {
			continue
		}
		for _, format := range dp.formats {
			if parsed, err := time.Parse(format, value); err == nil {
				return parsed, dp.hasTime, true
			}
		}
	}
	return time.Time{}, false, false
}

type valueKind struct {
	typ     models.ColumnType
	hasTime bool
	absInt  int64
}

func classifyValue(value string) valueKind {
	if _, hasTime, ok := parseDate(value); ok {
		return valueKind{typ: models.ColumnTypeDate, hasTime: hasTime}
	}

	// Leading zeros mark identifiers such as zip codes, not numbers.
	digits := strings.TrimLeft(value, "+-")
	if len(digits) > 1 && digits[0] == '0' && digits[1] != '.' {
		return valueKind{typ: models.ColumnTypeText}
	}

	if n, err := strconv.ParseInt(value, 10, 64); err == nil {
		if n < 0 {
			n = -n
		}
		return valueKind{typ: models.ColumnTypeInteger, absInt: n}
	}
	if _, err := strconv.ParseFloat(value, 64); err == nil {
		return valueKind{typ: models.ColumnTypeFloat}
	}
	return valueKind{typ: models.ColumnTypeText}
}

// widen combines the type seen so far with the type of a new value. It only
// moves towards more general types: integer -> float -> text, date -> text.
func widen(current, next models.ColumnType) models.ColumnType {
	switch {
	case current == "":
		return next
	case current == next:
		return current
	case current == models.ColumnTypeText || next == models.ColumnTypeText:
		return models.ColumnTypeText
	case isNumeric(current) && isNumeric(next):
		return models.ColumnTypeFloat
	}
	return models.ColumnTypeText
}

func isNumeric(t models.ColumnType) bool {
	return t == models.ColumnTypeInteger || t == models.ColumnTypeFloat
}

// ColumnInferrer accumulates sampled values for one column.
type ColumnInferrer struct {
	spec models.ColumnSpec
}

func NewColumnInferrer(name string) *ColumnInferrer {
	return &ColumnInferrer{spec: models.ColumnSpec{Name: name}}
}

func (c *ColumnInferrer) Observe(value string) {
	value = strings.TrimSpace(value)
	if isNull(value) {
		c.spec.Nullable = true
		return
	}

	if n := utf8.RuneCountInString(value); n > c.spec.MaxLength {
		c.spec.MaxLength = n
	}

	kind := classifyValue(value)
	c.spec.Type = widen(c.spec.Type, kind.typ)
	if kind.hasTime {
		c.spec.HasTime = true
	}
	if kind.absInt > c.spec.MaxAbsInt {
		c.spec.MaxAbsInt = kind.absInt
	}
}

// Type is the type inferred so far; empty until a non-null value is seen.
func (c *ColumnInferrer) Type() models.ColumnType {
	return c.spec.Type
}

func (c *ColumnInferrer) Spec() models.ColumnSpec {
	spec := c.spec
	if spec.Type == "" {
		spec.Type = models.ColumnTypeText
		spec.Nullable = true
	}
	return spec
}

// InferColumns infers one ColumnSpec per header column from sampled records.
// Short records leave the missing cells null.
func InferColumns(header []string, sample [][]string) []models.ColumnSpec {
	inferrers := make([]*ColumnInferrer, len(header))
	for i, name := range header {
		inferrers[i] = NewColumnInferrer(name)
	}

	for _, record := range sample {
		for i, inf := range inferrers {
			if i < len(record) {
				inf.Observe(record[i])
			} else {
				inf.Observe("")
			}
		}
	}

	specs := make([]models.ColumnSpec, len(inferrers))
	for i, inf := range inferrers {
		specs[i] = inf.Spec()
	}
	return specs
}
