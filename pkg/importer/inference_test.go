package importer

import (
	"testing"

	"github.com/JayJamieson/db-cli/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifyValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		value string
		want  models.ColumnType
	}{
		{"42", models.ColumnTypeInteger},
		{"-7", models.ColumnTypeInteger},
		{"0", models.ColumnTypeInteger},
		{"3.14", models.ColumnTypeFloat},
		{"0.5", models.ColumnTypeFloat},
		{"1e3", models.ColumnTypeFloat},
		{"00123", models.ColumnTypeText},
		{"2024-01-31", models.ColumnTypeDate},
		{"2024-01-31 12:30:00", models.ColumnTypeDate},
		{"2024-01-31T12:30:00Z", models.ColumnTypeDate},
		{"1/31/2024", models.ColumnTypeDate},
		{"12:30:00", models.ColumnTypeText},
		{"hello", models.ColumnTypeText},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, classifyValue(tt.value).typ)
		})
	}
}

func TestWidenIsMonotonic(t *testing.T) {
	t.Parallel()

	order := map[models.ColumnType]int{
		models.ColumnTypeInteger: 0,
		models.ColumnTypeDate:    0,
		models.ColumnTypeFloat:   1,
		models.ColumnTypeText:    2,
	}
	types := []models.ColumnType{
		models.ColumnTypeInteger,
		models.ColumnTypeFloat,
		models.ColumnTypeDate,
		models.ColumnTypeText,
	}

	for _, a := range types {
		for _, b := range types {
			got := widen(a, b)
			assert.GreaterOrEqual(t, order[got], order[a], "widen(%s, %s) = %s", a, b, got)
			assert.Equal(t, got, widen(got, b), "widen must be idempotent for %s, %s", a, b)
		}
	}

	assert.Equal(t, models.ColumnTypeFloat, widen(models.ColumnTypeInteger, models.ColumnTypeFloat))
	assert.Equal(t, models.ColumnTypeText, widen(models.ColumnTypeDate, models.ColumnTypeInteger))
	assert.Equal(t, models.ColumnTypeText, widen(models.ColumnTypeText, models.ColumnTypeInteger))
}

func TestColumnInferrer(t *testing.T) {
	t.Parallel()

	t.Run("integers widen to float", func(t *testing.T) {
		t.Parallel()
		inf := NewColumnInferrer("amount")
		inf.Observe("1")
		assert.Equal(t, models.ColumnTypeInteger, inf.Type())
		inf.Observe("2.5")
		assert.Equal(t, models.ColumnTypeFloat, inf.Type())
		inf.Observe("3")
		assert.Equal(t, models.ColumnTypeFloat, inf.Type())
	})

	t.Run("text never narrows", func(t *testing.T) {
		t.Parallel()
		inf := NewColumnInferrer("code")
		inf.Observe("abc")
		inf.Observe("1")
		inf.Observe("2024-01-01")
		assert.Equal(t, models.ColumnTypeText, inf.Type())
	})

	t.Run("null tokens mark nullable only", func(t *testing.T) {
		t.Parallel()
		inf := NewColumnInferrer("n")
		inf.Observe("NULL")
		inf.Observe("")
		inf.Observe("N/A")
		inf.Observe("5")
		spec := inf.Spec()
		assert.Equal(t, models.ColumnTypeInteger, spec.Type)
		assert.True(t, spec.Nullable)
		assert.Equal(t, int64(5), spec.MaxAbsInt)
	})

	t.Run("unseen column is nullable text", func(t *testing.T) {
		t.Parallel()
		spec := NewColumnInferrer("empty").Spec()
		assert.Equal(t, models.ColumnTypeText, spec.Type)
		assert.True(t, spec.Nullable)
	})

	t.Run("timestamps are remembered", func(t *testing.T) {
		t.Parallel()
		inf := NewColumnInferrer("at")
		inf.Observe("2024-01-01")
		inf.Observe("2024-01-02 08:00:00")
		spec := inf.Spec()
		assert.Equal(t, models.ColumnTypeDate, spec.Type)
		assert.True(t, spec.HasTime)
	})
}

func TestInferColumns(t *testing.T) {
	t.Parallel()

	header := []string{"id", "price", "day", "note"}
	sample := [][]string{
		{"1", "9.99", "2024-02-01", "first"},
		{"2", "10", "2024-02-02"},
		{"3", "", "2024-02-03", "third"},
	}

	specs := InferColumns(header, sample)
	require.Len(t, specs, 4)

	assert.Equal(t, models.ColumnTypeInteger, specs[0].Type)
	assert.False(t, specs[0].Nullable)
	assert.Equal(t, models.ColumnTypeFloat, specs[1].Type)
	assert.True(t, specs[1].Nullable)
	assert.Equal(t, models.ColumnTypeDate, specs[2].Type)
	assert.Equal(t, models.ColumnTypeText, specs[3].Type)
	assert.True(t, specs[3].Nullable)
}

func TestNormalizeHeader(t *testing.T) {
	t.Parallel()

	got, err := normalizeHeader([]string{" id ", "", "name"})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "column_2", "name"}, got)

	_, err = normalizeHeader([]string{"a", "b", "a"})
	assert.ErrorIs(t, err, ErrDuplicateColumn)
}

func TestAutoMap(t *testing.T) {
	t.Parallel()

	columns := []models.ColumnInfo{{Name: "id"}, {Name: "Name"}, {Name: "email"}}
	mapping, unmapped := AutoMap([]string{"id", "name", "phone"}, columns)

	assert.Equal(t, map[string]string{"id": "id", "name": "Name"}, mapping)
	assert.Equal(t, []string{"phone"}, unmapped)
}

func TestConvertValue(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		family  family
		want    any
		wantErr bool
	}{
		{"null", "NULL", familyInteger, nil, false},
		{"int", " 12 ", familyInteger, int64(12), false},
		{"whole float to int", "12.0", familyInteger, int64(12), false},
		{"bad int", "twelve", familyInteger, nil, true},
		{"float", "1.5", familyFloat, 1.5, false},
		{"bad float", "x", familyFloat, nil, true},
		{"bool", "yes", familyBool, true, false},
		{"bad bool", "maybe", familyBool, nil, true},
		{"date", "1/31/2024", familyDate, "2024-01-31", false},
		{"datetime", "2024-01-31T08:15:00", familyDate, "2024-01-31 08:15:00", false},
		{"text", "00123", familyText, "00123", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := convertValue(tt.raw, tt.family)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrTypeMismatch)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFamilyOf(t *testing.T) {
	t.Parallel()

	assert.Equal(t, familyInteger, familyOf("BIGINT"))
	assert.Equal(t, familyInteger, familyOf("integer"))
	assert.Equal(t, familyFloat, familyOf("DOUBLE PRECISION"))
	assert.Equal(t, familyFloat, familyOf("numeric(10,2)"))
	assert.Equal(t, familyDate, familyOf("TIMESTAMP WITHOUT TIME ZONE"))
	assert.Equal(t, familyBool, familyOf("boolean"))
	assert.Equal(t, familyText, familyOf("VARCHAR(255)"))
	assert.Equal(t, familyText, familyOf("point"))
}
