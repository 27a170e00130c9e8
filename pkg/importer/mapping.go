package importer

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/JayJamieson/db-cli/pkg/models"
)

// LoadMapping reads a JSON object of source column -> table column.
func LoadMapping(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read mapping file: %w", err)
	}

	var mapping map[string]string
	if err := json.Unmarshal(data, &mapping); err != nil {
		return nil, fmt.Errorf("failed to parse mapping file %s: %w", path, err)
	}
	return mapping, nil
}

// AutoMap maps each header column to a table column, preferring an exact
// match and falling back to a case-insensitive one. Unmatched header columns
// are returned separately.
func AutoMap(header []string, columns []models.ColumnInfo) (map[string]string, []string) {
	exact := make(map[string]string, len(columns))
	folded := make(map[string]string, len(columns))
	for _, col := range columns {
		exact[col.Name] = col.Name
		key := strings.ToLower(col.Name)
		if _, ok := folded[key]; !ok {
			folded[key] = col.Name
		}
	}

	mapping := make(map[string]string)
	var unmapped []string
	for _, name := range header {
		if target, ok := exact[name]; ok {
			mapping[name] = target
			continue
		}
		if target, ok := folded[strings.ToLower(name)]; ok {
			mapping[name] = target
			continue
		}
		unmapped = append(unmapped, name)
	}
	return mapping, unmapped
}

// normalizeHeader trims names, names blank columns column_N and rejects
// duplicates.
func normalizeHeader(header []string) ([]string, error) {
	out := make([]string, len(header))
	seen := make(map[string]bool, len(header))
	for i, name := range header {
		name = strings.TrimSpace(name)
		if name == "" {
			name = fmt.Sprintf("column_%d", i+1)
		}
		if seen[name] {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateColumn, name)
		}
		seen[name] = true
		out[i] = name
	}
	return out, nil
}
