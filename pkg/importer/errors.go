package importer

import (
	"errors"
	"fmt"
	"os"

	"github.com/JayJamieson/db-cli/pkg/models"
)

var (
	// ErrInvalidSource indicates a source without a usable header or sheet.
	ErrInvalidSource = errors.New("invalid source")

	// ErrDuplicateColumn is returned when a header names the same column twice.
	ErrDuplicateColumn = errors.New("duplicate column name")

	// ErrTableMissing is returned when the target table does not exist and
	// table creation was not requested.
	ErrTableMissing = errors.New("table does not exist")

	// ErrNoOverlap is returned when no source column maps to a table column.
	ErrNoOverlap = errors.New("no source columns match the table columns")

	// ErrTypeMismatch is returned when a value cannot be converted to the
	// target column's type.
	ErrTypeMismatch = errors.New("value does not match column type")
)

// ImportError reports a failed import together with what was committed
// before the failure.
type ImportError struct {
	Stage  string
	Source string
	Table  string
	Result *models.ImportResult
	Err    error
}

func (e *ImportError) Error() string {
	msg := fmt.Sprintf("import of %s into %s failed during %s", e.Source, e.Table, e.Stage)
	if e.Result != nil && (e.Result.RowsImported > 0 || e.Result.TableCreated) {
		msg += fmt.Sprintf(" (%d row(s) committed", e.Result.RowsImported)
		if e.Result.TableCreated {
			msg += ", table created"
		}
		msg += ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ImportError) Unwrap() error { return e.Err }

func (e *ImportError) Hint() string {
	switch {
	case errors.Is(e.Err, os.ErrNotExist):
		return "check the file path; relative paths resolve from the directory the shell was started in"
	case errors.Is(e.Err, ErrTableMissing):
		return "add --create-table to create the table from the file's header"
	case errors.Is(e.Err, ErrNoOverlap):
		return "rename the header columns to match the table, or pass --mapping=file.json"
	case errors.Is(e.Err, ErrDuplicateColumn):
		return "rename the duplicate header columns"
	case errors.Is(e.Err, ErrTypeMismatch):
		return "fix the offending value or widen the column type; earlier chunks stay committed"
	case e.Result != nil && e.Result.RowsImported > 0:
		return "earlier chunks stay committed; re-running appends the whole file again"
	}
	return ""
}
