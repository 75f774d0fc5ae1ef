package dataset

import (
	"errors"
	"fmt"
	"strings"

	"github.com/smartcity-lahore/citypipeline/pkg/smartcity/common"
)

// ErrMalformed is returned when rows do not share the dataset's column set
var ErrMalformed = errors.New("malformed dataset")

// Row maps a column name to a cell value. Cells hold string, float64, int,
// time.Time or nil.
type Row map[string]any

// Dataset is an ordered table of rows sharing one column set
type Dataset struct {
	Columns []string
	Rows    []Row
}

// New creates an empty dataset with the given columns
func New(columns ...string) *Dataset {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Dataset{Columns: cols}
}

// AppendValues adds a row given values in column order. Missing trailing
// values are stored as nil.
func (d *Dataset) AppendValues(values ...any) {
	row := make(Row, len(d.Columns))
	for i, col := range d.Columns {
		if i < len(values) {
			row[col] = values[i]
		} else {
			row[col] = nil
		}
	}
	d.Rows = append(d.Rows, row)
}

// Len returns the number of rows; a nil dataset has none
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Empty reports whether the dataset is nil or has no rows
func (d *Dataset) Empty() bool {
	return d.Len() == 0
}

// HasColumn reports an exact column match
func (d *Dataset) HasColumn(name string) bool {
	for _, col := range d.Columns {
		if col == name {
			return true
		}
	}
	return false
}

// ResolveColumn finds the stored header for name, ignoring surrounding
// whitespace on both sides. Government exports often ship headers like "YEAR ".
func (d *Dataset) ResolveColumn(name string) (string, bool) {
	want := strings.TrimSpace(name)
	for _, col := range d.Columns {
		if col == name {
			return col, true
		}
	}
	for _, col := range d.Columns {
		if strings.TrimSpace(col) == want {
			return col, true
		}
	}
	return "", false
}

// Column returns the cells of a column in row order. The name is resolved
// with ResolveColumn; an unknown column yields nil.
func (d *Dataset) Column(name string) []any {
	col, ok := d.ResolveColumn(name)
	if !ok {
		return nil
	}
	values := make([]any, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row[col]
	}
	return values
}

// Filter returns a new dataset holding the rows keep accepts. Rows are shared,
// not copied.
func (d *Dataset) Filter(keep func(Row) bool) *Dataset {
	out := New(d.Columns...)
	for _, row := range d.Rows {
		if keep(row) {
			out.Rows = append(out.Rows, row)
		}
	}
	return out
}

// FilterContains keeps rows whose column value contains term, case-insensitively.
// Non-string and nil cells never match.
func (d *Dataset) FilterContains(column, term string) *Dataset {
	col, ok := d.ResolveColumn(column)
	if !ok {
		return New(d.Columns...)
	}
	return d.Filter(func(r Row) bool {
		s, isString := r[col].(string)
		return isString && common.ContainsFold(s, term)
	})
}

// TrimHeaders returns a copy whose column names have surrounding whitespace removed
func (d *Dataset) TrimHeaders() *Dataset {
	out := &Dataset{Columns: make([]string, len(d.Columns)), Rows: make([]Row, 0, len(d.Rows))}
	for i, col := range d.Columns {
		out.Columns[i] = strings.TrimSpace(col)
	}
	for _, row := range d.Rows {
		trimmed := make(Row, len(row))
		for k, v := range row {
			trimmed[strings.TrimSpace(k)] = v
		}
		out.Rows = append(out.Rows, trimmed)
	}
	return out
}

// Validate checks the shared-column-set invariant
func (d *Dataset) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: nil dataset", ErrMalformed)
	}
	seen := make(map[string]struct{}, len(d.Columns))
	for _, col := range d.Columns {
		if _, dup := seen[col]; dup {
			return fmt.Errorf("%w: duplicate column %q", ErrMalformed, col)
		}
		seen[col] = struct{}{}
	}
	for i, row := range d.Rows {
		if len(row) != len(d.Columns) {
			return fmt.Errorf("%w: row %d has %d cells, want %d", ErrMalformed, i, len(row), len(d.Columns))
		}
		for key := range row {
			if _, ok := seen[key]; !ok {
				return fmt.Errorf("%w: row %d has unknown column %q", ErrMalformed, i, key)
			}
		}
	}
	return nil
}

// NullCount counts nil cells across the table
func (d *Dataset) NullCount() int {
	nulls := 0
	for _, row := range d.Rows {
		for _, col := range d.Columns {
			if row[col] == nil {
				nulls++
			}
		}
	}
	return nulls
}

// Completeness reports the share of populated cells against threshold
func (d *Dataset) Completeness(threshold float64) common.CompletenessReport {
	return common.Completeness(len(d.Rows)*len(d.Columns), d.NullCount(), threshold)
}

// SumColumn adds up a column after numeric cleaning; unparseable cells count as zero
func (d *Dataset) SumColumn(name string) float64 {
	total := 0.0
	for _, v := range d.Column(name) {
		total += common.CleanNumericOr(v, 0)
	}
	return total
}
