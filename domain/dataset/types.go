package dataset

import (
	"fmt"
	"math"
	"sort"
	"strconv"

	"modelcheck/domain/core"
)

// ColumnKind distinguishes continuous from categorical columns
type ColumnKind string

const (
	KindNumeric     ColumnKind = "numeric"
	KindCategorical ColumnKind = "categorical"
)

// Column is a single named, row-aligned column of a dataset.
// Exactly one of Numeric or Categorical is populated, according to Kind.
type Column struct {
	Name        string
	Kind        ColumnKind
	Numeric     []float64
	Categorical []string
}

// Len returns the number of rows held by the column
func (c *Column) Len() int {
	if c.Kind == KindCategorical {
		return len(c.Categorical)
	}
	return len(c.Numeric)
}

// Levels returns the sorted distinct values of a categorical column
func (c *Column) Levels() []string {
	seen := make(map[string]struct{})
	for _, v := range c.Categorical {
		seen[v] = struct{}{}
	}
	levels := make([]string, 0, len(seen))
	for v := range seen {
		levels = append(levels, v)
	}
	sort.Strings(levels)
	return levels
}

// Format renders row i as text
func (c *Column) Format(i int) string {
	if c.Kind == KindCategorical {
		return c.Categorical[i]
	}
	v := c.Numeric[i]
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Value returns row i as a float64 or string
func (c *Column) Value(i int) interface{} {
	if c.Kind == KindCategorical {
		return c.Categorical[i]
	}
	return c.Numeric[i]
}

func (c *Column) clone() *Column {
	out := &Column{Name: c.Name, Kind: c.Kind}
	if c.Numeric != nil {
		out.Numeric = append([]float64(nil), c.Numeric...)
	}
	if c.Categorical != nil {
		out.Categorical = append([]string(nil), c.Categorical...)
	}
	return out
}

// Dataset is a column-oriented table whose rows are observational units.
// Column order is preserved in insertion order.
type Dataset struct {
	columns []*Column
	index   map[string]int
	rows    int
}

// New creates an empty dataset
func New() *Dataset {
	return &Dataset{index: make(map[string]int), rows: -1}
}

// NumRows returns the number of rows, zero for a dataset with no columns
func (d *Dataset) NumRows() int {
	if d.rows < 0 {
		return 0
	}
	return d.rows
}

// NumColumns returns the number of columns
func (d *Dataset) NumColumns() int {
	return len(d.columns)
}

// Names returns column names in insertion order
func (d *Dataset) Names() []string {
	names := make([]string, len(d.columns))
	for i, c := range d.columns {
		names[i] = c.Name
	}
	return names
}

// Has reports whether a column exists
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Column returns the named column
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Numeric returns the values of a numeric column
func (d *Dataset) Numeric(name string) ([]float64, error) {
	c, ok := d.Column(name)
	if !ok {
		return nil, fmt.Errorf("%w: column %q not found", core.ErrInvalidInput, name)
	}
	if c.Kind != KindNumeric {
		return nil, fmt.Errorf("%w: column %q is %s, not numeric", core.ErrInvalidInput, name, c.Kind)
	}
	return c.Numeric, nil
}

// AddNumeric appends a numeric column
func (d *Dataset) AddNumeric(name string, values []float64) error {
	return d.add(&Column{Name: name, Kind: KindNumeric, Numeric: values})
}

// AddCategorical appends a categorical column
func (d *Dataset) AddCategorical(name string, values []string) error {
	return d.add(&Column{Name: name, Kind: KindCategorical, Categorical: values})
}

// SetNumeric replaces the values of an existing column, or appends it if absent
func (d *Dataset) SetNumeric(name string, values []float64) error {
	i, ok := d.index[name]
	if !ok {
		return d.AddNumeric(name, values)
	}
	if len(values) != d.rows {
		return fmt.Errorf("%w: column %q has %d rows, dataset has %d", core.ErrInvalidInput, name, len(values), d.rows)
	}
	d.columns[i] = &Column{Name: name, Kind: KindNumeric, Numeric: values}
	return nil
}

func (d *Dataset) add(c *Column) error {
	if c.Name == "" {
		return fmt.Errorf("%w: column name must not be empty", core.ErrInvalidInput)
	}
	if _, exists := d.index[c.Name]; exists {
		return fmt.Errorf("%w: duplicate column %q", core.ErrInvalidInput, c.Name)
	}
	if d.rows >= 0 && c.Len() != d.rows {
		return fmt.Errorf("%w: column %q has %d rows, dataset has %d", core.ErrInvalidInput, c.Name, c.Len(), d.rows)
	}
	d.rows = c.Len()
	d.index[c.Name] = len(d.columns)
	d.columns = append(d.columns, c)
	return nil
}

// Clone returns a deep copy; mutating the copy never affects the original
func (d *Dataset) Clone() *Dataset {
	out := &Dataset{
		columns: make([]*Column, len(d.columns)),
		index:   make(map[string]int, len(d.index)),
		rows:    d.rows,
	}
	for i, c := range d.columns {
		out.columns[i] = c.clone()
		out.index[c.Name] = i
	}
	return out
}

// Columns returns the columns in insertion order
func (d *Dataset) Columns() []*Column {
	return append([]*Column(nil), d.columns...)
}

// FromColumns builds a dataset from name → values, where values are
// []float64 or []string. Names are added in the given order.
func FromColumns(order []string, cols map[string]interface{}) (*Dataset, error) {
	d := New()
	for _, name := range order {
		var err error
		switch v := cols[name].(type) {
		case []float64:
			err = d.AddNumeric(name, v)
		case []string:
			err = d.AddCategorical(name, v)
		default:
			err = fmt.Errorf("%w: column %q has unsupported type %T", core.ErrInvalidInput, name, v)
		}
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}
