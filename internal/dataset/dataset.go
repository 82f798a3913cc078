package dataset

import (
	"strconv"
	"strings"
)

// CellKind tags the value held by a Cell.
type CellKind uint8

const (
	CellMissing CellKind = iota
	CellText
	CellNumber
)

// Cell is a single value in a column: missing, text, or a number.
type Cell struct {
	kind CellKind
	text string
	num  float64
}

// Missing returns the missing-value marker.
func Missing() Cell { return Cell{} }

// Text returns a text cell.
func Text(s string) Cell { return Cell{kind: CellText, text: s} }

// Number returns a numeric cell.
func Number(v float64) Cell { return Cell{kind: CellNumber, num: v} }

func (c Cell) Kind() CellKind  { return c.kind }
func (c Cell) IsMissing() bool { return c.kind == CellMissing }
func (c Cell) IsNumber() bool  { return c.kind == CellNumber }
func (c Cell) IsText() bool    { return c.kind == CellText }

// Float returns the numeric value, if any.
func (c Cell) Float() (float64, bool) {
	if c.kind != CellNumber {
		return 0, false
	}
	return c.num, true
}

// String renders the cell as text. Missing renders as "".
func (c Cell) String() string {
	switch c.kind {
	case CellText:
		return c.text
	case CellNumber:
		return FormatNumber(c.num)
	default:
		return ""
	}
}

// Value returns the cell as a JSON-friendly value (nil, string or float64).
func (c Cell) Value() any {
	switch c.kind {
	case CellText:
		return c.text
	case CellNumber:
		return c.num
	default:
		return nil
	}
}

// FormatNumber renders a float with the minimal digits needed to round-trip.
func FormatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// Kind is the storage representation of a column.
type Kind uint8

const (
	// KindText is generic storage: text, or a mix of text and numbers.
	KindText Kind = iota
	// KindNumeric holds only numbers and missing values.
	KindNumeric
)

func (k Kind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "text"
}

// Column is a named sequence of cells.
type Column struct {
	Name  string
	Kind  Kind
	Cells []Cell
}

// NewColumn builds a column and infers its kind from the cells.
func NewColumn(name string, cells []Cell) *Column {
	c := &Column{Name: name, Cells: cells}
	c.Coerce()
	return c
}

// Coerce sets Kind to numeric when every non-missing cell is a number and to text
// otherwise. It reports whether the column ended numeric. An all-missing column stays
// text, matching the loader.
func (c *Column) Coerce() bool {
	seen := false
	for _, cell := range c.Cells {
		switch cell.kind {
		case CellText:
			c.Kind = KindText
			return false
		case CellNumber:
			seen = true
		}
	}
	if seen {
		c.Kind = KindNumeric
		return true
	}
	c.Kind = KindText
	return false
}

// Len returns the number of cells.
func (c *Column) Len() int { return len(c.Cells) }

// Dataset is an ordered set of equal-length columns.
type Dataset struct {
	Name    string
	columns []*Column
	index   map[string]int
}

// New builds a dataset from columns. Columns shorter than the longest are padded with
// missing cells.
func New(name string, cols ...*Column) *Dataset {
	ds := &Dataset{Name: name, index: map[string]int{}}
	for _, c := range cols {
		ds.Set(c)
	}
	return ds
}

// Columns returns the columns in order. The slice must not be modified.
func (d *Dataset) Columns() []*Column { return d.columns }

// Names returns column names in order.
func (d *Dataset) Names() []string {
	out := make([]string, len(d.columns))
	for i, c := range d.columns {
		out[i] = c.Name
	}
	return out
}

// Column returns the named column.
func (d *Dataset) Column(name string) (*Column, bool) {
	i, ok := d.index[name]
	if !ok {
		return nil, false
	}
	return d.columns[i], true
}

// Has reports whether a column exists.
func (d *Dataset) Has(name string) bool {
	_, ok := d.index[name]
	return ok
}

// Rows returns the row count.
func (d *Dataset) Rows() int {
	n := 0
	for _, c := range d.columns {
		if len(c.Cells) > n {
			n = len(c.Cells)
		}
	}
	return n
}

// Set replaces the column with the same name in place or appends it.
func (d *Dataset) Set(col *Column) {
	if d.index == nil {
		d.index = map[string]int{}
	}
	if i, ok := d.index[col.Name]; ok {
		d.columns[i] = col
	} else {
		d.index[col.Name] = len(d.columns)
		d.columns = append(d.columns, col)
	}
	d.pad()
}

func (d *Dataset) pad() {
	n := d.Rows()
	for _, c := range d.columns {
		for len(c.Cells) < n {
			c.Cells = append(c.Cells, Missing())
		}
	}
}

// Row returns the cells of row i across all columns.
func (d *Dataset) Row(i int) []Cell {
	out := make([]Cell, len(d.columns))
	for j, c := range d.columns {
		if i < len(c.Cells) {
			out[j] = c.Cells[i]
		}
	}
	return out
}

// Head returns up to n rows as records keyed by column name. Missing cells become nil.
func (d *Dataset) Head(n int) []map[string]any {
	rows := d.Rows()
	if n > rows {
		n = rows
	}
	out := make([]map[string]any, 0, n)
	for i := 0; i < n; i++ {
		rec := make(map[string]any, len(d.columns))
		for _, c := range d.columns {
			rec[c.Name] = c.Cells[i].Value()
		}
		out = append(out, rec)
	}
	return out
}

// Records renders the dataset as a header row plus string rows.
func (d *Dataset) Records() [][]string {
	out := make([][]string, 0, d.Rows()+1)
	out = append(out, d.Names())
	for i := 0; i < d.Rows(); i++ {
		row := d.Row(i)
		rec := make([]string, len(row))
		for j, c := range row {
			rec[j] = c.String()
		}
		out = append(out, rec)
	}
	return out
}

// ParseCell converts raw loader text to a cell using the NA token set.
func ParseCell(raw string, na map[string]struct{}) Cell {
	v := strings.TrimSpace(raw)
	if v == "" {
		return Missing()
	}
	if _, ok := na[v]; ok {
		return Missing()
	}
	return Text(raw)
}
