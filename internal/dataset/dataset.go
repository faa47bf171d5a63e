// Package dataset turns groups of entity snapshots into tabular datasets
// with inferred column types.
package dataset

import (
	"regexp"
	"slices"

	"github.com/roach88/datamock/internal/ir"
)

// ColumnType is the inferred storage type of a column.
type ColumnType string

const (
	TypeString    ColumnType = "STRING"
	TypeInteger   ColumnType = "INTEGER"
	TypeFloat     ColumnType = "FLOAT"
	TypeBoolean   ColumnType = "BOOLEAN"
	TypeTimestamp ColumnType = "TIMESTAMP"
	TypeDate      ColumnType = "DATE"
	TypeRecord    ColumnType = "RECORD"
	TypeArray     ColumnType = "ARRAY"
)

var (
	timestampPattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)
	datePattern      = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
)

// Column describes one dataset column.
type Column struct {
	Name string
	Type ColumnType
}

// Dataset is an ordered set of flat rows sharing one column set.
// Every row carries every column; missing fields are ir.Null.
type Dataset struct {
	Name    string
	Columns []Column
	Rows    []ir.Object
}

// New builds a dataset from rows in the given order. The column set is the
// sorted union of row fields. Rows are cloned, so the dataset never aliases
// its inputs.
func New(name string, rows []ir.Object) *Dataset {
	names := map[string]struct{}{}
	for _, row := range rows {
		for k := range row {
			names[k] = struct{}{}
		}
	}
	ordered := make([]string, 0, len(names))
	for k := range names {
		ordered = append(ordered, k)
	}
	slices.SortFunc(ordered, ir.CompareKeys)

	d := &Dataset{Name: name, Rows: make([]ir.Object, len(rows))}
	for i, row := range rows {
		filled := make(ir.Object, len(ordered))
		for _, k := range ordered {
			filled[k] = ir.Clone(row.Get(k))
		}
		d.Rows[i] = filled
	}
	for _, k := range ordered {
		d.Columns = append(d.Columns, Column{Name: k, Type: d.infer(k)})
	}
	return d
}

// infer picks the narrowest type accepting every non-null value of the
// column. Mixed integer and float widen to FLOAT, dates mixed with
// timestamps widen to TIMESTAMP, other mixes fall back to STRING.
// All-null columns are STRING.
func (d *Dataset) infer(name string) ColumnType {
	var result ColumnType
	for _, row := range d.Rows {
		v := row[name]
		if ir.IsNull(v) {
			continue
		}
		t := typeOf(v)
		switch {
		case result == "":
			result = t
		case result == t:
		case widensTo(result, t, TypeInteger, TypeFloat):
			result = TypeFloat
		case widensTo(result, t, TypeDate, TypeTimestamp):
			result = TypeTimestamp
		default:
			return TypeString
		}
	}
	if result == "" {
		return TypeString
	}
	return result
}

func widensTo(a, b, narrow, wide ColumnType) bool {
	return (a == narrow && b == wide) || (a == wide && b == narrow) || (a == wide && b == wide)
}

func typeOf(v ir.Value) ColumnType {
	switch val := v.(type) {
	case ir.Int:
		return TypeInteger
	case ir.Float:
		return TypeFloat
	case ir.Bool:
		return TypeBoolean
	case ir.List:
		return TypeArray
	case ir.Object:
		return TypeRecord
	case ir.String:
		s := string(val)
		if timestampPattern.MatchString(s) {
			return TypeTimestamp
		}
		if datePattern.MatchString(s) {
			return TypeDate
		}
	}
	return TypeString
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	return len(d.Rows)
}

// ColumnNames returns column names in order.
func (d *Dataset) ColumnNames() []string {
	names := make([]string, len(d.Columns))
	for i, c := range d.Columns {
		names[i] = c.Name
	}
	return names
}

// ColumnType returns the type of the named column.
func (d *Dataset) ColumnType(name string) (ColumnType, bool) {
	for _, c := range d.Columns {
		if c.Name == name {
			return c.Type, true
		}
	}
	return "", false
}

// Column extracts the values of one column in row order.
func (d *Dataset) Column(name string) ir.List {
	values := make(ir.List, len(d.Rows))
	for i, row := range d.Rows {
		values[i] = row.Get(name)
	}
	return values
}

// Value renders the dataset as a list of row objects (canonical form for
// hashing and golden files).
func (d *Dataset) Value() ir.List {
	rows := make(ir.List, len(d.Rows))
	for i, row := range d.Rows {
		rows[i] = row.Clone()
	}
	return rows
}
