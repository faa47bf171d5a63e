package harness

import (
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/testcase"
)

// Assertion is the suffix of a unittest name.
type Assertion string

const (
	AssertInSequence  Assertion = "should_be_in_sequence"
	AssertDistinct    Assertion = "should_be_distinct"
	AssertNotBefore   Assertion = "should_not_have_datetime_before"
	AssertArrayLength Assertion = "should_have_on_array_length_sequence"
)

var assertions = []Assertion{AssertInSequence, AssertDistinct, AssertNotBefore, AssertArrayLength}

// ErrUnknownAssertion is returned for unittest names without a known suffix.
var ErrUnknownAssertion = errors.New("unknown assertion")

const fieldValidRecord = "valid_record"

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Unit     string // unittest name
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Unit)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// ParseUnit splits a unittest name into the asserted field and the assertion.
func ParseUnit(name string) (string, Assertion, error) {
	for _, a := range assertions {
		suffix := "_" + string(a)
		if len(name) > len(suffix) && strings.HasSuffix(name, suffix) {
			return strings.TrimSuffix(name, suffix), a, nil
		}
	}
	known := make([]string, len(assertions))
	for i, a := range assertions {
		known[i] = string(a)
	}
	return "", "", errors.WithHint(
		errors.Wrapf(ErrUnknownAssertion, "%q", name),
		"unittest names end in _"+strings.Join(known, ", _"),
	)
}

// Evaluate runs one unittest against the obtained rows.
func Evaluate(rows []ir.Object, unit testcase.Unittest) UnitOutcome {
	out := UnitOutcome{Name: unit.Name, Expected: unit.Expected, Obtained: ir.Null{}}

	field, assertion, err := ParseUnit(unit.Name)
	if err != nil {
		out.Message = err.Error()
		return out
	}
	out.Field = field
	out.Assertion = assertion

	var obtained ir.List
	switch assertion {
	case AssertArrayLength:
		obtained = ArrayLengths(rows, field)
		err = inSequence(unit.Name, unit.Expected, obtained)
	case AssertInSequence:
		obtained = Obtained(rows, field)
		err = inSequence(unit.Name, unit.Expected, obtained)
	case AssertDistinct:
		obtained = Obtained(rows, field)
		err = distinct(unit.Name, obtained)
	case AssertNotBefore:
		obtained = Obtained(rows, field)
		err = notBefore(unit.Name, unit.Expected, obtained)
	}

	out.Obtained = obtained
	if err != nil {
		out.Message = err.Error()
		return out
	}
	out.Passed = true
	return out
}

// Obtained extracts a column from rows in row order. When the rows carry a
// valid_record column, invalid rows are skipped unless field is
// valid_record. A column missing from the rows yields an empty list.
func Obtained(rows []ir.Object, field string) ir.List {
	out := ir.List{}
	if len(rows) == 0 || !rows[0].Has(field) {
		return out
	}
	filter := field != fieldValidRecord && rows[0].Has(fieldValidRecord)
	for _, row := range rows {
		if filter && !truthy(row.Get(fieldValidRecord)) {
			continue
		}
		out = append(out, row.Get(field))
	}
	return out
}

// truthy accepts true and 1; SQLite hands booleans back as integers.
func truthy(v ir.Value) bool {
	switch val := v.(type) {
	case ir.Bool:
		return bool(val)
	case ir.Int:
		return val == 1
	case ir.Float:
		return val == 1
	}
	return false
}

// ArrayLengths counts array elements per row. For a dotted path
// "a.b" the elements of every row's "a" array are gathered (records only)
// and the lengths of their "b" arrays are returned. A path whose first
// non-null value is not an array yields an empty list.
func ArrayLengths(rows []ir.Object, path string) ir.List {
	return arrayLengths(rows, strings.Split(path, "."))
}

func arrayLengths(rows []ir.Object, segments []string) ir.List {
	field := segments[0]
	out := ir.List{}

	var first ir.Value
	for _, row := range rows {
		if v := row.Get(field); !ir.IsNull(v) {
			first = v
			break
		}
	}
	if _, ok := first.(ir.List); !ok {
		return out
	}

	if len(segments) == 1 {
		for _, row := range rows {
			list, _ := row.Get(field).(ir.List)
			out = append(out, ir.Int(int64(len(list))))
		}
		return out
	}

	var nested []ir.Object
	for _, row := range rows {
		list, _ := row.Get(field).(ir.List)
		for _, el := range list {
			if obj, ok := el.(ir.Object); ok {
				nested = append(nested, obj)
			}
		}
	}
	return arrayLengths(nested, segments[1:])
}

func inSequence(unit string, expected ir.Value, obtained ir.List) error {
	list, ok := expected.(ir.List)
	if !ok {
		return &AssertionError{Unit: unit, Expected: "a list of values", Actual: "expected value " + ir.Text(expected)}
	}
	match := len(list) == len(obtained)
	for i := 0; match && i < len(list); i++ {
		match = sameValue(list[i], obtained[i])
	}
	if match {
		return nil
	}
	return &AssertionError{Unit: unit, Expected: ir.Text(list), Actual: ir.Text(obtained)}
}

// sameValue is ir.Equal plus booleans compared with their 0/1 storage form.
func sameValue(expected, obtained ir.Value) bool {
	if ir.Equal(expected, obtained) {
		return true
	}
	if b, ok := expected.(ir.Bool); ok {
		if n, ok := obtained.(ir.Int); ok {
			return bool(b) == (n != 0)
		}
	}
	return false
}

func distinct(unit string, obtained ir.List) error {
	seen := make(map[string]bool, len(obtained))
	var repeated []string
	for _, v := range obtained {
		key := valueKey(v)
		if seen[key] {
			repeated = append(repeated, ir.Text(v))
			continue
		}
		seen[key] = true
	}
	if len(repeated) == 0 {
		return nil
	}
	return &AssertionError{
		Unit:     unit,
		Expected: fmt.Sprintf("%d distinct values", len(obtained)),
		Actual:   fmt.Sprintf("%d distinct values, repeated: %s", len(seen), strings.Join(repeated, ", ")),
	}
}

func valueKey(v ir.Value) string {
	data, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprintf("%T:%v", v, v)
	}
	return string(data)
}

// obtainedLayouts are the timestamp shapes a sink may hand back.
var obtainedLayouts = []string{ir.TimestampLayout, time.RFC3339, time.DateOnly}

func notBefore(unit string, expected ir.Value, obtained ir.List) error {
	raw := strings.TrimSpace(ir.Text(expected))
	limit, err := time.Parse(ir.TimestampLayout, raw)
	if err != nil {
		return &AssertionError{
			Unit:     unit,
			Expected: "a datetime in format YYYY-MM-DD HH:MM:SS",
			Actual:   fmt.Sprintf("invalid expected datetime %q", raw),
		}
	}

	var earliest time.Time
	var earliestRaw string
	for _, v := range obtained {
		if ir.IsNull(v) {
			continue
		}
		t, err := parseObtained(ir.Text(v))
		if err != nil {
			return &AssertionError{Unit: unit, Expected: "datetime values", Actual: err.Error()}
		}
		if earliestRaw == "" || t.Before(earliest) {
			earliest, earliestRaw = t, ir.Text(v)
		}
	}
	if earliestRaw == "" || !earliest.Before(limit) {
		return nil
	}
	return &AssertionError{
		Unit:     unit,
		Expected: "no datetime before " + raw,
		Actual:   "earliest is " + earliestRaw,
	}
}

func parseObtained(s string) (time.Time, error) {
	for _, layout := range obtainedLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("unparsable datetime %q", s)
}
