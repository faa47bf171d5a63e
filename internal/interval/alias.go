// Package interval implements the relative-date algebra used by mock cases.
//
// An alias is one or more segments of the form UNIT SIGN N, where UNIT is one
// of Y, M, W, D, H, MIN or SEC (case-insensitive). "Y-1D+2" means one year
// back, then two days forward. A bare integer n is shorthand for D+n and -n
// for D-n. Leading '*' markers select the anchor the alias is applied to; see
// Anchor.
package interval

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/ir"
)

var (
	// ErrInvalidInterval is returned for aliases that match no known grammar.
	ErrInvalidInterval = errors.New("invalid interval")

	// ErrInvalidBaseDate is returned when a base date is neither a date nor an alias.
	ErrInvalidBaseDate = errors.New("invalid base date")
)

const grammarHint = "use <UNIT><+|-><N>, UNIT in Y, M, W, D, H, MIN, SEC (e.g. D-7, Y-1M+2)"

var (
	aliasPattern    = regexp.MustCompile(`^((SEC|MIN|Y|M|W|D|H)[+-][0-9]+)+$`)
	segmentPattern  = regexp.MustCompile(`(SEC|MIN|Y|M|W|D|H)([+-])([0-9]+)`)
	positivePattern = regexp.MustCompile(`^[0-9]+$`)
	negativePattern = regexp.MustCompile(`^-[0-9]+$`)
	nonWordPattern  = regexp.MustCompile(`[^\w+-]`)
)

// Unit is the calendar unit of one alias segment.
type Unit string

const (
	Year   Unit = "Y"
	Month  Unit = "M"
	Week   Unit = "W"
	Day    Unit = "D"
	Hour   Unit = "H"
	Minute Unit = "MIN"
	Second Unit = "SEC"
)

// maxMagnitude bounds each unit to roughly the span of years 1..9999. Any
// larger magnitude cannot yield a representable date.
var maxMagnitude = map[Unit]int64{
	Year:   10_000,
	Month:  120_000,
	Week:   522_000,
	Day:    3_653_000,
	Hour:   87_672_000,
	Minute: 5_260_320_000,
	Second: 315_619_200_000,
}

const (
	minYear = 1
	maxYear = 9999
)

// Segment is one parsed UNIT SIGN N term.
type Segment struct {
	Unit Unit
	N    int // signed magnitude
}

// Normalize strips anchor markers and whitespace, upper-cases the alias and
// expands bare integers. It reports false when the result is not an alias.
func Normalize(raw string) (string, bool) {
	s := strings.ToUpper(strings.NewReplacer("*", "", " ", "").Replace(raw))
	switch {
	case aliasPattern.MatchString(s):
		return s, true
	case positivePattern.MatchString(s):
		return "D+" + s, true
	case negativePattern.MatchString(s):
		return "D" + s, true
	}
	return "", false
}

// IsAlias reports whether raw normalizes to a valid alias (bare integers included).
func IsAlias(raw string) bool {
	_, ok := Normalize(raw)
	return ok
}

// IsIntervalAlias reports whether a field value should be treated as a date
// alias. Unlike IsAlias, bare integers do not qualify, so numeric attributes
// are never mistaken for offsets.
func IsIntervalAlias(raw string) bool {
	inspect := nonWordPattern.ReplaceAllString(raw, "")
	return aliasPattern.MatchString(strings.ToUpper(inspect))
}

// Parse splits an alias into its segments.
func Parse(raw string) ([]Segment, error) {
	alias, ok := Normalize(raw)
	if !ok {
		return nil, errors.WithHint(
			errors.Wrapf(ErrInvalidInterval, "not a valid interval: %q", raw),
			grammarHint,
		)
	}

	matches := segmentPattern.FindAllStringSubmatch(alias, -1)
	segments := make([]Segment, 0, len(matches))
	for _, m := range matches {
		n, err := strconv.Atoi(m[3])
		if err != nil || int64(n) > maxMagnitude[Unit(m[1])] {
			return nil, errors.Wrapf(ErrInvalidInterval, "magnitude out of range in %q", raw)
		}
		if m[2] == "-" {
			n = -n
		}
		segments = append(segments, Segment{Unit: Unit(m[1]), N: n})
	}
	return segments, nil
}

// Apply shifts t by every segment, left to right.
func Apply(t time.Time, segments []Segment) time.Time {
	for _, seg := range segments {
		t = seg.apply(t)
	}
	return t
}

func (s Segment) apply(t time.Time) time.Time {
	switch s.Unit {
	case Year:
		return addMonths(t, s.N*12)
	case Month:
		return addMonths(t, s.N)
	case Week:
		return t.AddDate(0, 0, 7*s.N)
	case Day:
		return t.AddDate(0, 0, s.N)
	case Hour:
		return addClock(t, s.N, 24, time.Hour)
	case Minute:
		return addClock(t, s.N, 24*60, time.Minute)
	case Second:
		return addClock(t, s.N, 24*60*60, time.Second)
	}
	return t
}

// addMonths moves t by n calendar months, clamping the day to the last day of
// the target month (Jan 31 + 1 month = Feb 28/29).
func addMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	total := int(month) - 1 + n
	year += floorDiv(total, 12)
	month = time.Month(total - floorDiv(total, 12)*12 + 1)

	if last := daysIn(year, month); day > last {
		day = last
	}
	return time.Date(year, month, day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}

// addClock splits n units into whole days plus a remainder so large
// magnitudes never overflow time.Duration.
func addClock(t time.Time, n, perDay int, unit time.Duration) time.Time {
	days := n / perDay
	rest := n % perDay
	return t.AddDate(0, 0, days).Add(time.Duration(rest) * unit)
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

// AliasDate applies alias to start and subtracts debit extra days.
// A zero start means "now" as reported by clock.
func AliasDate(alias string, start time.Time, debit int, clock Clock) (time.Time, error) {
	segments, err := Parse(alias)
	if err != nil {
		return time.Time{}, err
	}
	if start.IsZero() {
		start = clockOrSystem(clock).Now()
	}

	if d := int64(debit); d > maxMagnitude[Day] || d < -maxMagnitude[Day] {
		return time.Time{}, errors.Wrapf(ErrInvalidInterval, "debit out of range: %d", debit)
	}

	result := Apply(start, segments)
	if debit != 0 {
		result = result.AddDate(0, 0, -debit)
	}
	if y := result.Year(); y < minYear || y > maxYear {
		return time.Time{}, errors.WithHint(
			errors.Wrapf(ErrInvalidInterval, "%q from %s leaves years %d..%d", alias, Format(start), minYear, maxYear),
			grammarHint,
		)
	}
	return result.Truncate(time.Second), nil
}

// Midnight truncates t to 00:00:00 of the same day.
func Midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// Format renders t in the fixed timestamp layout (YYYY-MM-DD HH:MM:SS).
func Format(t time.Time) string {
	return t.Format(ir.TimestampLayout)
}

// ParseTimestamp parses a value produced by Format.
func ParseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(ir.TimestampLayout, s)
	if err != nil {
		return time.Time{}, errors.Wrapf(err, "invalid timestamp %q", s)
	}
	return t, nil
}
