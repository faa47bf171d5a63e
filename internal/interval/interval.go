package interval

import (
	"strings"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/ir"
)

// Clock supplies the wall time used by the "**" anchor and by alias base dates.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the real wall clock in UTC.
type SystemClock struct{}

// Now implements Clock.
func (SystemClock) Now() time.Time { return time.Now().UTC() }

// StaticClock always reports the same instant.
type StaticClock struct {
	Time time.Time
}

// Now implements Clock.
func (c StaticClock) Now() time.Time { return c.Time }

func clockOrSystem(c Clock) Clock {
	if c == nil {
		return SystemClock{}
	}
	return c
}

// Anchor is the reference date an alias is applied to.
type Anchor int

const (
	// AnchorBase applies the alias to the case base date (no '*').
	AnchorBase Anchor = iota
	// AnchorCursor applies the alias to the previous event's date ('*').
	AnchorCursor
	// AnchorNow applies the alias to the clock's current time ('**').
	AnchorNow
)

// String returns the anchor name used in logs.
func (a Anchor) String() string {
	switch a {
	case AnchorCursor:
		return "cursor"
	case AnchorNow:
		return "now"
	default:
		return "base"
	}
}

// AnchorOf counts the '*' markers in raw.
func AnchorOf(raw string) Anchor {
	switch strings.Count(raw, "*") {
	case 1:
		return AnchorCursor
	case 2:
		return AnchorNow
	default:
		return AnchorBase
	}
}

// Interval computes one concrete date from a base date, the cursor left by
// the previous event and a raw alias.
type Interval struct {
	Base   time.Time
	Cursor time.Time // zero when no event has produced a date yet
	Diff   string    // raw alias, anchor markers included; "" or "None" means D+0
	Debit  int       // extra days subtracted after the alias

	// Midnight drops the time of day from the computed date.
	Midnight bool
}

// Start returns the anchor date selected by the '*' markers of Diff.
// An unset cursor falls back to the base date.
func (iv Interval) Start(clock Clock) time.Time {
	switch AnchorOf(iv.Diff) {
	case AnchorCursor:
		if iv.Cursor.IsZero() {
			return iv.Base
		}
		return iv.Cursor
	case AnchorNow:
		return clockOrSystem(clock).Now().Truncate(time.Second)
	default:
		return iv.Base
	}
}

// Date returns the computed date.
func (iv Interval) Date(clock Clock) (time.Time, error) {
	diff := iv.Diff
	if diff == "" || diff == "None" {
		diff = "0"
	}
	if _, ok := Normalize(diff); !ok {
		return time.Time{}, errors.WithHint(
			errors.Wrapf(ErrInvalidInterval, "not a valid interval: %q", iv.Diff),
			grammarHint,
		)
	}
	date, err := AliasDate(diff, iv.Start(clock), iv.Debit, clock)
	if err != nil || !iv.Midnight {
		return date, err
	}
	return Midnight(date), nil
}

// ParseBaseDate resolves a case base date. Accepted forms, in order:
// "YYYY-MM-DD HH:MM:SS", any value whose first ten characters are a
// YYYY-MM-DD date (anchored at midnight), or an alias applied to clock.Now().
func ParseBaseDate(raw string, clock Clock) (time.Time, error) {
	s := strings.TrimSpace(raw)

	if t, err := time.Parse(ir.TimestampLayout, s); err == nil {
		return t, nil
	}
	if len(s) >= 10 {
		if t, err := time.Parse(time.DateOnly, s[:10]); err == nil {
			return t, nil
		}
	}
	if IsAlias(s) {
		return AliasDate(s, time.Time{}, 0, clock)
	}

	return time.Time{}, errors.WithHint(
		errors.Wrapf(ErrInvalidBaseDate, "not a valid base date: %q", raw),
		"use YYYY-MM-DD, YYYY-MM-DD HH:MM:SS or an alias such as Y-1",
	)
}
