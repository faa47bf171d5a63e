package mocker

import (
	"strings"
	"time"

	"github.com/roach88/datamock/internal/interval"
	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/testcase"
)

// Tree fields with resolver semantics.
const (
	fieldParents   = "parents"
	fieldInterval  = "interval"
	fieldInterval2 = "interval2"
	fieldOptions   = "options"
)

type diff struct {
	raw  string
	date time.Time
}

// resolve copies the event attributes, substitutes references to stored
// instances, computes the event date and advances the cursor.
//
// Fields are visited in declaration order:
//   - list elements naming a stored key prefix become that snapshot
//   - "<prefix>.<attr>" strings become attr read from the matching snapshot
//   - interval aliases are computed and collected
//
// The latest collected alias becomes the event date; without aliases the
// raw interval field is used (absent means D+0).
func (b *build) resolve(ev testcase.Event) (ir.Object, error) {
	tree := ev.Attributes.Clone()
	if tree == nil {
		tree = ir.Object{}
	}

	var diffs []diff
	for _, key := range fieldOrder(ev) {
		value := tree[key]
		if key == fieldParents {
			continue
		}

		switch v := value.(type) {
		case ir.List:
			tree[key] = b.expandList(v)
			continue
		case ir.String:
			if resolved, ok := b.dotted(string(v)); ok {
				b.logger.Debug("reference resolved", "event", ev.Title, "field", key, "ref", string(v))
				tree[key] = resolved
			}
		}

		s, ok := value.(ir.String)
		if !ok || key == fieldInterval || !interval.IsIntervalAlias(string(s)) {
			continue
		}
		date, err := interval.Interval{Base: b.base, Cursor: b.cursor, Diff: string(s), Midnight: b.midnight}.Date(b.clock)
		if err != nil {
			return nil, buildError(ErrCodeGrammar, ev.Title, key, err, "cannot compute interval %q", string(s))
		}
		b.logger.Debug("interval computed",
			"event", ev.Title,
			"field", key,
			"alias", string(s),
			"anchor", interval.AnchorOf(string(s)).String(),
			"date", interval.Format(date),
		)
		tree[key] = ir.String(interval.Format(date))
		if !containsDiff(diffs, string(s)) {
			diffs = append(diffs, diff{raw: string(s), date: date})
		}
	}

	chosen, err := b.eventDate(ev, tree, diffs)
	if err != nil {
		return nil, err
	}

	tree[fieldInterval2] = ir.String(interval.Format(chosen.date))
	tree[fieldInterval] = ir.List{
		ir.String(interval.Format(b.base)),
		timeValue(b.cursor),
		ir.String(chosen.raw),
	}
	b.cursor = chosen.date
	return tree, nil
}

// eventDate picks the latest collected alias, first one on ties, or falls
// back to the raw interval field.
func (b *build) eventDate(ev testcase.Event, tree ir.Object, diffs []diff) (diff, error) {
	if len(diffs) > 0 {
		latest := diffs[0]
		for _, d := range diffs[1:] {
			if d.date.After(latest.date) {
				latest = d
			}
		}
		return latest, nil
	}

	raw := "None"
	if v, ok := tree[fieldInterval]; ok && !ir.IsNull(v) {
		raw = ir.Text(v)
	}
	date, err := interval.Interval{Base: b.base, Cursor: b.cursor, Diff: raw, Midnight: b.midnight}.Date(b.clock)
	if err != nil {
		return diff{}, buildError(ErrCodeGrammar, ev.Title, fieldInterval, err, "cannot compute interval %q", raw)
	}
	return diff{raw: raw, date: date}, nil
}

// fieldOrder lists the event's attribute keys, declared order first.
// Keys missing from Order follow in sorted order.
func fieldOrder(ev testcase.Event) []string {
	keys := make([]string, 0, len(ev.Attributes))
	seen := make(map[string]bool, len(ev.Attributes))
	for _, key := range ev.Order {
		if _, ok := ev.Attributes[key]; ok && !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}
	for _, key := range ev.Attributes.SortedKeys() {
		if !seen[key] {
			keys = append(keys, key)
		}
	}
	return keys
}

// expandList replaces elements naming a stored key prefix with that snapshot.
func (b *build) expandList(list ir.List) ir.List {
	out := make(ir.List, len(list))
	for i, el := range list {
		out[i] = el
		s, ok := el.(ir.String)
		if !ok {
			continue
		}
		if _, snap, found := b.store.Find(string(s)); found {
			out[i] = snap
		}
	}
	return out
}

// dotted resolves "<prefix>.<attr>" against the store. The attribute is the
// last dotted segment, so "row_1.a.name" reads name from row_1's snapshot.
func (b *build) dotted(ref string) (ir.Value, bool) {
	prefix, _, found := strings.Cut(ref, ".")
	if !found || prefix == "" {
		return nil, false
	}
	attr := ref[strings.LastIndexByte(ref, '.')+1:]
	if attr == "" {
		return nil, false
	}
	if _, snap, ok := b.store.Find(prefix); ok {
		return snap.Get(attr), true
	}
	return nil, false
}

func containsDiff(diffs []diff, raw string) bool {
	for _, d := range diffs {
		if d.raw == raw {
			return true
		}
	}
	return false
}

func timeValue(t time.Time) ir.Value {
	if t.IsZero() {
		return ir.Null{}
	}
	return ir.String(interval.Format(t))
}
