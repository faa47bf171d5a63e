package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/mocker"
)

// Snapshot is the deterministic view of a build used for golden files.
// Build ids and person data are left out; they vary with the generator.
func Snapshot(b *mocker.Result) ir.Object {
	keys := make(ir.List, len(b.Keys))
	for i, k := range b.Keys {
		keys[i] = ir.String(k)
	}
	order := make(ir.List, len(b.Order))
	for i, token := range b.Order {
		order[i] = ir.String(token)
	}
	return ir.Object{
		"base_date": ir.String(b.BaseDate),
		"last_date": ir.String(b.LastDate),
		"keys":      keys,
		"order":     order,
		"datasets":  b.Value(),
	}
}

// AssertGolden compares the canonical JSON snapshot of b against
// testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, b *mocker.Result) {
	t.Helper()

	data, err := ir.MarshalCanonical(Snapshot(b))
	if err != nil {
		t.Fatalf("failed to marshal snapshot: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
