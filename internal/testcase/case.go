// Package testcase loads mock suites: a directory holding a test.yaml with
// one entry per test case.
//
// Declaration order is semantically significant (events chain dates through
// a cursor and reference earlier events), so the loader walks yaml.Node trees
// instead of decoding into maps.
package testcase

import (
	"slices"

	"github.com/roach88/datamock/internal/ir"
)

// Top-level keys of a test case.
const (
	KeySettings      = "settings"
	KeyPerson        = "person"
	KeyDocumentation = "documentation"
	KeyUnittests     = "unittests"
	KeyMockup        = "mockup"
	KeyOptions       = "options"
)

// Case is one parsed test case.
type Case struct {
	ID string

	// Keys lists the top-level keys in declaration order.
	Keys []string

	Settings      ir.Object
	Person        ir.Object
	Documentation ir.Value
	Unittests     []Unittest
	Events        []Event
	Options       []Option

	// Raw is the whole case as a record value, used for schema validation.
	Raw ir.Object
}

// Has reports whether the case declares the top-level key.
func (c *Case) Has(key string) bool {
	return slices.Contains(c.Keys, key)
}

// Event is one entry of the mockup list.
type Event struct {
	Index      int    // zero-based declaration index
	Title      string // dotted table identifier, e.g. project.dataset.table
	Attributes ir.Object
	Order      []string // attribute keys in declaration order
}

// Unittest is one expected assertion, in declaration order.
type Unittest struct {
	Name     string
	Expected ir.Value
}

// Option is a named set of field overrides.
type Option struct {
	Alias     string
	Overrides ir.Object
}

// Option returns the overrides declared under alias. When an alias is
// declared more than once the last declaration wins.
func (c *Case) Option(alias string) (ir.Object, bool) {
	var found ir.Object
	ok := false
	for _, opt := range c.Options {
		if opt.Alias == alias {
			found, ok = opt.Overrides, true
		}
	}
	return found, ok
}

// Documentation is the human description of a case.
type Documentation struct {
	Desc string
	Tags []string
}

// Doc extracts desc and tags. A plain string documentation is taken as desc.
func (c *Case) Doc() Documentation {
	switch v := c.Documentation.(type) {
	case ir.String:
		return Documentation{Desc: string(v)}
	case ir.Object:
		doc := Documentation{Desc: ir.Text(v.Get("desc"))}
		if tags, ok := v["tags"].(ir.List); ok {
			for _, tag := range tags {
				doc.Tags = append(doc.Tags, ir.Text(tag))
			}
		}
		return doc
	}
	return Documentation{}
}
