// Package template holds the entity template registry and the Jaccard
// template matcher.
//
// The registry is explicit and ordered: templates are registered by name at
// startup and iteration follows registration order, which is also the
// matcher's tie-break order.
package template

import (
	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/component"
	"github.com/roach88/datamock/internal/generator"
	"github.com/roach88/datamock/internal/ir"
)

var (
	// ErrEmptyRegistry is returned when matching against a registry with no templates.
	ErrEmptyRegistry = errors.New("template registry is empty")

	// ErrDuplicateTemplate is returned when a name is registered twice.
	ErrDuplicateTemplate = errors.New("duplicate template")

	// ErrReservedField is returned when a factory sets interval, main_name or table_name.
	ErrReservedField = errors.New("reserved field set by template")
)

// Reserved entity fields, owned by the instantiation contract.
const (
	FieldInterval  = "interval"
	FieldMainName  = "main_name"
	FieldTableName = "table_name"
)

// Input is everything a factory may read to build one instance.
type Input struct {
	Tree   ir.Object         // resolved event tree
	Person *component.Person // case person context
	Parent ir.Object         // inherited snapshot; nil without parents
	Gen    *generator.Generator
}

// Factory builds the template-specific fields of one instance.
type Factory func(in Input) (ir.Object, error)

// Template is a named factory.
type Template struct {
	Name  string
	Build Factory
}

// Entity is one constructed instance. Interval, MainName and TableName are
// always present, the template contributes Fields.
type Entity struct {
	Interval  ir.Value // computed event date (interval2)
	MainName  string   // original event title
	TableName string   // type token
	Fields    ir.Object
}

// Snapshot returns the flat value-only record stored in the instance store.
// The result shares nothing with the entity.
func (e Entity) Snapshot() ir.Object {
	snap := e.Fields.Clone()
	if snap == nil {
		snap = ir.Object{}
	}
	snap[FieldInterval] = ir.Clone(e.Interval)
	snap[FieldMainName] = ir.String(e.MainName)
	snap[FieldTableName] = ir.String(e.TableName)
	return snap
}

// Instantiate runs the template and decorates the result with the reserved fields.
func (t Template) Instantiate(in Input, title, token string) (Entity, error) {
	fields, err := t.Build(in)
	if err != nil {
		return Entity{}, errors.Wrapf(err, "template %s", t.Name)
	}
	for _, reserved := range []string{FieldInterval, FieldMainName, FieldTableName} {
		if fields.Has(reserved) {
			return Entity{}, errors.Wrapf(ErrReservedField, "template %s sets %q", t.Name, reserved)
		}
	}
	return Entity{
		Interval:  in.Tree.Get("interval2"),
		MainName:  title,
		TableName: token,
		Fields:    fields,
	}, nil
}

// Registry is an ordered set of templates.
type Registry struct {
	templates []Template
	index     map[string]int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: make(map[string]int)}
}

// Register appends a template. Names must be non-empty and unique.
func (r *Registry) Register(name string, build Factory) error {
	if name == "" {
		return errors.New("template name is empty")
	}
	if build == nil {
		return errors.Newf("template %s has no factory", name)
	}
	if _, exists := r.index[name]; exists {
		return errors.Wrapf(ErrDuplicateTemplate, "%s", name)
	}
	r.index[name] = len(r.templates)
	r.templates = append(r.templates, Template{Name: name, Build: build})
	return nil
}

// MustRegister is Register for static tables; it panics on error.
func (r *Registry) MustRegister(name string, build Factory) *Registry {
	if err := r.Register(name, build); err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the template registered under exactly name.
func (r *Registry) Lookup(name string) (Template, bool) {
	i, ok := r.index[name]
	if !ok {
		return Template{}, false
	}
	return r.templates[i], true
}

// Names returns template names in registration order.
func (r *Registry) Names() []string {
	names := make([]string, len(r.templates))
	for i, t := range r.templates {
		names[i] = t.Name
	}
	return names
}

// Len returns the number of registered templates.
func (r *Registry) Len() int {
	return len(r.templates)
}
