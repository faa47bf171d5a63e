package testcase

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/roach88/datamock/internal/ir"
)

// FileName is the case file expected in every suite directory.
const FileName = "test.yaml"

// ErrCaseNotFound is returned when a suite has no case with the requested id.
var ErrCaseNotFound = errors.New("test case not found")

// Suite is a directory of cases sharing one config.yaml.
type Suite struct {
	Name  string // directory base name
	Dir   string
	Cases []*Case
}

// Case returns the case with the given id.
func (s *Suite) Case(id string) (*Case, error) {
	for _, c := range s.Cases {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, errors.WithHint(
		errors.Wrapf(ErrCaseNotFound, "%s in suite %s", id, s.Name),
		"available cases: "+strings.Join(s.IDs(), ", "),
	)
}

// IDs returns case ids in declaration order.
func (s *Suite) IDs() []string {
	ids := make([]string, len(s.Cases))
	for i, c := range s.Cases {
		ids[i] = c.ID
	}
	return ids
}

// LoadSuite reads dir/test.yaml and validates every case against the schema.
func LoadSuite(dir string) (*Suite, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read suite file")
	}

	cases, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "%s", path)
	}
	for _, c := range cases {
		if err := Validate(c); err != nil {
			return nil, errors.Wrapf(err, "%s", path)
		}
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}
	return &Suite{Name: filepath.Base(abs), Dir: dir, Cases: cases}, nil
}

// Parse decodes a test.yaml document into cases, preserving order.
// Schema validation is separate (Validate) so callers may inspect
// structurally incomplete cases.
func Parse(data []byte) ([]*Case, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(bytes.NewReader(data)).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("suite file is empty")
		}
		return nil, errors.Wrap(err, "failed to parse YAML")
	}
	if len(doc.Content) == 0 {
		return nil, errors.New("suite file is empty")
	}

	root := resolve(doc.Content[0])
	if root.Kind != yaml.MappingNode {
		return nil, errors.Newf("line %d: suite must be a mapping of test case ids", root.Line)
	}

	var cases []*Case
	for i := 0; i+1 < len(root.Content); i += 2 {
		c, err := parseCase(root.Content[i].Value, resolve(root.Content[i+1]))
		if err != nil {
			return nil, errors.Wrapf(err, "case %s", root.Content[i].Value)
		}
		cases = append(cases, c)
	}
	return cases, nil
}

func parseCase(id string, node *yaml.Node) (*Case, error) {
	if node.Kind != yaml.MappingNode {
		return nil, errors.Newf("line %d: test case must be a mapping", node.Line)
	}

	c := &Case{ID: id, Raw: ir.Object{}}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		value := resolve(node.Content[i+1])

		v, err := nodeValue(value)
		if err != nil {
			return nil, errors.Wrapf(err, "%s", key)
		}
		c.Keys = append(c.Keys, key)
		c.Raw[key] = v

		switch key {
		case KeySettings:
			c.Settings, _ = v.(ir.Object)
			if c.Settings == nil {
				c.Settings = ir.Object{}
			}
		case KeyPerson:
			c.Person, _ = v.(ir.Object)
		case KeyDocumentation:
			c.Documentation = v
		case KeyUnittests:
			if c.Unittests, err = parseUnittests(value); err != nil {
				return nil, err
			}
		case KeyMockup:
			if c.Events, err = parseEvents(value); err != nil {
				return nil, err
			}
		case KeyOptions:
			if c.Options, err = parseOptions(value); err != nil {
				return nil, err
			}
		}
	}
	return c, nil
}

func parseUnittests(node *yaml.Node) ([]Unittest, error) {
	if isNull(node) {
		return []Unittest{}, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, errors.Newf("line %d: unittests must be a mapping", node.Line)
	}
	units := make([]Unittest, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		v, err := nodeValue(resolve(node.Content[i+1]))
		if err != nil {
			return nil, errors.Wrapf(err, "unittests.%s", node.Content[i].Value)
		}
		units = append(units, Unittest{Name: node.Content[i].Value, Expected: v})
	}
	return units, nil
}

func parseEvents(node *yaml.Node) ([]Event, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, errors.Newf("line %d: mockup must be a list", node.Line)
	}

	events := make([]Event, 0, len(node.Content))
	for idx, item := range node.Content {
		item = resolve(item)
		if item.Kind != yaml.MappingNode || len(item.Content) != 2 {
			return nil, errors.Newf("line %d: mockup[%d] must map exactly one title to its attributes", item.Line, idx)
		}

		ev := Event{Index: idx, Title: item.Content[0].Value, Attributes: ir.Object{}}
		body := resolve(item.Content[1])
		if !isNull(body) {
			if body.Kind != yaml.MappingNode {
				return nil, errors.Newf("line %d: attributes of %s must be a mapping", body.Line, ev.Title)
			}
			for i := 0; i+1 < len(body.Content); i += 2 {
				key := body.Content[i].Value
				v, err := nodeValue(resolve(body.Content[i+1]))
				if err != nil {
					return nil, errors.Wrapf(err, "%s.%s", ev.Title, key)
				}
				if !ev.Attributes.Has(key) {
					ev.Order = append(ev.Order, key)
				}
				ev.Attributes[key] = v
			}
		}
		events = append(events, ev)
	}
	return events, nil
}

func parseOptions(node *yaml.Node) ([]Option, error) {
	if isNull(node) {
		return nil, nil
	}
	if node.Kind != yaml.SequenceNode {
		return nil, errors.Newf("line %d: options must be a list", node.Line)
	}

	var options []Option
	for idx, item := range node.Content {
		item = resolve(item)
		if item.Kind != yaml.MappingNode {
			return nil, errors.Newf("line %d: options[%d] must be a mapping", item.Line, idx)
		}
		for i := 0; i+1 < len(item.Content); i += 2 {
			v, err := nodeValue(resolve(item.Content[i+1]))
			if err != nil {
				return nil, errors.Wrapf(err, "options[%d]", idx)
			}
			overrides, _ := v.(ir.Object)
			if overrides == nil {
				overrides = ir.Object{}
			}
			options = append(options, Option{Alias: item.Content[i].Value, Overrides: overrides})
		}
	}
	return options, nil
}

// resolve follows YAML aliases to their anchored node.
func resolve(n *yaml.Node) *yaml.Node {
	for n.Kind == yaml.AliasNode && n.Alias != nil {
		n = n.Alias
	}
	return n
}

func isNull(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.ShortTag() == "!!null"
}

// nodeValue converts a node into a record value. Timestamps stay as their
// source text; dates are interpreted later by the interval package.
func nodeValue(n *yaml.Node) (ir.Value, error) {
	n = resolve(n)
	switch n.Kind {
	case yaml.ScalarNode:
		return scalarValue(n)
	case yaml.SequenceNode:
		list := make(ir.List, len(n.Content))
		for i, item := range n.Content {
			v, err := nodeValue(item)
			if err != nil {
				return nil, errors.Wrapf(err, "[%d]", i)
			}
			list[i] = v
		}
		return list, nil
	case yaml.MappingNode:
		obj := make(ir.Object, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v, err := nodeValue(n.Content[i+1])
			if err != nil {
				return nil, errors.Wrapf(err, "%s", n.Content[i].Value)
			}
			obj[n.Content[i].Value] = v
		}
		return obj, nil
	}
	return nil, errors.Newf("line %d: unsupported YAML node", n.Line)
}

func scalarValue(n *yaml.Node) (ir.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return ir.Null{}, nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, errors.Wrapf(err, "line %d", n.Line)
		}
		return ir.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err != nil {
			return nil, errors.Wrapf(err, "line %d", n.Line)
		}
		return ir.Int(i), nil
	case "!!float":
		f, err := strconv.ParseFloat(strings.ReplaceAll(n.Value, "_", ""), 64)
		if err != nil {
			var decoded float64
			if derr := n.Decode(&decoded); derr != nil {
				return nil, errors.Wrapf(derr, "line %d", n.Line)
			}
			f = decoded
		}
		return ir.Float(f), nil
	default:
		return ir.String(n.Value), nil
	}
}
