package mocker

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/roach88/datamock/internal/ir"
	"github.com/roach88/datamock/internal/template"
	"github.com/roach88/datamock/internal/testcase"
)

// lowSimilarity is the score under which a template match is logged as suspicious.
const lowSimilarity = 0.5

// typeToken returns the last segment of a dotted table id. Titles need at
// least three non-empty segments (project.dataset.table).
func typeToken(title string) (string, error) {
	parts := strings.Split(title, ".")
	if len(parts) < 3 {
		return "", ErrInvalidTitle
	}
	for _, p := range parts {
		if strings.TrimSpace(p) == "" {
			return "", ErrInvalidTitle
		}
	}
	return parts[len(parts)-1], nil
}

// expand instantiates the matched template once, or once per parent, and
// stores every produced snapshot.
func (b *build) expand(ev testcase.Event, token string, tree ir.Object) error {
	match, err := b.registry.Match(token)
	if err != nil {
		return buildError(ErrCodeRegistry, ev.Title, "", err, "no template for %q", token)
	}
	if match.Score < lowSimilarity {
		b.logger.Warn("low similarity template match",
			"event", ev.Title,
			"token", token,
			"template", match.Template.Name,
			"similarity", match.Score,
		)
	}

	overrides, err := b.overrides(ev, tree)
	if err != nil {
		return err
	}

	raw, hasParents := tree[fieldParents]
	if !hasParents {
		key := fmt.Sprintf("row_%d.%s", ev.Index+1, token)
		return b.instantiate(ev, match, token, key, tree, nil, overrides)
	}

	refs, err := parentRefs(raw)
	if err != nil {
		return buildError(ErrCodeShape, ev.Title, fieldParents, err, "parents must be a list of key prefixes")
	}

	// Every parent must resolve before any instance is produced.
	parents := make([]ir.Object, 0, len(refs))
	for _, ref := range refs {
		key, snap, ok := b.store.Find(ref)
		if !ok {
			return buildError(ErrCodeReference, ev.Title, ref, ErrParentNotFound,
				"no stored instance starts with %q", ref)
		}
		b.logger.Debug("parent resolved", "event", ev.Title, "prefix", ref, "key", key)
		parents = append(parents, snap)
	}

	for _, parent := range parents {
		b.inherited++
		key := fmt.Sprintf("row_parent_%d.%s", b.inherited, token)
		if err := b.instantiate(ev, match, token, key, tree, parent, overrides); err != nil {
			return err
		}
	}
	return nil
}

func (b *build) instantiate(
	ev testcase.Event,
	match template.Match,
	token, key string,
	tree, parent, overrides ir.Object,
) error {
	entity, err := match.Template.Instantiate(template.Input{
		Tree:   tree,
		Person: b.person,
		Parent: parent,
		Gen:    b.gen,
	}, ev.Title, token)
	if err != nil {
		return buildError(ErrCodeTemplate, ev.Title, key, err, "cannot instantiate %s", match.Template.Name)
	}

	snap := entity.Snapshot()
	for field, v := range overrides {
		if snap.Has(field) {
			snap[field] = ir.Clone(v)
		}
	}

	if err := b.store.Put(key, snap); err != nil {
		return buildError(ErrCodeStore, ev.Title, key, err, "cannot store instance")
	}
	b.logger.Info("mocked "+token,
		"key", key,
		"title", ev.Title,
		"template", match.Template.Name,
		"similarity", match.Score,
	)
	return nil
}

// overrides returns the option fields an event selects with options: <alias>.
// table_name and main_name are never overridden.
func (b *build) overrides(ev testcase.Event, tree ir.Object) (ir.Object, error) {
	v, ok := tree[fieldOptions]
	if !ok || ir.IsNull(v) {
		return nil, nil
	}
	alias := ir.Text(v)
	found, ok := b.tc.Option(alias)
	if !ok {
		return nil, buildError(ErrCodeConfig, ev.Title, fieldOptions, nil, "unknown options alias %q", alias)
	}
	out := found.Clone()
	delete(out, template.FieldTableName)
	delete(out, template.FieldMainName)
	return out, nil
}

// parentRefs accepts a list of prefixes or a single prefix string.
func parentRefs(v ir.Value) ([]string, error) {
	switch p := v.(type) {
	case ir.String:
		return []string{string(p)}, nil
	case ir.List:
		refs := make([]string, 0, len(p))
		for i, el := range p {
			s, ok := el.(ir.String)
			if !ok || s == "" {
				return nil, errors.Newf("parents[%d] is not a key prefix", i)
			}
			refs = append(refs, string(s))
		}
		return refs, nil
	case ir.Null:
		return nil, nil
	}
	return nil, errors.Newf("unexpected %T", v)
}
