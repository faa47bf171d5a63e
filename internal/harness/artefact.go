package harness

import (
	"regexp"
	"slices"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrUnknownParam is returned when artefact SQL names a ${param} that is
// neither configured nor a build variable.
var ErrUnknownParam = errors.New("unknown query parameter")

var placeholder = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Render prepares artefact SQL for the sink.
//
// ${name} placeholders are replaced from vars, matched case-insensitively.
// Every mocked table title ("project.dataset.table", optionally
// backquoted) is rewritten to "<schema>.<table>" so the query reads the
// generated datasets, except titles listed in persist.
func Render(sql string, vars map[string]string, titles []string, schema string, persist []string) (string, error) {
	lower := make(map[string]string, len(vars))
	for k, v := range vars {
		lower[strings.ToLower(k)] = v
	}

	var missing []string
	out := placeholder.ReplaceAllStringFunc(sql, func(m string) string {
		name := strings.ToLower(placeholder.FindStringSubmatch(m)[1])
		v, ok := lower[name]
		if !ok {
			missing = append(missing, m)
			return m
		}
		return v
	})
	if len(missing) > 0 {
		return "", errors.WithHint(
			errors.Wrapf(ErrUnknownParam, "%s", strings.Join(missing, ", ")),
			"declare the parameter under query.params in config.yaml",
		)
	}

	// Longest first, so a title never rewrites part of a longer one.
	ordered := slices.Clone(titles)
	slices.SortFunc(ordered, func(a, b string) int {
		if d := len(b) - len(a); d != 0 {
			return d
		}
		return strings.Compare(a, b)
	})
	for _, title := range slices.Compact(ordered) {
		if slices.Contains(persist, title) {
			continue
		}
		token := title[strings.LastIndex(title, ".")+1:]
		q := regexp.QuoteMeta(title)
		re := regexp.MustCompile("`" + q + "`|" + q + `\b`)
		out = re.ReplaceAllLiteralString(out, schema+"."+token)
	}
	return out, nil
}
