package template

import (
	"slices"
	"strings"
)

// Match is the outcome of matching a type token.
type Match struct {
	Template Template
	Score    float64
}

// Score pairs a template name with its similarity to a token.
type Score struct {
	Name  string
	Score float64
}

// Similarity is the Jaccard index of the underscore-delimited sub-token sets
// of a and b: |A ∩ B| / |A ∪ B|.
func Similarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)

	inter := 0
	for tok := range setA {
		if _, ok := setB[tok]; ok {
			inter++
		}
	}
	union := len(setA) + len(setB) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, tok := range strings.Split(s, "_") {
		set[tok] = struct{}{}
	}
	return set
}

// Match returns the template with the highest similarity to token. A match
// is always returned, even at score 0; ties go to the earliest registered
// template. Only an empty registry fails.
func (r *Registry) Match(token string) (Match, error) {
	if len(r.templates) == 0 {
		return Match{}, ErrEmptyRegistry
	}
	// "exam_lab" and "lab_exam" share a token set; the literal name wins.
	if t, ok := r.Lookup(token); ok {
		return Match{Template: t, Score: 1}, nil
	}

	best := Match{Template: r.templates[0], Score: Similarity(token, r.templates[0].Name)}
	for _, t := range r.templates[1:] {
		if s := Similarity(token, t.Name); s > best.Score {
			best = Match{Template: t, Score: s}
		}
	}
	return best, nil
}

// Scores returns every template's similarity to token, best first.
// Equal scores keep registration order.
func (r *Registry) Scores(token string) []Score {
	scores := make([]Score, len(r.templates))
	for i, t := range r.templates {
		scores[i] = Score{Name: t.Name, Score: Similarity(token, t.Name)}
	}
	slices.SortStableFunc(scores, func(a, b Score) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		}
		return 0
	})
	return scores
}
