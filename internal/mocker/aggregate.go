package mocker

import (
	"github.com/roach88/datamock/internal/dataset"
)

// Aggregate groups the stored instances by type token, one dataset per
// token in the given order. Rows keep store insertion order. A token with no
// stored instance yields an empty dataset. The store is only read, so
// aggregating twice gives identical datasets.
func Aggregate(store *InstanceStore, tokens []string) map[string]*dataset.Dataset {
	out := make(map[string]*dataset.Dataset, len(tokens))
	for _, token := range tokens {
		if _, done := out[token]; done {
			continue
		}
		out[token] = dataset.New(token, store.ByType(token))
	}
	return out
}
