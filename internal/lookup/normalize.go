package lookup

import (
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Fold lowercases a fragment and strips diacritics so "João" and "joao"
// share one cache and singleflight key. The fragment sent to the backend is
// the original; matching is the backend's job.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		return strings.ToLower(s)
	}
	return strings.ToLower(out)
}

// sortByName orders candidates by display name under Brazilian Portuguese
// collation, so accented names land where a pt-BR reader expects them.
// collate.Collator carries internal buffers, hence one per call.
func sortByName[T any](items []T, name func(T) string) {
	c := collate.New(language.BrazilianPortuguese, collate.IgnoreCase)
	sort.SliceStable(items, func(i, j int) bool {
		return c.CompareString(name(items[i]), name(items[j])) < 0
	})
}
