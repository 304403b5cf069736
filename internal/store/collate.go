package store

import (
	"sort"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// sortByName orders rows by name using Brazilian Portuguese collation, so
// accented and lowercase names sort alongside their base letters whatever the
// backing database's ORDER BY does. A Collator is not safe for concurrent use,
// so each call builds its own.
func sortByName[T any](rows []T, name func(T) string) {
	c := collate.New(language.BrazilianPortuguese)
	sort.SliceStable(rows, func(i, j int) bool {
		return c.CompareString(name(rows[i]), name(rows[j])) < 0
	})
}
