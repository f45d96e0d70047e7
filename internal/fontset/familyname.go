package fontset

import (
	"path"
	"slices"
	"strings"
	"unicode"
)

// FamilyFromFilename derives a catalog family name from a font filename,
// e.g. "RobotoCondensed-BoldItalic.ttf" -> "Roboto Condensed".
func FamilyFromFilename(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, "\\", "/"))
	base = strings.TrimSuffix(base, path.Ext(base))
	if i := strings.IndexByte(base, '-'); i >= 0 {
		base = base[:i]
	}
	if i := strings.IndexByte(base, '['); i >= 0 {
		base = base[:i]
	}
	base = strings.ReplaceAll(base, "_", " ")

	runes := []rune(base)
	var b strings.Builder
	for i, r := range runes {
		if i > 0 && unicode.IsUpper(r) && wordBoundary(runes, i) {
			b.WriteByte(' ')
		}
		b.WriteRune(r)
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// wordBoundary reports whether the upper-case rune at i starts a new word.
// "PTSans" splits before the S, not between P and T.
func wordBoundary(runes []rune, i int) bool {
	prev := runes[i-1]
	if unicode.IsLower(prev) || unicode.IsDigit(prev) {
		return true
	}
	return unicode.IsUpper(prev) && i+1 < len(runes) && unicode.IsLower(runes[i+1])
}

// DistinctFamilies maps filenames to family names, dropping empty names and
// names whose NormalizeKey was already seen. The first spelling of a family
// is the one kept. The result is sorted by key so fetch order never depends
// on fetch completion.
func DistinctFamilies(filenames []string) []string {
	seen := make(map[string]bool, len(filenames))
	families := make([]string, 0, len(filenames))
	for _, name := range filenames {
		family := FamilyFromFilename(name)
		key := NormalizeKey(family)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		families = append(families, family)
	}
	slices.SortFunc(families, func(a, b string) int {
		return strings.Compare(NormalizeKey(a), NormalizeKey(b))
	})
	return families
}
