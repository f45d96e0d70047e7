package fontset

import (
	"strings"

	"github.com/pscheid92/fontdiff/internal/domain"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Key is the normalized (family, style) identity of a font.
type Key struct {
	Family string
	Style  string
}

func (k Key) String() string {
	return k.Family + "/" + k.Style
}

// KeyOf returns the identity key of f.
func KeyOf(f domain.Font) Key {
	return Key{Family: NormalizeKey(f.FamilyName), Style: NormalizeKey(f.Style)}
}

// NormalizeKey applies NFKC, Unicode case folding and whitespace collapsing.
// Punctuation is kept as is.
func NormalizeKey(s string) string {
	// cases.Caser keeps state, so a fresh one per call keeps this safe for concurrent use.
	folded := cases.Fold().String(norm.NFKC.String(s))
	return strings.Join(strings.Fields(folded), " ")
}
