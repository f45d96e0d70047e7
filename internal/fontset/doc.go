// Package fontset turns raw font files into canonical Font records and pairs
// the before and after collections of a comparison.
//
// Identity of a font is its (family, style) key. Both the normalizer and the
// matcher derive that key through NormalizeKey, so a font uploaded as
// "Roboto  Bold" and one published as "ROBOTO bold" land on the same key.
package fontset
