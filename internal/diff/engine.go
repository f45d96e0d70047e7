package diff

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"unicode/utf8"

	"github.com/pscheid92/fontdiff/internal/domain"
	"golang.org/x/image/font"
	"golang.org/x/image/font/sfnt"
	"golang.org/x/image/math/fixed"
)

// Views computed by SFNTEngine.
const (
	ViewGlyphsNew      = "glyphs_new"
	ViewGlyphsMissing  = "glyphs_missing"
	ViewGlyphsModified = "glyphs_modified"
	ViewMetrics        = "metrics"
	ViewKerns          = "kerns"
)

// All coordinates are reported in thousandths of an em so fonts with
// different unitsPerEm compare directly.
const unitsPerEm = 1000

var emScale = fixed.I(unitsPerEm)

// scanning stops after the BMP; surrogates are skipped.
const (
	firstRune = 0x20
	lastRune  = 0xFFFF
)

const kernAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"

// Item is one entry of a diff payload.
type Item struct {
	Codepoint string `json:"codepoint,omitempty"`
	Glyph     string `json:"glyph"`
	Before    int    `json:"before"`
	After     int    `json:"after"`
	Delta     int    `json:"delta"`
}

// Payload is the JSON document stored in DiffRecord.Payload.
type Payload struct {
	View  string `json:"view"`
	Count int    `json:"count"`
	Items []Item `json:"items"`
}

// SFNTEngine compares glyph coverage, outlines, advances and kerning of two
// TrueType/OpenType fonts.
type SFNTEngine struct{}

func NewSFNTEngine() *SFNTEngine {
	return &SFNTEngine{}
}

func (e *SFNTEngine) Views() []string {
	return []string{ViewGlyphsNew, ViewGlyphsMissing, ViewGlyphsModified, ViewMetrics, ViewKerns}
}

func (e *SFNTEngine) ComputeDiff(ctx context.Context, before, after domain.Font, view string) (json.RawMessage, error) {
	b, err := load(before)
	if err != nil {
		return nil, err
	}
	a, err := load(after)
	if err != nil {
		return nil, err
	}

	var items []Item
	switch view {
	case ViewGlyphsNew:
		items, err = coverageDiff(ctx, b, a)
	case ViewGlyphsMissing:
		items, err = coverageDiff(ctx, a, b)
		for i := range items {
			items[i].Before, items[i].After = items[i].After, items[i].Before
			items[i].Delta = -items[i].Delta
		}
	case ViewGlyphsModified:
		items, err = outlineDiff(ctx, b, a)
	case ViewMetrics:
		items, err = advanceDiff(ctx, b, a)
	case ViewKerns:
		items, err = kernDiff(b, a)
	default:
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedView, view)
	}
	if err != nil {
		return nil, err
	}

	if items == nil {
		items = []Item{}
	}
	encoded, err := json.Marshal(Payload{View: view, Count: len(items), Items: items})
	if err != nil {
		return nil, fmt.Errorf("failed to encode %s payload: %w", view, err)
	}
	return encoded, nil
}

type loadedFont struct {
	name string
	f    *sfnt.Font
	buf  sfnt.Buffer
}

func load(f domain.Font) (*loadedFont, error) {
	if len(f.Content) == 0 {
		return nil, fmt.Errorf("font %q has no content loaded", f.FullName)
	}
	parsed, err := sfnt.Parse(f.Content)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", f.FullName, err)
	}
	return &loadedFont{name: f.FullName, f: parsed}, nil
}

func (l *loadedFont) glyph(r rune) sfnt.GlyphIndex {
	x, err := l.f.GlyphIndex(&l.buf, r)
	if err != nil {
		return 0
	}
	return x
}

// coverage returns every mapped rune in scan order.
func (l *loadedFont) coverage(ctx context.Context) ([]rune, map[rune]sfnt.GlyphIndex, error) {
	order := make([]rune, 0, 1024)
	mapped := make(map[rune]sfnt.GlyphIndex, 1024)
	for r := rune(firstRune); r <= lastRune; r++ {
		if r&0xFFF == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}
		if !utf8.ValidRune(r) {
			continue
		}
		if x := l.glyph(r); x != 0 {
			order = append(order, r)
			mapped[r] = x
		}
	}
	return order, mapped, nil
}

func (l *loadedFont) advance(x sfnt.GlyphIndex) (int, error) {
	adv, err := l.f.GlyphAdvance(&l.buf, x, emScale, font.HintingNone)
	if err != nil {
		return 0, fmt.Errorf("advance of glyph %d in %q: %w", x, l.name, err)
	}
	return adv.Round(), nil
}

// outline returns the glyph's segments rounded to em thousandths.
func (l *loadedFont) outline(x sfnt.GlyphIndex) ([]int, error) {
	segs, err := l.f.LoadGlyph(&l.buf, x, emScale, nil)
	if err != nil {
		return nil, fmt.Errorf("outline of glyph %d in %q: %w", x, l.name, err)
	}
	sig := make([]int, 0, len(segs)*7)
	for _, s := range segs {
		sig = append(sig, int(s.Op))
		for _, p := range s.Args {
			sig = append(sig, p.X.Round(), p.Y.Round())
		}
	}
	return sig, nil
}

// coverageDiff lists runes mapped in to but not in from.
func coverageDiff(ctx context.Context, from, to *loadedFont) ([]Item, error) {
	_, fromMap, err := from.coverage(ctx)
	if err != nil {
		return nil, err
	}
	toOrder, toMap, err := to.coverage(ctx)
	if err != nil {
		return nil, err
	}

	var items []Item
	for _, r := range toOrder {
		if _, ok := fromMap[r]; ok {
			continue
		}
		adv, err := to.advance(toMap[r])
		if err != nil {
			return nil, err
		}
		items = append(items, Item{Codepoint: codepoint(r), Glyph: string(r), After: adv, Delta: adv})
	}
	return items, nil
}

func outlineDiff(ctx context.Context, before, after *loadedFont) ([]Item, error) {
	return sharedGlyphDiff(ctx, before, after, func(b, a sfnt.GlyphIndex) (Item, bool, error) {
		bSig, err := before.outline(b)
		if err != nil {
			return Item{}, false, err
		}
		aSig, err := after.outline(a)
		if err != nil {
			return Item{}, false, err
		}
		if slices.Equal(bSig, aSig) {
			return Item{}, false, nil
		}
		bSegs, aSegs := len(bSig)/7, len(aSig)/7
		return Item{Before: bSegs, After: aSegs, Delta: aSegs - bSegs}, true, nil
	})
}

func advanceDiff(ctx context.Context, before, after *loadedFont) ([]Item, error) {
	return sharedGlyphDiff(ctx, before, after, func(b, a sfnt.GlyphIndex) (Item, bool, error) {
		bAdv, err := before.advance(b)
		if err != nil {
			return Item{}, false, err
		}
		aAdv, err := after.advance(a)
		if err != nil {
			return Item{}, false, err
		}
		if bAdv == aAdv {
			return Item{}, false, nil
		}
		return Item{Before: bAdv, After: aAdv, Delta: aAdv - bAdv}, true, nil
	})
}

// sharedGlyphDiff runs cmp for every rune both fonts map, in rune order.
func sharedGlyphDiff(ctx context.Context, before, after *loadedFont, cmp func(b, a sfnt.GlyphIndex) (Item, bool, error)) ([]Item, error) {
	order, bMap, err := before.coverage(ctx)
	if err != nil {
		return nil, err
	}
	var items []Item
	for _, r := range order {
		a := after.glyph(r)
		if a == 0 {
			continue
		}
		item, changed, err := cmp(bMap[r], a)
		if err != nil {
			return nil, err
		}
		if changed {
			item.Codepoint = codepoint(r)
			item.Glyph = string(r)
			items = append(items, item)
		}
	}
	return items, nil
}

func kernDiff(before, after *loadedFont) ([]Item, error) {
	var items []Item
	for _, left := range kernAlphabet {
		for _, right := range kernAlphabet {
			bVal, err := before.kern(left, right)
			if err != nil {
				return nil, err
			}
			aVal, err := after.kern(left, right)
			if err != nil {
				return nil, err
			}
			if bVal != aVal {
				items = append(items, Item{Glyph: string([]rune{left, right}), Before: bVal, After: aVal, Delta: aVal - bVal})
			}
		}
	}
	return items, nil
}

// kern returns 0 for unmapped runes and fonts without a kern table.
func (l *loadedFont) kern(left, right rune) (int, error) {
	x0, x1 := l.glyph(left), l.glyph(right)
	if x0 == 0 || x1 == 0 {
		return 0, nil
	}
	k, err := l.f.Kern(&l.buf, x0, x1, emScale, font.HintingNone)
	if errors.Is(err, sfnt.ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("kerning %c%c in %q: %w", left, right, l.name, err)
	}
	return k.Round(), nil
}

func codepoint(r rune) string {
	return fmt.Sprintf("U+%04X", r)
}
