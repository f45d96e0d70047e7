package fontset

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/pscheid92/fontdiff/internal/domain"
	"golang.org/x/image/font/sfnt"
)

var errMissingFamily = errors.New("font has no family name")

// Normalize parses every file of the collection. Files that fail to parse are
// reported as gaps and left out; the remaining fonts keep input order.
func Normalize(files domain.RawCollection, side domain.Side) ([]domain.Font, []domain.Gap) {
	fonts := make([]domain.Font, 0, len(files))
	var gaps []domain.Gap

	for _, file := range files {
		f, err := ParseFont(file, side)
		if err != nil {
			gaps = append(gaps, domain.Gap{
				Side:   side,
				Name:   file.Name,
				Stage:  domain.GapStageParse,
				Reason: err.Error(),
			})
			continue
		}
		fonts = append(fonts, f)
	}
	return fonts, gaps
}

// ParseFont reads the name table of a single SFNT font file.
func ParseFont(file domain.RawFile, side domain.Side) (domain.Font, error) {
	if len(file.Data) == 0 {
		return domain.Font{}, errors.New("empty font file")
	}

	parsed, err := sfnt.Parse(file.Data)
	if err != nil {
		return domain.Font{}, fmt.Errorf("failed to parse font: %w", err)
	}

	var buf sfnt.Buffer
	family := firstName(parsed, &buf, sfnt.NameIDTypographicFamily, sfnt.NameIDFamily)
	if family == "" {
		return domain.Font{}, errMissingFamily
	}
	style := firstName(parsed, &buf, sfnt.NameIDTypographicSubfamily, sfnt.NameIDSubfamily)
	if style == "" {
		style = "Regular"
	}
	fullName := firstName(parsed, &buf, sfnt.NameIDFull)
	if fullName == "" {
		fullName = family + " " + style
	}

	return domain.Font{
		FamilyName: family,
		Style:      style,
		FullName:   fullName,
		Filename:   file.Name,
		ContentRef: ContentRef(file.Data),
		Size:       len(file.Data),
		Side:       side,
		Content:    file.Data,
	}, nil
}

// ContentRef is the content address of a font file.
func ContentRef(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

func firstName(f *sfnt.Font, buf *sfnt.Buffer, ids ...sfnt.NameID) string {
	for _, id := range ids {
		name, err := f.Name(buf, id)
		if err == nil && name != "" {
			return name
		}
	}
	return ""
}
