package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/fontset"
	"github.com/pterm/pterm"
	"github.com/thatisuday/commando"
	"golang.org/x/image/font/sfnt"
)

func runInspectCommand(args map[string]commando.ArgValue, _ map[string]commando.FlagValue) {
	path := strings.TrimSpace(args["font"].Value)
	if path == "" {
		fatalf("font path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		fatalf("cannot read font: %v", err)
	}

	rows, err := inspectRows(domain.RawFile{Name: filepath.Base(path), Data: data})
	if err != nil {
		fatalf("%v", err)
	}
	_ = pterm.DefaultTable.WithData(rows).Render()
}

func inspectRows(file domain.RawFile) ([][]string, error) {
	f, err := fontset.ParseFont(file, domain.SideAfter)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}
	parsed, err := sfnt.Parse(file.Data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file.Name, err)
	}

	return [][]string{
		{"family", f.FamilyName},
		{"style", f.Style},
		{"full name", f.FullName},
		{"match key", fontset.KeyOf(f).String()},
		{"family from filename", fontset.FamilyFromFilename(file.Name)},
		{"glyphs", strconv.Itoa(parsed.NumGlyphs())},
		{"units per em", strconv.Itoa(int(parsed.UnitsPerEm()))},
		{"size", strconv.Itoa(f.Size)},
		{"content ref", f.ContentRef},
	}, nil
}
