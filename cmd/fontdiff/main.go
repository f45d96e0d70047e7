package main

import (
	"fmt"
	"os"

	"github.com/pscheid92/fontdiff/internal/platform/version"
	"github.com/thatisuday/commando"
)

const defaultViews = "glyphs_new,glyphs_missing,glyphs_modified,metrics,kerns"

func main() {
	commando.
		SetExecutableName("fontdiff").
		SetVersion(version.Version).
		SetDescription("Compare two sets of font files without running the server.")

	commando.
		Register("compare").
		SetDescription("Match the fonts of two directories by family and style and diff every pair.").
		SetShortDescription("diff two font directories").
		AddArgument("before", "directory with the previous fonts", "").
		AddArgument("after", "directory with the new fonts", "").
		AddFlag("views,v", "comma separated list of views to compute", commando.String, defaultViews).
		AddFlag("limit,l", "maximum number of pairs diffed per view", commando.Int, 800).
		AddFlag("workers,w", "concurrent diff workers (0 uses GOMAXPROCS)", commando.Int, 0).
		AddFlag("json,j", "print the font set and diff records as JSON", commando.Bool, nil).
		SetAction(runCompareCommand)

	commando.
		Register("inspect").
		SetDescription("Print the normalized metadata fontdiff derives from a font file.").
		SetShortDescription("font metadata").
		AddArgument("font", "TrueType or OpenType font file", "").
		SetAction(runInspectCommand)

	commando.Parse(nil)
}

func mustFlagInt(flag commando.FlagValue, name string) int {
	n, err := flag.GetInt()
	if err != nil {
		fatalf("invalid --%s flag: %v", name, err)
	}
	return n
}

func mustFlagBool(flag commando.FlagValue, name string) bool {
	b, err := flag.GetBool()
	if err != nil {
		fatalf("invalid --%s flag: %v", name, err)
	}
	return b
}

func mustFlagString(flag commando.FlagValue, name string) string {
	s, err := flag.GetString()
	if err != nil {
		fatalf("invalid --%s flag: %v", name, err)
	}
	return s
}

func fatalf(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, "fontdiff: "+format+"\n", args...)
	os.Exit(1)
}
