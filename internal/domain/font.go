package domain

import (
	"time"

	"github.com/google/uuid"
)

// Side tags which half of a comparison a font belongs to.
type Side string

const (
	SideBefore Side = "before"
	SideAfter  Side = "after"
)

func (s Side) Valid() bool {
	return s == SideBefore || s == SideAfter
}

// RawFile is an unparsed font file as delivered by a source.
type RawFile struct {
	Name string
	Data []byte
}

// RawCollection is an ordered sequence of raw font files.
type RawCollection []RawFile

// Font is the canonical, parsed record of one font file.
// Content is carried in memory only; persisted records refer to it by ContentRef.
type Font struct {
	FamilyName string `json:"family_name"`
	Style      string `json:"style"`
	FullName   string `json:"full_name"`
	Filename   string `json:"filename"`
	ContentRef string `json:"content_ref"`
	Size       int    `json:"size"`
	Side       Side   `json:"side"`

	Content []byte `json:"-"`
}

// GapStage tells where a file or family dropped out of the pipeline.
type GapStage string

const (
	GapStageFetch GapStage = "fetch"
	GapStageParse GapStage = "parse"
)

// Gap records a font that could not be turned into a Font record.
type Gap struct {
	Side   Side     `json:"side"`
	Name   string   `json:"name"`
	Stage  GapStage `json:"stage"`
	Reason string   `json:"reason"`
}

// FontSet is the pair of before/after collections owned by one session.
type FontSet struct {
	SessionID uuid.UUID `json:"session_id"`
	Before    []Font    `json:"before"`
	After     []Font    `json:"after"`
	Gaps      []Gap     `json:"gaps"`
	CreatedAt time.Time `json:"created_at"`
}

// Fonts returns every font of the set, before side first.
func (fs *FontSet) Fonts() []Font {
	all := make([]Font, 0, len(fs.Before)+len(fs.After))
	all = append(all, fs.Before...)
	return append(all, fs.After...)
}

// MatchedPair is a before/after pairing; at most one side may be nil.
type MatchedPair struct {
	Before *Font
	After  *Font
}

func (p MatchedPair) Valid() bool {
	return p.Before != nil || p.After != nil
}

func (p MatchedPair) Complete() bool {
	return p.Before != nil && p.After != nil
}
