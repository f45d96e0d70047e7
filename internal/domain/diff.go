package domain

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
)

// Views rendered by the consumer from the FontSet alone. They are valid
// view names but never carry diff records.
const (
	ViewEditor    = "editor"
	ViewWaterfall = "waterfall"
)

func IsReservedView(view string) bool {
	return view == ViewEditor || view == ViewWaterfall
}

// DiffStatus describes how a DiffRecord came to be.
type DiffStatus string

const (
	DiffStatusComputed      DiffStatus = "computed"
	DiffStatusMissingBefore DiffStatus = "missing_before"
	DiffStatusMissingAfter  DiffStatus = "missing_after"
	DiffStatusFailed        DiffStatus = "failed"
)

// PairIdentity names the fonts a DiffRecord was computed from.
type PairIdentity struct {
	Key    string `json:"key"`
	Before string `json:"before,omitempty"`
	After  string `json:"after,omitempty"`
}

// DiffRecord is the result of comparing one pair for one view. Payload is
// owned by the DiffEngine and opaque to the pipeline.
type DiffRecord struct {
	SessionID uuid.UUID       `json:"session_id"`
	View      string          `json:"view"`
	Position  int             `json:"position"`
	Pair      PairIdentity    `json:"pair"`
	Status    DiffStatus      `json:"status"`
	Error     string          `json:"error,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// DiffBatch holds every record of a session, ordered by view then pair.
type DiffBatch struct {
	SessionID uuid.UUID    `json:"session_id"`
	Records   []DiffRecord `json:"records"`
}

// ForView returns the records of a single view in pair order.
func (b *DiffBatch) ForView(view string) []DiffRecord {
	out := make([]DiffRecord, 0)
	for _, r := range b.Records {
		if r.View == view {
			out = append(out, r)
		}
	}
	return out
}

// DiffEngine is the black-box glyph/metrics comparison capability.
type DiffEngine interface {
	Views() []string
	ComputeDiff(ctx context.Context, before, after Font, view string) (json.RawMessage, error)
}
