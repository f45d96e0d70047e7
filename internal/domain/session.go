package domain

import (
	"context"

	"github.com/google/uuid"
)

// SessionRepository persists a session's FontSet and DiffBatch.
type SessionRepository interface {
	// Create writes both records atomically. Nothing is stored on failure.
	Create(ctx context.Context, fontSet FontSet, batch DiffBatch) error

	// Session queries

	GetFontSet(ctx context.Context, sessionID uuid.UUID) (*FontSet, error)
	// GetDiffs returns an empty slice if the session exists without records
	// for the view, and ErrSessionNotFound if the session does not exist.
	GetDiffs(ctx context.Context, sessionID uuid.UUID, view string) ([]DiffRecord, error)
	GetFontFile(ctx context.Context, contentRef string) ([]byte, error)
}
