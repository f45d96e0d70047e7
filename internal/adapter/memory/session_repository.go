// Package memory provides an in-process SessionRepository for single-instance
// mode and the CLI.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/pscheid92/fontdiff/internal/domain"
)

type session struct {
	fontSet domain.FontSet
	diffs   map[string][]domain.DiffRecord
}

// SessionRepository keeps sessions and font bytes in maps guarded by a RWMutex.
// Stored and returned values are copies, so callers can't mutate stored state.
type SessionRepository struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*session
	files    map[string][]byte
}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		sessions: make(map[uuid.UUID]*session),
		files:    make(map[string][]byte),
	}
}

func (r *SessionRepository) Create(ctx context.Context, fontSet domain.FontSet, batch domain.DiffBatch) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[fontSet.SessionID]; exists {
		return domain.ErrSessionExists
	}

	for _, f := range fontSet.Fonts() {
		if len(f.Content) == 0 {
			continue
		}
		if _, ok := r.files[f.ContentRef]; !ok {
			r.files[f.ContentRef] = slices.Clone(f.Content)
		}
	}

	diffs := make(map[string][]domain.DiffRecord)
	for _, rec := range batch.Records {
		diffs[rec.View] = append(diffs[rec.View], copyRecord(rec))
	}

	r.sessions[fontSet.SessionID] = &session{fontSet: copyFontSet(fontSet), diffs: diffs}
	return nil
}

func (r *SessionRepository) GetFontSet(_ context.Context, sessionID uuid.UUID) (*domain.FontSet, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	fs := copyFontSet(s.fontSet)
	return &fs, nil
}

func (r *SessionRepository) GetDiffs(_ context.Context, sessionID uuid.UUID, view string) ([]domain.DiffRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, domain.ErrSessionNotFound
	}

	records := s.diffs[view]
	out := make([]domain.DiffRecord, 0, len(records))
	for _, rec := range records {
		out = append(out, copyRecord(rec))
	}
	return out, nil
}

func (r *SessionRepository) GetFontFile(_ context.Context, contentRef string) ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	data, ok := r.files[contentRef]
	if !ok {
		return nil, domain.ErrFontFileNotFound
	}
	return slices.Clone(data), nil
}

// copyFontSet drops font bytes; they are reachable through GetFontFile.
func copyFontSet(fs domain.FontSet) domain.FontSet {
	out := fs
	out.Before = copyFonts(fs.Before)
	out.After = copyFonts(fs.After)
	out.Gaps = slices.Clone(fs.Gaps)
	return out
}

func copyFonts(fonts []domain.Font) []domain.Font {
	if fonts == nil {
		return nil
	}
	out := make([]domain.Font, len(fonts))
	for i, f := range fonts {
		f.Content = nil
		out[i] = f
	}
	return out
}

func copyRecord(rec domain.DiffRecord) domain.DiffRecord {
	rec.Payload = slices.Clone(rec.Payload)
	return rec
}
