package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/fontdiff/internal/domain"
)

const uniqueViolation = "23505"

// SessionRepo stores each session as a JSONB font set document, one JSONB row
// per diff record, and font bytes keyed by content reference.
type SessionRepo struct {
	pool *pgxpool.Pool
}

func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

func (r *SessionRepo) Create(ctx context.Context, fontSet domain.FontSet, batch domain.DiffBatch) error {
	document, err := json.Marshal(fontSet)
	if err != nil {
		return fmt.Errorf("failed to encode font set: %w", err)
	}

	rows := make([][]any, 0, len(batch.Records))
	for _, rec := range batch.Records {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to encode diff record: %w", err)
		}
		rows = append(rows, []any{fontSet.SessionID, rec.View, rec.Position, json.RawMessage(encoded)})
	}

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx,
		`INSERT INTO fontsets (session_id, document, created_at) VALUES ($1, $2, $3)`,
		fontSet.SessionID, json.RawMessage(document), fontSet.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return domain.ErrSessionExists
		}
		return fmt.Errorf("failed to insert font set: %w", err)
	}

	for _, f := range fontSet.Fonts() {
		if len(f.Content) == 0 {
			continue
		}
		_, err := tx.Exec(ctx,
			`INSERT INTO font_files (content_ref, data) VALUES ($1, $2) ON CONFLICT (content_ref) DO NOTHING`,
			f.ContentRef, f.Content)
		if err != nil {
			return fmt.Errorf("failed to insert font file %s: %w", f.Filename, err)
		}
	}

	if len(rows) > 0 {
		_, err = tx.CopyFrom(ctx,
			pgx.Identifier{"font_diffs"},
			[]string{"session_id", "view", "position", "record"},
			pgx.CopyFromRows(rows))
		if err != nil {
			return fmt.Errorf("failed to insert diff records: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit session: %w", err)
	}
	return nil
}

func (r *SessionRepo) GetFontSet(ctx context.Context, sessionID uuid.UUID) (*domain.FontSet, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	var document []byte
	err = conn.QueryRow(ctx, `SELECT document FROM fontsets WHERE session_id = $1`, sessionID).Scan(&document)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get font set: %w", err)
	}

	var fs domain.FontSet
	if err := json.Unmarshal(document, &fs); err != nil {
		return nil, fmt.Errorf("failed to decode font set: %w", err)
	}
	return &fs, nil
}

// GetDiffs left-joins the records onto the session row so that one query can
// tell a missing session from a view without records.
func (r *SessionRepo) GetDiffs(ctx context.Context, sessionID uuid.UUID, view string) ([]domain.DiffRecord, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	rows, err := conn.Query(ctx, `
		SELECT d.record
		FROM fontsets f
		LEFT JOIN font_diffs d ON d.session_id = f.session_id AND d.view = $2
		WHERE f.session_id = $1
		ORDER BY d.position`, sessionID, view)
	if err != nil {
		return nil, fmt.Errorf("failed to query diffs: %w", err)
	}

	encoded, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("failed to read diffs: %w", err)
	}
	if len(encoded) == 0 {
		return nil, domain.ErrSessionNotFound
	}

	records := make([]domain.DiffRecord, 0, len(encoded))
	for _, raw := range encoded {
		if raw == nil {
			continue
		}
		var rec domain.DiffRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode diff record: %w", err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (r *SessionRepo) GetFontFile(ctx context.Context, contentRef string) ([]byte, error) {
	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Release()

	var data []byte
	err = conn.QueryRow(ctx, `SELECT data FROM font_files WHERE content_ref = $1`, contentRef).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrFontFileNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get font file: %w", err)
	}
	return data, nil
}
