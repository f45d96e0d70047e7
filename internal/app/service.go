package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/fontdiff/internal/acquire"
	"github.com/pscheid92/fontdiff/internal/adapter/metrics"
	"github.com/pscheid92/fontdiff/internal/diff"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/fontset"
	"github.com/pscheid92/fontdiff/internal/platform/correlation"
)

const (
	outcomeOK       = "ok"
	outcomeRejected = "rejected"
	outcomeFailed   = "failed"
)

// SubmitResult describes a persisted session.
type SubmitResult struct {
	SessionID uuid.UUID
	FontSet   domain.FontSet
	Pairs     []domain.MatchedPair
	Batch     domain.DiffBatch
}

// Info is the short summary of a session served to API clients.
type Info struct {
	SessionID uuid.UUID `json:"uuid"`
	Fonts     []string  `json:"fonts"`
}

// Service is the application layer and the only component that references multiple
// domain components. It orchestrates all use cases.
type Service struct {
	resolver     *acquire.Resolver
	orchestrator *diff.Orchestrator
	store        domain.SessionRepository
	views        []string
	clock        clockwork.Clock
	metrics      *metrics.PipelineMetrics
}

// NewService creates the application layer service. views is the full VIEWS
// list including reserved views. pm may be nil.
func NewService(resolver *acquire.Resolver, orchestrator *diff.Orchestrator, store domain.SessionRepository, views []string, clock clockwork.Clock, pm *metrics.PipelineMetrics) *Service {
	return &Service{
		resolver:     resolver,
		orchestrator: orchestrator,
		store:        store,
		views:        views,
		clock:        clock,
		metrics:      pm,
	}
}

// Views returns the configured views in order, reserved views included.
func (s *Service) Views() []string {
	return s.views
}

// HasView reports whether view is one of the configured views.
func (s *Service) HasView(view string) bool {
	return slices.Contains(s.views, view)
}

// DiffLimit returns the number of pairs diffed per view.
func (s *Service) DiffLimit() int {
	return s.orchestrator.Limit()
}

// Submit runs a request through the whole pipeline and persists the session.
// Nothing is stored unless every stage succeeded.
func (s *Service) Submit(ctx context.Context, req domain.Request) (*SubmitResult, error) {
	start := s.clock.Now()
	variant := "unknown"
	if req != nil {
		variant = req.Variant()
	}

	res, err := s.submit(ctx, req)
	outcome := outcomeOK
	var acqErr *domain.AcquisitionError
	switch {
	case errors.As(err, &acqErr):
		outcome = outcomeRejected
	case err != nil:
		outcome = outcomeFailed
	}
	s.metrics.ObserveSubmission(variant, outcome, s.clock.Since(start))

	if err != nil {
		return nil, err
	}
	return res, nil
}

func (s *Service) submit(ctx context.Context, req domain.Request) (*SubmitResult, error) {
	resolution, err := s.resolver.Resolve(ctx, req)
	if err != nil {
		return nil, err
	}

	sessionID := uuid.New()
	ctx = correlation.WithSessionID(ctx, sessionID.String())
	logger := slog.With("variant", req.Variant())

	before, beforeGaps := fontset.Normalize(resolution.Before, domain.SideBefore)
	after, afterGaps := fontset.Normalize(resolution.After, domain.SideAfter)

	gaps := make([]domain.Gap, 0, len(resolution.Gaps)+len(beforeGaps)+len(afterGaps))
	gaps = append(gaps, resolution.Gaps...)
	gaps = append(gaps, beforeGaps...)
	gaps = append(gaps, afterGaps...)
	for _, g := range gaps {
		s.metrics.ObserveGap(string(g.Side), string(g.Stage))
	}

	if len(before) == 0 && len(after) == 0 {
		return nil, domain.NewAcquisitionError(domain.ReasonNoFonts, "no font could be resolved on either side", nil)
	}
	if len(before) == 0 || len(after) == 0 {
		logger.InfoContext(ctx, "One side resolved no fonts, continuing with gaps", "before", len(before), "after", len(after), "gaps", len(gaps))
	}

	pairs := fontset.Match(before, after)

	batch, err := s.orchestrator.Run(ctx, pairs, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to compute diffs: %w", err)
	}
	for _, rec := range batch.Records {
		s.metrics.ObserveRecord(rec.View, string(rec.Status))
	}

	fs := domain.FontSet{
		SessionID: sessionID,
		Before:    before,
		After:     after,
		Gaps:      gaps,
		CreatedAt: s.clock.Now().UTC(),
	}

	if err := s.store.Create(ctx, fs, batch); err != nil {
		return nil, fmt.Errorf("failed to persist session: %w", err)
	}

	logger.InfoContext(ctx, "Session created", "before", len(before), "after", len(after), "pairs", len(pairs), "records", len(batch.Records), "gaps", len(gaps))
	return &SubmitResult{SessionID: sessionID, FontSet: fs, Pairs: pairs, Batch: batch}, nil
}

// ReadFontSet returns the stored FontSet of a session.
func (s *Service) ReadFontSet(ctx context.Context, sessionID uuid.UUID) (*domain.FontSet, error) {
	return s.store.GetFontSet(ctx, sessionID)
}

// ReadDiffs returns the records of one view in pair order. Reserved views
// always return an empty slice for an existing session.
func (s *Service) ReadDiffs(ctx context.Context, sessionID uuid.UUID, view string) ([]domain.DiffRecord, error) {
	return s.store.GetDiffs(ctx, sessionID, view)
}

// ReadFontFile returns the stored bytes of a font by content reference.
func (s *Service) ReadFontFile(ctx context.Context, contentRef string) ([]byte, error) {
	return s.store.GetFontFile(ctx, contentRef)
}

// Info summarizes a session by the full names of its after fonts.
func (s *Service) Info(ctx context.Context, sessionID uuid.UUID) (*Info, error) {
	fs, err := s.store.GetFontSet(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(fs.After))
	for _, f := range fs.After {
		names = append(names, f.FullName)
	}
	return &Info{SessionID: sessionID, Fonts: names}, nil
}
