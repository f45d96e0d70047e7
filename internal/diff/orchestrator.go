// Package diff runs the diff capability over matched font pairs and
// assembles the per-session DiffBatch.
package diff

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"

	"github.com/google/uuid"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/fontset"
	"golang.org/x/sync/errgroup"
)

// Orchestrator computes diff records for every computed view.
type Orchestrator struct {
	engine  domain.DiffEngine
	views   []string
	limit   int
	workers int
}

// NewOrchestrator creates an orchestrator for the given views. Reserved views
// are dropped since they never carry records. limit caps the records kept per
// view; workers bounds concurrent engine calls (<= 0 means GOMAXPROCS).
func NewOrchestrator(engine domain.DiffEngine, views []string, limit, workers int) *Orchestrator {
	computed := make([]string, 0, len(views))
	for _, v := range views {
		if !domain.IsReservedView(v) {
			computed = append(computed, v)
		}
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Orchestrator{engine: engine, views: computed, limit: limit, workers: workers}
}

// ComputedViews returns the views that produce records, in batch order.
func (o *Orchestrator) ComputedViews() []string {
	return o.views
}

// Limit returns the maximum number of pairs diffed per view.
func (o *Orchestrator) Limit() int {
	return o.limit
}

type job struct {
	view     int
	position int
	pair     domain.MatchedPair
}

type result struct {
	view     int
	position int
	record   domain.DiffRecord
}

// Run diffs the pairs for every computed view. Only the first limit pairs are
// scheduled per view. Engine failures turn into failed records; only a
// cancelled ctx fails the run.
func (o *Orchestrator) Run(ctx context.Context, pairs []domain.MatchedPair, sessionID uuid.UUID) (domain.DiffBatch, error) {
	scheduled := len(pairs)
	if o.limit > 0 && scheduled > o.limit {
		scheduled = o.limit
		slog.InfoContext(ctx, "Diff limit reached, dropping pairs", "session_id", sessionID.String(), "pairs", len(pairs), "limit", o.limit)
	}

	grid := make([][]domain.DiffRecord, len(o.views))
	for v := range grid {
		grid[v] = make([]domain.DiffRecord, scheduled)
	}

	results := make(chan result)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.workers)

	go func() {
		defer close(results)
		for v := range o.views {
			for p := 0; p < scheduled; p++ {
				j := job{view: v, position: p, pair: pairs[p]}
				if gctx.Err() != nil {
					break
				}
				g.Go(func() error {
					rec := o.compute(gctx, sessionID, o.views[j.view], j.position, j.pair)
					select {
					case results <- result{view: j.view, position: j.position, record: rec}:
						return nil
					case <-gctx.Done():
						return gctx.Err()
					}
				})
			}
		}
		_ = g.Wait()
	}()

	// Single coordinator: only this loop writes into grid.
	for res := range results {
		grid[res.view][res.position] = res.record
	}

	if err := ctx.Err(); err != nil {
		return domain.DiffBatch{}, fmt.Errorf("diff run cancelled: %w", err)
	}

	batch := domain.DiffBatch{SessionID: sessionID, Records: make([]domain.DiffRecord, 0, len(o.views)*scheduled)}
	for v := range grid {
		batch.Records = append(batch.Records, grid[v]...)
	}
	return batch, nil
}

func (o *Orchestrator) compute(ctx context.Context, sessionID uuid.UUID, view string, position int, pair domain.MatchedPair) (rec domain.DiffRecord) {
	rec = domain.DiffRecord{
		SessionID: sessionID,
		View:      view,
		Position:  position,
		Pair:      identity(pair),
	}

	switch {
	case pair.Before == nil:
		rec.Status = domain.DiffStatusMissingBefore
		return rec
	case pair.After == nil:
		rec.Status = domain.DiffStatusMissingAfter
		return rec
	}

	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "Diff engine panicked", "session_id", sessionID.String(), "view", view, "pair", rec.Pair.Key, "panic", r)
			rec.Status = domain.DiffStatusFailed
			rec.Error = fmt.Sprintf("diff engine panic: %v", r)
			rec.Payload = nil
		}
	}()

	payload, err := o.engine.ComputeDiff(ctx, *pair.Before, *pair.After, view)
	if err != nil {
		slog.WarnContext(ctx, "Diff failed", "session_id", sessionID.String(), "view", view, "pair", rec.Pair.Key, "error", err)
		rec.Status = domain.DiffStatusFailed
		rec.Error = err.Error()
		return rec
	}

	rec.Status = domain.DiffStatusComputed
	rec.Payload = payload
	return rec
}

func identity(pair domain.MatchedPair) domain.PairIdentity {
	id := domain.PairIdentity{Key: fontset.PairKey(pair).String()}
	if pair.Before != nil {
		id.Before = pair.Before.FullName
	}
	if pair.After != nil {
		id.After = pair.After.FullName
	}
	return id
}
