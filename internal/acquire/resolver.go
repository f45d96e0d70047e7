// Package acquire resolves acquisition requests into raw before/after font
// collections by talking to the catalog, a remote directory, or uploads.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"sort"

	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/fontset"
	"golang.org/x/sync/errgroup"
)

// Resolution is the raw outcome of resolving a request. Gaps lists catalog
// families that could not be fetched.
type Resolution struct {
	Before domain.RawCollection
	After  domain.RawCollection
	Gaps   []domain.Gap
}

type Resolver struct {
	catalog   domain.CatalogSource
	directory domain.DirectorySource
}

// NewResolver creates a resolver. directory may be nil, in which case remote
// directory requests are rejected.
func NewResolver(catalog domain.CatalogSource, directory domain.DirectorySource) *Resolver {
	return &Resolver{catalog: catalog, directory: directory}
}

// Resolve produces both raw collections for req. It never writes to the store.
func (r *Resolver) Resolve(ctx context.Context, req domain.Request) (*Resolution, error) {
	switch req := req.(type) {
	case domain.CatalogCompare:
		return r.resolveCatalog(ctx, req)
	case domain.RemoteDirectoryCompare:
		return r.resolveRemoteDirectory(ctx, req)
	case domain.DirectCompare:
		return r.resolveDirect(req)
	case nil:
		return nil, domain.NewAcquisitionError(domain.ReasonMalformedRequest, "missing request", nil)
	default:
		return nil, domain.NewAcquisitionError(domain.ReasonMalformedRequest, fmt.Sprintf("unknown request variant %T", req), nil)
	}
}

func (r *Resolver) resolveCatalog(ctx context.Context, req domain.CatalogCompare) (*Resolution, error) {
	if err := requireFiles(req.After, "fonts_after"); err != nil {
		return nil, err
	}

	before, gaps, err := r.fetchFamilies(ctx, fontset.DistinctFamilies(names(req.After)))
	if err != nil {
		return nil, err
	}
	return &Resolution{Before: before, After: req.After, Gaps: gaps}, nil
}

func (r *Resolver) resolveRemoteDirectory(ctx context.Context, req domain.RemoteDirectoryCompare) (*Resolution, error) {
	if req.RepoURL == "" {
		return nil, domain.NewAcquisitionError(domain.ReasonMalformedRequest, "missing repository url", nil)
	}
	if r.directory == nil {
		return nil, domain.NewAcquisitionError(domain.ReasonMalformedRequest, "remote directories are not supported", nil)
	}

	listing, err := r.directory.ListFontFiles(ctx, req.RepoURL)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, domain.NewAcquisitionError(domain.ReasonUnreachable, "failed to list "+req.RepoURL, err)
	}
	if len(listing) == 0 {
		return nil, domain.NewAcquisitionError(domain.ReasonEmptyListing, "no font files found at "+req.RepoURL, nil)
	}

	after := make(domain.RawCollection, len(listing))
	copy(after, listing)
	sort.SliceStable(after, func(i, j int) bool { return after[i].Name < after[j].Name })

	basenames := make([]string, len(after))
	for i, f := range after {
		basenames[i] = path.Base(f.Name)
	}

	before, gaps, err := r.fetchFamilies(ctx, fontset.DistinctFamilies(basenames))
	if err != nil {
		return nil, err
	}
	return &Resolution{Before: before, After: after, Gaps: gaps}, nil
}

func (r *Resolver) resolveDirect(req domain.DirectCompare) (*Resolution, error) {
	if err := requireFiles(req.Before, "fonts_before"); err != nil {
		return nil, err
	}
	if err := requireFiles(req.After, "fonts_after"); err != nil {
		return nil, err
	}
	return &Resolution{Before: req.Before, After: req.After}, nil
}

type fetchResult struct {
	file domain.RawFile
	err  error
}

// fetchFamilies downloads one catalog file per family, all families in
// parallel. Results keep the order of families; failed families become gaps.
// Only cancellation of ctx aborts the whole fetch.
func (r *Resolver) fetchFamilies(ctx context.Context, families []string) (domain.RawCollection, []domain.Gap, error) {
	if len(families) == 0 {
		return nil, nil, nil
	}

	results := make([]fetchResult, len(families))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(len(families))
	for i, family := range families {
		g.Go(func() error {
			file, err := r.catalog.FetchFamily(gctx, family)
			results[i] = fetchResult{file: file, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, nil, fmt.Errorf("catalog fetch cancelled: %w", err)
	}

	files := make(domain.RawCollection, 0, len(families))
	var gaps []domain.Gap
	for i, res := range results {
		if res.err != nil {
			level := slog.LevelWarn
			if errors.Is(res.err, domain.ErrFamilyNotFound) {
				level = slog.LevelInfo
			}
			slog.Log(ctx, level, "Catalog family unavailable", "family", families[i], "error", res.err)
			gaps = append(gaps, domain.Gap{
				Side:   domain.SideBefore,
				Name:   families[i],
				Stage:  domain.GapStageFetch,
				Reason: res.err.Error(),
			})
			continue
		}
		files = append(files, res.file)
	}
	return files, gaps, nil
}

// requireFiles only rejects a field without files. Empty or corrupt files
// are left to normalization, which records them as parse gaps.
func requireFiles(files domain.RawCollection, field string) error {
	if len(files) == 0 {
		return domain.NewAcquisitionError(domain.ReasonEmptyUpload, "no files uploaded in "+field, nil)
	}
	return nil
}

func names(files domain.RawCollection) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}
