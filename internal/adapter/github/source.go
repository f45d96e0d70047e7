// Package github lists and downloads the fonts of a GitHub repository
// directory through the REST API.
package github

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"sort"
	"strings"
	"time"

	gh "github.com/google/go-github/v66/github"
	"github.com/pscheid92/fontdiff/internal/domain"
	"github.com/pscheid92/fontdiff/internal/platform/retry"
	"github.com/pscheid92/fontdiff/internal/platform/version"
	"golang.org/x/sync/errgroup"
)

const (
	maxFontSize         = 32 << 20
	maxFiles            = 200
	downloadWorkers     = 4
	defaultAPIURL       = "https://api.github.com"
	retryInitialBackoff = 250 * time.Millisecond
)

type Config struct {
	APIURL  string
	Token   string
	Timeout time.Duration
	Retry   retry.Policy
}

// Source implements domain.DirectorySource.
type Source struct {
	client *gh.Client
	policy retry.Policy
}

var _ domain.DirectorySource = (*Source)(nil)

func NewSource(cfg Config) (*Source, error) {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	baseURL, err := url.Parse(apiURL + "/")
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL: %w", err)
	}

	client := gh.NewClient(&http.Client{Timeout: cfg.Timeout})
	if cfg.Token != "" {
		client = client.WithAuthToken(cfg.Token)
	}
	client.BaseURL = baseURL
	client.UserAgent = version.UserAgent()

	policy := cfg.Retry
	if policy.MaxAttempts <= 0 {
		policy = retry.Policy{
			MaxAttempts:      3,
			InitialBackoff:   retryInitialBackoff,
			RateLimitBackoff: 5 * time.Second,
			MaxBackoff:       5 * time.Second,
		}
	}
	return &Source{client: client, policy: policy}, nil
}

// Location is a parsed repository URL. File is set for blob URLs and names
// the single font to compare; Dir is then its directory.
type Location struct {
	Owner string
	Repo  string
	Ref   string
	Dir   string
	File  string
}

// ParseRepoURL accepts https://github.com/<owner>/<repo>[/tree/<ref>[/<dir>]]
// and https://github.com/<owner>/<repo>/blob/<ref>/<font file>. An empty Ref
// means the default branch. Refs containing "/" are not supported: the
// segment after tree or blob is always taken as the whole ref.
func ParseRepoURL(raw string) (Location, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return Location{}, fmt.Errorf("%w: %v", domain.ErrSourceUnreachable, err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return Location{}, fmt.Errorf("%w: unsupported URL %q", domain.ErrSourceUnreachable, raw)
	}
	if host := strings.TrimPrefix(strings.ToLower(u.Host), "www."); host != "github.com" {
		return Location{}, fmt.Errorf("%w: not a GitHub URL %q", domain.ErrSourceUnreachable, raw)
	}

	parts := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })
	if len(parts) < 2 {
		return Location{}, fmt.Errorf("%w: missing owner or repository in %q", domain.ErrSourceUnreachable, raw)
	}

	loc := Location{Owner: parts[0], Repo: strings.TrimSuffix(parts[1], ".git")}
	rest := parts[2:]
	if len(rest) == 0 {
		return loc, nil
	}
	if len(rest) < 2 {
		return Location{}, fmt.Errorf("%w: unsupported repository path %q", domain.ErrSourceUnreachable, u.Path)
	}
	loc.Ref = rest[1]
	target := strings.Join(rest[2:], "/")

	switch rest[0] {
	case "tree":
		loc.Dir = target
	case "blob":
		if !isFontPath(target) {
			return Location{}, fmt.Errorf("%w: %q is not a .ttf or .otf file", domain.ErrSourceUnreachable, target)
		}
		loc.File = target
		if dir := path.Dir(target); dir != "." {
			loc.Dir = dir
		}
	default:
		return Location{}, fmt.Errorf("%w: unsupported repository path %q", domain.ErrSourceUnreachable, u.Path)
	}
	return loc, nil
}

func isFontPath(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	return ext == ".ttf" || ext == ".otf"
}

type blob struct {
	path string
	sha  string
}

// ListFontFiles downloads every .ttf/.otf below the directory, ordered by path.
func (s *Source) ListFontFiles(ctx context.Context, repoURL string) ([]domain.RawFile, error) {
	loc, err := ParseRepoURL(repoURL)
	if err != nil {
		return nil, err
	}

	if loc.Ref == "" {
		if loc.Ref, err = s.defaultBranch(ctx, loc); err != nil {
			return nil, err
		}
	}

	blobs, err := s.fontBlobs(ctx, loc)
	if err != nil {
		return nil, err
	}

	files := make([]domain.RawFile, len(blobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(downloadWorkers)
	for i, b := range blobs {
		g.Go(func() error {
			data, err := call(gctx, s.policy, func() ([]byte, *gh.Response, error) {
				return s.client.Git.GetBlobRaw(gctx, loc.Owner, loc.Repo, b.sha)
			})
			if err != nil {
				return err
			}
			files[i] = domain.RawFile{Name: b.path, Data: data}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "Listed repository fonts", "owner", loc.Owner, "repo", loc.Repo, "ref", loc.Ref, "dir", loc.Dir, "fonts", len(files))
	return files, nil
}

func (s *Source) defaultBranch(ctx context.Context, loc Location) (string, error) {
	repo, err := call(ctx, s.policy, func() (*gh.Repository, *gh.Response, error) {
		return s.client.Repositories.Get(ctx, loc.Owner, loc.Repo)
	})
	if err != nil {
		return "", err
	}
	if repo.GetDefaultBranch() == "" {
		return "", fmt.Errorf("%w: repository %s/%s has no default branch", domain.ErrSourceUnreachable, loc.Owner, loc.Repo)
	}
	return repo.GetDefaultBranch(), nil
}

// fontBlobs walks the recursive tree of loc.Ref and keeps the fonts below
// loc.Dir, or exactly loc.File for blob URLs.
func (s *Source) fontBlobs(ctx context.Context, loc Location) ([]blob, error) {
	tree, err := call(ctx, s.policy, func() (*gh.Tree, *gh.Response, error) {
		return s.client.Git.GetTree(ctx, loc.Owner, loc.Repo, loc.Ref, true)
	})
	if err != nil {
		return nil, err
	}
	if tree.GetTruncated() {
		slog.WarnContext(ctx, "Repository tree listing truncated", "owner", loc.Owner, "repo", loc.Repo, "ref", loc.Ref)
	}

	prefix := ""
	if loc.Dir != "" {
		prefix = strings.TrimSuffix(loc.Dir, "/") + "/"
	}

	var blobs []blob
	for _, entry := range tree.Entries {
		p := entry.GetPath()
		if entry.GetType() != "blob" || entry.GetSize() > maxFontSize || !isFontPath(p) {
			continue
		}
		if loc.File != "" && p != loc.File {
			continue
		}
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		blobs = append(blobs, blob{path: p, sha: entry.GetSHA()})
	}
	sort.Slice(blobs, func(i, j int) bool { return blobs[i].path < blobs[j].path })
	if len(blobs) > maxFiles {
		return nil, fmt.Errorf("%w: directory holds %d fonts, more than %d", domain.ErrSourceUnreachable, len(blobs), maxFiles)
	}
	return blobs, nil
}

// call retries op and maps every failure other than cancellation to
// ErrSourceUnreachable.
func call[T any](ctx context.Context, policy retry.Policy, op func() (T, *gh.Response, error)) (T, error) {
	val, err := retry.Do(ctx, policy, retry.ClassifyHTTP, func() (T, error) {
		v, _, err := op()
		return v, statusError(err)
	})
	if err != nil {
		var zero T
		if ctxErr := ctx.Err(); ctxErr != nil {
			return zero, ctxErr
		}
		return zero, fmt.Errorf("%w: %w", domain.ErrSourceUnreachable, err)
	}
	return val, nil
}

// statusError turns go-github response errors into retry.StatusError so
// ClassifyHTTP sees the status. Rate limit errors count as 429.
func statusError(err error) error {
	if err == nil {
		return nil
	}

	var rateErr *gh.RateLimitError
	if errors.As(err, &rateErr) {
		return &retry.StatusError{StatusCode: http.StatusTooManyRequests, URL: requestURL(rateErr.Response)}
	}
	var abuseErr *gh.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &retry.StatusError{StatusCode: http.StatusTooManyRequests, URL: requestURL(abuseErr.Response)}
	}
	var respErr *gh.ErrorResponse
	if errors.As(err, &respErr) && respErr.Response != nil {
		return &retry.StatusError{StatusCode: respErr.Response.StatusCode, URL: requestURL(respErr.Response)}
	}
	return err
}

func requestURL(resp *http.Response) string {
	if resp == nil || resp.Request == nil || resp.Request.URL == nil {
		return ""
	}
	return resp.Request.URL.String()
}
