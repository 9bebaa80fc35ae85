package resolve

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// ErrNotFound is returned when no repository serves a coordinate.
var ErrNotFound = errors.New("could not resolve")

// Resolution records where a coordinate was found
type Resolution struct {
	Coordinate Coordinate
	Repository Repository
	URL        string
}

type Resolver struct {
	Client       *http.Client
	Repositories []Repository
	// Jobs bounds the number of coordinates checked at once.
	Jobs int
	// OnResolved, when set, is called after every successful lookup. It may
	// be called from several goroutines.
	OnResolved func(Resolution)
}

func NewResolver(repos []Repository) *Resolver {
	return &Resolver{
		Client:       http.DefaultClient,
		Repositories: repos,
		Jobs:         runtime.NumCPU(),
	}
}

// Resolve checks that every coordinate exists in at least one repository.
// Repositories are tried in order and the first 2xx answer wins. The returned
// resolutions are in the same order as `coords`.
func (r *Resolver) Resolve(ctx context.Context, coords []Coordinate) ([]Resolution, error) {
	if len(r.Repositories) == 0 && len(coords) > 0 {
		return nil, errors.New("no repositories declared")
	}

	results := make([]Resolution, len(coords))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(r.Jobs, 1))

	for i, coord := range coords {
		g.Go(func() error {
			res, err := r.resolveOne(ctx, coord)
			if err != nil {
				return err
			}
			results[i] = res
			if r.OnResolved != nil {
				r.OnResolved(res)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (r *Resolver) resolveOne(ctx context.Context, coord Coordinate) (Resolution, error) {
	var errs []error
	for _, repo := range r.Repositories {
		artifactURL := repo.ArtifactURL(coord)
		ok, err := r.exists(ctx, artifactURL)
		if err != nil {
			if ctx.Err() != nil {
				return Resolution{}, ctx.Err()
			}
			errs = append(errs, fmt.Errorf("%s: %w", repo.Name, err))
			continue
		}
		if ok {
			return Resolution{Coordinate: coord, Repository: repo, URL: artifactURL}, nil
		}
	}

	err := fmt.Errorf("%w %s in any of %d repositories", ErrNotFound, coord, len(r.Repositories))
	if len(errs) > 0 {
		err = errors.Join(append([]error{err}, errs...)...)
	}
	return Resolution{}, err
}

func (r *Resolver) exists(ctx context.Context, artifactURL string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, artifactURL, nil)
	if err != nil {
		return false, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusForbidden:
		return false, nil
	default:
		return false, fmt.Errorf("HEAD %s: %s", artifactURL, resp.Status)
	}
}
