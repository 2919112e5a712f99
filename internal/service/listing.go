package service

import (
	"context"
	"errors"
	"sort"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/estate-listings/internal/apperr"
	"github.com/iliyamo/estate-listings/internal/model"
	"github.com/iliyamo/estate-listings/internal/repository"
)

// Listing limits.
const (
	DefaultPopularLimit = 6
	DefaultSearchLimit  = 20
	MaxLimit            = 100
	PropertiesPageSize  = 50
)

// ListingSource is one listing kind the aggregator reads from.
type ListingSource interface {
	Kind() model.ListingType
	Popular(ctx context.Context, limit int) ([]model.Listing, error)
	Search(ctx context.Context, preds []repository.Predicate, limit int) ([]model.Listing, error)
	GetByID(ctx context.Context, id uint64) (model.Listing, error)
}

// ListingAggregator merges property, project and land reads into one
// ranked result set.
type ListingAggregator struct {
	sources []ListingSource
	byKind  map[model.ListingType]ListingSource
	timeout time.Duration
	log     *zap.Logger
}

// NewListingAggregator composes sources.  A kind registered twice keeps
// the last source.
func NewListingAggregator(timeout time.Duration, log *zap.Logger, sources ...ListingSource) *ListingAggregator {
	if log == nil {
		log = zap.NewNop()
	}
	a := &ListingAggregator{
		sources: sources,
		byKind:  make(map[model.ListingType]ListingSource, len(sources)),
		timeout: timeout,
		log:     log.Named("listings"),
	}
	for _, s := range sources {
		a.byKind[s.Kind()] = s
	}
	return a
}

// ClampLimit maps a missing or non-positive limit to def and caps it at MaxLimit.
func ClampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}

// Popular returns the highest priced listings across all kinds.  Rows
// without a price sort after every priced row.
func (a *ListingAggregator) Popular(ctx context.Context, limit int) ([]model.Listing, error) {
	limit = ClampLimit(limit, DefaultPopularLimit)
	rows, err := a.fanOut(ctx, "popular", func(ctx context.Context, s ListingSource) ([]model.Listing, error) {
		return s.Popular(ctx, limit)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return popularLess(rows[i], rows[j]) })
	return truncate(rows, limit), nil
}

// Search returns the newest listings whose name or details contain
// keyword and whose city or neighborhood contain location.  An empty
// filter matches everything.
func (a *ListingAggregator) Search(ctx context.Context, keyword, location string, limit int) ([]model.Listing, error) {
	limit = ClampLimit(limit, DefaultSearchLimit)
	preds := []repository.Predicate{
		repository.Match(keyword, repository.ColName, repository.ColDetails),
		repository.Match(location, repository.ColCity, repository.ColNeighborhood),
	}
	rows, err := a.fanOut(ctx, "search", func(ctx context.Context, s ListingSource) ([]model.Listing, error) {
		return s.Search(ctx, preds, limit)
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(rows, func(i, j int) bool { return recentLess(rows[i], rows[j]) })
	return truncate(rows, limit), nil
}

// Latest returns the newest rows of a single kind.
func (a *ListingAggregator) Latest(ctx context.Context, kind model.ListingType, limit int) ([]model.Listing, error) {
	src, ok := a.byKind[kind]
	if !ok {
		return nil, apperr.NotFound("unknown listing type %q", kind)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	rows, err := src.Search(ctx, nil, ClampLimit(limit, PropertiesPageSize))
	if err != nil {
		return nil, apperr.Storage(err, "latest "+string(kind))
	}
	return rows, nil
}

// Get returns one listing of the given kind.
func (a *ListingAggregator) Get(ctx context.Context, kind model.ListingType, id uint64) (model.Listing, error) {
	src, ok := a.byKind[kind]
	if !ok {
		return model.Listing{}, apperr.NotFound("unknown listing type %q", kind)
	}
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	l, err := src.GetByID(ctx, id)
	if errors.Is(err, repository.ErrListingNotFound) {
		return model.Listing{}, apperr.NotFound("Not found")
	}
	if err != nil {
		return model.Listing{}, apperr.Storage(err, "get "+string(kind))
	}
	return l, nil
}

func (a *ListingAggregator) fanOut(ctx context.Context, op string, read func(context.Context, ListingSource) ([]model.Listing, error)) ([]model.Listing, error) {
	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	parts := make([][]model.Listing, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.sources {
		g.Go(func() error {
			rows, err := read(gctx, src)
			if err != nil {
				a.log.Error("listing source failed",
					zap.String("op", op), zap.String("kind", string(src.Kind())), zap.Error(err))
				return err
			}
			parts[i] = rows
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, apperr.Storage(err, op+" listings")
	}

	n := 0
	for _, p := range parts {
		n += len(p)
	}
	out := make([]model.Listing, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out, nil
}

func popularLess(a, b model.Listing) bool {
	switch {
	case a.Price != nil && b.Price == nil:
		return true
	case a.Price == nil && b.Price != nil:
		return false
	case a.Price != nil && *a.Price != *b.Price:
		return *a.Price > *b.Price
	case a.ID != b.ID:
		return a.ID < b.ID
	}
	return a.Type.Rank() < b.Type.Rank()
}

func recentLess(a, b model.Listing) bool {
	switch {
	case !a.CreatedAt.Equal(b.CreatedAt):
		return a.CreatedAt.After(b.CreatedAt)
	case a.ID != b.ID:
		return a.ID > b.ID
	}
	return a.Type.Rank() < b.Type.Rank()
}

func truncate(rows []model.Listing, limit int) []model.Listing {
	if len(rows) > limit {
		return rows[:limit]
	}
	return rows
}
