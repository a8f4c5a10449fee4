package city

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/patrickmn/go-cache"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/konomads/internal/types"
)

var _ Service = (*ServiceImpl)(nil)

const allCitiesKey = "cities:all"

type Service interface {
	ListCities(ctx context.Context) ([]types.City, error)
	GetCity(ctx context.Context, slug string) (*types.City, error)
	Query(ctx context.Context, f FilterState) (Result, error)
	Regions(ctx context.Context) ([]string, error)
}

// QueryRecorder counts listing queries. Optional.
type QueryRecorder interface {
	RecordCityQuery(ctx context.Context, sortKey string)
}

type ServiceImpl struct {
	logger   *slog.Logger
	repo     CityRepository
	cache    *cache.Cache
	recorder QueryRecorder
}

// NewCityService caches the city dataset for ttl; the table only changes
// through migrations.
func NewCityService(repo CityRepository, ttl, cleanup time.Duration, recorder QueryRecorder, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:   logger,
		repo:     repo,
		cache:    cache.New(ttl, cleanup),
		recorder: recorder,
	}
}

// ListCities returns the full dataset. Callers must not modify the slice.
func (s *ServiceImpl) ListCities(ctx context.Context) ([]types.City, error) {
	if cached, found := s.cache.Get(allCitiesKey); found {
		return cached.([]types.City), nil
	}

	ctx, span := otel.Tracer("CityService").Start(ctx, "ListCities")
	defer span.End()

	cities, err := s.repo.ListCities(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load cities")
		return nil, fmt.Errorf("error loading cities: %w", err)
	}

	s.cache.Set(allCitiesKey, cities, cache.DefaultExpiration)
	s.logger.DebugContext(ctx, "City dataset cached", slog.Int("count", len(cities)))
	return cities, nil
}

func (s *ServiceImpl) GetCity(ctx context.Context, slug string) (*types.City, error) {
	cities, err := s.ListCities(ctx)
	if err != nil {
		return nil, err
	}
	for i := range cities {
		if cities[i].Slug == slug {
			c := cities[i]
			return &c, nil
		}
	}
	// Fall through to the database in case the cache predates a new city.
	return s.repo.GetCityBySlug(ctx, slug)
}

func (s *ServiceImpl) Query(ctx context.Context, f FilterState) (Result, error) {
	ctx, span := otel.Tracer("CityService").Start(ctx, "Query", trace.WithAttributes(
		attribute.String("filter.q", f.SearchText),
		attribute.String("filter.region", f.Region),
		attribute.String("filter.sort", string(f.SortKey)),
	))
	defer span.End()

	cities, err := s.ListCities(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Failed to load cities")
		return Result{Cities: []types.City{}}, err
	}

	res := VisibleCities(cities, f)
	if s.recorder != nil {
		s.recorder.RecordCityQuery(ctx, string(ParseSortKey(string(f.SortKey))))
	}
	span.SetAttributes(attribute.Int("result.count", res.Count))
	return res, nil
}

func (s *ServiceImpl) Regions(ctx context.Context) ([]string, error) {
	cities, err := s.ListCities(ctx)
	if err != nil {
		return nil, err
	}
	return Regions(cities), nil
}
