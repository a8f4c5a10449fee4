package city

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	database "github.com/FACorreiaa/konomads/app/db"
	"github.com/FACorreiaa/konomads/internal/types"
)

var _ CityRepository = (*PostgresCityRepository)(nil)

type CityRepository interface {
	ListCities(ctx context.Context) ([]types.City, error)
	GetCityBySlug(ctx context.Context, slug string) (*types.City, error)
}

type PostgresCityRepository struct {
	logger *slog.Logger
	pgpool database.Pool
}

func NewCityRepository(pgpool database.Pool, logger *slog.Logger) *PostgresCityRepository {
	return &PostgresCityRepository{
		logger: logger,
		pgpool: pgpool,
	}
}

const cityColumns = `id, slug, name, region, description, monthly_cost, rating::float8, nomads_now, image_url`

func (r *PostgresCityRepository) ListCities(ctx context.Context) ([]types.City, error) {
	rows, err := r.pgpool.Query(ctx, `SELECT `+cityColumns+` FROM cities ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query cities: %w", err)
	}
	defer rows.Close()

	cities := make([]types.City, 0)
	for rows.Next() {
		var c types.City
		if err := rows.Scan(&c.ID, &c.Slug, &c.Name, &c.Region, &c.Description,
			&c.MonthlyCost, &c.Rating, &c.NomadsNow, &c.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan city: %w", err)
		}
		cities = append(cities, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating cities: %w", err)
	}
	return cities, nil
}

func (r *PostgresCityRepository) GetCityBySlug(ctx context.Context, slug string) (*types.City, error) {
	var c types.City
	err := r.pgpool.QueryRow(ctx, `SELECT `+cityColumns+` FROM cities WHERE slug = $1`, slug).Scan(
		&c.ID, &c.Slug, &c.Name, &c.Region, &c.Description,
		&c.MonthlyCost, &c.Rating, &c.NomadsNow, &c.ImageURL,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("city %q: %w", slug, types.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to find city: %w", err)
	}
	return &c, nil
}
