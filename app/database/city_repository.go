package database

import (
	"fmt"
)

// CitySQLRepository handles database operations for the gazetteer
type CitySQLRepository struct {
	db *DB
}

var _ CityRepository = (*CitySQLRepository)(nil)

// NewCityRepository creates a new city repository
func NewCityRepository(db *DB) *CitySQLRepository {
	return &CitySQLRepository{db: db}
}

// ListAll returns the full city reference list in sort order
func (r *CitySQLRepository) ListAll() ([]City, error) {
	rows, err := r.db.Query(`
		SELECT id, COALESCE(country_id::text, ''), name, sort, coordinates,
		       created_at, updated_at
		FROM cities
		ORDER BY sort, name
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list cities: %w", err)
	}
	defer rows.Close()

	var cities []City
	for rows.Next() {
		var city City
		err := rows.Scan(
			&city.ID, &city.CountryID, &city.Name, &city.Sort,
			&city.Coordinates, &city.CreatedAt, &city.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan city row: %w", err)
		}
		cities = append(cities, city)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating city rows: %w", err)
	}

	return cities, nil
}
