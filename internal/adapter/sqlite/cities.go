package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/neomorfeo/mycouch/internal/domain"
)

func (s *Store) CreateCity(ctx context.Context, c domain.City) error {
	extra := c.AdditionalData
	if extra == nil {
		extra = map[string]string{}
	}
	data, err := jsonText(extra)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cities (id, name, slug, coordinates, timezone, country_code, rating, wikiname, additional_data)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Slug, c.Coordinates, c.Timezone, c.CountryCode, c.Rating, c.WikiName, data,
	)
	if err != nil {
		if isUniqueViolation(err) {
			v := &domain.ValidationError{}
			v.Add("Value for %q is already in use.", "slug")
			return v
		}
		return fmt.Errorf("inserting city: %w", err)
	}
	return nil
}

func (s *Store) GetCity(ctx context.Context, id string) (domain.City, error) {
	var c domain.City
	var data string

	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, slug, coordinates, timezone, country_code, rating, wikiname, additional_data
		 FROM cities WHERE id = ?`, id,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.Coordinates, &c.Timezone, &c.CountryCode, &c.Rating, &c.WikiName, &data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.City{}, domain.ErrCityNotFound
		}
		return domain.City{}, fmt.Errorf("scanning city: %w", err)
	}

	if err := json.Unmarshal([]byte(data), &c.AdditionalData); err != nil {
		return domain.City{}, fmt.Errorf("decoding additional_data: %w", err)
	}
	return c, nil
}
