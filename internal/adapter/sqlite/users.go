package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/neomorfeo/mycouch/internal/domain"
)

func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, first_name, last_name, email, gender, birth_date, city_id,
		                    can_host, password_hash, role, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.FirstName, u.LastName, u.Email, string(u.Gender), u.BirthDate,
		nullString(u.CityID), string(u.CanHost), u.PasswordHash, u.Role,
		formatTime(u.CreatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			v := &domain.ValidationError{}
			v.Add("Value for %q is already in use.", "email")
			return v
		}
		if isForeignKeyViolation(err) {
			return domain.ErrCityNotFound
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUser loads a user together with its city and connection counters.
func (s *Store) GetUser(ctx context.Context, id string) (domain.User, error) {
	var u domain.User
	var gender, canHost, createdAt string
	var cityID sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, first_name, last_name, email, gender, birth_date, city_id,
		        can_host, password_hash, role, created_at
		 FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.FirstName, &u.LastName, &u.Email, &gender, &u.BirthDate, &cityID,
		&canHost, &u.PasswordHash, &u.Role, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.User{}, domain.ErrUserNotFound
		}
		return domain.User{}, fmt.Errorf("scanning user: %w", err)
	}

	u.Gender = domain.Gender(gender)
	u.CanHost = domain.HostAvailability(canHost)
	u.CreatedAt = parseTime(createdAt)

	if cityID.Valid {
		u.CityID = cityID.String
		city, err := s.GetCity(ctx, cityID.String)
		if err != nil && !errors.Is(err, domain.ErrCityNotFound) {
			return domain.User{}, err
		}
		if err == nil {
			u.City = &city
		}
	}

	err = s.db.QueryRowContext(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM connections
		     WHERE kind = 'friendship'
		       AND (user_from_id = ?1 OR user_to_id = ?1)
		       AND json_extract(type_status, '$.current') = 'accepted'),
		   (SELECT COUNT(*) FROM connections
		     WHERE kind = 'reference' AND user_to_id = ?1)`, id,
	).Scan(&u.FriendCount, &u.ReferenceCount)
	if err != nil {
		return domain.User{}, fmt.Errorf("counting connections: %w", err)
	}

	return u, nil
}
