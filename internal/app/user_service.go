package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// NewUser holds the fields accepted when registering a member.
type NewUser struct {
	FirstName string
	LastName  string
	Email     string
	Gender    domain.Gender
	BirthDate domain.Date
	CityID    string
	CanHost   domain.HostAvailability
}

// UserService manages members.
type UserService struct {
	users  domain.UserRepository
	cities domain.CityRepository
	now    func() time.Time
}

// NewUserService creates a service with the given repositories.
func NewUserService(users domain.UserRepository, cities domain.CityRepository) *UserService {
	return &UserService{users: users, cities: cities, now: time.Now}
}

// Create validates and persists a new member.
func (s *UserService) Create(ctx context.Context, in NewUser) (domain.User, error) {
	var v domain.ValidationError
	requireText(&v, "first_name", in.FirstName)
	requireText(&v, "last_name", in.LastName)
	if !strings.Contains(in.Email, "@") {
		v.Add("Invalid value for %q.", "email")
	}
	if in.Gender == "" {
		in.Gender = domain.GenderNotKnown
	}
	if !domain.ValidGender(in.Gender) {
		v.Add("Invalid value for %q.", "gender")
	}
	if in.CanHost == "" {
		in.CanHost = domain.HostNo
	}
	if !domain.ValidHostAvailability(in.CanHost) {
		v.Add("Invalid value for %q.", "can_host")
	}
	if !in.BirthDate.IsZero() && !in.BirthDate.Before(domain.DateOf(s.now())) {
		v.Add("Value for %q must be in the past.", "birth_date")
	}
	if err := v.Err(); err != nil {
		return domain.User{}, err
	}

	var city *domain.City
	if in.CityID != "" {
		c, err := s.cities.GetCity(ctx, in.CityID)
		if err != nil {
			return domain.User{}, err
		}
		city = &c
	}

	id, err := generateID()
	if err != nil {
		return domain.User{}, fmt.Errorf("generating user id: %w", err)
	}

	user := domain.User{
		ID:        id,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Email:     strings.ToLower(strings.TrimSpace(in.Email)),
		Gender:    in.Gender,
		BirthDate: in.BirthDate,
		CityID:    in.CityID,
		City:      city,
		CanHost:   in.CanHost,
		Role:      "member",
		CreatedAt: s.now().UTC(),
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		return domain.User{}, fmt.Errorf("creating user: %w", err)
	}
	return user, nil
}

// Get returns a member with city and counters loaded.
func (s *UserService) Get(ctx context.Context, id string) (domain.User, error) {
	return s.users.GetUser(ctx, id)
}

// NewCity holds the fields accepted when adding a city.
type NewCity struct {
	Name        string
	Slug        string
	Longitude   float64
	Latitude    float64
	Timezone    int
	CountryCode string
}

// CreateCity validates and persists a city.
func (s *UserService) CreateCity(ctx context.Context, in NewCity) (domain.City, error) {
	var v domain.ValidationError
	requireText(&v, "name", in.Name)
	if in.Slug == "" {
		in.Slug = slugify(in.Name)
	}
	if in.Latitude < -90 || in.Latitude > 90 {
		v.Add("Invalid value for %q.", "latitude")
	}
	if in.Longitude < -180 || in.Longitude > 180 {
		v.Add("Invalid value for %q.", "longitude")
	}
	if len(in.CountryCode) != 3 {
		v.Add("Value for %q must be an ISO 3166-1 alpha-3 code.", "country_code")
	}
	if err := v.Err(); err != nil {
		return domain.City{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.City{}, fmt.Errorf("generating city id: %w", err)
	}

	city := domain.City{
		ID:             id,
		Name:           strings.TrimSpace(in.Name),
		Slug:           in.Slug,
		Coordinates:    domain.Point{Lon: in.Longitude, Lat: in.Latitude},
		Timezone:       in.Timezone,
		CountryCode:    strings.ToUpper(in.CountryCode),
		AdditionalData: map[string]string{},
	}

	if err := s.cities.CreateCity(ctx, city); err != nil {
		return domain.City{}, fmt.Errorf("creating city: %w", err)
	}
	return city, nil
}

// GetCity returns a city by id.
func (s *UserService) GetCity(ctx context.Context, id string) (domain.City, error) {
	return s.cities.GetCity(ctx, id)
}

func requireText(v *domain.ValidationError, field, value string) {
	if strings.TrimSpace(value) == "" {
		v.Add("No field value for %q.", field)
	}
}

func slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
