package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// NewActivity holds the fields accepted when organizing an activity.
type NewActivity struct {
	Title          string
	Description    string
	Location       string
	Coordinates    *domain.Point
	CityID         string
	ScheduledFrom  time.Time
	ScheduledUntil *time.Time
}

// ActivityPatch holds the fields the creator may change. Nil leaves a field
// untouched.
type ActivityPatch struct {
	Title          *string
	Description    *string
	Location       *string
	Coordinates    *domain.Point
	ScheduledFrom  *time.Time
	ScheduledUntil *time.Time
}

// ActivityService manages activities and their RSVPs.
type ActivityService struct {
	repo   domain.ActivityRepository
	users  domain.UserRepository
	cities domain.CityRepository
	now    func() time.Time
}

// NewActivityService creates a service with the given repositories.
func NewActivityService(repo domain.ActivityRepository, users domain.UserRepository, cities domain.CityRepository) *ActivityService {
	return &ActivityService{repo: repo, users: users, cities: cities, now: time.Now}
}

// Create validates and stores an activity organized by actor, who is
// registered as attending.
func (s *ActivityService) Create(ctx context.Context, actor string, in NewActivity) (domain.Activity, error) {
	var v domain.ValidationError
	requireText(&v, "title", in.Title)
	requireText(&v, "description", in.Description)
	requireText(&v, "location", in.Location)
	requireText(&v, "city_id", in.CityID)
	if in.ScheduledFrom.IsZero() {
		v.Add("No field value for %q.", "scheduled_from")
	}
	s.validateText(&v, in.Title, in.Location)
	s.validateSchedule(&v, in.ScheduledFrom, in.ScheduledUntil)
	if err := v.Err(); err != nil {
		return domain.Activity{}, err
	}

	if _, err := s.users.GetUser(ctx, actor); err != nil {
		return domain.Activity{}, err
	}
	city, err := s.cities.GetCity(ctx, in.CityID)
	if errors.Is(err, domain.ErrCityNotFound) {
		v.Add("Invalid value for %q.", "city_id")
		return domain.Activity{}, v.Err()
	}
	if err != nil {
		return domain.Activity{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.Activity{}, fmt.Errorf("generating activity id: %w", err)
	}
	rsvpID, err := generateID()
	if err != nil {
		return domain.Activity{}, fmt.Errorf("generating rsvp id: %w", err)
	}

	a := domain.Activity{
		ID:             id,
		CreatorID:      actor,
		Title:          strings.TrimSpace(in.Title),
		Description:    in.Description,
		CreatedAt:      s.now().UTC(),
		ScheduledFrom:  in.ScheduledFrom.UTC(),
		ScheduledUntil: utc(in.ScheduledUntil),
		Location:       strings.TrimSpace(in.Location),
		Coordinates:    in.Coordinates,
		CityID:         city.ID,
		City:           &city,
		Attending:      map[domain.RSVPStatus]int{domain.RSVPYes: 1},
	}
	rsvp := domain.ActivityRSVP{ID: rsvpID, ActivityID: id, UserID: actor, Status: domain.RSVPYes}

	if err := s.repo.CreateActivity(ctx, a, rsvp); err != nil {
		return domain.Activity{}, fmt.Errorf("creating activity: %w", err)
	}
	return a, nil
}

// Get returns an activity with its attending counts.
func (s *ActivityService) Get(ctx context.Context, id string) (domain.Activity, error) {
	return s.repo.GetActivity(ctx, id)
}

// List returns the activities of cityID, or all of them when it is empty.
func (s *ActivityService) List(ctx context.Context, cityID string) ([]domain.Activity, error) {
	return s.repo.ListActivities(ctx, cityID)
}

// Update applies patch on behalf of actor, who must be the creator.
func (s *ActivityService) Update(ctx context.Context, actor, id string, patch ActivityPatch) (domain.Activity, error) {
	a, err := s.repo.GetActivity(ctx, id)
	if err != nil {
		return domain.Activity{}, err
	}
	if a.CreatorID != actor {
		return domain.Activity{}, &domain.ForbiddenError{Reason: "only the creator may edit an activity"}
	}

	var v domain.ValidationError
	if patch.Title != nil {
		requireText(&v, "title", *patch.Title)
		a.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		requireText(&v, "description", *patch.Description)
		a.Description = *patch.Description
	}
	if patch.Location != nil {
		requireText(&v, "location", *patch.Location)
		a.Location = strings.TrimSpace(*patch.Location)
	}
	if patch.Coordinates != nil {
		a.Coordinates = patch.Coordinates
	}
	if patch.ScheduledFrom != nil {
		a.ScheduledFrom = patch.ScheduledFrom.UTC()
	}
	if patch.ScheduledUntil != nil {
		a.ScheduledUntil = utc(patch.ScheduledUntil)
	}
	s.validateText(&v, a.Title, a.Location)
	if patch.ScheduledFrom != nil || patch.ScheduledUntil != nil {
		s.validateSchedule(&v, a.ScheduledFrom, a.ScheduledUntil)
	}
	if err := v.Err(); err != nil {
		return domain.Activity{}, err
	}

	if err := s.repo.UpdateActivity(ctx, a); err != nil {
		return domain.Activity{}, fmt.Errorf("updating activity: %w", err)
	}
	a.Version++
	return a, nil
}

// RSVP records actor's answer to an activity, replacing any earlier one.
func (s *ActivityService) RSVP(ctx context.Context, actor, activityID string, status domain.RSVPStatus, comment string) (domain.ActivityRSVP, error) {
	if !domain.ValidRSVPStatus(status) {
		return domain.ActivityRSVP{}, &domain.InvalidStateValueError{Field: "rsvp_status", Value: domain.State(status)}
	}
	if utf8.RuneCountInString(comment) > domain.MaxRSVPComment {
		var v domain.ValidationError
		v.Add("Value for %q is longer than %d characters.", "comment", domain.MaxRSVPComment)
		return domain.ActivityRSVP{}, v.Err()
	}

	if _, err := s.repo.GetActivity(ctx, activityID); err != nil {
		return domain.ActivityRSVP{}, err
	}
	if _, err := s.users.GetUser(ctx, actor); err != nil {
		return domain.ActivityRSVP{}, err
	}

	id, err := generateID()
	if err != nil {
		return domain.ActivityRSVP{}, fmt.Errorf("generating rsvp id: %w", err)
	}

	stored, err := s.repo.SetRSVP(ctx, domain.ActivityRSVP{
		ID:         id,
		ActivityID: activityID,
		UserID:     actor,
		Status:     status,
		Comment:    strings.TrimSpace(comment),
	})
	if err != nil {
		return domain.ActivityRSVP{}, fmt.Errorf("storing rsvp: %w", err)
	}
	return stored, nil
}

// RSVPs lists the answers given to an activity.
func (s *ActivityService) RSVPs(ctx context.Context, activityID string) ([]domain.ActivityRSVP, error) {
	if _, err := s.repo.GetActivity(ctx, activityID); err != nil {
		return nil, err
	}
	return s.repo.ListRSVPs(ctx, activityID)
}

func (s *ActivityService) validateText(v *domain.ValidationError, title, location string) {
	if utf8.RuneCountInString(title) > domain.MaxActivityTitle {
		v.Add("Value for %q is longer than %d characters.", "title", domain.MaxActivityTitle)
	}
	if utf8.RuneCountInString(location) > domain.MaxActivityLocation {
		v.Add("Value for %q is longer than %d characters.", "location", domain.MaxActivityLocation)
	}
}

// validateSchedule requires both ends at least ActivityLeadTime ahead and the
// end not before the start.
func (s *ActivityService) validateSchedule(v *domain.ValidationError, from time.Time, until *time.Time) {
	earliest := s.now().Add(domain.ActivityLeadTime)
	if !from.IsZero() && from.Before(earliest) {
		v.Add("Invalid value for %q.", "scheduled_from")
	}
	if until == nil {
		return
	}
	if until.Before(earliest) || (!from.IsZero() && until.Before(from)) {
		v.Add("Invalid value for %q.", "scheduled_until")
	}
}

func utc(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
