package app_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neomorfeo/mycouch/internal/app"
	"github.com/neomorfeo/mycouch/internal/domain"
)

func newActivityService(t *testing.T) (*app.ActivityService, *mockStore) {
	t.Helper()
	store := newMockStore()
	store.addUsers("u1", "u2", "u3")
	store.cities["berlin"] = domain.City{ID: "berlin", Name: "Berlin", CountryCode: "DEU"}
	return app.NewActivityService(store, store, store), store
}

func validActivity() app.NewActivity {
	until := time.Now().Add(72 * time.Hour)
	return app.NewActivity{
		Title:          "Picnic",
		Description:    "Bring food",
		Location:       "Tempelhofer Feld",
		CityID:         "berlin",
		ScheduledFrom:  time.Now().Add(48 * time.Hour),
		ScheduledUntil: &until,
	}
}

func TestCreateActivity_CreatorAttends(t *testing.T) {
	svc, store := newActivityService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", validActivity())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	got, err := svc.Get(ctx, a.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want := map[string]int{"yes": 1, "maybe": 0, "no": 0}
	for k, v := range want {
		if got.AttendingCount()[k] != v {
			t.Errorf("attending_count[%s] = %d, want %d", k, got.AttendingCount()[k], v)
		}
	}
	if r := store.rsvps[a.ID+"/u1"]; r.Status != domain.RSVPYes {
		t.Errorf("creator rsvp = %q, want yes", r.Status)
	}
}

func TestCreateActivity_Validation(t *testing.T) {
	svc, _ := newActivityService(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		mutate func(*app.NewActivity)
		want   string
	}{
		{"past start", func(in *app.NewActivity) { in.ScheduledFrom = time.Now().Add(-3 * time.Hour) }, "scheduled_from"},
		{"start within the hour", func(in *app.NewActivity) { in.ScheduledFrom = time.Now().Add(30 * time.Minute) }, "scheduled_from"},
		{"end before start", func(in *app.NewActivity) {
			end := in.ScheduledFrom.Add(-time.Hour)
			in.ScheduledUntil = &end
		}, "scheduled_until"},
		{"unknown city", func(in *app.NewActivity) { in.CityID = "atlantis" }, "city_id"},
		{"missing title", func(in *app.NewActivity) { in.Title = " " }, "title"},
		{"long title", func(in *app.NewActivity) { in.Title = strings.Repeat("x", domain.MaxActivityTitle+1) }, "title"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := validActivity()
			tt.mutate(&in)

			_, err := svc.Create(ctx, "u1", in)
			var v *domain.ValidationError
			if !errors.As(err, &v) {
				t.Fatalf("Create = %v, want ValidationError", err)
			}
			if !strings.Contains(v.Error(), tt.want) {
				t.Errorf("error = %q, want mention of %q", v.Error(), tt.want)
			}
		})
	}
}

func TestRSVP_UpsertsOneAnswerPerMember(t *testing.T) {
	svc, _ := newActivityService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", validActivity())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, err := svc.RSVP(ctx, "u2", a.ID, domain.RSVPMaybe, "if it does not rain")
	if err != nil {
		t.Fatalf("RSVP failed: %v", err)
	}
	second, err := svc.RSVP(ctx, "u2", a.ID, domain.RSVPNo, "")
	if err != nil {
		t.Fatalf("RSVP failed: %v", err)
	}
	if second.ID != first.ID {
		t.Errorf("second answer id = %q, want the first one %q", second.ID, first.ID)
	}
	if _, err := svc.RSVP(ctx, "u3", a.ID, domain.RSVPYes, ""); err != nil {
		t.Fatalf("RSVP failed: %v", err)
	}

	got, _ := svc.Get(ctx, a.ID)
	if counts := got.AttendingCount(); counts["yes"] != 2 || counts["maybe"] != 0 || counts["no"] != 1 {
		t.Errorf("attending_count = %v, want yes=2 maybe=0 no=1", counts)
	}

	rsvps, err := svc.RSVPs(ctx, a.ID)
	if err != nil {
		t.Fatalf("RSVPs failed: %v", err)
	}
	if len(rsvps) != 3 {
		t.Errorf("RSVPs = %d entries, want 3", len(rsvps))
	}
}

func TestRSVP_Errors(t *testing.T) {
	svc, _ := newActivityService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", validActivity())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	var valueErr *domain.InvalidStateValueError
	if _, err := svc.RSVP(ctx, "u2", a.ID, "perhaps", ""); !errors.As(err, &valueErr) {
		t.Errorf("RSVP(perhaps) = %v, want InvalidStateValueError", err)
	}
	if _, err := svc.RSVP(ctx, "u2", "missing", domain.RSVPYes, ""); !errors.Is(err, domain.ErrActivityNotFound) {
		t.Errorf("RSVP(missing activity) = %v, want ErrActivityNotFound", err)
	}
	if _, err := svc.RSVP(ctx, "ghost", a.ID, domain.RSVPYes, ""); !errors.Is(err, domain.ErrUserNotFound) {
		t.Errorf("RSVP(ghost) = %v, want ErrUserNotFound", err)
	}
	var v *domain.ValidationError
	if _, err := svc.RSVP(ctx, "u2", a.ID, domain.RSVPYes, strings.Repeat("x", domain.MaxRSVPComment+1)); !errors.As(err, &v) {
		t.Errorf("RSVP(long comment) = %v, want ValidationError", err)
	}
}

func TestUpdateActivity_CreatorOnly(t *testing.T) {
	svc, _ := newActivityService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, "u1", validActivity())
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	title := "Picnic at noon"
	var forbidden *domain.ForbiddenError
	if _, err := svc.Update(ctx, "u2", a.ID, app.ActivityPatch{Title: &title}); !errors.As(err, &forbidden) {
		t.Errorf("Update by non-creator = %v, want ForbiddenError", err)
	}

	got, err := svc.Update(ctx, "u1", a.ID, app.ActivityPatch{Title: &title})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if got.Title != title || got.Description != "Bring food" {
		t.Errorf("got %+v", got)
	}

	past := time.Now().Add(-time.Hour)
	var v *domain.ValidationError
	if _, err := svc.Update(ctx, "u1", a.ID, app.ActivityPatch{ScheduledFrom: &past}); !errors.As(err, &v) {
		t.Errorf("Update(past start) = %v, want ValidationError", err)
	}
}
