package http

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/mycouch/internal/app"
	"github.com/neomorfeo/mycouch/internal/domain"
)

type CreateActivityInput struct {
	ActorInput
	Body struct {
		Title          string    `json:"title" doc:"Activity title"`
		Description    string    `json:"description" doc:"What is planned"`
		Location       string    `json:"location" doc:"Meeting place"`
		Coordinates    []float64 `json:"location_coordinates,omitempty" minItems:"2" maxItems:"2" doc:"Meeting point as [longitude, latitude]"`
		CityID         string    `json:"city_id" doc:"City the activity takes place in"`
		ScheduledFrom  string    `json:"scheduled_from" doc:"Start (YYYY-MM-DDTHH:MM:SS, UTC)"`
		ScheduledUntil string    `json:"scheduled_until,omitempty" doc:"End (YYYY-MM-DDTHH:MM:SS, UTC)"`
	}
}

type ListActivitiesInput struct {
	ExpandInput
	CityID string `query:"city_id" required:"false" doc:"Only activities in this city"`
}

type GetActivityInput struct {
	ExpandInput
	ID string `path:"id" doc:"Activity ID"`
}

type UpdateActivityInput struct {
	ActorInput
	ID   string `path:"id" doc:"Activity ID"`
	Body struct {
		Title          *string   `json:"title,omitempty" doc:"Activity title"`
		Description    *string   `json:"description,omitempty" doc:"What is planned"`
		Location       *string   `json:"location,omitempty" doc:"Meeting place"`
		Coordinates    []float64 `json:"location_coordinates,omitempty" minItems:"2" maxItems:"2" doc:"Meeting point as [longitude, latitude]"`
		ScheduledFrom  string    `json:"scheduled_from,omitempty" doc:"Start (YYYY-MM-DDTHH:MM:SS, UTC)"`
		ScheduledUntil string    `json:"scheduled_until,omitempty" doc:"End (YYYY-MM-DDTHH:MM:SS, UTC)"`
	}
}

type SetRSVPInput struct {
	ActorInput
	ID   string `path:"id" doc:"Activity ID"`
	Body struct {
		Status  string `json:"rsvp_status" doc:"Answer (yes, maybe or no)"`
		Comment string `json:"comment,omitempty" maxLength:"90" doc:"Short note for the organizer"`
	}
}

type ListRSVPsInput struct {
	ID string `path:"id" doc:"Activity ID"`
}

func registerActivities(api huma.API, svc *app.ActivityService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-activity",
		Method:      http.MethodPost,
		Path:        "/api/v1/activities",
		Summary:     "Organize an activity",
		Tags:        []string{"Activities"},
	}, func(ctx context.Context, input *CreateActivityInput) (*ObjectOutput, error) {
		var v domain.ValidationError
		from := parseDateTime(&v, "scheduled_from", input.Body.ScheduledFrom)
		until := parseDateTime(&v, "scheduled_until", input.Body.ScheduledUntil)
		if err := v.Err(); err != nil {
			return nil, toHumaError(err)
		}

		in := app.NewActivity{
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Location:       input.Body.Location,
			Coordinates:    point(input.Body.Coordinates),
			CityID:         input.Body.CityID,
			ScheduledUntil: until,
		}
		if from != nil {
			in.ScheduledFrom = *from
		}

		a, err := svc.Create(ctx, input.UserID, in)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: domain.Serialize(&a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-activities",
		Method:      http.MethodGet,
		Path:        "/api/v1/activities",
		Summary:     "List activities",
		Tags:        []string{"Activities"},
	}, func(ctx context.Context, input *ListActivitiesInput) (*ListOutput, error) {
		activities, err := svc.List(ctx, input.CityID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]Object, len(activities))
		for i := range activities {
			resp[i] = serialize(&activities[i], input.Expand)
		}
		return &ListOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-activity",
		Method:      http.MethodGet,
		Path:        "/api/v1/activities/{id}",
		Summary:     "Get an activity with its attending counts",
		Tags:        []string{"Activities"},
	}, func(ctx context.Context, input *GetActivityInput) (*ObjectOutput, error) {
		a, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: serialize(&a, input.Expand)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-activity",
		Method:      http.MethodPatch,
		Path:        "/api/v1/activities/{id}",
		Summary:     "Edit an activity you organize",
		Tags:        []string{"Activities"},
	}, func(ctx context.Context, input *UpdateActivityInput) (*ObjectOutput, error) {
		var v domain.ValidationError
		from := parseDateTime(&v, "scheduled_from", input.Body.ScheduledFrom)
		until := parseDateTime(&v, "scheduled_until", input.Body.ScheduledUntil)
		if err := v.Err(); err != nil {
			return nil, toHumaError(err)
		}

		a, err := svc.Update(ctx, input.UserID, input.ID, app.ActivityPatch{
			Title:          input.Body.Title,
			Description:    input.Body.Description,
			Location:       input.Body.Location,
			Coordinates:    point(input.Body.Coordinates),
			ScheduledFrom:  from,
			ScheduledUntil: until,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: domain.Serialize(&a)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "set-rsvp",
		Method:      http.MethodPut,
		Path:        "/api/v1/activities/{id}/rsvp",
		Summary:     "Answer an activity invitation",
		Tags:        []string{"Activities"},
	}, func(ctx context.Context, input *SetRSVPInput) (*ObjectOutput, error) {
		r, err := svc.RSVP(ctx, input.UserID, input.ID, domain.RSVPStatus(input.Body.Status), input.Body.Comment)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: domain.Serialize(&r)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-rsvps",
		Method:      http.MethodGet,
		Path:        "/api/v1/activities/{id}/rsvps",
		Summary:     "List the answers to an activity",
		Tags:        []string{"Activities"},
	}, func(ctx context.Context, input *ListRSVPsInput) (*ListOutput, error) {
		rsvps, err := svc.RSVPs(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]Object, len(rsvps))
		for i := range rsvps {
			resp[i] = domain.Serialize(&rsvps[i])
		}
		return &ListOutput{Body: resp}, nil
	})
}

// parseDateTime reads an optional datetime body field.
func parseDateTime(v *domain.ValidationError, field, value string) *time.Time {
	if value == "" {
		return nil
	}
	t, err := domain.ParseDateTime(value)
	if err != nil {
		v.Add("Invalid datetime for %q, expected YYYY-MM-DDTHH:MM:SS.", field)
		return nil
	}
	return &t
}

func point(coords []float64) *domain.Point {
	if len(coords) != 2 {
		return nil
	}
	return &domain.Point{Lon: coords[0], Lat: coords[1]}
}
