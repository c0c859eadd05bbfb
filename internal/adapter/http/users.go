package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/mycouch/internal/app"
	"github.com/neomorfeo/mycouch/internal/domain"
)

// --- Users ---

type CreateUserInput struct {
	Body struct {
		FirstName string `json:"first_name" doc:"Given name"`
		LastName  string `json:"last_name" doc:"Family name"`
		Email     string `json:"email" doc:"Contact address"`
		Gender    string `json:"gender,omitempty" doc:"ISO/IEC 5218 code (0, 1, 2 or 9)"`
		BirthDate string `json:"birth_date,omitempty" doc:"Birth date (YYYY-MM-DD)"`
		CityID    string `json:"city_id,omitempty" doc:"Home city ID"`
		CanHost   string `json:"can_host,omitempty" doc:"Hosting availability (yes, no, maybe, sometimes, coffee)"`
	}
}

type GetUserInput struct {
	ExpandInput
	ID string `path:"id" doc:"User ID"`
}

type ObjectOutput struct {
	Body Object
}

type ListOutput struct {
	Body []Object
}

// --- Cities ---

type CreateCityInput struct {
	Body struct {
		Name        string  `json:"name" doc:"City name"`
		Slug        string  `json:"slug,omitempty" doc:"URL-friendly identifier, derived from the name when empty"`
		Latitude    float64 `json:"latitude" doc:"Latitude in degrees"`
		Longitude   float64 `json:"longitude" doc:"Longitude in degrees"`
		Timezone    int     `json:"timezone,omitempty" doc:"UTC offset in hours"`
		CountryCode string  `json:"country_code" doc:"ISO 3166-1 alpha-3 country code"`
	}
}

type GetCityInput struct {
	ExpandInput
	ID string `path:"id" doc:"City ID"`
}

func registerUsers(api huma.API, svc *app.UserService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-user",
		Method:      http.MethodPost,
		Path:        "/api/v1/users",
		Summary:     "Register a member",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *CreateUserInput) (*ObjectOutput, error) {
		var v domain.ValidationError
		birth := parseDate(&v, "birth_date", input.Body.BirthDate)
		if err := v.Err(); err != nil {
			return nil, toHumaError(err)
		}

		user, err := svc.Create(ctx, app.NewUser{
			FirstName: input.Body.FirstName,
			LastName:  input.Body.LastName,
			Email:     input.Body.Email,
			Gender:    domain.Gender(input.Body.Gender),
			BirthDate: birth,
			CityID:    input.Body.CityID,
			CanHost:   domain.HostAvailability(input.Body.CanHost),
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: domain.Serialize(&user)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-user",
		Method:      http.MethodGet,
		Path:        "/api/v1/users/{id}",
		Summary:     "Get a member by ID",
		Tags:        []string{"Users"},
	}, func(ctx context.Context, input *GetUserInput) (*ObjectOutput, error) {
		user, err := svc.Get(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: serialize(&user, input.Expand)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "create-city",
		Method:      http.MethodPost,
		Path:        "/api/v1/cities",
		Summary:     "Add a city",
		Tags:        []string{"Cities"},
	}, func(ctx context.Context, input *CreateCityInput) (*ObjectOutput, error) {
		city, err := svc.CreateCity(ctx, app.NewCity{
			Name:        input.Body.Name,
			Slug:        input.Body.Slug,
			Latitude:    input.Body.Latitude,
			Longitude:   input.Body.Longitude,
			Timezone:    input.Body.Timezone,
			CountryCode: input.Body.CountryCode,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: domain.Serialize(&city)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-city",
		Method:      http.MethodGet,
		Path:        "/api/v1/cities/{id}",
		Summary:     "Get a city by ID",
		Tags:        []string{"Cities"},
	}, func(ctx context.Context, input *GetCityInput) (*ObjectOutput, error) {
		city, err := svc.GetCity(ctx, input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: serialize(&city, input.Expand)}, nil
	})
}
