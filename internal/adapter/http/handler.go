package http

import (
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/mycouch/internal/app"
	"github.com/neomorfeo/mycouch/internal/domain"
)

// Services groups the application services exposed over HTTP.
type Services struct {
	Users       *app.UserService
	Connections *app.ConnectionService
	Messages    *app.MessageService
	Activities  *app.ActivityService
}

// Register adds all API routes to the Huma API.
func Register(api huma.API, svc Services) {
	registerUsers(api, svc.Users)
	registerConnections(api, svc.Connections)
	registerMessages(api, svc.Messages)
	registerActivities(api, svc.Activities)
}

// Object is a serialized entity.
type Object = map[string]any

// ActorInput identifies the member a request is made for. Authentication is
// handled in front of this service.
type ActorInput struct {
	UserID string `header:"X-User-ID" required:"true" minLength:"1" doc:"Acting member ID"`
}

// ExpandInput carries the fields to force into a response.
type ExpandInput struct {
	Expand string `query:"expand" required:"false" doc:"Comma-separated extra fields to serialize"`
}

// serialize renders e with the fields requested through expand.
func serialize(e domain.Entity, expand string) Object {
	domain.ForceSerialize(e, expandable(e, expand)...)
	return domain.Serialize(e)
}

// expandable keeps the names of expand that e's schema lets a client force.
func expandable(e domain.Entity, expand string) []string {
	names := domain.ParseExpand(expand)
	schema := e.Schema()
	kept := names[:0]
	for _, name := range names {
		if schema.Expandable(name) {
			kept = append(kept, name)
		}
	}
	return kept
}

// parseDate reads an optional YYYY-MM-DD body field.
func parseDate(v *domain.ValidationError, field, value string) domain.Date {
	if value == "" {
		return domain.Date{}
	}
	d, err := domain.ParseDate(value)
	if err != nil {
		v.Add("Invalid date for %q, expected YYYY-MM-DD.", field)
	}
	return d
}

// toHumaError translates domain errors to Huma HTTP errors.
func toHumaError(err error) error {
	for _, notFound := range []error{
		domain.ErrUserNotFound,
		domain.ErrCityNotFound,
		domain.ErrConnectionNotFound,
		domain.ErrMessageNotFound,
		domain.ErrNotificationNotFound,
		domain.ErrActivityNotFound,
	} {
		if errors.Is(err, notFound) {
			return huma.Error404NotFound(notFound.Error())
		}
	}

	var valueErr *domain.InvalidStateValueError
	if errors.As(err, &valueErr) {
		return huma.Error400BadRequest(valueErr.Error())
	}

	var trErr *domain.InvalidTransitionError
	if errors.As(err, &trErr) {
		return huma.Error422UnprocessableEntity(trErr.Error())
	}

	var forbidden *domain.ForbiddenError
	if errors.As(err, &forbidden) {
		return huma.Error403Forbidden(forbidden.Error())
	}

	var invalid *domain.ValidationError
	if errors.As(err, &invalid) {
		details := make([]error, len(invalid.Problems))
		for i, p := range invalid.Problems {
			details[i] = &huma.ErrorDetail{Message: p}
		}
		return huma.Error400BadRequest("validation failed", details...)
	}

	if errors.Is(err, domain.ErrConcurrentUpdate) {
		return huma.Error409Conflict(domain.ErrConcurrentUpdate.Error())
	}

	return huma.Error500InternalServerError("internal server error")
}
