package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/mycouch/internal/app"
	"github.com/neomorfeo/mycouch/internal/domain"
)

type SendMessageInput struct {
	ActorInput
	Kind string `path:"kind" enum:"private,hospitality_request" doc:"Message kind"`
	Body struct {
		Subject          string   `json:"subject" doc:"Subject line"`
		Text             string   `json:"text" doc:"Message body"`
		RecipientListIDs []string `json:"recipient_list_ids" doc:"Recipient member IDs"`
		ReplyToID        string   `json:"reply_to_id,omitempty" doc:"ID of the message being answered"`
		DateFrom         string   `json:"date_from,omitempty" doc:"Arrival date (YYYY-MM-DD, hospitality requests)"`
		DateTo           string   `json:"date_to,omitempty" doc:"Departure date (YYYY-MM-DD, hospitality requests)"`
	}
}

type ListMessagesInput struct {
	ActorInput
	ExpandInput
	Kind      string `path:"kind" enum:"private,hospitality_request" doc:"Message kind"`
	Direction string `query:"direction" enum:"in,out" default:"in" doc:"Received (in) or sent (out) messages"`
}

type GetMessageInput struct {
	ActorInput
	ExpandInput
	Kind string `path:"kind" enum:"private,hospitality_request" doc:"Message kind"`
	ID   string `path:"id" doc:"Message ID"`
}

type UpdateMessageInput struct {
	ActorInput
	Kind string `path:"kind" enum:"private,hospitality_request" doc:"Message kind"`
	ID   string `path:"id" doc:"Message ID"`
	Body struct {
		Status        string `json:"status,omitempty" doc:"Hospitality request status"`
		MessageStatus string `json:"message_status,omitempty" doc:"The caller's own message status"`
	}
}

func registerMessages(api huma.API, svc *app.MessageService) {
	huma.Register(api, huma.Operation{
		OperationID: "send-message",
		Method:      http.MethodPost,
		Path:        "/api/v1/messages/{kind}",
		Summary:     "Send a message or hospitality request",
		Tags:        []string{"Messages"},
	}, func(ctx context.Context, input *SendMessageInput) (*ObjectOutput, error) {
		var v domain.ValidationError
		from := parseDate(&v, "date_from", input.Body.DateFrom)
		to := parseDate(&v, "date_to", input.Body.DateTo)
		if err := v.Err(); err != nil {
			return nil, toHumaError(err)
		}

		msg, err := svc.Send(ctx, input.UserID, domain.MessageKind(input.Kind), app.NewMessage{
			Subject:      input.Body.Subject,
			Text:         input.Body.Text,
			RecipientIDs: input.Body.RecipientListIDs,
			ReplyToID:    input.Body.ReplyToID,
			DateFrom:     from,
			DateTo:       to,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: domain.Serialize(&msg)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-messages",
		Method:      http.MethodGet,
		Path:        "/api/v1/messages/{kind}",
		Summary:     "List received or sent messages",
		Tags:        []string{"Messages"},
	}, func(ctx context.Context, input *ListMessagesInput) (*ListOutput, error) {
		msgs, err := svc.List(ctx, input.UserID, domain.MessageKind(input.Kind), domain.Direction(input.Direction))
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]Object, len(msgs))
		for i := range msgs {
			resp[i] = serialize(&msgs[i], input.Expand)
		}
		return &ListOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-message",
		Method:      http.MethodGet,
		Path:        "/api/v1/messages/{kind}/{id}",
		Summary:     "Get a message",
		Tags:        []string{"Messages"},
	}, func(ctx context.Context, input *GetMessageInput) (*ObjectOutput, error) {
		msg, err := svc.Get(ctx, input.UserID, domain.MessageKind(input.Kind), input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: serialize(&msg, input.Expand)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-message",
		Method:      http.MethodPatch,
		Path:        "/api/v1/messages/{kind}/{id}",
		Summary:     "Change a request status or the caller's message status",
		Tags:        []string{"Messages"},
	}, func(ctx context.Context, input *UpdateMessageInput) (*ObjectOutput, error) {
		msg, err := svc.Update(ctx, input.UserID, domain.MessageKind(input.Kind), input.ID, app.MessagePatch{
			Status:        domain.State(input.Body.Status),
			MessageStatus: domain.State(input.Body.MessageStatus),
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: domain.Serialize(&msg)}, nil
	})
}
