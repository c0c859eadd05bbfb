package http

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/neomorfeo/mycouch/internal/app"
	"github.com/neomorfeo/mycouch/internal/domain"
)

type CreateConnectionInput struct {
	ActorInput
	Kind string `path:"kind" enum:"friendship,reference" doc:"Connection kind"`
	Body struct {
		UserID          string `json:"user_id" doc:"The other member"`
		Text            string `json:"text,omitempty" doc:"Free text"`
		Description     string `json:"description,omitempty" doc:"Short description"`
		FriendshipLevel string `json:"friendship_level,omitempty" doc:"Friendship level (friendships only)"`
		ReferenceType   string `json:"reference_type,omitempty" doc:"positive, neutral or negative (references only)"`
	}
}

type ListConnectionsInput struct {
	ActorInput
	ExpandInput
	Kind string `path:"kind" enum:"friendship,reference" doc:"Connection kind"`
}

type GetConnectionInput struct {
	ActorInput
	ExpandInput
	Kind string `path:"kind" enum:"friendship,reference" doc:"Connection kind"`
	ID   string `path:"id" doc:"Connection ID"`
}

type UpdateConnectionInput struct {
	ActorInput
	Kind string `path:"kind" enum:"friendship,reference" doc:"Connection kind"`
	ID   string `path:"id" doc:"Connection ID"`
	Body struct {
		TypeStatus      string `json:"type_status,omitempty" doc:"Target status"`
		FriendshipLevel string `json:"friendship_level,omitempty" doc:"New friendship level"`
	}
}

// HistoryResponse is one entry of a status audit log.
type HistoryResponse struct {
	Seq    int    `json:"seq" doc:"Sequence number, starting at 1"`
	State  string `json:"state" doc:"State entered"`
	Author string `json:"author" doc:"Member who caused the change, empty when unattributed"`
}

type HistoryOutput struct {
	Body []HistoryResponse
}

func registerConnections(api huma.API, svc *app.ConnectionService) {
	huma.Register(api, huma.Operation{
		OperationID: "create-connection",
		Method:      http.MethodPost,
		Path:        "/api/v1/connections/{kind}",
		Summary:     "Request a friendship or leave a reference",
		Tags:        []string{"Connections"},
	}, func(ctx context.Context, input *CreateConnectionInput) (*ObjectOutput, error) {
		conn, err := svc.Create(ctx, input.UserID, domain.ConnectionKind(input.Kind), app.NewConnection{
			UserID:          input.Body.UserID,
			Text:            input.Body.Text,
			Description:     input.Body.Description,
			FriendshipLevel: input.Body.FriendshipLevel,
			Status:          domain.State(input.Body.ReferenceType),
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: conn.SerializeFor(input.UserID)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "list-connections",
		Method:      http.MethodGet,
		Path:        "/api/v1/connections/{kind}",
		Summary:     "List the caller's connections",
		Tags:        []string{"Connections"},
	}, func(ctx context.Context, input *ListConnectionsInput) (*ListOutput, error) {
		conns, err := svc.List(ctx, input.UserID, domain.ConnectionKind(input.Kind))
		if err != nil {
			return nil, toHumaError(err)
		}

		resp := make([]Object, len(conns))
		for i := range conns {
			resp[i] = conns[i].SerializeFor(input.UserID, expandable(&conns[i], input.Expand)...)
		}
		return &ListOutput{Body: resp}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-connection",
		Method:      http.MethodGet,
		Path:        "/api/v1/connections/{kind}/{id}",
		Summary:     "Get a connection",
		Tags:        []string{"Connections"},
	}, func(ctx context.Context, input *GetConnectionInput) (*ObjectOutput, error) {
		conn, err := svc.Get(ctx, input.UserID, domain.ConnectionKind(input.Kind), input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: conn.SerializeFor(input.UserID, expandable(&conn, input.Expand)...)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-connection",
		Method:      http.MethodPatch,
		Path:        "/api/v1/connections/{kind}/{id}",
		Summary:     "Change a connection's status or level",
		Tags:        []string{"Connections"},
	}, func(ctx context.Context, input *UpdateConnectionInput) (*ObjectOutput, error) {
		conn, err := svc.Update(ctx, input.UserID, domain.ConnectionKind(input.Kind), input.ID, app.ConnectionPatch{
			Status:          domain.State(input.Body.TypeStatus),
			FriendshipLevel: input.Body.FriendshipLevel,
		})
		if err != nil {
			return nil, toHumaError(err)
		}
		return &ObjectOutput{Body: conn.SerializeFor(input.UserID)}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "connection-history",
		Method:      http.MethodGet,
		Path:        "/api/v1/connections/{kind}/{id}/history",
		Summary:     "Get the status history of a connection",
		Tags:        []string{"Connections"},
	}, func(ctx context.Context, input *GetConnectionInput) (*HistoryOutput, error) {
		items, err := svc.History(ctx, input.UserID, domain.ConnectionKind(input.Kind), input.ID)
		if err != nil {
			return nil, toHumaError(err)
		}
		return &HistoryOutput{Body: toHistoryResponse(items)}, nil
	})
}

func toHistoryResponse(items []app.HistoryItem) []HistoryResponse {
	out := make([]HistoryResponse, len(items))
	for i, it := range items {
		out[i] = HistoryResponse{Seq: it.Seq, State: string(it.State), Author: it.Author}
	}
	return out
}
