package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/neomorfeo/mycouch/internal/domain"
)

// NewConnection holds the fields accepted when creating a friendship request
// or a reference. Status is the reference type and is ignored for friendships.
type NewConnection struct {
	UserID          string
	Text            string
	Description     string
	FriendshipLevel string
	Status          domain.State
}

// ConnectionPatch lists the changes a participant may request. Empty fields
// are left alone.
type ConnectionPatch struct {
	Status          domain.State
	FriendshipLevel string
}

// ConnectionService manages friendships and references.
type ConnectionService struct {
	repo  domain.ConnectionRepository
	users domain.UserRepository
	tr    transitions
}

// NewConnectionService creates a service with the given adapters.
func NewConnectionService(repo domain.ConnectionRepository, users domain.UserRepository, validator domain.TransitionValidator, publisher domain.EventPublisher, opts ...Option) *ConnectionService {
	return &ConnectionService{
		repo:  repo,
		users: users,
		tr:    newTransitions(validator, publisher, opts),
	}
}

// Create links actor to in.UserID. Friendships start pending; references are
// written once with the requested type.
func (s *ConnectionService) Create(ctx context.Context, actor string, kind domain.ConnectionKind, in NewConnection) (domain.Connection, error) {
	var v domain.ValidationError
	if in.UserID == "" {
		v.Add("No field value for %q.", "user_id")
	} else if in.UserID == actor {
		v.Add("Cannot create a %s with yourself.", kind)
	}

	initial := in.Status
	switch kind {
	case domain.KindFriendship:
		initial = domain.FriendshipPending
		if in.FriendshipLevel == "" {
			in.FriendshipLevel = domain.DefaultFriendshipLevel
		}
		if !domain.ValidFriendshipLevel(in.FriendshipLevel) {
			v.Add("Invalid value for %q.", "friendship_level")
		}
	case domain.KindReference:
		requireText(&v, "text", in.Text)
		if initial == "" {
			v.Add("No field value for %q.", domain.ConnectionStatusField)
		}
	default:
		return domain.Connection{}, domain.ErrConnectionNotFound
	}
	if err := v.Err(); err != nil {
		return domain.Connection{}, err
	}

	if _, err := s.users.GetUser(ctx, in.UserID); err != nil {
		return domain.Connection{}, err
	}

	if kind == domain.KindFriendship {
		if err := s.ensureNoActiveFriendship(ctx, actor, in.UserID); err != nil {
			return domain.Connection{}, err
		}
	}

	id, err := generateID()
	if err != nil {
		return domain.Connection{}, fmt.Errorf("generating connection id: %w", err)
	}

	conn := domain.NewConnection(id, kind, actor, in.UserID, "")
	conn.Text = strings.TrimSpace(in.Text)
	conn.Description = in.Description
	if kind == domain.KindFriendship {
		conn.FriendshipLevel = in.FriendshipLevel
	}

	// The first assignment checks the value belongs to the table.
	if _, err := s.tr.apply(ctx, &conn, domain.ConnectionStatusField, initial, actor); err != nil {
		return domain.Connection{}, err
	}

	if err := s.repo.CreateConnection(ctx, conn); err != nil {
		return domain.Connection{}, fmt.Errorf("creating %s: %w", kind, err)
	}
	return conn, nil
}

func (s *ConnectionService) ensureNoActiveFriendship(ctx context.Context, a, b string) error {
	existing, err := s.repo.ListConnections(ctx, domain.KindFriendship, a)
	if err != nil {
		return fmt.Errorf("listing friendships: %w", err)
	}
	for _, c := range existing {
		if !c.Involves(b) {
			continue
		}
		switch c.Status.Current {
		case domain.FriendshipPending, domain.FriendshipAccepted:
			v := &domain.ValidationError{}
			v.Add("A friendship with %q already exists.", b)
			return v
		}
	}
	return nil
}

// Get returns a connection actor takes part in.
func (s *ConnectionService) Get(ctx context.Context, actor string, kind domain.ConnectionKind, id string) (domain.Connection, error) {
	conn, err := s.repo.GetConnection(ctx, kind, id)
	if err != nil {
		return domain.Connection{}, err
	}
	if !conn.Involves(actor) {
		return domain.Connection{}, &domain.ForbiddenError{Reason: "not a party to this connection"}
	}
	return conn, nil
}

// List returns the connections of kind actor takes part in.
func (s *ConnectionService) List(ctx context.Context, actor string, kind domain.ConnectionKind) ([]domain.Connection, error) {
	return s.repo.ListConnections(ctx, kind, actor)
}

// History returns the ordered audit log of the connection's status.
func (s *ConnectionService) History(ctx context.Context, actor string, kind domain.ConnectionKind, id string) ([]HistoryItem, error) {
	conn, err := s.Get(ctx, actor, kind, id)
	if err != nil {
		return nil, err
	}
	return historyOf(conn.Status), nil
}

// Update applies patch on behalf of actor. Only the recipient of a pending
// friendship request may accept or refuse it; either party may remove an
// accepted friendship. The transition tables themselves do not know who is
// asking, so that rule is enforced here.
func (s *ConnectionService) Update(ctx context.Context, actor string, kind domain.ConnectionKind, id string, patch ConnectionPatch) (domain.Connection, error) {
	var out domain.Connection

	err := s.tr.withLock(ctx, string(kind), id, func(ctx context.Context) error {
		conn, err := s.Get(ctx, actor, kind, id)
		if err != nil {
			return err
		}

		changed := false
		if patch.FriendshipLevel != "" && patch.FriendshipLevel != conn.FriendshipLevel {
			if kind != domain.KindFriendship || !domain.ValidFriendshipLevel(patch.FriendshipLevel) {
				v := &domain.ValidationError{}
				v.Add("Invalid value for %q.", "friendship_level")
				return v
			}
			conn.FriendshipLevel = patch.FriendshipLevel
			changed = true
		}

		var tr domain.Transition
		if patch.Status != "" {
			if err := checkConnectionActor(conn, actor, patch.Status); err != nil {
				return err
			}
			tr, err = s.tr.apply(ctx, &conn, domain.ConnectionStatusField, patch.Status, actor)
			if err != nil {
				return err
			}
			changed = changed || tr.Applied
		}

		if changed {
			if err := s.repo.UpdateConnection(ctx, conn); err != nil {
				return fmt.Errorf("updating %s: %w", kind, err)
			}
			conn.Version++
		}

		out = conn
		return s.tr.publish(ctx, string(kind), id, tr)
	})
	if err != nil {
		return domain.Connection{}, err
	}
	return out, nil
}

func checkConnectionActor(conn domain.Connection, actor string, next domain.State) error {
	if conn.Kind != domain.KindFriendship || conn.Status.Current != domain.FriendshipPending {
		return nil
	}
	switch next {
	case domain.FriendshipAccepted, domain.FriendshipRefused:
		if actor != conn.UserToID {
			return &domain.ForbiddenError{Reason: "only the recipient can answer a friendship request"}
		}
	}
	return nil
}
